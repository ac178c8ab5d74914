package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/scenario"
	"github.com/h2events/go-sdk/pkg/transport"
	"github.com/spf13/cobra"
)

func (a *app) newReplayCmd() *cobra.Command {
	var (
		interval time.Duration
		strict   bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Replay a scenario through a connection tracker",
		Long: `replay delivers the batches of a scenario to a connection tracker, printing
each batch unless --quiet is given, and finishes with the tracker summary.
Batches the tracker refuses end the replay with an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			tc := a.cfg.TrackerConfig()
			tc.LocalClient = tc.LocalClient || s.LocalClient
			tc.StrictStreams = strict
			tracker := events.NewTracker(tc, events.WithLogger(a.logger))

			// The tracker comes first so that refused batches are not printed.
			consumer := transport.Consumer(tracker)
			if !quiet {
				p := newPrinter(cmd.OutOrStdout(), a.cfg.OutputFormat)
				consumer = transport.ConsumerFunc(func(ctx context.Context, b *events.Batch) error {
					if err := tracker.HandleBatch(ctx, b); err != nil {
						return err
					}
					return p.HandleBatch(ctx, b)
				})
			}

			producer := scenario.NewProducer(s,
				scenario.WithNestingPolicy(a.cfg.Nesting),
				scenario.WithInterval(interval),
				scenario.WithLogger(a.logger),
			)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := producer.Run(ctx, consumer); err != nil {
				return fmt.Errorf("replay %s: %w", s.Name, err)
			}

			return writeInfo(cmd.OutOrStdout(), tracker.Info(), strings.EqualFold(a.cfg.OutputFormat, "json"))
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "pause between batches")
	cmd.Flags().BoolVar(&strict, "strict", false, "refuse events on streams that already ended or were reset")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print the summary")
	return cmd
}
