package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/h2events/go-sdk/pkg/client"
	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/transport"
	"github.com/spf13/cobra"
)

func (a *app) newWatchCmd() *cobra.Command {
	var (
		infoOnly   bool
		track      bool
		grpcTarget string
	)

	cmd := &cobra.Command{
		Use:   "watch [url]",
		Short: "Subscribe to an inspector and print the batches it publishes",
		Long: `watch connects to an inspector (default http://<inspector.address> from the
config) and prints every batch until the inspector closes the connection or
the command is interrupted. With --info it prints the inspector's tracker
summary instead. With --grpc it subscribes to the inspector's gRPC endpoint.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if infoOnly && grpcTarget != "" {
				return errors.New("--info is served over HTTP and cannot be combined with --grpc")
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var subscribe func(context.Context, transport.Consumer) error
			asJSON := strings.EqualFold(a.cfg.OutputFormat, "json")
			if grpcTarget != "" {
				gc, err := client.NewGRPC(client.GRPCConfig{Target: grpcTarget}, client.WithGRPCLogger(a.logger))
				if err != nil {
					return err
				}
				defer gc.Close()
				subscribe = gc.Subscribe
			} else {
				base := "http://" + a.cfg.Inspector.Address
				if len(args) == 1 {
					base = args[0]
				}
				c, err := client.New(client.Config{BaseURL: base, Path: a.cfg.Inspector.Path}, client.WithLogger(a.logger))
				if err != nil {
					return err
				}
				defer c.Close()

				if infoOnly {
					info, err := c.Info(ctx)
					if err != nil {
						return err
					}
					return writeInfo(cmd.OutOrStdout(), info, asJSON)
				}
				subscribe = c.Subscribe
			}

			p := newPrinter(cmd.OutOrStdout(), a.cfg.OutputFormat)
			consumer := transport.Consumer(p)
			var tracker *events.Tracker
			if track {
				tracker = events.NewTracker(a.cfg.TrackerConfig(), events.WithLogger(a.logger))
				consumer = transport.ConsumerFunc(func(ctx context.Context, b *events.Batch) error {
					if err := tracker.HandleBatch(ctx, b); err != nil {
						return err
					}
					return p.HandleBatch(ctx, b)
				})
			}

			err := subscribe(ctx, consumer)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if tracker != nil {
				return writeInfo(cmd.OutOrStdout(), tracker.Info(), asJSON)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&infoOnly, "info", false, "print the inspector's tracker summary and exit")
	cmd.Flags().BoolVar(&track, "track", false, "track received batches locally and print a summary at the end")
	cmd.Flags().StringVar(&grpcTarget, "grpc", "", "subscribe to this gRPC target instead of the websocket endpoint")
	return cmd
}
