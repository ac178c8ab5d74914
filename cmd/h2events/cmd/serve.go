package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/scenario"
	"github.com/h2events/go-sdk/pkg/server"
	"github.com/h2events/go-sdk/pkg/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds the graceful shutdown of the inspector.
const shutdownTimeout = 5 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	var (
		address     string
		grpcAddress string
		interval    time.Duration
		delay       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve [scenario.yaml]",
		Short: "Run the inspector and publish a scenario to its subscribers",
		Long: `serve starts the inspector websocket endpoint. When a scenario is given, its
batches are tracked and published to every subscriber after --delay. With
--grpc-address (or inspector.grpc_address) the batches are also served over
gRPC. The inspector runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s *scenario.Scenario
			if len(args) == 1 {
				var err error
				if s, err = scenario.Load(args[0]); err != nil {
					return err
				}
			}

			tc := a.cfg.TrackerConfig()
			if s != nil {
				tc.LocalClient = tc.LocalClient || s.LocalClient
			}
			tracker := events.NewTracker(tc, events.WithLogger(a.logger))

			inspector := a.cfg.Inspector
			if address != "" {
				inspector.Address = address
			}
			if grpcAddress != "" {
				inspector.GRPCAddress = grpcAddress
			}
			srv, err := server.New(server.Config{
				Address:     inspector.Address,
				GRPCAddress: inspector.GRPCAddress,
				Path:        inspector.Path,
				BufferSize:  inspector.BufferSize,
			}, server.WithLogger(a.logger), server.WithTracker(tracker))
			if err != nil {
				return err
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.ListenAndServe)
			if inspector.GRPCAddress != "" {
				g.Go(func() error { return srv.ListenAndServeGRPC() })
			}
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if s != nil {
				g.Go(func() error {
					select {
					case <-gctx.Done():
						return nil
					case <-time.After(delay):
					}

					fanout := transport.NewFanout(
						[]transport.Consumer{srv, newPrinter(cmd.OutOrStdout(), a.cfg.OutputFormat)},
						transport.WithFanoutLogger(a.logger),
					)
					producer := scenario.NewProducer(s,
						scenario.WithNestingPolicy(a.cfg.Nesting),
						scenario.WithInterval(interval),
						scenario.WithLogger(a.logger),
					)
					if err := producer.Run(gctx, fanout); err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					a.logger.WithField("scenario", s.Name).Info("scenario published")
					return nil
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address (default from config)")
	cmd.Flags().StringVar(&grpcAddress, "grpc-address", "", "gRPC listen address (default from config, disabled when empty)")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "pause between published batches")
	cmd.Flags().DurationVar(&delay, "delay", 0, "wait before publishing the scenario")
	return cmd
}
