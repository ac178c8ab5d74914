package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/h2events/go-sdk/pkg/core"
	"github.com/h2events/go-sdk/pkg/transport"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCClient subscribes to the gRPC endpoint of an inspector server.
type GRPCClient struct {
	target      string
	dialOptions []grpc.DialOption
	logger      logrus.FieldLogger

	conn *grpc.ClientConn
}

// GRPCConfig contains configuration options for the gRPC client.
type GRPCConfig struct {
	// Target is a gRPC target such as "127.0.0.1:8643" or
	// "dns:///inspector:8643"
	Target string
}

// GRPCOption configures a GRPCClient
type GRPCOption func(*GRPCClient)

// WithGRPCLogger sets the logger
func WithGRPCLogger(logger logrus.FieldLogger) GRPCOption {
	return func(c *GRPCClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialOptions appends dial options. The connection is insecure unless
// an option sets transport credentials.
func WithDialOptions(options ...grpc.DialOption) GRPCOption {
	return func(c *GRPCClient) {
		c.dialOptions = append(c.dialOptions, options...)
	}
}

// NewGRPC creates a gRPC client. The connection is established lazily on
// the first Subscribe.
func NewGRPC(config GRPCConfig, options ...GRPCOption) (*GRPCClient, error) {
	if config.Target == "" {
		return nil, &core.ConfigError{
			Field: "Target",
			Value: config.Target,
			Err:   errors.New("target cannot be empty"),
		}
	}

	c := &GRPCClient{
		target:      config.Target,
		dialOptions: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(c)
	}

	conn, err := grpc.NewClient(c.target, c.dialOptions...)
	if err != nil {
		return nil, &core.ConfigError{
			Field: "Target",
			Value: config.Target,
			Err:   fmt.Errorf("invalid target: %w", err),
		}
	}
	c.conn = conn
	return c, nil
}

// Subscribe calls the Subscribe method and hands every received batch to
// consumer until the server ends the stream, ctx is done, or the consumer
// fails. A stream ended by the server without error returns nil.
func (c *GRPCClient) Subscribe(ctx context.Context, consumer transport.Consumer) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(streamCtx, &transport.GRPCSubscribeStream, transport.GRPCSubscribeMethod)
	if err != nil {
		return fmt.Errorf("open stream to %s: %w", c.target, err)
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}
	c.logger.WithField("target", c.target).Debug("subscribed")

	for {
		batch, err := transport.RecvBatch(stream)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive batch: %w", err)
		}
		if err := consumer.HandleBatch(ctx, batch); err != nil {
			return fmt.Errorf("handle batch %s: %w", batch.ID(), err)
		}
	}
}

// Close closes the underlying connection and every open subscription.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}
