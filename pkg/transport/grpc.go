package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/h2events/go-sdk/pkg/core/events"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Names of the inspector gRPC service. Messages on the wire are
// google.protobuf.Struct envelopes built by BatchToStruct, so no generated
// code is needed on either side.
const (
	GRPCServiceName     = "h2events.inspector.v1.Inspector"
	GRPCSubscribeMethod = "/" + GRPCServiceName + "/Subscribe"
)

// GRPCSubscribeStream describes the server-streaming Subscribe method: one
// Struct request, then one Struct per batch.
var GRPCSubscribeStream = grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
}

// GRPCSink is a Consumer that sends every batch on a server stream.
type GRPCSink struct {
	stream grpc.ServerStream
	mu     sync.Mutex
}

// NewGRPCSink wraps the server side of a Subscribe stream.
func NewGRPCSink(stream grpc.ServerStream) *GRPCSink {
	return &GRPCSink{stream: stream}
}

// HandleBatch converts and sends one batch. Sends are serialised.
func (s *GRPCSink) HandleBatch(ctx context.Context, batch *events.Batch) error {
	env, err := BatchToStruct(batch)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stream.SendMsg(env); err != nil {
		return fmt.Errorf("send batch %s: %w", batch.ID(), err)
	}
	return nil
}

// RecvBatch receives the next envelope from the client side of a Subscribe
// stream. Stream errors, io.EOF included, are returned unwrapped.
func RecvBatch(stream grpc.ClientStream) (*events.Batch, error) {
	env := &structpb.Struct{}
	if err := stream.RecvMsg(env); err != nil {
		return nil, err
	}
	return BatchFromStruct(env)
}
