package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/h2events/go-sdk/pkg/transport"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// batchStreamer is the handler type of the inspector service.
type batchStreamer interface {
	streamBatches(req *structpb.Struct, stream grpc.ServerStream) error
}

var inspectorServiceDesc = grpc.ServiceDesc{
	ServiceName: transport.GRPCServiceName,
	HandlerType: (*batchStreamer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    transport.GRPCSubscribeStream.StreamName,
		Handler:       subscribeHandler,
		ServerStreams: true,
	}},
	Metadata: "h2events/inspector.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(batchStreamer).streamBatches(req, stream)
}

// RegisterGRPC registers the inspector service on registrar, which is
// usually a *grpc.Server owned by the caller.
func (s *Server) RegisterGRPC(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&inspectorServiceDesc, s)
}

// ServeGRPC serves the inspector service on lis until Shutdown. It returns
// nil after Shutdown.
func (s *Server) ServeGRPC(lis net.Listener, options ...grpc.ServerOption) error {
	gs := grpc.NewServer(options...)
	s.RegisterGRPC(gs)

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		_ = lis.Close()
		return nil
	}
	s.grpcServer = gs
	s.mu.Unlock()

	s.logger.WithField("address", lis.Addr().String()).Info("inspector gRPC listening")
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC on %s: %w", lis.Addr(), err)
	}
	return nil
}

// ListenAndServeGRPC listens on Config.GRPCAddress and calls ServeGRPC.
func (s *Server) ListenAndServeGRPC(options ...grpc.ServerOption) error {
	if s.config.GRPCAddress == "" {
		return errors.New("no gRPC address configured")
	}
	lis, err := net.Listen("tcp", s.config.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.GRPCAddress, err)
	}
	return s.ServeGRPC(lis, options...)
}

// streamBatches serves one Subscribe call. The request carries no options
// yet and is ignored.
func (s *Server) streamBatches(_ *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	sub, ok := s.subscribe()
	if !ok {
		return nil
	}

	fields := logrus.Fields{"subscriber": sub.id, "transport": "grpc"}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		fields["remote_addr"] = p.Addr.String()
	}
	log := s.logger.WithFields(fields)
	log.Info("subscriber connected")
	defer func() {
		s.unsubscribe(sub)
		log.Info("subscriber disconnected")
	}()

	stop := context.AfterFunc(ctx, sub.close)
	defer stop()

	sub.pump(transport.NewGRPCSink(stream), log)
	if sub.graceful.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.ResourceExhausted, "subscriber dropped")
}

// stopGRPC stops gs gracefully, or forcibly once ctx is done.
func stopGRPC(ctx context.Context, gs *grpc.Server) error {
	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		gs.Stop()
		return ctx.Err()
	}
}
