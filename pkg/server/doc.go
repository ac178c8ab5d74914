// Package server provides an inspector that publishes event batches to
// websocket and gRPC subscribers.
//
// The server is a transport.Consumer. Batches handed to it are optionally
// tracked, then broadcast to every subscriber: as JSON envelopes over
// websocket, or as google.protobuf.Struct messages on the server-streaming
// gRPC method h2events.inspector.v1.Inspector/Subscribe. A tracker summary
// is served as JSON on /info.
//
// Example usage:
//
//	tracker := events.NewTracker(events.DefaultTrackerConfig())
//	s, err := server.New(server.Config{Address: "127.0.0.1:8642"},
//		server.WithTracker(tracker))
//	if err != nil {
//		log.Fatal(err)
//	}
//	go s.ListenAndServe()
//	go s.ServeGRPC(grpcListener)
//	defer s.Shutdown(context.Background())
//
//	// Batches produced elsewhere reach every subscriber
//	if err := s.HandleBatch(ctx, batch); err != nil {
//		log.Println(err)
//	}
package server
