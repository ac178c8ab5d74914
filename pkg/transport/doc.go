// Package transport moves event batches between a producer and its
// consumers.
//
// A Consumer receives the batches of one connection in order. Fanout hands
// each batch to several consumers concurrently, WebSocketSink writes batches
// to a websocket peer, and ReadBatch reads them back on the other side.
//
// Batches travel as envelopes. The JSON envelope is the default:
//
//	{"batch_id": "…", "policy": "flatten", "events": [{"type": "DATA_RECEIVED", …}]}
//
// EncodeBatchProto and DecodeBatchProto carry the same fields in a binary
// google.protobuf.Struct, which is also the message type of the gRPC
// Subscribe stream (GRPCSink, RecvBatch).
//
// Example usage:
//
//	tracker := events.NewTracker(nil)
//	fanout := transport.NewFanout([]transport.Consumer{
//		tracker,
//		transport.ConsumerFunc(func(ctx context.Context, b *events.Batch) error {
//			log.Println(b)
//			return nil
//		}),
//	})
//	if err := fanout.HandleBatch(ctx, batch); err != nil {
//		log.Fatal(err)
//	}
package transport
