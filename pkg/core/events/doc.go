// Package events provides the event records an HTTP/2 connection reports to
// the application, and the utilities to build, validate, serialize and
// track them.
//
// Processing one unit of protocol input (for example, one call that feeds
// received bytes to a connection) yields an ordered Batch of events. Each
// event describes one occurrence: a request arriving, data on a stream, the
// peer changing its settings, and so on. Events are plain records. Once
// delivered they are never modified, so any number of goroutines can read a
// Batch at the same time.
//
// # Event Types
//
// The package defines 17 event types:
//
// Header Block Events:
//   - REQUEST_RECEIVED: Complete request headers received on a new stream
//   - RESPONSE_RECEIVED: Final response headers received
//   - TRAILERS_RECEIVED: Trailers received; these always end the stream
//   - INFORMATIONAL_RESPONSE_RECEIVED: A 1xx response received
//   - PUSHED_STREAM_RECEIVED: The peer pushed a stream
//
// Stream Events:
//   - DATA_RECEIVED: Data arrived on a stream
//   - WINDOW_UPDATED: A stream or connection flow control window grew
//   - STREAM_ENDED: The peer ended a stream
//   - STREAM_RESET: A stream was reset by the peer or locally
//   - PRIORITY_UPDATED: A stream's priority information changed
//
// Connection Events:
//   - REMOTE_SETTINGS_CHANGED: The peer changed its settings
//   - SETTINGS_ACKNOWLEDGED: The peer acknowledged the local settings
//   - PING_RECEIVED: A PING arrived
//   - PING_ACK_RECEIVED: A PING acknowledgment arrived
//   - CONNECTION_TERMINATED: The peer sent GOAWAY
//   - ALTERNATIVE_SERVICE_AVAILABLE: The peer advertised an alternative service
//   - UNKNOWN_FRAME_RECEIVED: A frame of an unknown type arrived
//
// The Event interface is sealed. A type switch over the records in this
// package is exhaustive:
//
//	switch ev := event.(type) {
//	case *events.RequestReceived:
//		handleRequest(ev.StreamID, ev.Headers)
//	case *events.DataReceived:
//		consume(ev.StreamID, ev.Data, ev.FlowControlledLength)
//	case *events.ConnectionTerminated:
//		reconnect(ev.LastStreamID)
//	}
//
// # Building Batches
//
// A producer collects the events for one unit of input with a BatchBuilder.
// Events that co-occurred with another event (a header block that also ended
// its stream, or carried priority information) are attached as nested
// events:
//
//	builder := events.NewBatchBuilder()
//	builder.AddHeaders(events.NewRequestReceived(1, headers),
//		events.EndStream(),
//		events.WithPriority(16, 0, false))
//	batch, err := builder.Build()
//
// Under the default NestAndFlatten policy the batch above holds
// RequestReceived, StreamEnded and PriorityUpdated in that order, and the
// request's nested fields point at the same StreamEnded and PriorityUpdated
// instances. Under NestOnly the batch holds only RequestReceived.
//
// # Two-Phase Records
//
// DataReceived and StreamReset are often created before all their fields
// are known. PendingDataReceived and PendingStreamReset hold the partial
// record; Finish returns the event only once every field is populated, and
// an *UnsetFieldError otherwise:
//
//	pending := events.NewPendingDataReceived(3)
//	pending.SetData(payload).SetFlowControlledLength(len(payload) + padding)
//	builder.AddData(pending, false)
//
// # Validation
//
// Every event has a Validate method checking field ranges. ValidateBatch
// also checks that flattened nested events are present and that a
// ConnectionTerminated event is the last of its batch.
//
// # Serialization
//
// Events serialize to JSON with ToJSON and back with EventFromJSON. The
// protobuf form is a google.protobuf.Struct mirroring the JSON:
//
//	data, _ := event.ToJSON()
//	decoded, err := events.EventFromJSON(data)
//
//	raw, _ := events.EventToProtobufBytes(event)
//	decoded, err = events.EventFromProtobufBytes(raw)
//
// Nested events decode as copies equal in value to the flat events.
//
// # Tracking
//
// A Tracker consumes the batches of one connection in order. It keeps the
// peer's complete settings by applying each RemoteSettingsChanged diff and
// refuses any batch delivered after ConnectionTerminated.
//
// # Logging
//
// String renders events for logs. Binary payloads are shown as hexadecimal,
// and only their first 20 bytes. SafeRepr performs the same conversion for
// arbitrary byte slices.
package events
