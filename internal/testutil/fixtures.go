package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/settings"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// Headers builds a header list from name, value pairs.
func Headers(pairs ...string) []hpack.HeaderField {
	if len(pairs)%2 != 0 {
		panic("testutil.Headers: odd number of arguments")
	}
	out := make([]hpack.HeaderField, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, hpack.HeaderField{Name: pairs[i], Value: pairs[i+1]})
	}
	return out
}

// NullLogger returns a debug level logger that records entries instead of
// printing them.
func NullLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// RequestBatch returns a batch holding a GET request on streamID that also
// ended the stream.
func RequestBatch(t testing.TB, streamID uint32, policy events.NestingPolicy) *events.Batch {
	t.Helper()
	batch, err := events.NewBatchBuilder(events.WithNestingPolicy(policy)).
		AddHeaders(
			events.NewRequestReceived(streamID, Headers(":method", "GET", ":path", "/", ":scheme", "https", ":authority", "example.com")),
			events.EndStream(),
		).
		Build()
	if err != nil {
		t.Fatalf("build request batch: %v", err)
	}
	return batch
}

// ConversationBatches returns the batches a client sees for one exchange:
// the server's settings, a response with a body and trailers, and GOAWAY.
func ConversationBatches(t testing.TB, policy events.NestingPolicy) []*events.Batch {
	t.Helper()

	remote := settings.DefaultSnapshot(false)
	builder := events.NewBatchBuilder(events.WithNestingPolicy(policy))

	var batches []*events.Batch
	build := func() {
		t.Helper()
		batch, err := builder.Build()
		if err != nil {
			t.Fatalf("build conversation batch %d: %v", len(batches), err)
		}
		batches = append(batches, batch)
	}

	builder.Add(events.NewRemoteSettingsChanged(remote.Diff(map[http2.SettingID]uint32{
		http2.SettingMaxConcurrentStreams: 100,
		http2.SettingInitialWindowSize:    1 << 20,
	})))
	build()

	builder.AddHeaders(
		events.NewResponseReceived(1, Headers(":status", "200", "content-type", "text/plain")),
		events.WithPriority(16, 0, false),
	)
	builder.AddData(events.NewPendingDataReceived(1).SetData([]byte("hello, world")).SetFlowControlledLength(16), false)
	builder.Add(events.NewWindowUpdated(0, 16))
	build()

	builder.AddHeaders(events.NewTrailersReceived(1, Headers("grpc-status", "0")), events.EndStream())
	build()

	builder.Add(events.NewConnectionTerminated(http2.ErrCodeNo, 1, []byte("done")))
	build()

	return batches
}

// Recorder is a consumer that keeps every batch it receives.
type Recorder struct {
	mu      sync.Mutex
	batches []*events.Batch
	err     error
	notify  chan struct{}
}

// NewRecorder creates a recorder. A non-nil err is returned from every call.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err, notify: make(chan struct{}, 1024)}
}

// HandleBatch records batch.
func (r *Recorder) HandleBatch(ctx context.Context, batch *events.Batch) error {
	r.mu.Lock()
	r.batches = append(r.batches, batch)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return r.err
}

// Batches returns the recorded batches in arrival order.
func (r *Recorder) Batches() []*events.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*events.Batch(nil), r.batches...)
}

// Notify is signalled after each recorded batch.
func (r *Recorder) Notify() <-chan struct{} {
	return r.notify
}
