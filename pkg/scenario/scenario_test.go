package scenario

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/h2events/go-sdk/internal/testutil"
	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
)

func typesOf(b *events.Batch) []events.EventType {
	var out []events.EventType
	for _, e := range b.All() {
		out = append(out, e.Type())
	}
	return out
}

func TestLoadConversation(t *testing.T) {
	s, err := Load("testdata/conversation.yaml")
	require.NoError(t, err)
	assert.Equal(t, "conversation", s.Name)
	assert.True(t, s.LocalClient)

	batches, err := NewProducer(s).Batches()
	require.NoError(t, err)
	require.Len(t, batches, 4)

	assert.Equal(t, "settings", batches[0].ID())
	rsc := batches[0].At(0).(*events.RemoteSettingsChanged)
	change := rsc.ChangedSettings[http2.SettingInitialWindowSize]
	original, ok := change.Original()
	assert.True(t, ok)
	assert.Equal(t, uint32(65535), original)
	assert.Equal(t, uint32(1<<20), change.NewValue)

	assert.Equal(t, []events.EventType{
		events.EventTypeResponseReceived,
		events.EventTypePriorityUpdated,
		events.EventTypeDataReceived,
		events.EventTypeWindowUpdated,
	}, typesOf(batches[1]))
	data := batches[1].At(2).(*events.DataReceived)
	assert.Equal(t, 16, data.FlowControlledLength)
	assert.Equal(t, 4, data.Padding())

	assert.Equal(t, []events.EventType{
		events.EventTypeTrailersReceived,
		events.EventTypeStreamEnded,
	}, typesOf(batches[2]))

	ct, ok := batches[3].Terminated()
	require.True(t, ok)
	assert.Equal(t, http2.ErrCodeNo, ct.ErrorCode)
	assert.Equal(t, []byte("done"), ct.AdditionalData)
}

func TestProducerNestOnly(t *testing.T) {
	s, err := Load("testdata/conversation.yaml")
	require.NoError(t, err)

	batches, err := NewProducer(s, WithNestingPolicy(events.NestOnly)).Batches()
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{events.EventTypeTrailersReceived}, typesOf(batches[2]))
	assert.NotNil(t, batches[2].At(0).(*events.TrailersReceived).NestedStreamEnded())
}

func TestProducerRunFeedsTracker(t *testing.T) {
	s, err := Load("testdata/conversation.yaml")
	require.NoError(t, err)

	logger, hook := testutil.NullLogger()
	cfg := events.DefaultTrackerConfig()
	cfg.LocalClient = true
	tracker := events.NewTracker(cfg, events.WithLogger(logger))

	require.NoError(t, NewProducer(s, WithLogger(logger)).Run(context.Background(), tracker))

	_, terminated := tracker.Terminated()
	assert.True(t, terminated)
	v, _ := tracker.RemoteSettings().Get(http2.SettingMaxConcurrentStreams)
	assert.Equal(t, uint32(100), v)
	assert.Equal(t, "delivered batch", hook.LastEntry().Message)

	// Running again hits the terminated connection
	err = NewProducer(s).Run(context.Background(), tracker)
	assert.Error(t, err)
}

func TestProducerRunCancelled(t *testing.T) {
	s, err := Load("testdata/conversation.yaml")
	require.NoError(t, err)

	recorder := testutil.NewRecorder(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewProducer(s, WithInterval(time.Hour)).Run(ctx, recorder)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, recorder.Batches(), 1, "the first batch is delivered without waiting")
}

func TestProducerSettingsFollowEarlierUpdates(t *testing.T) {
	s, err := Parse([]byte(`
batches:
  - events:
      - type: REMOTE_SETTINGS_CHANGED
        settings: {HEADER_TABLE_SIZE: 8192}
      - type: REMOTE_SETTINGS_CHANGED
        settings: {HEADER_TABLE_SIZE: 1024}
      - type: SETTINGS_ACKNOWLEDGED
        settings: {ENABLE_PUSH: 0}
`))
	require.NoError(t, err)

	batches, err := NewProducer(s).Batches()
	require.NoError(t, err)

	second := batches[0].At(1).(*events.RemoteSettingsChanged).ChangedSettings[http2.SettingHeaderTableSize]
	original, _ := second.Original()
	assert.Equal(t, uint32(8192), original)

	// The local endpoint is a server, which starts with ENABLE_PUSH=0
	ack := batches[0].At(2).(*events.SettingsAcknowledged).ChangedSettings[http2.SettingEnablePush]
	original, ok := ack.Original()
	assert.True(t, ok)
	assert.Equal(t, uint32(0), original)

	tracker := events.NewTracker(nil)
	assert.NoError(t, tracker.Track(batches[0]))
}

func TestProducerEveryEventType(t *testing.T) {
	s, err := Parse([]byte(`
local_client: true
batches:
  - events:
      - type: informational_response_received
        stream: 1
        headers: [{name: ":status", value: "100"}]
      - type: RESPONSE_RECEIVED
        stream: 1
        headers: [{name: ":status", value: "200"}]
      - type: PUSHED_STREAM_RECEIVED
        stream: 1
        pushed_stream: 2
        headers: [{name: ":method", value: GET}, {name: ":path", value: /style.css}]
      - type: DATA_RECEIVED
        stream: 1
        data_hex: "00ff"
        end_stream: true
      - type: STREAM_RESET
        stream: 2
        error_code: CANCEL
        local_reset: true
      - type: PING_RECEIVED
        ping_data: "0102030405060708"
      - type: PING_ACK_RECEIVED
      - type: PRIORITY_UPDATED
        stream: 3
        priority: {weight: 32, depends_on: 1, exclusive: true}
      - type: ALTERNATIVE_SERVICE_AVAILABLE
        origin: example.com
        field_value: h2=":8443"
      - type: UNKNOWN_FRAME_RECEIVED
        frame_type: 250
        frame_flags: 1
        payload_hex: beef
      - type: STREAM_ENDED
        stream: 5
      - type: CONNECTION_TERMINATED
        error_code: "0xff"
        last_stream: 5
`))
	require.NoError(t, err)

	batches, err := NewProducer(s).Batches()
	require.NoError(t, err)
	b := batches[0]
	assert.Equal(t, []events.EventType{
		events.EventTypeInformationalResponseReceived,
		events.EventTypeResponseReceived,
		events.EventTypePushedStreamReceived,
		events.EventTypeDataReceived,
		events.EventTypeStreamEnded,
		events.EventTypeStreamReset,
		events.EventTypePingReceived,
		events.EventTypePingAckReceived,
		events.EventTypePriorityUpdated,
		events.EventTypeAlternativeServiceAvailable,
		events.EventTypeUnknownFrameReceived,
		events.EventTypeStreamEnded,
		events.EventTypeConnectionTerminated,
	}, typesOf(b))

	assert.Equal(t, []byte{0x00, 0xff}, b.At(3).(*events.DataReceived).Data)
	reset := b.At(5).(*events.StreamReset)
	assert.Equal(t, http2.ErrCodeCancel, reset.ErrorCode)
	assert.False(t, reset.RemoteReset)
	assert.Equal(t, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, b.At(6).(*events.PingReceived).PingData)

	frame := b.At(10).(*events.UnknownFrameReceived).Frame.(*http2.UnknownFrame)
	assert.Equal(t, []byte{0xbe, 0xef}, frame.Payload())

	ct, ok := b.Terminated()
	require.True(t, ok)
	assert.Equal(t, http2.ErrCode(0xff), ct.ErrorCode)
	assert.Nil(t, ct.AdditionalData)
}

func TestProducerErrors(t *testing.T) {
	tests := []struct {
		name string
		step string
		want string
	}{
		{name: "unknown type", step: "type: RUN_STARTED", want: `unknown event type "RUN_STARTED"`},
		{name: "bad error code", step: "type: STREAM_RESET\n        stream: 1\n        error_code: OOPS", want: "unknown error code"},
		{name: "short ping", step: "type: PING_RECEIVED\n        ping_data: '0102'", want: "got 2 bytes, want 8"},
		{name: "missing priority", step: "type: PRIORITY_UPDATED\n        stream: 1", want: "priority is required"},
		{name: "both payloads", step: "type: DATA_RECEIVED\n        stream: 1\n        data: x\n        data_hex: '00'", want: "mutually exclusive"},
		{name: "bad setting", step: "type: REMOTE_SETTINGS_CHANGED\n        settings: {NOPE: 1}", want: "unknown setting identifier"},
		{name: "invalid event", step: "type: WINDOW_UPDATED\n        delta: 2147483648", want: "batch 0 event 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte("batches:\n  - events:\n      - " + tt.step + "\n"))
			require.NoError(t, err)
			_, err = NewProducer(s).Batches()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("name: empty\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("batches: [\n"))
	assert.Error(t, err)

	_, err = Load("testdata/absent.yaml")
	assert.Error(t, err)
}

func TestParseErrCode(t *testing.T) {
	tests := []struct {
		in      string
		want    http2.ErrCode
		wantErr bool
	}{
		{in: "", want: http2.ErrCodeNo},
		{in: "NO_ERROR", want: http2.ErrCodeNo},
		{in: "refused_stream", want: http2.ErrCodeRefusedStream},
		{in: "HTTP_1_1_REQUIRED", want: http2.ErrCodeHTTP11Required},
		{in: "13", want: http2.ErrCodeHTTP11Required},
		{in: "0x1000", want: http2.ErrCode(0x1000)},
		{in: "SLOW", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseErrCode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
