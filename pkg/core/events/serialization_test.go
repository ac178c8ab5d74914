package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

func TestJSONRoundTrip(t *testing.T) {
	for _, event := range sampleEvents(t) {
		t.Run(string(event.Type()), func(t *testing.T) {
			data, err := event.ToJSON()
			require.NoError(t, err)

			decoded, err := EventFromJSON(data)
			require.NoError(t, err)
			assert.Equal(t, event, decoded)
		})
	}
}

func TestProtobufRoundTrip(t *testing.T) {
	for _, event := range sampleEvents(t) {
		t.Run(string(event.Type()), func(t *testing.T) {
			pb, err := event.ToProtobuf()
			require.NoError(t, err)
			assert.Equal(t, string(event.Type()), pb.GetFields()["type"].GetStringValue())

			decoded, err := EventFromProtobuf(pb)
			require.NoError(t, err)
			assert.Equal(t, event, decoded)

			raw, err := EventToProtobufBytes(event)
			require.NoError(t, err)
			decoded, err = EventFromProtobufBytes(raw)
			require.NoError(t, err)
			assert.Equal(t, event, decoded)
		})
	}
}

func TestJSONShape(t *testing.T) {
	event := NewDataReceived(1, []byte("hi"), 4)
	data, err := event.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"DATA_RECEIVED","stream_id":1,"data":"aGk=","flow_controlled_length":4}`, string(data))

	reset := NewStreamReset(3, http2.ErrCodeFlowControl, false)
	data, err = reset.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"STREAM_RESET","stream_id":3,"error_code":3,"remote_reset":false}`, string(data))

	frame, err := ReadRawFrame(0xfa, 0x1, 3, []byte{0xde, 0xad})
	require.NoError(t, err)
	data, err = NewUnknownFrameReceived(frame).ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "UNKNOWN_FRAME_RECEIVED",
		"frame": {"type": 250, "type_name": "UNKNOWN_FRAME_TYPE_250", "flags": 1, "stream_id": 3, "payload": "dead"}
	}`, string(data))
}

func TestNestedEventsDecodeAsEqualCopies(t *testing.T) {
	request := NewRequestReceived(1, testHeaders())
	batch, err := NewBatchBuilder().AddHeaders(request, EndStream(), WithPriority(32, 0, true)).Build()
	require.NoError(t, err)

	raw, err := EventsToJSON(batch.Events())
	require.NoError(t, err)
	decoded, err := EventsFromJSON(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	got := decoded[0].(*RequestReceived)
	assert.Equal(t, decoded[1], got.StreamEnded)
	assert.Equal(t, decoded[2], got.PriorityUpdated)
	assert.NotSame(t, decoded[1], got.StreamEnded)
	assert.NoError(t, ValidateBatch(decoded, NestAndFlatten))
}

func TestEventFromJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{`},
		{name: "unknown type", data: `{"type":"RUN_STARTED"}`},
		{name: "missing type", data: `{"stream_id":1}`},
		{name: "invalid field", data: `{"type":"PRIORITY_UPDATED","stream_id":1,"weight":0}`},
		{name: "wrong field type", data: `{"type":"STREAM_ENDED","stream_id":"one"}`},
		{name: "bad frame payload", data: `{"type":"UNKNOWN_FRAME_RECEIVED","frame":{"type":250,"payload":"zz"}}`},
		{name: "missing frame", data: `{"type":"UNKNOWN_FRAME_RECEIVED"}`},
		{name: "duplicate settings", data: `{"type":"REMOTE_SETTINGS_CHANGED","changed_settings":[
			{"setting":1,"original_value":null,"new_value":1},
			{"setting":1,"original_value":null,"new_value":2}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EventFromJSON([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestEventFromProtobufNil(t *testing.T) {
	_, err := EventFromProtobuf(nil)
	assert.Error(t, err)

	_, err = EventFromProtobufBytes([]byte{0xff, 0xff})
	assert.Error(t, err)
}

func TestUnknownFrameReceivedRejectsKnownFrames(t *testing.T) {
	ping, err := ReadRawFrame(http2.FramePing, 0, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	_, ok := ping.(*http2.PingFrame)
	require.True(t, ok)

	event := NewUnknownFrameReceived(ping)
	err = event.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "*http2.PingFrame is not an unknown frame")

	_, err = event.ToJSON()
	assert.Error(t, err)

	_, err = NewBatchBuilder().Add(event).Build()
	assert.Error(t, err)

	// A frame header naming a known type does not decode as an unknown frame
	_, err = EventFromJSON([]byte(`{"type":"UNKNOWN_FRAME_RECEIVED","frame":{"type":6,"payload":"0102030405060708"}}`))
	assert.Error(t, err)
}

func TestReadRawFrame(t *testing.T) {
	frame, err := ReadRawFrame(0x20, 0, 0, []byte("ext"))
	require.NoError(t, err)
	unknown, ok := frame.(*http2.UnknownFrame)
	require.True(t, ok)
	assert.Equal(t, []byte("ext"), unknown.Payload())
	assert.Equal(t, http2.FrameType(0x20), unknown.Header().Type)

	// A known frame type is parsed as that type
	frame, err = ReadRawFrame(http2.FrameWindowUpdate, 0, 1, []byte{0, 0, 0, 1})
	require.NoError(t, err)
	_, ok = frame.(*http2.WindowUpdateFrame)
	assert.True(t, ok)
}

func TestHeadersJSONKeepOrderAndDuplicates(t *testing.T) {
	headers := []hpack.HeaderField{
		{Name: "set-cookie", Value: "a=1"},
		{Name: "set-cookie", Value: "b=2"},
		{Name: "x-token", Value: "t", Sensitive: true},
	}
	event := NewPushedStreamReceived(2, 1, headers)
	data, err := json.Marshal(event)
	require.NoError(t, err)

	decoded, err := EventFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, headers, decoded.(*PushedStreamReceived).Headers)
}
