package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type()
	}
	return out
}

func TestBatchBuilderFlattensNestedEvents(t *testing.T) {
	request := NewRequestReceived(1, testHeaders())
	batch, err := NewBatchBuilder().
		AddHeaders(request, EndStream(), WithPriority(16, 0, false)).
		Build()
	require.NoError(t, err)

	assert.Equal(t, NestAndFlatten, batch.Policy())
	assert.Equal(t, []EventType{
		EventTypeRequestReceived,
		EventTypeStreamEnded,
		EventTypePriorityUpdated,
	}, eventTypes(batch.Events()))

	// The nested events are the flat events
	assert.Same(t, request.StreamEnded, batch.At(1))
	assert.Same(t, request.PriorityUpdated, batch.At(2))
	assert.Equal(t, uint32(1), request.StreamEnded.StreamID)
	assert.Equal(t, 16, request.PriorityUpdated.Weight)
}

func TestBatchBuilderNestOnly(t *testing.T) {
	request := NewRequestReceived(1, testHeaders())
	batch, err := NewBatchBuilder(WithNestingPolicy(NestOnly)).
		AddHeaders(request, EndStream(), WithPriority(16, 0, false)).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventTypeRequestReceived}, eventTypes(batch.Events()))
	require.NotNil(t, request.NestedStreamEnded())
	require.NotNil(t, request.NestedPriorityUpdated())
}

func TestBatchBuilderDataEndingStream(t *testing.T) {
	pending := NewPendingDataReceived(3).SetData([]byte("body")).SetFlowControlledLength(4)
	batch, err := NewBatchBuilder().
		AddHeaders(NewResponseReceived(3, []hpack.HeaderField{{Name: ":status", Value: "200"}})).
		AddData(pending, true).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventTypeResponseReceived,
		EventTypeDataReceived,
		EventTypeStreamEnded,
	}, eventTypes(batch.Events()))

	data := batch.At(1).(*DataReceived)
	assert.Same(t, data.StreamEnded, batch.At(2))
	assert.Nil(t, batch.At(0).(*ResponseReceived).StreamEnded)
}

func TestBatchBuilderEmptyDataEndingStream(t *testing.T) {
	data := NewDataReceived(1, nil, 0)
	assert.NotNil(t, data.Data)

	batch, err := NewBatchBuilder().AddEndOfStream(data).Build()
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventTypeDataReceived, EventTypeStreamEnded}, eventTypes(batch.Events()))
	assert.Empty(t, batch.At(0).(*DataReceived).Data)
}

func TestBatchBuilderTrailers(t *testing.T) {
	trailers := NewTrailersReceived(1, []hpack.HeaderField{{Name: "grpc-status", Value: "0"}})

	_, err := NewBatchBuilder().AddHeaders(trailers).Build()
	require.Error(t, err, "trailers without end of stream must be refused")

	trailers = NewTrailersReceived(1, []hpack.HeaderField{{Name: "grpc-status", Value: "0"}})
	batch, err := NewBatchBuilder().AddHeaders(trailers, EndStream()).Build()
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Len())
}

func TestBatchBuilderPendingErrors(t *testing.T) {
	builder := NewBatchBuilder()
	builder.AddData(NewPendingDataReceived(1).SetData([]byte("x")), false)
	assert.True(t, errors.Is(builder.Err(), ErrUnsetField))

	// Calls after the first error are ignored
	builder.Add(NewStreamEnded(1))
	assert.Equal(t, 0, builder.Len())

	_, err := builder.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsetField)

	// The builder is usable again after Build
	assert.NoError(t, builder.Err())
	batch, err := builder.AddReset(NewPendingStreamReset(1).SetErrorCode(http2.ErrCodeCancel)).Build()
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventTypeStreamReset}, eventTypes(batch.Events()))
}

func TestBatchBuilderNilEvents(t *testing.T) {
	_, err := NewBatchBuilder().Add(nil).Build()
	assert.Error(t, err)

	_, err = NewBatchBuilder().AddHeaders(nil).Build()
	assert.Error(t, err)

	_, err = NewBatchBuilder().AddData(nil, false).Build()
	assert.Error(t, err)

	_, err = NewBatchBuilder().AddReset(nil).Build()
	assert.Error(t, err)

	// Nil record pointers are refused the same way
	_, err = NewBatchBuilder().AddHeaders((*RequestReceived)(nil), EndStream()).Build()
	assert.ErrorContains(t, err, "cannot add nil header event")

	_, err = NewBatchBuilder().Add((*StreamEnded)(nil)).Build()
	assert.ErrorContains(t, err, "cannot add nil event")

	_, err = NewBatchBuilder().AddEndOfStream((*DataReceived)(nil)).Build()
	assert.ErrorContains(t, err, "cannot add nil event")
}

func TestBatchIdentity(t *testing.T) {
	batch, err := NewBatchBuilder(WithBatchID("batch-1")).Add(NewWindowUpdated(0, 10)).Build()
	require.NoError(t, err)
	assert.Equal(t, "batch-1", batch.ID())

	first, err := NewBatch("", NestAndFlatten, nil)
	require.NoError(t, err)
	second, err := NewBatch("", NestAndFlatten, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID())
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, 0, first.Len())
}

func TestBatchAccessors(t *testing.T) {
	ping := NewPingReceived([8]byte{1})
	window := NewWindowUpdated(0, 10)
	goaway := NewConnectionTerminated(http2.ErrCodeNo, 0, nil)

	batch, err := NewBatch("b", NestAndFlatten, []Event{ping, window, goaway})
	require.NoError(t, err)

	events := batch.Events()
	events[0] = nil
	assert.Same(t, ping, batch.At(0), "Events must return a copy")

	var seen []EventType
	for _, e := range batch.All() {
		seen = append(seen, e.Type())
		if e.Type() == EventTypeWindowUpdated {
			break
		}
	}
	assert.Equal(t, []EventType{EventTypePingReceived, EventTypeWindowUpdated}, seen)

	assert.Len(t, batch.ByType(EventTypeWindowUpdated), 1)
	assert.Empty(t, batch.ByType(EventTypeDataReceived))

	ct, ok := batch.Terminated()
	assert.True(t, ok)
	assert.Same(t, goaway, ct)
	assert.Equal(t, "<Batch id:b, policy:flatten, events:3>", batch.String())
}

func TestValidateBatch(t *testing.T) {
	request := NewRequestReceived(1, testHeaders())
	request.attachStreamEnded(NewStreamEnded(1))

	response := NewResponseReceived(3, []hpack.HeaderField{{Name: ":status", Value: "200"}})
	response.attachStreamEnded(NewStreamEnded(3))
	data := NewDataReceived(3, []byte("x"), 1)
	data.attachStreamEnded(NewStreamEnded(3))

	tests := []struct {
		name    string
		events  []Event
		policy  NestingPolicy
		wantErr string
		index   int
	}{
		{
			name:   "empty",
			events: nil,
			policy: NestAndFlatten,
		},
		{
			name:    "nil event",
			events:  []Event{NewStreamEnded(1), nil},
			policy:  NestAndFlatten,
			wantErr: "event is nil",
			index:   1,
		},
		{
			name:    "invalid event",
			events:  []Event{NewPriorityUpdated(1, 0, 0, false)},
			policy:  NestAndFlatten,
			wantErr: "weight 0",
		},
		{
			name:    "nested event missing from flat sequence",
			events:  []Event{request},
			policy:  NestAndFlatten,
			wantErr: "nested stream_ended for stream 1 missing from batch",
		},
		{
			name:   "nested only does not need flat copy",
			events: []Event{request},
			policy: NestOnly,
		},
		{
			name:   "nested event present",
			events: []Event{request, request.StreamEnded},
			policy: NestAndFlatten,
		},
		{
			name:    "nil record pointer",
			events:  []Event{NewStreamEnded(1), (*PingReceived)(nil)},
			policy:  NestAndFlatten,
			wantErr: "event is nil",
			index:   1,
		},
		{
			name:    "one flat event for two nested references",
			events:  []Event{response, data, response.StreamEnded},
			policy:  NestAndFlatten,
			wantErr: "nested stream_ended for stream 3 missing from batch",
			index:   1,
		},
		{
			name:   "one flat event per nested reference",
			events: []Event{response, data, response.StreamEnded, data.StreamEnded},
			policy: NestAndFlatten,
		},
		{
			name: "events after termination",
			events: []Event{
				NewConnectionTerminated(http2.ErrCodeNo, 0, nil),
				NewPingReceived([8]byte{}),
			},
			policy:  NestAndFlatten,
			wantErr: "connection terminated but 1 more events follow",
		},
		{
			name:    "invalid policy",
			events:  nil,
			policy:  NestingPolicy(9),
			wantErr: "invalid nesting policy",
			index:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.events, tt.policy)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.index >= 0 {
				var batchErr *BatchError
				require.ErrorAs(t, err, &batchErr)
				assert.Equal(t, tt.index, batchErr.Index)
			}
		})
	}
}

func TestNestingPolicyText(t *testing.T) {
	tests := []struct {
		in      string
		want    NestingPolicy
		wantErr bool
	}{
		{in: "flatten", want: NestAndFlatten},
		{in: "", want: NestAndFlatten},
		{in: "nested-only", want: NestOnly},
		{in: "NESTED_ONLY", want: NestOnly},
		{in: "sideways", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var p NestingPolicy
			err := p.UnmarshalText([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}

	text, err := NestOnly.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "nested-only", string(text))

	_, err = NestingPolicy(7).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "NestingPolicy(7)", NestingPolicy(7).String())
}
