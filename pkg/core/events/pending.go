package events

import (
	"errors"
	"fmt"

	"golang.org/x/net/http2"
)

// ErrUnsetField is returned when a pending event is finished before every
// producer-filled field has been populated. It signals a bug in the
// producer, never a condition a caller has to handle.
var ErrUnsetField = errors.New("event field not populated")

// UnsetFieldError names the field that was still unset.
type UnsetFieldError struct {
	EventType EventType
	Field     string
}

func (e *UnsetFieldError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.EventType.RecordName(), e.Field, ErrUnsetField)
}

func (e *UnsetFieldError) Unwrap() error {
	return ErrUnsetField
}

// optional is a field that is filled in after its record was created.
type optional[T any] struct {
	value T
	set   bool
}

func (o *optional[T]) Set(v T) {
	o.value = v
	o.set = true
}

func (o optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// PendingDataReceived is a DataReceived under construction. The stream is
// known when the frame is recognised; the payload and flow-controlled
// length are filled in afterwards by the stream layer. Only Finish turns
// it into a DataReceived, and only once both fields are set.
type PendingDataReceived struct {
	streamID             uint32
	data                 optional[[]byte]
	flowControlledLength optional[int]
}

// NewPendingDataReceived starts building a DataReceived for streamID.
func NewPendingDataReceived(streamID uint32) *PendingDataReceived {
	return &PendingDataReceived{streamID: streamID}
}

// StreamID returns the stream the data arrived on.
func (p *PendingDataReceived) StreamID() uint32 { return p.streamID }

// SetData populates the payload. The slice is copied.
func (p *PendingDataReceived) SetData(data []byte) *PendingDataReceived {
	if data == nil {
		data = []byte{}
	}
	p.data.Set(cloneBytes(data))
	return p
}

// SetFlowControlledLength populates the number of bytes, padding included,
// that count against flow control.
func (p *PendingDataReceived) SetFlowControlledLength(n int) *PendingDataReceived {
	p.flowControlledLength.Set(n)
	return p
}

// Finish returns the populated event, or an *UnsetFieldError.
func (p *PendingDataReceived) Finish() (*DataReceived, error) {
	data, ok := p.data.Get()
	if !ok {
		return nil, &UnsetFieldError{EventType: EventTypeDataReceived, Field: "data"}
	}
	n, ok := p.flowControlledLength.Get()
	if !ok {
		return nil, &UnsetFieldError{EventType: EventTypeDataReceived, Field: "flow_controlled_length"}
	}
	return NewDataReceived(p.streamID, data, n), nil
}

// PendingStreamReset is a StreamReset under construction whose error code
// is filled in after creation. RemoteReset defaults to true.
type PendingStreamReset struct {
	streamID    uint32
	errorCode   optional[http2.ErrCode]
	remoteReset bool
}

// NewPendingStreamReset starts building a StreamReset for streamID.
func NewPendingStreamReset(streamID uint32) *PendingStreamReset {
	return &PendingStreamReset{streamID: streamID, remoteReset: true}
}

// StreamID returns the reset stream.
func (p *PendingStreamReset) StreamID() uint32 { return p.streamID }

// SetErrorCode populates the error code.
func (p *PendingStreamReset) SetErrorCode(code http2.ErrCode) *PendingStreamReset {
	p.errorCode.Set(code)
	return p
}

// SetRemoteReset records whether the peer sent the RST_STREAM (true) or the
// local side generated it (false).
func (p *PendingStreamReset) SetRemoteReset(remote bool) *PendingStreamReset {
	p.remoteReset = remote
	return p
}

// Finish returns the populated event, or an *UnsetFieldError.
func (p *PendingStreamReset) Finish() (*StreamReset, error) {
	code, ok := p.errorCode.Get()
	if !ok {
		return nil, &UnsetFieldError{EventType: EventTypeStreamReset, Field: "error_code"}
	}
	return NewStreamReset(p.streamID, code, p.remoteReset), nil
}
