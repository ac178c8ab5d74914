package events

import (
	"encoding/json"
	"fmt"

	"github.com/h2events/go-sdk/pkg/core"
	"golang.org/x/net/http2"
	"google.golang.org/protobuf/types/known/structpb"
)

// DataReceived is fired when data arrives on a stream from the peer.
//
// Padding counts against flow control but is not exposed as data, so flow
// control bookkeeping must use FlowControlledLength, never len(Data).
type DataReceived struct {
	BaseEvent
	StreamID             uint32       `json:"stream_id"`
	Data                 []byte       `json:"data"`
	FlowControlledLength int          `json:"flow_controlled_length"`
	StreamEnded          *StreamEnded `json:"stream_ended,omitempty"`
}

// NewDataReceived creates a fully populated data event. Producers that learn
// the payload after creating the event use PendingDataReceived instead.
func NewDataReceived(streamID uint32, data []byte, flowControlledLength int) *DataReceived {
	if data == nil {
		data = []byte{}
	}
	return &DataReceived{
		BaseEvent:            NewBaseEvent(EventTypeDataReceived),
		StreamID:             streamID,
		Data:                 cloneBytes(data),
		FlowControlledLength: flowControlledLength,
	}
}

// GetStreamID returns the stream the data arrived on
func (e *DataReceived) GetStreamID() uint32 { return e.StreamID }

// NestedStreamEnded returns the co-occurring StreamEnded, or nil
func (e *DataReceived) NestedStreamEnded() *StreamEnded { return e.StreamEnded }

func (e *DataReceived) attachStreamEnded(s *StreamEnded) { e.StreamEnded = s }

// Padding returns the number of flow-controlled bytes that are not data.
func (e *DataReceived) Padding() int {
	return e.FlowControlledLength - len(e.Data)
}

// Validate validates the data received event
func (e *DataReceived) Validate() error {
	if err := e.BaseEvent.validate(EventTypeDataReceived); err != nil {
		return err
	}
	if !core.ValidStreamID(e.StreamID) {
		return newValidationError(EventTypeDataReceived, "stream_id", fmt.Sprintf("%d is out of range", e.StreamID))
	}
	if e.Data == nil {
		return newValidationError(EventTypeDataReceived, "data", "is required")
	}
	if e.FlowControlledLength < len(e.Data) {
		return newValidationError(EventTypeDataReceived, "flow_controlled_length",
			fmt.Sprintf("%d is less than data length %d", e.FlowControlledLength, len(e.Data)))
	}
	if e.Padding() > core.MaxPadding {
		return newValidationError(EventTypeDataReceived, "flow_controlled_length",
			fmt.Sprintf("%d exceeds data length %d by more than %d", e.FlowControlledLength, len(e.Data), core.MaxPadding))
	}
	return validateNested(EventTypeDataReceived, e.StreamID, e.StreamEnded, nil)
}

// ToJSON serializes the event to JSON
func (e *DataReceived) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *DataReceived) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *DataReceived) String() string {
	data := ""
	if len(e.Data) > 0 {
		data, _ = SafeRepr(preview(e.Data))
	}
	return fmt.Sprintf("<DataReceived stream_id:%d, flow_controlled_length:%d, data:%s>",
		e.StreamID, e.FlowControlledLength, data)
}

func (*DataReceived) event() {}

// WindowUpdated is fired when a flow control window changes size. StreamID
// is 0 when the connection window changed.
type WindowUpdated struct {
	BaseEvent
	StreamID uint32 `json:"stream_id"`
	Delta    uint32 `json:"delta"`
}

// NewWindowUpdated creates a window updated event
func NewWindowUpdated(streamID, delta uint32) *WindowUpdated {
	return &WindowUpdated{
		BaseEvent: NewBaseEvent(EventTypeWindowUpdated),
		StreamID:  streamID,
		Delta:     delta,
	}
}

// GetStreamID returns the stream whose window changed, 0 for the connection
func (e *WindowUpdated) GetStreamID() uint32 { return e.StreamID }

// IsConnectionLevel reports whether the connection window changed.
func (e *WindowUpdated) IsConnectionLevel() bool { return e.StreamID == 0 }

// Validate validates the window updated event
func (e *WindowUpdated) Validate() error {
	if err := e.BaseEvent.validate(EventTypeWindowUpdated); err != nil {
		return err
	}
	if e.StreamID > core.MaxStreamID {
		return newValidationError(EventTypeWindowUpdated, "stream_id", fmt.Sprintf("%d is out of range", e.StreamID))
	}
	if e.Delta > core.MaxWindowIncrement {
		return newValidationError(EventTypeWindowUpdated, "delta", fmt.Sprintf("%d exceeds %d", e.Delta, core.MaxWindowIncrement))
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *WindowUpdated) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *WindowUpdated) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *WindowUpdated) String() string {
	return fmt.Sprintf("<WindowUpdated stream_id:%d, delta:%d>", e.StreamID, e.Delta)
}

func (*WindowUpdated) event() {}

// StreamEnded is fired when the peer ends a stream. The stream may still be
// open locally, but no further data or headers will arrive on it.
type StreamEnded struct {
	BaseEvent
	StreamID uint32 `json:"stream_id"`
}

// NewStreamEnded creates a stream ended event
func NewStreamEnded(streamID uint32) *StreamEnded {
	return &StreamEnded{
		BaseEvent: NewBaseEvent(EventTypeStreamEnded),
		StreamID:  streamID,
	}
}

// GetStreamID returns the ended stream
func (e *StreamEnded) GetStreamID() uint32 { return e.StreamID }

// Validate validates the stream ended event
func (e *StreamEnded) Validate() error {
	if err := e.BaseEvent.validate(EventTypeStreamEnded); err != nil {
		return err
	}
	if !core.ValidStreamID(e.StreamID) {
		return newValidationError(EventTypeStreamEnded, "stream_id", fmt.Sprintf("%d is out of range", e.StreamID))
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *StreamEnded) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *StreamEnded) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *StreamEnded) String() string {
	return fmt.Sprintf("<StreamEnded stream_id:%d>", e.StreamID)
}

func (*StreamEnded) event() {}

// StreamReset is fired when the peer resets a stream, or when a protocol
// error confined to one stream made the local side reset it. RemoteReset
// tells the two apart.
type StreamReset struct {
	BaseEvent
	StreamID uint32 `json:"stream_id"`

	// ErrorCode may be outside the registered error code set.
	ErrorCode   http2.ErrCode `json:"error_code"`
	RemoteReset bool          `json:"remote_reset"`
}

// NewStreamReset creates a fully populated stream reset event. Producers
// that learn the error code later use PendingStreamReset instead.
func NewStreamReset(streamID uint32, code http2.ErrCode, remoteReset bool) *StreamReset {
	return &StreamReset{
		BaseEvent:   NewBaseEvent(EventTypeStreamReset),
		StreamID:    streamID,
		ErrorCode:   code,
		RemoteReset: remoteReset,
	}
}

// GetStreamID returns the reset stream
func (e *StreamReset) GetStreamID() uint32 { return e.StreamID }

// Validate validates the stream reset event
func (e *StreamReset) Validate() error {
	if err := e.BaseEvent.validate(EventTypeStreamReset); err != nil {
		return err
	}
	if !core.ValidStreamID(e.StreamID) {
		return newValidationError(EventTypeStreamReset, "stream_id", fmt.Sprintf("%d is out of range", e.StreamID))
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *StreamReset) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *StreamReset) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *StreamReset) String() string {
	return fmt.Sprintf("<StreamReset stream_id:%d, error_code:%s, remote_reset:%t>",
		e.StreamID, e.ErrorCode, e.RemoteReset)
}

func (*StreamReset) event() {}

// PriorityUpdated is fired when a stream's priority information changes,
// either when the stream opens or at any later point. It is advisory only.
type PriorityUpdated struct {
	BaseEvent
	StreamID uint32 `json:"stream_id"`

	// Weight is between 1 and 256 inclusive.
	Weight int `json:"weight"`

	// DependsOn is the parent stream, 0 for none.
	DependsOn uint32 `json:"depends_on"`

	// Exclusive means the stream adopts the current children of its parent.
	Exclusive bool `json:"exclusive"`
}

// NewPriorityUpdated creates a priority updated event
func NewPriorityUpdated(streamID uint32, weight int, dependsOn uint32, exclusive bool) *PriorityUpdated {
	return &PriorityUpdated{
		BaseEvent: NewBaseEvent(EventTypePriorityUpdated),
		StreamID:  streamID,
		Weight:    weight,
		DependsOn: dependsOn,
		Exclusive: exclusive,
	}
}

// GetStreamID returns the stream whose priority changed
func (e *PriorityUpdated) GetStreamID() uint32 { return e.StreamID }

// Validate validates the priority updated event
func (e *PriorityUpdated) Validate() error {
	if err := e.BaseEvent.validate(EventTypePriorityUpdated); err != nil {
		return err
	}
	if !core.ValidStreamID(e.StreamID) {
		return newValidationError(EventTypePriorityUpdated, "stream_id", fmt.Sprintf("%d is out of range", e.StreamID))
	}
	if !core.ValidWeight(e.Weight) {
		return newValidationError(EventTypePriorityUpdated, "weight",
			fmt.Sprintf("%d is outside [%d, %d]", e.Weight, core.MinWeight, core.MaxWeight))
	}
	if e.DependsOn > core.MaxStreamID {
		return newValidationError(EventTypePriorityUpdated, "depends_on", fmt.Sprintf("%d is out of range", e.DependsOn))
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *PriorityUpdated) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *PriorityUpdated) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *PriorityUpdated) String() string {
	return fmt.Sprintf("<PriorityUpdated stream_id:%d, weight:%d, depends_on:%d, exclusive:%t>",
		e.StreamID, e.Weight, e.DependsOn, e.Exclusive)
}

func (*PriorityUpdated) event() {}
