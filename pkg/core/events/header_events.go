package events

import (
	"encoding/json"
	"fmt"

	"github.com/h2events/go-sdk/pkg/core"
	"golang.org/x/net/http2/hpack"
	"google.golang.org/protobuf/types/known/structpb"
)

// headerBlock holds the fields shared by the events fired once a complete
// header block (HEADERS plus any CONTINUATION frames) has been received.
type headerBlock struct {
	// StreamID is the stream the header block arrived on.
	StreamID uint32 `json:"stream_id"`

	// Headers are the decoded header fields in wire order, duplicates kept.
	Headers []hpack.HeaderField `json:"headers"`

	// StreamEnded is set when the header block also ended the stream. It
	// refers to a StreamEnded event delivered in the same batch.
	StreamEnded *StreamEnded `json:"stream_ended,omitempty"`

	// PriorityUpdated is set when the header block carried priority
	// information. It refers to a PriorityUpdated event delivered in the
	// same batch.
	PriorityUpdated *PriorityUpdated `json:"priority_updated,omitempty"`
}

func newHeaderBlock(streamID uint32, headers []hpack.HeaderField) headerBlock {
	return headerBlock{StreamID: streamID, Headers: cloneHeaders(headers)}
}

// GetStreamID returns the stream the header block arrived on
func (h *headerBlock) GetStreamID() uint32 { return h.StreamID }

// HeaderList returns the header fields in wire order
func (h *headerBlock) HeaderList() []hpack.HeaderField { return h.Headers }

// NestedStreamEnded returns the co-occurring StreamEnded, or nil
func (h *headerBlock) NestedStreamEnded() *StreamEnded { return h.StreamEnded }

// NestedPriorityUpdated returns the co-occurring PriorityUpdated, or nil
func (h *headerBlock) NestedPriorityUpdated() *PriorityUpdated { return h.PriorityUpdated }

func (h *headerBlock) attachStreamEnded(e *StreamEnded)         { h.StreamEnded = e }
func (h *headerBlock) attachPriorityUpdated(p *PriorityUpdated) { h.PriorityUpdated = p }

func (h *headerBlock) validate(t EventType) error {
	if !core.ValidStreamID(h.StreamID) {
		return newValidationError(t, "stream_id", fmt.Sprintf("%d is out of range", h.StreamID))
	}
	if h.Headers == nil {
		return newValidationError(t, "headers", "is required")
	}
	if err := validateNested(t, h.StreamID, h.StreamEnded, h.PriorityUpdated); err != nil {
		return err
	}
	return nil
}

func (h *headerBlock) repr(t EventType) string {
	return fmt.Sprintf("<%s stream_id:%d, headers:%s>", t.RecordName(), h.StreamID, headersRepr(h.Headers))
}

// RequestReceived is fired when all of a request's headers have been
// received. It carries the request headers and the id of the new stream.
type RequestReceived struct {
	BaseEvent
	headerBlock
}

// NewRequestReceived creates a request received event
func NewRequestReceived(streamID uint32, headers []hpack.HeaderField) *RequestReceived {
	return &RequestReceived{
		BaseEvent:   NewBaseEvent(EventTypeRequestReceived),
		headerBlock: newHeaderBlock(streamID, headers),
	}
}

// Validate validates the request received event
func (e *RequestReceived) Validate() error {
	if err := e.BaseEvent.validate(EventTypeRequestReceived); err != nil {
		return err
	}
	return e.headerBlock.validate(EventTypeRequestReceived)
}

// ToJSON serializes the event to JSON
func (e *RequestReceived) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *RequestReceived) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *RequestReceived) String() string { return e.repr(EventTypeRequestReceived) }

func (*RequestReceived) event() {}

// ResponseReceived is fired when response headers have been received.
type ResponseReceived struct {
	BaseEvent
	headerBlock
}

// NewResponseReceived creates a response received event
func NewResponseReceived(streamID uint32, headers []hpack.HeaderField) *ResponseReceived {
	return &ResponseReceived{
		BaseEvent:   NewBaseEvent(EventTypeResponseReceived),
		headerBlock: newHeaderBlock(streamID, headers),
	}
}

// Validate validates the response received event
func (e *ResponseReceived) Validate() error {
	if err := e.BaseEvent.validate(EventTypeResponseReceived); err != nil {
		return err
	}
	return e.headerBlock.validate(EventTypeResponseReceived)
}

// ToJSON serializes the event to JSON
func (e *ResponseReceived) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *ResponseReceived) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *ResponseReceived) String() string { return e.repr(EventTypeResponseReceived) }

func (*ResponseReceived) event() {}

// TrailersReceived is fired when trailers are received on a stream.
// Trailers are headers sent after the body, carrying information that was
// not known up front. Trailers always end the stream, so a delivered
// TrailersReceived always has StreamEnded set.
type TrailersReceived struct {
	BaseEvent
	headerBlock
}

// NewTrailersReceived creates a trailers received event. The producer must
// attach the StreamEnded event through a BatchBuilder.
func NewTrailersReceived(streamID uint32, headers []hpack.HeaderField) *TrailersReceived {
	return &TrailersReceived{
		BaseEvent:   NewBaseEvent(EventTypeTrailersReceived),
		headerBlock: newHeaderBlock(streamID, headers),
	}
}

// Validate validates the trailers received event
func (e *TrailersReceived) Validate() error {
	if err := e.BaseEvent.validate(EventTypeTrailersReceived); err != nil {
		return err
	}
	if err := e.headerBlock.validate(EventTypeTrailersReceived); err != nil {
		return err
	}
	if e.StreamEnded == nil {
		return newValidationError(EventTypeTrailersReceived, "stream_ended", "is required: trailers always end the stream")
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *TrailersReceived) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *TrailersReceived) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *TrailersReceived) String() string { return e.repr(EventTypeTrailersReceived) }

func (*TrailersReceived) event() {}

// InformationalResponseReceived is fired when a 1xx response is received.
// A peer may send any number of these before the final response; most
// applications only care about them for "expect: 100-continue" flows.
type InformationalResponseReceived struct {
	BaseEvent
	headerBlock
}

// NewInformationalResponseReceived creates an informational response event
func NewInformationalResponseReceived(streamID uint32, headers []hpack.HeaderField) *InformationalResponseReceived {
	return &InformationalResponseReceived{
		BaseEvent:   NewBaseEvent(EventTypeInformationalResponseReceived),
		headerBlock: newHeaderBlock(streamID, headers),
	}
}

// Validate validates the informational response event
func (e *InformationalResponseReceived) Validate() error {
	if err := e.BaseEvent.validate(EventTypeInformationalResponseReceived); err != nil {
		return err
	}
	return e.headerBlock.validate(EventTypeInformationalResponseReceived)
}

// ToJSON serializes the event to JSON
func (e *InformationalResponseReceived) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *InformationalResponseReceived) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *InformationalResponseReceived) String() string {
	return e.repr(EventTypeInformationalResponseReceived)
}

func (*InformationalResponseReceived) event() {}

// PushedStreamReceived is fired when the peer pushes a stream. It carries
// the new stream id, the id of the stream the push relates to, and the
// pushed request headers.
type PushedStreamReceived struct {
	BaseEvent
	PushedStreamID uint32              `json:"pushed_stream_id"`
	ParentStreamID uint32              `json:"parent_stream_id"`
	Headers        []hpack.HeaderField `json:"headers"`
}

// NewPushedStreamReceived creates a pushed stream event
func NewPushedStreamReceived(pushedStreamID, parentStreamID uint32, headers []hpack.HeaderField) *PushedStreamReceived {
	return &PushedStreamReceived{
		BaseEvent:      NewBaseEvent(EventTypePushedStreamReceived),
		PushedStreamID: pushedStreamID,
		ParentStreamID: parentStreamID,
		Headers:        cloneHeaders(headers),
	}
}

// Validate validates the pushed stream event
func (e *PushedStreamReceived) Validate() error {
	if err := e.BaseEvent.validate(EventTypePushedStreamReceived); err != nil {
		return err
	}
	if !core.ValidStreamID(e.PushedStreamID) {
		return newValidationError(EventTypePushedStreamReceived, "pushed_stream_id", fmt.Sprintf("%d is out of range", e.PushedStreamID))
	}
	if !core.ValidStreamID(e.ParentStreamID) {
		return newValidationError(EventTypePushedStreamReceived, "parent_stream_id", fmt.Sprintf("%d is out of range", e.ParentStreamID))
	}
	if e.Headers == nil {
		return newValidationError(EventTypePushedStreamReceived, "headers", "is required")
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *PushedStreamReceived) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *PushedStreamReceived) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *PushedStreamReceived) String() string {
	return fmt.Sprintf("<PushedStreamReceived pushed_stream_id:%d, parent_stream_id:%d, headers:%s>",
		e.PushedStreamID, e.ParentStreamID, headersRepr(e.Headers))
}

func (*PushedStreamReceived) event() {}
