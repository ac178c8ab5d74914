package events

import (
	"golang.org/x/net/http2/hpack"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventType represents the type of an HTTP/2 connection event
type EventType string

// Event type constants, one per record type in this package
const (
	EventTypeRequestReceived               EventType = "REQUEST_RECEIVED"
	EventTypeResponseReceived              EventType = "RESPONSE_RECEIVED"
	EventTypeTrailersReceived              EventType = "TRAILERS_RECEIVED"
	EventTypeInformationalResponseReceived EventType = "INFORMATIONAL_RESPONSE_RECEIVED"
	EventTypeDataReceived                  EventType = "DATA_RECEIVED"
	EventTypeWindowUpdated                 EventType = "WINDOW_UPDATED"
	EventTypeRemoteSettingsChanged         EventType = "REMOTE_SETTINGS_CHANGED"
	EventTypeSettingsAcknowledged          EventType = "SETTINGS_ACKNOWLEDGED"
	EventTypePingReceived                  EventType = "PING_RECEIVED"
	EventTypePingAckReceived               EventType = "PING_ACK_RECEIVED"
	EventTypeStreamEnded                   EventType = "STREAM_ENDED"
	EventTypeStreamReset                   EventType = "STREAM_RESET"
	EventTypePushedStreamReceived          EventType = "PUSHED_STREAM_RECEIVED"
	EventTypePriorityUpdated               EventType = "PRIORITY_UPDATED"
	EventTypeConnectionTerminated          EventType = "CONNECTION_TERMINATED"
	EventTypeAlternativeServiceAvailable   EventType = "ALTERNATIVE_SERVICE_AVAILABLE"
	EventTypeUnknownFrameReceived          EventType = "UNKNOWN_FRAME_RECEIVED"
)

// eventTypeNames maps each valid event type to its record name
var eventTypeNames = map[EventType]string{
	EventTypeRequestReceived:               "RequestReceived",
	EventTypeResponseReceived:              "ResponseReceived",
	EventTypeTrailersReceived:              "TrailersReceived",
	EventTypeInformationalResponseReceived: "InformationalResponseReceived",
	EventTypeDataReceived:                  "DataReceived",
	EventTypeWindowUpdated:                 "WindowUpdated",
	EventTypeRemoteSettingsChanged:         "RemoteSettingsChanged",
	EventTypeSettingsAcknowledged:          "SettingsAcknowledged",
	EventTypePingReceived:                  "PingReceived",
	EventTypePingAckReceived:               "PingAckReceived",
	EventTypeStreamEnded:                   "StreamEnded",
	EventTypeStreamReset:                   "StreamReset",
	EventTypePushedStreamReceived:          "PushedStreamReceived",
	EventTypePriorityUpdated:               "PriorityUpdated",
	EventTypeConnectionTerminated:          "ConnectionTerminated",
	EventTypeAlternativeServiceAvailable:   "AlternativeServiceAvailable",
	EventTypeUnknownFrameReceived:          "UnknownFrameReceived",
}

// Valid reports whether t is one of the defined event types.
func (t EventType) Valid() bool {
	_, ok := eventTypeNames[t]
	return ok
}

// RecordName returns the Go record name for t, e.g. "DataReceived".
func (t EventType) RecordName() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "UnknownEvent"
}

// AllEventTypes returns every event type in declaration order.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeRequestReceived,
		EventTypeResponseReceived,
		EventTypeTrailersReceived,
		EventTypeInformationalResponseReceived,
		EventTypeDataReceived,
		EventTypeWindowUpdated,
		EventTypeRemoteSettingsChanged,
		EventTypeSettingsAcknowledged,
		EventTypePingReceived,
		EventTypePingAckReceived,
		EventTypeStreamEnded,
		EventTypeStreamReset,
		EventTypePushedStreamReceived,
		EventTypePriorityUpdated,
		EventTypeConnectionTerminated,
		EventTypeAlternativeServiceAvailable,
		EventTypeUnknownFrameReceived,
	}
}

// Event is one occurrence on an HTTP/2 connection reported to the
// application. The set of implementations is closed: only the record types
// in this package satisfy it.
//
// Events are immutable once they have been delivered in a Batch.
type Event interface {
	// Type returns the event type
	Type() EventType

	// Validate checks that every field holds a populated, in-range value
	Validate() error

	// ToJSON serializes the event to JSON
	ToJSON() ([]byte, error)

	// ToProtobuf converts the event to a protobuf Struct
	ToProtobuf() (*structpb.Struct, error)

	// String renders the event for logs; binary fields are hex encoded
	String() string

	// GetBaseEvent returns the underlying base event
	GetBaseEvent() *BaseEvent

	event()
}

// StreamEvent is implemented by events scoped to a single stream.
type StreamEvent interface {
	Event

	// GetStreamID returns the stream the event applies to. WindowUpdated
	// may return 0 for the connection window.
	GetStreamID() uint32
}

// StreamTerminator is implemented by events that may complete a stream and
// therefore carry a nested StreamEnded.
type StreamTerminator interface {
	StreamEvent

	// NestedStreamEnded returns the co-occurring StreamEnded, or nil.
	NestedStreamEnded() *StreamEnded

	attachStreamEnded(*StreamEnded)
}

// HeaderBlockEvent is implemented by the events fired for a complete
// received header block. They may also carry a nested PriorityUpdated.
type HeaderBlockEvent interface {
	StreamTerminator

	// HeaderList returns the decoded header fields in wire order.
	HeaderList() []hpack.HeaderField

	// NestedPriorityUpdated returns the co-occurring PriorityUpdated, or nil.
	NestedPriorityUpdated() *PriorityUpdated

	attachPriorityUpdated(*PriorityUpdated)
}

// BaseEvent provides the fields shared by all events
type BaseEvent struct {
	EventType EventType `json:"type"`
}

// Type returns the event type
func (b *BaseEvent) Type() EventType {
	return b.EventType
}

// GetBaseEvent returns the base event
func (b *BaseEvent) GetBaseEvent() *BaseEvent {
	return b
}

// NewBaseEvent creates a base event of the given type
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{EventType: eventType}
}

// validate checks the base event against the type expected by the record
func (b *BaseEvent) validate(want EventType) error {
	if b.EventType == "" {
		return newValidationError(want, "type", "is required")
	}
	if b.EventType != want {
		return newValidationError(want, "type", "is "+string(b.EventType)+", want "+string(want))
	}
	return nil
}
