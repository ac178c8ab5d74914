package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/h2events/go-sdk/pkg/core"
	"github.com/h2events/go-sdk/pkg/settings"
	"golang.org/x/net/http2"
	"google.golang.org/protobuf/types/known/structpb"
)

// RemoteSettingsChanged is fired when the peer changes its settings. It holds
// every changed setting with its previous value.
//
// Settings changes are acknowledged automatically. A caller that cannot
// accept a new value should close the connection with PROTOCOL_ERROR.
type RemoteSettingsChanged struct {
	BaseEvent
	ChangedSettings settings.Changes `json:"changed_settings"`
}

// NewRemoteSettingsChanged creates the event from an already computed diff.
func NewRemoteSettingsChanged(changes settings.Changes) *RemoteSettingsChanged {
	if changes == nil {
		changes = settings.Changes{}
	}
	return &RemoteSettingsChanged{
		BaseEvent:       NewBaseEvent(EventTypeRemoteSettingsChanged),
		ChangedSettings: changes.Clone(),
	}
}

// RemoteSettingsChangedFromSettings builds the event from the complete
// previous settings and the values announced in one SETTINGS frame.
func RemoteSettingsChangedFromSettings(old, changed map[http2.SettingID]uint32) *RemoteSettingsChanged {
	return &RemoteSettingsChanged{
		BaseEvent:       NewBaseEvent(EventTypeRemoteSettingsChanged),
		ChangedSettings: settings.Diff(old, changed),
	}
}

// Validate validates the remote settings changed event
func (e *RemoteSettingsChanged) Validate() error {
	if err := e.BaseEvent.validate(EventTypeRemoteSettingsChanged); err != nil {
		return err
	}
	return validateChanges(EventTypeRemoteSettingsChanged, e.ChangedSettings)
}

// ToJSON serializes the event to JSON
func (e *RemoteSettingsChanged) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *RemoteSettingsChanged) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *RemoteSettingsChanged) String() string {
	return fmt.Sprintf("<RemoteSettingsChanged changed_settings:%s>", e.ChangedSettings)
}

func (*RemoteSettingsChanged) event() {}

// SettingsAcknowledged is fired when the peer acknowledges settings the
// local side sent. It carries those settings in the same form as
// RemoteSettingsChanged.
type SettingsAcknowledged struct {
	BaseEvent
	ChangedSettings settings.Changes `json:"changed_settings"`
}

// NewSettingsAcknowledged creates a settings acknowledged event
func NewSettingsAcknowledged(changes settings.Changes) *SettingsAcknowledged {
	if changes == nil {
		changes = settings.Changes{}
	}
	return &SettingsAcknowledged{
		BaseEvent:       NewBaseEvent(EventTypeSettingsAcknowledged),
		ChangedSettings: changes.Clone(),
	}
}

// Validate validates the settings acknowledged event
func (e *SettingsAcknowledged) Validate() error {
	if err := e.BaseEvent.validate(EventTypeSettingsAcknowledged); err != nil {
		return err
	}
	return validateChanges(EventTypeSettingsAcknowledged, e.ChangedSettings)
}

// ToJSON serializes the event to JSON
func (e *SettingsAcknowledged) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *SettingsAcknowledged) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *SettingsAcknowledged) String() string {
	return fmt.Sprintf("<SettingsAcknowledged changed_settings:%s>", e.ChangedSettings)
}

func (*SettingsAcknowledged) event() {}

func validateChanges(t EventType, changes settings.Changes) error {
	if changes == nil {
		return newValidationError(t, "changed_settings", "is required")
	}
	if err := changes.Validate(); err != nil {
		return newValidationError(t, "changed_settings", err.Error())
	}
	return nil
}

// PingReceived is fired when a PING arrives. The acknowledgment carrying the
// same opaque data is sent automatically.
type PingReceived struct {
	BaseEvent
	PingData [core.PingDataLength]byte `json:"ping_data"`
}

// NewPingReceived creates a ping received event
func NewPingReceived(data [core.PingDataLength]byte) *PingReceived {
	return &PingReceived{
		BaseEvent: NewBaseEvent(EventTypePingReceived),
		PingData:  data,
	}
}

// Validate validates the ping received event
func (e *PingReceived) Validate() error {
	return e.BaseEvent.validate(EventTypePingReceived)
}

// ToJSON serializes the event to JSON
func (e *PingReceived) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *PingReceived) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *PingReceived) String() string {
	return fmt.Sprintf("<PingReceived ping_data:%s>", reprOrNone(e.PingData[:]))
}

func (*PingReceived) event() {}

// PingAckReceived is fired when a PING acknowledgment arrives. Its opaque
// data lets the caller match it to the PING it sent, e.g. to measure RTT.
type PingAckReceived struct {
	BaseEvent
	PingData [core.PingDataLength]byte `json:"ping_data"`
}

// NewPingAckReceived creates a ping ack received event
func NewPingAckReceived(data [core.PingDataLength]byte) *PingAckReceived {
	return &PingAckReceived{
		BaseEvent: NewBaseEvent(EventTypePingAckReceived),
		PingData:  data,
	}
}

// Validate validates the ping ack received event
func (e *PingAckReceived) Validate() error {
	return e.BaseEvent.validate(EventTypePingAckReceived)
}

// ToJSON serializes the event to JSON
func (e *PingAckReceived) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *PingAckReceived) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *PingAckReceived) String() string {
	return fmt.Sprintf("<PingAckReceived ping_data:%s>", reprOrNone(e.PingData[:]))
}

func (*PingAckReceived) event() {}

// ConnectionTerminated is fired when the peer tears the connection down with
// GOAWAY. No further events are valid on the connection afterwards; a new
// connection must be established.
type ConnectionTerminated struct {
	BaseEvent

	// ErrorCode may be outside the registered error code set when
	// extensions are in use.
	ErrorCode http2.ErrCode `json:"error_code"`

	// LastStreamID is the last stream the peer processed. Requests on
	// higher streams never reached it and can be retried.
	LastStreamID uint32 `json:"last_stream_id"`

	// AdditionalData is the GOAWAY debug data, nil when absent.
	AdditionalData []byte `json:"additional_data"`
}

// NewConnectionTerminated creates a connection terminated event
func NewConnectionTerminated(code http2.ErrCode, lastStreamID uint32, additionalData []byte) *ConnectionTerminated {
	return &ConnectionTerminated{
		BaseEvent:      NewBaseEvent(EventTypeConnectionTerminated),
		ErrorCode:      code,
		LastStreamID:   lastStreamID,
		AdditionalData: cloneBytes(additionalData),
	}
}

// Validate validates the connection terminated event
func (e *ConnectionTerminated) Validate() error {
	if err := e.BaseEvent.validate(EventTypeConnectionTerminated); err != nil {
		return err
	}
	if e.LastStreamID > core.MaxStreamID {
		return newValidationError(EventTypeConnectionTerminated, "last_stream_id", fmt.Sprintf("%d is out of range", e.LastStreamID))
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *ConnectionTerminated) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *ConnectionTerminated) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *ConnectionTerminated) String() string {
	var additional []byte
	if len(e.AdditionalData) > 0 {
		additional = preview(e.AdditionalData)
	}
	return fmt.Sprintf("<ConnectionTerminated error_code:%s, last_stream_id:%d, additional_data:%s>",
		e.ErrorCode, e.LastStreamID, reprOrNone(additional))
}

func (*ConnectionTerminated) event() {}

// AlternativeServiceAvailable is fired when the peer advertises an RFC 7838
// alternative service with an ALTSVC frame. Only clients receive it.
//
// Origin is either sent by the server or inferred from the :authority of the
// request on the stream the frame arrived on. FieldValue is the unparsed
// Alt-Svc field value exactly as sent.
type AlternativeServiceAvailable struct {
	BaseEvent
	Origin     []byte `json:"origin"`
	FieldValue []byte `json:"field_value"`
}

// NewAlternativeServiceAvailable creates an alternative service event
func NewAlternativeServiceAvailable(origin, fieldValue []byte) *AlternativeServiceAvailable {
	return &AlternativeServiceAvailable{
		BaseEvent:  NewBaseEvent(EventTypeAlternativeServiceAvailable),
		Origin:     cloneBytes(origin),
		FieldValue: cloneBytes(fieldValue),
	}
}

// Validate validates the alternative service event
func (e *AlternativeServiceAvailable) Validate() error {
	if err := e.BaseEvent.validate(EventTypeAlternativeServiceAvailable); err != nil {
		return err
	}
	if e.Origin == nil {
		return newValidationError(EventTypeAlternativeServiceAvailable, "origin", "is required")
	}
	if e.FieldValue == nil {
		return newValidationError(EventTypeAlternativeServiceAvailable, "field_value", "is required")
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *AlternativeServiceAvailable) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *AlternativeServiceAvailable) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *AlternativeServiceAvailable) String() string {
	return fmt.Sprintf("<AlternativeServiceAvailable origin:%s, field_value:%s>",
		textRepr(e.Origin), textRepr(e.FieldValue))
}

func (*AlternativeServiceAvailable) event() {}

// UnknownFrameReceived is fired for frames of a type the connection does not
// understand, typically from HTTP/2 extensions. Frame must be an
// *http2.UnknownFrame, which is what a Framer returns for such types. The frame is ignored by the
// connection as RFC 9113 requires, and passed through unmodified here for
// callers that can handle it.
type UnknownFrameReceived struct {
	BaseEvent
	Frame http2.Frame `json:"-"`
}

// NewUnknownFrameReceived creates an unknown frame event
func NewUnknownFrameReceived(frame http2.Frame) *UnknownFrameReceived {
	return &UnknownFrameReceived{
		BaseEvent: NewBaseEvent(EventTypeUnknownFrameReceived),
		Frame:     frame,
	}
}

// Validate validates the unknown frame event
func (e *UnknownFrameReceived) Validate() error {
	if err := e.BaseEvent.validate(EventTypeUnknownFrameReceived); err != nil {
		return err
	}
	if e.Frame == nil {
		return newValidationError(EventTypeUnknownFrameReceived, "frame", "is required")
	}
	if uf, ok := e.Frame.(*http2.UnknownFrame); !ok || uf == nil {
		return newValidationError(EventTypeUnknownFrameReceived, "frame",
			fmt.Sprintf("%T is not an unknown frame", e.Frame))
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *UnknownFrameReceived) ToJSON() ([]byte, error) { return json.Marshal(e) }

// ToProtobuf converts the event to a protobuf Struct
func (e *UnknownFrameReceived) ToProtobuf() (*structpb.Struct, error) { return toStruct(e) }

func (e *UnknownFrameReceived) String() string {
	return "<UnknownFrameReceived>"
}

func (*UnknownFrameReceived) event() {}

// frameTypeName renders a frame type for logs.
func frameTypeName(t http2.FrameType) string {
	return strings.ToUpper(t.String())
}
