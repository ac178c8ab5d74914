package events

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/net/http2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxUnknownFramePayload is the largest payload a frame header can describe.
const maxUnknownFramePayload = 1<<24 - 1

// EventFromJSON parses an event from JSON data and validates it. Nested
// events are decoded as copies equal in value to their flat counterparts.
func EventFromJSON(data []byte) (Event, error) {
	// First, parse the base event to determine the type
	var base struct {
		Type EventType `json:"type"`
	}

	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse event type: %w", err)
	}

	event, err := newEventOfType(base.Type)
	if err != nil {
		return nil, err
	}

	// Unmarshal into the specific event type
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("decoded event is invalid: %w", err)
	}

	return event, nil
}

// newEventOfType returns an empty record for t.
func newEventOfType(t EventType) (Event, error) {
	switch t {
	case EventTypeRequestReceived:
		return &RequestReceived{}, nil
	case EventTypeResponseReceived:
		return &ResponseReceived{}, nil
	case EventTypeTrailersReceived:
		return &TrailersReceived{}, nil
	case EventTypeInformationalResponseReceived:
		return &InformationalResponseReceived{}, nil
	case EventTypeDataReceived:
		return &DataReceived{}, nil
	case EventTypeWindowUpdated:
		return &WindowUpdated{}, nil
	case EventTypeRemoteSettingsChanged:
		return &RemoteSettingsChanged{}, nil
	case EventTypeSettingsAcknowledged:
		return &SettingsAcknowledged{}, nil
	case EventTypePingReceived:
		return &PingReceived{}, nil
	case EventTypePingAckReceived:
		return &PingAckReceived{}, nil
	case EventTypeStreamEnded:
		return &StreamEnded{}, nil
	case EventTypeStreamReset:
		return &StreamReset{}, nil
	case EventTypePushedStreamReceived:
		return &PushedStreamReceived{}, nil
	case EventTypePriorityUpdated:
		return &PriorityUpdated{}, nil
	case EventTypeConnectionTerminated:
		return &ConnectionTerminated{}, nil
	case EventTypeAlternativeServiceAvailable:
		return &AlternativeServiceAvailable{}, nil
	case EventTypeUnknownFrameReceived:
		return &UnknownFrameReceived{}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", t)
	}
}

// toStruct converts an event to a protobuf Struct through its JSON form.
func toStruct(e Event) (*structpb.Struct, error) {
	data, err := e.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", e.Type(), err)
	}
	pb := &structpb.Struct{}
	if err := protojson.Unmarshal(data, pb); err != nil {
		return nil, fmt.Errorf("failed to convert %s to protobuf: %w", e.Type(), err)
	}
	return pb, nil
}

// EventFromProtobuf converts a protobuf Struct produced by ToProtobuf back to
// an Event.
func EventFromProtobuf(pb *structpb.Struct) (Event, error) {
	if pb == nil {
		return nil, fmt.Errorf("protobuf event is nil")
	}
	data, err := protojson.Marshal(pb)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal protobuf event: %w", err)
	}
	return EventFromJSON(data)
}

// EventToProtobufBytes encodes an event in protobuf binary form
func EventToProtobufBytes(e Event) ([]byte, error) {
	pb, err := e.ToProtobuf()
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pb)
}

// EventFromProtobufBytes decodes an event encoded by EventToProtobufBytes
func EventFromProtobufBytes(data []byte) (Event, error) {
	pb := &structpb.Struct{}
	if err := proto.Unmarshal(data, pb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protobuf event: %w", err)
	}
	return EventFromProtobuf(pb)
}

// EventsToJSON encodes a sequence of events as a JSON array of raw events.
func EventsToJSON(events []Event) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(events))
	for i, e := range events {
		data, err := e.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// EventsFromJSON decodes events encoded by EventsToJSON.
func EventsFromJSON(raw []json.RawMessage) ([]Event, error) {
	out := make([]Event, 0, len(raw))
	for i, data := range raw {
		e, err := EventFromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// frameJSON is the wire form of an unknown frame.
type frameJSON struct {
	Type     http2.FrameType `json:"type"`
	TypeName string          `json:"type_name,omitempty"`
	Flags    http2.Flags     `json:"flags"`
	StreamID uint32          `json:"stream_id"`
	Payload  string          `json:"payload"`
}

type unknownFrameJSON struct {
	BaseEvent
	Frame *frameJSON `json:"frame"`
}

// MarshalJSON encodes the frame header and hex payload.
func (e *UnknownFrameReceived) MarshalJSON() ([]byte, error) {
	out := unknownFrameJSON{BaseEvent: e.BaseEvent}
	if e.Frame != nil {
		uf, ok := e.Frame.(*http2.UnknownFrame)
		if !ok || uf == nil {
			return nil, fmt.Errorf("cannot encode %T as an unknown frame", e.Frame)
		}
		fh := uf.Header()
		out.Frame = &frameJSON{
			Type:     fh.Type,
			TypeName: frameTypeName(fh.Type),
			Flags:    fh.Flags,
			StreamID: fh.StreamID,
			Payload:  hex.EncodeToString(uf.Payload()),
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the frame by reading it back through a Framer.
func (e *UnknownFrameReceived) UnmarshalJSON(data []byte) error {
	var in unknownFrameJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.BaseEvent = in.BaseEvent
	e.Frame = nil
	if in.Frame == nil {
		return nil
	}

	payload, err := hex.DecodeString(in.Frame.Payload)
	if err != nil {
		return fmt.Errorf("invalid frame payload: %w", err)
	}
	frame, err := ReadRawFrame(in.Frame.Type, in.Frame.Flags, in.Frame.StreamID, payload)
	if err != nil {
		return err
	}
	e.Frame = frame
	return nil
}

// ReadRawFrame encodes a frame from its parts and parses it back, returning
// the frame as a connection would have received it. Frame types the Framer
// does not know come back as *http2.UnknownFrame.
func ReadRawFrame(t http2.FrameType, flags http2.Flags, streamID uint32, payload []byte) (http2.Frame, error) {
	if len(payload) > maxUnknownFramePayload {
		return nil, fmt.Errorf("frame payload of %d bytes exceeds %d", len(payload), maxUnknownFramePayload)
	}

	var buf bytes.Buffer
	fr := http2.NewFramer(&buf, &buf)
	fr.SetMaxReadFrameSize(maxUnknownFramePayload)
	if err := fr.WriteRawFrame(t, flags, streamID, payload); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	frame, err := fr.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return frame, nil
}
