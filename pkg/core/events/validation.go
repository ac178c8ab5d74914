package events

import (
	"fmt"
	"reflect"
)

// ValidationError reports a field that is missing or out of range
type ValidationError struct {
	EventType EventType `json:"event_type"`
	Field     string    `json:"field"`
	Message   string    `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.EventType.RecordName(), e.Field, e.Message)
}

func newValidationError(t EventType, field, message string) *ValidationError {
	return &ValidationError{EventType: t, Field: field, Message: message}
}

// validateNested checks nested events attached to a primary event on
// streamID. Either argument may be nil.
func validateNested(t EventType, streamID uint32, ended *StreamEnded, priority *PriorityUpdated) error {
	if ended != nil {
		if err := ended.Validate(); err != nil {
			return newValidationError(t, "stream_ended", err.Error())
		}
		if ended.StreamID != streamID {
			return newValidationError(t, "stream_ended",
				fmt.Sprintf("refers to stream %d, want %d", ended.StreamID, streamID))
		}
	}
	if priority != nil {
		if err := priority.Validate(); err != nil {
			return newValidationError(t, "priority_updated", err.Error())
		}
		if priority.StreamID != streamID {
			return newValidationError(t, "priority_updated",
				fmt.Sprintf("refers to stream %d, want %d", priority.StreamID, streamID))
		}
	}
	return nil
}

// BatchError reports the position of the event that made a batch invalid
type BatchError struct {
	Index     int
	EventType EventType
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("event %d (%s): %v", e.Index, e.EventType, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// nestedOf returns the nested events carried by e.
func nestedOf(e Event) (*StreamEnded, *PriorityUpdated) {
	switch ev := e.(type) {
	case HeaderBlockEvent:
		return ev.NestedStreamEnded(), ev.NestedPriorityUpdated()
	case StreamTerminator:
		return ev.NestedStreamEnded(), nil
	default:
		return nil, nil
	}
}

// ValidateBatch checks the guarantees a producer must uphold before handing
// events to a caller:
//
//   - every event validates, so no field is unset or out of range;
//   - under NestAndFlatten, every nested StreamEnded or PriorityUpdated also
//     appears later in the batch with the same stream id, and each flat
//     occurrence stands for one nested reference only;
//   - a ConnectionTerminated event, if present, is the last event.
func ValidateBatch(events []Event, policy NestingPolicy) error {
	if !policy.Valid() {
		return fmt.Errorf("invalid nesting policy %d", int(policy))
	}

	claimed := make(map[int]bool)
	for i, event := range events {
		if isNilEvent(event) {
			return &BatchError{Index: i, Err: fmt.Errorf("event is nil")}
		}
		if err := event.Validate(); err != nil {
			return &BatchError{Index: i, EventType: event.Type(), Err: err}
		}

		if _, ok := event.(*ConnectionTerminated); ok && i != len(events)-1 {
			return &BatchError{
				Index:     i,
				EventType: event.Type(),
				Err:       fmt.Errorf("connection terminated but %d more events follow", len(events)-1-i),
			}
		}

		if policy != NestAndFlatten {
			continue
		}

		ended, priority := nestedOf(event)
		if ended != nil && !claimFlat(events, i+1, EventTypeStreamEnded, ended.StreamID, claimed) {
			return &BatchError{
				Index:     i,
				EventType: event.Type(),
				Err:       fmt.Errorf("nested stream_ended for stream %d missing from batch", ended.StreamID),
			}
		}
		if priority != nil && !claimFlat(events, i+1, EventTypePriorityUpdated, priority.StreamID, claimed) {
			return &BatchError{
				Index:     i,
				EventType: event.Type(),
				Err:       fmt.Errorf("nested priority_updated for stream %d missing from batch", priority.StreamID),
			}
		}
	}

	return nil
}

// claimFlat finds the first event from index from on of type t on
// streamID that no earlier nested reference claimed, and claims it.
func claimFlat(events []Event, from int, t EventType, streamID uint32, claimed map[int]bool) bool {
	for j := from; j < len(events); j++ {
		e := events[j]
		if claimed[j] || isNilEvent(e) || e.Type() != t {
			continue
		}
		if se, ok := e.(StreamEvent); ok && se.GetStreamID() == streamID {
			claimed[j] = true
			return true
		}
	}
	return false
}

// isNilEvent reports whether e is nil or a nil record pointer.
func isNilEvent(e Event) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
