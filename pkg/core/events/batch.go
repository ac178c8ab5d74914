package events

import (
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
)

// NestingPolicy decides whether events nested in another event are also
// delivered in the flat sequence of a batch.
type NestingPolicy int

const (
	// NestAndFlatten delivers a nested StreamEnded or PriorityUpdated both
	// through the primary event and in the flat sequence, right after the
	// primary event.
	NestAndFlatten NestingPolicy = iota

	// NestOnly delivers nested events only through the primary event.
	NestOnly
)

func (p NestingPolicy) String() string {
	switch p {
	case NestAndFlatten:
		return "flatten"
	case NestOnly:
		return "nested-only"
	default:
		return fmt.Sprintf("NestingPolicy(%d)", int(p))
	}
}

// Valid reports whether p is a defined policy.
func (p NestingPolicy) Valid() bool {
	return p == NestAndFlatten || p == NestOnly
}

// ParseNestingPolicy parses "flatten" or "nested-only".
func ParseNestingPolicy(s string) (NestingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flatten", "":
		return NestAndFlatten, nil
	case "nested-only", "nested_only", "nest-only":
		return NestOnly, nil
	default:
		return 0, fmt.Errorf("unknown nesting policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (p NestingPolicy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid nesting policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *NestingPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseNestingPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Batch is the ordered sequence of events produced by processing one unit of
// protocol input. Events appear in the order the underlying occurrences were
// recognised. A Batch and its events are read-only and safe for concurrent
// readers.
type Batch struct {
	id     string
	policy NestingPolicy
	events []Event
}

// NewBatch validates events and wraps them in a batch. An empty id is
// replaced by a random UUID. The slice is copied.
func NewBatch(id string, policy NestingPolicy, events []Event) (*Batch, error) {
	if err := ValidateBatch(events, policy); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	owned := make([]Event, len(events))
	copy(owned, events)
	return &Batch{id: id, policy: policy, events: owned}, nil
}

// ID returns the batch identifier.
func (b *Batch) ID() string { return b.id }

// Policy returns the nesting policy the batch was built with.
func (b *Batch) Policy() NestingPolicy { return b.policy }

// Len returns the number of events in the flat sequence.
func (b *Batch) Len() int { return len(b.events) }

// At returns the i-th event.
func (b *Batch) At(i int) Event { return b.events[i] }

// Events returns a copy of the flat event sequence.
func (b *Batch) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// All iterates over the flat event sequence in order.
func (b *Batch) All() iter.Seq2[int, Event] {
	return func(yield func(int, Event) bool) {
		for i, e := range b.events {
			if !yield(i, e) {
				return
			}
		}
	}
}

// ByType returns the events of type t, in order.
func (b *Batch) ByType(t EventType) []Event {
	var out []Event
	for _, e := range b.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

// Terminated returns the ConnectionTerminated event ending the batch, if any.
func (b *Batch) Terminated() (*ConnectionTerminated, bool) {
	if len(b.events) == 0 {
		return nil, false
	}
	ct, ok := b.events[len(b.events)-1].(*ConnectionTerminated)
	return ct, ok
}

// Validate re-checks the batch guarantees.
func (b *Batch) Validate() error {
	return ValidateBatch(b.events, b.policy)
}

func (b *Batch) String() string {
	return fmt.Sprintf("<Batch id:%s, policy:%s, events:%d>", b.id, b.policy, len(b.events))
}
