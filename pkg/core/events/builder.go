package events

import (
	"fmt"
)

// BatchBuilder assembles the events recognised while processing one unit of
// protocol input. It attaches nested events according to its NestingPolicy
// and produces a validated Batch.
//
// A BatchBuilder records the first error and ignores further calls until
// Build reports it, so calls can be chained.
type BatchBuilder struct {
	id     string
	policy NestingPolicy
	events []Event
	err    error
}

// BatchOption configures a BatchBuilder
type BatchOption func(*BatchBuilder)

// WithNestingPolicy sets the nesting policy
func WithNestingPolicy(policy NestingPolicy) BatchOption {
	return func(b *BatchBuilder) {
		b.policy = policy
	}
}

// WithBatchID sets the identifier of the next batch instead of a random UUID
func WithBatchID(id string) BatchOption {
	return func(b *BatchBuilder) {
		b.id = id
	}
}

// NewBatchBuilder creates a new batch builder
func NewBatchBuilder(options ...BatchOption) *BatchBuilder {
	b := &BatchBuilder{policy: NestAndFlatten}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Policy returns the nesting policy in use
func (b *BatchBuilder) Policy() NestingPolicy {
	return b.policy
}

// Len returns the number of events added so far
func (b *BatchBuilder) Len() int {
	return len(b.events)
}

// Err returns the first error recorded since the last Build
func (b *BatchBuilder) Err() error {
	return b.err
}

// Add appends fully constructed events as they are.
func (b *BatchBuilder) Add(events ...Event) *BatchBuilder {
	if b.err != nil {
		return b
	}
	for _, e := range events {
		if isNilEvent(e) {
			b.err = fmt.Errorf("cannot add nil event at position %d", len(b.events))
			return b
		}
		b.events = append(b.events, e)
	}
	return b
}

type composition struct {
	endStream bool
	priority  *PriorityUpdated
}

// CompositionOption describes an event that co-occurred with a header block
type CompositionOption func(*composition, uint32)

// EndStream records that the header block also ended the stream.
func EndStream() CompositionOption {
	return func(c *composition, _ uint32) {
		c.endStream = true
	}
}

// WithPriority records priority information carried by the header block.
func WithPriority(weight int, dependsOn uint32, exclusive bool) CompositionOption {
	return func(c *composition, streamID uint32) {
		c.priority = NewPriorityUpdated(streamID, weight, dependsOn, exclusive)
	}
}

// AddHeaders appends a header block event and the events that co-occurred
// with it. The order is the header event, then StreamEnded, then
// PriorityUpdated.
func (b *BatchBuilder) AddHeaders(event HeaderBlockEvent, options ...CompositionOption) *BatchBuilder {
	if b.err != nil {
		return b
	}
	if isNilEvent(event) {
		b.err = fmt.Errorf("cannot add nil header event at position %d", len(b.events))
		return b
	}

	var c composition
	for _, opt := range options {
		opt(&c, event.GetStreamID())
	}

	var nested []Event
	if c.endStream {
		ended := NewStreamEnded(event.GetStreamID())
		event.attachStreamEnded(ended)
		nested = append(nested, ended)
	}
	if c.priority != nil {
		event.attachPriorityUpdated(c.priority)
		nested = append(nested, c.priority)
	}

	b.events = append(b.events, event)
	if b.policy == NestAndFlatten {
		b.events = append(b.events, nested...)
	}
	return b
}

// AddEndOfStream appends an event that also completed its stream, attaching
// a new StreamEnded to it.
func (b *BatchBuilder) AddEndOfStream(event StreamTerminator) *BatchBuilder {
	if b.err != nil {
		return b
	}
	if isNilEvent(event) {
		b.err = fmt.Errorf("cannot add nil event at position %d", len(b.events))
		return b
	}

	ended := NewStreamEnded(event.GetStreamID())
	event.attachStreamEnded(ended)
	b.events = append(b.events, event)
	if b.policy == NestAndFlatten {
		b.events = append(b.events, ended)
	}
	return b
}

// AddData finishes a pending data event and appends it. When endStream is
// set the DATA frame also ended the stream.
func (b *BatchBuilder) AddData(pending *PendingDataReceived, endStream bool) *BatchBuilder {
	if b.err != nil {
		return b
	}
	if pending == nil {
		b.err = fmt.Errorf("cannot add nil pending data at position %d", len(b.events))
		return b
	}

	event, err := pending.Finish()
	if err != nil {
		b.err = err
		return b
	}
	if endStream {
		return b.AddEndOfStream(event)
	}
	return b.Add(event)
}

// AddReset finishes a pending stream reset and appends it.
func (b *BatchBuilder) AddReset(pending *PendingStreamReset) *BatchBuilder {
	if b.err != nil {
		return b
	}
	if pending == nil {
		b.err = fmt.Errorf("cannot add nil pending reset at position %d", len(b.events))
		return b
	}

	event, err := pending.Finish()
	if err != nil {
		b.err = err
		return b
	}
	return b.Add(event)
}

// Build validates the collected events and returns them as a Batch. The
// builder is reset either way and can be reused for the next unit of input.
func (b *BatchBuilder) Build() (*Batch, error) {
	defer b.reset()

	if b.err != nil {
		return nil, fmt.Errorf("batch construction failed: %w", b.err)
	}

	batch, err := NewBatch(b.id, b.policy, b.events)
	if err != nil {
		return nil, fmt.Errorf("batch validation failed: %w", err)
	}
	return batch, nil
}

func (b *BatchBuilder) reset() {
	b.id = ""
	b.events = nil
	b.err = nil
}
