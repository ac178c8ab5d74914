package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/h2events/go-sdk/pkg/core"
	"github.com/h2events/go-sdk/pkg/settings"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
)

// TrackerConfig configures the connection tracker behavior
type TrackerConfig struct {
	// MaxHistorySize bounds the number of events kept for inspection.
	MaxHistorySize int `json:"max_history_size" yaml:"max_history_size"`

	// LocalClient is true when the local endpoint is the client. It picks
	// the initial value of SETTINGS_ENABLE_PUSH for both snapshots.
	LocalClient bool `json:"local_client" yaml:"local_client"`

	// VerifySettings checks that each settings diff was computed against
	// the tracked snapshot.
	VerifySettings bool `json:"verify_settings" yaml:"verify_settings"`

	// StrictStreams refuses data or header blocks on a stream that has
	// already ended or been reset.
	StrictStreams bool `json:"strict_streams" yaml:"strict_streams"`
}

// DefaultTrackerConfig returns default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxHistorySize: 1000,
		VerifySettings: true,
	}
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithLogger sets the logger used by the tracker
func WithLogger(logger logrus.FieldLogger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracker consumes the batches of one connection in order. It refuses
// anything delivered after the connection terminated, keeps both peers'
// settings current, and retains a bounded event history.
//
// Tracker is safe for concurrent use, but batches must be handed to it in
// the order they were produced.
type Tracker struct {
	config *TrackerConfig
	logger logrus.FieldLogger

	mutex       sync.RWMutex
	remote      settings.Snapshot
	local       settings.Snapshot
	history     []Event
	counts      map[EventType]int
	closed      map[uint32]struct{}
	batches     int
	events      int
	lastBatchID string
	terminated  *ConnectionTerminated
}

// NewTracker creates a tracker for a new connection
func NewTracker(config *TrackerConfig, options ...TrackerOption) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	t := &Tracker{
		config: config,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(t)
	}
	t.reset()
	return t
}

func (t *Tracker) reset() {
	t.remote = settings.DefaultSnapshot(!t.config.LocalClient)
	t.local = settings.DefaultSnapshot(t.config.LocalClient)
	t.history = make([]Event, 0)
	t.counts = make(map[EventType]int)
	t.closed = make(map[uint32]struct{})
	t.batches = 0
	t.events = 0
	t.lastBatchID = ""
	t.terminated = nil
}

// HandleBatch tracks b unless ctx is already done.
func (t *Tracker) HandleBatch(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.Track(b)
}

// Track validates a batch and folds it into the connection state. A batch
// that fails is not applied at all.
func (t *Tracker) Track(b *Batch) error {
	if b == nil {
		return fmt.Errorf("cannot track nil batch")
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	log := t.logger.WithField("batch_id", b.ID())

	if t.terminated != nil {
		err := &core.ProtocolError{
			Operation: "track",
			Code:      t.terminated.ErrorCode,
			Err:       core.ErrConnectionTerminated,
		}
		log.WithError(err).Warn("batch delivered after connection terminated")
		return err
	}

	if err := b.Validate(); err != nil {
		log.WithError(err).Warn("rejected invalid batch")
		return fmt.Errorf("batch %s: %w", b.ID(), err)
	}

	remote, local := t.remote, t.local
	newlyClosed := make(map[uint32]struct{})
	for i, event := range b.events {
		var err error
		switch ev := event.(type) {
		case *RemoteSettingsChanged:
			remote, err = t.applySettings(remote, ev.ChangedSettings)
		case *SettingsAcknowledged:
			local, err = t.applySettings(local, ev.ChangedSettings)
		}
		if err == nil && t.config.StrictStreams {
			err = t.checkOpen(event, newlyClosed)
		}
		if err != nil {
			log.WithFields(logrus.Fields{
				"event_type": event.Type(),
				"index":      i,
			}).WithError(err).Warn("rejected batch")
			return &BatchError{Index: i, EventType: event.Type(), Err: err}
		}
		markClosed(event, newlyClosed)
	}

	// Commit
	t.remote, t.local = remote, local
	for id := range newlyClosed {
		t.closed[id] = struct{}{}
	}
	for _, event := range b.events {
		t.counts[event.Type()]++
		t.history = append(t.history, event)

		fields := logrus.Fields{"event_type": event.Type()}
		if se, ok := event.(StreamEvent); ok {
			fields["stream_id"] = se.GetStreamID()
		}
		log.WithFields(fields).Debug("tracked event")
	}
	if limit := t.config.MaxHistorySize; limit > 0 && len(t.history) > limit {
		// Remove oldest events
		t.history = append([]Event(nil), t.history[len(t.history)-limit:]...)
	}
	t.batches++
	t.events += b.Len()
	t.lastBatchID = b.ID()

	if ct, ok := b.Terminated(); ok {
		t.terminated = ct
		log.WithFields(logrus.Fields{
			"error_code":     ct.ErrorCode.String(),
			"last_stream_id": ct.LastStreamID,
		}).Info("connection terminated")
	}

	return nil
}

func (t *Tracker) applySettings(current settings.Snapshot, changes settings.Changes) (settings.Snapshot, error) {
	if t.config.VerifySettings {
		if err := current.Consistent(changes); err != nil {
			return current, fmt.Errorf("settings diff does not match tracked values: %w", err)
		}
	}
	return current.With(changes), nil
}

// checkOpen refuses data and header blocks on streams known to be closed.
func (t *Tracker) checkOpen(event Event, newlyClosed map[uint32]struct{}) error {
	var streamID uint32
	switch ev := event.(type) {
	case *DataReceived:
		streamID = ev.StreamID
	case HeaderBlockEvent:
		streamID = ev.GetStreamID()
	default:
		return nil
	}
	_, closedBefore := t.closed[streamID]
	_, closedNow := newlyClosed[streamID]
	if closedBefore || closedNow {
		return &core.ProtocolError{
			Operation: fmt.Sprintf("%s on stream %d", event.Type(), streamID),
			Code:      http2.ErrCodeStreamClosed,
			Err:       core.ErrStreamClosed,
		}
	}
	return nil
}

func markClosed(event Event, closed map[uint32]struct{}) {
	switch ev := event.(type) {
	case *StreamEnded:
		closed[ev.StreamID] = struct{}{}
	case *StreamReset:
		closed[ev.StreamID] = struct{}{}
	default:
		if ended, _ := nestedOf(event); ended != nil {
			closed[ended.StreamID] = struct{}{}
		}
	}
}

// Terminated returns the ConnectionTerminated event that ended the
// connection, if one has been tracked.
func (t *Tracker) Terminated() (*ConnectionTerminated, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.terminated, t.terminated != nil
}

// RemoteSettings returns the peer's current settings
func (t *Tracker) RemoteSettings() settings.Snapshot {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.remote
}

// LocalSettings returns the local settings the peer has acknowledged
func (t *Tracker) LocalSettings() settings.Snapshot {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.local
}

// StreamClosed reports whether the stream has ended or been reset
func (t *Tracker) StreamClosed(streamID uint32) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	_, ok := t.closed[streamID]
	return ok
}

// History returns the retained events, oldest first
func (t *Tracker) History() []Event {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	// Return a copy to prevent external modification
	history := make([]Event, len(t.history))
	copy(history, t.history)
	return history
}

// HistoryByType returns the retained events of one type
func (t *Tracker) HistoryByType(eventType EventType) []Event {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	var events []Event
	for _, event := range t.history {
		if event.Type() == eventType {
			events = append(events, event)
		}
	}
	return events
}

// LastEvent returns the most recent event, or nil
func (t *Tracker) LastEvent() Event {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if len(t.history) == 0 {
		return nil
	}
	return t.history[len(t.history)-1]
}

// Count returns how many events of the given type have been tracked
func (t *Tracker) Count(eventType EventType) int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.counts[eventType]
}

// TrackerInfo summarises the tracked connection
type TrackerInfo struct {
	TotalBatches   int               `json:"total_batches"`
	TotalEvents    int               `json:"total_events"`
	RetainedEvents int               `json:"retained_events"`
	ClosedStreams  int               `json:"closed_streams"`
	LastBatchID    string            `json:"last_batch_id,omitempty"`
	Counts         map[EventType]int `json:"counts"`
	Terminated     bool              `json:"terminated"`
	ErrorCode      *http2.ErrCode    `json:"error_code,omitempty"`
	RemoteSettings settings.Snapshot `json:"remote_settings"`
	LocalSettings  settings.Snapshot `json:"local_settings"`
}

// Info returns a summary of the tracked connection
func (t *Tracker) Info() *TrackerInfo {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	counts := make(map[EventType]int, len(t.counts))
	for k, v := range t.counts {
		counts[k] = v
	}
	info := &TrackerInfo{
		TotalBatches:   t.batches,
		TotalEvents:    t.events,
		RetainedEvents: len(t.history),
		ClosedStreams:  len(t.closed),
		LastBatchID:    t.lastBatchID,
		Counts:         counts,
		Terminated:     t.terminated != nil,
		RemoteSettings: t.remote,
		LocalSettings:  t.local,
	}
	if t.terminated != nil {
		code := t.terminated.ErrorCode
		info.ErrorCode = &code
	}
	return info
}

// Reset returns the tracker to the state of a new connection
func (t *Tracker) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.reset()
}
