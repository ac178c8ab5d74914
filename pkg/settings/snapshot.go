package settings

import (
	"encoding/json"
	"fmt"
	"strconv"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"golang.org/x/net/http2"
)

// Snapshot is the complete set of known values for one peer's settings.
// A Snapshot is never modified; With returns a new one.
type Snapshot struct {
	values map[http2.SettingID]uint32
}

// NewSnapshot copies values into a new snapshot.
func NewSnapshot(values map[http2.SettingID]uint32) Snapshot {
	s := Snapshot{values: make(map[http2.SettingID]uint32, len(values))}
	for id, v := range values {
		s.values[id] = v
	}
	return s
}

// DefaultSnapshot returns the values every HTTP/2 endpoint starts with.
// SETTINGS_ENABLE_PUSH defaults to 1 for a client and 0 for a server.
// MAX_CONCURRENT_STREAMS and MAX_HEADER_LIST_SIZE have no initial value.
func DefaultSnapshot(client bool) Snapshot {
	push := uint32(0)
	if client {
		push = 1
	}
	return NewSnapshot(map[http2.SettingID]uint32{
		http2.SettingHeaderTableSize:   DefaultHeaderTableSize,
		http2.SettingEnablePush:        push,
		http2.SettingInitialWindowSize: DefaultInitialWindowSize,
		http2.SettingMaxFrameSize:      DefaultMaxFrameSize,
		SettingEnableConnectProtocol:   DefaultEnableConnectProtocol,
	})
}

// Get returns the value of id, if known.
func (s Snapshot) Get(id http2.SettingID) (uint32, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Len returns the number of known settings.
func (s Snapshot) Len() int {
	return len(s.values)
}

// Values returns a copy of the known values.
func (s Snapshot) Values() map[http2.SettingID]uint32 {
	out := make(map[http2.SettingID]uint32, len(s.values))
	for id, v := range s.values {
		out[id] = v
	}
	return out
}

// Diff computes the changes for an update against this snapshot.
func (s Snapshot) Diff(changed map[http2.SettingID]uint32) Changes {
	return Diff(s.values, changed)
}

// With returns a new snapshot with changes applied.
func (s Snapshot) With(changes Changes) Snapshot {
	next := NewSnapshot(s.values)
	for id, cs := range changes {
		next.values[id] = cs.NewValue
	}
	return next
}

// Consistent checks that every original value in changes matches this
// snapshot, i.e. that changes were computed against it.
func (s Snapshot) Consistent(changes Changes) error {
	for _, id := range changes.IDs() {
		want, had := changes[id].Original()
		got, ok := s.Get(id)
		name, _ := Name(id)
		switch {
		case had != ok:
			return fmt.Errorf("setting %s: snapshot presence %t, change presence %t", name, ok, had)
		case had && want != got:
			return fmt.Errorf("setting %s: snapshot value %d, change original %d", name, got, want)
		}
	}
	return nil
}

// Equal reports whether both snapshots hold the same values.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.values) != len(o.values) {
		return false
	}
	for id, v := range s.values {
		if ov, ok := o.values[id]; !ok || ov != v {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the snapshot as an object keyed by decimal identifier.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	obj := make(map[string]uint32, len(s.values))
	for id, v := range s.values {
		obj[strconv.FormatUint(uint64(id), 10)] = v
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var obj map[string]uint32
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	values := make(map[http2.SettingID]uint32, len(obj))
	for key, v := range obj {
		n, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid setting key %q: %w", key, err)
		}
		values[Resolve(uint16(n))] = v
	}
	s.values = values
	return nil
}

// ApplyJSONPatch applies an RFC 6902 document, such as one produced by
// Changes.JSONPatch, and returns the resulting snapshot.
func (s Snapshot) ApplyJSONPatch(doc []byte) (Snapshot, error) {
	patch, err := jsonpatch.DecodePatch(doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode settings patch: %w", err)
	}

	current, err := s.MarshalJSON()
	if err != nil {
		return Snapshot{}, err
	}

	patched, err := patch.Apply(current)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to apply settings patch: %w", err)
	}

	var next Snapshot
	if err := next.UnmarshalJSON(patched); err != nil {
		return Snapshot{}, err
	}
	return next, nil
}
