package settings

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/http2"
)

// ChangedSetting is the old and new value of a single setting.
type ChangedSetting struct {
	Setting http2.SettingID `json:"setting"`

	// OriginalValue is nil when the setting had no previously known value.
	OriginalValue *uint32 `json:"original_value"`

	NewValue uint32 `json:"new_value"`
}

// NewChangedSetting creates a change record. Pass hadOriginal=false when the
// setting was never set before.
func NewChangedSetting(id http2.SettingID, original uint32, hadOriginal bool, newValue uint32) ChangedSetting {
	cs := ChangedSetting{Setting: id, NewValue: newValue}
	if hadOriginal {
		cs.OriginalValue = &original
	}
	return cs
}

// Original returns the previous value and whether there was one.
func (c ChangedSetting) Original() (uint32, bool) {
	if c.OriginalValue == nil {
		return 0, false
	}
	return *c.OriginalValue, true
}

// Equal reports whether c and o describe the same change.
func (c ChangedSetting) Equal(o ChangedSetting) bool {
	cv, cok := c.Original()
	ov, ook := o.Original()
	return c.Setting == o.Setting && c.NewValue == o.NewValue && cok == ook && cv == ov
}

func (c ChangedSetting) String() string {
	name, _ := Name(c.Setting)
	original := "None"
	if v, ok := c.Original(); ok {
		original = strconv.FormatUint(uint64(v), 10)
	}
	return fmt.Sprintf("ChangedSetting(setting=%s, original_value=%s, new_value=%d)", name, original, c.NewValue)
}

// Changes maps a setting identifier to its change. Keys are unique by
// construction.
type Changes map[http2.SettingID]ChangedSetting

// Diff builds the changes for one SETTINGS update.
//
// old must be the complete set of previously known values (defaults
// included); changed holds only the values announced in this update. The
// result has exactly one entry per key of changed, and no other entries.
func Diff(old map[http2.SettingID]uint32, changed map[http2.SettingID]uint32) Changes {
	out := make(Changes, len(changed))
	for id, newValue := range changed {
		original, ok := old[id]
		out[id] = NewChangedSetting(id, original, ok, newValue)
	}
	return out
}

// IDs returns the changed identifiers in ascending order.
func (c Changes) IDs() []http2.SettingID {
	ids := make([]http2.SettingID, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns a deep copy of c.
func (c Changes) Clone() Changes {
	if c == nil {
		return nil
	}
	out := make(Changes, len(c))
	for id, cs := range c {
		if v, ok := cs.Original(); ok {
			cs.OriginalValue = &v
		}
		out[id] = cs
	}
	return out
}

// Equal reports whether both maps hold the same changes.
func (c Changes) Equal(o Changes) bool {
	if len(c) != len(o) {
		return false
	}
	for id, cs := range c {
		other, ok := o[id]
		if !ok || !cs.Equal(other) {
			return false
		}
	}
	return true
}

// Validate checks that every entry is keyed by its own setting.
func (c Changes) Validate() error {
	for id, cs := range c {
		if cs.Setting != id {
			name, _ := Name(id)
			return fmt.Errorf("changed setting keyed by %s describes setting %d", name, uint16(cs.Setting))
		}
	}
	return nil
}

func (c Changes) String() string {
	parts := make([]string, 0, len(c))
	for _, id := range c.IDs() {
		parts = append(parts, c[id].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the changes as a list ordered by setting identifier.
func (c Changes) MarshalJSON() ([]byte, error) {
	list := make([]ChangedSetting, 0, len(c))
	for _, id := range c.IDs() {
		list = append(list, c[id])
	}
	return json.Marshal(list)
}

// UnmarshalJSON decodes the list form produced by MarshalJSON. Duplicate
// identifiers are rejected.
func (c *Changes) UnmarshalJSON(data []byte) error {
	var list []ChangedSetting
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	out := make(Changes, len(list))
	for _, cs := range list {
		if _, dup := out[cs.Setting]; dup {
			return fmt.Errorf("duplicate changed setting %d", uint16(cs.Setting))
		}
		out[cs.Setting] = cs
	}
	*c = out
	return nil
}

type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value uint32 `json:"value"`
}

// JSONPatch renders the changes as an RFC 6902 document against the JSON
// form of a Snapshot. Settings without an original value become "add"
// operations, the rest "replace".
func (c Changes) JSONPatch() ([]byte, error) {
	ops := make([]patchOp, 0, len(c))
	for _, id := range c.IDs() {
		cs := c[id]
		op := "replace"
		if _, ok := cs.Original(); !ok {
			op = "add"
		}
		ops = append(ops, patchOp{
			Op:    op,
			Path:  "/" + strconv.FormatUint(uint64(id), 10),
			Value: cs.NewValue,
		})
	}
	return json.Marshal(ops)
}
