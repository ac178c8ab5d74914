package scenario

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/settings"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of batches observed on one connection.
type Scenario struct {
	Name string `yaml:"name" json:"name"`

	// LocalClient is true when the scripted events are seen by a client.
	LocalClient bool `yaml:"local_client" json:"local_client"`

	Batches []ScriptedBatch `yaml:"batches" json:"batches"`
}

// ScriptedBatch describes one batch.
type ScriptedBatch struct {
	ID     string `yaml:"id,omitempty" json:"id,omitempty"`
	Events []Step `yaml:"events" json:"events"`
}

// Step describes one primary event. Which fields apply depends on Type,
// which is an event type name such as DATA_RECEIVED.
type Step struct {
	Type string `yaml:"type" json:"type"`

	Stream  uint32   `yaml:"stream,omitempty" json:"stream,omitempty"`
	Headers []Header `yaml:"headers,omitempty" json:"headers,omitempty"`

	// EndStream attaches a StreamEnded to header blocks and data.
	EndStream bool      `yaml:"end_stream,omitempty" json:"end_stream,omitempty"`
	Priority  *Priority `yaml:"priority,omitempty" json:"priority,omitempty"`

	// Data is the payload as text; DataHex as hexadecimal.
	Data    string `yaml:"data,omitempty" json:"data,omitempty"`
	DataHex string `yaml:"data_hex,omitempty" json:"data_hex,omitempty"`
	Padding int    `yaml:"padding,omitempty" json:"padding,omitempty"`

	Delta uint32 `yaml:"delta,omitempty" json:"delta,omitempty"`

	// Settings are the values announced in a SETTINGS frame, keyed by
	// setting name or number.
	Settings map[string]uint32 `yaml:"settings,omitempty" json:"settings,omitempty"`

	// ErrorCode is an error code name such as CANCEL, or a number.
	ErrorCode  string `yaml:"error_code,omitempty" json:"error_code,omitempty"`
	LocalReset bool   `yaml:"local_reset,omitempty" json:"local_reset,omitempty"`

	PingData string `yaml:"ping_data,omitempty" json:"ping_data,omitempty"`

	PushedStream uint32 `yaml:"pushed_stream,omitempty" json:"pushed_stream,omitempty"`
	LastStream   uint32 `yaml:"last_stream,omitempty" json:"last_stream,omitempty"`

	Origin     string `yaml:"origin,omitempty" json:"origin,omitempty"`
	FieldValue string `yaml:"field_value,omitempty" json:"field_value,omitempty"`

	FrameType  uint8  `yaml:"frame_type,omitempty" json:"frame_type,omitempty"`
	FrameFlags uint8  `yaml:"frame_flags,omitempty" json:"frame_flags,omitempty"`
	PayloadHex string `yaml:"payload_hex,omitempty" json:"payload_hex,omitempty"`
}

// Header is one header field.
type Header struct {
	Name      string `yaml:"name" json:"name"`
	Value     string `yaml:"value" json:"value"`
	Sensitive bool   `yaml:"sensitive,omitempty" json:"sensitive,omitempty"`
}

// Priority is the priority information carried by a header block.
type Priority struct {
	Weight    int    `yaml:"weight" json:"weight"`
	DependsOn uint32 `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Exclusive bool   `yaml:"exclusive,omitempty" json:"exclusive,omitempty"`
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a scenario from YAML.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Batches) == 0 {
		return nil, fmt.Errorf("scenario %q has no batches", s.Name)
	}
	return &s, nil
}

func (h Header) field() hpack.HeaderField {
	return hpack.HeaderField{Name: h.Name, Value: h.Value, Sensitive: h.Sensitive}
}

func (s Step) headerList() []hpack.HeaderField {
	out := make([]hpack.HeaderField, 0, len(s.Headers))
	for _, h := range s.Headers {
		out = append(out, h.field())
	}
	return out
}

func (s Step) payload() ([]byte, error) {
	if s.DataHex != "" {
		if s.Data != "" {
			return nil, fmt.Errorf("data and data_hex are mutually exclusive")
		}
		b, err := hex.DecodeString(s.DataHex)
		if err != nil {
			return nil, fmt.Errorf("data_hex: %w", err)
		}
		return b, nil
	}
	return []byte(s.Data), nil
}

func (s Step) settingValues() (map[http2.SettingID]uint32, error) {
	out := make(map[http2.SettingID]uint32, len(s.Settings))
	for name, v := range s.Settings {
		id, err := settings.ParseID(name)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

func (s Step) pingData() ([8]byte, error) {
	var out [8]byte
	if s.PingData == "" {
		return out, nil
	}
	b, err := hex.DecodeString(s.PingData)
	if err != nil {
		return out, fmt.Errorf("ping_data: %w", err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("ping_data: got %d bytes, want %d", len(b), len(out))
	}
	copy(out[:], b)
	return out, nil
}

// errCodes maps registered error code names to codes.
var errCodes = func() map[string]http2.ErrCode {
	m := make(map[string]http2.ErrCode)
	for c := http2.ErrCodeNo; c <= http2.ErrCodeHTTP11Required; c++ {
		m[c.String()] = c
	}
	return m
}()

// ParseErrCode accepts a registered name such as CANCEL or REFUSED_STREAM,
// or a decimal or 0x-prefixed number for codes outside the registry.
func ParseErrCode(s string) (http2.ErrCode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return http2.ErrCodeNo, nil
	}
	if c, ok := errCodes[strings.ToUpper(s)]; ok {
		return c, nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown error code %q", s)
	}
	return http2.ErrCode(n), nil
}

func (s Step) eventType() events.EventType {
	return events.EventType(strings.ToUpper(strings.TrimSpace(s.Type)))
}
