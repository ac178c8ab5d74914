package settings

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http2"
)

// SettingEnableConnectProtocol is SETTINGS_ENABLE_CONNECT_PROTOCOL (RFC 8441).
const SettingEnableConnectProtocol http2.SettingID = 0x8

// Default values from RFC 9113 section 6.5.2 and RFC 8441.
const (
	DefaultHeaderTableSize       uint32 = 4096
	DefaultInitialWindowSize     uint32 = 65535
	DefaultMaxFrameSize          uint32 = 16384
	DefaultEnableConnectProtocol uint32 = 0
)

var settingNames = map[http2.SettingID]string{
	http2.SettingHeaderTableSize:      "HEADER_TABLE_SIZE",
	http2.SettingEnablePush:           "ENABLE_PUSH",
	http2.SettingMaxConcurrentStreams: "MAX_CONCURRENT_STREAMS",
	http2.SettingInitialWindowSize:    "INITIAL_WINDOW_SIZE",
	http2.SettingMaxFrameSize:         "MAX_FRAME_SIZE",
	http2.SettingMaxHeaderListSize:    "MAX_HEADER_LIST_SIZE",
	SettingEnableConnectProtocol:      "ENABLE_CONNECT_PROTOCOL",
}

var settingsByName = func() map[string]http2.SettingID {
	m := make(map[string]http2.SettingID, len(settingNames))
	for id, name := range settingNames {
		m[name] = id
	}
	return m
}()

// IsKnown reports whether id is one of the registered setting identifiers.
func IsKnown(id http2.SettingID) bool {
	_, ok := settingNames[id]
	return ok
}

// Name returns the symbolic name of id. Unknown identifiers are rendered as
// UNKNOWN_SETTING_<n> and ok is false.
func Name(id http2.SettingID) (name string, ok bool) {
	if name, ok := settingNames[id]; ok {
		return name, true
	}
	return fmt.Sprintf("UNKNOWN_SETTING_%d", uint16(id)), false
}

// Resolve converts a raw identifier from the wire into a SettingID.
// Identifiers outside the registered set are kept as raw numbers.
func Resolve(raw uint16) http2.SettingID {
	return http2.SettingID(raw)
}

// ParseID parses a setting identifier given either by name
// ("HEADER_TABLE_SIZE", "SETTINGS_HEADER_TABLE_SIZE", case-insensitive) or as
// a decimal or 0x-prefixed number.
func ParseID(s string) (http2.SettingID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty setting identifier")
	}

	name := strings.TrimPrefix(strings.ToUpper(s), "SETTINGS_")
	if id, ok := settingsByName[name]; ok {
		return id, nil
	}

	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown setting identifier %q", s)
	}
	return Resolve(uint16(n)), nil
}
