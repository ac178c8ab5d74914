package core

// Protocol limits from RFC 9113.
const (
	// MaxStreamID is the largest stream identifier (31 bits).
	MaxStreamID uint32 = 1<<31 - 1

	// MaxWindowIncrement is the largest WINDOW_UPDATE increment.
	MaxWindowIncrement uint32 = 1<<31 - 1

	// MinWeight and MaxWeight bound a stream priority weight.
	MinWeight = 1
	MaxWeight = 256

	// MaxPadding is the most flow-controlled bytes a padded DATA frame may
	// carry beyond its payload: the pad length octet plus 255 padding octets.
	MaxPadding = 256

	// PingDataLength is the size of the PING opaque data.
	PingDataLength = 8
)

// ValidStreamID reports whether id names a stream (non-zero, 31 bits).
func ValidStreamID(id uint32) bool {
	return id != 0 && id <= MaxStreamID
}

// IsClientInitiated reports whether id belongs to a client-initiated stream.
func IsClientInitiated(id uint32) bool {
	return id%2 == 1
}

// ValidWeight reports whether w is a valid priority weight.
func ValidWeight(w int) bool {
	return w >= MinWeight && w <= MaxWeight
}
