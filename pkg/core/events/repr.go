package events

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/net/http2/hpack"
)

// reprPreviewLength is how many leading payload bytes String renders.
const reprPreviewLength = 20

// SafeRepr converts binary data into lowercase hexadecimal text that is safe
// to print anywhere. It reports ok=false for nil input, which stands for an
// absent payload; an empty non-nil slice yields ("", true).
//
// SafeRepr is meant for logs and debugging output, never for wire encoding.
func SafeRepr(data []byte) (repr string, ok bool) {
	if data == nil {
		return "", false
	}
	return hex.EncodeToString(data), true
}

// reprOrNone renders SafeRepr output with "None" for an absent payload.
func reprOrNone(data []byte) string {
	if s, ok := SafeRepr(data); ok {
		return s
	}
	return "None"
}

// preview returns at most the first reprPreviewLength bytes of data,
// preserving nil.
func preview(data []byte) []byte {
	if len(data) > reprPreviewLength {
		return data[:reprPreviewLength]
	}
	return data
}

// textRepr renders bytes as text with invalid UTF-8 sequences dropped.
func textRepr(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

// headersRepr renders a header list as [(name, value), ...]. Sensitive
// values are masked.
func headersRepr(headers []hpack.HeaderField) string {
	if headers == nil {
		return "None"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, hf := range headers {
		if i > 0 {
			sb.WriteString(", ")
		}
		value := hf.Value
		if hf.Sensitive {
			value = "***"
		}
		sb.WriteByte('(')
		sb.WriteString(strconv.Quote(hf.Name))
		sb.WriteString(", ")
		sb.WriteString(strconv.Quote(value))
		sb.WriteByte(')')
	}
	sb.WriteByte(']')
	return sb.String()
}

// cloneBytes copies b, preserving nil.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// cloneHeaders copies a header list, preserving nil.
func cloneHeaders(h []hpack.HeaderField) []hpack.HeaderField {
	if h == nil {
		return nil
	}
	out := make([]hpack.HeaderField, len(h))
	copy(out, h)
	return out
}
