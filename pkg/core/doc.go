// Package core provides the foundational types shared by the HTTP/2 event
// model packages.
//
// It defines the protocol limits that event validation relies on (stream
// identifier range, flow-control window bounds, priority weights) and the
// error types returned across the SDK. The event records themselves live in
// the events subpackage.
//
// Example usage:
//
//	import "github.com/h2events/go-sdk/pkg/core"
//
//	if !core.ValidStreamID(id) {
//		return &core.ProtocolError{
//			Operation: "stream",
//			Code:      http2.ErrCodeProtocol,
//			Err:       fmt.Errorf("stream id %d out of range", id),
//		}
//	}
package core
