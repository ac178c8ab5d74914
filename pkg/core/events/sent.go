package events

// HeadersSentKind tags a header block the local endpoint sent. Producers use
// it to pick the validation rules for outgoing headers. It is not an Event
// and never appears in a Batch.
type HeadersSentKind uint8

const (
	// HeadersSent is a header block with no more specific classification.
	HeadersSent HeadersSentKind = iota
	ResponseSent
	RequestSent
	TrailersSent
	PushedRequestSent
)

func (k HeadersSentKind) String() string {
	switch k {
	case HeadersSent:
		return "HeadersSent"
	case ResponseSent:
		return "ResponseSent"
	case RequestSent:
		return "RequestSent"
	case TrailersSent:
		return "TrailersSent"
	case PushedRequestSent:
		return "PushedRequestSent"
	default:
		return "UnknownHeadersSent"
	}
}

// Valid reports whether k is one of the defined kinds.
func (k HeadersSentKind) Valid() bool {
	return k <= PushedRequestSent
}

// IsRequest reports whether the block is request headers, pushed or not.
func (k HeadersSentKind) IsRequest() bool {
	return k == RequestSent || k == PushedRequestSent
}

// IsTrailers reports whether the block is trailers.
func (k HeadersSentKind) IsTrailers() bool {
	return k == TrailersSent
}

// RequiresPseudoHeaders reports whether the block must carry pseudo-header
// fields. Trailers must not carry any.
func (k HeadersSentKind) RequiresPseudoHeaders() bool {
	return k == RequestSent || k == ResponseSent || k == PushedRequestSent
}
