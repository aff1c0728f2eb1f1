package gateway

import "fmt"

// TransportError is a network-level failure reaching the gateway:
// connection refused, DNS, timeout. No retry is attempted here.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError is a non-2xx HTTP response from the gateway. The body
// is kept for diagnostics and never forwarded verbatim to clients.
type UpstreamError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gateway returned HTTP %d for %s", e.StatusCode, e.URL)
}

// FormatError is a 2xx response whose body is not the expected
// structured payload.
type FormatError struct {
	URL string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("gateway returned malformed payload for %s: %v", e.URL, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
