package transport

import "fmt"

// StatusError reports a non-2xx response. The body is preserved because
// OAuth2 token endpoints put protocol error codes in the response payload.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}
