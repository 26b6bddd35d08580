package resttp

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by calls on a closed Transport.
var ErrClosed = errors.New("resttp: closed")

// StatusError reports a non-2xx response. Body holds the decoded payload
// when the response was JSON, the raw text otherwise.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Status >= 500 || e.Status == 429
}
