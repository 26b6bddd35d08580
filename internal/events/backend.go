package events

import "time"

// BackendStart is emitted before an HTTP call to the described API.
type BackendStart struct {
	Method string
	URL    string
}

// BackendFinish is emitted after the call completes, including retries.
// Status is 0 when no response was received.
type BackendFinish struct {
	Method   string
	URL      string
	Status   int
	Attempts uint
	Err      error
	Duration time.Duration
}
