// Package events defines the payloads published on the eventbus.
package events

import (
	"net/http"
	"time"
)

// HTTPStart is published when the GraphQL endpoint receives a request.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is published once the response status is known.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}
