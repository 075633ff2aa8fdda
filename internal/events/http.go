package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when a GraphQL HTTP request is received.
// RequestID matches the id assigned to the request context, so
// subscribers can relate the start and finish of one request.
type HTTPStart struct {
	RequestID int64
	Request   *http.Request
}

// HTTPFinish is emitted after the handler completes.
type HTTPFinish struct {
	RequestID int64
	Request   *http.Request
	Status    int
	Duration  time.Duration
}
