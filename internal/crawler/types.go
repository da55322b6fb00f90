// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// State represents the lifecycle state of a crawl task.
type State string

// Task states. A task starts Idle and ends in exactly one of Completed,
// Aborted or Cancelled.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateCancelled State = "cancelled"
)

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	URL       string
	UserAgent string
	// Encoding is the WHATWG label the body is decoded from.
	Encoding string
}

// FetchResponse is the result returned by a Fetcher implementation. Body is
// already decoded to UTF-8.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
