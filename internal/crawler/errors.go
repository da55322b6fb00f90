package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTitle is matched by an ExtractionError raised for a missing title.
	ErrNoTitle = errors.New("no title found")
	// ErrNoContent is matched by an ExtractionError raised for missing content.
	ErrNoContent = errors.New("no content found")
	// ErrIndexOutOfRange guards against a corrupted list cursor.
	ErrIndexOutOfRange = errors.New("index out of range for current")

	errContentRequired = errors.New("content is expected")
)

// ConfigError reports an invalid configuration value. It is only produced
// while a task is being built.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FetchError reports a failed page fetch. Item is the 0-based fetched-item
// counter at the time of failure.
type FetchError struct {
	URL        string
	Item       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("item(%04d) %q: status %d: %v", e.Item, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("item(%04d) %q: %v", e.Item, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError reports a selector that matched nothing. Markup holds the
// raw document for diagnosis.
type ExtractionError struct {
	URL    string
	Reason error
	Markup string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%v: %s", e.Reason, e.URL)
}

func (e *ExtractionError) Unwrap() error { return e.Reason }

// WriteError reports a failure of the output sink.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write output %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
