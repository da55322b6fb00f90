package progress

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunDone      Stage = "RUN_DONE"
	StageRunError     Stage = "RUN_ERROR"
	StageRunCancelled Stage = "RUN_CANCELLED"
	StageFetchStart   Stage = "FETCH_START"
	StageFetchDone    Stage = "FETCH_DONE"
	// StageItemDone marks the list cursor moving past an entry.
	StageItemDone Stage = "ITEM_DONE"
	// StageNextPage marks a list slot rewritten with a pagination link.
	StageNextPage Stage = "NEXT_PAGE"
	// StageSubPages marks sub pages discovered below a list entry.
	StageSubPages Stage = "SUB_PAGES"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single step of crawl progress.
type Event struct {
	// RunID identifies one Process call using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Site is the lowercase host of URL, set on fetch events.
	Site string
	URL  string
	// Item is the 0-based fetched-item counter when the event was raised.
	Item int
	// Cursor is the list position after the step; Total is the list length.
	Cursor int
	Total  int
	// Count carries stage-specific quantities such as discovered sub pages.
	Count       int
	Bytes       int64
	StatusClass StatusClass
	Dur         time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError, StageRunCancelled,
		StageItemDone, StageNextPage, StageSubPages:
	case StageFetchStart:
		if e.URL == "" {
			return errors.New("fetch start requires url")
		}
	case StageFetchDone:
		if e.URL == "" {
			return errors.New("fetch done requires url")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Cursor < 0 || e.Total < 0 {
		return errors.New("cursor and total must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID back to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}

// SiteOf extracts a lowercase hostname from rawURL, or "unknown".
func SiteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
