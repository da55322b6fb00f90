package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Fetcher fetches a URL and returns the decoded body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
