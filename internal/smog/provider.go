package smog

import (
	"context"
)

// Fetcher abstracts the external air-quality service.
type Fetcher interface {
	// FetchSample parses the coordinate and fetches its reading.
	FetchSample(ctx context.Context, coord Coordinate) (Sample, error)
	// FetchVariation asks the service how the given readings might fluctuate.
	// The reply has the same length and order as samples.
	FetchVariation(ctx context.Context, samples []Sample) ([]Sample, error)
}

// Labeler turns a location into a human-readable place name.
type Labeler interface {
	Label(ctx context.Context, loc Location) (string, error)
}

// SessionStore is the contract the in-memory session store must satisfy.
type SessionStore interface {
	Create() (*Session, error)
	Get(id string) (*Session, error)
	Sweep() int
	Len() int
}
