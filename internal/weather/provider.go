package weather

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedResponse marks a provider payload that cannot be turned into
// observations (missing coordinates, missing timestamp array). It is isolated
// to the offending city and never aborts a job run.
var ErrMalformedResponse = errors.New("malformed provider response")

// CurrentProvider fetches the single most recent reading for a location.
type CurrentProvider interface {
	Name() string
	FetchCurrent(ctx context.Context, loc Location) (Observation, error)
}

// RangeProvider fetches one reading per hour across an inclusive date range
// with a single call per location.
type RangeProvider interface {
	Name() string
	FetchRange(ctx context.Context, loc Location, start, end time.Time) ([]Observation, error)
}

// Store is the persistence contract the ingestion jobs and the query router
// need. The asymmetry between UpsertOverwrite and InsertIfAbsent is the core
// correctness invariant: live data always wins, backfill only fills gaps.
type Store interface {
	// UpsertOverwrite inserts, or replaces every field when the
	// (city, timestamp) key already exists.
	UpsertOverwrite(ctx context.Context, obs Observation) error

	// InsertIfAbsent inserts the batch in one transaction, silently skipping
	// rows whose key already exists. Returns the number actually inserted.
	InsertIfAbsent(ctx context.Context, batch []Observation) (int, error)

	// Latest returns the most recent observation for a city, or
	// store.ErrNotFound when the city has no rows.
	Latest(ctx context.Context, city string) (Observation, error)

	// Range returns observations since the given time, newest first. An empty
	// result is not an error.
	Range(ctx context.Context, city string, since time.Time) ([]Observation, error)

	// IsEmpty reports whether the store holds zero observations.
	IsEmpty(ctx context.Context) (bool, error)
}
