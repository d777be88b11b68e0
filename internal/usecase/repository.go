package usecase

import (
	"context"

	"request-profiler/internal/domain"
)

// Criteria narrows a profile search. String fields match by substring
// (IP, URL) or exact value (Method); zero values mean "unfiltered".
// Start/End are epoch-second bounds; nil means unbounded on that side.
type Criteria struct {
	IP         string
	URL        string
	Method     string
	StatusCode int
	Limit      int
	Start      *int64
	End        *int64
	// Filter is an optional caller predicate applied after the field
	// filters, before the limit.
	Filter func(*domain.Profile) bool
}

// ProfileRepository is the storage contract for captured profiles. The
// profiler core is agnostic to the backend (memory, file, database).
type ProfileRepository interface {
	Read(ctx context.Context, token string) (*domain.Profile, bool, error)
	Write(ctx context.Context, p *domain.Profile) error
	Find(ctx context.Context, c Criteria) ([]*domain.Profile, error)
	Purge(ctx context.Context) error
}
