package collab

import (
	"context"
	"time"
)

// Store persists lyric drafts.
type Store interface {
	// Upsert merges req onto any existing draft for req.ExternalTrackID and
	// returns the resulting draft. now is the caller-supplied receive
	// timestamp, kept explicit so stores stay deterministic under test.
	Upsert(ctx context.Context, req UpsertRequest, now time.Time) (LyricDraft, error)

	// Get returns the draft for externalTrackID, if any.
	Get(ctx context.Context, externalTrackID string) (LyricDraft, bool, error)

	// List returns drafts matching the given optional projectID/source
	// filters (empty string means "any"), sorted by UpdatedAt descending.
	List(ctx context.Context, projectID, source string) ([]LyricDraft, error)
}
