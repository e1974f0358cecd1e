package collab

import (
	"context"
	"log/slog"
	"time"

	"github.com/easeverse/server/internal/metrics"
)

// Engine wires a Store to the realtime Hub: every successful upsert is
// published to subscribers. When the primary (Postgres) store errors, the
// record is still retained in the in-memory fallback and the request
// succeeds, with the failure logged at error level.
type Engine struct {
	primary  Store
	fallback *MemoryStore
	Hub      *Hub
}

func NewEngine(primary Store) *Engine {
	return &Engine{primary: primary, fallback: NewMemoryStore(), Hub: NewHub()}
}

// StorageName reports which backing store serves requests, surfaced in
// REST responses.
func (e *Engine) StorageName() string {
	if e.primary != nil {
		return "postgres"
	}
	return "memory"
}

func (e *Engine) store() Store {
	if e.primary != nil {
		return e.primary
	}
	return e.fallback
}

// Upsert merges req into storage and publishes the resulting draft.
func (e *Engine) Upsert(ctx context.Context, req UpsertRequest) (LyricDraft, error) {
	now := time.Now().UTC()
	draft, err := e.store().Upsert(ctx, req, now)
	if err != nil && e.primary != nil {
		slog.Error("collab store upsert failed, falling back to memory", "error", err)
		metrics.StorageFallbacks.WithLabelValues("collab").Inc()
		draft, err = e.fallback.Upsert(ctx, req, now)
	}
	if err != nil {
		return LyricDraft{}, err
	}
	e.Hub.Publish(draft)
	return draft, nil
}

func (e *Engine) Get(ctx context.Context, externalTrackID string) (LyricDraft, bool, error) {
	d, ok, err := e.store().Get(ctx, externalTrackID)
	if err != nil && e.primary != nil {
		slog.Error("collab store get failed, falling back to memory", "error", err)
		metrics.StorageFallbacks.WithLabelValues("collab").Inc()
		return e.fallback.Get(ctx, externalTrackID)
	}
	return d, ok, err
}

func (e *Engine) List(ctx context.Context, projectID, source string) ([]LyricDraft, error) {
	list, err := e.store().List(ctx, projectID, source)
	if err != nil && e.primary != nil {
		slog.Error("collab store list failed, falling back to memory", "error", err)
		metrics.StorageFallbacks.WithLabelValues("collab").Inc()
		return e.fallback.List(ctx, projectID, source)
	}
	return list, err
}
