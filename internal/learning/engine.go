package learning

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easeverse/server/internal/grid"
	"github.com/easeverse/server/internal/metrics"
)

const shardCount = 16

// Engine coordinates ingestion, profile rebuilding, and recommendations
// against a Store, falling back to an in-memory store when the primary
// store errors. Per-user work is serialized through a hash-sharded mutex
// bank so concurrent submissions for different users don't contend.
type Engine struct {
	primary  Store
	fallback *MemoryStore
	shards   [shardCount]sync.Mutex
}

// NewEngine wires primary as the store of record. A nil primary uses the
// in-memory store directly.
func NewEngine(primary Store) *Engine {
	return &Engine{primary: primary, fallback: NewMemoryStore()}
}

func (e *Engine) shard(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &e.shards[h.Sum32()%shardCount]
}

func (e *Engine) store() Store {
	if e.primary != nil {
		return e.primary
	}
	return e.fallback
}

// withFallback runs fn against the primary store, retrying once against
// the in-memory fallback (with an error log) if the primary call fails.
func (e *Engine) withFallback(op string, fn func(Store) error) error {
	err := fn(e.store())
	if err != nil && e.primary != nil {
		slog.Error("learning store call failed, falling back to memory", "op", op, "error", err)
		metrics.StorageFallbacks.WithLabelValues("learning").Inc()
		return fn(e.fallback)
	}
	return err
}

// IngestSession derives features from in, appends the resulting event
// (deduplicating on UserID+SessionID), updates the global word-difficulty
// and tip-effectiveness counters, and rebuilds the user's profile.
// deduplicated=true means the session was already on record; the counters
// are untouched and the cached profile is returned.
func (e *Engine) IngestSession(ctx context.Context, in SessionInput) (UserProfile, bool, error) {
	mu := e.shard(in.UserID)
	mu.Lock()
	defer mu.Unlock()

	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	ev := deriveSession(in)

	var inserted bool
	err := e.withFallback("insert_session", func(s Store) error {
		ok, err := s.InsertSession(ctx, ev)
		inserted = ok
		return err
	})
	if err != nil {
		return UserProfile{}, false, err
	}

	metrics.LearningIngests.WithLabelValues("session", boolLabel(!inserted)).Inc()

	if !inserted {
		profile, err := e.currentProfile(ctx, in.UserID)
		return profile, true, err
	}

	if err := e.recordWordOutcomes(ctx, ev); err != nil {
		return UserProfile{}, false, err
	}
	if err := e.evaluatePreviousTips(ctx, ev); err != nil {
		return UserProfile{}, false, err
	}

	profile, err := e.rebuildProfile(ctx, in.UserID)
	return profile, false, err
}

// recordWordOutcomes bumps the global difficulty counters once per
// distinct expected word in the session.
func (e *Engine) recordWordOutcomes(ctx context.Context, ev SessionEvent) error {
	weak := toSet(ev.WeakWords)
	strong := toSet(ev.StrongWords)

	seen := make(map[string]bool, len(ev.ExpectedWords))
	var outcomes []WordOutcome
	for _, w := range ev.ExpectedWords {
		if seen[w] {
			continue
		}
		seen[w] = true
		outcomes = append(outcomes, WordOutcome{Word: w, Failed: weak[w], Succeeded: strong[w]})
	}
	if len(outcomes) == 0 {
		return nil
	}
	return e.withFallback("word_outcomes", func(s Store) error {
		return s.RecordWordOutcomes(ctx, outcomes)
	})
}

// evaluatePreviousTips scores the tips shown in the user's previous
// session (the latest one strictly older than ev) against ev: a tip
// improved if its word is no longer weak.
func (e *Engine) evaluatePreviousTips(ctx context.Context, ev SessionEvent) error {
	var sessions []SessionEvent
	if err := e.withFallback("sessions_for_user", func(s Store) error {
		list, err := s.SessionsForUser(ctx, ev.UserID)
		sessions = list
		return err
	}); err != nil {
		return err
	}

	var prev *SessionEvent
	for i := range sessions {
		s := &sessions[i]
		if s.SessionID == ev.SessionID {
			continue
		}
		if !s.CreatedAt.Before(ev.CreatedAt) {
			continue
		}
		if prev == nil || s.CreatedAt.After(prev.CreatedAt) {
			prev = s
		}
	}
	if prev == nil || len(prev.Tips) == 0 {
		return nil
	}

	weakNow := toSet(ev.WeakWords)
	results := make([]TipResult, 0, len(prev.Tips))
	for _, tip := range prev.Tips {
		results = append(results, TipResult{TipKey: tip.TipKey, Improved: !weakNow[tip.Word]})
	}
	return e.withFallback("tip_results", func(s Store) error {
		return s.RecordTipResults(ctx, results)
	})
}

// EasePocketInput is the raw material for one drill ingest.
type EasePocketInput struct {
	UserID      string
	EventID     string
	Mode        EasePocketMode
	BPM         float64
	Grid        grid.Kind
	BeatsPerBar int
	Stats       grid.Stats
	CreatedAt   time.Time
}

// IngestEasePocket appends a drill event (deduplicating on UserID+EventID)
// and rebuilds the user's profile.
func (e *Engine) IngestEasePocket(ctx context.Context, in EasePocketInput) (UserProfile, bool, error) {
	mu := e.shard(in.UserID)
	mu.Lock()
	defer mu.Unlock()

	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	ev := EasePocketEvent{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		EventID:     in.EventID,
		Mode:        in.Mode,
		BPM:         in.BPM,
		Grid:        in.Grid,
		BeatsPerBar: in.BeatsPerBar,
		Stats:       in.Stats,
		CreatedAt:   in.CreatedAt,
	}

	var inserted bool
	err := e.withFallback("insert_easepocket", func(s Store) error {
		ok, err := s.InsertEasePocket(ctx, ev)
		inserted = ok
		return err
	})
	if err != nil {
		return UserProfile{}, false, err
	}

	metrics.LearningIngests.WithLabelValues("easepocket", boolLabel(!inserted)).Inc()

	if !inserted {
		profile, err := e.currentProfile(ctx, in.UserID)
		return profile, true, err
	}

	profile, err := e.rebuildProfile(ctx, in.UserID)
	return profile, false, err
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// currentProfile returns the cached profile, rebuilding it if no snapshot
// has been saved yet.
func (e *Engine) currentProfile(ctx context.Context, userID string) (UserProfile, error) {
	p, ok, err := e.store().LoadProfile(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}
	if ok {
		return p, nil
	}
	return e.rebuildProfile(ctx, userID)
}

// Profile returns userID's profile. found=false means the user has no
// events on record at all.
func (e *Engine) Profile(ctx context.Context, userID string) (UserProfile, bool, error) {
	mu := e.shard(userID)
	mu.Lock()
	defer mu.Unlock()

	sessions, err := e.store().SessionsForUser(ctx, userID)
	if err != nil {
		return UserProfile{}, false, err
	}
	drills, err := e.store().EasePocketForUser(ctx, userID)
	if err != nil {
		return UserProfile{}, false, err
	}
	if len(sessions) == 0 && len(drills) == 0 {
		return UserProfile{}, false, nil
	}

	p, err := e.currentProfile(ctx, userID)
	return p, err == nil, err
}

// Recommend builds practice recommendations for userID from its profile
// and the global word/tip tables. found=false mirrors Profile.
func (e *Engine) Recommend(ctx context.Context, userID string) (Recommendation, bool, error) {
	profile, found, err := e.Profile(ctx, userID)
	if err != nil || !found {
		return Recommendation{}, found, err
	}

	words, err := e.store().WordDifficulties(ctx)
	if err != nil {
		return Recommendation{}, false, err
	}
	tips, err := e.store().TipEffectivenesses(ctx)
	if err != nil {
		return Recommendation{}, false, err
	}
	return BuildRecommendation(profile, words, tips), true, nil
}

// GlobalModel returns the global word-difficulty and tip-effectiveness
// tables, hardest words and best tips first, capped at limit entries each.
func (e *Engine) GlobalModel(ctx context.Context, limit int) ([]WordDifficulty, []TipEffectiveness, error) {
	wordMap, err := e.store().WordDifficulties(ctx)
	if err != nil {
		return nil, nil, err
	}
	tipMap, err := e.store().TipEffectivenesses(ctx)
	if err != nil {
		return nil, nil, err
	}

	words := make([]WordDifficulty, 0, len(wordMap))
	for _, w := range wordMap {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].FailureRate != words[j].FailureRate {
			return words[i].FailureRate > words[j].FailureRate
		}
		if words[i].Attempts != words[j].Attempts {
			return words[i].Attempts > words[j].Attempts
		}
		return words[i].Word < words[j].Word
	})

	tips := make([]TipEffectiveness, 0, len(tipMap))
	for _, t := range tipMap {
		tips = append(tips, t)
	}
	sort.Slice(tips, func(i, j int) bool {
		if tips[i].SuccessScore != tips[j].SuccessScore {
			return tips[i].SuccessScore > tips[j].SuccessScore
		}
		if tips[i].ShownCount != tips[j].ShownCount {
			return tips[i].ShownCount > tips[j].ShownCount
		}
		return tips[i].TipKey < tips[j].TipKey
	})

	if limit > 0 {
		if len(words) > limit {
			words = words[:limit]
		}
		if len(tips) > limit {
			tips = tips[:limit]
		}
	}
	return words, tips, nil
}

// Sessions returns the user's raw session events, most recent first,
// capped at limit.
func (e *Engine) Sessions(ctx context.Context, userID string, limit int) ([]SessionEvent, error) {
	sessions, err := e.store().SessionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	// oldest-first in storage; flip for the timeline view
	out := make([]SessionEvent, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		out = append(out, sessions[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
