package learning

import "context"

// WordOutcome is one distinct expected word's fate within a session, fed
// into the global difficulty counters.
type WordOutcome struct {
	Word      string
	Failed    bool
	Succeeded bool
}

// TipResult is one prior-session tip's evaluation against the session that
// followed it.
type TipResult struct {
	TipKey   string
	Improved bool
}

// Store persists ingested events and the aggregates derived from them.
// The engine serializes per-user mutation above this interface, so
// implementations only need their own internal consistency.
type Store interface {
	// InsertSession records ev unless (UserID, SessionID) was already
	// seen. Returns inserted=false on a duplicate.
	InsertSession(ctx context.Context, ev SessionEvent) (inserted bool, err error)

	// InsertEasePocket records ev unless (UserID, EventID) was already
	// seen.
	InsertEasePocket(ctx context.Context, ev EasePocketEvent) (inserted bool, err error)

	// SessionsForUser returns the user's session events, oldest first.
	SessionsForUser(ctx context.Context, userID string) ([]SessionEvent, error)

	// EasePocketForUser returns the user's drill events, oldest first.
	EasePocketForUser(ctx context.Context, userID string) ([]EasePocketEvent, error)

	// RecordWordOutcomes folds per-word outcomes into the global
	// word-difficulty table: attempts always increment, failures and
	// successes per the outcome flags.
	RecordWordOutcomes(ctx context.Context, outcomes []WordOutcome) error

	// RecordTipResults folds prior-session tip evaluations into the
	// global tip-effectiveness table.
	RecordTipResults(ctx context.Context, results []TipResult) error

	// WordDifficulties returns the global word-difficulty table.
	WordDifficulties(ctx context.Context) (map[string]WordDifficulty, error)

	// TipEffectivenesses returns the global tip-effectiveness table.
	TipEffectivenesses(ctx context.Context) (map[string]TipEffectiveness, error)

	// SaveProfile persists a rebuilt profile snapshot.
	SaveProfile(ctx context.Context, p UserProfile) error

	// LoadProfile returns the last saved snapshot for userID, if any.
	LoadProfile(ctx context.Context, userID string) (UserProfile, bool, error)
}
