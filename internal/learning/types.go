// Package learning ingests scored practice sessions, maintains per-user
// weak/strong word profiles alongside global word-difficulty and
// tip-effectiveness counters, and recommends practice material.
package learning

import (
	"time"

	"github.com/easeverse/server/internal/grid"
)

// TimingConsistency is the coarse session-level timing judgment attached
// to a session by the client scorer.
type TimingConsistency string

const (
	TimingLow    TimingConsistency = "low"
	TimingMedium TimingConsistency = "medium"
	TimingHigh   TimingConsistency = "high"
)

// ParseTimingConsistency validates s, defaulting empty to TimingMedium.
func ParseTimingConsistency(s string) (TimingConsistency, bool) {
	switch TimingConsistency(s) {
	case TimingLow, TimingMedium, TimingHigh:
		return TimingConsistency(s), true
	case "":
		return TimingMedium, true
	default:
		return "", false
	}
}

// EasePocketMode names the rhythm drill variant an EasePocket event came
// from.
type EasePocketMode string

const (
	ModeSubdivision EasePocketMode = "subdivision"
	ModeSilent      EasePocketMode = "silent"
	ModeConsonant   EasePocketMode = "consonant"
	ModePocket      EasePocketMode = "pocket"
	ModeSlow        EasePocketMode = "slow"
)

// ParseEasePocketMode validates s.
func ParseEasePocketMode(s string) (EasePocketMode, bool) {
	switch EasePocketMode(s) {
	case ModeSubdivision, ModeSilent, ModeConsonant, ModePocket, ModeSlow:
		return EasePocketMode(s), true
	default:
		return "", false
	}
}

// CoachFlag is one word the client-side coach flagged for the user, with
// the reason it was flagged.
type CoachFlag struct {
	Word   string `json:"word"`
	Reason string `json:"reason"`
}

// Tip is a coaching tip attached to a session, keyed for cross-session
// effectiveness tracking.
type Tip struct {
	Word   string `json:"word"`
	Reason string `json:"reason"`
	TipKey string `json:"tipKey"`
}

// SessionEvent is one ingested practice session. Events are immutable
// once recorded; (UserID, SessionID) is the uniqueness key.
type SessionEvent struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"userId"`
	SessionID            string            `json:"sessionId"`
	SongID               string            `json:"songId,omitempty"`
	Genre                string            `json:"genre,omitempty"`
	Title                string            `json:"title,omitempty"`
	CreatedAt            time.Time         `json:"createdAt"`
	DurationSeconds      float64           `json:"durationSeconds"`
	TextAccuracy         float64           `json:"textAccuracy"`
	PronunciationClarity float64           `json:"pronunciationClarity"`
	TimingConsistency    TimingConsistency `json:"timingConsistency"`
	Transcript           string            `json:"transcript,omitempty"`
	Language             string            `json:"language,omitempty"`
	AccentGoal           string            `json:"accentGoal,omitempty"`
	ExpectedWords        []string          `json:"expectedWords"`
	SpokenWords          []string          `json:"spokenWords"`
	MatchedWords         []string          `json:"matchedWords"`
	WeakWords            []string          `json:"weakWords"`
	StrongWords          []string          `json:"strongWords"`
	WeakSounds           map[string]int    `json:"weakSounds"`
	Tips                 []Tip             `json:"tips"`
}

// EasePocketEvent is one ingested rhythm drill result. (UserID, EventID)
// is the uniqueness key.
type EasePocketEvent struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	EventID     string         `json:"eventId"`
	Mode        EasePocketMode `json:"mode"`
	BPM         float64        `json:"bpm"`
	Grid        grid.Kind      `json:"grid"`
	BeatsPerBar int            `json:"beatsPerBar"`
	Stats       grid.Stats     `json:"stats"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// WordDifficulty is the global per-word counter. Attempts increments once
// per distinct expected word per session.
type WordDifficulty struct {
	Word        string  `json:"word"`
	Attempts    int     `json:"attempts"`
	Failures    int     `json:"failures"`
	Successes   int     `json:"successes"`
	FailureRate float64 `json:"failureRate"`
}

func (w WordDifficulty) withRate() WordDifficulty {
	if w.Attempts > 0 {
		w.FailureRate = float64(w.Failures) / float64(w.Attempts)
	}
	return w
}

// TipEffectiveness is the global per-tip-key counter. A tip shown in one
// session counts as improved when its word is absent from the same user's
// next session's weak words.
type TipEffectiveness struct {
	TipKey        string  `json:"tipKey"`
	ShownCount    int     `json:"shownCount"`
	ImprovedCount int     `json:"improvedCount"`
	SuccessScore  float64 `json:"successScore"`
}

func (t TipEffectiveness) withScore() TipEffectiveness {
	if t.ShownCount > 0 {
		t.SuccessScore = float64(t.ImprovedCount) / float64(t.ShownCount)
	}
	return t
}

// WeakWordStat is one entry in a profile's weak word ranking.
type WeakWordStat struct {
	Word     string  `json:"word"`
	Count    int     `json:"count"`
	WeakRate float64 `json:"weakRate"`
}

// StrongWordStat is one entry in a profile's strong word ranking.
type StrongWordStat struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// SoundStat is one weak-sound category count in a profile.
type SoundStat struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// GenreSummary aggregates session accuracy per genre.
type GenreSummary struct {
	Genre       string `json:"genre"`
	Sessions    int    `json:"sessions"`
	AvgAccuracy int    `json:"avgAccuracy"`
}

// TrendSummary compares the most recent sessions against the window before
// them.
type TrendSummary struct {
	RecentAvgAccuracy   float64 `json:"recentAvgAccuracy"`
	BaselineAvgAccuracy float64 `json:"baselineAvgAccuracy"`
	DeltaAccuracy       float64 `json:"deltaAccuracy"`
	RecentAvgClarity    float64 `json:"recentAvgClarity"`
	TimingHighRate      float64 `json:"timingHighRate"`
}

// TipSummaryEntry is one ranked tip in a user's profile.
type TipSummaryEntry struct {
	TipKey       string  `json:"tipKey"`
	ShownCount   int     `json:"shownCount"`
	SuccessScore float64 `json:"successScore"`
}

// ModeSummary aggregates a user's EasePocket drills for one mode.
type ModeSummary struct {
	Mode         EasePocketMode `json:"mode"`
	Drills       int            `json:"drills"`
	AvgOnTimePct float64        `json:"avgOnTimePct"`
	AvgMeanAbsMs float64        `json:"avgMeanAbsMs"`
}

// TimingSummary is the timing portion of a profile.
type TimingSummary struct {
	SessionTimingConsistency map[TimingConsistency]int `json:"sessionTimingConsistency"`
	EasePocketModes          []ModeSummary             `json:"easePocketModes"`
}

// UserProfile is the rebuilt, queryable aggregate for one user. It is
// cached after every ingest but always reconstructible from the event log.
type UserProfile struct {
	UserID        string            `json:"userId"`
	SessionCount  int               `json:"sessionCount"`
	WeakWords     []WeakWordStat    `json:"weakWords"`
	StrongWords   []StrongWordStat  `json:"strongWords"`
	WeakSounds    []SoundStat       `json:"weakSounds"`
	GenreSummary  []GenreSummary    `json:"genreSummary"`
	TrendSummary  TrendSummary      `json:"trendSummary"`
	TipSummary    []TipSummaryEntry `json:"tipSummary"`
	TimingSummary TimingSummary     `json:"timingSummary"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// PlanKind names a practice plan entry's drill type.
type PlanKind string

const (
	PlanLyrics    PlanKind = "lyrics"
	PlanSilent    PlanKind = "silent"
	PlanPocket    PlanKind = "pocket"
	PlanConsonant PlanKind = "consonant"
)

// PlanItem is one entry in a generated practice plan.
type PlanItem struct {
	Kind  PlanKind `json:"kind"`
	Title string   `json:"title"`
	Words []string `json:"words,omitempty"`
}

// TipPick pairs a focus word with the best-performing global tip for its
// length bucket.
type TipPick struct {
	Word         string  `json:"word"`
	TipKey       string  `json:"tipKey"`
	SuccessScore float64 `json:"successScore"`
}

// Recommendation is the output of the recommendation engine for one user.
type Recommendation struct {
	FocusWords           []string   `json:"focusWords"`
	GlobalChallengeWords []string   `json:"globalChallengeWords"`
	Tips                 []TipPick  `json:"tips"`
	PracticePlan         []PlanItem `json:"practicePlan"`
}
