package learning

import (
	"time"

	"github.com/google/uuid"
)

// SessionInput is the raw material for one session ingest: the lyric
// sheet, the transcript (if speech-to-text ran), and the words the coach
// flagged. Language and accent goal are opaque passthrough.
type SessionInput struct {
	UserID               string
	SessionID            string
	SongID               string
	Genre                string
	Title                string
	DurationSeconds      float64
	TextAccuracy         float64
	PronunciationClarity float64
	TimingConsistency    TimingConsistency
	Lyrics               string
	Transcript           string
	Language             string
	AccentGoal           string
	TopToFix             []CoachFlag
	CreatedAt            time.Time
}

// deriveSession turns a SessionInput into the immutable SessionEvent that
// gets appended to the user's log: tokenized word lists, the LCS-matched
// set, weak/strong words, weak-sound counts, and keyed tips.
func deriveSession(in SessionInput) SessionEvent {
	expected := Tokenize(in.Lyrics)
	spoken := Tokenize(in.Transcript)
	matchedIdx := MatchedIndices(expected, spoken)

	weakSet := make(map[string]bool)
	var weakWords []string
	addWeak := func(w string) {
		if w != "" && !weakSet[w] {
			weakSet[w] = true
			weakWords = append(weakWords, w)
		}
	}
	for _, flag := range in.TopToFix {
		for _, w := range Tokenize(flag.Word) {
			addWeak(w)
		}
	}
	// Unmatched expected words only count as weak when a transcript was
	// actually produced; an empty transcript means speech-to-text never
	// ran, not that every word was missed.
	if len(spoken) > 0 {
		for i, w := range expected {
			if !matchedIdx[i] {
				addWeak(w)
			}
		}
	}

	matchedSet := make(map[string]bool)
	var matchedWords []string
	var strongWords []string
	for i, w := range expected {
		if matchedIdx[i] && !matchedSet[w] {
			matchedSet[w] = true
			matchedWords = append(matchedWords, w)
			if !weakSet[w] {
				strongWords = append(strongWords, w)
			}
		}
	}

	tips := make([]Tip, 0, len(in.TopToFix))
	for _, flag := range in.TopToFix {
		word := normalizeWord(flag.Word)
		if word == "" {
			continue
		}
		tips = append(tips, Tip{Word: word, Reason: flag.Reason, TipKey: BuildTipKey(word, flag.Reason)})
	}

	return SessionEvent{
		ID:                   uuid.NewString(),
		UserID:               in.UserID,
		SessionID:            in.SessionID,
		SongID:               in.SongID,
		Genre:                in.Genre,
		Title:                in.Title,
		CreatedAt:            in.CreatedAt,
		DurationSeconds:      in.DurationSeconds,
		TextAccuracy:         in.TextAccuracy,
		PronunciationClarity: in.PronunciationClarity,
		TimingConsistency:    in.TimingConsistency,
		Transcript:           in.Transcript,
		Language:             in.Language,
		AccentGoal:           in.AccentGoal,
		ExpectedWords:        expected,
		SpokenWords:          spoken,
		MatchedWords:         matchedWords,
		WeakWords:            weakWords,
		StrongWords:          strongWords,
		WeakSounds:           WeakSoundCounts(weakWords),
		Tips:                 tips,
	}
}

// normalizeWord reduces a coach-flagged word to its first token.
func normalizeWord(w string) string {
	tokens := Tokenize(w)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}
