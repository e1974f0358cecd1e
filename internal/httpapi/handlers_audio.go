package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"

	"github.com/easeverse/server/internal/apperr"
	"github.com/easeverse/server/internal/grid"
	"github.com/easeverse/server/internal/learning"
	"github.com/easeverse/server/internal/scoring"
	"github.com/easeverse/server/internal/wav"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// handleTTS implements POST /api/v1/tts: synthesized MPEG audio straight
// from the configured speech provider.
func (d *deps) handleTTS(w http.ResponseWriter, r *http.Request) {
	var body ttsRequest
	if err := decodeAndValidate(r, ttsSchema, &body); err != nil {
		apperr.WriteHTTP(w, r, err)
		return
	}
	audio, err := d.speaker.Synthesize(r.Context(), body.Text, body.Voice)
	if err != nil {
		apperr.WriteHTTP(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write(audio)
}

type pronounceRequest struct {
	Word       string `json:"word"`
	Context    string `json:"context"`
	Language   string `json:"language"`
	AccentGoal string `json:"accentGoal"`
}

// handlePronounce implements POST /api/v1/pronounce: a phonetic
// respelling, coaching tip, slow form, and synthesized reference audio
// for a single word. The accent goal is passed unmodified to the speech
// provider as its voice argument; the language field is not forwarded.
func (d *deps) handlePronounce(w http.ResponseWriter, r *http.Request) {
	var body pronounceRequest
	if err := decodeAndValidate(r, pronounceSchema, &body); err != nil {
		apperr.WriteHTTP(w, r, err)
		return
	}

	word := body.Word
	audio, err := d.speaker.Synthesize(r.Context(), word, body.AccentGoal)
	if err != nil {
		apperr.WriteHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"word":        word,
		"phonetic":    phoneticRespelling(word),
		"tip":         tipForWord(word),
		"slow":        slowForm(word),
		"audioBase64": base64.StdEncoding.EncodeToString(audio),
	})
}

type sessionScoreRequest struct {
	Lyrics          string  `json:"lyrics"`
	AudioBase64     string  `json:"audioBase64"`
	DurationSeconds float64 `json:"durationSeconds"`
	Language        string  `json:"language"`
	AccentGoal      string  `json:"accentGoal"`
}

// handleSessionScore implements POST /api/v1/session-score: transcribes
// the submitted clip and scores the spoken words against the lyric sheet.
// The client feeds the result into POST /learning/session afterwards.
func (d *deps) handleSessionScore(w http.ResponseWriter, r *http.Request) {
	var body sessionScoreRequest
	if err := decodeAndValidate(r, sessionScoreSchema, &body); err != nil {
		apperr.WriteHTTP(w, r, err)
		return
	}

	audioBytes, err := base64.StdEncoding.DecodeString(body.AudioBase64)
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "audioBase64 is not valid base64"})
		return
	}

	durationSeconds := body.DurationSeconds
	if buf, decErr := wav.Decode(audioBytes); decErr == nil {
		durationSeconds = buf.DurationSeconds()
	}

	transcript, err := d.transcriber.Transcribe(r.Context(), audioBytes, body.Language)
	if err != nil {
		apperr.WriteHTTP(w, r, err)
		return
	}

	expected := learning.Tokenize(body.Lyrics)
	spoken := learning.Tokenize(transcript)
	matchedIdx := learning.MatchedIndices(expected, spoken)

	var matchedWords, weakWords, strongWords []string
	matchedSet := make(map[string]bool)
	weakSet := make(map[string]bool)
	for i, word := range expected {
		if matchedIdx[i] {
			if !matchedSet[word] {
				matchedSet[word] = true
				matchedWords = append(matchedWords, word)
			}
		} else if !weakSet[word] {
			weakSet[word] = true
			weakWords = append(weakWords, word)
		}
	}
	for _, word := range matchedWords {
		if !weakSet[word] {
			strongWords = append(strongWords, word)
		}
	}

	textAccuracy := 0.0
	if len(expected) > 0 {
		textAccuracy = math.Round(100 * float64(len(matchedIdx)) / float64(len(expected)))
	}
	clarity := 0.0
	if len(spoken) > 0 {
		clarity = math.Round(100 * math.Min(1, float64(len(matchedIdx))/float64(len(spoken))))
	}

	topToFix := make([]map[string]string, 0, 3)
	for _, word := range weakWords {
		if len(topToFix) == 3 {
			break
		}
		reason := primaryWeakCategory(word)
		if reason == "" {
			reason = "articulation"
		}
		topToFix = append(topToFix, map[string]string{
			"word":   word,
			"reason": reason,
			"tipKey": learning.BuildTipKey(word, reason),
			"tip":    tipForWord(word),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                   true,
		"transcript":           transcript,
		"durationSeconds":      durationSeconds,
		"textAccuracy":         textAccuracy,
		"pronunciationClarity": clarity,
		"expectedWords":        expected,
		"spokenWords":          spoken,
		"matchedWords":         matchedWords,
		"weakWords":            weakWords,
		"strongWords":          strongWords,
		"weakSounds":           learning.WeakSoundCounts(weakWords),
		"topToFix":             topToFix,
	})
}

type consonantScoreRequest struct {
	AudioBase64 string  `json:"audioBase64"`
	BPM         float64 `json:"bpm"`
	Grid        string  `json:"grid"`
	ToleranceMs float64 `json:"toleranceMs"`
	MaxEvents   int     `json:"maxEvents"`
}

const defaultToleranceMs = 25

// handleConsonantScore implements POST /api/v1/easepocket/consonant-score:
// the full decode -> onset-detect -> grid-score pipeline on the worker
// pool.
func (d *deps) handleConsonantScore(w http.ResponseWriter, r *http.Request) {
	var body consonantScoreRequest
	if err := decodeAndValidate(r, consonantScoreSchema, &body); err != nil {
		apperr.WriteHTTP(w, r, err)
		return
	}

	audioBytes, err := base64.StdEncoding.DecodeString(body.AudioBase64)
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "audioBase64 is not valid base64"})
		return
	}

	kind, ok := grid.ParseKind(body.Grid)
	if !ok {
		apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "grid must be beat, 8th, or 16th"})
		return
	}
	toleranceMs := body.ToleranceMs
	if toleranceMs == 0 {
		toleranceMs = defaultToleranceMs
	}

	result := d.submitScoring(r.Context(), scoring.Task{
		WAV:         audioBytes,
		BPM:         body.BPM,
		Kind:        kind,
		ToleranceMs: toleranceMs,
		MaxEvents:   body.MaxEvents,
	})
	if result.Err != nil {
		apperr.WriteHTTP(w, r, result.Err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		OK              bool    `json:"ok"`
		DurationSeconds float64 `json:"durationSeconds"`
		grid.Score
	}{
		OK:              true,
		DurationSeconds: result.DurationSeconds,
		Score:           result.Score,
	})
}

// submitScoring routes to the worker pool, or runs inline when
// EASEPOCKET_DISABLE_WORKER is set.
func (d *deps) submitScoring(ctx context.Context, task scoring.Task) scoring.Result {
	if d.cfg.DisableWorker {
		return scoring.Inline(task)
	}
	return d.pool.Submit(ctx, task)
}
