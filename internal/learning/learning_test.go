package learning

import (
	"context"
	"testing"
	"time"
)

func ingestAt(t *testing.T, e *Engine, in SessionInput, at time.Time) (UserProfile, bool) {
	t.Helper()
	in.CreatedAt = at
	profile, deduplicated, err := e.IngestSession(context.Background(), in)
	if err != nil {
		t.Fatalf("IngestSession: %v", err)
	}
	return profile, deduplicated
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Don't stop — BELIEVIN'! 99 ways")
	want := []string{"don't", "stop", "believin'", "99", "ways"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

// TestAlignmentLaw: aligning expected against an exact re-tokenization of
// itself matches every index, so no word lands in weakWords.
func TestAlignmentLaw(t *testing.T) {
	lyrics := "city lights are calling my name tonight"
	expected := Tokenize(lyrics)
	matched := MatchedIndices(expected, Tokenize(lyrics))
	for i := range expected {
		if !matched[i] {
			t.Fatalf("index %d (%q) unmatched in identity alignment", i, expected[i])
		}
	}

	ev := deriveSession(SessionInput{
		UserID: "u", SessionID: "s", Lyrics: lyrics, Transcript: lyrics,
		TimingConsistency: TimingMedium, CreatedAt: time.Now(),
	})
	if len(ev.WeakWords) != 0 {
		t.Fatalf("weakWords = %v, want empty for perfect transcript", ev.WeakWords)
	}
	if len(ev.StrongWords) != len(unique(expected)) {
		t.Fatalf("strongWords = %v, want all distinct expected words", ev.StrongWords)
	}
}

func unique(words []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func TestDeriveSessionEmptyTranscriptSkipsUnmatched(t *testing.T) {
	ev := deriveSession(SessionInput{
		UserID: "u", SessionID: "s",
		Lyrics:            "hello golden morning",
		Transcript:        "",
		TopToFix:          []CoachFlag{{Word: "Golden", Reason: "plosive attack"}},
		TimingConsistency: TimingMedium,
		CreatedAt:         time.Now(),
	})
	if len(ev.WeakWords) != 1 || ev.WeakWords[0] != "golden" {
		t.Fatalf("weakWords = %v, want only the coach-flagged word", ev.WeakWords)
	}
	if len(ev.SpokenWords) != 0 {
		t.Fatalf("spokenWords = %v, want empty", ev.SpokenWords)
	}
}

func TestBuildTipKey(t *testing.T) {
	cases := []struct{ word, reason, want string }{
		{"cat", "Plosive Attack", "plosive-attack:short"},
		{"morning", "fricative clarity", "fricative-clarity:medium"},
		{"beautiful", "vowel_transition", "vowel-transition:long"},
	}
	for _, c := range cases {
		if got := BuildTipKey(c.word, c.reason); got != c.want {
			t.Fatalf("BuildTipKey(%q, %q) = %q, want %q", c.word, c.reason, got, c.want)
		}
	}
}

func TestWeakSoundCounts(t *testing.T) {
	counts := WeakSoundCounts([]string{"drop", "sing"})
	// "drop": plosives d/p, liquid r, final consonant, vowel o single
	if counts[SoundPlosiveAttack] != 2 { // both words contain plosives (d, p; g)
		t.Fatalf("plosive_attack = %d, want 2", counts[SoundPlosiveAttack])
	}
	if counts[SoundNasalBalance] != 1 { // "sing" has n/ng
		t.Fatalf("nasal_balance = %d, want 1", counts[SoundNasalBalance])
	}
	if counts[SoundFinalConsonant] != 2 {
		t.Fatalf("final_consonant = %d, want 2", counts[SoundFinalConsonant])
	}
	if counts[SoundVowelTransition] != 0 {
		t.Fatalf("vowel_transition = %d, want 0", counts[SoundVowelTransition])
	}
}

// TestIngestDedupe is scenario 3: the same (userId, sessionId) ingested
// twice is idempotent; the global attempts counter sees it once.
func TestIngestDedupe(t *testing.T) {
	e := NewEngine(nil)
	in := SessionInput{
		UserID: "user-1", SessionID: "sess-1",
		Lyrics: "shine bright diamond", Transcript: "shine diamond",
		TimingConsistency: TimingMedium,
	}
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	_, dedup1 := ingestAt(t, e, in, base)
	if dedup1 {
		t.Fatal("first ingest should not be deduplicated")
	}
	_, dedup2 := ingestAt(t, e, in, base.Add(time.Minute))
	if !dedup2 {
		t.Fatal("second ingest of the same session should be deduplicated")
	}

	words, _, err := e.GlobalModel(context.Background(), 100)
	if err != nil {
		t.Fatalf("GlobalModel: %v", err)
	}
	for _, w := range words {
		if w.Attempts != 1 {
			t.Fatalf("word %q attempts = %d after duplicate ingest, want 1", w.Word, w.Attempts)
		}
	}

	// "bright" is unmatched -> failure; "shine"/"diamond" matched -> success
	byWord := make(map[string]WordDifficulty)
	for _, w := range words {
		byWord[w.Word] = w
	}
	if byWord["bright"].Failures != 1 || byWord["bright"].FailureRate != 1 {
		t.Fatalf("bright = %+v, want failure", byWord["bright"])
	}
	if byWord["shine"].Successes != 1 {
		t.Fatalf("shine = %+v, want success", byWord["shine"])
	}
}

// TestTipEffectiveness is scenario 4: a tip shown in session A counts as
// improved when the word is absent from session B's weak words.
func TestTipEffectiveness(t *testing.T) {
	e := NewEngine(nil)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	ingestAt(t, e, SessionInput{
		UserID: "user-1", SessionID: "sess-a",
		Lyrics: "golden morning light", Transcript: "morning light",
		TopToFix:          []CoachFlag{{Word: "golden", Reason: "plosive attack"}},
		TimingConsistency: TimingMedium,
	}, base)

	ingestAt(t, e, SessionInput{
		UserID: "user-1", SessionID: "sess-b",
		Lyrics: "golden morning light", Transcript: "golden morning light",
		TimingConsistency: TimingMedium,
	}, base.Add(time.Hour))

	_, tips, err := e.GlobalModel(context.Background(), 100)
	if err != nil {
		t.Fatalf("GlobalModel: %v", err)
	}
	key := BuildTipKey("golden", "plosive attack")
	var found *TipEffectiveness
	for i := range tips {
		if tips[i].TipKey == key {
			found = &tips[i]
		}
	}
	if found == nil {
		t.Fatalf("tip %q not in global model: %+v", key, tips)
	}
	if found.ShownCount != 1 || found.ImprovedCount != 1 || found.SuccessScore != 1.0 {
		t.Fatalf("tip %q = %+v, want shown=1 improved=1 score=1.0", key, *found)
	}
}

func TestTipNotImprovedWhenWordStaysWeak(t *testing.T) {
	e := NewEngine(nil)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	ingestAt(t, e, SessionInput{
		UserID: "user-2", SessionID: "sess-a",
		Lyrics: "golden morning", Transcript: "morning",
		TopToFix:          []CoachFlag{{Word: "golden", Reason: "plosive attack"}},
		TimingConsistency: TimingMedium,
	}, base)

	// still missing "golden" in the next session
	ingestAt(t, e, SessionInput{
		UserID: "user-2", SessionID: "sess-b",
		Lyrics: "golden morning", Transcript: "morning",
		TimingConsistency: TimingMedium,
	}, base.Add(time.Hour))

	_, tips, err := e.GlobalModel(context.Background(), 100)
	if err != nil {
		t.Fatalf("GlobalModel: %v", err)
	}
	key := BuildTipKey("golden", "plosive attack")
	for _, tip := range tips {
		if tip.TipKey == key {
			if tip.ShownCount != 1 || tip.ImprovedCount != 0 {
				t.Fatalf("tip = %+v, want shown=1 improved=0", tip)
			}
			return
		}
	}
	t.Fatalf("tip %q not recorded", key)
}

func TestProfileTimingCountsSumToSessionCount(t *testing.T) {
	e := NewEngine(nil)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	timings := []TimingConsistency{TimingLow, TimingHigh, TimingHigh, TimingMedium}

	var profile UserProfile
	for i, timing := range timings {
		profile, _ = ingestAt(t, e, SessionInput{
			UserID: "user-3", SessionID: "sess-" + string(rune('a'+i)),
			Lyrics: "one two three", Transcript: "one two three",
			TimingConsistency: timing, Genre: "pop",
		}, base.Add(time.Duration(i)*time.Hour))
	}

	total := 0
	for _, n := range profile.TimingSummary.SessionTimingConsistency {
		total += n
	}
	if total != profile.SessionCount {
		t.Fatalf("timing counts sum %d != session count %d", total, profile.SessionCount)
	}
	if profile.TrendSummary.TimingHighRate != 0.5 {
		t.Fatalf("timingHighRate = %f, want 0.5", profile.TrendSummary.TimingHighRate)
	}
	if len(profile.GenreSummary) != 1 || profile.GenreSummary[0].Sessions != 4 {
		t.Fatalf("genre summary = %+v, want one pop bucket of 4", profile.GenreSummary)
	}
}

func TestProfileTrendWindows(t *testing.T) {
	e := NewEngine(nil)
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	// 8 sessions: first two at accuracy 50, last six at 90 -> recent
	// window is the last 6, baseline the 2 before.
	var profile UserProfile
	for i := range 8 {
		accuracy := 90.0
		if i < 2 {
			accuracy = 50.0
		}
		profile, _ = ingestAt(t, e, SessionInput{
			UserID: "user-4", SessionID: "sess-" + string(rune('a'+i)),
			Lyrics: "la la la", Transcript: "la la la",
			TextAccuracy:      accuracy,
			TimingConsistency: TimingMedium,
		}, base.Add(time.Duration(i)*time.Hour))
	}

	trend := profile.TrendSummary
	if trend.RecentAvgAccuracy != 90 {
		t.Fatalf("recent avg accuracy = %f, want 90", trend.RecentAvgAccuracy)
	}
	if trend.BaselineAvgAccuracy != 50 {
		t.Fatalf("baseline avg accuracy = %f, want 50", trend.BaselineAvgAccuracy)
	}
	if trend.DeltaAccuracy != 40 {
		t.Fatalf("delta accuracy = %f, want 40", trend.DeltaAccuracy)
	}
}

func TestEasePocketIngestAndModeSummary(t *testing.T) {
	e := NewEngine(nil)

	in := EasePocketInput{UserID: "user-5", EventID: "ev-1", Mode: ModePocket, BPM: 100, BeatsPerBar: 4}
	in.Stats.OnTimePct = 80
	in.Stats.MeanAbsMs = 10
	if _, dedup, err := e.IngestEasePocket(context.Background(), in); err != nil || dedup {
		t.Fatalf("first ingest: dedup=%v err=%v", dedup, err)
	}
	if _, dedup, err := e.IngestEasePocket(context.Background(), in); err != nil || !dedup {
		t.Fatalf("second ingest: dedup=%v err=%v, want deduplicated", dedup, err)
	}

	in2 := EasePocketInput{UserID: "user-5", EventID: "ev-2", Mode: ModePocket, BPM: 100, BeatsPerBar: 4}
	in2.Stats.OnTimePct = 60
	in2.Stats.MeanAbsMs = 20
	profile, _, err := e.IngestEasePocket(context.Background(), in2)
	if err != nil {
		t.Fatalf("IngestEasePocket: %v", err)
	}

	modes := profile.TimingSummary.EasePocketModes
	if len(modes) != 1 || modes[0].Mode != ModePocket {
		t.Fatalf("modes = %+v, want one pocket entry", modes)
	}
	if modes[0].Drills != 2 || modes[0].AvgOnTimePct != 70 || modes[0].AvgMeanAbsMs != 15 {
		t.Fatalf("pocket summary = %+v, want drills=2 avgOnTime=70 avgAbs=15", modes[0])
	}
}

func TestRecommendationRules(t *testing.T) {
	profile := UserProfile{
		UserID:       "u",
		SessionCount: 4,
		WeakWords: []WeakWordStat{
			{Word: "diamond", Count: 3}, {Word: "cat", Count: 2}, {Word: "beautiful", Count: 2},
		},
		WeakSounds:   []SoundStat{{Category: SoundPlosiveAttack, Count: 4}},
		TrendSummary: TrendSummary{TimingHighRate: 0.25},
	}
	globalWords := map[string]WordDifficulty{
		"rare":    {Word: "rare", Attempts: 2, Failures: 2, FailureRate: 1},
		"common":  {Word: "common", Attempts: 10, Failures: 8, FailureRate: 0.8},
		"easy":    {Word: "easy", Attempts: 10, Failures: 1, FailureRate: 0.1},
		"hardest": {Word: "hardest", Attempts: 5, Failures: 5, FailureRate: 1},
	}
	globalTips := map[string]TipEffectiveness{
		"plosive-attack:medium": {TipKey: "plosive-attack:medium", ShownCount: 5, ImprovedCount: 4, SuccessScore: 0.8},
		"plosive-attack:short":  {TipKey: "plosive-attack:short", ShownCount: 2, ImprovedCount: 2, SuccessScore: 1},
		"vowel-transition:long": {TipKey: "vowel-transition:long", ShownCount: 6, ImprovedCount: 3, SuccessScore: 0.5},
	}

	rec := BuildRecommendation(profile, globalWords, globalTips)

	if len(rec.FocusWords) != 3 || rec.FocusWords[0] != "diamond" {
		t.Fatalf("focusWords = %v", rec.FocusWords)
	}
	// "rare" has only 2 attempts and is excluded; hardest beats common.
	if len(rec.GlobalChallengeWords) != 3 || rec.GlobalChallengeWords[0] != "hardest" {
		t.Fatalf("globalChallengeWords = %v", rec.GlobalChallengeWords)
	}
	// "cat" is short but its only short tip has shownCount 2 (< 3): no pick.
	for _, pick := range rec.Tips {
		if pick.Word == "cat" {
			t.Fatalf("cat should have no qualifying tip, got %+v", pick)
		}
	}
	foundMedium := false
	for _, pick := range rec.Tips {
		if pick.Word == "diamond" && pick.TipKey == "plosive-attack:medium" {
			foundMedium = true
		}
	}
	if !foundMedium {
		t.Fatalf("diamond should pick plosive-attack:medium, got %+v", rec.Tips)
	}

	// plan: lyrics drill + silent + pocket (timingHighRate < 0.45) +
	// consonant (plosive_attack >= 3), capped at 5
	if len(rec.PracticePlan) != 4 {
		t.Fatalf("plan = %+v, want 4 items", rec.PracticePlan)
	}
	if rec.PracticePlan[0].Kind != PlanLyrics || len(rec.PracticePlan[0].Words) != 3 {
		t.Fatalf("first plan item = %+v, want lyrics drill with 3 words", rec.PracticePlan[0])
	}
	kinds := map[PlanKind]bool{}
	for _, item := range rec.PracticePlan {
		kinds[item.Kind] = true
	}
	if !kinds[PlanSilent] || !kinds[PlanPocket] || !kinds[PlanConsonant] {
		t.Fatalf("plan kinds = %v, want silent+pocket+consonant present", kinds)
	}
}

func TestProfileNotFoundForUnknownUser(t *testing.T) {
	e := NewEngine(nil)
	_, found, err := e.Profile(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if found {
		t.Fatal("unknown user should have no profile")
	}
}
