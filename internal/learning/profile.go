package learning

import (
	"context"
	"math"
	"sort"
	"time"
)

const (
	topWeakWords   = 12
	topStrongWords = 12
	topWeakSounds  = 10
	topTips        = 12
	trendWindow    = 6
)

// rebuildProfile recomputes a UserProfile from every event on record for
// userID and persists the snapshot.
func (e *Engine) rebuildProfile(ctx context.Context, userID string) (UserProfile, error) {
	var sessions []SessionEvent
	if err := e.withFallback("sessions_for_user", func(s Store) error {
		list, err := s.SessionsForUser(ctx, userID)
		sessions = list
		return err
	}); err != nil {
		return UserProfile{}, err
	}
	var drills []EasePocketEvent
	if err := e.withFallback("easepocket_for_user", func(s Store) error {
		list, err := s.EasePocketForUser(ctx, userID)
		drills = list
		return err
	}); err != nil {
		return UserProfile{}, err
	}

	profile := buildProfile(userID, sessions, drills)

	if err := e.withFallback("save_profile", func(s Store) error {
		return s.SaveProfile(ctx, profile)
	}); err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

// buildProfile derives the full aggregate from the user's event log.
func buildProfile(userID string, sessions []SessionEvent, drills []EasePocketEvent) UserProfile {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	sessionCount := len(sessions)
	weakCounts := make(map[string]int)
	strongCounts := make(map[string]int)
	soundCounts := make(map[string]int)
	genreCount := make(map[string]int)
	genreAccuracy := make(map[string]float64)
	timingCounts := make(map[TimingConsistency]int)

	for _, ev := range sessions {
		for _, w := range ev.WeakWords {
			weakCounts[w]++
		}
		for _, w := range ev.StrongWords {
			strongCounts[w]++
		}
		for cat, n := range ev.WeakSounds {
			soundCounts[cat] += n
		}
		if ev.Genre != "" {
			genreCount[ev.Genre]++
			genreAccuracy[ev.Genre] += ev.TextAccuracy
		}
		timingCounts[ev.TimingConsistency]++
	}

	return UserProfile{
		UserID:       userID,
		SessionCount: sessionCount,
		WeakWords:    rankWeakWords(weakCounts, sessionCount),
		StrongWords:  rankStrongWords(strongCounts),
		WeakSounds:   rankSounds(soundCounts),
		GenreSummary: rankGenres(genreCount, genreAccuracy),
		TrendSummary: computeTrend(sessions, timingCounts),
		TipSummary:   rankUserTips(sessions),
		TimingSummary: TimingSummary{
			SessionTimingConsistency: timingCounts,
			EasePocketModes:          rankModes(drills),
		},
		UpdatedAt: latestEventTime(sessions, drills),
	}
}

func rankWeakWords(counts map[string]int, sessionCount int) []WeakWordStat {
	list := make([]WeakWordStat, 0, len(counts))
	for w, n := range counts {
		stat := WeakWordStat{Word: w, Count: n}
		if sessionCount > 0 {
			stat.WeakRate = float64(n) / float64(sessionCount)
		}
		list = append(list, stat)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Word < list[j].Word
	})
	if len(list) > topWeakWords {
		list = list[:topWeakWords]
	}
	return list
}

func rankStrongWords(counts map[string]int) []StrongWordStat {
	list := make([]StrongWordStat, 0, len(counts))
	for w, n := range counts {
		list = append(list, StrongWordStat{Word: w, Count: n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Word < list[j].Word
	})
	if len(list) > topStrongWords {
		list = list[:topStrongWords]
	}
	return list
}

func rankSounds(counts map[string]int) []SoundStat {
	list := make([]SoundStat, 0, len(counts))
	for cat, n := range counts {
		list = append(list, SoundStat{Category: cat, Count: n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Category < list[j].Category
	})
	if len(list) > topWeakSounds {
		list = list[:topWeakSounds]
	}
	return list
}

func rankGenres(count map[string]int, accuracySum map[string]float64) []GenreSummary {
	list := make([]GenreSummary, 0, len(count))
	for genre, n := range count {
		list = append(list, GenreSummary{
			Genre:       genre,
			Sessions:    n,
			AvgAccuracy: int(math.Round(accuracySum[genre] / float64(n))),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Sessions != list[j].Sessions {
			return list[i].Sessions > list[j].Sessions
		}
		return list[i].Genre < list[j].Genre
	})
	return list
}

// computeTrend compares up to the last trendWindow sessions against the
// trendWindow before them.
func computeTrend(sessions []SessionEvent, timingCounts map[TimingConsistency]int) TrendSummary {
	n := len(sessions)
	if n == 0 {
		return TrendSummary{}
	}

	recentStart := max(0, n-trendWindow)
	baselineStart := max(0, recentStart-trendWindow)
	recent := sessions[recentStart:]
	baseline := sessions[baselineStart:recentStart]

	t := TrendSummary{
		RecentAvgAccuracy:   avgAccuracy(recent),
		BaselineAvgAccuracy: avgAccuracy(baseline),
		RecentAvgClarity:    avgClarity(recent),
		TimingHighRate:      float64(timingCounts[TimingHigh]) / float64(n),
	}
	t.DeltaAccuracy = t.RecentAvgAccuracy - t.BaselineAvgAccuracy
	return t
}

func avgAccuracy(sessions []SessionEvent) float64 {
	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for _, ev := range sessions {
		sum += ev.TextAccuracy
	}
	return sum / float64(len(sessions))
}

func avgClarity(sessions []SessionEvent) float64 {
	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for _, ev := range sessions {
		sum += ev.PronunciationClarity
	}
	return sum / float64(len(sessions))
}

// rankUserTips replays the user's own tip history: a tip shown in one
// session improved if its word is absent from the next session's weak
// words. The last session's tips count as shown but not yet evaluated.
func rankUserTips(sessions []SessionEvent) []TipSummaryEntry {
	type tally struct{ shown, improved int }
	counts := make(map[string]*tally)

	for i, ev := range sessions {
		var nextWeak map[string]bool
		if i+1 < len(sessions) {
			nextWeak = toSet(sessions[i+1].WeakWords)
		}
		for _, tip := range ev.Tips {
			t := counts[tip.TipKey]
			if t == nil {
				t = &tally{}
				counts[tip.TipKey] = t
			}
			t.shown++
			if nextWeak != nil && !nextWeak[tip.Word] {
				t.improved++
			}
		}
	}

	list := make([]TipSummaryEntry, 0, len(counts))
	for key, t := range counts {
		entry := TipSummaryEntry{TipKey: key, ShownCount: t.shown}
		if t.shown > 0 {
			entry.SuccessScore = float64(t.improved) / float64(t.shown)
		}
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SuccessScore != list[j].SuccessScore {
			return list[i].SuccessScore > list[j].SuccessScore
		}
		if list[i].ShownCount != list[j].ShownCount {
			return list[i].ShownCount > list[j].ShownCount
		}
		return list[i].TipKey < list[j].TipKey
	})
	if len(list) > topTips {
		list = list[:topTips]
	}
	return list
}

// rankModes aggregates drill events per mode, most-practiced first.
func rankModes(drills []EasePocketEvent) []ModeSummary {
	type agg struct {
		count     int
		onTimeSum float64
		absSum    float64
	}
	byMode := make(map[EasePocketMode]*agg)
	for _, d := range drills {
		a := byMode[d.Mode]
		if a == nil {
			a = &agg{}
			byMode[d.Mode] = a
		}
		a.count++
		a.onTimeSum += d.Stats.OnTimePct
		a.absSum += d.Stats.MeanAbsMs
	}

	list := make([]ModeSummary, 0, len(byMode))
	for mode, a := range byMode {
		list = append(list, ModeSummary{
			Mode:         mode,
			Drills:       a.count,
			AvgOnTimePct: a.onTimeSum / float64(a.count),
			AvgMeanAbsMs: a.absSum / float64(a.count),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Drills != list[j].Drills {
			return list[i].Drills > list[j].Drills
		}
		return list[i].Mode < list[j].Mode
	})
	return list
}

func latestEventTime(sessions []SessionEvent, drills []EasePocketEvent) time.Time {
	var latest time.Time
	for _, ev := range sessions {
		if ev.CreatedAt.After(latest) {
			latest = ev.CreatedAt
		}
	}
	for _, d := range drills {
		if d.CreatedAt.After(latest) {
			latest = d.CreatedAt
		}
	}
	if latest.IsZero() {
		latest = time.Now().UTC()
	}
	return latest
}
