package learning

import (
	"sort"
	"strings"
)

const (
	focusWordCount     = 5
	challengeWordCount = 5
	practicePlanCap    = 5

	minChallengeAttempts = 4
	minTipShownCount     = 3
	timingHighThreshold  = 0.45
	onTimePctThreshold   = 70
	weakSoundThreshold   = 3
)

// BuildRecommendation derives practice material from a user's profile and
// the global word-difficulty and tip-effectiveness tables.
func BuildRecommendation(profile UserProfile, globalWords map[string]WordDifficulty, globalTips map[string]TipEffectiveness) Recommendation {
	focus := make([]string, 0, focusWordCount)
	for i, w := range profile.WeakWords {
		if i >= focusWordCount {
			break
		}
		focus = append(focus, w.Word)
	}

	return Recommendation{
		FocusWords:           focus,
		GlobalChallengeWords: globalChallengeWords(globalWords),
		Tips:                 bestTipsForWords(focus, globalTips),
		PracticePlan:         buildPracticePlan(profile, focus),
	}
}

// globalChallengeWords ranks every word with enough global attempts by
// failure rate.
func globalChallengeWords(words map[string]WordDifficulty) []string {
	var list []WordDifficulty
	for _, w := range words {
		if w.Attempts >= minChallengeAttempts {
			list = append(list, w)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].FailureRate != list[j].FailureRate {
			return list[i].FailureRate > list[j].FailureRate
		}
		if list[i].Attempts != list[j].Attempts {
			return list[i].Attempts > list[j].Attempts
		}
		return list[i].Word < list[j].Word
	})
	if len(list) > challengeWordCount {
		list = list[:challengeWordCount]
	}
	out := make([]string, len(list))
	for i, w := range list {
		out[i] = w.Word
	}
	return out
}

// bestTipsForWords picks, for each focus word, the proven global tip whose
// length bucket matches the word: highest success score among tips shown
// at least minTipShownCount times.
func bestTipsForWords(focus []string, globalTips map[string]TipEffectiveness) []TipPick {
	var picks []TipPick
	for _, word := range focus {
		bucket := lengthBucket(word)
		var best TipEffectiveness
		found := false
		for _, t := range globalTips {
			if t.ShownCount < minTipShownCount || tipKeyBucket(t.TipKey) != bucket {
				continue
			}
			if !found || t.SuccessScore > best.SuccessScore ||
				(t.SuccessScore == best.SuccessScore && t.ShownCount > best.ShownCount) {
				best = t
				found = true
			}
		}
		if found {
			picks = append(picks, TipPick{Word: word, TipKey: best.TipKey, SuccessScore: best.SuccessScore})
		}
	}
	return picks
}

func buildPracticePlan(profile UserProfile, focus []string) []PlanItem {
	var plan []PlanItem

	if len(focus) > 0 {
		words := focus
		if len(words) > 3 {
			words = words[:3]
		}
		plan = append(plan, PlanItem{
			Kind:  PlanLyrics,
			Title: "Word Repair Drill: " + strings.Join(words, ", "),
			Words: words,
		})
	}

	if needsTimingWork(profile) {
		plan = append(plan,
			PlanItem{Kind: PlanSilent, Title: "Silent Count-In Drill"},
			PlanItem{Kind: PlanPocket, Title: "Pocket Lock Drill"},
		)
	}

	if needsConsonantWork(profile.WeakSounds) {
		plan = append(plan, PlanItem{Kind: PlanConsonant, Title: "Consonant Attack Drill"})
	}

	if len(plan) > practicePlanCap {
		plan = plan[:practicePlanCap]
	}
	return plan
}

func needsTimingWork(profile UserProfile) bool {
	if profile.TrendSummary.TimingHighRate < timingHighThreshold {
		return true
	}
	modes := profile.TimingSummary.EasePocketModes
	if len(modes) == 0 {
		return false
	}
	var sum float64
	for _, m := range modes {
		sum += m.AvgOnTimePct
	}
	return sum/float64(len(modes)) < onTimePctThreshold
}

func needsConsonantWork(sounds []SoundStat) bool {
	for _, s := range sounds {
		if (s.Category == SoundPlosiveAttack || s.Category == SoundFricativeClarity) && s.Count >= weakSoundThreshold {
			return true
		}
	}
	return false
}
