package learning

import "strings"

// Weak-sound category names. Each weak word can contribute to several
// categories at once.
const (
	SoundPlosiveAttack    = "plosive_attack"
	SoundFricativeClarity = "fricative_clarity"
	SoundLiquidControl    = "liquid_control"
	SoundNasalBalance     = "nasal_balance"
	SoundVowelTransition  = "vowel_transition"
	SoundFinalConsonant   = "final_consonant"
)

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func containsAny(w string, set string) bool {
	return strings.ContainsAny(w, set)
}

func hasVowelRun(w string) bool {
	run := 0
	for _, r := range w {
		if isVowel(r) {
			run++
			if run >= 2 {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func endsInConsonant(w string) bool {
	runes := []rune(w)
	if len(runes) == 0 {
		return false
	}
	last := runes[len(runes)-1]
	return last >= 'a' && last <= 'z' && !isVowel(last)
}

// WeakSoundCounts buckets a set of weak words into articulation
// categories: plosive attacks, fricative clarity, liquid control, nasal
// balance, vowel transitions, and final consonants.
func WeakSoundCounts(weakWords []string) map[string]int {
	counts := make(map[string]int)
	for _, word := range weakWords {
		w := strings.ToLower(word)
		if w == "" {
			continue
		}
		if containsAny(w, "pbtdkg") {
			counts[SoundPlosiveAttack]++
		}
		if containsAny(w, "fvszxhj") {
			counts[SoundFricativeClarity]++
		}
		if containsAny(w, "lr") {
			counts[SoundLiquidControl]++
		}
		if containsAny(w, "mn") || strings.Contains(w, "ng") {
			counts[SoundNasalBalance]++
		}
		if hasVowelRun(w) {
			counts[SoundVowelTransition]++
		}
		if endsInConsonant(w) {
			counts[SoundFinalConsonant]++
		}
	}
	return counts
}
