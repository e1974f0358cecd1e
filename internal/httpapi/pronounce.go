package httpapi

import (
	"strings"

	"github.com/easeverse/server/internal/learning"
)

// syllables splits a word into rough syllable chunks: each chunk carries
// one vowel group, with a single bridging consonant handed to the next
// chunk. It is a display heuristic for the pronounce route, not a
// dictionary lookup.
func syllables(word string) []string {
	w := strings.ToLower(word)
	runes := []rune(w)
	if len(runes) == 0 {
		return nil
	}

	isV := func(r rune) bool {
		switch r {
		case 'a', 'e', 'i', 'o', 'u', 'y':
			return true
		}
		return false
	}

	var parts []string
	start := 0
	seenVowel := false
	for i := 0; i < len(runes); i++ {
		if isV(runes[i]) {
			seenVowel = true
			continue
		}
		if !seenVowel {
			continue
		}
		// consonant cluster after a vowel group: a word-final cluster
		// stays with the last syllable; a single bridging consonant goes
		// to the next syllable; a longer cluster splits after its first
		// consonant.
		clusterEnd := i
		for clusterEnd < len(runes) && !isV(runes[clusterEnd]) {
			clusterEnd++
		}
		if clusterEnd == len(runes) {
			break
		}
		cut := i
		if clusterEnd-i >= 2 {
			cut = i + 1
		}
		parts = append(parts, string(runes[start:cut]))
		start = cut
		seenVowel = false
		i = cut - 1
	}
	parts = append(parts, string(runes[start:]))
	return parts
}

// phoneticRespelling renders a word as stressed-first-syllable chunks,
// e.g. "remember" -> "RE-mem-ber".
func phoneticRespelling(word string) string {
	parts := syllables(word)
	if len(parts) == 0 {
		return strings.ToLower(word)
	}
	parts[0] = strings.ToUpper(parts[0])
	return strings.Join(parts, "-")
}

// slowForm spaces syllables out for slow practice, e.g. "re... mem... ber".
func slowForm(word string) string {
	parts := syllables(word)
	if len(parts) == 0 {
		return strings.ToLower(word)
	}
	return strings.Join(parts, "... ")
}

// categoryPriority orders weak-sound categories by how actionable a single
// tip is for them.
var categoryPriority = []string{
	learning.SoundPlosiveAttack,
	learning.SoundFricativeClarity,
	learning.SoundLiquidControl,
	learning.SoundNasalBalance,
	learning.SoundVowelTransition,
	learning.SoundFinalConsonant,
}

var categoryTips = map[string]string{
	learning.SoundPlosiveAttack:    "Hit the plosive consonants crisply and release them on the beat.",
	learning.SoundFricativeClarity: "Keep steady airflow through the fricatives so the hiss stays clean.",
	learning.SoundLiquidControl:    "Shape the l and r sounds with a light tongue tip instead of swallowing them.",
	learning.SoundNasalBalance:     "Let the nasal consonants ring briefly, then move straight to the vowel.",
	learning.SoundVowelTransition:  "Glide between the vowels without adding an extra syllable.",
	learning.SoundFinalConsonant:   "Finish the word: voice the final consonant instead of dropping it.",
}

const defaultTip = "Say it slowly first, then at tempo, keeping every syllable distinct."

// primaryWeakCategory picks the most actionable articulation category for
// a word, or "" when none applies.
func primaryWeakCategory(word string) string {
	counts := learning.WeakSoundCounts([]string{word})
	for _, cat := range categoryPriority {
		if counts[cat] > 0 {
			return cat
		}
	}
	return ""
}

// tipForWord returns a one-line coaching tip for a word.
func tipForWord(word string) string {
	if cat := primaryWeakCategory(word); cat != "" {
		return categoryTips[cat]
	}
	return defaultTip
}
