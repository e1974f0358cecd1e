package learning

import "strings"

// Length buckets for tip keys: a tip that works for a short word often
// doesn't generalize to a long one.
const (
	bucketShort  = "short"
	bucketMedium = "medium"
	bucketLong   = "long"
)

// lengthBucket buckets a word by character count: short is at most 3,
// long is at least 8.
func lengthBucket(word string) string {
	n := len([]rune(word))
	switch {
	case n <= 3:
		return bucketShort
	case n >= 8:
		return bucketLong
	default:
		return bucketMedium
	}
}

// slugify lowercases reason and collapses runs of non-alphanumerics into
// single dashes.
func slugify(reason string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(reason) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// BuildTipKey builds the stable "<reason-slug>:<length-bucket>" key used
// to aggregate tip effectiveness across sessions and users.
func BuildTipKey(word, reason string) string {
	return slugify(reason) + ":" + lengthBucket(word)
}

// tipKeyBucket extracts the length bucket from a tip key, or "" if the
// key is malformed.
func tipKeyBucket(tipKey string) string {
	i := strings.LastIndexByte(tipKey, ':')
	if i < 0 {
		return ""
	}
	return tipKey[i+1:]
}
