// Package vocab matches user utterances against an evolving vocabulary of
// command and vibe phrases using tiered exact/fuzzy/partial/tag scoring.
package vocab

import (
	"strings"
	"unicode"
)

// numberWords folds spoken numbers onto digits. Speech-to-text emits
// "two" or "2" depending on the engine and phrasing, while vocabulary
// phrases are usually written with digits.
var numberWords = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"ten": "10",
}

// Normalize prepares text for comparison: lower-case, strip punctuation,
// collapse whitespace runs, trim, and fold spelled-out numbers to
// digits. Applied identically to utterances and vocabulary phrases so
// the tiers compare like with like.
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
		// Punctuation and symbols are dropped.
	}

	tokens := strings.Fields(sb.String())
	for i, t := range tokens {
		if digit, ok := numberWords[t]; ok {
			tokens[i] = digit
		}
	}
	return strings.Join(tokens, " ")
}
