// Package tokenizer estimates token counts for providers that do not report
// usage.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// CountTokens estimates the token count of text as the larger of one token
// per four characters and four tokens per three words. Empty text is 0.
func CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	byChars := (utf8.RuneCountInString(text) + 3) / 4
	byWords := len(strings.Fields(text)) * 4 / 3
	return max(byChars, byWords, 1)
}

// CountMessages sums CountTokens over every message body.
func CountMessages(contents ...string) int {
	n := 0
	for _, c := range contents {
		n += CountTokens(c)
	}
	return n
}
