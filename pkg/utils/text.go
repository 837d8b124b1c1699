package utils

import (
	"strings"
	"unicode"
)

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Tokenize lowercases s, strips every character that is neither a Latin
// letter (accented vowels, ñ, ü included) nor a digit, splits on whitespace,
// and drops empty tokens. The differ and the retriever share this tokenizer
// so their similarity scores agree on what a word is.
func Tokenize(s string) []string {
	lowered := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsLetter(r) && unicode.Is(unicode.Latin, r):
			b.WriteRune(r)
		}
	}
	fields := strings.Fields(b.String())
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// TokenSet returns the distinct tokens of s.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(s) {
		set[tok] = struct{}{}
	}
	return set
}
