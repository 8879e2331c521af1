// Package markers holds the literal strings the target application renders
// and the normalization used to match them.
package markers

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// These are the DOM contract with the hosted app and the hosting platform.
// Update these when the prober starts failing on a healthy app.
var (
	// DefaultAlive is rendered by the app itself once its script has run
	DefaultAlive = []string{"✅ App is alive", "App is alive"}

	// DefaultWake are the labels of the platform's hibernation button
	DefaultWake = []string{"Yes, get this app back up!", "Wake app up"}

	// DefaultFallback is a heading of the app's normal UI
	DefaultFallback = []string{"Recipe & Nutrition"}
)

// Normalize folds s into the form used for matching: NFKC, lower case,
// runs of whitespace collapsed to one space, trimmed.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Find returns the first pattern contained in text after normalization.
func Find(text string, patterns []string) (string, bool) {
	if text == "" {
		return "", false
	}
	normalized := Normalize(text)
	for _, p := range patterns {
		np := Normalize(p)
		if np == "" {
			continue
		}
		if strings.Contains(normalized, np) {
			return p, true
		}
	}
	return "", false
}

// Contains reports whether text contains any of patterns
func Contains(text string, patterns []string) bool {
	_, ok := Find(text, patterns)
	return ok
}

// Truncate cuts s to at most limit runes. A limit <= 0 returns s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
