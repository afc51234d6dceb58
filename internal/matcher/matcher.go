// Package matcher pairs an extracted incident title with an open tracker item.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/reckon/internal/tracker"
)

// minTokenLen is the shortest word, in runes, that counts towards overlap.
const minTokenLen = 3

// Match returns the item best matching title, or nil.
//
// A case-insensitive substring hit in either direction wins outright, in list
// order. Otherwise each item is scored by how many title words of at least
// minTokenLen runes appear in its name; the best score wins if it reaches
// max(2, words/2). Ties keep the earlier item.
func Match(title string, items []tracker.Item) *tracker.Item {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return nil
	}

	for i := range items {
		name := strings.ToLower(strings.TrimSpace(items[i].Name))
		if name == "" {
			continue
		}
		if strings.Contains(t, name) || strings.Contains(name, t) {
			return &items[i]
		}
	}

	tokens := Tokenize(t)
	threshold := max(2, len(tokens)/2)

	var best *tracker.Item
	bestScore := 0
	for i := range items {
		name := strings.ToLower(items[i].Name)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(name, tok) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = &items[i], score
		}
	}

	if bestScore < threshold {
		return nil
	}
	return best
}

// Tokenize lowercases s and returns its words of at least minTokenLen runes.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}
