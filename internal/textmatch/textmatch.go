// Package textmatch implements the string similarity used for payee grouping and
// rule matching.
//
// Similarity is a token-set ratio: both strings are normalized and tokenized, and
// the shared tokens are compared against each side's remainder using normalized
// Levenshtein similarity. A string whose tokens are a subset of the other's scores
// 1.0, so "BRITISH GAS" and "BRITISH GAS LTD" are treated as the same payee.
package textmatch

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// MatchKind describes how a pattern matched a text.
type MatchKind int

// Match kinds ordered by strength.
const (
	MatchNone MatchKind = iota
	MatchFuzzy
	MatchExact
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Normalize lowercases s, replaces punctuation with spaces and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if r == '&' {
			if !space {
				b.WriteByte(' ')
			}
			b.WriteString("and ")
			space = true
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens returns the normalized whitespace-separated tokens of s.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// Ratio returns the normalized Levenshtein similarity of a and b in [0,1].
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if n := len([]rune(b)); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(maxLen)
}

// TokenSetRatio compares a and b on their token sets, ignoring order and duplicates.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for tok := range ta {
		if tb[tok] {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if !ta[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	left := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	right := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := Ratio(left, right)
	if base != "" {
		best = max(best, Ratio(base, left), Ratio(base, right))
	}
	return best
}

// Contains reports whether pattern occurs in text. An exact match requires the
// pattern's tokens to appear contiguously in text. Otherwise every window of text
// with the pattern's token count is compared with Ratio, and the best score is a
// fuzzy match when it reaches threshold.
func Contains(text, pattern string, threshold float64) (MatchKind, float64) {
	textTokens := Tokens(text)
	patternTokens := Tokens(pattern)
	if len(textTokens) == 0 || len(patternTokens) == 0 {
		return MatchNone, 0
	}

	needle := strings.Join(patternTokens, " ")
	if containsTokens(textTokens, patternTokens) {
		return MatchExact, 1
	}

	width := len(patternTokens)
	if width > len(textTokens) {
		width = len(textTokens)
	}
	best := 0.0
	for i := 0; i+width <= len(textTokens); i++ {
		window := strings.Join(textTokens[i:i+width], " ")
		if score := Ratio(window, needle); score > best {
			best = score
		}
	}
	if best >= threshold {
		return MatchFuzzy, best
	}
	return MatchNone, best
}

// HasWord reports whether the normalized phrase appears in text on token boundaries.
func HasWord(text, phrase string) bool {
	return containsTokens(Tokens(text), Tokens(phrase))
}

func containsTokens(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, tok := range needle {
			if haystack[i+j] != tok {
				continue outer
			}
		}
		return true
	}
	return false
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokens(s) {
		set[tok] = true
	}
	return set
}
