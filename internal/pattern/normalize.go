package pattern

import (
	"strings"
	"unicode"

	"github.com/Veraticus/the-paperwork-must-flow/internal/textmatch"
)

// Payment processor phrases removed wherever they appear.
var boilerplatePhrases = [][]string{
	{"direct", "debit"},
	{"standing", "order"},
	{"card", "payment"},
	{"bill", "payment"},
	{"faster", "payment"},
	{"contactless", "payment"},
	{"debit", "card"},
	{"payment", "to"},
	{"payment", "from"},
	{"transfer", "to"},
}

// Payment type codes removed wherever they appear.
var boilerplateCodes = map[string]bool{
	"dd": true, "ddr": true, "so": true, "sto": true, "bp": true, "vis": true, "visa": true,
	"pos": true, "fpo": true, "fpi": true, "bgc": true, "cr": true, "dr": true, "deb": true,
	"chq": true, "atm": true, "cpt": true, "obp": true, "tfr": true, "ref": true, "card": true,
	"payment": true, "contactless": true, "purchase": true, "online": true,
}

// Connectives removed only at the start of a payee.
var leadingFillers = map[string]bool{"to": true, "from": true, "at": true, "via": true}

// NormalizePayee case-folds a description and strips payment boilerplate and
// reference numbers, leaving the payee name.
func NormalizePayee(description string) string {
	tokens := textmatch.Tokens(description)
	tokens = removePhrases(tokens)

	kept := tokens[:0]
	for _, tok := range tokens {
		if boilerplateCodes[tok] || isReference(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	for len(kept) > 0 && leadingFillers[kept[0]] {
		kept = kept[1:]
	}

	if len(kept) == 0 {
		return textmatch.Normalize(description)
	}
	return strings.Join(kept, " ")
}

func removePhrases(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		matched := false
		for _, phrase := range boilerplatePhrases {
			if i+len(phrase) <= len(tokens) && equalTokens(tokens[i:i+len(phrase)], phrase) {
				i += len(phrase) - 1
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, tokens[i])
		}
	}
	return out
}

func equalTokens(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isReference reports tokens that look like references or dates rather than names:
// all digits, or four or more digits mixed with letters.
func isReference(tok string) bool {
	digits := 0
	for _, r := range tok {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits == len([]rune(tok)) || digits >= 4
}

// DisplayName title-cases a normalized payee for use as a provider name.
func DisplayName(payee string) string {
	words := strings.Fields(payee)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
