package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type direction int

const (
	directionUnknown direction = iota
	directionDebit
	directionCredit
)

var amountToken = regexp.MustCompile(`(?i)^(\()?([-+])?[£$€]?([-+])?((?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})(-)?(\))?(CR|DR)?$`)

// amount is a parsed money column.
type amount struct {
	value decimal.Decimal // unsigned
	dir   direction
}

// signed applies dir to the value, defaulting to fallback.
func (a amount) signed(fallback direction) decimal.Decimal {
	dir := a.dir
	if dir == directionUnknown {
		dir = fallback
	}
	if dir == directionCredit {
		return a.value
	}
	return a.value.Neg()
}

// ParseAmount parses a money column such as "1,234.56", "-£85.50", "(12.00)" or
// "250.00CR" into a signed decimal. Values without a sign marker are positive.
func ParseAmount(s string) (decimal.Decimal, bool) {
	a, ok := parseAmountToken(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if !ok {
		return decimal.Zero, false
	}
	return a.signed(directionCredit), true
}

func parseAmountToken(tok string) (amount, bool) {
	tok = strings.ReplaceAll(tok, " ", "")
	m := amountToken.FindStringSubmatch(tok)
	if m == nil {
		return amount{}, false
	}
	if (m[1] == "(") != (m[6] == ")") {
		return amount{}, false
	}

	value, err := decimal.NewFromString(strings.ReplaceAll(m[4], ",", ""))
	if err != nil {
		return amount{}, false
	}

	a := amount{value: value}
	switch {
	case m[1] == "(", m[2] == "-", m[3] == "-", m[5] == "-", strings.EqualFold(m[7], "DR"):
		a.dir = directionDebit
	case m[2] == "+", m[3] == "+", strings.EqualFold(m[7], "CR"):
		a.dir = directionCredit
	}
	return a, true
}

func isDirectionMarker(tok string) (direction, bool) {
	switch strings.ToUpper(tok) {
	case "CR":
		return directionCredit, true
	case "DR":
		return directionDebit, true
	}
	return directionUnknown, false
}
