// Package extract turns statement text lines into structured transactions.
package extract

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/statement"
)

// Profile describes the column conventions of a statement format.
type Profile struct {
	// CarryDate lets undated rows inherit the previous row's date, as banks
	// that print the date once per day require.
	CarryDate bool
}

// DefaultProfiles returns the per-format segmentation profiles.
func DefaultProfiles() map[statement.Format]Profile {
	return map[statement.Format]Profile{
		statement.FormatBarclays:   {CarryDate: true},
		statement.FormatHSBC:       {CarryDate: true},
		statement.FormatNationwide: {CarryDate: true},
		statement.FormatSantander:  {CarryDate: true},
	}
}

// Extractor segments statement lines into transactions.
type Extractor struct {
	now      func() time.Time
	profiles map[statement.Format]Profile
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used to infer years when a statement has no full dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// WithProfiles replaces the per-format profiles.
func WithProfiles(profiles map[statement.Format]Profile) Option {
	return func(e *Extractor) {
		e.profiles = profiles
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		now:      time.Now,
		profiles: DefaultProfiles(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the transactions found in doc in statement order. Lines that do
// not look like transactions are skipped.
func (e *Extractor) Extract(doc *statement.Document) []model.Transaction {
	if doc == nil {
		return nil
	}
	return e.ExtractLines(doc.Lines, doc.Bank.Format)
}

// ExtractLines segments raw lines using the profile for format.
func (e *Extractor) ExtractLines(lines []string, format statement.Format) []model.Transaction {
	profile := e.profiles[format]

	now := e.now().UTC()
	reference, ok := latestFullDate(lines, now)
	if !ok {
		reference = now
	}

	st := &lineState{
		profile:        profile,
		reference:      reference,
		now:            now,
		mostlyYearless: mostlyYearless(lines),
	}
	var txns []model.Transaction
	for _, line := range lines {
		if txn, ok := st.segment(line); ok {
			txns = append(txns, txn)
		}
	}
	return txns
}

// lineState carries context between rows of one statement.
type lineState struct {
	reference      time.Time
	now            time.Time
	lastDate       time.Time
	lastBalance    *decimal.Decimal
	profile        Profile
	mostlyYearless bool
}

var balanceMarkers = []string{
	"balance brought forward", "balance carried forward", "brought forward",
	"carried forward", "opening balance", "closing balance", "start balance", "end balance",
}

func (s *lineState) segment(raw string) (model.Transaction, bool) {
	line := cleanLine(raw)
	if line == "" {
		return model.Transaction{}, false
	}

	date, rest, dated := s.date(line)

	if isBalanceLine(rest) {
		if amounts, _ := trailingAmounts(strings.Fields(rest)); len(amounts) > 0 {
			balance := amounts[len(amounts)-1].signed(directionCredit)
			s.lastBalance = &balance
		}
		return model.Transaction{}, false
	}
	if !dated || isSummaryLine(rest) {
		return model.Transaction{}, false
	}

	amounts, tokens := trailingAmounts(strings.Fields(rest))
	if len(amounts) == 0 {
		return model.Transaction{}, false
	}

	description := strings.Join(tokens, " ")
	if !hasLetter(description) {
		return model.Transaction{}, false
	}

	txnAmount := amounts[0]
	dir := txnAmount.dir
	if len(amounts) > 1 {
		balance := amounts[len(amounts)-1].signed(directionCredit)
		if dir == directionUnknown && s.lastBalance != nil {
			dir = directionFromBalance(*s.lastBalance, balance, txnAmount.value)
		}
		s.lastBalance = &balance
	}
	if dir == directionUnknown {
		dir = directionFromDescription(tokens)
	}

	return model.Transaction{
		Date:         date,
		Description:  description,
		Amount:       txnAmount.signed(dir),
		OriginalText: raw,
	}, true
}

// date returns the row date and the text after it. Undated rows inherit the
// previous date when the profile allows it.
func (s *lineState) date(line string) (time.Time, string, bool) {
	raw, rest, yearless, ok := leadingDate(line)
	if ok && !yearless && s.mostlyYearless && shortTextYear(raw) {
		raw, rest, yearless, ok = yearlessDate(line)
	}
	if ok {
		t, parsed := s.parse(raw, yearless)
		if !parsed && !yearless {
			// An implausible year is usually description text after a "D Mon" date.
			var short bool
			if raw, rest, _, short = yearlessDate(line); short {
				t, parsed = s.parse(raw, true)
			}
		}
		if parsed {
			s.lastDate = t
			return t, rest, true
		}
		return time.Time{}, line, false
	}
	if s.profile.CarryDate && !s.lastDate.IsZero() {
		return s.lastDate, line, true
	}
	return time.Time{}, line, false
}

func (s *lineState) parse(raw string, yearless bool) (time.Time, bool) {
	if yearless {
		return ParseDate(raw, s.reference)
	}
	t, ok := ParseDate(raw, time.Time{})
	if !ok || !plausibleYear(t, s.now) {
		return time.Time{}, false
	}
	return t, true
}

var summaryMarkers = []string{
	"total payments", "total receipts", "total money", "total paid", "payments in", "payments out",
	"money in", "money out", "total debits", "total credits",
}

func isSummaryLine(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range summaryMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isBalanceLine(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range balanceMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// trailingAmounts pops up to three money columns off the end of tokens, returning
// them left to right along with the remaining tokens.
func trailingAmounts(tokens []string) ([]amount, []string) {
	var found []amount
	for len(tokens) > 0 && len(found) < 3 {
		last := tokens[len(tokens)-1]
		if dir, ok := isDirectionMarker(last); ok && len(tokens) > 1 {
			if a, ok := parseAmountToken(tokens[len(tokens)-2]); ok {
				if a.dir == directionUnknown {
					a.dir = dir
				}
				found = append(found, a)
				tokens = tokens[:len(tokens)-2]
				continue
			}
		}
		a, ok := parseAmountToken(last)
		if !ok {
			break
		}
		found = append(found, a)
		tokens = tokens[:len(tokens)-1]
	}

	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found, tokens
}

func directionFromBalance(previous, current, value decimal.Decimal) direction {
	delta := current.Sub(previous)
	switch {
	case delta.Equal(value.Neg()):
		return directionDebit
	case delta.Equal(value):
		return directionCredit
	}
	return directionUnknown
}

var (
	creditCodes = map[string]bool{
		"cr": true, "bgc": true, "fpi": true, "dep": true, "int": true,
	}
	debitCodes = map[string]bool{
		"dd": true, "ddr": true, "so": true, "sto": true, "bp": true, "vis": true, "pos": true,
		"atm": true, "cpt": true, "fpo": true, "chq": true, "deb": true, ")))": true, "obp": true,
	}
	creditPhrases = []string{"salary", "refund", "payment received", "transfer from", "interest paid", "wages", "deposit"}
)

// directionFromDescription reads payment type codes and wording, defaulting to
// debit since statement rows are predominantly payments out.
func directionFromDescription(tokens []string) direction {
	if len(tokens) > 0 {
		for _, code := range []string{tokens[0], tokens[len(tokens)-1]} {
			code = strings.ToLower(code)
			if creditCodes[code] {
				return directionCredit
			}
			if debitCodes[code] {
				return directionDebit
			}
		}
	}
	lower := strings.ToLower(strings.Join(tokens, " "))
	for _, phrase := range creditPhrases {
		if strings.Contains(lower, phrase) {
			return directionCredit
		}
	}
	return directionDebit
}

func cleanLine(line string) string {
	line = strings.NewReplacer("→", " ", "\t", " ", "\u00a0", " ").Replace(line)
	return strings.Join(strings.Fields(line), " ")
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
