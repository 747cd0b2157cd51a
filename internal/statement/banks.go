package statement

import (
	"strings"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// Format selects bank-specific line segmentation.
type Format string

// Known statement formats.
const (
	FormatGeneric    Format = "generic"
	FormatBarclays   Format = "barclays"
	FormatHSBC       Format = "hsbc"
	FormatLloyds     Format = "lloyds"
	FormatNatWest    Format = "natwest"
	FormatSantander  Format = "santander"
	FormatNationwide Format = "nationwide"
	FormatMetro      Format = "metro"
	FormatMonzo      Format = "monzo"
	FormatStarling   Format = "starling"
)

// Bank is the identified issuer of a statement.
type Bank struct {
	Name   string
	Format Format
}

// BankSignature maps header or footer markers to a bank.
type BankSignature struct {
	Name    string
	Format  Format
	Markers []string
}

// KnownBanks returns the built-in signature table in match order.
func KnownBanks() []BankSignature {
	return []BankSignature{
		{Name: "Metro Bank", Format: FormatMetro, Markers: []string{"metro bank", "metrobankonline"}},
		{Name: "HSBC", Format: FormatHSBC, Markers: []string{"hsbc uk bank", "hsbc.co.uk", "hsbc"}},
		{Name: "Barclays", Format: FormatBarclays, Markers: []string{"barclays bank", "barclays.co.uk", "barclays"}},
		{Name: "Lloyds Bank", Format: FormatLloyds, Markers: []string{"lloyds bank", "lloydsbank.com"}},
		{Name: "NatWest", Format: FormatNatWest, Markers: []string{"national westminster", "natwest"}},
		{Name: "Santander", Format: FormatSantander, Markers: []string{"santander uk", "santander.co.uk", "santander"}},
		{Name: "Nationwide", Format: FormatNationwide, Markers: []string{"nationwide building society", "nationwide.co.uk"}},
		{Name: "Monzo", Format: FormatMonzo, Markers: []string{"monzo bank", "monzo.com"}},
		{Name: "Starling Bank", Format: FormatStarling, Markers: []string{"starling bank", "starlingbank.com"}},
	}
}

// IdentifyBank returns the first bank whose marker appears in the text, or the
// unknown bank with generic segmentation.
func IdentifyBank(banks []BankSignature, pages []string) Bank {
	combined := strings.ToLower(strings.Join(pages, "\n"))
	for _, sig := range banks {
		for _, marker := range sig.Markers {
			if marker != "" && strings.Contains(combined, strings.ToLower(marker)) {
				return Bank{Name: sig.Name, Format: sig.Format}
			}
		}
	}
	return Bank{Name: model.UnknownBank, Format: FormatGeneric}
}
