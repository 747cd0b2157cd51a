// Package statement turns a bank statement PDF into ordered text lines and
// identifies the issuing bank.
package statement

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
)

// Document is the text content of a statement.
type Document struct {
	Bank  Bank
	Pages []string
	Lines []string
}

// TextExtractor returns the text of each page of a PDF.
type TextExtractor interface {
	ExtractPages(data []byte) ([]string, error)
}

// Parser converts PDF bytes into a Document.
type Parser struct {
	extractor TextExtractor
	banks     []BankSignature
}

// Option configures a Parser.
type Option func(*Parser)

// WithExtractor replaces the PDF text extractor.
func WithExtractor(extractor TextExtractor) Option {
	return func(p *Parser) {
		p.extractor = extractor
	}
}

// WithBanks replaces the bank signature table.
func WithBanks(banks []BankSignature) Option {
	return func(p *Parser) {
		p.banks = banks
	}
}

// NewParser creates a parser backed by the PDF extractor and the known bank table.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		extractor: NewPDFExtractor(),
		banks:     KnownBanks(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var pdfSignature = []byte("%PDF-")

// HasPDFSignature reports whether data starts with a PDF header, allowing a
// leading byte order mark or whitespace.
func HasPDFSignature(data []byte) bool {
	trimmed := bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	trimmed = bytes.TrimLeft(trimmed, " \t\r\n\x00")
	return bytes.HasPrefix(trimmed, pdfSignature)
}

// Parse extracts the text lines of a statement and identifies its bank. It fails
// with common.ErrInvalidFormat for non-PDF input and common.ErrParse when the PDF
// cannot be decoded.
func (p *Parser) Parse(data []byte) (*Document, error) {
	if !HasPDFSignature(data) {
		return nil, fmt.Errorf("%w: missing PDF signature", common.ErrInvalidFormat)
	}

	pages, err := p.extractor.ExtractPages(data)
	if err != nil {
		if errors.Is(err, common.ErrParse) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrParse, err)
	}

	doc := &Document{
		Pages: pages,
		Lines: SplitLines(pages),
	}
	doc.Bank = IdentifyBank(p.banks, pages)

	return doc, nil
}

// SplitLines flattens pages into trimmed, non-empty lines in page order.
func SplitLines(pages []string) []string {
	var lines []string
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(strings.ReplaceAll(line, "\r", ""))
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}
