package statement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/testutil"
)

type fakeExtractor struct {
	err   error
	pages []string
}

func (f fakeExtractor) ExtractPages(_ []byte) ([]string, error) {
	return f.pages, f.err
}

func TestHasPDFSignature(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "plain header", data: []byte("%PDF-1.7\n..."), want: true},
		{name: "leading whitespace", data: []byte("\r\n %PDF-1.4\n"), want: true},
		{name: "byte order mark", data: append([]byte{0xEF, 0xBB, 0xBF}, []byte("%PDF-1.4")...), want: true},
		{name: "csv", data: []byte("date,description,amount\n"), want: false},
		{name: "empty", data: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPDFSignature(tt.data))
		})
	}
}

func TestParser_Parse(t *testing.T) {
	t.Run("rejects non-PDF input", func(t *testing.T) {
		_, err := NewParser().Parse([]byte("Date,Description,Amount"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrInvalidFormat))
	})

	t.Run("corrupt PDF is a parse error", func(t *testing.T) {
		_, err := NewParser().Parse([]byte("%PDF-1.4\nthis is not really a pdf"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrParse))
	})

	t.Run("extractor failure is a parse error", func(t *testing.T) {
		p := NewParser(WithExtractor(fakeExtractor{err: errors.New("encrypted")}))
		_, err := p.Parse([]byte("%PDF-1.4\n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrParse))
		assert.Contains(t, err.Error(), "encrypted")
	})

	t.Run("reads generated statement", func(t *testing.T) {
		data := testutil.StatementPDF(
			"Barclays Bank UK PLC",
			"Statement of account",
			"01/03/2025 DD BRITISH GAS -85.50",
			"01/04/2025 DD BRITISH GAS -85.50",
		)

		doc, err := NewParser().Parse(data)
		require.NoError(t, err)
		assert.Equal(t, "Barclays", doc.Bank.Name)
		assert.Equal(t, FormatBarclays, doc.Bank.Format)
		require.Len(t, doc.Lines, 4)
		assert.Equal(t, "Statement of account", doc.Lines[1])
		assert.Equal(t, "01/04/2025 DD BRITISH GAS -85.50", doc.Lines[3])
	})

	t.Run("unknown bank is advisory", func(t *testing.T) {
		p := NewParser(WithExtractor(fakeExtractor{pages: []string{"Credit Union\n01/03/2025 RENT -500.00"}}))
		doc, err := p.Parse([]byte("%PDF-1.4\n"))
		require.NoError(t, err)
		assert.Equal(t, model.UnknownBank, doc.Bank.Name)
		assert.Equal(t, FormatGeneric, doc.Bank.Format)
		assert.Len(t, doc.Lines, 2)
	})
}

func TestIdentifyBank(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"HSBC UK Bank plc\nYour Statement", "HSBC"},
		{"www.metrobankonline.co.uk", "Metro Bank"},
		{"NatWest current account", "NatWest"},
		{"Nationwide Building Society FlexAccount", "Nationwide"},
		{"Some Local Bank", model.UnknownBank},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, IdentifyBank(KnownBanks(), []string{tt.text}).Name)
		})
	}
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines([]string{"a\r\n\n  b  ", "", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}
