package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single statement line after extraction.
type Transaction struct {
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"` // debits negative
	Description   string          `json:"description"`
	OriginalText  string          `json:"original_text"`
	RecordCreated bool            `json:"record_created"`
}

// IsDebit reports whether money left the account.
func (t Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// GenerateHash creates a stable fingerprint for the transaction.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Frequency is the inferred recurrence interval of a payment.
type Frequency string

// Frequency values. FrequencyIrregular is produced internally by detection and
// is never stored on a suggestion.
const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
	FrequencyOneTime   Frequency = "one_time"
	FrequencyIrregular Frequency = "irregular"
)

// IsValid reports whether f may appear on a suggestion or record.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual, FrequencyOneTime:
		return true
	}
	return false
}
