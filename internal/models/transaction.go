package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money movement.
type TransactionType string

const (
	TransactionDebit   TransactionType = "DEBIT"
	TransactionCredit  TransactionType = "CREDIT"
	TransactionUnknown TransactionType = "UNKNOWN"
)

// TypeFromAmount infers the transaction type from the sign of amount.
func TypeFromAmount(amount decimal.Decimal) TransactionType {
	switch amount.Sign() {
	case -1:
		return TransactionDebit
	case 1:
		return TransactionCredit
	default:
		return TransactionUnknown
	}
}

// Transaction represents a single normalized statement line.
type Transaction struct {
	Date        time.Time         `json:"date"`
	Amount      decimal.Decimal   `json:"amount"` // negative = outflow
	Description string            `json:"description"`
	Type        TransactionType   `json:"type"`
	Balance     *decimal.Decimal  `json:"balance,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	Category    string            `json:"category,omitempty"`
	RawData     map[string]string `json:"rawData,omitempty"` // provenance: source cells by header
}

// NewTransaction builds a transaction whose type follows the amount sign.
func NewTransaction(date time.Time, amount decimal.Decimal, description string) Transaction {
	return Transaction{
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		Type:        TypeFromAmount(amount),
	}
}

// IsDebit reports whether the transaction is an outgoing payment.
func (t Transaction) IsDebit() bool {
	if t.Type == TransactionDebit {
		return true
	}
	return t.Type == TransactionUnknown && t.Amount.IsNegative()
}

// Format identifies the source file format of a statement.
type Format string

const (
	FormatCSV Format = "csv"
	FormatOFX Format = "ofx"
	FormatQIF Format = "qif"
	FormatPDF Format = "pdf"
	FormatXLS Format = "xls"
)

func (f Format) String() string { return string(f) }

// ParseFormat maps a user supplied name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "tsv":
		return FormatCSV, nil
	case "ofx", "qfx":
		return FormatOFX, nil
	case "qif":
		return FormatQIF, nil
	case "pdf":
		return FormatPDF, nil
	case "xls":
		return FormatXLS, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// StatementData holds one parsed statement file.
// Aggregates are derived from Transactions on every call.
type StatementData struct {
	Transactions  []Transaction
	Currency      string
	BankName      string
	AccountNumber string // masked
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Format        Format
}

// NewStatementData sorts txns by date and derives the statement period.
func NewStatementData(format Format, txns []Transaction) *StatementData {
	sorted := make([]Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	sd := &StatementData{Transactions: sorted, Format: format}
	if len(sorted) > 0 {
		sd.PeriodStart = sorted[0].Date
		sd.PeriodEnd = sorted[len(sorted)-1].Date
	}
	return sd
}

// TotalDebits is the sum of outgoing amounts as a positive number.
func (s *StatementData) TotalDebits() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.Transactions {
		if t.IsDebit() {
			total = total.Add(t.Amount.Abs())
		}
	}
	return total
}

// TotalCredits is the sum of incoming amounts.
func (s *StatementData) TotalCredits() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.Transactions {
		if !t.IsDebit() && t.Amount.IsPositive() {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// NetChange is credits minus debits.
func (s *StatementData) NetChange() decimal.Decimal {
	return s.TotalCredits().Sub(s.TotalDebits())
}

// MaskAccountNumber keeps only the last four digits of an account number.
func MaskAccountNumber(acct string) string {
	var digits []rune
	for _, r := range acct {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 {
		return ""
	}
	if len(digits) <= 4 {
		return "****" + string(digits)
	}
	return "****" + string(digits[len(digits)-4:])
}
