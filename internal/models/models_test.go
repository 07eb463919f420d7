package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTypeFromAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   TransactionType
	}{
		{"-15.99", TransactionDebit},
		{"2500.00", TransactionCredit},
		{"0", TransactionUnknown},
	}
	for _, tt := range tests {
		got := TypeFromAmount(decimal.RequireFromString(tt.amount))
		if got != tt.want {
			t.Errorf("TypeFromAmount(%s): got %s, want %s", tt.amount, got, tt.want)
		}
	}
}

func TestStatementDataAggregates(t *testing.T) {
	sd := NewStatementData(FormatCSV, []Transaction{
		NewTransaction(day("2024-01-20"), decimal.RequireFromString("2500.00"), "SALARY"),
		NewTransaction(day("2024-01-15"), decimal.RequireFromString("-25.99"), "TESCO"),
		NewTransaction(day("2024-01-16"), decimal.RequireFromString("-10.01"), "COFFEE"),
	})

	if !sd.PeriodStart.Equal(day("2024-01-15")) || !sd.PeriodEnd.Equal(day("2024-01-20")) {
		t.Errorf("period: got %s..%s", sd.PeriodStart, sd.PeriodEnd)
	}
	if sd.Transactions[0].Description != "TESCO" {
		t.Errorf("expected transactions sorted by date, first is %q", sd.Transactions[0].Description)
	}
	if got := sd.TotalDebits().StringFixed(2); got != "36.00" {
		t.Errorf("TotalDebits: got %s, want 36.00", got)
	}
	if got := sd.TotalCredits().StringFixed(2); got != "2500.00" {
		t.Errorf("TotalCredits: got %s, want 2500.00", got)
	}
	if got := sd.NetChange().StringFixed(2); got != "2464.00" {
		t.Errorf("NetChange: got %s, want 2464.00", got)
	}
}

func TestMaskAccountNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12345678", "****5678"},
		{"GB29 NWBK 6016 1331 9268 19", "****6819"},
		{"123", "****123"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MaskAccountNumber(tt.in); got != tt.want {
			t.Errorf("MaskAccountNumber(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPatternMapRoundTrip(t *testing.T) {
	p := DetectedPattern{
		ID:                 "abc",
		MerchantName:       "NETFLIX.COM",
		NormalizedName:     "netflix.com",
		Amount:             decimal.RequireFromString("15.99"),
		AmountVariance:     0,
		Frequency:          FrequencyMonthly,
		PaymentType:        PaymentSubscription,
		Confidence:         0.94,
		TransactionCount:   5,
		FirstSeen:          day("2025-01-01"),
		LastSeen:           day("2025-05-01"),
		SampleDescriptions: []string{"NETFLIX.COM"},
	}

	m := p.ToMap()
	if m["amount"] != "15.99" {
		t.Errorf("amount: got %v, want 15.99", m["amount"])
	}
	if m["first_seen"] != "2025-01-01" {
		t.Errorf("first_seen: got %v", m["first_seen"])
	}

	back, err := PatternFromMap(m)
	if err != nil {
		t.Fatalf("PatternFromMap: %v", err)
	}
	if !back.Amount.Equal(p.Amount) || back.Frequency != p.Frequency ||
		back.PaymentType != p.PaymentType || back.Confidence != p.Confidence {
		t.Errorf("round trip mismatch: got %+v", back)
	}

	// after a JSON hop numbers arrive as float64 and lists as []any
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	viaJSON, err := PatternFromMap(decoded)
	if err != nil {
		t.Fatalf("PatternFromMap(json): %v", err)
	}
	if !viaJSON.Amount.Equal(p.Amount) || viaJSON.Confidence != 0.94 || viaJSON.TransactionCount != 5 {
		t.Errorf("json round trip mismatch: got %+v", viaJSON)
	}
	if len(viaJSON.SampleDescriptions) != 1 || !viaJSON.LastSeen.Equal(p.LastSeen) {
		t.Errorf("json round trip lost samples or dates: %+v", viaJSON)
	}
}

func TestPatternFromMapRejectsUnknownEnums(t *testing.T) {
	m := DetectedPattern{Amount: decimal.NewFromInt(1), Frequency: "sometimes", PaymentType: PaymentDebt}.ToMap()
	if _, err := PatternFromMap(m); err == nil {
		t.Error("expected error for unknown frequency")
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in   string
		want Frequency
		ok   bool
	}{
		{"Monthly", FrequencyMonthly, true},
		{"fortnightly", FrequencyBiweekly, true},
		{"annual", FrequencyYearly, true},
		{"daily", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFrequency(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseFrequency(%q): got (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDuplicateMatchLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  MatchLevel
	}{
		{1.0, MatchHigh},
		{0.85, MatchHigh},
		{0.7, MatchMedium},
		{0.45, MatchLow},
	}
	for _, tt := range tests {
		m := DuplicateMatch{SimilarityScore: tt.score}
		if got := m.ConfidenceLevel(); got != tt.want {
			t.Errorf("ConfidenceLevel(%v): got %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestErrorKindsAreDistinct(t *testing.T) {
	errs := []error{
		fmt.Errorf("wrapped: %w", &UnsupportedFormatError{Filename: "a.doc"}),
		fmt.Errorf("wrapped: %w", &ParseError{Format: FormatCSV, Reason: "bad encoding"}),
		fmt.Errorf("wrapped: %w", &EmptyStatementError{Format: FormatCSV}),
	}
	for i, err := range errs {
		var unsupported *UnsupportedFormatError
		var parseErr *ParseError
		var empty *EmptyStatementError
		got := []bool{errors.As(err, &unsupported), errors.As(err, &parseErr), errors.As(err, &empty)}
		for j, matched := range got {
			if matched != (i == j) {
				t.Errorf("error %d (%v): kind %d matched=%v", i, err, j, matched)
			}
		}
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	cause := errors.New("invalid byte")
	err := &ParseError{Format: FormatCSV, Reason: "decode", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ParseError should unwrap to its cause")
	}
}
