package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the inferred recurrence interval of a pattern.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyIrregular Frequency = "irregular"
)

// Days returns the day equivalent of f, or 0 when f has none.
func (f Frequency) Days() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencyMonthly:
		return 30
	case FrequencyQuarterly:
		return 90
	case FrequencyYearly:
		return 365
	}
	return 0
}

// ParseFrequency accepts canonical names plus common aliases.
func ParseFrequency(s string) (Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly":
		return FrequencyWeekly, true
	case "biweekly", "bi-weekly", "fortnightly":
		return FrequencyBiweekly, true
	case "monthly":
		return FrequencyMonthly, true
	case "quarterly":
		return FrequencyQuarterly, true
	case "yearly", "annual", "annually":
		return FrequencyYearly, true
	case "irregular":
		return FrequencyIrregular, true
	}
	return "", false
}

// PaymentType is the classification of a recurring payment.
type PaymentType string

const (
	PaymentSubscription PaymentType = "subscription"
	PaymentHousing      PaymentType = "housing"
	PaymentUtility      PaymentType = "utility"
	PaymentInsurance    PaymentType = "insurance"
	PaymentProfessional PaymentType = "professional"
	PaymentDebt         PaymentType = "debt"
	PaymentSavings      PaymentType = "savings"
	PaymentTransfer     PaymentType = "transfer"
	PaymentUnknown      PaymentType = "unknown"
)

// ParsePaymentType maps a label onto a PaymentType.
func ParsePaymentType(s string) (PaymentType, bool) {
	switch pt := PaymentType(strings.ToLower(strings.TrimSpace(s))); pt {
	case PaymentSubscription, PaymentHousing, PaymentUtility, PaymentInsurance,
		PaymentProfessional, PaymentDebt, PaymentSavings, PaymentTransfer, PaymentUnknown:
		return pt, true
	}
	return "", false
}

const isoDate = "2006-01-02"

// DetectedPattern is one candidate recurring payment.
type DetectedPattern struct {
	ID                 string
	MerchantName       string
	NormalizedName     string
	Amount             decimal.Decimal
	AmountVariance     float64
	Frequency          Frequency
	PaymentType        PaymentType
	Confidence         float64
	TransactionCount   int
	FirstSeen          time.Time
	LastSeen           time.Time
	SampleDescriptions []string
	Transactions       []Transaction
}

// ToMap flattens the pattern for transport. The transaction list is left out.
func (p DetectedPattern) ToMap() map[string]any {
	samples := make([]string, len(p.SampleDescriptions))
	copy(samples, p.SampleDescriptions)
	return map[string]any{
		"id":                  p.ID,
		"merchant_name":       p.MerchantName,
		"normalized_name":     p.NormalizedName,
		"amount":              p.Amount.StringFixed(2),
		"amount_variance":     p.AmountVariance,
		"frequency":           string(p.Frequency),
		"payment_type":        string(p.PaymentType),
		"confidence":          p.Confidence,
		"transaction_count":   p.TransactionCount,
		"first_seen":          p.FirstSeen.Format(isoDate),
		"last_seen":           p.LastSeen.Format(isoDate),
		"sample_descriptions": samples,
	}
}

// PatternFromMap rebuilds a pattern from its ToMap form. Values decoded from
// JSON (float64 numbers, []any lists) are accepted as well.
func PatternFromMap(m map[string]any) (DetectedPattern, error) {
	var p DetectedPattern
	var err error

	p.ID, _ = m["id"].(string)
	p.MerchantName, _ = m["merchant_name"].(string)
	p.NormalizedName, _ = m["normalized_name"].(string)

	amount, _ := m["amount"].(string)
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return p, fmt.Errorf("pattern amount %q: %w", amount, err)
	}

	freq, _ := m["frequency"].(string)
	f, ok := ParseFrequency(freq)
	if !ok {
		return p, fmt.Errorf("pattern frequency %q: unknown value", freq)
	}
	p.Frequency = f

	pt, _ := m["payment_type"].(string)
	if p.PaymentType, ok = ParsePaymentType(pt); !ok {
		return p, fmt.Errorf("pattern payment_type %q: unknown value", pt)
	}

	if p.Confidence, err = toFloat(m["confidence"]); err != nil {
		return p, fmt.Errorf("pattern confidence: %w", err)
	}
	if p.AmountVariance, err = toFloat(m["amount_variance"]); err != nil {
		return p, fmt.Errorf("pattern amount_variance: %w", err)
	}
	count, err := toFloat(m["transaction_count"])
	if err != nil {
		return p, fmt.Errorf("pattern transaction_count: %w", err)
	}
	p.TransactionCount = int(count)

	for key, dst := range map[string]*time.Time{"first_seen": &p.FirstSeen, "last_seen": &p.LastSeen} {
		s, _ := m[key].(string)
		if s == "" {
			continue
		}
		t, err := time.Parse(isoDate, s)
		if err != nil {
			return p, fmt.Errorf("pattern %s %q: %w", key, s, err)
		}
		*dst = t
	}

	switch samples := m["sample_descriptions"].(type) {
	case []string:
		p.SampleDescriptions = append(p.SampleDescriptions, samples...)
	case []any:
		for _, s := range samples {
			if str, ok := s.(string); ok {
				p.SampleDescriptions = append(p.SampleDescriptions, str)
			}
		}
	}
	return p, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

// ExistingPayment is a payment the user already tracks.
type ExistingPayment struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Amount    decimal.Decimal `json:"amount" yaml:"-"`
	Currency  string          `json:"currency,omitempty" yaml:"currency,omitempty"`
	Frequency Frequency       `json:"frequency,omitempty" yaml:"frequency,omitempty"`
}

// MatchLevel buckets a similarity score.
type MatchLevel string

const (
	MatchHigh   MatchLevel = "high"
	MatchMedium MatchLevel = "medium"
	MatchLow    MatchLevel = "low"
)

const (
	HighConfidenceScore   = 0.85
	MediumConfidenceScore = 0.6
)

// DuplicateMatch pairs a detected pattern with the existing payment it
// most likely corresponds to.
type DuplicateMatch struct {
	Pattern         DetectedPattern
	Existing        ExistingPayment
	SimilarityScore float64
	MatchReasons    []string
}

// ConfidenceLevel buckets the similarity score.
func (m DuplicateMatch) ConfidenceLevel() MatchLevel {
	switch {
	case m.SimilarityScore >= HighConfidenceScore:
		return MatchHigh
	case m.SimilarityScore >= MediumConfidenceScore:
		return MatchMedium
	}
	return MatchLow
}

// ToMap flattens the match for transport.
func (m DuplicateMatch) ToMap() map[string]any {
	reasons := make([]string, len(m.MatchReasons))
	copy(reasons, m.MatchReasons)
	return map[string]any{
		"pattern":          m.Pattern.ToMap(),
		"existing_id":      m.Existing.ID,
		"existing_name":    m.Existing.Name,
		"similarity_score": m.SimilarityScore,
		"match_reasons":    reasons,
		"confidence_level": string(m.ConfidenceLevel()),
	}
}
