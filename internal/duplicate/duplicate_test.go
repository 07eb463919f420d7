package duplicate

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

func pattern(name, amount string, freq models.Frequency) models.DetectedPattern {
	return models.DetectedPattern{
		MerchantName:   name,
		NormalizedName: normalizeName(name),
		Amount:         decimal.RequireFromString(amount),
		Frequency:      freq,
	}
}

func existing(id, name, amount string, freq models.Frequency) models.ExistingPayment {
	e := models.ExistingPayment{ID: id, Name: name, Frequency: freq}
	if amount != "" {
		e.Amount = decimal.RequireFromString(amount)
	}
	return e
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

func TestNetflixMatchesNetflixCom(t *testing.T) {
	d := Detector{}
	p := pattern("Netflix", "15.99", models.FrequencyMonthly)

	m, ok := d.BestMatch(p, []models.ExistingPayment{existing("1", "NETFLIX.COM", "15.99", models.FrequencyMonthly)})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.SimilarityScore < models.HighConfidenceScore || m.ConfidenceLevel() != models.MatchHigh {
		t.Errorf("got score %v (%s), want high confidence", m.SimilarityScore, m.ConfidenceLevel())
	}
	if m.Existing.ID != "1" || len(m.MatchReasons) != 3 {
		t.Errorf("got %+v", m)
	}
}

func TestUnrelatedPaymentDoesNotMatch(t *testing.T) {
	d := Detector{}
	p := pattern("Netflix", "15.99", models.FrequencyMonthly)
	spotify := existing("2", "Spotify", "9.99", models.FrequencyWeekly)

	if _, _, ok := d.Score(p, spotify); ok {
		t.Error("expected names to be rejected")
	}
	if _, ok := d.BestMatch(p, []models.ExistingPayment{spotify}); ok {
		t.Error("expected no match")
	}
}

func TestMatchesSortedByScore(t *testing.T) {
	d := Detector{}
	p := pattern("NETFLIX.COM", "15.99", models.FrequencyMonthly)
	list := []models.ExistingPayment{
		existing("a", "Disney+", "7.99", models.FrequencyMonthly),
		existing("b", "Netflix Premium", "17.99", models.FrequencyMonthly),
		existing("c", "Netflix", "15.99", models.FrequencyMonthly),
	}

	matches := d.Matches(p, list)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Existing.ID != "c" || matches[1].Existing.ID != "b" {
		t.Errorf("order: got %s, %s", matches[0].Existing.ID, matches[1].Existing.ID)
	}
	// 0.4*1 + 0.35*0.5*(1-2/16.99) + 0.25*1
	if !almostEqual(matches[1].SimilarityScore, 0.8) {
		t.Errorf("premium score: got %v, want 0.8", matches[1].SimilarityScore)
	}
}

func TestScoreSkipsMissingSignals(t *testing.T) {
	d := Detector{}
	p := pattern("British Gas", "60.00", models.FrequencyMonthly)

	score, reasons, ok := d.Score(p, existing("x", "British Gas Ltd", "", ""))
	if !ok || score != 1 || len(reasons) != 1 {
		t.Errorf("got %v %v %v, want name-only score 1", score, reasons, ok)
	}
}

func TestThreshold(t *testing.T) {
	p := pattern("Gym Group", "25.00", models.FrequencyIrregular)
	e := existing("g", "Gym", "80.00", models.FrequencyMonthly)

	// 0.4*0.9 + 0.35*0 + 0.25*0.3 = 0.435
	score, _, ok := Detector{}.Score(p, e)
	if !ok || score < 0.43 || score > 0.44 {
		t.Fatalf("got %v %v", score, ok)
	}
	if got := (Detector{}).Matches(p, []models.ExistingPayment{e}); len(got) != 1 {
		t.Errorf("default threshold: got %d matches", len(got))
	}
	if got := (Detector{Threshold: 0.5}).Matches(p, []models.ExistingPayment{e}); len(got) != 0 {
		t.Errorf("threshold 0.5: got %d matches", len(got))
	}
}

func TestFindDuplicates(t *testing.T) {
	d := Detector{}
	patterns := []models.DetectedPattern{
		pattern("SPOTIFY", "10.99", models.FrequencyMonthly),
		pattern("TESCO", "40.00", models.FrequencyIrregular),
		pattern("NETFLIX.COM", "15.99", models.FrequencyMonthly),
	}
	list := []models.ExistingPayment{
		existing("n", "Netflix", "15.99", models.FrequencyMonthly),
		existing("s", "Spotify Premium", "10.99", models.FrequencyMonthly),
	}

	got := d.FindDuplicates(patterns, list)
	if len(got) != 2 || got[0].Existing.ID != "s" || got[1].Existing.ID != "n" {
		t.Errorf("got %+v", got)
	}
	if d.FindDuplicates(patterns, nil) != nil {
		t.Error("expected nil without existing payments")
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NETFLIX.COM", "netflix"},
		{"Netflix Premium Subscription", "netflix"},
		{"Spotify AB", "spotify ab"},
		{"Ltd", "ltd"},
		{"  Octopus-Energy  Ltd. ", "octopus energy"},
	}
	for _, tt := range tests {
		if got := normalizeName(tt.input); got != tt.expected {
			t.Errorf("normalizeName(%q): got %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSequenceRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abcd", "bcde", 0.75},
		{"netflix", "netflix", 1},
		{"", "", 1},
		{"abc", "xyz", 0},
		{"spotify", "netflix", 2.0 * 2 / 14},
	}
	for _, tt := range tests {
		if got := sequenceRatio(tt.a, tt.b); !almostEqual(got, tt.want) {
			t.Errorf("sequenceRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenOverlap(t *testing.T) {
	if got := tokenOverlap("british gas energy", "gas british"); !almostEqual(got, 2.0/3) {
		t.Errorf("got %v, want 0.667", got)
	}
	if got := tokenOverlap("", "gas"); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestAmountSimilarity(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		a, b string
		want float64
	}{
		{"15.99", "15.99", 1},
		{"10.00", "10.50", 1 - 0.5/10.25},
		{"10.00", "12.00", (1 - 2.0/11) * 0.5},
		{"10.00", "100.00", (1 - 90.0/55) * 0},
	}
	for _, tt := range tests {
		if got, _ := amountSimilarity(d(tt.a), d(tt.b)); !almostEqual(got, tt.want) {
			t.Errorf("amountSimilarity(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFrequencySimilarity(t *testing.T) {
	tests := []struct {
		detected, existing models.Frequency
		want               float64
	}{
		{models.FrequencyMonthly, models.FrequencyMonthly, 1},
		{models.FrequencyWeekly, models.FrequencyBiweekly, 0.7},
		{models.FrequencyMonthly, models.FrequencyQuarterly, 1 - 60.0/90},
		{models.FrequencyIrregular, models.FrequencyMonthly, 0.3},
		{models.FrequencyMonthly, models.FrequencyIrregular, 0.5},
		{models.FrequencyQuarterly, models.FrequencyYearly, 1 - 275.0/365},
	}
	for _, tt := range tests {
		if got, _ := frequencySimilarity(tt.detected, tt.existing); !almostEqual(got, tt.want) {
			t.Errorf("frequencySimilarity(%s, %s) = %v, want %v", tt.detected, tt.existing, got, tt.want)
		}
	}
}
