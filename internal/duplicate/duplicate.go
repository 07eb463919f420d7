// Package duplicate matches detected patterns against payments the user
// already tracks.
package duplicate

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

const (
	// DefaultThreshold is the minimum overall score reported as a match.
	DefaultThreshold = 0.4

	nameWeight      = 0.4
	amountWeight    = 0.35
	frequencyWeight = 0.25

	minNameScore = 0.4
)

var tenPercent = decimal.RequireFromString("0.1")

// Detector scores pattern/payment pairs. The zero value uses
// DefaultThreshold.
type Detector struct {
	Threshold float64
}

func (d Detector) threshold() float64 {
	if d.Threshold <= 0 {
		return DefaultThreshold
	}
	return d.Threshold
}

// Score combines name, amount and frequency similarity into a weighted
// average. ok is false when the names are too different to compare.
// Amount and frequency are left out when the existing payment has none.
func (d Detector) Score(p models.DetectedPattern, e models.ExistingPayment) (float64, []string, bool) {
	name := max(nameSimilarity(p.MerchantName, e.Name), nameSimilarity(p.NormalizedName, e.Name))
	if name < minNameScore {
		return 0, nil, false
	}

	total := nameWeight * name
	weights := nameWeight
	reasons := []string{nameReason(p.MerchantName, e.Name, name)}

	if !e.Amount.IsZero() {
		score, reason := amountSimilarity(p.Amount.Abs(), e.Amount.Abs())
		total += amountWeight * score
		weights += amountWeight
		reasons = append(reasons, reason)
	}
	if e.Frequency != "" {
		score, reason := frequencySimilarity(p.Frequency, e.Frequency)
		total += frequencyWeight * score
		weights += frequencyWeight
		reasons = append(reasons, reason)
	}
	return math.Round(total/weights*100) / 100, reasons, true
}

func nameReason(pattern, existing string, score float64) string {
	switch {
	case score >= 1:
		return fmt.Sprintf("same name: %q matches %q", pattern, existing)
	case score >= 0.9:
		return fmt.Sprintf("name contains %q", existing)
	}
	return fmt.Sprintf("similar name: %q ~ %q (%.0f%%)", pattern, existing, score*100)
}

// amountSimilarity is 1 minus the difference relative to the average. Pairs
// differing by 10% or more are halved.
func amountSimilarity(a, b decimal.Decimal) (float64, string) {
	if a.Equal(b) {
		return 1, fmt.Sprintf("same amount: %s", a.StringFixed(2))
	}
	avg := a.Add(b).Div(decimal.NewFromInt(2))
	if avg.IsZero() {
		return 0, fmt.Sprintf("different amount: %s vs %s", a.StringFixed(2), b.StringFixed(2))
	}
	ratio := a.Sub(b).Abs().Div(avg)
	score := math.Max(0, 1-ratio.InexactFloat64())
	if ratio.GreaterThanOrEqual(tenPercent) {
		return score * 0.5, fmt.Sprintf("different amount: %s vs %s", a.StringFixed(2), b.StringFixed(2))
	}
	return score, fmt.Sprintf("similar amount: %s vs %s", a.StringFixed(2), b.StringFixed(2))
}

// frequencySimilarity compares day equivalents. Irregular on either side
// gets a fixed low score.
func frequencySimilarity(detected, existing models.Frequency) (float64, string) {
	if detected == existing {
		return 1, fmt.Sprintf("same frequency: %s", detected)
	}
	reason := fmt.Sprintf("frequency %s vs %s", detected, existing)
	if detected == models.FrequencyIrregular || detected.Days() == 0 {
		return 0.3, reason
	}
	if existing == models.FrequencyIrregular || existing.Days() == 0 {
		return 0.5, reason
	}
	d1, d2 := float64(detected.Days()), float64(existing.Days())
	diff := math.Abs(d1 - d2)
	switch {
	case diff <= 3:
		return 0.9, reason
	case diff <= 7:
		return 0.7, reason
	}
	return math.Max(0, 1-diff/math.Max(d1, d2)), reason
}

// Matches returns every existing payment scoring at or above the threshold,
// best first.
func (d Detector) Matches(p models.DetectedPattern, existing []models.ExistingPayment) []models.DuplicateMatch {
	var matches []models.DuplicateMatch
	for _, e := range existing {
		score, reasons, ok := d.Score(p, e)
		if !ok || score < d.threshold() {
			continue
		}
		matches = append(matches, models.DuplicateMatch{
			Pattern:         p,
			Existing:        e,
			SimilarityScore: score,
			MatchReasons:    reasons,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SimilarityScore > matches[j].SimilarityScore
	})
	return matches
}

// BestMatch returns the highest scoring match, if any.
func (d Detector) BestMatch(p models.DetectedPattern, existing []models.ExistingPayment) (models.DuplicateMatch, bool) {
	matches := d.Matches(p, existing)
	if len(matches) == 0 {
		return models.DuplicateMatch{}, false
	}
	return matches[0], true
}

// FindDuplicates returns the best match of each pattern, in pattern order.
// Patterns without a match are left out.
func (d Detector) FindDuplicates(patterns []models.DetectedPattern, existing []models.ExistingPayment) []models.DuplicateMatch {
	if len(existing) == 0 {
		return nil
	}
	var out []models.DuplicateMatch
	for _, p := range patterns {
		if m, ok := d.BestMatch(p, existing); ok {
			out = append(out, m)
		}
	}
	return out
}
