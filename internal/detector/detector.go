// Package detector finds recurring outgoing payments in a statement by
// grouping transactions per merchant and scoring how regular each group is.
package detector

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

const (
	// DefaultMinTransactions is the smallest group considered recurring.
	DefaultMinTransactions = 2

	maxMerchantName = 100
	maxSamples      = 3

	// observations at which the count signal saturates
	fullCount = 6.0
)

// Day ranges matched against the mean gap between payments.
var frequencyBuckets = []struct {
	freq     models.Frequency
	min, max float64
}{
	{models.FrequencyWeekly, 5, 9},
	{models.FrequencyBiweekly, 12, 18},
	{models.FrequencyMonthly, 25, 35},
	{models.FrequencyQuarterly, 85, 100},
	{models.FrequencyYearly, 350, 380},
}

// patternNamespace seeds pattern IDs so the same group always gets the same ID.
var patternNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("recurring-detector/pattern"))

// Detector turns transactions into recurring-payment candidates.
// The zero value uses DefaultMinTransactions and keeps every pattern.
type Detector struct {
	MinTransactions int
	MinConfidence   float64
}

func (d Detector) minTransactions() int {
	if d.MinTransactions < DefaultMinTransactions {
		return DefaultMinTransactions
	}
	return d.MinTransactions
}

// Detect groups outgoing transactions by normalized merchant and returns one
// pattern per group, ranked and filtered at MinConfidence.
func (d Detector) Detect(txns []models.Transaction) []models.DetectedPattern {
	groups := make(map[string][]models.Transaction)
	for _, t := range txns {
		if !t.IsDebit() {
			continue
		}
		key := NormalizeMerchant(t.Description)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], t)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patterns := make([]models.DetectedPattern, 0, len(keys))
	for _, key := range keys {
		if len(groups[key]) < d.minTransactions() {
			continue
		}
		patterns = append(patterns, analyze(key, groups[key]))
	}
	return Rank(patterns, d.MinConfidence)
}

// analyze builds the pattern for one merchant group of at least two
// transactions.
func analyze(key string, group []models.Transaction) models.DetectedPattern {
	txns := make([]models.Transaction, len(group))
	copy(txns, group)
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date.Before(txns[j].Date) })

	amounts := make([]decimal.Decimal, len(txns))
	for i, t := range txns {
		amounts[i] = t.Amount.Abs()
	}
	mean, variance := amountStats(amounts)

	gaps := dayGaps(txns)
	meanGap := meanOf(gaps)
	freq := classifyFrequency(meanGap)
	timing := timingScore(freq, gaps, meanGap)

	confidence := 0.3*math.Min(1, float64(len(txns))/fullCount) +
		0.3*(1-variance) +
		0.3*timing
	if freq != models.FrequencyIrregular {
		confidence += 0.1
	}

	samples := sampleDescriptions(txns)
	first, last := txns[0].Date, txns[len(txns)-1].Date
	return models.DetectedPattern{
		ID:                 uuid.NewSHA1(patternNamespace, []byte(key+"|"+first.Format(time.DateOnly))).String(),
		MerchantName:       truncate(txns[0].Description, maxMerchantName),
		NormalizedName:     key,
		Amount:             mean.Round(2),
		AmountVariance:     round(variance, 4),
		Frequency:          freq,
		PaymentType:        ClassifyPaymentType(key, samples, freq),
		Confidence:         round(clamp(confidence, 0, 1), 2),
		TransactionCount:   len(txns),
		FirstSeen:          first,
		LastSeen:           last,
		SampleDescriptions: samples,
		Transactions:       txns,
	}
}

// amountStats returns the mean and the coefficient of variation (sample
// standard deviation over mean) clamped to [0,1]. A zero mean counts as
// fully variable.
func amountStats(amounts []decimal.Decimal) (decimal.Decimal, float64) {
	if len(amounts) == 0 {
		return decimal.Zero, 1
	}
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(amounts))))
	if mean.IsZero() {
		return mean, 1
	}
	if len(amounts) < 2 {
		return mean, 0
	}

	m := mean.InexactFloat64()
	var sq float64
	for _, a := range amounts {
		d := a.InexactFloat64() - m
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(len(amounts)-1))
	return mean, clamp(stdev/math.Abs(m), 0, 1)
}

func dayGaps(txns []models.Transaction) []float64 {
	gaps := make([]float64, 0, len(txns))
	for i := 1; i < len(txns); i++ {
		gaps = append(gaps, math.Round(txns[i].Date.Sub(txns[i-1].Date).Hours()/24))
	}
	return gaps
}

func classifyFrequency(meanGap float64) models.Frequency {
	for _, b := range frequencyBuckets {
		if meanGap >= b.min && meanGap <= b.max {
			return b.freq
		}
	}
	return models.FrequencyIrregular
}

// timingScore is 1 minus the coefficient of variation of the gaps. Irregular
// patterns and patterns with a single gap get fixed scores.
func timingScore(freq models.Frequency, gaps []float64, meanGap float64) float64 {
	if freq == models.FrequencyIrregular {
		return 0.3
	}
	if len(gaps) < 2 || meanGap == 0 {
		return 0.5
	}
	var sq float64
	for _, g := range gaps {
		d := g - meanGap
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(len(gaps)-1))
	return clamp(1-stdev/meanGap, 0, 1)
}

func sampleDescriptions(txns []models.Transaction) []string {
	seen := make(map[string]bool)
	var samples []string
	for _, t := range txns {
		if seen[t.Description] {
			continue
		}
		seen[t.Description] = true
		samples = append(samples, t.Description)
		if len(samples) == maxSamples {
			break
		}
	}
	return samples
}

// Rank returns the patterns at or above minConfidence ordered by confidence,
// then transaction count, then normalized name.
func Rank(patterns []models.DetectedPattern, minConfidence float64) []models.DetectedPattern {
	out := make([]models.DetectedPattern, 0, len(patterns))
	for _, p := range patterns {
		if p.Confidence >= minConfidence {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.TransactionCount != b.TransactionCount {
			return a.TransactionCount > b.TransactionCount
		}
		return a.NormalizedName < b.NormalizedName
	})
	return out
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
