package detector

import (
	"fmt"
	"strings"

	"github.com/insightdelivered/recurring-detector/internal/classifier"
	"github.com/insightdelivered/recurring-detector/internal/models"
)

// maxDelta bounds how far one correction may move a confidence score.
const maxDelta = 0.2

// Summarize renders one numbered line per pattern, the form classifiers
// receive and correction indexes refer to.
func Summarize(patterns []models.DetectedPattern) string {
	var b strings.Builder
	for i, p := range patterns {
		fmt.Fprintf(&b, "%d. %s | %s | %s | %s | %d txns | %s\n",
			i+1, p.MerchantName, p.Amount.StringFixed(2), p.Frequency, p.PaymentType,
			p.TransactionCount, strings.Join(p.SampleDescriptions, "; "))
	}
	return b.String()
}

// ApplyCorrections returns a copy of patterns with the corrections applied.
// Corrections pointing at no pattern are ignored, as are empty names and
// unknown type labels.
func ApplyCorrections(patterns []models.DetectedPattern, corrections []classifier.Correction) []models.DetectedPattern {
	out := make([]models.DetectedPattern, len(patterns))
	copy(out, patterns)
	for _, c := range corrections {
		i := c.Index - 1
		if i < 0 || i >= len(out) {
			continue
		}
		p := out[i]
		if name := strings.TrimSpace(c.DisplayName); name != "" {
			p.MerchantName = truncate(name, maxMerchantName)
		}
		if pt, ok := models.ParsePaymentType(c.PaymentType); ok {
			p.PaymentType = pt
		}
		delta := clamp(c.ConfidenceDelta, -maxDelta, maxDelta)
		p.Confidence = round(clamp(p.Confidence+delta, 0, 1), 2)
		out[i] = p
	}
	return out
}
