package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

// existingEntry is one payment in an existing-payments file. Amounts are
// kept as text so they reach decimal without a float round trip.
type existingEntry struct {
	models.ExistingPayment `yaml:",inline"`
	Amount                 string `yaml:"amount"`
}

// LoadExistingPayments reads a YAML list of payments the user already
// tracks:
//
//	- id: netflix
//	  name: Netflix
//	  amount: "15.99"
//	  frequency: monthly
func LoadExistingPayments(path string) ([]models.ExistingPayment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing payments: %w", err)
	}
	var entries []existingEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse existing payments %q: %w", path, err)
	}

	out := make([]models.ExistingPayment, 0, len(entries))
	for i, e := range entries {
		p := e.ExistingPayment
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("existing payment %d in %q has no name", i+1, path)
		}
		if e.Amount != "" {
			amount, err := decimal.NewFromString(strings.TrimSpace(e.Amount))
			if err != nil {
				return nil, fmt.Errorf("existing payment %q: invalid amount %q", p.Name, e.Amount)
			}
			p.Amount = amount
		}
		if p.Frequency != "" {
			freq, ok := models.ParseFrequency(string(p.Frequency))
			if !ok {
				return nil, fmt.Errorf("existing payment %q: unknown frequency %q", p.Name, p.Frequency)
			}
			p.Frequency = freq
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("existing-%d", i+1)
		}
		out = append(out, p)
	}
	return out, nil
}
