// Package classifier defines the optional external step that relabels and
// re-scores detected patterns.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds one Classify call when the caller sets none.
const DefaultTimeout = 10 * time.Second

// Correction adjusts one pattern. Index is the 1-based line of the pattern in
// the summary the classifier received.
type Correction struct {
	Index           int     `json:"index"`
	DisplayName     string  `json:"display_name"`
	PaymentType     string  `json:"payment_type"`
	ConfidenceDelta float64 `json:"confidence_delta"`
}

// Classifier returns corrections for a numbered text summary of patterns.
type Classifier interface {
	Classify(ctx context.Context, summary string) ([]Correction, error)
}

// Noop never corrects anything.
type Noop struct{}

func (Noop) Classify(context.Context, string) ([]Correction, error) { return nil, nil }

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, summary string) ([]Correction, error)

func (f Func) Classify(ctx context.Context, summary string) ([]Correction, error) {
	return f(ctx, summary)
}

// Config selects and configures a provider.
type Config struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// New builds the classifier named by cfg.Provider. An empty provider or
// "none" gives Noop.
func New(ctx context.Context, cfg Config) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none", "noop":
		return Noop{}, nil
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}
