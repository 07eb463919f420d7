package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MinConfidence != 0.5 || cfg.MinTransactions != 2 || cfg.DuplicateThreshold != 0.4 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Classifier.Provider != "none" || cfg.Server.Addr != ":8080" || cfg.Log.Level != "info" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.ClassifierTimeout() != 10*time.Second {
		t.Errorf("timeout: got %s", cfg.ClassifierTimeout())
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recurring.yaml")
	content := strings.Join([]string{
		"min_confidence: 0.6",
		"duplicate_threshold: 0.7",
		"classifier:",
		"  provider: gemini",
		"  timeout: 3s",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RECURRING_DUPLICATE_THRESHOLD", "0.9")
	t.Setenv("RECURRING_SERVER_ADDR", ":9000")
	t.Setenv("GEMINI_API_KEY", "secret")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Float64("min-confidence", 0.5, "")
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--min-confidence=0.8"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"flag over file", cfg.MinConfidence, 0.8},
		{"env over file", cfg.DuplicateThreshold, 0.9},
		{"env", cfg.Server.Addr, ":9000"},
		{"file", cfg.Classifier.Provider, "gemini"},
		{"file duration", cfg.Classifier.Timeout, 3 * time.Second},
		{"api key fallback", cfg.Classifier.APIKey, "secret"},
		{"unchanged flag keeps default", cfg.Log.Level, "info"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing explicit config file")
	}

	t.Setenv("RECURRING_MIN_CONFIDENCE", "1.5")
	if _, err := Load("", nil); err == nil || !strings.Contains(err.Error(), "min_confidence") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{MinConfidence: 0.5, MinTransactions: 2, DuplicateThreshold: 0.4}, ""},
		{"negative confidence", Config{MinConfidence: -0.1, MinTransactions: 2}, "min_confidence"},
		{"threshold above one", Config{MinTransactions: 2, DuplicateThreshold: 1.2}, "duplicate_threshold"},
		{"too few transactions", Config{MinTransactions: 1}, "min_transactions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
