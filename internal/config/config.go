// Package config loads settings from an optional config file, a .env file,
// RECURRING_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/insightdelivered/recurring-detector/internal/classifier"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "RECURRING"

type Config struct {
	MinConfidence      float64 `mapstructure:"min_confidence"`
	MinTransactions    int     `mapstructure:"min_transactions"`
	DuplicateThreshold float64 `mapstructure:"duplicate_threshold"`
	ProfilesPath       string  `mapstructure:"profiles_path"`

	Classifier classifier.Config `mapstructure:"classifier"`
	Server     Server            `mapstructure:"server"`
	Log        Log               `mapstructure:"log"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"min-confidence":      "min_confidence",
	"min-transactions":    "min_transactions",
	"duplicate-threshold": "duplicate_threshold",
	"profiles":            "profiles_path",
	"classifier":          "classifier.provider",
	"model":               "classifier.model",
	"addr":                "server.addr",
	"log-level":           "log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("min_confidence", 0.5)
	v.SetDefault("min_transactions", 2)
	v.SetDefault("duplicate_threshold", 0.4)
	v.SetDefault("profiles_path", "")
	v.SetDefault("classifier.provider", "none")
	v.SetDefault("classifier.model", classifier.DefaultModel)
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.timeout", classifier.DefaultTimeout)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
}

// Load reads the configuration. path names an explicit config file; when
// empty, recurring.yaml is looked up in the working directory and skipped if
// missing. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the Gemini SDK convention, used when no prefixed key is set
	if err := v.BindEnv("classifier.api_key", EnvPrefix+"_CLASSIFIER_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("recurring")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate range-checks the thresholds.
func (c *Config) Validate() error {
	var errs []error
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min_confidence must be between 0 and 1, got %v", c.MinConfidence))
	}
	if c.DuplicateThreshold < 0 || c.DuplicateThreshold > 1 {
		errs = append(errs, fmt.Errorf("duplicate_threshold must be between 0 and 1, got %v", c.DuplicateThreshold))
	}
	if c.MinTransactions < 2 {
		errs = append(errs, fmt.Errorf("min_transactions must be at least 2, got %d", c.MinTransactions))
	}
	if c.Classifier.Timeout < 0 {
		errs = append(errs, fmt.Errorf("classifier.timeout must not be negative, got %s", c.Classifier.Timeout))
	}
	return errors.Join(errs...)
}

// ClassifierTimeout returns the configured timeout or the default.
func (c *Config) ClassifierTimeout() time.Duration {
	if c.Classifier.Timeout <= 0 {
		return classifier.DefaultTimeout
	}
	return c.Classifier.Timeout
}
