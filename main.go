package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/recurring-detector/internal/classifier"
	"github.com/insightdelivered/recurring-detector/internal/config"
	"github.com/insightdelivered/recurring-detector/internal/logger"
	"github.com/insightdelivered/recurring-detector/internal/parser"
	"github.com/insightdelivered/recurring-detector/internal/pipeline"
)

const version = "1.0.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "recurring-detector",
	Short: "Find recurring payments in bank statements",
	Long: `Recurring Payment Detector
by Insight Delivered

Parses bank statements (CSV, OFX/QFX, QIF, PDF, XLS), finds subscriptions,
bills and other recurring outgoing payments, and flags the ones that match
payments you already track.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and exit",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "recurring-detector v%s\n", version)
	},
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the known bank export profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		registry, err := loadRegistry(cfg)
		if err != nil {
			return err
		}
		printProfiles(cmd.OutOrStdout(), registry)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (default is ./recurring.yaml)")
	flags.String("profiles", "", "YAML file with extra bank profiles")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(detectCmd, serveCmd, profilesCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRegistry extends the built-in profiles with cfg.ProfilesPath.
func loadRegistry(cfg *config.Config) (*parser.Registry, error) {
	if cfg.ProfilesPath == "" {
		return parser.DefaultRegistry(), nil
	}
	extra, err := parser.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		return nil, err
	}
	return parser.NewRegistry(extra...)
}

// buildPipeline wires a pipeline from cfg.
func buildPipeline(ctx context.Context, cfg *config.Config, l *log.Logger) (*pipeline.Pipeline, error) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	c, err := classifier.New(ctx, cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("failed to set up classifier: %w", err)
	}
	if _, ok := c.(classifier.Noop); !ok {
		l.Info("classifier enabled", "provider", cfg.Classifier.Provider, "model", cfg.Classifier.Model)
	}
	minConfidence := cfg.MinConfidence
	return pipeline.New(pipeline.Options{
		Logger:             l,
		Registry:           registry,
		MinTransactions:    cfg.MinTransactions,
		MinConfidence:      &minConfidence,
		DuplicateThreshold: cfg.DuplicateThreshold,
		Classifier:         c,
		ClassifierTimeout:  cfg.ClassifierTimeout(),
	}), nil
}

func newLogger(cfg *config.Config) *log.Logger {
	return logger.New(cfg.Log.Level, os.Stderr)
}
