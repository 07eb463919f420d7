package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/recurring-detector/internal/config"
	"github.com/insightdelivered/recurring-detector/internal/models"
	"github.com/insightdelivered/recurring-detector/internal/parser"
	"github.com/insightdelivered/recurring-detector/internal/pipeline"
	"github.com/insightdelivered/recurring-detector/internal/writer"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	highStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	midStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	lowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	dupStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13")) // magenta
)

var detectCmd = &cobra.Command{
	Use:   "detect [flags] <statement> [statement ...]",
	Short: "Detect recurring payments in one or more statements",
	Example: `  # Auto-detect format and bank
  recurring-detector detect statement.csv

  # Force a bank profile and check against tracked payments
  recurring-detector detect --profile=monzo --existing=payments.yaml monzo.csv

  # Several files in parallel, JSON output
  recurring-detector detect --workers=4 --json jan.ofx feb.ofx mar.ofx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func init() {
	flags := detectCmd.Flags()
	flags.String("profile", "", "Bank profile name (auto-detected if omitted)")
	flags.String("existing", "", "YAML file of payments already tracked")
	flags.Float64("min-confidence", 0.5, "Minimum confidence of reported patterns")
	flags.Int("min-transactions", 2, "Minimum transactions per pattern")
	flags.Float64("duplicate-threshold", 0.4, "Minimum score of a duplicate match")
	flags.String("classifier", "none", "Classifier provider: none, gemini")
	flags.String("model", "", "Classifier model")
	flags.StringP("output", "o", "", "Write patterns to this CSV file (single input only)")
	flags.Bool("header", true, "Include statement metadata rows in CSV")
	flags.Bool("json", false, "Print results as JSON")
	flags.Int("workers", 2, "Statements processed in parallel")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	l := newLogger(cfg)

	flags := cmd.Flags()
	profile, _ := flags.GetString("profile")
	existingPath, _ := flags.GetString("existing")
	outputPath, _ := flags.GetString("output")
	includeHeader, _ := flags.GetBool("header")
	asJSON, _ := flags.GetBool("json")
	workers, _ := flags.GetInt("workers")

	if outputPath != "" && len(args) > 1 {
		return errors.New("--output needs a single input file")
	}

	var existing []models.ExistingPayment
	if existingPath != "" {
		if existing, err = config.LoadExistingPayments(existingPath); err != nil {
			return err
		}
	}

	p, err := buildPipeline(cmd.Context(), cfg, l)
	if err != nil {
		return err
	}

	inputs := make([]pipeline.Input, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("input file not found: %s", path)
		}
		inputs = append(inputs, pipeline.Input{
			Data:     data,
			Filename: filepath.Base(path),
			Profile:  profile,
			Existing: existing,
		})
	}

	results := p.RunBatch(cmd.Context(), inputs, workers)

	out := cmd.OutOrStdout()
	if asJSON {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		for i, r := range results {
			printResult(out, args[i], r)
		}
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			l.Error("failed to process statement", "file", r.Input, "err", r.Err)
		}
	}

	if outputPath != "" && results[0].Err == nil {
		w := &writer.CSVWriter{IncludeHeader: includeHeader}
		if err := w.WriteToFile(outputPath, results[0].Result.Statement, results[0].Result.Patterns); err != nil {
			return fmt.Errorf("CSV write failed: %w", err)
		}
		l.Info("wrote patterns", "output", outputPath)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d statement(s) failed", failed, len(results))
	}
	return nil
}

func printResult(w io.Writer, path string, r pipeline.BatchResult) {
	fmt.Fprintln(w, titleStyle.Render("Processing: "+path))
	if r.Err != nil {
		fmt.Fprintln(w, lowStyle.Render("  Error: "+r.Err.Error()))
		return
	}

	s := r.Result.Statement
	bank := s.BankName
	if bank == "" {
		bank = "unknown bank"
	}
	fmt.Fprintf(w, "  %s statement, %s, %d transaction(s)\n", strings.ToUpper(s.Format.String()), bank, len(s.Transactions))
	if !s.PeriodStart.IsZero() {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  Period: %s to %s", s.PeriodStart.Format("02/01/2006"), s.PeriodEnd.Format("02/01/2006"))))
	}

	if len(r.Result.Patterns) == 0 {
		fmt.Fprintln(w, "  No recurring payments found.")
		return
	}

	dups := make(map[string]models.DuplicateMatch, len(r.Result.Duplicates))
	for _, d := range r.Result.Duplicates {
		dups[d.Pattern.ID] = d
	}

	fmt.Fprintf(w, "  Found %d recurring payment(s)\n", len(r.Result.Patterns))
	for _, p := range r.Result.Patterns {
		line := fmt.Sprintf("  %-30s %10s %s  %-10s %-12s %3.0f%%  %d txns",
			truncate(p.MerchantName, 30), p.Amount.StringFixed(2), s.Currency,
			p.Frequency, p.PaymentType, p.Confidence*100, p.TransactionCount)
		fmt.Fprintln(w, confidenceStyle(p.Confidence).Render(line))
		if d, ok := dups[p.ID]; ok {
			fmt.Fprintln(w, dupStyle.Render(fmt.Sprintf("    already tracked as %q (%s, %.0f%%)",
				d.Existing.Name, d.ConfidenceLevel(), d.SimilarityScore*100)))
		}
	}
}

func confidenceStyle(c float64) lipgloss.Style {
	switch {
	case c >= 0.8:
		return highStyle
	case c >= 0.6:
		return midStyle
	}
	return lowStyle
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

type jsonResult struct {
	File       string           `json:"file"`
	Error      string           `json:"error,omitempty"`
	RunID      string           `json:"run_id,omitempty"`
	Bank       string           `json:"bank,omitempty"`
	Format     string           `json:"format,omitempty"`
	Patterns   []map[string]any `json:"patterns,omitempty"`
	Duplicates []map[string]any `json:"duplicates,omitempty"`
}

func printJSON(w io.Writer, results []pipeline.BatchResult) error {
	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		jr := jsonResult{File: r.Input}
		if r.Err != nil {
			jr.Error = r.Err.Error()
			out = append(out, jr)
			continue
		}
		jr.RunID = r.Result.RunID
		jr.Bank = r.Result.Statement.BankName
		jr.Format = r.Result.Statement.Format.String()
		for _, p := range r.Result.Patterns {
			jr.Patterns = append(jr.Patterns, p.ToMap())
		}
		for _, d := range r.Result.Duplicates {
			jr.Duplicates = append(jr.Duplicates, d.ToMap())
		}
		out = append(out, jr)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printProfiles(w io.Writer, registry *parser.Registry) {
	fmt.Fprintln(w, titleStyle.Render("Bank profiles"))
	for _, p := range registry.Profiles() {
		details := []string{}
		if p.Currency != "" {
			details = append(details, p.Currency)
		}
		if p.DateFormat != "" {
			details = append(details, "dates "+p.DateFormat)
		}
		if p.Delimiter != "" {
			details = append(details, fmt.Sprintf("delimiter %q", p.Delimiter))
		}
		fmt.Fprintf(w, "  %-12s %s\n", p.Name, mutedStyle.Render(strings.Join(details, ", ")))
	}
}
