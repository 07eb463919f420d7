package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

// CSVWriter writes detected patterns to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

var patternColumns = []string{
	"Merchant", "Normalized", "Amount", "Frequency", "Type",
	"Confidence", "Count", "First Seen", "Last Seen",
}

// WriteToFile writes patterns to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, stmt *models.StatementData, patterns []models.DetectedPattern) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.WritePatterns(f, stmt, patterns); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WritePatterns writes patterns in CSV format to the given writer. stmt only
// feeds the metadata rows and may be nil.
func (w *CSVWriter) WritePatterns(out io.Writer, stmt *models.StatementData, patterns []models.DetectedPattern) error {
	writer := csv.NewWriter(out)

	// Metadata as comment rows
	if w.IncludeHeader && stmt != nil {
		for _, row := range metadataRows(stmt) {
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	if err := writer.Write(patternColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, p := range patterns {
		row := []string{
			p.MerchantName,
			p.NormalizedName,
			p.Amount.StringFixed(2),
			string(p.Frequency),
			string(p.PaymentType),
			strconv.FormatFloat(p.Confidence, 'f', 2, 64),
			strconv.Itoa(p.TransactionCount),
			formatDate(p.FirstSeen),
			formatDate(p.LastSeen),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func metadataRows(stmt *models.StatementData) [][]string {
	var rows [][]string
	if stmt.BankName != "" {
		rows = append(rows, []string{"# Bank", stmt.BankName})
	}
	if stmt.AccountNumber != "" {
		rows = append(rows, []string{"# Account Number", stmt.AccountNumber})
	}
	if stmt.Currency != "" {
		rows = append(rows, []string{"# Currency", stmt.Currency})
	}
	if !stmt.PeriodStart.IsZero() {
		rows = append(rows, []string{"# Statement Period", formatDate(stmt.PeriodStart) + " to " + formatDate(stmt.PeriodEnd)})
	}
	return rows
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
