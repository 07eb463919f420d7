package parser

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

// columnMap holds the resolved cell index of each logical column, -1 if absent.
type columnMap [models.NumColumns]int

// substringOrder is the order in which columns claim headers on the substring
// pass; debit and credit go before amount so "Debit Amount" is not taken as
// the signed amount.
var substringOrder = []models.Column{
	models.ColumnDate,
	models.ColumnDebit,
	models.ColumnCredit,
	models.ColumnBalance,
	models.ColumnAmount,
	models.ColumnDescription,
	models.ColumnReference,
	models.ColumnCategory,
}

// resolveColumns maps header cells onto logical columns. Exact
// (case-insensitive) matches are assigned first, substring matches second,
// and no header index is claimed twice.
func resolveColumns(header []string, names models.ColumnNames) columnMap {
	var cm columnMap
	for i := range cm {
		cm[i] = -1
	}
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	claimed := make(map[int]bool)

	for c := models.Column(0); c < models.NumColumns; c++ {
	exact:
		for _, syn := range names.For(c) {
			syn = strings.ToLower(syn)
			for i, h := range normalized {
				if !claimed[i] && h == syn {
					cm[c] = i
					claimed[i] = true
					break exact
				}
			}
		}
	}

	for _, c := range substringOrder {
		if cm[c] >= 0 {
			continue
		}
	sub:
		for _, syn := range names.For(c) {
			syn = strings.ToLower(syn)
			for i, h := range normalized {
				if !claimed[i] && h != "" && strings.Contains(h, syn) {
					cm[c] = i
					claimed[i] = true
					break sub
				}
			}
		}
	}
	return cm
}

func (cm columnMap) has(c models.Column) bool { return cm[c] >= 0 }

// usable reports whether the map can produce dated, signed amounts.
func (cm columnMap) usable() bool {
	return cm.has(models.ColumnDate) &&
		(cm.has(models.ColumnAmount) || cm.has(models.ColumnDebit) || cm.has(models.ColumnCredit))
}

func (cm columnMap) cell(row []string, c models.Column) string {
	i := cm[c]
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// tableReader turns rows of cells into transactions once the columns are
// known. CSV, XLS and PDF tables all go through it.
type tableReader struct {
	format     models.Format
	columns    columnMap
	header     []string
	dateLayout string
	logger     *log.Logger
}

// readRows converts data rows, skipping rows without a usable date, amount or
// description.
func (r *tableReader) readRows(rows [][]string, firstLine int) []models.Transaction {
	var txns []models.Transaction
	for n, row := range rows {
		txn, reason := r.readRow(row)
		if reason != "" {
			r.logger.Debug("skipped row", "format", r.format, "line", firstLine+n, "reason", reason)
			continue
		}
		txns = append(txns, txn)
	}
	return txns
}

func (r *tableReader) readRow(row []string) (models.Transaction, string) {
	cm := r.columns

	date, err := ParseDate(cm.cell(row, models.ColumnDate), r.dateLayout)
	if err != nil {
		return models.Transaction{}, "no parseable date"
	}

	desc := cm.cell(row, models.ColumnDescription)
	if len([]rune(desc)) < 2 {
		desc = cm.cell(row, models.ColumnReference)
	}
	if len([]rune(desc)) < 2 {
		desc = cm.cell(row, models.ColumnCategory)
	}
	if len([]rune(desc)) < 2 {
		return models.Transaction{}, "description too short"
	}

	amount, explicit, ok := r.amount(row)
	if !ok {
		return models.Transaction{}, "no parseable amount"
	}

	txn := models.NewTransaction(date, amount, desc)
	if explicit != "" {
		txn.Type = explicit
	}
	if bal := cm.cell(row, models.ColumnBalance); bal != "" {
		if b, err := ParseAmount(bal); err == nil {
			txn.Balance = &b
		}
	}
	txn.Reference = cm.cell(row, models.ColumnReference)
	txn.Category = cm.cell(row, models.ColumnCategory)
	txn.RawData = r.raw(row)
	return txn, ""
}

// amount reads the signed amount column, or the separate debit/credit pair.
// The returned type is set only when separate columns decided the direction.
func (r *tableReader) amount(row []string) (decimal.Decimal, models.TransactionType, bool) {
	cm := r.columns
	if cm.has(models.ColumnAmount) {
		if s := cm.cell(row, models.ColumnAmount); s != "" {
			if d, err := ParseAmount(s); err == nil && !d.IsZero() {
				return d, "", true
			}
		}
	}
	if cm.has(models.ColumnDebit) {
		if s := cm.cell(row, models.ColumnDebit); s != "" {
			if d, err := ParseAmount(s); err == nil && !d.IsZero() {
				return d.Abs().Neg(), models.TransactionDebit, true
			}
		}
	}
	if cm.has(models.ColumnCredit) {
		if s := cm.cell(row, models.ColumnCredit); s != "" {
			if d, err := ParseAmount(s); err == nil && !d.IsZero() {
				return d.Abs(), models.TransactionCredit, true
			}
		}
	}
	return decimal.Zero, "", false
}

func (r *tableReader) raw(row []string) map[string]string {
	if len(r.header) == 0 {
		return nil
	}
	raw := make(map[string]string, len(row))
	for i, v := range row {
		key := ""
		if i < len(r.header) {
			key = strings.TrimSpace(r.header[i])
		}
		if key == "" {
			continue
		}
		raw[key] = v
	}
	return raw
}
