package parser

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/recurring-detector/internal/extractor"
	"github.com/insightdelivered/recurring-detector/internal/models"
)

// PDFParser extracts transactions from PDF statements: positioned tables
// first, then line-by-line scanning.
type PDFParser struct {
	logger *log.Logger
}

func (p *PDFParser) Format() models.Format { return models.FormatPDF }

func (p *PDFParser) Parse(src Source) (*models.StatementData, error) {
	if len(src.Data) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatPDF}
	}
	pages, err := extractor.ExtractPages(src.Data)
	if err != nil {
		return nil, &models.ParseError{Format: models.FormatPDF, Reason: "text extraction failed", Err: err}
	}
	return p.parsePages(pages, src.Profile)
}

// pdfRow is a transaction candidate whose sign may still be unknown.
type pdfRow struct {
	txn      models.Transaction
	unsigned bool
}

func (p *PDFParser) parsePages(pages []extractor.Page, profile *models.BankProfile) (*models.StatementData, error) {
	dateLayout := ""
	if profile != nil {
		dateLayout = profile.DateFormat
	}
	names := columnNamesFor(profile)

	var rows []pdfRow
	var opening *decimal.Decimal
	tables, scanned := 0, 0
	for _, page := range pages {
		if opening == nil {
			opening = findOpeningBalance(page)
		}
		if pageRows := p.readTable(page, names, dateLayout); len(pageRows) > 0 {
			tables++
			rows = append(rows, pageRows...)
			continue
		}
		pageRows := p.scanLines(page, dateLayout)
		scanned += len(pageRows)
		rows = append(rows, pageRows...)
	}

	txns := signRows(rows, opening)
	if len(txns) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatPDF}
	}

	text := extractor.CombinedText(pages)
	sd := models.NewStatementData(models.FormatPDF, txns)
	sd.BankName = DetectBankName(text)
	sd.Currency = DetectCurrency(text)
	sd.AccountNumber = findAccountNumber(text)
	if profile != nil {
		if profile.Name != "" {
			sd.BankName = profile.Name
		}
		if profile.Currency != "" {
			sd.Currency = profile.Currency
		}
	}

	p.logger.Info("parsed statement", "format", sd.Format, "pages", len(pages), "tablePages", tables,
		"scannedLines", scanned, "bank", sd.BankName, "transactions", len(sd.Transactions))
	return sd, nil
}

// readTable finds a header row by keyword resolution and reads the lines
// below it, assigning each cell to the nearest header column.
func (p *PDFParser) readTable(page extractor.Page, names models.ColumnNames, dateLayout string) []pdfRow {
	for i, line := range page.Lines {
		if len(line.Cells) < 3 {
			continue
		}
		header := make([]string, len(line.Cells))
		anchors := make([]float64, len(line.Cells))
		for j, c := range line.Cells {
			header[j] = c.Text
			anchors[j] = c.X
		}
		columns := resolveColumns(header, names)
		if !columns.usable() || !columns.has(models.ColumnDescription) {
			continue
		}

		var grid [][]string
		for _, body := range page.Lines[i+1:] {
			if isSummaryLine(body.Text()) {
				continue
			}
			grid = append(grid, alignCells(body.Cells, anchors))
		}
		tr := &tableReader{
			format:     models.FormatPDF,
			columns:    columns,
			header:     header,
			dateLayout: dateLayout,
			logger:     p.logger,
		}
		txns := tr.readRows(grid, i+2)
		if len(txns) == 0 {
			return nil
		}

		// a single amount column printed without signs needs balance inference
		unsigned := !columns.has(models.ColumnDebit) && !columns.has(models.ColumnCredit)
		for _, t := range txns {
			if t.Amount.IsNegative() {
				unsigned = false
				break
			}
		}
		out := make([]pdfRow, len(txns))
		for j, t := range txns {
			out[j] = pdfRow{txn: t, unsigned: unsigned}
		}
		return out
	}
	return nil
}

// alignCells places each cell under the header anchor nearest to its X.
func alignCells(cells []extractor.Cell, anchors []float64) []string {
	row := make([]string, len(anchors))
	for _, c := range cells {
		best, bestDist := 0, math.Inf(1)
		for j, x := range anchors {
			if d := math.Abs(c.X - x); d < bestDist {
				best, bestDist = j, d
			}
		}
		if row[best] != "" {
			row[best] += " "
		}
		row[best] += c.Text
	}
	return row
}

// datePatterns are tried in order; the first whose match parses wins.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}[\s-](?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?[\s-]\d{2,4}\b`),
	regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`),
}

const (
	amountSymbol = `(?:R\$|£|\$|€|₴|UAH)`
	amountNumber = `(?:\d{1,3}(?:[,.]\d{3})+|\d+)[.,]\d{2}`
)

// amountPattern matches, in order of preference: parenthesised accounting
// negatives, currency prefixed amounts, plain signed decimals optionally
// followed by a currency symbol.
var amountPattern = regexp.MustCompile(
	`\(\s*` + amountSymbol + `?\s*` + amountNumber + `\s*\)` +
		`|[-+]?` + amountSymbol + `\s?[-+]?` + amountNumber +
		`|[-+]?\b` + amountNumber + `(?:\s?` + amountSymbol + `)?`,
)

var (
	creditSuffix = regexp.MustCompile(`(?i)^\s*CR\b`)
	debitSuffix  = regexp.MustCompile(`(?i)^\s*DR\b`)
)

// scanLines is the fallback for pages without a recognisable table.
func (p *PDFParser) scanLines(page extractor.Page, dateLayout string) []pdfRow {
	var rows []pdfRow
	for n, line := range page.Lines {
		text := line.Text()
		if isSummaryLine(text) || containsTransactionHeader(text) {
			continue
		}
		row, ok := scanLine(text, dateLayout)
		if !ok {
			p.logger.Debug("skipped line", "format", models.FormatPDF, "page", page.Number, "line", n+1)
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// scanLine extracts a transaction from a line containing both a date and an
// amount. The description is the text between them; when the amount comes
// first it is the remainder after the date.
func scanLine(text, dateLayout string) (pdfRow, bool) {
	var date time.Time
	dateStart, dateEnd := -1, -1
	for _, re := range datePatterns {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		t, err := ParseDate(text[loc[0]:loc[1]], dateLayout)
		if err != nil {
			continue
		}
		date, dateStart, dateEnd = t, loc[0], loc[1]
		break
	}
	if dateStart < 0 {
		return pdfRow{}, false
	}

	// blank out the date so its digits are not read as an amount
	masked := text[:dateStart] + strings.Repeat(" ", dateEnd-dateStart) + text[dateEnd:]
	matches := amountPattern.FindAllStringIndex(masked, -1)
	if len(matches) == 0 {
		return pdfRow{}, false
	}

	var amountLoc, balanceLoc []int
	var desc string
	for i, m := range matches {
		if m[0] >= dateEnd {
			amountLoc = m
			if i+1 < len(matches) {
				balanceLoc = matches[len(matches)-1]
			}
			desc = text[dateEnd:m[0]]
			break
		}
	}
	if amountLoc == nil {
		amountLoc = matches[0]
		desc = text[dateEnd:]
	}

	raw := text[amountLoc[0]:amountLoc[1]]
	amount, err := ParseAmount(raw)
	if err != nil || amount.IsZero() {
		return pdfRow{}, false
	}
	desc = cleanDescription(desc)
	if len([]rune(desc)) < 2 {
		return pdfRow{}, false
	}

	rest := text[amountLoc[1]:]
	unsigned := !strings.ContainsAny(raw, "-+(")
	switch {
	case debitSuffix.MatchString(rest):
		amount, unsigned = amount.Abs().Neg(), false
	case creditSuffix.MatchString(rest):
		amount, unsigned = amount.Abs(), false
	}

	txn := models.NewTransaction(date, amount, desc)
	if balanceLoc != nil {
		if b, err := ParseAmount(text[balanceLoc[0]:balanceLoc[1]]); err == nil {
			txn.Balance = &b
		}
	}
	txn.RawData = map[string]string{"line": text}
	return pdfRow{txn: txn, unsigned: unsigned}, true
}

// cleanDescription removes column separators and collapses whitespace.
func cleanDescription(s string) string {
	s = strings.NewReplacer("→", " ", "|", " ", "\t", " ").Replace(s)
	return strings.Trim(strings.Join(strings.Fields(s), " "), " -:")
}

// signRows decides the direction of unsigned amounts from the running
// balance, falling back to description keywords.
func signRows(rows []pdfRow, opening *decimal.Decimal) []models.Transaction {
	txns := make([]models.Transaction, 0, len(rows))
	var prev *decimal.Decimal
	if opening != nil {
		o := *opening
		prev = &o
	}
	for _, r := range rows {
		t := r.txn
		if r.unsigned {
			var typ models.TransactionType
			if t.Balance != nil && prev != nil {
				typ = classifyByBalance(t.Amount.Abs(), *t.Balance, *prev, t.Description)
			} else {
				typ = models.TransactionCredit
				if isDebitDescription(t.Description) {
					typ = models.TransactionDebit
				}
			}
			if typ == models.TransactionDebit {
				t.Amount = t.Amount.Abs().Neg()
			} else {
				t.Amount = t.Amount.Abs()
			}
			t.Type = typ
		}
		switch {
		case t.Balance != nil:
			b := *t.Balance
			prev = &b
		case prev != nil:
			next := prev.Add(t.Amount)
			prev = &next
		}
		txns = append(txns, t)
	}
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date.Before(txns[j].Date) })
	return txns
}

var balanceTolerance = decimal.RequireFromString("0.015")

// classifyByBalance compares the balance movement with the amount. When
// neither direction reconciles it falls back to description keywords.
func classifyByBalance(amt, bal, prevBal decimal.Decimal, desc string) models.TransactionType {
	debitDiff := prevBal.Sub(amt).Sub(bal).Abs()
	creditDiff := prevBal.Add(amt).Sub(bal).Abs()
	debitOK := debitDiff.LessThan(balanceTolerance)
	creditOK := creditDiff.LessThan(balanceTolerance)

	switch {
	case debitOK && !creditOK:
		return models.TransactionDebit
	case creditOK && !debitOK:
		return models.TransactionCredit
	case debitOK && creditOK:
		if debitDiff.LessThanOrEqual(creditDiff) {
			return models.TransactionDebit
		}
		return models.TransactionCredit
	}
	if isDebitDescription(desc) {
		return models.TransactionDebit
	}
	return models.TransactionCredit
}

// findOpeningBalance returns the balance on an opening or brought-forward line.
func findOpeningBalance(page extractor.Page) *decimal.Decimal {
	for _, line := range page.Lines {
		text := line.Text()
		lower := strings.ToLower(text)
		if !strings.Contains(lower, "opening balance") && !strings.Contains(lower, "brought forward") {
			continue
		}
		amounts := amountPattern.FindAllString(text, -1)
		if len(amounts) == 0 {
			continue
		}
		if bal, err := ParseAmount(amounts[len(amounts)-1]); err == nil {
			return &bal
		}
	}
	return nil
}

func containsTransactionHeader(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "date") &&
		(strings.Contains(lower, "description") || strings.Contains(lower, "transaction") ||
			strings.Contains(lower, "details") || strings.Contains(lower, "paid")) &&
		(strings.Contains(lower, "amount") || strings.Contains(lower, "paid") ||
			strings.Contains(lower, "balance") || strings.Contains(lower, "money"))
}

var debitKeywords = []string{
	"card payment", "direct debit", "debit", "payment", "withdrawal",
	"transfer out", "standing order", "dd ", "pos ", "atm ",
	"purchase", "fee", "charge", "subscription",
}

func isDebitDescription(desc string) bool {
	lower := strings.ToLower(desc) + " "
	for _, kw := range debitKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var summaryKeywords = []string{
	"opening balance", "closing balance", "total paid in",
	"total paid out", "total payments", "total receipts",
	"statement period", "balance brought forward", "balance carried forward",
	"page ", "continued",
}

func isSummaryLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range summaryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
