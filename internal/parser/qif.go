package parser

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

// QIFParser parses Quicken Interchange Format files.
type QIFParser struct {
	logger *log.Logger
}

func (p *QIFParser) Format() models.Format { return models.FormatQIF }

// qifRecord collects the fields of one transaction, terminated by "^".
type qifRecord struct {
	date, amount, payee, memo, number, category string
}

func (p *QIFParser) Parse(src Source) (*models.StatementData, error) {
	text, _, err := decodeText(src.Data, profileEncoding(src.Profile))
	if err != nil {
		return nil, &models.ParseError{Format: models.FormatQIF, Reason: "unreadable encoding", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &models.EmptyStatementError{Format: models.FormatQIF}
	}

	var (
		txns    []models.Transaction
		rec     qifRecord
		started bool
		records int
	)
	flush := func() {
		if !started {
			return
		}
		records++
		txn, err := rec.transaction()
		if err != nil {
			p.logger.Debug("skipped record", "format", models.FormatQIF, "record", records, "reason", err)
		} else {
			txns = append(txns, txn)
		}
		rec, started = qifRecord{}, false
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r ")
		if line == "" {
			continue
		}
		if line[0] == '!' {
			// section headers such as !Type:Bank carry no transaction data
			continue
		}
		if line[0] == '^' {
			flush()
			continue
		}
		value := strings.TrimSpace(line[1:])
		started = true
		switch line[0] {
		case 'D':
			rec.date = value
		case 'T', 'U':
			if rec.amount == "" {
				rec.amount = value
			}
		case 'P':
			rec.payee = value
		case 'M':
			rec.memo = value
		case 'N':
			rec.number = value
		case 'L':
			rec.category = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &models.ParseError{Format: models.FormatQIF, Reason: "read failed", Err: err}
	}
	// a final record without "^"
	flush()

	if len(txns) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatQIF}
	}

	sd := models.NewStatementData(models.FormatQIF, txns)
	if src.Profile != nil {
		sd.BankName = src.Profile.Name
		sd.Currency = src.Profile.Currency
	}
	if sd.Currency == "" {
		sd.Currency = DetectCurrency(text)
	}
	p.logger.Info("parsed statement", "format", sd.Format, "records", records, "transactions", len(sd.Transactions))
	return sd, nil
}

func (r qifRecord) transaction() (models.Transaction, error) {
	if r.date == "" || r.amount == "" {
		return models.Transaction{}, fmt.Errorf("missing date or amount")
	}
	date, err := parseQIFDate(r.date)
	if err != nil {
		return models.Transaction{}, err
	}
	amount, err := ParseAmount(r.amount)
	if err != nil {
		return models.Transaction{}, err
	}

	desc := firstNonEmpty(r.payee, r.memo, r.category, r.number, unnamedTransaction)

	txn := models.NewTransaction(date, amount, desc)
	txn.Reference = r.number
	txn.Category = r.category
	txn.RawData = map[string]string{"D": r.date, "T": r.amount, "P": r.payee, "M": r.memo}
	return txn, nil
}

// parseQIFDate reads MM/DD/YY[YY] with '/', '-' or '\'' separators.
// Two-digit years below 50 are 20xx, the rest 19xx.
func parseQIFDate(s string) (time.Time, error) {
	norm := strings.NewReplacer("'", "/", "-", "/", " ", "").Replace(strings.TrimSpace(s))
	parts := strings.Split(norm, "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid QIF date %q", s)
	}
	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid QIF date %q", s)
		}
		nums[i] = n
	}
	month, day, year := nums[0], nums[1], nums[2]
	if len(parts[2]) <= 2 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid QIF date %q", s)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid QIF date %q", s)
	}
	return t, nil
}
