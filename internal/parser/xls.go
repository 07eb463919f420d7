package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/extrame/xls"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

// maxXLSRows bounds how many rows are read from the first sheet.
const maxXLSRows = 10000

// headerSearchRows is how far down the sheet a header row is looked for when
// no profile sets the offset.
const headerSearchRows = 20

// XLSParser parses legacy Excel (BIFF) exports.
type XLSParser struct {
	logger   *log.Logger
	registry *Registry
}

func (p *XLSParser) Format() models.Format { return models.FormatXLS }

func (p *XLSParser) Parse(src Source) (sd *models.StatementData, err error) {
	if len(src.Data) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatXLS}
	}
	defer func() {
		if r := recover(); r != nil {
			sd, err = nil, &models.ParseError{Format: models.FormatXLS, Reason: "corrupt workbook", Err: fmt.Errorf("%v", r)}
		}
	}()

	charset := "utf-8"
	if src.Profile != nil && src.Profile.Encoding != "" {
		charset = src.Profile.Encoding
	}
	wb, err := xls.OpenReader(bytes.NewReader(src.Data), charset)
	if err != nil {
		return nil, &models.ParseError{Format: models.FormatXLS, Reason: "open workbook", Err: err}
	}
	rows := wb.ReadAllCells(maxXLSRows)
	if len(rows) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatXLS}
	}
	return p.parseRows(rows, src)
}

// parseRows maps sheet rows onto transactions. It is separate from Parse so
// row handling does not depend on a binary workbook.
func (p *XLSParser) parseRows(rows [][]string, src Source) (*models.StatementData, error) {
	profile := src.Profile
	if profile == nil {
		var headerGuess string
		if len(rows) > 0 {
			headerGuess = strings.Join(rows[0], ",")
		}
		profile = p.registry.Detect(src.Filename, headerGuess, "")
	}
	names := columnNamesFor(profile)

	headerIdx, columns := -1, columnMap{}
	if profile != nil && (profile.HeaderRow > 0 || profile.SkipRows > 0) {
		headerIdx = profile.SkipRows + profile.HeaderRow
		if headerIdx >= len(rows) {
			return nil, &models.ParseError{Format: models.FormatXLS, Reason: "too few rows for the header offset"}
		}
		columns = resolveColumns(rows[headerIdx], names)
	} else {
		for i := 0; i < len(rows) && i < headerSearchRows; i++ {
			if cm := resolveColumns(rows[i], names); cm.usable() {
				headerIdx, columns = i, cm
				break
			}
		}
	}
	if headerIdx < 0 || !columns.usable() {
		return nil, &models.ParseError{Format: models.FormatXLS, Reason: "no header row with date and amount columns"}
	}

	tr := &tableReader{
		format:  models.FormatXLS,
		columns: columns,
		header:  rows[headerIdx],
		logger:  p.logger,
	}
	if profile != nil {
		tr.dateLayout = profile.DateFormat
	}
	txns := tr.readRows(rows[headerIdx+1:], headerIdx+2)
	if len(txns) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatXLS}
	}

	sd := models.NewStatementData(models.FormatXLS, txns)
	if profile != nil {
		sd.BankName = profile.Name
		sd.Currency = profile.Currency
	}
	p.logger.Info("parsed statement", "format", sd.Format, "headerRow", headerIdx+1, "transactions", len(sd.Transactions))
	return sd, nil
}
