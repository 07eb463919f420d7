package parser

import (
	"encoding/csv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

// CSVParser parses delimited text exports.
type CSVParser struct {
	logger   *log.Logger
	registry *Registry
}

func (p *CSVParser) Format() models.Format { return models.FormatCSV }

func (p *CSVParser) Parse(src Source) (*models.StatementData, error) {
	if len(strings.TrimSpace(string(src.Data))) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatCSV}
	}

	profile := src.Profile
	text, enc, err := decodeText(src.Data, profileEncoding(profile))
	if err != nil {
		return nil, &models.ParseError{Format: models.FormatCSV, Reason: "unreadable encoding", Err: err}
	}

	if profile == nil {
		profile = p.detectProfile(src.Filename, text)
		if profile != nil {
			p.logger.Debug("detected bank profile", "profile", profile.Name, "file", src.Filename)
			// only a single-byte fallback can be wrong about the profile's encoding
			if profile.Encoding != "" && !isUTF8(enc) && canonicalEncoding(profile.Encoding) != enc {
				if redecoded, _, err := decodeText(src.Data, profile.Encoding); err == nil {
					text = redecoded
				}
			}
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &models.EmptyStatementError{Format: models.FormatCSV}
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiterFor(profile, text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &models.ParseError{Format: models.FormatCSV, Reason: "malformed rows", Err: err}
	}
	if len(rows) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatCSV}
	}

	headerIdx := 0
	if profile != nil {
		headerIdx = profile.SkipRows + profile.HeaderRow
	}
	if headerIdx >= len(rows) {
		return nil, &models.ParseError{Format: models.FormatCSV, Reason: "too few rows for the header offset"}
	}

	header := rows[headerIdx]
	columns := resolveColumns(header, columnNamesFor(profile))
	if !columns.usable() {
		return nil, &models.ParseError{Format: models.FormatCSV, Reason: "missing date or amount columns in header " + strings.Join(header, ",")}
	}

	tr := &tableReader{
		format:  models.FormatCSV,
		columns: columns,
		header:  header,
		logger:  p.logger,
	}
	if profile != nil {
		tr.dateLayout = profile.DateFormat
	}
	txns := tr.readRows(rows[headerIdx+1:], headerIdx+2)
	if len(txns) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatCSV}
	}

	sd := models.NewStatementData(models.FormatCSV, txns)
	if profile != nil {
		sd.BankName = profile.Name
		sd.Currency = profile.Currency
	}
	if sd.Currency == "" {
		sd.Currency = DetectCurrency(text)
	}
	p.logger.Info("parsed statement", "format", sd.Format, "encoding", enc, "rows", len(rows)-headerIdx-1, "transactions", len(sd.Transactions))
	return sd, nil
}

func profileEncoding(p *models.BankProfile) string {
	if p == nil {
		return ""
	}
	return p.Encoding
}

func columnNamesFor(p *models.BankProfile) models.ColumnNames {
	if p == nil {
		return models.DefaultColumnNames()
	}
	return p.Columns.WithDefaults()
}

var candidateDelimiters = []rune{',', ';', '\t', '|'}

// delimiterFor returns the profile delimiter, or the candidate occurring most
// often in the first line.
func delimiterFor(p *models.BankProfile, text string) rune {
	if p != nil && p.Delimiter != "" {
		d := p.Delimiter
		if d == `\t` || strings.EqualFold(d, "tab") {
			return '\t'
		}
		r, _ := utf8.DecodeRuneInString(d)
		return r
	}
	line := firstLine(text)
	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// headerScanLines bounds how far past a preamble the header row is looked for.
const headerScanLines = 10

// detectProfile matches the filename and each leading line as a header
// before falling back to content patterns.
func (p *CSVParser) detectProfile(filename, text string) *models.BankProfile {
	for _, line := range leadingLines(text, headerScanLines) {
		if profile := p.registry.Detect(filename, line, ""); profile != nil {
			return profile
		}
	}
	return p.registry.Detect(filename, "", text)
}

func leadingLines(text string, n int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if len(lines) == n {
			break
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func firstLine(text string) string {
	if lines := leadingLines(text, 1); len(lines) > 0 {
		return lines[0]
	}
	return ""
}
