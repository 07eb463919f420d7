package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

// OFXParser parses OFX and QFX files, both the SGML (v1, optional closing
// tags) and XML (v2) flavours.
type OFXParser struct {
	logger *log.Logger
}

func (p *OFXParser) Format() models.Format { return models.FormatOFX }

// ofxTypes maps TRNTYPE codes onto a direction. Codes mapped to Unknown, and
// codes not listed, are decided by the amount sign.
var ofxTypes = map[string]models.TransactionType{
	"DEBIT":       models.TransactionDebit,
	"CREDIT":      models.TransactionCredit,
	"INT":         models.TransactionCredit,
	"DIV":         models.TransactionCredit,
	"FEE":         models.TransactionDebit,
	"SRVCHG":      models.TransactionDebit,
	"DEP":         models.TransactionCredit,
	"ATM":         models.TransactionDebit,
	"POS":         models.TransactionDebit,
	"XFER":        models.TransactionUnknown,
	"CHECK":       models.TransactionDebit,
	"PAYMENT":     models.TransactionDebit,
	"CASH":        models.TransactionUnknown,
	"DIRECTDEP":   models.TransactionCredit,
	"DIRECTDEBIT": models.TransactionDebit,
	"REPEATPMT":   models.TransactionDebit,
	"OTHER":       models.TransactionUnknown,
}

var ofxRoot = regexp.MustCompile(`(?i)<OFX>`)

func (p *OFXParser) Parse(src Source) (*models.StatementData, error) {
	content := string(src.Data)
	if strings.TrimSpace(content) == "" {
		return nil, &models.EmptyStatementError{Format: models.FormatOFX}
	}
	if !ofxRoot.MatchString(content) {
		return nil, &models.ParseError{Format: models.FormatOFX, Reason: "no <OFX> root element"}
	}

	var txns []models.Transaction
	for i, block := range ofxBlocks(content, "STMTTRN", "BANKTRANLIST") {
		txn, err := p.parseTransaction(block)
		if err != nil {
			p.logger.Debug("skipped transaction", "format", models.FormatOFX, "index", i, "reason", err)
			continue
		}
		txns = append(txns, txn)
	}
	if len(txns) == 0 {
		return nil, &models.EmptyStatementError{Format: models.FormatOFX}
	}

	sd := models.NewStatementData(models.FormatOFX, txns)
	sd.Currency = strings.ToUpper(ofxField(content, "CURDEF"))
	sd.BankName = ofxField(content, "ORG")
	if acct := ofxField(content, "ACCTID"); acct != "" {
		sd.AccountNumber = models.MaskAccountNumber(acct)
	}
	if t, err := parseOFXDate(ofxField(content, "DTSTART")); err == nil {
		sd.PeriodStart = t
	}
	if t, err := parseOFXDate(ofxField(content, "DTEND")); err == nil {
		sd.PeriodEnd = t
	}
	if src.Profile != nil {
		if sd.BankName == "" {
			sd.BankName = src.Profile.Name
		}
		if sd.Currency == "" {
			sd.Currency = src.Profile.Currency
		}
	}

	p.logger.Info("parsed statement", "format", sd.Format, "bank", sd.BankName, "transactions", len(sd.Transactions))
	return sd, nil
}

func (p *OFXParser) parseTransaction(block string) (models.Transaction, error) {
	date, err := parseOFXDate(ofxField(block, "DTPOSTED"))
	if err != nil {
		return models.Transaction{}, err
	}
	amount, err := ParseAmount(ofxField(block, "TRNAMT"))
	if err != nil {
		return models.Transaction{}, err
	}

	name := ofxField(block, "NAME")
	memo := ofxField(block, "MEMO")
	desc := name
	if desc == "" {
		desc = memo
	}
	if desc == "" {
		desc = ofxField(block, "PAYEE")
	}
	ref := ofxField(block, "FITID")
	if ref == "" {
		ref = ofxField(block, "CHECKNUM")
	}
	code := strings.ToUpper(ofxField(block, "TRNTYPE"))
	desc = firstNonEmpty(desc, ref, code, unnamedTransaction)

	txn := models.NewTransaction(date, amount, desc)
	if t, ok := ofxTypes[code]; ok && t != models.TransactionUnknown {
		txn.Type = t
	}
	txn.Reference = ref
	txn.RawData = map[string]string{"TRNTYPE": code, "NAME": name, "MEMO": memo}
	return txn, nil
}

// ofxBlocks returns the bodies of every <tag> element. The closing tag is
// optional in SGML files, so a block also ends at the next opening tag or at
// the closing tag of parent.
func ofxBlocks(content, tag, parent string) []string {
	upper := asciiUpper(content)
	open, closeTag, parentClose := "<"+tag+">", "</"+tag+">", "</"+parent+">"

	var blocks []string
	for {
		start := strings.Index(upper, open)
		if start < 0 {
			return blocks
		}
		upper = upper[start+len(open):]
		content = content[start+len(open):]

		end := len(upper)
		for _, stop := range []string{closeTag, open, parentClose} {
			if i := strings.Index(upper, stop); i >= 0 && i < end {
				end = i
			}
		}
		blocks = append(blocks, content[:end])
		upper = upper[end:]
		content = content[end:]
	}
}

// asciiUpper upper-cases ASCII letters only, keeping byte offsets aligned
// with the input.
func asciiUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// ofxField returns the text value of the first <tag> in s.
func ofxField(s, tag string) string {
	re := fieldPattern(tag)
	if m := re.FindStringSubmatch(s); len(m) > 1 {
		return decodeOFXEntities(strings.TrimSpace(m[1]))
	}
	return ""
}

var fieldPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, tag := range []string{"DTPOSTED", "TRNAMT", "TRNTYPE", "FITID", "CHECKNUM", "NAME", "MEMO", "PAYEE", "CURDEF", "ORG", "ACCTID", "DTSTART", "DTEND"} {
		fieldPatterns[tag] = regexp.MustCompile(`(?i)<` + tag + `>([^<\r\n]*)`)
	}
}

func fieldPattern(tag string) *regexp.Regexp {
	if re, ok := fieldPatterns[tag]; ok {
		return re
	}
	return regexp.MustCompile(`(?i)<` + regexp.QuoteMeta(tag) + `>([^<\r\n]*)`)
}

var ofxEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&apos;", "'", "&quot;", `"`)

func decodeOFXEntities(s string) string { return ofxEntities.Replace(s) }

// parseOFXDate reads YYYYMMDD[HHMMSS[.XXX]][[tz]] keeping only the date.
func parseOFXDate(s string) (time.Time, error) {
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("invalid OFX date %q", s)
	}
	return time.Parse("20060102", s[:8])
}
