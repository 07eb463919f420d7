package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

// ErrInvalidAmount is returned by ParseAmount for strings that hold no number.
var ErrInvalidAmount = errors.New("invalid amount")

// unnamedTransaction describes records that carry no payee, memo or reference.
const unnamedTransaction = "UNKNOWN TRANSACTION"

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// currencySymbols are stripped before parsing. R$ must precede $.
var currencySymbols = []string{"R$", "UAH", "£", "$", "€", "₴"}

// ParseAmount converts a statement amount string to an exact decimal.
//
// Separator policy: when both '.' and ',' occur, the later one is the decimal
// separator. When only ',' occurs it is decimal if exactly two digits follow
// it, otherwise it separates thousands. Parentheses force a negative sign.
func ParseAmount(s string) (decimal.Decimal, error) {
	orig := s
	s = strings.TrimSpace(s)
	negative := false

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00A0", "") // non-breaking space
	s = strings.ReplaceAll(s, "\u202F", "")

	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = s[:len(s)-1]
	}

	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, orig)
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 == 2 {
			s = strings.ReplaceAll(s[:lastComma], ",", "") + "." + s[lastComma+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, orig)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// commonDateLayouts are tried in order when no profile layout matches.
// Day-first layouts precede month-first ones.
var commonDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/06",
	"1/2/2006",
	"1/2/06",
	"2.1.2006",
	"2.1.2006 15:04:05",
	"2.1.06",
	"2-1-2006",
	"2-1-06",
	"2 Jan 2006",
	"2 January 2006",
	"2 Jan 06",
	"2-Jan-2006",
	"2-Jan-06",
	"2-January-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"20060102",
}

// ParseDate parses s with layout first (Go layout or strftime), then with the
// common layouts.
func ParseDate(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if layout != "" {
		if t, err := time.Parse(goLayout(layout), s); err == nil {
			return t, nil
		}
	}
	for _, l := range commonDateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

var strftimeTokens = strings.NewReplacer(
	"%Y", "2006", "%y", "06", "%m", "01", "%d", "02", "%e", "_2",
	"%b", "Jan", "%B", "January", "%H", "15", "%M", "04", "%S", "05",
	"%I", "03", "%p", "PM", "%z", "-0700", "%Z", "MST", "%f", "000000",
)

// goLayout converts a strftime format to a Go layout. Go layouts pass through.
func goLayout(layout string) string {
	if !strings.Contains(layout, "%") {
		return layout
	}
	return strftimeTokens.Replace(layout)
}

var currencyMarkers = []struct {
	code    string
	markers []string
}{
	{"BRL", []string{"R$", "BRL"}},
	{"UAH", []string{"₴", "UAH", "грн"}},
	{"GBP", []string{"£", "GBP"}},
	{"EUR", []string{"€", "EUR"}},
	{"USD", []string{"USD", "$"}},
}

// DetectCurrency returns the ISO code whose symbols or keywords occur most
// often in text, or "" if none occur.
func DetectCurrency(text string) string {
	best, bestCount := "", 0
	for _, c := range currencyMarkers {
		n := 0
		for _, m := range c.markers {
			n += strings.Count(text, m)
		}
		// every R$ also matched "$"
		if c.code == "USD" {
			n -= strings.Count(text, "R$")
		}
		if n > bestCount {
			best, bestCount = c.code, n
		}
	}
	return best
}

// knownInstitutions is ordered: earlier entries win when several match.
var knownInstitutions = []struct {
	name     string
	patterns []string
}{
	{"Metro Bank", []string{"metro bank", "metrobankonline"}},
	{"HSBC", []string{"hsbc"}},
	{"Barclays", []string{"barclays"}},
	{"Lloyds", []string{"lloyds bank", "lloydsbank.com"}},
	{"NatWest", []string{"natwest"}},
	{"Santander", []string{"santander"}},
	{"Nationwide", []string{"nationwide building society", "nationwide.co.uk"}},
	{"Monzo", []string{"monzo"}},
	{"Starling", []string{"starling bank", "starlingbank"}},
	{"Revolut", []string{"revolut"}},
	{"Wise", []string{"wise payments", "wise.com"}},
	{"Chase", []string{"jpmorgan chase", "chase.com"}},
	{"Bank of America", []string{"bank of america", "bankofamerica.com"}},
	{"PrivatBank", []string{"privatbank", "приватбанк"}},
	{"Monobank", []string{"monobank"}},
	{"Nubank", []string{"nubank", "nu pagamentos"}},
	{"Itaú", []string{"itaú", "itau unibanco"}},
}

// DetectBankName matches text against known institution names and domains.
func DetectBankName(text string) string {
	lower := strings.ToLower(text)
	for _, inst := range knownInstitutions {
		for _, p := range inst.patterns {
			if strings.Contains(lower, p) {
				return inst.name
			}
		}
	}
	return ""
}

var (
	accountNumberPattern = regexp.MustCompile(`(?i)(?:account\s*(?:number|no\.?)|acct)\s*:?\s*([\d\s-]{6,20}\d)`)
	bareAccountPattern   = regexp.MustCompile(`\b(\d{8})\b`)
	sortCodePattern      = regexp.MustCompile(`\b(\d{2}-\d{2}-\d{2})\b`)
)

// findAccountNumber returns the masked account number found in text.
func findAccountNumber(text string) string {
	if m := accountNumberPattern.FindStringSubmatch(text); len(m) > 1 {
		return models.MaskAccountNumber(m[1])
	}
	// UK statements print the 8-digit number next to the sort code
	for _, line := range strings.Split(text, "\n") {
		if sortCodePattern.MatchString(line) {
			if m := bareAccountPattern.FindStringSubmatch(line); len(m) > 1 {
				return models.MaskAccountNumber(m[1])
			}
		}
	}
	return ""
}
