package detector

import (
	"regexp"
	"strings"
)

// maxKeyLength caps normalized merchant keys, in runes.
const maxKeyLength = 50

// railPrefixes are payment-rail markers banks put before the merchant name.
// Longer prefixes come first so "direct debit to" wins over "direct debit".
var railPrefixes = []string{
	"card payment to ",
	"direct debit to ",
	"direct debit payment to ",
	"standing order to ",
	"faster payment to ",
	"bill payment to ",
	"payment to ",
	"card purchase ",
	"card payment ",
	"direct debit ",
	"standing order ",
	"contactless ",
	"debit card ",
	"purchase ",
	"visa ",
	"vis ",
	"pos ",
	"dd ",
	"so ",
	"bp ",
	"fpo ",
}

// trailingNoise strips references, dates and locations from the end of a
// description. Each is applied repeatedly until nothing changes.
var trailingNoise = []*regexp.Regexp{
	regexp.MustCompile(`\s+(?:on\s+)?\d{1,2}[/.-]\d{1,2}(?:[/.-]\d{2,4})?$`),
	regexp.MustCompile(`\s+(?:on\s+)?\d{1,2}\s*(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*(?:\s+\d{2,4})?$`),
	regexp.MustCompile(`\s+(?:ref|reference|ref no)[.:]?\s*\S+$`),
	regexp.MustCompile(`\s*\*+\s*[a-z0-9]+$`),
	regexp.MustCompile(`\s+#?[a-z]{0,3}\d{4,}[a-z0-9]*$`),
	regexp.MustCompile(`\s+(?:gb|gbr|uk|us|usa|ie|irl|de|fr|nl|es|it|br|bra|ua|ukr)$`),
}

// NormalizeMerchant reduces a raw description to the key transactions are
// grouped by.
func NormalizeMerchant(desc string) string {
	base := strings.Join(strings.Fields(strings.ToLower(desc)), " ")
	s := base

	for changed := true; changed; {
		changed = false
		for _, p := range railPrefixes {
			if strings.HasPrefix(s, p) && len(s) > len(p) {
				s = strings.TrimSpace(s[len(p):])
				changed = true
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, re := range trailingNoise {
			// never strip the whole name
			if loc := re.FindStringIndex(s); loc != nil && loc[0] > 0 {
				s = strings.TrimSpace(s[:loc[0]])
				changed = true
			}
		}
	}

	s = strings.Trim(strings.Join(strings.Fields(s), " "), " -,:")
	if s == "" {
		s = base
	}
	return truncate(s, maxKeyLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
