package detector

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

type typeRule struct {
	Type  models.PaymentType
	Regex *regexp.Regexp
}

// typeRules are checked in order; the first match wins.
var typeRules = []typeRule{
	{models.PaymentSubscription, keywords(
		"netflix", "spotify", "disney", "disney plus", "amazon prime", "prime video", "apple", "icloud",
		"google storage", "google one", "youtube", "hulu", "hbo", "audible", "xbox", "playstation",
		"nintendo", "adobe", "microsoft", "office 365", "dropbox", "patreon", "now tv", "sky", "deezer",
		"tidal", "gym", "puregym", "the gym", "membership", "subscription", "chatgpt", "openai",
	)},
	{models.PaymentHousing, keywords(
		"rent", "mortgage", "landlord", "letting", "lettings", "estate agent", "council tax", "housing",
		"property management", "hoa", "aluguel",
	)},
	{models.PaymentUtility, keywords(
		"electric", "electricity", "gas", "water", "british gas", "octopus energy", "edf", "eon", "e.on",
		"ovo", "energy", "broadband", "internet", "phone", "mobile", "vodafone", "ee", "o2", "bt",
		"virgin media", "talktalk", "verizon", "at&t", "comcast", "utility", "utilities", "tv licence",
	)},
	{models.PaymentInsurance, keywords(
		"insurance", "insure", "assurance", "aviva", "admiral", "direct line", "axa", "allianz", "geico",
		"state farm", "life cover", "bupa", "vitality", "legal & general", "seguro",
	)},
	{models.PaymentProfessional, keywords(
		"accountant", "accounting", "solicitor", "lawyer", "legal", "consulting", "consultancy", "therapy",
		"therapist", "dentist", "tutor", "coaching", "xero", "quickbooks", "linkedin", "github", "slack",
		"zoom", "atlassian",
	)},
	{models.PaymentDebt, keywords(
		"loan", "credit card", "klarna", "afterpay", "clearpay", "paypal credit", "barclaycard", "amex",
		"american express", "capital one", "mbna", "repayment", "student loan", "car finance", "finance",
	)},
	{models.PaymentSavings, keywords(
		"savings", "saver", "isa", "investment", "vanguard", "nutmeg", "moneybox", "pension", "chip", "plum",
	)},
	{models.PaymentTransfer, keywords(
		"transfer", "xfer", "tfr", "to account", "sent to", "faster payment", "pix", "wise", "revolut",
	)},
}

// keywords compiles a case-insensitive, word-bounded alternation.
func keywords(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// ClassifyPaymentType checks the merchant key and sample descriptions
// against the keyword table. With no match a regular frequency is assumed
// to be a subscription.
func ClassifyPaymentType(key string, samples []string, freq models.Frequency) models.PaymentType {
	texts := append([]string{key}, samples...)
	for _, rule := range typeRules {
		for _, text := range texts {
			if rule.Regex.MatchString(text) {
				return rule.Type
			}
		}
	}
	if freq != models.FrequencyIrregular {
		return models.PaymentSubscription
	}
	return models.PaymentUnknown
}
