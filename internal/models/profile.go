package models

// Column is a logical statement column that header cells are resolved onto.
type Column int

const (
	ColumnDate Column = iota
	ColumnDescription
	ColumnAmount
	ColumnDebit
	ColumnCredit
	ColumnBalance
	ColumnReference
	ColumnCategory

	NumColumns
)

var columnNames = [NumColumns]string{
	"date", "description", "amount", "debit", "credit", "balance", "reference", "category",
}

func (c Column) String() string {
	if c < 0 || c >= NumColumns {
		return "unknown"
	}
	return columnNames[c]
}

// ColumnNames lists the accepted header names for each logical column.
type ColumnNames struct {
	Date        []string `yaml:"date,omitempty" json:"date,omitempty"`
	Description []string `yaml:"description,omitempty" json:"description,omitempty"`
	Amount      []string `yaml:"amount,omitempty" json:"amount,omitempty"`
	Debit       []string `yaml:"debit,omitempty" json:"debit,omitempty"`
	Credit      []string `yaml:"credit,omitempty" json:"credit,omitempty"`
	Balance     []string `yaml:"balance,omitempty" json:"balance,omitempty"`
	Reference   []string `yaml:"reference,omitempty" json:"reference,omitempty"`
	Category    []string `yaml:"category,omitempty" json:"category,omitempty"`
}

// For returns the header names accepted for c.
func (n ColumnNames) For(c Column) []string {
	switch c {
	case ColumnDate:
		return n.Date
	case ColumnDescription:
		return n.Description
	case ColumnAmount:
		return n.Amount
	case ColumnDebit:
		return n.Debit
	case ColumnCredit:
		return n.Credit
	case ColumnBalance:
		return n.Balance
	case ColumnReference:
		return n.Reference
	case ColumnCategory:
		return n.Category
	}
	return nil
}

// IsZero reports whether no column has any names configured.
func (n ColumnNames) IsZero() bool {
	for c := Column(0); c < NumColumns; c++ {
		if len(n.For(c)) > 0 {
			return false
		}
	}
	return true
}

// WithDefaults fills every column left empty in n from DefaultColumnNames.
func (n ColumnNames) WithDefaults() ColumnNames {
	d := DefaultColumnNames()
	pick := func(own, def []string) []string {
		if len(own) > 0 {
			return own
		}
		return def
	}
	return ColumnNames{
		Date:        pick(n.Date, d.Date),
		Description: pick(n.Description, d.Description),
		Amount:      pick(n.Amount, d.Amount),
		Debit:       pick(n.Debit, d.Debit),
		Credit:      pick(n.Credit, d.Credit),
		Balance:     pick(n.Balance, d.Balance),
		Reference:   pick(n.Reference, d.Reference),
		Category:    pick(n.Category, d.Category),
	}
}

// DefaultColumnNames returns the built-in header synonyms.
func DefaultColumnNames() ColumnNames {
	return ColumnNames{
		Date:        []string{"date", "transaction date", "posting date", "posted date", "value date", "booking date", "completed date"},
		Description: []string{"description", "details", "narrative", "payee", "merchant", "name", "memo", "transaction description", "counter party"},
		Amount:      []string{"amount", "transaction amount"},
		Debit:       []string{"debit", "debit amount", "paid out", "money out", "withdrawal", "withdrawals"},
		Credit:      []string{"credit", "credit amount", "paid in", "money in", "deposit", "deposits"},
		Balance:     []string{"balance", "running balance", "closing balance"},
		Reference:   []string{"reference", "transaction id", "check number"},
		Category:    []string{"category", "type", "subcategory", "spending category"},
	}
}

// Detection holds the signals used to recognise a bank's export.
type Detection struct {
	FilenamePatterns []string `yaml:"filename_patterns,omitempty" json:"filenamePatterns,omitempty"`
	HeaderKeywords   []string `yaml:"header_keywords,omitempty" json:"headerKeywords,omitempty"`
	ContentPatterns  []string `yaml:"content_patterns,omitempty" json:"contentPatterns,omitempty"`
}

// BankProfile describes how one institution's export maps onto logical columns.
// Every field is optional.
type BankProfile struct {
	Name       string      `yaml:"name" json:"name"`
	Currency   string      `yaml:"currency,omitempty" json:"currency,omitempty"`
	Columns    ColumnNames `yaml:"columns,omitempty" json:"columns,omitempty"`
	DateFormat string      `yaml:"date_format,omitempty" json:"dateFormat,omitempty"`
	Delimiter  string      `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Encoding   string      `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	HeaderRow  int         `yaml:"header_row,omitempty" json:"headerRow,omitempty"`
	SkipRows   int         `yaml:"skip_rows,omitempty" json:"skipRows,omitempty"`
	Detection  Detection   `yaml:"detection,omitempty" json:"detection,omitempty"`
}
