package parser

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

// Source is one statement file handed to a parser.
type Source struct {
	Data     []byte
	Filename string
	Profile  *models.BankProfile // optional
}

// Parser defines the interface for statement parsers.
type Parser interface {
	// Parse turns raw file bytes into normalized statement data.
	Parse(src Source) (*models.StatementData, error)
	// Format returns the file format the parser handles.
	Format() models.Format
}

// New returns the parser for the given format. A nil logger discards output
// and a nil registry disables profile detection.
func New(format models.Format, logger *log.Logger, registry *Registry) (Parser, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	switch format {
	case models.FormatCSV:
		return &CSVParser{logger: logger, registry: registry}, nil
	case models.FormatOFX:
		return &OFXParser{logger: logger}, nil
	case models.FormatQIF:
		return &QIFParser{logger: logger}, nil
	case models.FormatPDF:
		return &PDFParser{logger: logger}, nil
	case models.FormatXLS:
		return &XLSParser{logger: logger, registry: registry}, nil
	default:
		return nil, &models.UnsupportedFormatError{Filename: string(format)}
	}
}

var extensionFormats = map[string]models.Format{
	".csv": models.FormatCSV,
	".tsv": models.FormatCSV,
	".txt": models.FormatCSV,
	".ofx": models.FormatOFX,
	".qfx": models.FormatOFX,
	".qif": models.FormatQIF,
	".pdf": models.FormatPDF,
	".xls": models.FormatXLS,
}

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// DetectFormat identifies the statement format from the file extension,
// falling back to content sniffing.
func DetectFormat(filename string, data []byte) (models.Format, error) {
	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return f, nil
	}

	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(head, utf8BOM))
	switch {
	case bytes.HasPrefix(trimmed, []byte("%PDF")):
		return models.FormatPDF, nil
	case bytes.HasPrefix(head, oleMagic):
		return models.FormatXLS, nil
	case bytes.Contains(head, []byte("OFXHEADER")), bytes.Contains(bytes.ToUpper(head), []byte("<OFX>")):
		return models.FormatOFX, nil
	case bytes.HasPrefix(trimmed, []byte("!Type:")), bytes.HasPrefix(trimmed, []byte("!type:")):
		return models.FormatQIF, nil
	}
	return "", &models.UnsupportedFormatError{Filename: filename}
}

// Parse detects the format of src and parses it.
func Parse(src Source, logger *log.Logger, registry *Registry) (*models.StatementData, error) {
	format, err := DetectFormat(src.Filename, src.Data)
	if err != nil {
		return nil, err
	}
	p, err := New(format, logger, registry)
	if err != nil {
		return nil, err
	}
	return p.Parse(src)
}
