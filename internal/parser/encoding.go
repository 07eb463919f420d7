package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// defaultEncodings is the order in which text encodings are attempted.
var defaultEncodings = []string{"utf-8", "utf-8-sig", "latin-1", "cp1252", "iso-8859-1"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// canonicalEncoding normalises an encoding name, returning "" when unknown.
func canonicalEncoding(name string) string {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-") {
	case "utf-8", "utf8":
		return "utf-8"
	case "utf-8-sig", "utf-8-bom", "utf8-sig":
		return "utf-8-sig"
	case "latin-1", "latin1":
		return "latin-1"
	case "iso-8859-1", "iso8859-1":
		return "iso-8859-1"
	case "cp1252", "windows-1252":
		return "cp1252"
	case "cp1251", "windows-1251":
		return "cp1251"
	case "iso-8859-15", "latin-9":
		return "iso-8859-15"
	}
	return ""
}

var singleByteEncodings = map[string]encoding.Encoding{
	"latin-1":     charmap.ISO8859_1,
	"iso-8859-1":  charmap.ISO8859_1,
	"cp1252":      charmap.Windows1252,
	"cp1251":      charmap.Windows1251,
	"iso-8859-15": charmap.ISO8859_15,
}

// decodeText converts data to a UTF-8 string, trying preferred first and then
// defaultEncodings. It returns the name of the encoding that succeeded.
func decodeText(data []byte, preferred string) (string, string, error) {
	names := defaultEncodings
	if preferred != "" {
		names = append([]string{preferred}, defaultEncodings...)
	}
	// single-byte charmaps accept any input, so they never override valid UTF-8
	if _, single := singleByteEncodings[canonicalEncoding(preferred)]; single && utf8.Valid(data) {
		names = defaultEncodings
	}

	for _, name := range names {
		switch canon := canonicalEncoding(name); canon {
		case "":
			continue
		case "utf-8":
			if utf8.Valid(data) {
				return string(bytes.TrimPrefix(data, utf8BOM)), canon, nil
			}
		case "utf-8-sig":
			if !bytes.HasPrefix(data, utf8BOM) {
				continue
			}
			out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
			if err == nil && utf8.Valid(out) {
				return string(out), canon, nil
			}
		default:
			out, err := singleByteEncodings[canon].NewDecoder().Bytes(data)
			if err == nil {
				return string(out), canon, nil
			}
		}
	}
	return "", "", fmt.Errorf("no encoding in %v could decode input", names)
}

func isUTF8(enc string) bool { return enc == "utf-8" || enc == "utf-8-sig" }
