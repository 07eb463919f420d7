package extractor

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Cell is a run of text on a line, separated from its neighbours by a
// column-sized horizontal gap.
type Cell struct {
	X    float64
	Text string
}

// Line is one visual row of a page.
type Line struct {
	Y     float64
	Cells []Cell
}

// Text joins the cells with two spaces so column boundaries stay visible.
func (l Line) Text() string {
	parts := make([]string, len(l.Cells))
	for i, c := range l.Cells {
		parts[i] = c.Text
	}
	return strings.Join(parts, "  ")
}

// Page is the positioned text of one PDF page.
type Page struct {
	Number int
	Lines  []Line
}

// Text returns the page as newline separated lines.
func (p Page) Text() string {
	lines := make([]string, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = l.Text()
	}
	return strings.Join(lines, "\n")
}

// ExtractPages reads a PDF from memory and returns its positioned text, one
// Page per non-empty page. Row grouping from the library is tried first,
// then raw content grouped by Y coordinate.
func ExtractPages(data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages = extractByRow(r, numPages)
	if IsReadable(pages) {
		return pages, nil
	}
	pages = extractByContent(r, numPages)
	if IsReadable(pages) {
		return pages, nil
	}
	return nil, fmt.Errorf("no readable text could be extracted from PDF; it may be image-based or use custom font encodings")
}

// CombinedText joins the text of all pages.
func CombinedText(pages []Page) string {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text()
	}
	return strings.Join(texts, "\n\n")
}

type glyphRun struct {
	x, w, size float64
	s          string
}

// Method 1: GetTextByRow
func extractByRow(r *pdf.Reader, numPages int) []Page {
	var pages []Page
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []Line
		for _, row := range rows {
			runs := make([]glyphRun, 0, len(row.Content))
			for _, t := range row.Content {
				runs = append(runs, glyphRun{x: t.X, w: t.W, size: t.FontSize, s: t.S})
			}
			if line, ok := buildLine(float64(row.Position), runs); ok {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			pages = append(pages, Page{Number: i, Lines: lines})
		}
	}
	return pages
}

// Method 2: Page.Content() grouped by rounded Y, top to bottom
func extractByContent(r *pdf.Reader, numPages int) []Page {
	var pages []Page
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		rowMap := make(map[int][]glyphRun)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			yKey := int(math.Round(t.Y))
			rowMap[yKey] = append(rowMap[yKey], glyphRun{x: t.X, w: t.W, size: t.FontSize, s: t.S})
		}

		yKeys := make([]int, 0, len(rowMap))
		for y := range rowMap {
			yKeys = append(yKeys, y)
		}
		// PDF Y grows bottom to top
		sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

		var lines []Line
		for _, y := range yKeys {
			if line, ok := buildLine(float64(y), rowMap[y]); ok {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			pages = append(pages, Page{Number: i, Lines: lines})
		}
	}
	return pages
}

// buildLine sorts runs left to right and splits them into cells wherever the
// horizontal gap is wider than about one and a half glyphs.
func buildLine(y float64, runs []glyphRun) (Line, bool) {
	sort.SliceStable(runs, func(a, b int) bool { return runs[a].x < runs[b].x })

	var cells []Cell
	var cur strings.Builder
	var curX, prevEnd, prevSize float64
	for i, run := range runs {
		size := run.size
		if size <= 0 {
			size = 10
		}
		width := run.w
		if width <= 0 {
			width = float64(utf8.RuneCountInString(run.s)) * size * 0.5
		}
		if i > 0 {
			gap := run.x - prevEnd
			switch {
			case gap > 1.5*math.Max(size, prevSize):
				if t := strings.TrimSpace(cur.String()); t != "" {
					cells = append(cells, Cell{X: curX, Text: collapseSpaces(t)})
				}
				cur.Reset()
				curX = run.x
			case gap > 0.2*size:
				cur.WriteByte(' ')
			}
		} else {
			curX = run.x
		}
		cur.WriteString(run.s)
		prevEnd = run.x + width
		prevSize = size
	}
	if t := strings.TrimSpace(cur.String()); t != "" {
		cells = append(cells, Cell{X: curX, Text: collapseSpaces(t)})
	}
	return Line{Y: y, Cells: cells}, len(cells) > 0
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textQuality returns the share of runes that are ASCII letters, digits,
// punctuation, whitespace or currency symbols. Broad unicode.IsLetter checks
// would accept garbage from identity-encoded fonts.
func textQuality(text string) float64 {
	total, readable := 0, 0
	for _, r := range text {
		total++
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)):
			readable++
		case strings.ContainsRune("£€₴", r):
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords appear in virtually every bank statement.
var commonWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "sort code",
	"money", "paid", "opening", "closing", "transfer", "direct",
	"number", "page", "period",
}

// IsReadable reports whether the pages hold more than 50 characters of
// mostly readable text containing at least one statement word.
func IsReadable(pages []Page) bool {
	text := CombinedText(pages)
	if len(strings.TrimSpace(text)) <= 50 {
		return false
	}
	if textQuality(text) <= 0.6 {
		return false
	}
	lower := strings.ToLower(text)
	for _, w := range commonWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
