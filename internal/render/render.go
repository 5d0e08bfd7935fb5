package render

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Print style is fixed; submitters cannot influence layout.
const (
	A4Width  = 595.28
	A4Height = 841.89

	DefaultMargin     = 36.0
	DefaultLineHeight = 13.0
	DefaultTabSize    = 4
	DefaultHeaderGap  = 2
	DefaultSeparator  = " | "

	minColumns    = 20
	minLineDigits = 2
)

type Layout struct {
	PageWidth   float64
	PageHeight  float64
	Margin      float64
	LineHeight  float64
	TabSize     int
	GlyphWidth  float64
	Header      string
	HeaderGap   int
	LineNumbers bool
	Separator   string
}

func DefaultLayout(glyphWidth float64) Layout {
	return Layout{
		PageWidth:   A4Width,
		PageHeight:  A4Height,
		Margin:      DefaultMargin,
		LineHeight:  DefaultLineHeight,
		TabSize:     DefaultTabSize,
		GlyphWidth:  glyphWidth,
		HeaderGap:   DefaultHeaderGap,
		LineNumbers: true,
		Separator:   DefaultSeparator,
	}
}

// Op places one run of text at a baseline. Coordinates grow rightward and
// downward from the top-left page corner.
type Op struct {
	X    float64
	Y    float64
	Text string
	Bold bool
}

type Page struct {
	Ops []Op
}

type Document struct {
	PageWidth  float64
	PageHeight float64
	Pages      []Page
}

type row struct {
	gutter string
	text   string
}

// Paginate lays src out as monospace text rows and packs them onto pages.
// Every line keeps its number in the gutter; wrapped continuations carry a
// blank gutter so the code column stays aligned. The result always holds at
// least one page with at least one row, even for empty input.
func Paginate(src []byte, layout Layout) *Document {
	glyph := layout.GlyphWidth
	if glyph < 1 {
		glyph = 1
	}

	lines := splitLines(decodeText(src))

	lineDigits := len(strconv.Itoa(len(lines)))
	if lineDigits < minLineDigits {
		lineDigits = minLineDigits
	}

	gutterChars := 0
	if layout.LineNumbers {
		gutterChars = lineDigits + len(layout.Separator)
	}
	gutterWidth := float64(gutterChars) * glyph

	usableWidth := layout.PageWidth - 2*layout.Margin
	codeWidth := usableWidth - gutterWidth
	if codeWidth < float64(minColumns)*glyph {
		codeWidth = float64(minColumns) * glyph
	}
	maxColumns := int(codeWidth / glyph)
	if maxColumns < minColumns {
		maxColumns = minColumns
	}

	blankGutter := strings.Repeat(" ", gutterChars)

	var rows []row
	for i, line := range lines {
		expanded := []rune(expandTabs(line, layout.TabSize))

		prefix := ""
		if layout.LineNumbers {
			num := strconv.Itoa(i + 1)
			prefix = strings.Repeat(" ", lineDigits-len(num)) + num + layout.Separator
		}

		if len(expanded) == 0 {
			rows = append(rows, row{gutter: prefix, text: ""})
			continue
		}

		first := true
		for len(expanded) > maxColumns {
			g := prefix
			if !first {
				g = blankGutter
			}
			rows = append(rows, row{gutter: g, text: string(expanded[:maxColumns])})
			expanded = expanded[maxColumns:]
			first = false
		}
		g := prefix
		if !first {
			g = blankGutter
		}
		rows = append(rows, row{gutter: g, text: string(expanded)})
	}

	headerRows := 0
	if layout.Header != "" {
		headerRows = layout.HeaderGap
	}

	usableHeight := layout.PageHeight - 2*layout.Margin
	rowsPerPage := int(usableHeight/layout.LineHeight) - headerRows
	if rowsPerPage < 1 {
		rowsPerPage = 1
	}

	doc := &Document{
		PageWidth:  layout.PageWidth,
		PageHeight: layout.PageHeight,
	}

	for start := 0; start < len(rows); start += rowsPerPage {
		end := start + rowsPerPage
		if end > len(rows) {
			end = len(rows)
		}

		var page Page
		if layout.Header != "" {
			page.Ops = append(page.Ops, Op{
				X:    layout.Margin,
				Y:    layout.Margin,
				Text: layout.Header,
				Bold: true,
			})
		}

		y := layout.Margin + layout.LineHeight*float64(headerRows)
		for _, r := range rows[start:end] {
			if layout.LineNumbers {
				page.Ops = append(page.Ops, Op{X: layout.Margin, Y: y, Text: r.gutter})
			}
			page.Ops = append(page.Ops, Op{X: layout.Margin + gutterWidth, Y: y, Text: r.text})
			y += layout.LineHeight
		}

		doc.Pages = append(doc.Pages, page)
	}

	return doc
}

// decodeText interprets src as UTF-8, substituting U+FFFD for each invalid
// byte so binary garbage still renders instead of aborting the job.
func decodeText(src []byte) string {
	if utf8.Valid(src) {
		return string(src)
	}

	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
			i++
			continue
		}
		b.WriteString(string(src[i : i+size]))
		i += size
	}
	return b.String()
}

// splitLines splits on line breaks without letting a trailing newline create
// a phantom empty line. Empty input is a single empty line.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func expandTabs(line string, tabSize int) string {
	if !strings.ContainsRune(line, '\t') {
		return line
	}
	if tabSize <= 0 {
		return strings.ReplaceAll(line, "\t", "")
	}

	var b strings.Builder
	col := 0
	for _, r := range line {
		if r == '\t' {
			n := tabSize - col%tabSize
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}
