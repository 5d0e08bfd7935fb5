package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	pdfFont     = "Courier"
	pdfFontSize = 10.0
	pdfAuthor   = "Local Print Agent"
)

// RenderPDF paginates src and writes the finished PDF to w. The team name
// lands in every page header; title becomes the document title, normally
// the original filename.
func RenderPDF(src []byte, team, title string, w io.Writer) error {
	if strings.TrimSpace(team) == "" {
		team = "unknown"
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor(pdfAuthor, true)
	pdf.SetFont(pdfFont, "", pdfFontSize)

	pageWidth, pageHeight := pdf.GetPageSize()

	layout := DefaultLayout(pdf.GetStringWidth("M"))
	layout.PageWidth = pageWidth
	layout.PageHeight = pageHeight
	layout.Header = "Team: " + team

	doc := Paginate(src, layout)
	drawDocument(pdf, doc)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// drawDocument replays pagination ops onto the canvas. Core fonts only
// cover cp1252, so text passes through the translator first.
func drawDocument(pdf *fpdf.Fpdf, doc *Document) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range doc.Pages {
		pdf.AddPage()
		bold := false
		pdf.SetFont(pdfFont, "", pdfFontSize)

		for _, op := range page.Ops {
			if op.Bold != bold {
				bold = op.Bold
				style := ""
				if bold {
					style = "B"
				}
				pdf.SetFont(pdfFont, style, pdfFontSize)
			}
			pdf.Text(op.X, op.Y, tr(op.Text))
		}
	}
}
