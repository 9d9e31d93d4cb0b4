package report

import (
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"zen-records/domain"
)

const (
	pdfMarginLeft = 20.0
	pdfBodyWidth  = 170.0
	pdfLineHeight = 7.0
)

// WritePDF renders r as an A4 document: a centered title block followed by
// the sections, paginated automatically.
func WritePDF(w io.Writer, r Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if pdf.Err() {
		// Without the code page map text is written as is.
		pdf.ClearError()
		tr = func(s string) string { return s }
	}
	pdf.SetMargins(pdfMarginLeft, 20, pdfMarginLeft)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 10, tr("Generated "+domain.LongDate(r.GeneratedAt)), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(67, 97, 238)
	pdf.CellFormat(0, 12, tr(r.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 9, tr(r.Subtitle), "", 1, "C", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	y := pdf.GetY() + 3
	pdf.Line(pdfMarginLeft, y, pdfMarginLeft+pdfBodyWidth, y)
	pdf.SetY(y + 5)

	pdf.SetTextColor(0, 0, 0)
	for _, s := range r.Sections {
		if s.Heading != "" {
			pdf.SetFont("Helvetica", "B", 13)
			pdf.CellFormat(0, 9, tr(s.Heading), "", 1, "L", false, 0, "")
		}
		pdf.SetFont("Helvetica", "", 11)
		for _, l := range s.Lines {
			pdf.MultiCell(pdfBodyWidth, pdfLineHeight, tr(strings.ReplaceAll(l, "\t", " ")), "", "L", false)
		}
		pdf.Ln(3)
	}
	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
