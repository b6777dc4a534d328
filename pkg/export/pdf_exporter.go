package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 190.0
	pdfRowHeight  = 7.0
	pdfPageBottom = 280.0
)

// PDFExporter renders each dataset as a titled table; headers repeat after page breaks.
type PDFExporter struct{}

var _ Renderer = (*PDFExporter)(nil)

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType implements Renderer.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Extension implements Renderer.
func (e *PDFExporter) Extension() string { return "pdf" }

// Render creates a PDF document with the title followed by one table per dataset.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(false, 15)
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(doc.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	for i, ds := range doc.Datasets {
		if i > 0 {
			pdf.Ln(6)
		}
		if ds.Name != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, ds.Name, "", 1, "L", false, 0, "")
		}
		colWidth := pdfPageWidth / float64(len(ds.Headers))
		header := func() {
			pdf.SetFont("Arial", "B", 9)
			for _, h := range ds.Headers {
				pdf.CellFormat(colWidth, 8, h, "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
			pdf.SetFont("Arial", "", 8)
		}
		header()
		for _, row := range ds.Rows {
			if pdf.GetY()+pdfRowHeight > pdfPageBottom {
				pdf.AddPage()
				header()
			}
			for j := range ds.Headers {
				pdf.CellFormat(colWidth, pdfRowHeight, cell(row, j), "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
