package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	maxPDFCell        = 60
	landscapeColumns  = 5
	portraitTableMM   = 190.0
	landscapeTableMM  = 277.0
	pdfRowHeightMM    = 7.0
	pdfHeaderHeightMM = 8.0
)

// PDFExporter renders datasets as a paginated table. Column headers repeat
// on every page and each page carries a footer with the page count.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays the dataset out on A4. More than five columns switch the page
// to landscape.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, errors.New("pdf export has no columns")
	}

	orientation, tableWidth := "P", portraitTableMM
	if len(data.Headers) > landscapeColumns {
		orientation, tableWidth = "L", landscapeTableMM
	}
	colWidth := tableWidth / float64(len(data.Headers))

	doc := gofpdf.New(orientation, "mm", "A4", "")
	doc.SetMargins(10, 15, 10)
	doc.SetAutoPageBreak(true, 15)
	doc.AliasNbPages("")
	doc.SetHeaderFunc(func() {
		if data.Title != "" && doc.PageNo() == 1 {
			doc.SetFont("Arial", "B", 14)
			doc.CellFormat(0, 10, strings.ToUpper(data.Title), "", 1, "C", false, 0, "")
			doc.Ln(4)
		}
		doc.SetFont("Arial", "B", 10)
		doc.SetFillColor(230, 230, 230)
		for _, header := range data.Headers {
			doc.CellFormat(colWidth, pdfHeaderHeightMM, header, "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont("Arial", "", 9)
	})
	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont("Arial", "I", 8)
		doc.CellFormat(tableWidth/2, 6, fmt.Sprintf("%d rows", len(data.Rows)), "", 0, "L", false, 0, "")
		doc.CellFormat(tableWidth/2, 6, fmt.Sprintf("Page %d of {nb}", doc.PageNo()), "", 0, "R", false, 0, "")
	})

	doc.AddPage()
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			doc.CellFormat(colWidth, pdfRowHeightMM, clip(row[header]), "1", 0, "", false, 0, "")
		}
		doc.Ln(-1)
	}

	var out bytes.Buffer
	if err := doc.Output(&out); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return out.Bytes(), nil
}

// clip shortens values that would overflow a table cell.
func clip(value string) string {
	if runes := []rune(value); len(runes) > maxPDFCell {
		return string(runes[:maxPDFCell-3]) + "..."
	}
	return value
}
