package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/zombor/quicktotal/internal/ledger"
)

// pdfCurrency spells the symbol out because the core PDF fonts have no
// glyph for ₹
var pdfCurrency = ledger.Currency{Symbol: "Rs. "}

// PDFReport describes a PDF export
type PDFReport struct {
	Title     string
	Generated time.Time
	Documents []ledger.Document
}

// WritePDF renders a summary page with the grand total and category
// breakdown, followed by a table of items for each document.
func WritePDF(w io.Writer, r PDFReport) error {
	title := r.Title
	if title == "" {
		title = "QuickTotal Report"
	}
	totals := ledger.Recalculate(r.Documents, pdfCurrency)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("QuickTotal", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s - %d document(s)",
		r.Generated.Format("2006-01-02 15:04"), len(r.Documents)), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(120, 9, "Grand Total", "B", 0, "L", false, 0, "")
	pdf.CellFormat(0, 9, totals.GrandDisplay, "B", 1, "R", false, 0, "")
	pdf.Ln(4)

	if len(totals.Categories) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Category Breakdown", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, c := range totals.Categories {
			pdf.CellFormat(100, 6, tr(c.Name), "", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, c.ShareDisplay(), "", 0, "R", false, 0, "")
			pdf.CellFormat(0, 6, c.Display, "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	for i, doc := range r.Documents {
		dt := totals.Documents[i]
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetFillColor(235, 230, 250)
		heading := fmt.Sprintf("%s (%d entries)", doc.Label, dt.Count)
		if doc.Method != "" {
			heading += " - " + doc.Method
		}
		pdf.CellFormat(0, 8, tr(heading), "", 1, "L", true, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		for j, item := range doc.Items {
			pdf.CellFormat(100, 6, tr(item.Name), "", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, tr(ledger.NormalizeCategory(item.Category)), "", 0, "L", false, 0, "")
			if dt.Items[j].Negative {
				pdf.SetTextColor(200, 30, 30)
			}
			pdf.CellFormat(0, 6, dt.Items[j].Display, "", 1, "R", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}

		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(140, 7, "Subtotal", "T", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, dt.Display, "T", 1, "R", false, 0, "")
		pdf.Ln(3)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("rendering PDF: %w", err)
	}
	return nil
}
