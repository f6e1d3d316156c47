package report

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/phpdave11/gofpdf"

	"fintrack/internal/core"
)

// RendererOptions configures the PDF renderer.
type RendererOptions struct {
	// CurrencySymbol prefixes every amount. The core PDF fonts are cp1252,
	// so symbols outside that code page (such as ₹) are not printable.
	CurrencySymbol string
	// Compress enables stream compression. Disabled in tests so the content
	// stream can be inspected.
	Compress bool
}

func DefaultRendererOptions() RendererOptions {
	return RendererOptions{CurrencySymbol: "Rs. ", Compress: true}
}

// Renderer produces the monthly report document.
type Renderer struct {
	opts RendererOptions
}

func NewRenderer(opts RendererOptions) *Renderer {
	return &Renderer{opts: opts}
}

const (
	footerText = "This report was automatically generated by Expense Tracker. " +
		"For questions or support, please contact us through the application."

	fontFamily = "Helvetica"
)

var (
	headerFill = [3]int{41, 98, 155}
	altFill    = [3]int{242, 246, 250}
)

// Render builds an A4 PDF for one user's month and returns its bytes.
func (r *Renderer) Render(data core.MonthlyReportData, insights []Insight, username string, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.opts.Compress)
	pdf.SetCreationDate(generatedAt)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(pdfSafe(s)) }

	pdf.SetTitle(text("Monthly Financial Report - "+data.MonthYear), false)
	pdf.SetAuthor("Expense Tracker", false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// Title
	pdf.SetFont(fontFamily, "B", 20)
	pdf.SetTextColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.CellFormat(0, 10, "Monthly Financial Report", "", 1, "C", false, 0, "")
	pdf.SetFont(fontFamily, "B", 14)
	pdf.CellFormat(0, 8, text(data.MonthYear), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(0, 6, text(fmt.Sprintf("Report for: %s", username)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated on: %s", generatedAt.Format("January 02, 2006")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	// Summary
	r.sectionTitle(pdf, "Financial Summary")
	status := "Positive"
	if data.TotalSaving < 0 {
		status = "Negative"
	}
	widths := []float64{70, 60, 50}
	r.tableHeader(pdf, widths, "Metric", "Amount", "Status")
	rows := [][]string{
		{"Total Income", r.money(data.TotalIncome), ""},
		{"Total Expenses", r.money(data.TotalExpense), ""},
		{"Net Savings", r.money(data.TotalSaving), status},
		{"Transactions", fmt.Sprintf("%d", data.TransactionCount), ""},
	}
	for i, row := range rows {
		r.tableRow(pdf, widths, i, row...)
	}
	pdf.Ln(8)

	r.categoryTable(pdf, text, "Expense Breakdown by Category", data.ExpenseCategories, data.TotalExpense)
	r.categoryTable(pdf, text, "Income Breakdown by Category", data.IncomeCategories, data.TotalIncome)

	// The heading is printed even when there is nothing to list.
	r.sectionTitle(pdf, "Financial Insights & Recommendations")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(40, 40, 40)
	for _, in := range insights {
		pdf.MultiCell(0, 6, text("• "+in.Message), "", "L", false)
		pdf.Ln(1)
	}
	pdf.Ln(6)

	pdf.SetFont(fontFamily, "I", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.MultiCell(0, 5, footerText, "", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderFault{Err: err}
	}
	return buf.Bytes(), nil
}

func (r *Renderer) categoryTable(pdf *gofpdf.Fpdf, text func(string) string, title string, cats []core.CategoryAmount, total float64) {
	if len(cats) == 0 {
		return
	}
	r.sectionTitle(pdf, title)
	widths := []float64{80, 60, 40}
	r.tableHeader(pdf, widths, "Category", "Amount", "Percentage")
	for i, c := range cats {
		r.tableRow(pdf, widths, i,
			text(c.Name),
			r.money(c.Amount),
			fmt.Sprintf("%.1f%%", core.Share(c.Amount, total)))
	}
	pdf.Ln(8)
}

func (r *Renderer) sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", 13)
	pdf.SetTextColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func (r *Renderer) tableHeader(pdf *gofpdf.Fpdf, widths []float64, cols ...string) {
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetDrawColor(200, 200, 200)
	for i, c := range cols {
		pdf.CellFormat(widths[i], 8, c, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func (r *Renderer) tableRow(pdf *gofpdf.Fpdf, widths []float64, index int, cols ...string) {
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.SetFillColor(altFill[0], altFill[1], altFill[2])
	fill := index%2 == 1
	for i, c := range cols {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, c, "1", 0, align, fill, 0, "")
	}
	pdf.Ln(-1)
}

func (r *Renderer) money(v float64) string {
	return FormatMoney(r.opts.CurrencySymbol, v)
}

// FormatMoney renders v with the symbol, thousands separators and two decimals,
// e.g. "Rs. 1,234.50" or "-Rs. 200.00".
func FormatMoney(symbol string, v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = math.Abs(v)
	}
	return sign + symbol + humanize.FormatFloat("#,###.##", v)
}

// pdfSafe drops runes the cp1252 core fonts cannot show, such as emoji.
func pdfSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r <= 0xFF:
			b.WriteRune(r)
		case strings.ContainsRune("•€–—‘’“”…", r):
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	return strings.ReplaceAll(out, "•  ", "• ")
}
