package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"fintrack/internal/core"
)

// topExpenseCount is how many expense categories the email body lists.
const topExpenseCount = 5

// Email is a composed report notification, without its attachment.
type Email struct {
	Subject string
	HTML    string
}

type emailCategory struct {
	Name    string
	Amount  string
	Percent string
}

type emailView struct {
	Username   string
	MonthYear  string
	Income     string
	Expense    string
	Saving     string
	Negative   bool
	Count      int
	Categories []emailCategory
}

var emailTemplate = template.Must(template.New("monthly_report").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2 style="color: #29629b;">Monthly Financial Report - {{.MonthYear}}</h2>
  <p>Hello {{.Username}},</p>
  <p>Here is your financial summary for {{.MonthYear}}. The full report is attached as a PDF.</p>
  <table style="border-collapse: collapse;" cellpadding="6">
    <tr><td><strong>Total Income</strong></td><td>{{.Income}}</td></tr>
    <tr><td><strong>Total Expenses</strong></td><td>{{.Expense}}</td></tr>
    <tr><td><strong>Net Savings</strong></td><td style="color: {{if .Negative}}#c0392b{{else}}#27ae60{{end}};">{{.Saving}}</td></tr>
    <tr><td><strong>Transactions</strong></td><td>{{.Count}}</td></tr>
  </table>
  {{- if .Categories}}
  <h3>Top Expense Categories</h3>
  <ul>
    {{- range .Categories}}
    <li>{{.Name}}: {{.Amount}} ({{.Percent}})</li>
    {{- end}}
  </ul>
  {{- end}}
  <p style="font-size: 12px; color: #888;">You are receiving this email because monthly reports are enabled in your settings.
  You can turn them off at any time from the application.</p>
</body>
</html>
`))

// Subject returns the email subject for a report period label.
func Subject(monthYear string) string {
	return "Monthly Financial Report - " + monthYear
}

// AttachmentName returns the PDF filename used for emailed reports.
func AttachmentName(monthYear string) string {
	return "Monthly_Report_" + strings.ReplaceAll(monthYear, " ", "_") + ".pdf"
}

// ComposeEmail renders the HTML summary email for one user's month.
func ComposeEmail(username string, data core.MonthlyReportData, currencySymbol string) (Email, error) {
	view := emailView{
		Username:  username,
		MonthYear: data.MonthYear,
		Income:    FormatMoney(currencySymbol, data.TotalIncome),
		Expense:   FormatMoney(currencySymbol, data.TotalExpense),
		Saving:    FormatMoney(currencySymbol, data.TotalSaving),
		Negative:  data.TotalSaving < 0,
		Count:     data.TransactionCount,
	}
	for i, c := range data.ExpenseCategories {
		if i == topExpenseCount {
			break
		}
		view.Categories = append(view.Categories, emailCategory{
			Name:    c.Name,
			Amount:  FormatMoney(currencySymbol, c.Amount),
			Percent: fmt.Sprintf("%.1f%%", core.Share(c.Amount, data.TotalExpense)),
		})
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return Email{}, fmt.Errorf("execute email template: %w", err)
	}
	return Email{Subject: Subject(data.MonthYear), HTML: buf.String()}, nil
}
