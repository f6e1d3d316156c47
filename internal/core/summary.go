package core

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid period")

// Period is a calendar month used as the filter key for report computations.
type Period struct {
	Year  int
	Month int // 1-12
}

// NewPeriod returns a validated period.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PreviousMonth returns the calendar month before the one containing now.
func PreviousMonth(now time.Time) Period {
	return Period{Year: now.Year(), Month: int(now.Month())}.Previous()
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 1970 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// Previous wraps January to December of the prior year.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Start returns the first instant of the month in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month in UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// MonthName returns the English month name, e.g. "December".
func (p Period) MonthName() string {
	return time.Month(p.Month).String()
}

// Label returns the display label, e.g. "December 2024".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", p.MonthName(), p.Year)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// MonthlyReportData is the derived monthly summary for one user. It is never persisted.
type MonthlyReportData struct {
	TotalIncome       float64          `json:"total_income"`
	TotalExpense      float64          `json:"total_expense"`
	TotalSaving       float64          `json:"total_saving"`
	IncomeCategories  []CategoryAmount `json:"income_categories"`
	ExpenseCategories []CategoryAmount `json:"expense_categories"`
	TransactionCount  int              `json:"transaction_count"`
	MonthYear         string           `json:"month_year"`
}

// EmptyReport returns the well-formed zero report for a period.
func EmptyReport(p Period) MonthlyReportData {
	return MonthlyReportData{
		IncomeCategories:  []CategoryAmount{},
		ExpenseCategories: []CategoryAmount{},
		MonthYear:         p.Label(),
	}
}

// Share returns amount as a percentage of total, or 0 when total is not positive.
func Share(amount, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return amount * 100 / total
}

// PeriodCount is a month that has transactions, with their count.
type PeriodCount struct {
	Period
	TransactionCount int
}

// CategoryTotal is a per-category sum in cents as returned by the store.
type CategoryTotal struct {
	Name   string
	Amount Money
}
