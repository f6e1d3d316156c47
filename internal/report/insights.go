package report

import (
	"fmt"
	"math"

	"fintrack/internal/core"
)

type InsightKind string

const (
	KindSavingsRate    InsightKind = "savings_rate"
	KindTopCategory    InsightKind = "top_category"
	KindMonthOverMonth InsightKind = "month_over_month"
)

type InsightLevel string

const (
	LevelExcellent InsightLevel = "excellent"
	LevelGood      InsightLevel = "good"
	LevelWarning   InsightLevel = "warning"
	LevelOverspend InsightLevel = "overspend"
	LevelInfo      InsightLevel = "info"
)

// Insight is a short observation about a month's finances.
type Insight struct {
	Kind    InsightKind  `json:"kind"`
	Level   InsightLevel `json:"level"`
	Message string       `json:"message"`
}

const (
	excellentRate = 20.0
	goodRate      = 10.0
	// month-over-month changes at or below this are not reported
	significantDelta = 10.0
)

// GenerateInsights derives insights from the current month and, when known,
// the previous one. previous may be nil.
func GenerateInsights(current core.MonthlyReportData, previous *core.MonthlyReportData) []Insight {
	insights := []Insight{}

	if current.TotalIncome > 0 {
		rate := current.TotalSaving / current.TotalIncome * 100
		insights = append(insights, savingsInsight(rate))
	}

	if len(current.ExpenseCategories) > 0 {
		top := current.ExpenseCategories[0]
		share := core.Share(top.Amount, current.TotalExpense)
		insights = append(insights, Insight{
			Kind:    KindTopCategory,
			Level:   LevelInfo,
			Message: fmt.Sprintf("📊 Your highest expense category is '%s' at %.1f%% of total expenses.", top.Name, share),
		})
	}

	if previous != nil && previous.TotalExpense > 0 {
		delta := (current.TotalExpense - previous.TotalExpense) / previous.TotalExpense * 100
		if math.Abs(delta) > significantDelta {
			if delta > 0 {
				insights = append(insights, Insight{
					Kind:    KindMonthOverMonth,
					Level:   LevelWarning,
					Message: fmt.Sprintf("📈 Your expenses increased by %.1f%% compared to last month. Review your spending.", delta),
				})
			} else {
				insights = append(insights, Insight{
					Kind:    KindMonthOverMonth,
					Level:   LevelGood,
					Message: fmt.Sprintf("📉 Great! Your expenses decreased by %.1f%% compared to last month.", -delta),
				})
			}
		}
	}

	return insights
}

func savingsInsight(rate float64) Insight {
	switch {
	case rate >= excellentRate:
		return Insight{Kind: KindSavingsRate, Level: LevelExcellent,
			Message: fmt.Sprintf("✅ Excellent! You saved %.1f%% of your income this month.", rate)}
	case rate >= goodRate:
		return Insight{Kind: KindSavingsRate, Level: LevelGood,
			Message: fmt.Sprintf("👍 Good job! You saved %.1f%% of your income. Try to reach 20%% for optimal savings.", rate)}
	case rate > 0:
		return Insight{Kind: KindSavingsRate, Level: LevelWarning,
			Message: fmt.Sprintf("⚠️ You saved %.1f%% of your income. Consider reducing expenses to increase savings.", rate)}
	default:
		return Insight{Kind: KindSavingsRate, Level: LevelOverspend,
			Message: "🚨 You spent more than you earned this month. Review your expenses and create a budget."}
	}
}
