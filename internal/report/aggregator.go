package report

import (
	"context"
	"sort"

	"fintrack/internal/core"
)

// Store is the read side of the data store consumed by the report pipeline.
type Store interface {
	SumByType(ctx context.Context, userID int64, typ core.TransactionType, p core.Period) (core.Money, error)
	CategorySums(ctx context.Context, userID int64, typ core.TransactionType, p core.Period) ([]core.CategoryTotal, error)
	CountTransactions(ctx context.Context, userID int64, p core.Period) (int, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	ListOptedInUsers(ctx context.Context) ([]core.User, error)
	ListReportPeriods(ctx context.Context, userID int64, limit int) ([]core.PeriodCount, error)
}

// Aggregator turns the user's transactions for one month into MonthlyReportData.
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// MonthlyReport fails only when the store does. A month without transactions
// yields a zero report.
func (a *Aggregator) MonthlyReport(ctx context.Context, userID int64, p core.Period) (core.MonthlyReportData, error) {
	data := core.EmptyReport(p)

	income, err := a.store.SumByType(ctx, userID, core.Income, p)
	if err != nil {
		return core.MonthlyReportData{}, dataFault("sum income", err)
	}
	expense, err := a.store.SumByType(ctx, userID, core.Expense, p)
	if err != nil {
		return core.MonthlyReportData{}, dataFault("sum expense", err)
	}

	incomeCats, err := a.store.CategorySums(ctx, userID, core.Income, p)
	if err != nil {
		return core.MonthlyReportData{}, dataFault("income categories", err)
	}
	expenseCats, err := a.store.CategorySums(ctx, userID, core.Expense, p)
	if err != nil {
		return core.MonthlyReportData{}, dataFault("expense categories", err)
	}

	count, err := a.store.CountTransactions(ctx, userID, p)
	if err != nil {
		return core.MonthlyReportData{}, dataFault("count transactions", err)
	}

	data.TotalIncome = income.Float()
	data.TotalExpense = expense.Float()
	data.TotalSaving = income.Sub(expense).Float()
	data.IncomeCategories = toCategoryAmounts(incomeCats)
	data.ExpenseCategories = toCategoryAmounts(expenseCats)
	data.TransactionCount = count
	return data, nil
}

// toCategoryAmounts converts and sorts descending by amount. Ties keep store order.
func toCategoryAmounts(totals []core.CategoryTotal) []core.CategoryAmount {
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Amount.Cents > totals[j].Amount.Cents
	})
	out := make([]core.CategoryAmount, 0, len(totals))
	for _, t := range totals {
		out = append(out, core.CategoryAmount{Name: t.Name, Amount: t.Amount.Float()})
	}
	return out
}
