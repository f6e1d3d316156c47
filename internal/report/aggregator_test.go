package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

var december = core.Period{Year: 2024, Month: 12}

// decemberStore holds user A's scenario month: income 5000, Food 1800, Rent 1200.
func decemberStore(t *testing.T) (*memory.Store, int64) {
	t.Helper()
	s := memory.New()
	id := s.AddUser(core.User{Username: "alice", Email: "alice@example.com", EmailNotifications: true})
	s.Add(id, core.Income, "Salary", 500000, december)
	s.Add(id, core.Expense, "Rent", 120000, december)
	s.Add(id, core.Expense, "Food", 100000, december)
	s.Add(id, core.Expense, "Food", 80000, december)
	return s, id
}

func TestMonthlyReport_NoTransactions(t *testing.T) {
	s := memory.New()
	id := s.AddUser(core.User{Username: "bob", Email: "bob@example.com"})

	data, err := NewAggregator(s).MonthlyReport(context.Background(), id, december)
	require.NoError(t, err)

	assert.Zero(t, data.TotalIncome)
	assert.Zero(t, data.TotalExpense)
	assert.Zero(t, data.TotalSaving)
	assert.Zero(t, data.TransactionCount)
	assert.NotNil(t, data.IncomeCategories)
	assert.NotNil(t, data.ExpenseCategories)
	assert.Empty(t, data.IncomeCategories)
	assert.Empty(t, data.ExpenseCategories)
	assert.Equal(t, "December 2024", data.MonthYear)
}

func TestMonthlyReport_DecemberScenario(t *testing.T) {
	s, id := decemberStore(t)

	data, err := NewAggregator(s).MonthlyReport(context.Background(), id, december)
	require.NoError(t, err)

	assert.Equal(t, 5000.0, data.TotalIncome)
	assert.Equal(t, 3000.0, data.TotalExpense)
	assert.Equal(t, 2000.0, data.TotalSaving)
	assert.Equal(t, 4, data.TransactionCount)
	assert.Equal(t, []core.CategoryAmount{{Name: "Food", Amount: 1800}, {Name: "Rent", Amount: 1200}}, data.ExpenseCategories)
	assert.Equal(t, []core.CategoryAmount{{Name: "Salary", Amount: 5000}}, data.IncomeCategories)

	assert.InDelta(t, 60.0, core.Share(data.ExpenseCategories[0].Amount, data.TotalExpense), 1e-9)
	assert.InDelta(t, 40.0, core.Share(data.ExpenseCategories[1].Amount, data.TotalExpense), 1e-9)

	var sum float64
	for _, c := range data.ExpenseCategories {
		sum += c.Amount
	}
	assert.InDelta(t, data.TotalExpense, sum, 0.001)
}

func TestMonthlyReport_NegativeSaving(t *testing.T) {
	s := memory.New()
	id := s.AddUser(core.User{Username: "carol", Email: "carol@example.com"})
	s.Add(id, core.Income, "Salary", 100000, december)
	s.Add(id, core.Expense, "Shopping", 120000, december)
	s.Add(id, core.Transfer, "", 5000, december)

	data, err := NewAggregator(s).MonthlyReport(context.Background(), id, december)
	require.NoError(t, err)

	assert.Equal(t, -200.0, data.TotalSaving)
	assert.Equal(t, data.TotalIncome-data.TotalExpense, data.TotalSaving)
	assert.Equal(t, 3, data.TransactionCount, "transfers are counted")
	assert.Equal(t, 1200.0, data.TotalExpense, "transfers are not expenses")
}

func TestToCategoryAmounts_StableOnTies(t *testing.T) {
	got := toCategoryAmounts([]core.CategoryTotal{
		{Name: "Food", Amount: core.Money{Cents: 100}},
		{Name: "Rent", Amount: core.Money{Cents: 300}},
		{Name: "Health", Amount: core.Money{Cents: 100}},
		{Name: "Others", Amount: core.Money{Cents: 100}},
	})
	names := make([]string, len(got))
	for i, c := range got {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Rent", "Food", "Health", "Others"}, names)
}

func TestMonthlyReport_StoreFailure(t *testing.T) {
	s, id := decemberStore(t)
	cause := errors.New("database is locked")
	s.FailWith(cause)

	_, err := NewAggregator(s).MonthlyReport(context.Background(), id, december)
	require.Error(t, err)

	var fault *DataAccessFault
	assert.ErrorAs(t, err, &fault)
	assert.ErrorIs(t, err, cause)
}
