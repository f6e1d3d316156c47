package core

import (
	"errors"
	"testing"
	"time"
)

func ptr(v int64) *int64 { return &v }

func TestTransactionValidate(t *testing.T) {
	day := time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC)
	good := []Transaction{
		{AccountID: 1, CategoryID: ptr(2), Amount: Money{Cents: 100}, Type: Expense, Date: day},
		{AccountID: 1, CategoryID: ptr(3), Amount: Money{Cents: 100}, Type: Income, Date: day},
		{AccountID: 1, ToAccountID: ptr(4), Amount: Money{Cents: 100}, Type: Transfer, Date: day},
	}
	for i, tx := range good {
		if err := tx.Validate(); err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
	}

	bads := []struct {
		tx   Transaction
		want error
	}{
		{Transaction{AccountID: 1, CategoryID: ptr(2), Amount: Money{Cents: 0}, Type: Expense, Date: day}, ErrInvalidAmount},
		{Transaction{AccountID: 1, Amount: Money{Cents: 1}, Type: Expense, Date: day}, ErrMissingCategory},
		{Transaction{AccountID: 1, CategoryID: ptr(2), ToAccountID: ptr(3), Amount: Money{Cents: 1}, Type: Income, Date: day}, ErrUnexpectedTarget},
		{Transaction{AccountID: 1, Amount: Money{Cents: 1}, Type: Transfer, Date: day}, ErrMissingToAccount},
		{Transaction{AccountID: 1, ToAccountID: ptr(1), Amount: Money{Cents: 1}, Type: Transfer, Date: day}, ErrSameAccount},
		{Transaction{AccountID: 1, ToAccountID: ptr(2), CategoryID: ptr(5), Amount: Money{Cents: 1}, Type: Transfer, Date: day}, ErrUnexpectedCategory},
		{Transaction{AccountID: 1, Amount: Money{Cents: 1}, Type: "refund", Date: day}, ErrInvalidType},
	}
	for i, tc := range bads {
		if err := tc.tx.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestUserValidate(t *testing.T) {
	if err := (User{Username: "asha", Email: "asha@example.com"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, email := range []string{"", "asha", "@example.com", "asha@"} {
		if err := (User{Username: "asha", Email: email}).Validate(); err == nil {
			t.Fatalf("email %q expected error", email)
		}
	}
	if err := (User{Username: " ", Email: "a@b.c"}).Validate(); err == nil {
		t.Fatalf("expected error for empty username")
	}
}

func TestPeriod(t *testing.T) {
	cases := []struct {
		now  time.Time
		want Period
	}{
		{time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), Period{Year: 2024, Month: 12}},
		{time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC), Period{Year: 2025, Month: 2}},
		{time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), Period{Year: 2025, Month: 11}},
	}
	for _, tc := range cases {
		if got := PreviousMonth(tc.now); got != tc.want {
			t.Fatalf("PreviousMonth(%v) = %v, want %v", tc.now, got, tc.want)
		}
	}

	p := Period{Year: 2024, Month: 12}
	if p.Label() != "December 2024" {
		t.Fatalf("Label() = %q", p.Label())
	}
	if !p.End().Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("End() = %v", p.End())
	}
	for _, bad := range []Period{{2024, 0}, {2024, 13}, {0, 5}} {
		if _, err := NewPeriod(bad.Year, bad.Month); !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("NewPeriod(%v) expected ErrInvalidPeriod, got %v", bad, err)
		}
	}
}

func TestShare(t *testing.T) {
	if got := Share(1800, 3000); got != 60 {
		t.Fatalf("Share = %v, want 60", got)
	}
	if got := Share(10, 0); got != 0 {
		t.Fatalf("Share with zero total = %v, want 0", got)
	}
}
