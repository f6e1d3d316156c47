package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	AccountUPI      AccountType = "upi"
	AccountCard     AccountType = "card"
	AccountCash     AccountType = "cash"
	AccountPersonal AccountType = "personal"
	AccountBank     AccountType = "bank"
)

type (
	TransactionType string

	AccountType string

	Transaction struct {
		ID          int64
		UserID      int64
		AccountID   int64
		ToAccountID *int64 // transfers only
		CategoryID  *int64 // income and expense only
		Amount      Money
		Type        TransactionType
		Date        time.Time
		CreatedAt   time.Time
	}

	Account struct {
		ID      int64
		UserID  int64
		Name    string
		Type    AccountType
		Balance Money
	}

	Category struct {
		ID        int64
		UserID    int64
		Name      string
		Type      TransactionType // income or expense
		IsDefault bool
	}

	Budget struct {
		UserID     int64
		CategoryID int64
		Amount     Money
		Month      int
		Year       int
	}

	User struct {
		ID                 int64
		Username           string
		Email              string
		PasswordHash       string
		EmailNotifications bool
	}
)

var (
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrMissingCategory    = errors.New("income and expense transactions require a category")
	ErrUnexpectedCategory = errors.New("transfers cannot have a category")
	ErrMissingToAccount   = errors.New("transfers require a destination account")
	ErrSameAccount        = errors.New("transfer source and destination must differ")
	ErrUnexpectedTarget   = errors.New("only transfers can have a destination account")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidEmail       = errors.New("invalid email")
)

// DefaultExpenseCategories are seeded for every new user.
var DefaultExpenseCategories = []string{"Rent", "Transport", "Food", "Shopping", "Health", "Others"}

// DefaultIncomeCategories are seeded for every new user.
var DefaultIncomeCategories = []string{"Home", "Salary", "Award", "Lottery"}

// DefaultAccounts are created with a zero balance for every new user.
var DefaultAccounts = []Account{
	{Name: "UPI", Type: AccountUPI},
	{Name: "Card", Type: AccountCard},
	{Name: "Cash", Type: AccountCash},
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

// Validate checks the shape rules: income/expense touch one account and one
// category, transfers touch two accounts and no category.
func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	switch t.Type {
	case Income, Expense:
		if t.CategoryID == nil {
			return ErrMissingCategory
		}
		if t.ToAccountID != nil {
			return ErrUnexpectedTarget
		}
	case Transfer:
		if t.ToAccountID == nil {
			return ErrMissingToAccount
		}
		if *t.ToAccountID == t.AccountID {
			return ErrSameAccount
		}
		if t.CategoryID != nil {
			return ErrUnexpectedCategory
		}
	default:
		return ErrInvalidType
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Type != Income && c.Type != Expense {
		return ErrInvalidType
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return ErrEmptyName
	}
	at := strings.Index(u.Email, "@")
	if at < 1 || at == len(u.Email)-1 {
		return ErrInvalidEmail
	}
	return nil
}
