package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// CreateAccount inserts an account with its opening balance.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, account_type, balance_cents) VALUES (?, ?, ?, ?)`,
		a.UserID, a.Name, string(a.Type), a.Balance.Cents)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return res.LastInsertId()
}

// GetAccount returns ErrNotFound when the account does not exist.
func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	var (
		a   core.Account
		typ string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, account_type, balance_cents FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	a.Type = core.AccountType(typ)
	return a, nil
}

// ListAccounts returns the user's accounts ordered by id.
func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, account_type, balance_cents FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var (
			a   core.Account
			typ string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(typ)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateCategory inserts a user-defined, non-default category.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, is_default) VALUES (?, ?, ?, 0)`,
		c.UserID, c.Name, string(c.Type))
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return res.LastInsertId()
}

// ListCategories returns the user's categories ordered by type then name.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, type, is_default FROM categories WHERE user_id = ? ORDER BY type, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var (
			c   core.Category
			typ string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.IsDefault); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(typ)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeleteCategory removes a user category. Seeded defaults are protected.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id int64) error {
	var isDefault bool
	err := r.db.QueryRowContext(ctx,
		`SELECT is_default FROM categories WHERE id = ? AND user_id = ?`, id, userID).Scan(&isDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get category %d: %w", id, err)
	}
	if isDefault {
		return ErrDefaultCategory
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

// balanceDeltas returns the per-account balance effect of a transaction.
func balanceDeltas(t core.Transaction) map[int64]int64 {
	switch t.Type {
	case core.Income:
		return map[int64]int64{t.AccountID: t.Amount.Cents}
	case core.Expense:
		return map[int64]int64{t.AccountID: -t.Amount.Cents}
	case core.Transfer:
		deltas := map[int64]int64{t.AccountID: -t.Amount.Cents}
		if t.ToAccountID != nil {
			deltas[*t.ToAccountID] += t.Amount.Cents
		}
		return deltas
	}
	return nil
}

func applyDeltas(ctx context.Context, tx *sql.Tx, userID int64, deltas map[int64]int64, sign int64) error {
	for accountID, delta := range deltas {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ? AND user_id = ?`,
			sign*delta, accountID, userID)
		if err != nil {
			return fmt.Errorf("update account %d balance: %w", accountID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("account %d: %w", accountID, ErrNotFound)
		}
	}
	return nil
}

// CreateTransaction inserts the transaction and applies its balance effect atomically.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if t.CategoryID != nil {
		if err := checkCategory(ctx, tx, t.UserID, *t.CategoryID, t.Type); err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, account_id, to_account_id, category_id, amount_cents, type, transaction_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.AccountID, t.ToAccountID, t.CategoryID, t.Amount.Cents, string(t.Type), t.Date.Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	if err := applyDeltas(ctx, tx, t.UserID, balanceDeltas(t), 1); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Transaction created",
		log.FieldComponent, log.ComponentStorage,
		log.FieldOperation, log.OpCreate,
		"id", id,
		log.FieldUserID, t.UserID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents)
	return id, nil
}

// checkCategory requires the category to belong to the user and share the
// transaction type.
func checkCategory(ctx context.Context, tx *sql.Tx, userID, categoryID int64, typ core.TransactionType) error {
	var catType string
	err := tx.QueryRowContext(ctx,
		`SELECT type FROM categories WHERE id = ? AND user_id = ?`, categoryID, userID).Scan(&catType)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("category %d: %w", categoryID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load category: %w", err)
	}
	if core.TransactionType(catType) != typ {
		return fmt.Errorf("category %d is %s: %w", categoryID, catType, ErrCategoryType)
	}
	return nil
}

// DeleteTransaction removes the transaction and reverses its balance effect atomically.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		t   core.Transaction
		typ string
		to  sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT account_id, to_account_id, amount_cents, type FROM transactions WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&t.AccountID, &to, &t.Amount.Cents, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get transaction %d: %w", id, err)
	}
	t.Type = core.TransactionType(typ)
	if to.Valid {
		t.ToAccountID = &to.Int64
	}

	if err := applyDeltas(ctx, tx, userID, balanceDeltas(t), -1); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	return tx.Commit()
}

// UpsertBudget sets the budget for (user, category, month, year).
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if err := (core.Period{Year: b.Year, Month: b.Month}).Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount_cents, month, year) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, category_id, month, year) DO UPDATE SET amount_cents = excluded.amount_cents`,
		b.UserID, b.CategoryID, b.Amount.Cents, b.Month, b.Year)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

// ListBudgets returns the budgets set for one period.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64, p core.Period) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, category_id, amount_cents, month, year FROM budgets
		 WHERE user_id = ? AND month = ? AND year = ? ORDER BY category_id`, userID, p.Month, p.Year)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.UserID, &b.CategoryID, &b.Amount.Cents, &b.Month, &b.Year); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}
