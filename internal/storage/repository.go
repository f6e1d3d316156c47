package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fintrack/internal/core"
	"fintrack/internal/log"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDefaultCategory = errors.New("default categories cannot be deleted")
	ErrCategoryType    = errors.New("category type does not match transaction type")
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser inserts the user together with the default accounts and categories.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	if err := u.Validate(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, email_notifications) VALUES (?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.EmailNotifications)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user id: %w", err)
	}

	for _, a := range core.DefaultAccounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (user_id, name, account_type, balance_cents) VALUES (?, ?, ?, 0)`,
			id, a.Name, string(a.Type)); err != nil {
			return 0, fmt.Errorf("insert default account %s: %w", a.Name, err)
		}
	}

	seed := []struct {
		names []string
		typ   core.TransactionType
	}{
		{core.DefaultIncomeCategories, core.Income},
		{core.DefaultExpenseCategories, core.Expense},
	}
	for _, group := range seed {
		for _, name := range group.names {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (user_id, name, type, is_default) VALUES (?, ?, ?, 1)`,
				id, name, string(group.typ)); err != nil {
				return 0, fmt.Errorf("insert default category %s: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "User created",
		log.FieldComponent, log.ComponentStorage,
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, id,
		"username", u.Username)
	return id, nil
}

// GetUser returns ErrNotFound when no user has the id.
func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, email_notifications FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.EmailNotifications)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// ListOptedInUsers returns every user with email notifications enabled, by id.
func (r *SQLiteRepository) ListOptedInUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, email, password_hash, email_notifications
		 FROM users WHERE email_notifications = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list opted-in users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.EmailNotifications); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SetEmailNotifications updates the monthly report opt-in flag.
func (r *SQLiteRepository) SetEmailNotifications(ctx context.Context, userID int64, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_notifications = ? WHERE id = ?`, enabled, userID)
	if err != nil {
		return fmt.Errorf("update email notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}

	slog.InfoContext(ctx, "Email notifications updated",
		log.FieldComponent, log.ComponentStorage,
		log.FieldOperation, log.OpUpdate,
		log.FieldUserID, userID,
		"enabled", enabled)
	return nil
}
