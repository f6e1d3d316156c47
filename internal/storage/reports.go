package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

// Report read shapes. Every query is restricted to one user and one calendar
// month through a half-open [start, end) range on transaction_date.

// SumByType returns the total amount of the user's transactions of one type in the period.
func (r *SQLiteRepository) SumByType(ctx context.Context, userID int64, typ core.TransactionType, p core.Period) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND type = ? AND transaction_date >= ? AND transaction_date < ?`,
		userID, string(typ), p.Start().Format(dateLayout), p.End().Format(dateLayout)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum %s for %s: %w", typ, p, err)
	}
	return core.Money{Cents: cents}, nil
}

// CategorySums returns per-category totals for one type, largest first.
func (r *SQLiteRepository) CategorySums(ctx context.Context, userID int64, typ core.TransactionType, p core.Period) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, SUM(t.amount_cents) AS total
		 FROM transactions t
		 JOIN categories c ON t.category_id = c.id
		 WHERE t.user_id = ? AND t.type = ? AND t.transaction_date >= ? AND t.transaction_date < ?
		 GROUP BY c.id, c.name
		 ORDER BY total DESC, c.id`,
		userID, string(typ), p.Start().Format(dateLayout), p.End().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("category sums %s for %s: %w", typ, p, err)
	}
	defer rows.Close()

	sums := []core.CategoryTotal{}
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Name, &ct.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		sums = append(sums, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category sums: %w", err)
	}
	return sums, nil
}

// CountTransactions counts every transaction of the user in the period, transfers included.
func (r *SQLiteRepository) CountTransactions(ctx context.Context, userID int64, p core.Period) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions
		 WHERE user_id = ? AND transaction_date >= ? AND transaction_date < ?`,
		userID, p.Start().Format(dateLayout), p.End().Format(dateLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions for %s: %w", p, err)
	}
	return n, nil
}

// ListReportPeriods returns the most recent months that have transactions, newest first.
func (r *SQLiteRepository) ListReportPeriods(ctx context.Context, userID int64, limit int) ([]core.PeriodCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(strftime('%Y', transaction_date) AS INTEGER) AS y,
		        CAST(strftime('%m', transaction_date) AS INTEGER) AS m,
		        COUNT(*)
		 FROM transactions
		 WHERE user_id = ?
		 GROUP BY y, m
		 ORDER BY y DESC, m DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list report periods: %w", err)
	}
	defer rows.Close()

	periods := []core.PeriodCount{}
	for rows.Next() {
		var pc core.PeriodCount
		if err := rows.Scan(&pc.Year, &pc.Month, &pc.TransactionCount); err != nil {
			return nil, fmt.Errorf("scan report period: %w", err)
		}
		periods = append(periods, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report periods: %w", err)
	}
	return periods, nil
}
