// Package memory is an in-process implementation of the report read shapes,
// used by tests and local runs without a database file.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type entry struct {
	userID   int64
	typ      core.TransactionType
	category string
	amount   core.Money
	period   core.Period
}

type Store struct {
	mu      sync.Mutex
	users   []core.User
	entries []entry
	err     error
}

func New() *Store {
	return &Store{}
}

// AddUser stores the user and returns its id.
func (s *Store) AddUser(u core.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = int64(len(s.users) + 1)
	s.users = append(s.users, u)
	return u.ID
}

// Add records a transaction. category is ignored for transfers.
func (s *Store) Add(userID int64, typ core.TransactionType, category string, cents int64, p core.Period) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if typ == core.Transfer {
		category = ""
	}
	s.entries = append(s.entries, entry{userID: userID, typ: typ, category: category, amount: core.Money{Cents: cents}, period: p})
}

// FailWith makes every subsequent read return err. nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) SumByType(_ context.Context, userID int64, typ core.TransactionType, p core.Period) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return core.Money{}, s.err
	}
	var total core.Money
	for _, e := range s.entries {
		if e.userID == userID && e.typ == typ && e.period == p {
			total = total.Add(e.amount)
		}
	}
	return total, nil
}

// CategorySums returns totals in first-seen order. Callers sort.
func (s *Store) CategorySums(_ context.Context, userID int64, typ core.TransactionType, p core.Period) ([]core.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	sums := []core.CategoryTotal{}
	index := map[string]int{}
	for _, e := range s.entries {
		if e.userID != userID || e.typ != typ || e.period != p || e.category == "" {
			continue
		}
		i, ok := index[e.category]
		if !ok {
			i = len(sums)
			index[e.category] = i
			sums = append(sums, core.CategoryTotal{Name: e.category})
		}
		sums[i].Amount = sums[i].Amount.Add(e.amount)
	}
	return sums, nil
}

func (s *Store) CountTransactions(_ context.Context, userID int64, p core.Period) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, e := range s.entries {
		if e.userID == userID && e.period == p {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return core.User{}, s.err
	}
	if id < 1 || id > int64(len(s.users)) {
		return core.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return s.users[id-1], nil
}

func (s *Store) ListOptedInUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []core.User
	for _, u := range s.users {
		if u.EmailNotifications {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) SetEmailNotifications(_ context.Context, userID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if userID < 1 || userID > int64(len(s.users)) {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	s.users[userID-1].EmailNotifications = enabled
	return nil
}

func (s *Store) ListReportPeriods(_ context.Context, userID int64, limit int) ([]core.PeriodCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	counts := map[core.Period]int{}
	for _, e := range s.entries {
		if e.userID == userID {
			counts[e.period]++
		}
	}
	out := make([]core.PeriodCount, 0, len(counts))
	for p, n := range counts {
		out = append(out, core.PeriodCount{Period: p, TransactionCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
