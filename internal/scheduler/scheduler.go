// Package scheduler runs the monthly report delivery pass on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
)

type Config struct {
	Day    int // day of month, 1-28
	Hour   int
	Minute int
	// Location interprets the schedule. Defaults to time.Local.
	Location *time.Location
	// UserTimeout bounds the work for a single user. Zero means no limit.
	UserTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Day: 1, Hour: 9, Minute: 0, Location: time.Local, UserTimeout: 2 * time.Minute}
}

func (c Config) Validate() error {
	if c.Day < 1 || c.Day > 28 {
		return fmt.Errorf("invalid day %d: must be between 1 and 28", c.Day)
	}
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("invalid hour %d: must be between 0 and 23", c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("invalid minute %d: must be between 0 and 59", c.Minute)
	}
	if c.UserTimeout < 0 {
		return fmt.Errorf("invalid user timeout %v", c.UserTimeout)
	}
	return nil
}

// Spec returns the five-field cron expression for the schedule.
func (c Config) Spec() string {
	return fmt.Sprintf("%d %d %d * *", c.Minute, c.Hour, c.Day)
}

// UserLister selects the users eligible for the monthly pass.
type UserLister interface {
	ListOptedInUsers(ctx context.Context) ([]core.User, error)
}

// Deliverer runs the pipeline for one user. *report.Service implements it.
type Deliverer interface {
	Deliver(ctx context.Context, u core.User, p core.Period) (report.DeliveryStatus, error)
}

// Summary counts the outcomes of one pass.
type Summary struct {
	Period  core.Period
	Users   int
	Sent    int
	Skipped int
	Failed  int
}

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

var ErrNotStarted = errors.New("scheduler not started")

// Scheduler owns the cron runner. Create it at startup, Start it once and
// Stop it on shutdown.
type Scheduler struct {
	cfg     Config
	users   UserLister
	svc     Deliverer
	logger  *log.Logger
	cron    *cron.Cron
	running atomic.Bool
	started atomic.Bool

	// base is cancelled when Stop gives up waiting for a pass.
	base   context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func New(cfg Config, users UserLister, svc Deliverer, logger *log.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	logger = logger.WithComponent(log.ComponentScheduler)

	s := &Scheduler{
		cfg:    cfg,
		users:  users,
		svc:    svc,
		logger: logger,
		now:    time.Now,
	}
	s.base, s.cancel = context.WithCancel(context.Background())

	cl := cronLogger{logger: logger}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(cfg.Spec(), s.scheduledRun); err != nil {
		return nil, fmt.Errorf("schedule monthly reports: %w", err)
	}
	return s, nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	if s.started.Swap(true) {
		return
	}
	s.cron.Start()
	s.logger.Info("Monthly report scheduler started",
		"schedule", s.cfg.Spec(),
		"location", s.cfg.Location.String(),
		"next_run", s.Next())
}

// Stop halts the runner and waits for a pass in progress. When ctx expires
// first, the pass is cancelled and ctx.Err() returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.logger.Info("Monthly report scheduler stopped", log.FieldOperation, log.OpShutdown)
		return nil
	case <-ctx.Done():
		s.cancel()
		s.logger.Warn("Monthly report pass cancelled at shutdown", log.FieldError, ctx.Err())
		return ctx.Err()
	}
}

// Next returns the next scheduled run, or the zero time when not started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Started reports whether Start has been called.
func (s *Scheduler) Started() bool {
	return s.started.Load()
}

func (s *Scheduler) State() State {
	if s.running.Load() {
		return StateRunning
	}
	return StateIdle
}

// scheduledRun takes the target month from the wall clock of the schedule
// location, not the host zone.
func (s *Scheduler) scheduledRun() {
	if _, err := s.RunOnce(s.base, s.now().In(s.cfg.Location)); err != nil {
		s.logger.Error("Monthly report pass failed", log.FieldError, err)
	}
}

// RunOnce delivers the reports for the month before now to every opted-in
// user. Per-user failures are logged and counted; only a failure to list
// users aborts the pass.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (Summary, error) {
	s.running.Store(true)
	defer s.running.Store(false)

	period := core.PreviousMonth(now)
	summary := Summary{Period: period}
	started := time.Now()

	users, err := s.users.ListOptedInUsers(ctx)
	if err != nil {
		return summary, fmt.Errorf("list opted-in users: %w", err)
	}
	summary.Users = len(users)
	s.logger.InfoContext(ctx, "Monthly report pass started",
		log.FieldPeriod, period.String(),
		"users", len(users))

	for _, u := range users {
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "Monthly report pass interrupted",
				log.FieldPeriod, period.String(),
				log.FieldError, ctx.Err())
			summary.Failed += summary.Users - (summary.Sent + summary.Skipped + summary.Failed)
			break
		}

		status, err := s.deliver(ctx, u, period)
		switch status {
		case report.StatusSent:
			summary.Sent++
			s.logger.InfoContext(ctx, "Monthly report sent",
				log.FieldUserID, u.ID,
				log.FieldPeriod, period.String())
		case report.StatusSkipped:
			summary.Skipped++
			s.logger.InfoContext(ctx, "No transactions, skipping monthly report",
				log.FieldUserID, u.ID,
				log.FieldPeriod, period.String())
		default:
			summary.Failed++
			s.logger.ErrorContext(ctx, "Monthly report failed",
				log.FieldUserID, u.ID,
				log.FieldPeriod, period.String(),
				log.FieldErrorType, faultType(err),
				log.FieldError, err)
		}
	}

	s.logger.InfoContext(ctx, "Monthly report pass completed",
		log.FieldPeriod, period.String(),
		"users", summary.Users,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		log.FieldDuration, time.Since(started).Milliseconds())
	return summary, nil
}

// deliver isolates one user: a timeout, error or panic affects that user only.
func (s *Scheduler) deliver(ctx context.Context, u core.User, p core.Period) (status report.DeliveryStatus, err error) {
	if s.cfg.UserTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UserTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			status, err = report.StatusFailed, fmt.Errorf("panic: %v", r)
		}
	}()

	status, err = s.svc.Deliver(ctx, u, p)
	if err != nil {
		status = report.StatusFailed
	}
	return status, err
}

func faultType(err error) string {
	var (
		da *report.DataAccessFault
		rf *report.RenderFault
		df *report.DeliveryFault
	)
	switch {
	case errors.As(err, &da):
		return log.ErrorTypeDatabase
	case errors.As(err, &rf):
		return log.ErrorTypeRender
	case errors.As(err, &df):
		return log.ErrorTypeDelivery
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	}
	return log.ErrorTypeInternal
}

// cronLogger adapts the component logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, log.FieldError, err)...)
}
