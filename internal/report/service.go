package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/mail"
	"fintrack/internal/storage"
)

// MaxListedPeriods caps the list of periods offered to a user.
const MaxListedPeriods = 12

// eventTimeout bounds publishing one delivery event.
const eventTimeout = 5 * time.Second

// DocumentRenderer builds the report document. *Renderer is the production implementation.
type DocumentRenderer interface {
	Render(data core.MonthlyReportData, insights []Insight, username string, generatedAt time.Time) ([]byte, error)
}

type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "sent"
	StatusSkipped DeliveryStatus = "skipped"
	StatusFailed  DeliveryStatus = "failed"
)

// DeliveryEvent describes the outcome of one report delivery attempt.
type DeliveryEvent struct {
	UserID int64
	Period core.Period
	Status DeliveryStatus
	Error  string
}

// EventPublisher receives delivery outcomes. Publishing is best effort.
type EventPublisher interface {
	PublishDelivery(ctx context.Context, ev DeliveryEvent) error
}

// Document is a rendered report ready to stream or attach.
type Document struct {
	Filename string
	Data     []byte
}

// Service runs the report pipeline for the HTTP endpoints and the scheduler.
type Service struct {
	store    Store
	agg      *Aggregator
	renderer DocumentRenderer
	sender   mail.Sender
	events   EventPublisher
	currency string
	now      func() time.Time
}

type Option func(*Service)

// WithEvents publishes a DeliveryEvent after every delivery attempt.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithCurrencySymbol sets the symbol used in email bodies.
func WithCurrencySymbol(symbol string) Option {
	return func(s *Service) { s.currency = symbol }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, renderer DocumentRenderer, sender mail.Sender, opts ...Option) *Service {
	s := &Service{
		store:    store,
		agg:      NewAggregator(store),
		renderer: renderer,
		sender:   sender,
		currency: DefaultRendererOptions().CurrencySymbol,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// User looks up a user, mapping a missing row to ErrUserNotFound.
func (s *Service) User(ctx context.Context, userID int64) (core.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, ErrUserNotFound
	}
	if err != nil {
		return core.User{}, dataFault("get user", err)
	}
	return u, nil
}

// Report returns the aggregated month for the user.
func (s *Service) Report(ctx context.Context, userID int64, p core.Period) (core.MonthlyReportData, error) {
	if err := p.Validate(); err != nil {
		return core.MonthlyReportData{}, err
	}
	if _, err := s.User(ctx, userID); err != nil {
		return core.MonthlyReportData{}, err
	}
	return s.agg.MonthlyReport(ctx, userID, p)
}

// Periods lists the most recent months with transactions, newest first.
func (s *Service) Periods(ctx context.Context, userID int64) ([]core.PeriodCount, error) {
	if _, err := s.User(ctx, userID); err != nil {
		return nil, err
	}
	periods, err := s.store.ListReportPeriods(ctx, userID, MaxListedPeriods)
	if err != nil {
		return nil, dataFault("list periods", err)
	}
	return periods, nil
}

// PDF renders the user's month as a downloadable document.
func (s *Service) PDF(ctx context.Context, userID int64, p core.Period) (Document, error) {
	if err := p.Validate(); err != nil {
		return Document{}, err
	}
	u, err := s.User(ctx, userID)
	if err != nil {
		return Document{}, err
	}
	data, err := s.agg.MonthlyReport(ctx, userID, p)
	if err != nil {
		return Document{}, err
	}
	return s.render(ctx, u, p, data)
}

// Send emails the user's report for p regardless of how many transactions it has.
func (s *Service) Send(ctx context.Context, userID int64, p core.Period) error {
	if err := p.Validate(); err != nil {
		return err
	}
	u, err := s.User(ctx, userID)
	if err != nil {
		return err
	}
	data, err := s.agg.MonthlyReport(ctx, userID, p)
	if err != nil {
		return err
	}
	err = s.dispatch(ctx, u, p, data)
	s.publish(ctx, u.ID, p, err)
	return err
}

// Deliver runs the scheduled pipeline for one user: months without
// transactions are skipped, others are rendered and emailed.
func (s *Service) Deliver(ctx context.Context, u core.User, p core.Period) (DeliveryStatus, error) {
	data, err := s.agg.MonthlyReport(ctx, u.ID, p)
	if err != nil {
		s.publish(ctx, u.ID, p, err)
		return StatusFailed, err
	}
	if data.TransactionCount == 0 {
		s.emit(ctx, DeliveryEvent{UserID: u.ID, Period: p, Status: StatusSkipped})
		return StatusSkipped, nil
	}
	err = s.dispatch(ctx, u, p, data)
	s.publish(ctx, u.ID, p, err)
	if err != nil {
		return StatusFailed, err
	}
	return StatusSent, nil
}

func (s *Service) dispatch(ctx context.Context, u core.User, p core.Period, data core.MonthlyReportData) error {
	doc, err := s.render(ctx, u, p, data)
	if err != nil {
		return err
	}
	email, err := ComposeEmail(u.Username, data, s.currency)
	if err != nil {
		return &RenderFault{Err: err}
	}

	msg := mail.Message{
		To:      u.Email,
		Subject: email.Subject,
		HTML:    email.HTML,
		Attachment: &mail.Attachment{
			Filename:    doc.Filename,
			ContentType: "application/pdf",
			Data:        doc.Data,
		},
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return &DeliveryFault{Recipient: u.Email, Err: err}
	}
	return nil
}

func (s *Service) render(ctx context.Context, u core.User, p core.Period, data core.MonthlyReportData) (Document, error) {
	insights, err := s.insights(ctx, u.ID, p, data)
	if err != nil {
		return Document{}, err
	}
	pdf, err := s.renderer.Render(data, insights, u.Username, s.now())
	if err != nil {
		var rf *RenderFault
		if !errors.As(err, &rf) {
			err = &RenderFault{Err: err}
		}
		return Document{}, err
	}
	return Document{Filename: AttachmentName(p.Label()), Data: pdf}, nil
}

// insights compares the month with the one before it.
func (s *Service) insights(ctx context.Context, userID int64, p core.Period, current core.MonthlyReportData) ([]Insight, error) {
	prev, err := s.agg.MonthlyReport(ctx, userID, p.Previous())
	if err != nil {
		return nil, fmt.Errorf("previous month: %w", err)
	}
	return GenerateInsights(current, &prev), nil
}

func (s *Service) publish(ctx context.Context, userID int64, p core.Period, err error) {
	ev := DeliveryEvent{UserID: userID, Period: p, Status: StatusSent}
	if err != nil {
		ev.Status = StatusFailed
		ev.Error = err.Error()
	}
	s.emit(ctx, ev)
}

func (s *Service) emit(ctx context.Context, ev DeliveryEvent) {
	if s.events == nil {
		return
	}
	// The outcome is reported even when the delivery timed out or was cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()
	if err := s.events.PublishDelivery(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish delivery event",
			"user_id", ev.UserID,
			"period", ev.Period.String(),
			"status", ev.Status,
			"error", err)
	}
}
