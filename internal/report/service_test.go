package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/mail"
	"fintrack/internal/storage/memory"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []DeliveryEvent
	err    error
}

func (r *recordedEvents) PublishDelivery(_ context.Context, ev DeliveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

// ctxEvents fails like a broker client when handed a finished context.
type ctxEvents struct {
	recordedEvents
	ctxErrs []error
}

func (c *ctxEvents) PublishDelivery(ctx context.Context, ev DeliveryEvent) error {
	c.mu.Lock()
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.recordedEvents.PublishDelivery(ctx, ev)
}

// blockingSender waits for the context like a hung SMTP server.
type blockingSender struct{}

func (blockingSender) Send(ctx context.Context, _ mail.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

type failingRenderer struct{ err error }

func (f failingRenderer) Render(core.MonthlyReportData, []Insight, string, time.Time) ([]byte, error) {
	return nil, f.err
}

func newTestService(t *testing.T, store Store, opts ...Option) (*Service, *mail.Recorder) {
	t.Helper()
	rec := mail.NewRecorder()
	opts = append([]Option{WithClock(func() time.Time { return generatedAt })}, opts...)
	return NewService(store, plainRenderer(), rec, opts...), rec
}

func TestServiceSend(t *testing.T) {
	store, id := decemberStore(t)
	events := &recordedEvents{}
	svc, rec := newTestService(t, store, WithEvents(events), WithCurrencySymbol("₹"))

	require.NoError(t, svc.Send(context.Background(), id, december))

	sent := rec.Sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Monthly Financial Report - December 2024", msg.Subject)
	assert.Contains(t, msg.HTML, "Food: ₹1,800.00 (60.0%)")
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "Monthly_Report_December_2024.pdf", msg.Attachment.Filename)
	assert.Equal(t, "application/pdf", msg.Attachment.ContentType)
	assert.True(t, len(msg.Attachment.Data) > 0)

	require.Len(t, events.events, 1)
	assert.Equal(t, StatusSent, events.events[0].Status)
	assert.Equal(t, december, events.events[0].Period)
}

func TestServiceSend_EmptyMonthStillSends(t *testing.T) {
	store := memory.New()
	id := store.AddUser(core.User{Username: "bob", Email: "bob@example.com"})
	svc, rec := newTestService(t, store)

	require.NoError(t, svc.Send(context.Background(), id, december))
	assert.Len(t, rec.Sent(), 1)
}

func TestServiceSend_DeliveryFault(t *testing.T) {
	store, id := decemberStore(t)
	events := &recordedEvents{err: errors.New("broker down")}
	svc, rec := newTestService(t, store, WithEvents(events))
	rec.FailFor["alice@example.com"] = errors.New("550 mailbox unavailable")

	err := svc.Send(context.Background(), id, december)
	var fault *DeliveryFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "alice@example.com", fault.Recipient)

	require.Len(t, events.events, 1)
	assert.Equal(t, StatusFailed, events.events[0].Status)
	assert.NotEmpty(t, events.events[0].Error)
}

func TestServiceErrors(t *testing.T) {
	store, id := decemberStore(t)
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Report(ctx, id+10, december)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Report(ctx, id, core.Period{Year: 2024, Month: 13})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)

	_, err = svc.PDF(ctx, id+10, december)
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, svc.Send(ctx, id, core.Period{Year: 2024, Month: 0}), core.ErrInvalidPeriod)

	store.FailWith(errors.New("disk I/O error"))
	_, err = svc.Report(ctx, id, december)
	var fault *DataAccessFault
	assert.ErrorAs(t, err, &fault)
}

func TestServicePDF(t *testing.T) {
	store, id := decemberStore(t)
	svc, _ := newTestService(t, store)

	doc, err := svc.PDF(context.Background(), id, december)
	require.NoError(t, err)
	assert.Equal(t, "Monthly_Report_December_2024.pdf", doc.Filename)
	assert.Contains(t, pdfStrings(t, doc.Data), "Report for: alice")

	bad := NewService(store, failingRenderer{err: errors.New("font missing")}, mail.NewRecorder())
	_, err = bad.PDF(context.Background(), id, december)
	var fault *RenderFault
	assert.ErrorAs(t, err, &fault)
}

func TestServiceDeliver(t *testing.T) {
	store, id := decemberStore(t)
	empty := store.AddUser(core.User{Username: "bob", Email: "bob@example.com", EmailNotifications: true})
	events := &recordedEvents{}
	svc, rec := newTestService(t, store, WithEvents(events))
	ctx := context.Background()

	alice, err := svc.User(ctx, id)
	require.NoError(t, err)
	status, err := svc.Deliver(ctx, alice, december)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, status)

	bob, err := svc.User(ctx, empty)
	require.NoError(t, err)
	status, err = svc.Deliver(ctx, bob, december)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, status)

	assert.Len(t, rec.Attempts(), 1)
	require.Len(t, events.events, 2)
	assert.Equal(t, StatusSkipped, events.events[1].Status)
}

func TestServicePeriods(t *testing.T) {
	store := memory.New()
	id := store.AddUser(core.User{Username: "alice", Email: "alice@example.com"})
	p := core.Period{Year: 2023, Month: 1}
	for i := 0; i < 15; i++ {
		store.Add(id, core.Expense, "Food", 100, p)
		p = core.Period{Year: p.Year + p.Month/12, Month: p.Month%12 + 1}
	}
	svc, _ := newTestService(t, store)

	periods, err := svc.Periods(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, periods, MaxListedPeriods)
	assert.Equal(t, core.Period{Year: 2024, Month: 3}, periods[0].Period)
	assert.Equal(t, core.Period{Year: 2023, Month: 4}, periods[MaxListedPeriods-1].Period)
}

func TestServiceDeliver_TimeoutStillPublishesFailure(t *testing.T) {
	store, id := decemberStore(t)
	events := &ctxEvents{}
	svc := NewService(store, plainRenderer(), blockingSender{}, WithEvents(events))

	alice, err := svc.User(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	status, err := svc.Deliver(ctx, alice, december)
	assert.Equal(t, StatusFailed, status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, []error{nil}, events.ctxErrs, "publisher must get a live context")
	require.Len(t, events.events, 1)
	assert.Equal(t, StatusFailed, events.events[0].Status)
	assert.Contains(t, events.events[0].Error, "deadline exceeded")
}
