package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/billing/internal/domain/alert"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/shared/valueobject"
)

// stubInvoiceRepo serves a fixed set of open invoices. The embedded
// interface covers the methods the sweep never calls.
type stubInvoiceRepo struct {
	billing.InvoiceRepository
	open    []billing.Invoice
	findErr error
}

func (r *stubInvoiceRepo) FindOpen(_ context.Context, offset, limit int) ([]billing.Invoice, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if offset >= len(r.open) {
		return nil, nil
	}
	end := offset + limit
	if end > len(r.open) {
		end = len(r.open)
	}
	return r.open[offset:end], nil
}

type stubPaymentRepo struct {
	billing.PaymentRepository
	lastPaid map[uuid.UUID]*time.Time
	errFor   map[uuid.UUID]error
}

func (r *stubPaymentRepo) LastPaidOn(_ context.Context, invoiceID uuid.UUID) (*time.Time, error) {
	if err := r.errFor[invoiceID]; err != nil {
		return nil, err
	}
	return r.lastPaid[invoiceID], nil
}

type memAlertRepo struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*alert.Alert
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: make(map[uuid.UUID]*alert.Alert)}
}

func (r *memAlertRepo) FindByID(_ context.Context, id uuid.UUID) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.alerts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (r *memAlertRepo) FindActiveByInvoiceAndKind(_ context.Context, invoiceID uuid.UUID, kind alert.Kind) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.InvoiceID != nil && *a.InvoiceID == invoiceID && a.Kind == kind && a.Status.IsActive() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memAlertRepo) ListActive(_ context.Context, offset, limit int) ([]*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*alert.Alert
	for _, a := range r.alerts {
		if a.Status.IsActive() {
			cp := *a
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (r *memAlertRepo) CountActiveByInvoice(_ context.Context, invoiceID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.alerts {
		if a.InvoiceID != nil && *a.InvoiceID == invoiceID && a.Status.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *memAlertRepo) CountActiveByPriority(_ context.Context) (map[alert.Priority]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[alert.Priority]int64)
	for _, a := range r.alerts {
		if a.Status.IsActive() {
			counts[a.Priority]++
		}
	}
	return counts, nil
}

func (r *memAlertRepo) Save(_ context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *memAlertRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.alerts, id)
	return nil
}

func (r *memAlertRepo) activeFor(invoiceID uuid.UUID) []*alert.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*alert.Alert
	for _, a := range r.alerts {
		if a.InvoiceID != nil && *a.InvoiceID == invoiceID && a.Status.IsActive() {
			out = append(out, a)
		}
	}
	return out
}

func newOpenInvoice(t *testing.T, number string, issuedOn, dueOn time.Time, faceValue string) billing.Invoice {
	t.Helper()
	face, err := valueobject.NewMoneyCOPFromString(faceValue)
	require.NoError(t, err)
	invoice, err := billing.NewInvoice(number, uuid.New(), nil, nil, issuedOn, dueOn, face)
	require.NoError(t, err)
	return *invoice
}

type sweepFixture struct {
	service     *SweepService
	invoiceRepo *stubInvoiceRepo
	paymentRepo *stubPaymentRepo
	alertRepo   *memAlertRepo
	clock       shared.FixedClock
}

func newSweepFixture(t *testing.T, today time.Time, invoices ...billing.Invoice) *sweepFixture {
	t.Helper()
	invoiceRepo := &stubInvoiceRepo{open: invoices}
	paymentRepo := &stubPaymentRepo{lastPaid: map[uuid.UUID]*time.Time{}, errFor: map[uuid.UUID]error{}}
	alertRepo := newMemAlertRepo()
	clock := shared.FixedClock{Time: today}

	service, err := NewSweepService(invoiceRepo, paymentRepo, alertRepo, alert.NewEngine(), alert.DefaultConfig(), clock, nil)
	require.NoError(t, err)
	return &sweepFixture{
		service:     service,
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		alertRepo:   alertRepo,
		clock:       clock,
	}
}

func TestNewSweepService(t *testing.T) {
	t.Run("invalid config rejected at construction", func(t *testing.T) {
		cfg := alert.DefaultConfig()
		cfg.StaleAfterDays = 0

		_, err := NewSweepService(&stubInvoiceRepo{}, &stubPaymentRepo{}, newMemAlertRepo(), nil, cfg, nil, nil)
		require.Error(t, err)
		var configErr *shared.ConfigurationError
		assert.True(t, errors.As(err, &configErr))
	})
}

func TestSweepService_Sweep(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("creates alerts for overdue invoices", func(t *testing.T) {
		due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		today := due.AddDate(0, 0, 5)
		invoice := newOpenInvoice(t, "INV-001", issued, due, "1000.00")
		invoice.RecomputeStatus(today)

		f := newSweepFixture(t, today, invoice)
		report, err := f.service.Sweep(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Evaluated)
		assert.Equal(t, 1, report.Created)
		assert.Empty(t, report.Errors)

		active := f.alertRepo.activeFor(invoice.ID)
		require.Len(t, active, 1)
		assert.Equal(t, alert.KindOverdue, active[0].Kind)
		assert.Equal(t, alert.PriorityMedium, active[0].Priority)
	})

	t.Run("second sweep refreshes instead of duplicating", func(t *testing.T) {
		due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		today := due.AddDate(0, 0, 5)
		invoice := newOpenInvoice(t, "INV-001", issued, due, "1000.00")
		invoice.RecomputeStatus(today)

		f := newSweepFixture(t, today, invoice)
		_, err := f.service.Sweep(ctx)
		require.NoError(t, err)

		report, err := f.service.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Created)
		assert.Equal(t, 1, report.Refreshed)
		assert.Len(t, f.alertRepo.activeFor(invoice.ID), 1)
	})

	t.Run("refresh escalates priority as the invoice ages", func(t *testing.T) {
		due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		firstRun := due.AddDate(0, 0, 5)
		invoice := newOpenInvoice(t, "INV-001", issued, due, "1000.00")
		invoice.RecomputeStatus(firstRun)

		f := newSweepFixture(t, firstRun, invoice)
		_, err := f.service.Sweep(ctx)
		require.NoError(t, err)

		// Forty days overdue on the next run.
		laterFixture := newSweepFixture(t, due.AddDate(0, 0, 40), invoice)
		laterFixture.alertRepo.alerts = f.alertRepo.alerts
		report, err := laterFixture.service.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Refreshed)

		active := laterFixture.alertRepo.activeFor(invoice.ID)
		require.Len(t, active, 1)
		assert.Equal(t, alert.PriorityCritical, active[0].Priority)
	})

	t.Run("dismissed alert is regenerated", func(t *testing.T) {
		due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		today := due.AddDate(0, 0, 5)
		invoice := newOpenInvoice(t, "INV-001", issued, due, "1000.00")
		invoice.RecomputeStatus(today)

		f := newSweepFixture(t, today, invoice)
		_, err := f.service.Sweep(ctx)
		require.NoError(t, err)

		for _, a := range f.alertRepo.activeFor(invoice.ID) {
			a.Dismiss()
		}

		report, err := f.service.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Created)
		assert.Len(t, f.alertRepo.activeFor(invoice.ID), 1)
	})

	t.Run("one failing invoice does not stop the sweep", func(t *testing.T) {
		due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		today := due.AddDate(0, 0, 5)
		failing := newOpenInvoice(t, "INV-001", issued, due, "1000.00")
		failing.RecomputeStatus(today)
		healthy := newOpenInvoice(t, "INV-002", issued, due, "1000.00")
		healthy.RecomputeStatus(today)

		f := newSweepFixture(t, today, failing, healthy)
		f.paymentRepo.errFor[failing.ID] = errors.New("connection reset")

		report, err := f.service.Sweep(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, report.Evaluated)
		assert.Equal(t, 1, report.Created)
		require.Len(t, report.Errors, 1)
		assert.Equal(t, "INV-001", report.Errors[0].InvoiceNumber)
		assert.Empty(t, f.alertRepo.activeFor(failing.ID))
		assert.Len(t, f.alertRepo.activeFor(healthy.ID), 1)
	})

	t.Run("repository failure aborts the run", func(t *testing.T) {
		f := newSweepFixture(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
		f.invoiceRepo.findErr = errors.New("database unavailable")

		_, err := f.service.Sweep(ctx)
		assert.Error(t, err)
	})

	t.Run("cancelled context stops between invoices", func(t *testing.T) {
		due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		today := due.AddDate(0, 0, 5)
		invoice := newOpenInvoice(t, "INV-001", issued, due, "1000.00")

		f := newSweepFixture(t, today, invoice)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.service.Sweep(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("quiet invoice produces nothing", func(t *testing.T) {
		// Issued yesterday, due in three weeks, modest value.
		issuedRecently := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
		due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		invoice := newOpenInvoice(t, "INV-001", issuedRecently, due, "1000.00")

		f := newSweepFixture(t, today, invoice)
		report, err := f.service.Sweep(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Evaluated)
		assert.Equal(t, 0, report.Created)
		assert.Empty(t, f.alertRepo.activeFor(invoice.ID))
	})
}
