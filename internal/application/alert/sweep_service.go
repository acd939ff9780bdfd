package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/alert"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultBatchSize pages open invoices through the sweep
const defaultBatchSize = 200

// SweepError records one invoice the sweep could not evaluate
type SweepError struct {
	InvoiceID     uuid.UUID
	InvoiceNumber string
	Err           error
}

func (e SweepError) Error() string {
	return fmt.Sprintf("invoice %s: %v", e.InvoiceNumber, e.Err)
}

// SweepReport summarizes one sweep run. A sweep with Errors is a partial
// success: every other invoice was still evaluated.
type SweepReport struct {
	Evaluated int
	Created   int
	Refreshed int
	Errors    []SweepError
}

// SweepService walks open invoices, evaluates the rule engine against
// each, and upserts alerts with per-(invoice, kind) dedup. Sweeps are
// idempotent: re-running against unchanged state creates nothing new.
type SweepService struct {
	invoiceRepo billing.InvoiceRepository
	paymentRepo billing.PaymentRepository
	alertRepo   alert.Repository
	engine      *alert.Engine
	cfg         alert.Config
	clock       shared.Clock
	batchSize   int
	logger      *zap.Logger
}

// NewSweepService creates a new SweepService
func NewSweepService(
	invoiceRepo billing.InvoiceRepository,
	paymentRepo billing.PaymentRepository,
	alertRepo alert.Repository,
	engine *alert.Engine,
	cfg alert.Config,
	clock shared.Clock,
	logger *zap.Logger,
) (*SweepService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		engine = alert.NewEngine()
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		alertRepo:   alertRepo,
		engine:      engine,
		cfg:         cfg,
		clock:       clock,
		batchSize:   defaultBatchSize,
		logger:      logger,
	}, nil
}

// Sweep evaluates every open invoice once. Failures on individual
// invoices are collected into the report; only infrastructure failures
// that make further progress pointless abort the run.
func (s *SweepService) Sweep(ctx context.Context) (*SweepReport, error) {
	today := s.clock.Today()
	report := &SweepReport{}

	for offset := 0; ; offset += s.batchSize {
		invoices, err := s.invoiceRepo.FindOpen(ctx, offset, s.batchSize)
		if err != nil {
			return report, err
		}
		if len(invoices) == 0 {
			break
		}

		for _, invoice := range invoices {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := s.sweepInvoice(ctx, &invoice, today, report); err != nil {
				report.Errors = append(report.Errors, SweepError{
					InvoiceID:     invoice.ID,
					InvoiceNumber: invoice.InvoiceNumber,
					Err:           err,
				})
				s.logger.Warn("alert sweep failed for invoice",
					zap.String("invoice_number", invoice.InvoiceNumber),
					zap.Error(err))
			}
			report.Evaluated++
		}

		if len(invoices) < s.batchSize {
			break
		}
	}

	s.logger.Info("alert sweep finished",
		zap.Int("evaluated", report.Evaluated),
		zap.Int("created", report.Created),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (s *SweepService) sweepInvoice(ctx context.Context, invoice *billing.Invoice, today time.Time, report *SweepReport) error {
	lastPaidOn, err := s.paymentRepo.LastPaidOn(ctx, invoice.ID)
	if err != nil {
		return err
	}

	snap := alert.Snapshot{
		Invoice:    invoice,
		LastPaidOn: lastPaidOn,
		Today:      today,
	}
	drafts, err := s.engine.Evaluate(snap, s.cfg)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, draft := range drafts {
		existing, err := s.alertRepo.FindActiveByInvoiceAndKind(ctx, invoice.ID, draft.Kind)
		switch {
		case err == nil:
			existing.Refresh(draft, now)
			if err := s.alertRepo.Save(ctx, existing); err != nil {
				return err
			}
			report.Refreshed++
		case errors.Is(err, shared.ErrNotFound):
			created, err := alert.NewAlert(&invoice.ID, draft, now)
			if err != nil {
				return err
			}
			if err := s.alertRepo.Save(ctx, created); err != nil {
				return err
			}
			report.Created++
		default:
			return err
		}
	}
	return nil
}
