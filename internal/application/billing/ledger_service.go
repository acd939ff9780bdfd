package billing

import (
	"context"
	"errors"
	"time"

	"github.com/erp/billing/internal/domain/alert"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxSaveRetries bounds the optimistic-lock retry loop. Conflicts are
// rare in practice; anything that keeps conflicting after this many
// attempts surfaces as ErrConcurrencyConflict.
const maxSaveRetries = 3

// Policy holds the operator-configurable ledger behaviors
type Policy struct {
	// AllowReversalOnCancelled permits reversing payments that belong
	// to a cancelled invoice.
	AllowReversalOnCancelled bool

	// AllowCancelWithPayments permits cancelling an invoice that has
	// recorded payments.
	AllowCancelWithPayments bool
}

// LedgerService owns every mutation of invoice paid totals and status.
// No other code path writes those fields.
type LedgerService struct {
	invoiceRepo billing.InvoiceRepository
	paymentRepo billing.PaymentRepository
	alertRepo   alert.Repository
	txScope     TransactionScope
	clock       shared.Clock
	policy      Policy
	logger      *zap.Logger
}

// NewLedgerService creates a new LedgerService. A nil txScope falls back
// to running the invoice and payment writes without a shared transaction.
func NewLedgerService(
	invoiceRepo billing.InvoiceRepository,
	paymentRepo billing.PaymentRepository,
	alertRepo alert.Repository,
	txScope TransactionScope,
	clock shared.Clock,
	policy Policy,
	logger *zap.Logger,
) *LedgerService {
	if txScope == nil {
		txScope = NewNoOpTransactionScope(invoiceRepo, paymentRepo)
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		alertRepo:   alertRepo,
		txScope:     txScope,
		clock:       clock,
		policy:      policy,
		logger:      logger,
	}
}

// CreateInvoiceInput carries the caller-supplied invoice fields
type CreateInvoiceInput struct {
	InvoiceNumber string
	CustomerID    uuid.UUID
	SalespersonID *uuid.UUID
	DistributorID *uuid.UUID
	IssuedOn      time.Time
	DueOn         time.Time
	FaceValue     valueobject.Money
	Notes         string
}

// CreateInvoice registers a new invoice in pending status
func (s *LedgerService) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*billing.Invoice, error) {
	exists, err := s.invoiceRepo.ExistsByNumber(ctx, input.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewValidationError("DUPLICATE_INVOICE_NUMBER",
			"An invoice with this number already exists")
	}

	invoice, err := billing.NewInvoice(
		input.InvoiceNumber,
		input.CustomerID,
		input.SalespersonID,
		input.DistributorID,
		input.IssuedOn,
		input.DueOn,
		input.FaceValue,
	)
	if err != nil {
		return nil, err
	}
	invoice.Notes = input.Notes
	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("face_value", invoice.FaceValue.String()))
	return invoice, nil
}

// GetInvoice retrieves an invoice by ID
func (s *LedgerService) GetInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return s.invoiceRepo.FindByID(ctx, id)
}

// ApplyPaymentInput carries the caller-supplied payment fields
type ApplyPaymentInput struct {
	Amount        valueobject.Money
	Method        billing.PaymentMethod
	PaidOn        time.Time
	RecordedBy    uuid.UUID
	Reference     string
	VoucherNumber string
	Notes         string
}

// ApplyPayment records a payment against an invoice and recomputes its
// derived fields. The invoice's optimistic version serializes concurrent
// submissions: of two racing payments that would together overpay,
// exactly one succeeds and the other fails validation on retry.
func (s *LedgerService) ApplyPayment(ctx context.Context, invoiceID uuid.UUID, input ApplyPaymentInput) (*billing.Payment, error) {
	today := s.clock.Today()

	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
		if err != nil {
			return nil, err
		}

		if ok, reason := invoice.CanReceivePayment(input.Amount); !ok {
			return nil, shared.NewValidationError("PAYMENT_REJECTED", reason)
		}

		count, err := s.paymentRepo.CountByInvoice(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		payment, err := billing.NewPayment(invoice, int(count)+1, input.Amount, input.Method, input.PaidOn, input.RecordedBy, today)
		if err != nil {
			return nil, err
		}
		payment.UpdateVoucher(input.Reference, input.VoucherNumber, input.Notes)

		if err := invoice.ApplyPayment(input.Amount, today); err != nil {
			return nil, err
		}
		// The version-checked invoice update and the payment row commit
		// together or not at all.
		err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if err := repos.InvoiceRepo().SaveWithLock(ctx, invoice); err != nil {
				return err
			}
			return repos.PaymentRepo().Save(ctx, payment)
		})
		if err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				s.logger.Warn("payment apply conflicted, retrying",
					zap.String("invoice_number", invoice.InvoiceNumber),
					zap.Int("attempt", attempt+1))
				continue
			}
			return nil, err
		}

		s.logger.Info("payment applied",
			zap.String("payment_code", payment.Code),
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("amount", payment.Amount.String()),
			zap.String("status", string(invoice.Status)))
		return payment, nil
	}
	return nil, shared.ErrConcurrencyConflict
}

// ReversePayment removes a recorded payment and restores the invoice's
// derived fields. Reversal on a cancelled invoice is rejected unless the
// policy allows it.
func (s *LedgerService) ReversePayment(ctx context.Context, paymentID uuid.UUID) (*billing.Invoice, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()

	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		invoice, err := s.invoiceRepo.FindByID(ctx, payment.InvoiceID)
		if err != nil {
			return nil, err
		}
		if invoice.Status == billing.InvoiceStatusCancelled && !s.policy.AllowReversalOnCancelled {
			return nil, shared.NewValidationError("REVERSAL_ON_CANCELLED",
				"Payments on a cancelled invoice cannot be reversed")
		}

		if err := invoice.RemovePayment(payment.AmountMoney(), today); err != nil {
			return nil, err
		}
		err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if err := repos.InvoiceRepo().SaveWithLock(ctx, invoice); err != nil {
				return err
			}
			return repos.PaymentRepo().Delete(ctx, payment.ID)
		})
		if err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				continue
			}
			return nil, err
		}

		s.logger.Info("payment reversed",
			zap.String("payment_code", payment.Code),
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("status", string(invoice.Status)))
		return invoice, nil
	}
	return nil, shared.ErrConcurrencyConflict
}

// CanReceivePayment answers whether an invoice would accept a payment of
// the given amount right now. The returned reason is empty when it would.
func (s *LedgerService) CanReceivePayment(ctx context.Context, invoiceID uuid.UUID, amount valueobject.Money) (bool, string, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return false, "", err
	}
	ok, reason := invoice.CanReceivePayment(amount)
	return ok, reason, nil
}

// RecomputeStatus re-derives an invoice's status from its stored fields.
// The stored paid total is first verified against the payment rows; a
// mismatch is reported as a ConsistencyError, never silently repaired.
func (s *LedgerService) RecomputeStatus(ctx context.Context, invoiceID uuid.UUID) (*billing.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	paymentSum, err := s.paymentRepo.SumByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := invoice.VerifyPaidTotal(paymentSum); err != nil {
		s.logger.Error("stored paid total diverged from payment rows",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("stored", invoice.PaidTotal.String()),
			zap.String("payments", paymentSum.String()))
		return nil, err
	}

	_, changed := invoice.RecomputeStatus(s.clock.Today())
	if !changed {
		return invoice, nil
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
		return nil, err
	}
	s.logger.Info("invoice status recomputed",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("status", string(invoice.Status)))
	return invoice, nil
}

// CancelInvoice moves an invoice to cancelled. Cancelling with recorded
// payments is rejected unless the policy allows it.
func (s *LedgerService) CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) (*billing.Invoice, error) {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		if err := invoice.Cancel(reason, s.policy.AllowCancelWithPayments); err != nil {
			return nil, err
		}
		if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				continue
			}
			return nil, err
		}
		s.logger.Info("invoice cancelled",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("reason", reason))
		return invoice, nil
	}
	return nil, shared.ErrConcurrencyConflict
}

// ReopenInvoice moves a cancelled invoice back to a live status derived
// from its payments and due date. This is the only exit from cancelled.
func (s *LedgerService) ReopenInvoice(ctx context.Context, invoiceID uuid.UUID) (*billing.Invoice, error) {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		if err := invoice.Reopen(s.clock.Today()); err != nil {
			return nil, err
		}
		if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				continue
			}
			return nil, err
		}
		s.logger.Info("invoice reopened",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("status", string(invoice.Status)))
		return invoice, nil
	}
	return nil, shared.ErrConcurrencyConflict
}

// MarkOverdue sweeps pending and partial invoices whose due date has
// passed and moves them to overdue, in batches. Invoices that conflict
// with a concurrent writer are skipped; the next sweep picks them up.
func (s *LedgerService) MarkOverdue(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	today := s.clock.Today()
	total := 0

	for {
		candidates, err := s.invoiceRepo.FindOverdueCandidates(ctx, today, batchSize)
		if err != nil {
			return total, err
		}
		if len(candidates) == 0 {
			return total, nil
		}

		progressed := 0
		for i := range candidates {
			invoice := &candidates[i]
			if _, changed := invoice.RecomputeStatus(today); !changed {
				continue
			}
			if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
				if errors.Is(err, shared.ErrConcurrencyConflict) {
					s.logger.Warn("overdue sweep conflicted, skipping invoice",
						zap.String("invoice_number", invoice.InvoiceNumber))
					continue
				}
				return total, err
			}
			total++
			progressed++
		}

		if len(candidates) < batchSize {
			return total, nil
		}
		// Every candidate conflicted; bail out rather than spin on the
		// same batch.
		if progressed == 0 {
			return total, nil
		}
	}
}

// UpdatePaymentVoucher updates the mutable voucher metadata of a payment
func (s *LedgerService) UpdatePaymentVoucher(ctx context.Context, paymentID uuid.UUID, reference, voucherNumber, notes string) (*billing.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	payment.UpdateVoucher(reference, voucherNumber, notes)
	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// DeleteInvoice removes an invoice that nothing references. Recorded
// payments or active alerts block deletion.
func (s *LedgerService) DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	count, err := s.paymentRepo.CountByInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.NewValidationError("INVOICE_HAS_PAYMENTS",
			"Invoice with recorded payments cannot be deleted")
	}

	if s.alertRepo != nil {
		alerts, err := s.alertRepo.CountActiveByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if alerts > 0 {
			return shared.NewValidationError("INVOICE_HAS_ALERTS",
				"Invoice with active alerts cannot be deleted")
		}
	}

	return s.invoiceRepo.Delete(ctx, invoiceID)
}
