package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceRepository is the persistence contract for invoices
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its unique invoice number
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// ExistsByNumber checks whether an invoice number is already taken
	ExistsByNumber(ctx context.Context, invoiceNumber string) (bool, error)

	// FindOpen returns a page of invoices carrying an outstanding balance,
	// ordered by creation time so sweeps can walk the set in stable batches
	FindOpen(ctx context.Context, offset, limit int) ([]Invoice, error)

	// CountOpen counts invoices carrying an outstanding balance
	CountOpen(ctx context.Context) (int64, error)

	// FindOverdueCandidates returns pending/partial invoices whose due date
	// has passed as of the given date
	FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error)

	// CountOverdue counts invoices past due with an open balance as of the date
	CountOverdue(ctx context.Context, asOf time.Time) (int64, error)

	// CountCustomersInArrears counts distinct customers owning at least one
	// overdue invoice as of the date
	CountCustomersInArrears(ctx context.Context, asOf time.Time) (int64, error)

	// SumOutstanding sums the open balance across all open invoices
	SumOutstanding(ctx context.Context) (decimal.Decimal, error)

	// SumFaceValueOpen sums the face value across all open invoices
	SumFaceValueOpen(ctx context.Context) (decimal.Decimal, error)

	// CountAll counts every invoice regardless of status
	CountAll(ctx context.Context) (int64, error)

	// AverageCollectionDays averages issue-to-settlement days across
	// paid invoices; zero when nothing has been paid off yet
	AverageCollectionDays(ctx context.Context) (float64, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates an invoice guarded by its optimistic version;
	// returns shared.ErrConcurrencyConflict when another writer won
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// Delete removes an invoice. Callers must reject deletion while
	// payments or active alerts reference it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentRepository is the persistence contract for payments
type PaymentRepository interface {
	// FindByID finds a payment by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByInvoice returns all payments applied to an invoice in
	// chronological order
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)

	// CountByInvoice counts payments currently recorded against an invoice;
	// the next payment code is derived from it
	CountByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)

	// SumByInvoice sums the applied payment amounts for an invoice
	SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)

	// LastPaidOn returns the most recent payment date for an invoice,
	// or nil when no payment exists
	LastPaidOn(ctx context.Context, invoiceID uuid.UUID) (*time.Time, error)

	// Save creates or updates a payment
	Save(ctx context.Context, payment *Payment) error

	// Delete removes a payment row as part of a reversal
	Delete(ctx context.Context, id uuid.UUID) error
}
