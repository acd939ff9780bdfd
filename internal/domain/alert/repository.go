package alert

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence port for alerts
type Repository interface {
	// FindByID retrieves an alert by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Alert, error)

	// FindActiveByInvoiceAndKind returns the active (new or read) alert
	// for a dedup pair, or shared.ErrNotFound when none exists. At most
	// one active alert per pair is ever stored.
	FindActiveByInvoiceAndKind(ctx context.Context, invoiceID uuid.UUID, kind Kind) (*Alert, error)

	// ListActive returns active alerts ordered by priority rank
	// descending, then generation time descending
	ListActive(ctx context.Context, offset, limit int) ([]*Alert, error)

	// CountActiveByInvoice counts active alerts referencing an invoice
	CountActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)

	// CountActiveByPriority counts active alerts per priority
	CountActiveByPriority(ctx context.Context) (map[Priority]int64, error)

	// Save persists an alert (create or update)
	Save(ctx context.Context, a *Alert) error

	// Delete removes an alert by ID
	Delete(ctx context.Context, id uuid.UUID) error
}
