package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func openStatuses() []string {
	statuses := billing.OpenStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its invoice number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "invoice_number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByNumber checks whether an invoice number is already taken
func (r *GormInvoiceRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("invoice_number = ?", number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindOpen returns a stable page of open invoices
func (r *GormInvoiceRepository) FindOpen(ctx context.Context, offset, limit int) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", openStatuses()).
		Order("invoice_number ASC").
		Offset(offset).
		Limit(limit).
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}

	invoices := make([]billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// CountOpen counts open invoices
func (r *GormInvoiceRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("status IN ?", openStatuses()).
		Count(&count).Error
	return count, err
}

// FindOverdueCandidates returns pending and partial invoices whose due
// date has passed, i.e. invoices the overdue sweep still has to move
func (r *GormInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND due_on < ?",
			[]string{string(billing.InvoiceStatusPending), string(billing.InvoiceStatusPartial)}, asOf).
		Order("due_on ASC").
		Limit(limit).
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}

	invoices := make([]billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// CountOverdue counts open invoices whose due date has passed
func (r *GormInvoiceRepository) CountOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("status IN ? AND due_on < ?", openStatuses(), asOf).
		Count(&count).Error
	return count, err
}

// CountCustomersInArrears counts distinct customers with at least one
// due-crossed open invoice
func (r *GormInvoiceRepository) CountCustomersInArrears(ctx context.Context, asOf time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("status IN ? AND due_on < ?", openStatuses(), asOf).
		Distinct("customer_id").
		Count(&count).Error
	return count, err
}

// SumOutstanding sums the balance across all open invoices
func (r *GormInvoiceRepository) SumOutstanding(ctx context.Context) (decimal.Decimal, error) {
	return r.sumOpen(ctx, "balance")
}

// SumFaceValueOpen sums the face value across all open invoices
func (r *GormInvoiceRepository) SumFaceValueOpen(ctx context.Context) (decimal.Decimal, error) {
	return r.sumOpen(ctx, "face_value")
}

func (r *GormInvoiceRepository) sumOpen(ctx context.Context, column string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("COALESCE(SUM("+column+"), 0) AS total").
		Where("status IN ?", openStatuses()).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// CountAll counts every invoice regardless of status
func (r *GormInvoiceRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Count(&count).Error
	return count, err
}

// AverageCollectionDays averages issue-to-settlement days across paid invoices
func (r *GormInvoiceRepository) AverageCollectionDays(ctx context.Context) (float64, error) {
	var result struct {
		AvgDays *float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("AVG(EXTRACT(EPOCH FROM (paid_at - issued_on)) / 86400) AS avg_days").
		Where("status = ? AND paid_at IS NOT NULL", string(billing.InvoiceStatusPaid)).
		Scan(&result).Error
	if err != nil {
		return 0, err
	}
	if result.AvgDays == nil {
		return 0, nil
	}
	return *result.AvgDays, nil
}

// Save persists an invoice without a version check
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking. The update only lands when
// the stored version matches the one this aggregate was loaded at.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	// Select("*") forces zero values through; a fully paid invoice must
	// persist its zero balance.
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("created_at").
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Delete removes an invoice
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.InvoiceModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
