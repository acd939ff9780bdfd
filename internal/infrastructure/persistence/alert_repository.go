package persistence

import (
	"context"
	"errors"

	"github.com/erp/billing/internal/domain/alert"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAlertRepository implements alert.Repository using GORM
type GormAlertRepository struct {
	db *gorm.DB
}

// NewGormAlertRepository creates a new GormAlertRepository
func NewGormAlertRepository(db *gorm.DB) *GormAlertRepository {
	return &GormAlertRepository{db: db}
}

func activeStatuses() []string {
	return []string{string(alert.StatusNew), string(alert.StatusRead)}
}

// FindByID finds an alert by its ID
func (r *GormAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	var model models.AlertModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByInvoiceAndKind returns the active alert for a dedup pair
func (r *GormAlertRepository) FindActiveByInvoiceAndKind(ctx context.Context, invoiceID uuid.UUID, kind alert.Kind) (*alert.Alert, error) {
	var model models.AlertModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND kind = ? AND status IN ?", invoiceID, string(kind), activeStatuses()).
		Order("generated_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListActive returns active alerts, most urgent first
func (r *GormAlertRepository) ListActive(ctx context.Context, offset, limit int) ([]*alert.Alert, error) {
	var alertModels []models.AlertModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", activeStatuses()).
		Order(priorityRankExpr + " DESC, generated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&alertModels).Error; err != nil {
		return nil, err
	}

	alerts := make([]*alert.Alert, len(alertModels))
	for i := range alertModels {
		alerts[i] = alertModels[i].ToDomain()
	}
	return alerts, nil
}

// priorityRankExpr orders the textual priority column by urgency
const priorityRankExpr = "CASE priority " +
	"WHEN 'CRITICAL' THEN 4 " +
	"WHEN 'HIGH' THEN 3 " +
	"WHEN 'MEDIUM' THEN 2 " +
	"ELSE 1 END"

// CountActiveByInvoice counts active alerts referencing an invoice
func (r *GormAlertRepository) CountActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AlertModel{}).
		Where("invoice_id = ? AND status IN ?", invoiceID, activeStatuses()).
		Count(&count).Error
	return count, err
}

// CountActiveByPriority counts active alerts per priority
func (r *GormAlertRepository) CountActiveByPriority(ctx context.Context) (map[alert.Priority]int64, error) {
	var rows []struct {
		Priority string
		Count    int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.AlertModel{}).
		Select("priority, COUNT(*) AS count").
		Where("status IN ?", activeStatuses()).
		Group("priority").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[alert.Priority]int64, len(rows))
	for _, row := range rows {
		counts[alert.Priority(row.Priority)] = row.Count
	}
	return counts, nil
}

// Save persists an alert (create or update)
func (r *GormAlertRepository) Save(ctx context.Context, a *alert.Alert) error {
	model := models.AlertModelFromDomain(a)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes an alert
func (r *GormAlertRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AlertModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
