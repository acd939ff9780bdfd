package alert

import (
	"context"

	"github.com/erp/billing/internal/domain/alert"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertService exposes the operator-facing alert inbox: listing active
// alerts and moving them through their handling states.
type AlertService struct {
	alertRepo alert.Repository
	logger    *zap.Logger
}

// NewAlertService creates a new AlertService
func NewAlertService(alertRepo alert.Repository, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{alertRepo: alertRepo, logger: logger}
}

// ListActive returns active alerts, most urgent first
func (s *AlertService) ListActive(ctx context.Context, offset, limit int) ([]*alert.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.alertRepo.ListActive(ctx, offset, limit)
}

// CountActiveByPriority returns the active alert count per priority
func (s *AlertService) CountActiveByPriority(ctx context.Context) (map[alert.Priority]int64, error) {
	return s.alertRepo.CountActiveByPriority(ctx)
}

// MarkRead transitions a new alert to read
func (s *AlertService) MarkRead(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	a, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.MarkRead()
	if err := s.alertRepo.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// MarkProcessed records that an actor handled the alert
func (s *AlertService) MarkProcessed(ctx context.Context, id, actorID uuid.UUID) (*alert.Alert, error) {
	a, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.MarkProcessed(actorID)
	if err := s.alertRepo.Save(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("alert processed",
		zap.String("alert_id", a.ID.String()),
		zap.String("kind", string(a.Kind)))
	return a, nil
}

// Dismiss discards an alert without processing it
func (s *AlertService) Dismiss(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	a, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Dismiss()
	if err := s.alertRepo.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
