package scheduler

import (
	"context"
	"fmt"

	alertapp "github.com/erp/billing/internal/application/alert"
	billingapp "github.com/erp/billing/internal/application/billing"
	"go.uber.org/zap"
)

// SweepExecutor runs the daily maintenance jobs against the application
// services: the overdue recompute and the alert sweep.
type SweepExecutor struct {
	ledgerService *billingapp.LedgerService
	sweepService  *alertapp.SweepService
	batchSize     int
	logger        *zap.Logger
}

// NewSweepExecutor creates a new SweepExecutor
func NewSweepExecutor(
	ledgerService *billingapp.LedgerService,
	sweepService *alertapp.SweepService,
	batchSize int,
	logger *zap.Logger,
) *SweepExecutor {
	if batchSize <= 0 {
		batchSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepExecutor{
		ledgerService: ledgerService,
		sweepService:  sweepService,
		batchSize:     batchSize,
		logger:        logger,
	}
}

// Execute implements JobExecutor
func (e *SweepExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeOverdueRecompute:
		moved, err := e.ledgerService.MarkOverdue(ctx, e.batchSize)
		if err != nil {
			return fmt.Errorf("overdue recompute: %w", err)
		}
		e.logger.Info("overdue recompute finished",
			zap.String("job_id", job.ID.String()),
			zap.Int("moved", moved))
		return nil

	case JobTypeAlertSweep:
		report, err := e.sweepService.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("alert sweep: %w", err)
		}
		// Per-invoice failures do not fail the job; the next sweep
		// retries them.
		if len(report.Errors) > 0 {
			e.logger.Warn("alert sweep finished with invoice errors",
				zap.String("job_id", job.ID.String()),
				zap.Int("errors", len(report.Errors)))
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
