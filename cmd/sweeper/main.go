package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	alertapp "github.com/erp/billing/internal/application/alert"
	billingapp "github.com/erp/billing/internal/application/billing"
	alertdomain "github.com/erp/billing/internal/domain/alert"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/erp/billing/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

func main() {
	var once bool
	flag.BoolVar(&once, "once", false, "Run a single maintenance sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	alertCfg, err := cfg.AlertConfig()
	if err != nil {
		log.Fatal("Invalid alert configuration", zap.Error(err))
	}

	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	alertRepo := persistence.NewGormAlertRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	clock := shared.SystemClock{}
	policy := billingapp.Policy{
		AllowReversalOnCancelled: cfg.Ledger.AllowReversalOnCancelled,
		AllowCancelWithPayments:  cfg.Ledger.AllowCancelWithPayments,
	}
	ledgerService := billingapp.NewLedgerService(invoiceRepo, paymentRepo, alertRepo, txScope, clock, policy, log)

	sweepService, err := alertapp.NewSweepService(
		invoiceRepo, paymentRepo, alertRepo,
		alertdomain.NewEngine(), alertCfg, clock, log,
	)
	if err != nil {
		log.Fatal("Failed to build sweep service", zap.Error(err))
	}

	executor := scheduler.NewSweepExecutor(ledgerService, sweepService, cfg.Scheduler.BatchSize, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		runOnce(ctx, executor, log)
		return
	}

	if !cfg.Scheduler.Enabled {
		log.Fatal("Scheduler is disabled; nothing to do (use -once for a single run)")
	}

	sched := scheduler.NewScheduler(scheduler.Config{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		RetryAttempts:     cfg.Scheduler.RetryAttempts,
		RetryDelay:        cfg.Scheduler.RetryDelay,
	}, executor, log)

	trigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
		SweepHour:     cfg.Scheduler.SweepHour,
		SweepMinute:   cfg.Scheduler.SweepMinute,
		CheckInterval: time.Minute,
	}, sched, log)

	if err := sched.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	if err := trigger.Start(ctx); err != nil {
		log.Fatal("Failed to start cron trigger", zap.Error(err))
	}

	log.Info("Sweeper running",
		zap.Int("sweep_hour", cfg.Scheduler.SweepHour),
		zap.Int("sweep_minute", cfg.Scheduler.SweepMinute))

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := trigger.Stop(shutdownCtx); err != nil {
		log.Warn("Cron trigger stop failed", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("Scheduler stop failed", zap.Error(err))
	}
}

// runOnce executes the full maintenance sequence synchronously
func runOnce(ctx context.Context, executor *scheduler.SweepExecutor, log *zap.Logger) {
	now := time.Now()
	for _, jobType := range scheduler.AllJobTypes() {
		job := scheduler.NewJob(jobType, now, 0)
		job.Start()
		if err := executor.Execute(ctx, job); err != nil {
			job.Fail(err.Error())
			log.Fatal("Maintenance job failed",
				zap.String("job_type", string(jobType)),
				zap.Error(err))
		}
		job.Complete()
	}
	log.Info("Single maintenance run completed")
}
