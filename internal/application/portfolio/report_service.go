package portfolio

import (
	"context"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// pageSize pages open invoices through the in-memory report loops
const pageSize = 500

// Summary is the portfolio headline view
type Summary struct {
	TotalReceivable       decimal.Decimal `json:"total_receivable"`
	Outstanding           decimal.Decimal `json:"outstanding"`
	OpenInvoices          int64           `json:"open_invoices"`
	OverdueInvoices       int64           `json:"overdue_invoices"`
	CustomersInArrears    int64           `json:"customers_in_arrears"`
	OverduePercentage     decimal.Decimal `json:"overdue_percentage"`
	AverageCollectionDays float64         `json:"average_collection_days"`
}

// AgingBucket groups overdue exposure by how long it has been overdue
type AgingBucket struct {
	Label       string          `json:"label"`
	FromDays    int             `json:"from_days"`
	ToDays      int             `json:"to_days"` // -1 means open-ended
	Count       int             `json:"count"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// MonthProjection is the expected collection for one calendar month
type MonthProjection struct {
	Year     int             `json:"year"`
	Month    time.Month      `json:"month"`
	Count    int             `json:"count"`
	Expected decimal.Decimal `json:"expected"`
}

// ReportService computes read-only portfolio views over the ledger.
// It never mutates invoices or payments.
type ReportService struct {
	invoiceRepo billing.InvoiceRepository
	clock       shared.Clock
	logger      *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(invoiceRepo billing.InvoiceRepository, clock shared.Clock, logger *zap.Logger) *ReportService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{invoiceRepo: invoiceRepo, clock: clock, logger: logger}
}

// GetSummary computes the portfolio headline numbers
func (s *ReportService) GetSummary(ctx context.Context) (*Summary, error) {
	today := s.clock.Today()

	totalReceivable, err := s.invoiceRepo.SumFaceValueOpen(ctx)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.invoiceRepo.SumOutstanding(ctx)
	if err != nil {
		return nil, err
	}
	openCount, err := s.invoiceRepo.CountOpen(ctx)
	if err != nil {
		return nil, err
	}
	overdueCount, err := s.invoiceRepo.CountOverdue(ctx, today)
	if err != nil {
		return nil, err
	}
	inArrears, err := s.invoiceRepo.CountCustomersInArrears(ctx, today)
	if err != nil {
		return nil, err
	}
	avgDays, err := s.invoiceRepo.AverageCollectionDays(ctx)
	if err != nil {
		return nil, err
	}

	overduePct := decimal.Zero
	if openCount > 0 {
		overduePct = decimal.NewFromInt(overdueCount).
			Div(decimal.NewFromInt(openCount)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return &Summary{
		TotalReceivable:       totalReceivable,
		Outstanding:           outstanding,
		OpenInvoices:          openCount,
		OverdueInvoices:       overdueCount,
		CustomersInArrears:    inArrears,
		OverduePercentage:     overduePct,
		AverageCollectionDays: avgDays,
	}, nil
}

// GetAgingBuckets groups overdue invoices into the standard collection
// buckets: 0-30, 31-60, 61-90 and 90+ days overdue.
func (s *ReportService) GetAgingBuckets(ctx context.Context) ([]AgingBucket, error) {
	today := s.clock.Today()
	buckets := []AgingBucket{
		{Label: "0-30", FromDays: 0, ToDays: 30, Outstanding: decimal.Zero},
		{Label: "31-60", FromDays: 31, ToDays: 60, Outstanding: decimal.Zero},
		{Label: "61-90", FromDays: 61, ToDays: 90, Outstanding: decimal.Zero},
		{Label: "90+", FromDays: 91, ToDays: -1, Outstanding: decimal.Zero},
	}

	err := s.eachOpenInvoice(ctx, func(inv *billing.Invoice) {
		if !inv.IsOverdueAsOf(today) {
			return
		}
		days := inv.DaysOverdueAsOf(today)
		for i := range buckets {
			b := &buckets[i]
			if days < b.FromDays {
				continue
			}
			if b.ToDays >= 0 && days > b.ToDays {
				continue
			}
			b.Count++
			b.Outstanding = b.Outstanding.Add(inv.Balance)
			return
		}
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

// GetCollectionProjection estimates collections per calendar month from
// the due dates of open invoices. Already-overdue balances are projected
// into the current month.
func (s *ReportService) GetCollectionProjection(ctx context.Context, months int) ([]MonthProjection, error) {
	if months <= 0 {
		months = 3
	}
	today := s.clock.Today()
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())

	projections := make([]MonthProjection, months)
	for i := range projections {
		m := start.AddDate(0, i, 0)
		projections[i] = MonthProjection{Year: m.Year(), Month: m.Month(), Expected: decimal.Zero}
	}

	err := s.eachOpenInvoice(ctx, func(inv *billing.Invoice) {
		due := inv.DueOn
		if due.Before(today) {
			due = today
		}
		idx := (due.Year()-start.Year())*12 + int(due.Month()) - int(start.Month())
		if idx < 0 || idx >= months {
			return
		}
		projections[idx].Count++
		projections[idx].Expected = projections[idx].Expected.Add(inv.Balance)
	})
	if err != nil {
		return nil, err
	}
	return projections, nil
}

func (s *ReportService) eachOpenInvoice(ctx context.Context, fn func(*billing.Invoice)) error {
	for offset := 0; ; offset += pageSize {
		invoices, err := s.invoiceRepo.FindOpen(ctx, offset, pageSize)
		if err != nil {
			return err
		}
		if len(invoices) == 0 {
			return nil
		}
		for _, inv := range invoices {
			fn(&inv)
		}
		if len(invoices) < pageSize {
			return nil
		}
	}
}
