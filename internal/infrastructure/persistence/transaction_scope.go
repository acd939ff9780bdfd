package persistence

import (
	"context"

	billingapp "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"gorm.io/gorm"
)

// GormTransactionScope implements the ledger TransactionScope with a
// GORM transaction. Repository operations inside Execute share one
// transaction and commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos billingapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormLedgerRepositories{tx: tx})
	})
}

// gormLedgerRepositories binds the ledger repositories to one transaction
type gormLedgerRepositories struct {
	tx *gorm.DB
}

// InvoiceRepo returns the invoice repository scoped to the transaction
func (r *gormLedgerRepositories) InvoiceRepo() billing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// PaymentRepo returns the payment repository scoped to the transaction
func (r *gormLedgerRepositories) PaymentRepo() billing.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

var _ billingapp.TransactionScope = (*GormTransactionScope)(nil)
var _ billingapp.TransactionalRepositories = (*gormLedgerRepositories)(nil)
