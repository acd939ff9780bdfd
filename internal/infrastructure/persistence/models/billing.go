package models

import (
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for invoices
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	SalespersonID *uuid.UUID      `gorm:"type:uuid;index"`
	DistributorID *uuid.UUID      `gorm:"type:uuid;index"`
	IssuedOn      time.Time       `gorm:"type:date;not null"`
	DueOn         time.Time       `gorm:"type:date;not null;index"`
	FaceValue     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PaidTotal     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Balance       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Status        string          `gorm:"type:varchar(20);not null;index"`
	Notes         string          `gorm:"type:text"`
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CancelReason  string `gorm:"type:text"`
}

// TableName returns the table name for InvoiceModel
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts InvoiceModel to domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber: m.InvoiceNumber,
		CustomerID:    m.CustomerID,
		SalespersonID: m.SalespersonID,
		DistributorID: m.DistributorID,
		IssuedOn:      m.IssuedOn,
		DueOn:         m.DueOn,
		FaceValue:     m.FaceValue,
		PaidTotal:     m.PaidTotal,
		Balance:       m.Balance,
		Status:        billing.InvoiceStatus(m.Status),
		Notes:         m.Notes,
		PaidAt:        m.PaidAt,
		CancelledAt:   m.CancelledAt,
		CancelReason:  m.CancelReason,
	}
	m.PopulateAggregateRoot(&inv.BaseAggregateRoot)
	return inv
}

// InvoiceModelFromDomain converts domain Invoice to InvoiceModel
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		SalespersonID: inv.SalespersonID,
		DistributorID: inv.DistributorID,
		IssuedOn:      inv.IssuedOn,
		DueOn:         inv.DueOn,
		FaceValue:     inv.FaceValue,
		PaidTotal:     inv.PaidTotal,
		Balance:       inv.Balance,
		Status:        string(inv.Status),
		Notes:         inv.Notes,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		CancelReason:  inv.CancelReason,
	}
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	return m
}

// PaymentModel is the persistence model for payments
type PaymentModel struct {
	BaseModel
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Code          string          `gorm:"type:varchar(60);not null;uniqueIndex"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Method        string          `gorm:"type:varchar(20);not null"`
	PaidOn        time.Time       `gorm:"type:date;not null;index"`
	RecordedBy    uuid.UUID       `gorm:"type:uuid;not null"`
	Reference     string          `gorm:"type:varchar(100)"`
	VoucherNumber string          `gorm:"type:varchar(100)"`
	Notes         string          `gorm:"type:text"`
}

// TableName returns the table name for PaymentModel
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts PaymentModel to domain Payment
func (m *PaymentModel) ToDomain() *billing.Payment {
	return &billing.Payment{
		BaseEntity:    m.BaseModel.ToDomain(),
		InvoiceID:     m.InvoiceID,
		Code:          m.Code,
		Amount:        m.Amount,
		Method:        billing.PaymentMethod(m.Method),
		PaidOn:        m.PaidOn,
		RecordedBy:    m.RecordedBy,
		Reference:     m.Reference,
		VoucherNumber: m.VoucherNumber,
		Notes:         m.Notes,
	}
}

// PaymentModelFromDomain converts domain Payment to PaymentModel
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{
		InvoiceID:     p.InvoiceID,
		Code:          p.Code,
		Amount:        p.Amount,
		Method:        string(p.Method),
		PaidOn:        p.PaidOn,
		RecordedBy:    p.RecordedBy,
		Reference:     p.Reference,
		VoucherNumber: p.VoucherNumber,
		Notes:         p.Notes,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}
