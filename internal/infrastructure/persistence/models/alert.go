package models

import (
	"time"

	"github.com/erp/billing/internal/domain/alert"
	"github.com/google/uuid"
)

// AlertModel is the persistence model for alerts
type AlertModel struct {
	BaseModel
	InvoiceID   *uuid.UUID    `gorm:"type:uuid;index:idx_alerts_invoice_kind"`
	Kind        string        `gorm:"type:varchar(30);not null;index:idx_alerts_invoice_kind"`
	Priority    string        `gorm:"type:varchar(20);not null;index"`
	Status      string        `gorm:"type:varchar(20);not null;index"`
	Title       string        `gorm:"type:varchar(200);not null"`
	Message     string        `gorm:"type:text"`
	GeneratedAt time.Time     `gorm:"not null;index"`
	ReadAt      *time.Time
	ProcessedAt *time.Time
	ProcessedBy *uuid.UUID    `gorm:"type:uuid"`
	Payload     alert.Payload `gorm:"type:jsonb"`
}

// TableName returns the table name for AlertModel
func (AlertModel) TableName() string {
	return "alerts"
}

// ToDomain converts AlertModel to domain Alert
func (m *AlertModel) ToDomain() *alert.Alert {
	return &alert.Alert{
		BaseEntity:  m.BaseModel.ToDomain(),
		InvoiceID:   m.InvoiceID,
		Kind:        alert.Kind(m.Kind),
		Priority:    alert.Priority(m.Priority),
		Status:      alert.Status(m.Status),
		Title:       m.Title,
		Message:     m.Message,
		GeneratedAt: m.GeneratedAt,
		ReadAt:      m.ReadAt,
		ProcessedAt: m.ProcessedAt,
		ProcessedBy: m.ProcessedBy,
		Payload:     m.Payload,
	}
}

// AlertModelFromDomain converts domain Alert to AlertModel
func AlertModelFromDomain(a *alert.Alert) *AlertModel {
	m := &AlertModel{
		InvoiceID:   a.InvoiceID,
		Kind:        string(a.Kind),
		Priority:    string(a.Priority),
		Status:      string(a.Status),
		Title:       a.Title,
		Message:     a.Message,
		GeneratedAt: a.GeneratedAt,
		ReadAt:      a.ReadAt,
		ProcessedAt: a.ProcessedAt,
		ProcessedBy: a.ProcessedBy,
		Payload:     a.Payload,
	}
	m.FromDomainBaseEntity(a.BaseEntity)
	return m
}
