package alert

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
)

// Kind identifies the rule family that produced an alert
type Kind string

const (
	KindDueSoon   Kind = "DUE_SOON"
	KindOverdue   Kind = "OVERDUE"
	KindHighValue Kind = "HIGH_VALUE"
	KindStale     Kind = "STALE_NO_ACTIVITY"
	KindCustom    Kind = "CUSTOM"
)

// IsValid checks if the kind is a known alert kind
func (k Kind) IsValid() bool {
	switch k {
	case KindDueSoon, KindOverdue, KindHighValue, KindStale, KindCustom:
		return true
	}
	return false
}

// Priority represents the urgency of an alert
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank orders priorities for display: critical > high > medium > low
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Status represents the handling state of an alert
type Status string

const (
	StatusNew       Status = "NEW"
	StatusRead      Status = "READ"
	StatusProcessed Status = "PROCESSED"
	StatusDismissed Status = "DISMISSED"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusRead, StatusProcessed, StatusDismissed:
		return true
	}
	return false
}

// IsActive returns true while the alert participates in dedup; processed
// and dismissed alerts are kept as audit trail and can be regenerated.
func (s Status) IsActive() bool {
	return s == StatusNew || s == StatusRead
}

// Payload carries kind-specific detail, stored as a JSON column
type Payload map[string]any

// Value implements driver.Valuer for JSONB storage
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB retrieval
func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		*p = Payload{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Payload: unsupported type")
	}

	if len(bytes) == 0 {
		*p = Payload{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// Alert is a notification derived from ledger state. The sweep creates
// and refreshes alerts; read/processed/dismissed transitions come only
// from an external actor. Alerts are never auto-deleted, only superseded.
type Alert struct {
	shared.BaseEntity
	InvoiceID   *uuid.UUID // nil for account-level alerts
	Kind        Kind
	Priority    Priority
	Status      Status
	Title       string
	Message     string
	GeneratedAt time.Time
	ReadAt      *time.Time
	ProcessedAt *time.Time
	ProcessedBy *uuid.UUID
	Payload     Payload
}

// NewAlert creates an alert from a rule draft
func NewAlert(invoiceID *uuid.UUID, draft Draft, generatedAt time.Time) (*Alert, error) {
	if !draft.Kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_KIND", "Unknown alert kind")
	}
	if !draft.Priority.IsValid() {
		return nil, shared.NewValidationError("INVALID_PRIORITY", "Unknown alert priority")
	}
	payload := draft.Payload
	if payload == nil {
		payload = Payload{}
	}
	return &Alert{
		BaseEntity:  shared.NewBaseEntity(),
		InvoiceID:   invoiceID,
		Kind:        draft.Kind,
		Priority:    draft.Priority,
		Status:      StatusNew,
		Title:       draft.Title,
		Message:     draft.Message,
		GeneratedAt: generatedAt,
		Payload:     payload,
	}, nil
}

// Refresh updates an active alert in place from a newer draft for the
// same (invoice, kind) pair. Payload, message and timestamp are replaced;
// priority only ever moves upward - lowering requires dismissal and
// regeneration.
func (a *Alert) Refresh(draft Draft, generatedAt time.Time) {
	a.Title = draft.Title
	a.Message = draft.Message
	a.GeneratedAt = generatedAt
	if draft.Payload != nil {
		a.Payload = draft.Payload
	}
	if draft.Priority.Rank() > a.Priority.Rank() {
		a.Priority = draft.Priority
	}
	a.UpdatedAt = time.Now()
}

// MarkRead transitions a new alert to read
func (a *Alert) MarkRead() {
	if a.Status != StatusNew {
		return
	}
	now := time.Now()
	a.Status = StatusRead
	a.ReadAt = &now
	a.UpdatedAt = now
}

// MarkProcessed records that an actor handled the alert
func (a *Alert) MarkProcessed(actor uuid.UUID) {
	now := time.Now()
	a.Status = StatusProcessed
	a.ProcessedAt = &now
	a.ProcessedBy = &actor
	a.UpdatedAt = now
}

// Dismiss discards the alert without processing it
func (a *Alert) Dismiss() {
	a.Status = StatusDismissed
	a.UpdatedAt = time.Now()
}
