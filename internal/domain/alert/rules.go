package alert

import (
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
)

// Snapshot is the read-only view of one invoice a rule evaluates.
// Rules never touch repositories; the sweep assembles snapshots so
// evaluation stays pure and trivially testable.
type Snapshot struct {
	Invoice    *billing.Invoice
	LastPaidOn *time.Time // most recent payment date, nil if none recorded
	Today      time.Time
}

// Draft is a rule's proposal for an alert. The sweep decides whether it
// becomes a new alert or refreshes an active one for the same
// (invoice, kind) pair.
type Draft struct {
	Kind     Kind
	Priority Priority
	Title    string
	Message  string
	Payload  Payload
}

// Rule evaluates a single invoice snapshot. A nil draft means the rule
// did not trigger. Evaluate must not mutate the snapshot.
type Rule interface {
	Kind() Kind
	Evaluate(snap Snapshot, cfg Config) (*Draft, error)
}

// Engine holds the active rule set. The four built-in rules are always
// present; custom rules are registered at startup.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the built-in rules registered
func NewEngine() *Engine {
	return &Engine{
		rules: []Rule{
			dueSoonRule{},
			overdueRule{},
			highValueRule{},
			staleRule{},
		},
	}
}

// Register adds a custom rule. Built-in kinds cannot be shadowed.
func (e *Engine) Register(rule Rule) error {
	if rule == nil {
		return shared.NewValidationError("NIL_RULE", "Rule cannot be nil")
	}
	kind := rule.Kind()
	if !kind.IsValid() {
		return shared.NewValidationError("INVALID_KIND", "Unknown alert kind")
	}
	if kind != KindCustom {
		return shared.NewValidationError("RESERVED_KIND",
			fmt.Sprintf("Kind %s is reserved for a built-in rule", kind))
	}
	e.rules = append(e.rules, rule)
	return nil
}

// Evaluate runs every rule against one snapshot and collects the drafts.
// A rule error aborts evaluation for this invoice only; the sweep records
// it and moves on to the next invoice.
func (e *Engine) Evaluate(snap Snapshot, cfg Config) ([]Draft, error) {
	if snap.Invoice == nil {
		return nil, shared.NewValidationError("NIL_INVOICE", "Snapshot invoice cannot be nil")
	}

	var drafts []Draft
	for _, rule := range e.rules {
		draft, err := rule.Evaluate(snap, cfg)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Kind(), err)
		}
		if draft != nil {
			drafts = append(drafts, *draft)
		}
	}
	return drafts, nil
}

// dueSoonRule fires when an open invoice comes within the configured
// window before its due date.
type dueSoonRule struct{}

func (dueSoonRule) Kind() Kind { return KindDueSoon }

func (dueSoonRule) Evaluate(snap Snapshot, cfg Config) (*Draft, error) {
	inv := snap.Invoice
	if !inv.IsOpen() {
		return nil, nil
	}
	days := inv.DaysUntilDueAsOf(snap.Today)
	if days < 0 || days > cfg.DueSoonWindowDays {
		return nil, nil
	}

	priority := PriorityMedium
	if days <= 3 {
		priority = PriorityHigh
	}
	return &Draft{
		Kind:     KindDueSoon,
		Priority: priority,
		Title:    fmt.Sprintf("Invoice %s due in %d days", inv.InvoiceNumber, days),
		Message: fmt.Sprintf("Invoice %s for %s falls due on %s with %s outstanding",
			inv.InvoiceNumber, inv.FaceValueMoney(), inv.DueOn.Format("2006-01-02"), inv.BalanceMoney()),
		Payload: Payload{
			"days_remaining": days,
			"due_on":         inv.DueOn.Format("2006-01-02"),
			"balance":        inv.Balance.String(),
		},
	}, nil
}

// overdueRule fires for overdue invoices and escalates priority as the
// invoice ages past the configured thresholds.
type overdueRule struct{}

func (overdueRule) Kind() Kind { return KindOverdue }

func (overdueRule) Evaluate(snap Snapshot, cfg Config) (*Draft, error) {
	inv := snap.Invoice
	if inv.Status != billing.InvoiceStatusOverdue {
		return nil, nil
	}
	days := inv.DaysOverdueAsOf(snap.Today)

	priority := PriorityMedium
	switch {
	case days >= cfg.OverdueCriticalAfterDays:
		priority = PriorityCritical
	case days >= cfg.OverdueHighAfterDays:
		priority = PriorityHigh
	}
	return &Draft{
		Kind:     KindOverdue,
		Priority: priority,
		Title:    fmt.Sprintf("Invoice %s overdue by %d days", inv.InvoiceNumber, days),
		Message: fmt.Sprintf("Invoice %s has been overdue since %s with %s outstanding",
			inv.InvoiceNumber, inv.DueOn.Format("2006-01-02"), inv.BalanceMoney()),
		Payload: Payload{
			"days_overdue": days,
			"due_on":       inv.DueOn.Format("2006-01-02"),
			"balance":      inv.Balance.String(),
		},
	}, nil
}

// highValueRule flags unpaid invoices whose face value exceeds the
// configured threshold, regardless of age.
type highValueRule struct{}

func (highValueRule) Kind() Kind { return KindHighValue }

func (highValueRule) Evaluate(snap Snapshot, cfg Config) (*Draft, error) {
	inv := snap.Invoice
	if inv.Status == billing.InvoiceStatusPaid || inv.Status == billing.InvoiceStatusCancelled {
		return nil, nil
	}
	if inv.FaceValue.LessThan(cfg.HighValueThreshold) {
		return nil, nil
	}
	return &Draft{
		Kind:     KindHighValue,
		Priority: PriorityHigh,
		Title:    fmt.Sprintf("High value invoice %s", inv.InvoiceNumber),
		Message: fmt.Sprintf("Invoice %s carries a face value of %s with %s still outstanding",
			inv.InvoiceNumber, inv.FaceValueMoney(), inv.BalanceMoney()),
		Payload: Payload{
			"face_value": inv.FaceValue.String(),
			"balance":    inv.Balance.String(),
		},
	}, nil
}

// staleRule fires when an open invoice has gone too long without a
// recorded payment. Activity is measured from the last payment date,
// or from issuance if nothing has been paid. Independent of overdue:
// a stale invoice may or may not be overdue.
type staleRule struct{}

func (staleRule) Kind() Kind { return KindStale }

func (staleRule) Evaluate(snap Snapshot, cfg Config) (*Draft, error) {
	inv := snap.Invoice
	if !inv.IsOpen() || !inv.Balance.IsPositive() {
		return nil, nil
	}

	lastActivity := inv.IssuedOn
	if snap.LastPaidOn != nil {
		lastActivity = *snap.LastPaidOn
	}
	idle := shared.DaysBetween(lastActivity, snap.Today)
	if idle < cfg.StaleAfterDays {
		return nil, nil
	}

	priority := PriorityLow
	if idle >= 2*cfg.StaleAfterDays {
		priority = PriorityMedium
	}
	return &Draft{
		Kind:     KindStale,
		Priority: priority,
		Title:    fmt.Sprintf("No activity on invoice %s for %d days", inv.InvoiceNumber, idle),
		Message: fmt.Sprintf("Invoice %s has received no payments in %d days and still owes %s",
			inv.InvoiceNumber, idle, inv.BalanceMoney()),
		Payload: Payload{
			"idle_days":     idle,
			"last_activity": lastActivity.Format("2006-01-02"),
			"balance":       inv.Balance.String(),
		},
	}, nil
}
