package billing

import (
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"   // No payments applied, not yet due
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"   // Partially paid, not yet due
	InvoiceStatusPaid      InvoiceStatus = "PAID"      // Fully paid
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"   // Past due date with outstanding balance
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED" // Cancelled; terminal and sticky
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no payment activity is accepted in this status.
// Paid is not terminal: reversing a payment reopens the balance.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCancelled
}

// CanReceivePayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanReceivePayment() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusPartial || s == InvoiceStatusOverdue
}

// OpenStatuses returns the statuses carrying an outstanding balance
func OpenStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusOverdue}
}

// Invoice is the ledger aggregate root. PaidTotal, Balance and Status are
// engine-owned: they are stored, but only the mutation entry points below
// may change them, so the stored values never drift from the payment rows.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber string
	CustomerID    uuid.UUID
	SalespersonID *uuid.UUID
	DistributorID *uuid.UUID
	IssuedOn      time.Time
	DueOn         time.Time
	FaceValue     decimal.Decimal
	PaidTotal     decimal.Decimal
	Balance       decimal.Decimal
	Status        InvoiceStatus
	Notes         string
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CancelReason  string
}

// NewInvoice creates a new invoice in pending status
func NewInvoice(
	invoiceNumber string,
	customerID uuid.UUID,
	salespersonID *uuid.UUID,
	distributorID *uuid.UUID,
	issuedOn time.Time,
	dueOn time.Time,
	faceValue valueobject.Money,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if !faceValue.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Face value must be positive")
	}
	issuedOn = shared.Midnight(issuedOn)
	dueOn = shared.Midnight(dueOn)
	if dueOn.Before(issuedOn) {
		return nil, shared.NewValidationError("INVALID_DATE_ORDER", "Due date cannot precede the issue date")
	}

	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		CustomerID:        customerID,
		SalespersonID:     salespersonID,
		DistributorID:     distributorID,
		IssuedOn:          issuedOn,
		DueOn:             dueOn,
		FaceValue:         faceValue.Amount(),
		PaidTotal:         decimal.Zero,
		Balance:           faceValue.Amount(),
		Status:            InvoiceStatusPending,
	}, nil
}

// CanReceivePayment reports whether a payment of the given amount would be
// accepted, with a human-readable reason when it would not.
func (inv *Invoice) CanReceivePayment(amount valueobject.Money) (bool, string) {
	if inv.Status == InvoiceStatusCancelled {
		return false, "Payments cannot be recorded on cancelled invoices"
	}
	if inv.Status == InvoiceStatusPaid {
		return false, "The invoice is already fully paid"
	}
	if !amount.IsPositive() {
		return false, "Payment amount must be positive"
	}
	if amount.Amount().GreaterThan(inv.Balance) {
		return false, fmt.Sprintf("Payment amount exceeds the outstanding balance of %s", inv.Balance.StringFixed(2))
	}
	return true, ""
}

// ApplyPayment adds a payment amount to the paid total and recomputes the
// derived state. The overpayment check counts every currently applied
// payment, including this one.
func (inv *Invoice) ApplyPayment(amount valueobject.Money, today time.Time) error {
	if ok, reason := inv.CanReceivePayment(amount); !ok {
		return shared.NewValidationError("PAYMENT_REJECTED", reason)
	}

	inv.PaidTotal = inv.PaidTotal.Add(amount.Amount())
	inv.Balance = inv.FaceValue.Sub(inv.PaidTotal)
	inv.recompute(today)

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// RemovePayment subtracts a reversed payment's amount and recomputes the
// derived state. Applying then reversing the same amount restores
// PaidTotal, Balance and Status exactly (due-date transitions aside).
func (inv *Invoice) RemovePayment(amount valueobject.Money, today time.Time) error {
	if amount.Amount().GreaterThan(inv.PaidTotal) {
		return shared.NewConsistencyError("PAID_TOTAL_UNDERFLOW",
			fmt.Sprintf("Cannot remove payment of %s: paid total is %s", amount.StringFixed(), inv.PaidTotal.StringFixed(2)))
	}

	inv.PaidTotal = inv.PaidTotal.Sub(amount.Amount())
	inv.Balance = inv.FaceValue.Sub(inv.PaidTotal)
	inv.recompute(today)

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// RecomputeStatus re-derives the status from the stored ledger state.
// It is idempotent: with unchanged inputs it returns the same status and
// reports changed=false so callers can skip the write.
func (inv *Invoice) RecomputeStatus(today time.Time) (status InvoiceStatus, changed bool) {
	previous := inv.Status
	inv.recompute(today)
	if inv.Status != previous {
		inv.UpdatedAt = time.Now()
		inv.IncrementVersion()
		return inv.Status, true
	}
	return inv.Status, false
}

// recompute applies the status precedence: paid, then overdue, then
// partial, then pending. Cancelled never changes here.
func (inv *Invoice) recompute(today time.Time) {
	if inv.Status == InvoiceStatusCancelled {
		return
	}

	switch {
	case inv.PaidTotal.GreaterThanOrEqual(inv.FaceValue):
		if inv.Status != InvoiceStatusPaid {
			now := time.Now()
			inv.PaidAt = &now
		}
		inv.Status = InvoiceStatusPaid
	case shared.Midnight(today).After(shared.Midnight(inv.DueOn)):
		inv.Status = InvoiceStatusOverdue
		inv.PaidAt = nil
	case inv.PaidTotal.IsPositive():
		inv.Status = InvoiceStatusPartial
		inv.PaidAt = nil
	default:
		inv.Status = InvoiceStatusPending
		inv.PaidAt = nil
	}
}

// VerifyPaidTotal checks the stored paid total against the sum of the
// invoice's applied payments. A mismatch means upstream corruption; it is
// reported, never silently repaired.
func (inv *Invoice) VerifyPaidTotal(paymentSum decimal.Decimal) error {
	if !inv.PaidTotal.Equal(paymentSum) {
		return shared.NewConsistencyError("PAID_TOTAL_MISMATCH",
			fmt.Sprintf("Invoice %s stores paid total %s but payments sum to %s",
				inv.InvoiceNumber, inv.PaidTotal.StringFixed(2), paymentSum.StringFixed(2)))
	}
	return nil
}

// Cancel cancels the invoice. Cancelling with applied payments is rejected
// unless the policy explicitly allows it.
func (inv *Invoice) Cancel(reason string, allowWithPayments bool) error {
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewValidationError("ALREADY_CANCELLED", "The invoice is already cancelled")
	}
	if reason == "" {
		return shared.NewValidationError("INVALID_REASON", "Cancel reason is required")
	}
	if inv.PaidTotal.IsPositive() && !allowWithPayments {
		return shared.NewValidationError("HAS_PAYMENTS", "Cannot cancel an invoice with applied payments")
	}

	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()
	return nil
}

// Reopen moves a cancelled invoice back into the ledger, re-deriving its
// status from the payment state. This is the only path out of cancelled.
func (inv *Invoice) Reopen(today time.Time) error {
	if inv.Status != InvoiceStatusCancelled {
		return shared.NewValidationError("NOT_CANCELLED", "Only cancelled invoices can be reopened")
	}

	inv.Status = InvoiceStatusPending
	inv.CancelledAt = nil
	inv.CancelReason = ""
	inv.recompute(today)
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// IsOverdueAsOf returns true if the invoice is past due with the balance
// still open as of the given date
func (inv *Invoice) IsOverdueAsOf(today time.Time) bool {
	if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusCancelled {
		return false
	}
	return shared.Midnight(today).After(shared.Midnight(inv.DueOn))
}

// DaysOverdueAsOf returns the number of days past due (0 if not overdue)
func (inv *Invoice) DaysOverdueAsOf(today time.Time) int {
	if !inv.IsOverdueAsOf(today) {
		return 0
	}
	return shared.DaysBetween(inv.DueOn, today)
}

// DaysUntilDueAsOf returns the days remaining before the due date
// (negative once past due)
func (inv *Invoice) DaysUntilDueAsOf(today time.Time) int {
	return shared.DaysBetween(today, inv.DueOn)
}

// IsOpen returns true if the invoice carries an outstanding balance
func (inv *Invoice) IsOpen() bool {
	return inv.Status.CanReceivePayment()
}

// FaceValueMoney returns the face value as Money
func (inv *Invoice) FaceValueMoney() valueobject.Money {
	return valueobject.NewMoneyCOP(inv.FaceValue)
}

// PaidTotalMoney returns the paid total as Money
func (inv *Invoice) PaidTotalMoney() valueobject.Money {
	return valueobject.NewMoneyCOP(inv.PaidTotal)
}

// BalanceMoney returns the outstanding balance as Money
func (inv *Invoice) BalanceMoney() valueobject.Money {
	return valueobject.NewMoneyCOP(inv.Balance)
}
