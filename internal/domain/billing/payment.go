package billing

import (
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodCheck    PaymentMethod = "CHECK"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodOther    PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCheck,
		PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// MethodInfo describes capture requirements for a payment method
type MethodInfo struct {
	Method            PaymentMethod `json:"method"`
	RequiresReference bool          `json:"requires_reference"`
	AllowsVoucher     bool          `json:"allows_voucher"`
	Description       string        `json:"description"`
}

// PaymentMethods returns the capture metadata for every supported method
func PaymentMethods() []MethodInfo {
	return []MethodInfo{
		{PaymentMethodCash, false, false, "Cash payment, no mandatory voucher"},
		{PaymentMethodTransfer, true, true, "Bank transfer, reference number required"},
		{PaymentMethodCheck, true, true, "Check payment, check number required"},
		{PaymentMethodCard, true, true, "Card payment processed through a gateway"},
		{PaymentMethodOther, false, true, "Manually described payment"},
	}
}

// MethodInfoFor returns the metadata for a single method
func MethodInfoFor(method PaymentMethod) (MethodInfo, bool) {
	for _, info := range PaymentMethods() {
		if info.Method == method {
			return info, true
		}
	}
	return MethodInfo{}, false
}

// Payment records money applied against one invoice. Invoice reference,
// amount, method, payer date and recording actor are immutable once the
// payment is created; changing the amount means reverse and recreate.
// Only the voucher metadata may be edited afterwards.
type Payment struct {
	shared.BaseEntity
	InvoiceID     uuid.UUID
	Code          string
	Amount        decimal.Decimal
	Method        PaymentMethod
	PaidOn        time.Time
	RecordedBy    uuid.UUID
	Reference     string
	VoucherNumber string
	Notes         string
}

// NewPayment creates a payment against the given invoice. The sequence
// number feeds the per-invoice code <invoice_number>-NNN.
func NewPayment(
	invoice *Invoice,
	sequence int,
	amount valueobject.Money,
	method PaymentMethod,
	paidOn time.Time,
	recordedBy uuid.UUID,
	today time.Time,
) (*Payment, error) {
	if invoice == nil {
		return nil, shared.NewValidationError("INVALID_INVOICE", "Payment requires an invoice")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_METHOD", fmt.Sprintf("Unknown payment method %q", method))
	}
	if recordedBy == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ACTOR", "Recording actor is required")
	}
	if shared.Midnight(paidOn).After(shared.Midnight(today)) {
		return nil, shared.NewValidationError("FUTURE_PAYMENT_DATE", "Payment date cannot be in the future")
	}
	if sequence < 1 {
		return nil, shared.NewValidationError("INVALID_SEQUENCE", "Payment sequence must start at 1")
	}

	return &Payment{
		BaseEntity: shared.NewBaseEntity(),
		InvoiceID:  invoice.ID,
		Code:       fmt.Sprintf("%s-%03d", invoice.InvoiceNumber, sequence),
		Amount:     amount.Amount(),
		Method:     method,
		PaidOn:     shared.Midnight(paidOn),
		RecordedBy: recordedBy,
	}, nil
}

// UpdateVoucher edits the mutable voucher metadata
func (p *Payment) UpdateVoucher(reference, voucherNumber, notes string) {
	p.Reference = reference
	p.VoucherNumber = voucherNumber
	p.Notes = notes
	p.UpdatedAt = time.Now()
}

// AmountMoney returns the payment amount as Money
func (p *Payment) AmountMoney() valueobject.Money {
	return valueobject.NewMoneyCOP(p.Amount)
}
