package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/shared/valueobject"
)

func TestPaymentMethod_IsValid(t *testing.T) {
	tests := []struct {
		method PaymentMethod
		valid  bool
	}{
		{PaymentMethodCash, true},
		{PaymentMethodTransfer, true},
		{PaymentMethodCheck, true},
		{PaymentMethodCard, true},
		{PaymentMethodOther, true},
		{PaymentMethod("BITCOIN"), false},
		{PaymentMethod(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.method.IsValid())
		})
	}
}

func TestPaymentMethods(t *testing.T) {
	methods := PaymentMethods()
	require.Len(t, methods, 5)

	info, found := MethodInfoFor(PaymentMethodTransfer)
	require.True(t, found)
	assert.True(t, info.RequiresReference)
	assert.True(t, info.AllowsVoucher)

	info, found = MethodInfoFor(PaymentMethodCash)
	require.True(t, found)
	assert.False(t, info.RequiresReference)

	_, found = MethodInfoFor(PaymentMethod("BARTER"))
	assert.False(t, found)
}

func TestNewPayment(t *testing.T) {
	today := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	paidOn := time.Date(2026, 3, 9, 16, 45, 0, 0, time.UTC)
	recordedBy := uuid.New()

	t.Run("valid payment", func(t *testing.T) {
		invoice := createTestInvoice(t)

		payment, err := NewPayment(invoice, 1, mustMoney(t, "250.00"), PaymentMethodTransfer, paidOn, recordedBy, today)
		require.NoError(t, err)

		assert.Equal(t, invoice.ID, payment.InvoiceID)
		assert.Equal(t, "INV-001-001", payment.Code)
		assert.Equal(t, "250.00", payment.Amount.StringFixed(2))
		assert.Equal(t, PaymentMethodTransfer, payment.Method)
		assert.Equal(t, recordedBy, payment.RecordedBy)
		assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), payment.PaidOn)
	})

	t.Run("code carries the sequence", func(t *testing.T) {
		invoice := createTestInvoice(t)

		payment, err := NewPayment(invoice, 12, mustMoney(t, "10.00"), PaymentMethodCash, paidOn, recordedBy, today)
		require.NoError(t, err)
		assert.Equal(t, "INV-001-012", payment.Code)
	})

	t.Run("paid on today is allowed", func(t *testing.T) {
		invoice := createTestInvoice(t)

		_, err := NewPayment(invoice, 1, mustMoney(t, "10.00"), PaymentMethodCash, today, recordedBy, today)
		assert.NoError(t, err)
	})

	tests := []struct {
		name     string
		invoice  bool
		sequence int
		amount   string
		method   PaymentMethod
		paidOn   time.Time
		actor    uuid.UUID
		code     string
	}{
		{"nil invoice", false, 1, "10.00", PaymentMethodCash, paidOn, recordedBy, "INVALID_INVOICE"},
		{"zero amount", true, 1, "0.00", PaymentMethodCash, paidOn, recordedBy, "INVALID_AMOUNT"},
		{"unknown method", true, 1, "10.00", PaymentMethod("WIRE"), paidOn, recordedBy, "INVALID_METHOD"},
		{"nil actor", true, 1, "10.00", PaymentMethodCash, paidOn, uuid.Nil, "INVALID_ACTOR"},
		{"future paid on", true, 1, "10.00", PaymentMethodCash, today.AddDate(0, 0, 1), recordedBy, "FUTURE_PAYMENT_DATE"},
		{"zero sequence", true, 0, "10.00", PaymentMethodCash, paidOn, recordedBy, "INVALID_SEQUENCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var invoice *Invoice
			if tt.invoice {
				invoice = createTestInvoice(t)
			}

			_, err := NewPayment(invoice, tt.sequence, mustMoney(t, tt.amount), tt.method, tt.paidOn, tt.actor, today)
			require.Error(t, err)
			var validationErr *shared.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.code, validationErr.Code)
		})
	}
}

func TestPayment_UpdateVoucher(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	invoice := createTestInvoice(t)

	payment, err := NewPayment(invoice, 1, mustMoney(t, "100.00"), PaymentMethodCheck, today, uuid.New(), today)
	require.NoError(t, err)

	payment.UpdateVoucher("REF-881", "CHK-2200", "cleared at branch")

	assert.Equal(t, "REF-881", payment.Reference)
	assert.Equal(t, "CHK-2200", payment.VoucherNumber)
	assert.Equal(t, "cleared at branch", payment.Notes)
}

func TestPayment_AmountMoney(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	invoice := createTestInvoice(t)

	payment, err := NewPayment(invoice, 1, mustMoney(t, "123.45"), PaymentMethodCash, today, uuid.New(), today)
	require.NoError(t, err)

	assert.Equal(t, "123.45", payment.AmountMoney().StringFixed())
	assert.Equal(t, valueobject.COP, payment.AmountMoney().Currency())
}
