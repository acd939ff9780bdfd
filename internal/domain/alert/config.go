package alert

import (
	"fmt"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Config holds the tunable thresholds the built-in rules read. A single
// Config is loaded at startup and shared read-only across sweeps.
type Config struct {
	// DueSoonWindowDays is how many days before the due date the
	// due-soon rule starts firing.
	DueSoonWindowDays int `validate:"gte=0,lte=365"`

	// OverdueHighAfterDays and OverdueCriticalAfterDays escalate the
	// overdue alert priority as the invoice ages.
	OverdueHighAfterDays     int `validate:"gte=1"`
	OverdueCriticalAfterDays int `validate:"gte=1"`

	// HighValueThreshold marks invoices whose face value warrants
	// individual attention regardless of age.
	HighValueThreshold decimal.Decimal

	// StaleAfterDays is how long an open invoice may go without a
	// recorded payment before the stale rule fires.
	StaleAfterDays int `validate:"gte=1"`
}

// DefaultConfig mirrors the thresholds the sweeper ships with
func DefaultConfig() Config {
	return Config{
		DueSoonWindowDays:        7,
		OverdueHighAfterDays:     15,
		OverdueCriticalAfterDays: 30,
		HighValueThreshold:       decimal.NewFromInt(5000000),
		StaleAfterDays:           30,
	}
}

// Validate rejects threshold combinations the rules cannot interpret
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return shared.NewConfigurationError("INVALID_ALERT_CONFIG", fmt.Sprintf("Invalid alert configuration: %v", err))
	}
	if c.OverdueCriticalAfterDays <= c.OverdueHighAfterDays {
		return shared.NewConfigurationError("INVALID_ALERT_CONFIG",
			"Critical overdue threshold must exceed the high threshold")
	}
	if c.HighValueThreshold.IsNegative() {
		return shared.NewConfigurationError("INVALID_ALERT_CONFIG",
			"High value threshold cannot be negative")
	}
	return nil
}
