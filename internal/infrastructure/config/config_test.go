package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"BILLING_APP_NAME":                            os.Getenv("BILLING_APP_NAME"),
		"BILLING_APP_ENV":                             os.Getenv("BILLING_APP_ENV"),
		"BILLING_DATABASE_HOST":                       os.Getenv("BILLING_DATABASE_HOST"),
		"BILLING_DATABASE_PORT":                       os.Getenv("BILLING_DATABASE_PORT"),
		"BILLING_DATABASE_USER":                       os.Getenv("BILLING_DATABASE_USER"),
		"BILLING_DATABASE_PASSWORD":                   os.Getenv("BILLING_DATABASE_PASSWORD"),
		"BILLING_DATABASE_DBNAME":                     os.Getenv("BILLING_DATABASE_DBNAME"),
		"BILLING_DATABASE_SSLMODE":                    os.Getenv("BILLING_DATABASE_SSLMODE"),
		"BILLING_DATABASE_MAX_OPEN_CONNS":             os.Getenv("BILLING_DATABASE_MAX_OPEN_CONNS"),
		"BILLING_DATABASE_MAX_IDLE_CONNS":             os.Getenv("BILLING_DATABASE_MAX_IDLE_CONNS"),
		"BILLING_LEDGER_ALLOW_REVERSAL_ON_CANCELLED":  os.Getenv("BILLING_LEDGER_ALLOW_REVERSAL_ON_CANCELLED"),
		"BILLING_LEDGER_ALLOW_CANCEL_WITH_PAYMENTS":   os.Getenv("BILLING_LEDGER_ALLOW_CANCEL_WITH_PAYMENTS"),
		"BILLING_ALERTS_DUE_SOON_WINDOW_DAYS":         os.Getenv("BILLING_ALERTS_DUE_SOON_WINDOW_DAYS"),
		"BILLING_ALERTS_OVERDUE_HIGH_AFTER_DAYS":      os.Getenv("BILLING_ALERTS_OVERDUE_HIGH_AFTER_DAYS"),
		"BILLING_ALERTS_OVERDUE_CRITICAL_AFTER_DAYS":  os.Getenv("BILLING_ALERTS_OVERDUE_CRITICAL_AFTER_DAYS"),
		"BILLING_ALERTS_HIGH_VALUE_THRESHOLD":         os.Getenv("BILLING_ALERTS_HIGH_VALUE_THRESHOLD"),
		"BILLING_ALERTS_STALE_AFTER_DAYS":             os.Getenv("BILLING_ALERTS_STALE_AFTER_DAYS"),
		"BILLING_SCHEDULER_SWEEP_HOUR":                os.Getenv("BILLING_SCHEDULER_SWEEP_HOUR"),
		"BILLING_SCHEDULER_SWEEP_MINUTE":              os.Getenv("BILLING_SCHEDULER_SWEEP_MINUTE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "billing-core", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "billing", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "console", cfg.Log.Format)

		assert.False(t, cfg.Ledger.AllowReversalOnCancelled)
		assert.False(t, cfg.Ledger.AllowCancelWithPayments)

		assert.Equal(t, 7, cfg.Alerts.DueSoonWindowDays)
		assert.Equal(t, 15, cfg.Alerts.OverdueHighAfterDays)
		assert.Equal(t, 30, cfg.Alerts.OverdueCriticalAfterDays)
		assert.Equal(t, 30, cfg.Alerts.StaleAfterDays)

		assert.Equal(t, 6, cfg.Scheduler.SweepHour)
		assert.Equal(t, 0, cfg.Scheduler.SweepMinute)
		assert.Equal(t, 2, cfg.Scheduler.MaxConcurrentJobs)
		assert.Equal(t, 10*time.Minute, cfg.Scheduler.JobTimeout)
		assert.Equal(t, 3, cfg.Scheduler.RetryAttempts)
		assert.Equal(t, 30*time.Second, cfg.Scheduler.RetryDelay)
		assert.Equal(t, 200, cfg.Scheduler.BatchSize)
	})

	t.Run("loads values from environment variables with BILLING prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("BILLING_APP_NAME", "billing-test")
		os.Setenv("BILLING_APP_ENV", "testing")
		os.Setenv("BILLING_DATABASE_HOST", "testdb.local")
		os.Setenv("BILLING_DATABASE_PORT", "5433")
		os.Setenv("BILLING_DATABASE_USER", "billing_user")
		os.Setenv("BILLING_DATABASE_PASSWORD", "testpass")
		os.Setenv("BILLING_DATABASE_DBNAME", "billing_test")
		os.Setenv("BILLING_LEDGER_ALLOW_REVERSAL_ON_CANCELLED", "true")
		os.Setenv("BILLING_ALERTS_DUE_SOON_WINDOW_DAYS", "10")
		os.Setenv("BILLING_ALERTS_HIGH_VALUE_THRESHOLD", "10000000")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "billing-test", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "billing_user", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "billing_test", cfg.Database.DBName)
		assert.True(t, cfg.Ledger.AllowReversalOnCancelled)
		assert.Equal(t, 10, cfg.Alerts.DueSoonWindowDays)
		assert.Equal(t, "10000000", cfg.Alerts.HighValueThreshold)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("BILLING_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("BILLING_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects non-decimal high value threshold", func(t *testing.T) {
		clearEnv()
		os.Setenv("BILLING_ALERTS_HIGH_VALUE_THRESHOLD", "five million")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "high_value_threshold")
	})

	t.Run("rejects critical threshold at or below high threshold", func(t *testing.T) {
		clearEnv()
		os.Setenv("BILLING_ALERTS_OVERDUE_HIGH_AFTER_DAYS", "20")
		os.Setenv("BILLING_ALERTS_OVERDUE_CRITICAL_AFTER_DAYS", "20")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("rejects sweep hour out of range", func(t *testing.T) {
		clearEnv()
		os.Setenv("BILLING_SCHEDULER_SWEEP_HOUR", "24")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sweep_hour")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"BILLING_APP_ENV":           os.Getenv("BILLING_APP_ENV"),
		"BILLING_DATABASE_PASSWORD": os.Getenv("BILLING_DATABASE_PASSWORD"),
		"BILLING_DATABASE_SSLMODE":  os.Getenv("BILLING_DATABASE_SSLMODE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("BILLING_APP_ENV", "production")
		os.Setenv("BILLING_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("BILLING_APP_ENV", "production")
		os.Setenv("BILLING_DATABASE_PASSWORD", "secure-password")
		os.Setenv("BILLING_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		os.Setenv("BILLING_APP_ENV", "production")
		os.Setenv("BILLING_DATABASE_PASSWORD", "secure-password")
		os.Setenv("BILLING_DATABASE_SSLMODE", "require")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestConfig_AlertConfig(t *testing.T) {
	cfg := &Config{
		Alerts: AlertsConfig{
			DueSoonWindowDays:        7,
			OverdueHighAfterDays:     15,
			OverdueCriticalAfterDays: 30,
			HighValueThreshold:       "5000000.50",
			StaleAfterDays:           30,
		},
	}

	alertCfg, err := cfg.AlertConfig()
	require.NoError(t, err)

	assert.Equal(t, 7, alertCfg.DueSoonWindowDays)
	assert.True(t, alertCfg.HighValueThreshold.Equal(decimal.RequireFromString("5000000.50")))
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "billing_user",
			Password: "testpass",
			DBName:   "billing",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "billing_user")
		assert.Contains(t, dsn, "billing")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("handles empty password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.NotEmpty(t, dsn)
	})
}
