package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	alertdomain "github.com/erp/billing/internal/domain/alert"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	Ledger    LedgerConfig
	Alerts    AlertsConfig
	Scheduler SchedulerConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// LedgerConfig holds the ledger policy flags
type LedgerConfig struct {
	AllowReversalOnCancelled bool
	AllowCancelWithPayments  bool
}

// AlertsConfig holds the alert rule thresholds. HighValueThreshold is a
// decimal string so amounts survive the config round trip exactly.
type AlertsConfig struct {
	DueSoonWindowDays        int
	OverdueHighAfterDays     int
	OverdueCriticalAfterDays int
	HighValueThreshold       string
	StaleAfterDays           int
}

// SchedulerConfig holds the daily sweep scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	SweepHour         int // local hour of day the daily sweep fires
	SweepMinute       int
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	BatchSize         int
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BILLING_ prefix (e.g., BILLING_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Ledger: LedgerConfig{
			AllowReversalOnCancelled: v.GetBool("ledger.allow_reversal_on_cancelled"),
			AllowCancelWithPayments:  v.GetBool("ledger.allow_cancel_with_payments"),
		},
		Alerts: AlertsConfig{
			DueSoonWindowDays:        v.GetInt("alerts.due_soon_window_days"),
			OverdueHighAfterDays:     v.GetInt("alerts.overdue_high_after_days"),
			OverdueCriticalAfterDays: v.GetInt("alerts.overdue_critical_after_days"),
			HighValueThreshold:       v.GetString("alerts.high_value_threshold"),
			StaleAfterDays:           v.GetInt("alerts.stale_after_days"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			SweepHour:         v.GetInt("scheduler.sweep_hour"),
			SweepMinute:       v.GetInt("scheduler.sweep_minute"),
			MaxConcurrentJobs: v.GetInt("scheduler.max_concurrent_jobs"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:     v.GetInt("scheduler.retry_attempts"),
			RetryDelay:        v.GetDuration("scheduler.retry_delay"),
			BatchSize:         v.GetInt("scheduler.batch_size"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "billing-core"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "billing"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	defaults := alertdomain.DefaultConfig()
	if cfg.Alerts.DueSoonWindowDays == 0 {
		cfg.Alerts.DueSoonWindowDays = defaults.DueSoonWindowDays
	}
	if cfg.Alerts.OverdueHighAfterDays == 0 {
		cfg.Alerts.OverdueHighAfterDays = defaults.OverdueHighAfterDays
	}
	if cfg.Alerts.OverdueCriticalAfterDays == 0 {
		cfg.Alerts.OverdueCriticalAfterDays = defaults.OverdueCriticalAfterDays
	}
	if cfg.Alerts.HighValueThreshold == "" {
		cfg.Alerts.HighValueThreshold = defaults.HighValueThreshold.String()
	}
	if cfg.Alerts.StaleAfterDays == 0 {
		cfg.Alerts.StaleAfterDays = defaults.StaleAfterDays
	}

	if cfg.Scheduler.SweepHour == 0 && cfg.Scheduler.SweepMinute == 0 {
		cfg.Scheduler.SweepHour = 6
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 2
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = 30 * time.Second
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 200
	}
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Scheduler.SweepHour < 0 || c.Scheduler.SweepHour > 23 {
		return fmt.Errorf("scheduler.sweep_hour must be between 0 and 23, got %d", c.Scheduler.SweepHour)
	}
	if c.Scheduler.SweepMinute < 0 || c.Scheduler.SweepMinute > 59 {
		return fmt.Errorf("scheduler.sweep_minute must be between 0 and 59, got %d", c.Scheduler.SweepMinute)
	}

	// Alert thresholds get the full domain validation; a bad threshold
	// must fail startup, not the first sweep.
	if _, err := c.AlertConfig(); err != nil {
		return err
	}
	return nil
}

// AlertConfig converts the raw alert section into the domain config,
// validating thresholds and the decimal threshold string.
func (c *Config) AlertConfig() (alertdomain.Config, error) {
	threshold, err := decimal.NewFromString(c.Alerts.HighValueThreshold)
	if err != nil {
		return alertdomain.Config{}, fmt.Errorf("alerts.high_value_threshold is not a valid decimal: %w", err)
	}
	cfg := alertdomain.Config{
		DueSoonWindowDays:        c.Alerts.DueSoonWindowDays,
		OverdueHighAfterDays:     c.Alerts.OverdueHighAfterDays,
		OverdueCriticalAfterDays: c.Alerts.OverdueCriticalAfterDays,
		HighValueThreshold:       threshold,
		StaleAfterDays:           c.Alerts.StaleAfterDays,
	}
	if err := cfg.Validate(); err != nil {
		return alertdomain.Config{}, err
	}
	return cfg, nil
}

// LedgerPolicy converts the ledger section into the service policy
func (c *Config) LedgerPolicy() (allowReversalOnCancelled, allowCancelWithPayments bool) {
	return c.Ledger.AllowReversalOnCancelled, c.Ledger.AllowCancelWithPayments
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
