package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"erptools/internal/logger"
	"erptools/internal/pricing"
	"erptools/internal/reconciliation"
)

type Config struct {
	// Pricing
	DefaultMarkup decimal.Decimal
	MarkupMax     decimal.Decimal

	// Payable schedule suggestion
	InstallmentCount        int
	InstallmentIntervalDays int
	ReconciliationTolerance decimal.Decimal

	// Files
	PaymentTermsFile string
	OutputDir        string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	const op = "config.Load"

	defaultMarkup, err := getDecimal("DEFAULT_MARKUP", "30")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	markupMax, err := getDecimal("MARKUP_MAX", "500")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tolerance, err := getDecimal("RECONCILIATION_TOLERANCE", "0.01")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	count, err := getInt("INSTALLMENT_COUNT", 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	interval, err := getInt("INSTALLMENT_INTERVAL_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	config := &Config{
		DefaultMarkup:           defaultMarkup,
		MarkupMax:               markupMax,
		InstallmentCount:        count,
		InstallmentIntervalDays: interval,
		ReconciliationTolerance: tolerance,
		PaymentTermsFile:        getEnv("PAYMENT_TERMS_FILE", ""),
		OutputDir:               getEnv("OUTPUT_DIR", "."),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:           getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:               getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DefaultMarkup.IsNegative() {
		return fmt.Errorf("DEFAULT_MARKUP must not be negative")
	}
	if c.MarkupMax.IsNegative() {
		return fmt.Errorf("MARKUP_MAX must not be negative")
	}
	// zero disables the upper bound
	if c.MarkupMax.IsPositive() && c.MarkupMax.LessThan(c.DefaultMarkup) {
		return fmt.Errorf("MARKUP_MAX (%s) is below DEFAULT_MARKUP (%s)", c.MarkupMax, c.DefaultMarkup)
	}
	if c.InstallmentCount < 1 {
		return fmt.Errorf("INSTALLMENT_COUNT must be at least 1")
	}
	if c.InstallmentIntervalDays < 0 {
		return fmt.Errorf("INSTALLMENT_INTERVAL_DAYS must not be negative")
	}
	if !c.ReconciliationTolerance.IsPositive() {
		return fmt.Errorf("RECONCILIATION_TOLERANCE must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// MarkupBounds returns the range accepted at the markup input boundary
func (c *Config) MarkupBounds() pricing.Bounds {
	return pricing.Bounds{Min: decimal.Zero, Max: c.MarkupMax}
}

// SessionOptions returns the defaults applied to every reconciliation session
func (c *Config) SessionOptions() reconciliation.Options {
	return reconciliation.Options{
		DefaultMarkup:    c.DefaultMarkup,
		MarkupBounds:     c.MarkupBounds(),
		InstallmentCount: c.InstallmentCount,
		IntervalDays:     c.InstallmentIntervalDays,
		Tolerance:        c.ReconciliationTolerance,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func getDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return value, nil
}
