package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DEFAULT_MARKUP", "MARKUP_MAX", "RECONCILIATION_TOLERANCE",
		"INSTALLMENT_COUNT", "INSTALLMENT_INTERVAL_DAYS",
		"PAYMENT_TERMS_FILE", "OUTPUT_DIR",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DefaultMarkup.Equal(decimal.NewFromInt(30)))
	assert.True(t, cfg.MarkupMax.Equal(decimal.NewFromInt(500)))
	assert.True(t, cfg.ReconciliationTolerance.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, 1, cfg.InstallmentCount)
	assert.Equal(t, 30, cfg.InstallmentIntervalDays)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "stderr", cfg.LogOutput)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_MARKUP", "45.5")
	t.Setenv("INSTALLMENT_COUNT", "3")
	t.Setenv("PAYMENT_TERMS_FILE", "terms.yaml")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DefaultMarkup.Equal(decimal.RequireFromString("45.5")))
	assert.Equal(t, 3, cfg.InstallmentCount)
	assert.Equal(t, "terms.yaml", cfg.PaymentTermsFile)
	assert.Equal(t, "json", cfg.GetLoggerConfig().Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "markup not a number", key: "DEFAULT_MARKUP", value: "thirty"},
		{name: "negative markup", key: "DEFAULT_MARKUP", value: "-1"},
		{name: "maximum below default", key: "MARKUP_MAX", value: "10"},
		{name: "negative maximum", key: "MARKUP_MAX", value: "-1"},
		{name: "count not an integer", key: "INSTALLMENT_COUNT", value: "two"},
		{name: "count below one", key: "INSTALLMENT_COUNT", value: "0"},
		{name: "negative interval", key: "INSTALLMENT_INTERVAL_DAYS", value: "-30"},
		{name: "zero tolerance", key: "RECONCILIATION_TOLERANCE", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSessionOptions(t *testing.T) {
	clearEnv(t)
	t.Setenv("MARKUP_MAX", "200")
	t.Setenv("INSTALLMENT_INTERVAL_DAYS", "15")

	cfg, err := Load()
	require.NoError(t, err)

	opts := cfg.SessionOptions()
	assert.True(t, opts.DefaultMarkup.Equal(decimal.NewFromInt(30)))
	assert.True(t, opts.MarkupBounds.Max.Equal(decimal.NewFromInt(200)))
	assert.True(t, opts.MarkupBounds.Min.IsZero())
	assert.Equal(t, 15, opts.IntervalDays)
	assert.True(t, opts.Tolerance.Equal(cfg.ReconciliationTolerance))

	clamped, err := opts.MarkupBounds.Accept(decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.True(t, clamped.Equal(decimal.NewFromInt(200)))
}

func TestLoad_UnboundedMarkup(t *testing.T) {
	clearEnv(t)
	t.Setenv("MARKUP_MAX", "0")

	cfg, err := Load()
	require.NoError(t, err)

	accepted, err := cfg.MarkupBounds().Accept(decimal.NewFromInt(900))
	require.NoError(t, err)
	assert.True(t, accepted.Equal(decimal.NewFromInt(900)))
}
