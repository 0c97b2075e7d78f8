package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
operator: ops
issuer: treasury
state_file: /tmp/lpvault/state.json
curve:
  symbol: BOND
  base_price: "0.5"
  slope: "0.000001"
log:
  file: ""
  development: true
metrics:
  enabled: true
  listen: 127.0.0.1:9100
persist:
  max_elapsed: 2s
journal:
  file: /tmp/lpvault/journal.csv
  flush_interval: 250ms
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "ops", cfg.Operator)
	assert.Equal(t, "treasury", cfg.Issuer)
	assert.Equal(t, DefaultVaultAddress, cfg.VaultAddress)
	assert.Equal(t, DefaultMarketAddress, cfg.MarketAddress)
	assert.Equal(t, DefaultStableSymbol, cfg.StableSymbol)
	assert.Equal(t, DefaultEventBuffer, cfg.EventBuffer)
	assert.Equal(t, "BOND", cfg.Curve.Symbol)
	assert.Equal(t, "", cfg.Log.LogFile)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, 100, cfg.Log.MaxSize)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Listen)
	assert.Equal(t, 2*time.Second, cfg.Persist.MaxElapsed)
	assert.Equal(t, 250*time.Millisecond, cfg.Journal.FlushInterval)

	params, err := cfg.CurveParams()
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), params.BasePrice.Int64())
	assert.Equal(t, int64(1), params.Slope.Int64())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LPVAULT_OPERATOR", "env-ops")
	t.Setenv("LPVAULT_CURVE_SLOPE", "2")
	t.Setenv("LPVAULT_EVENT_BUFFER", "8")

	cfg, err := LoadConfig(writeConfig(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-ops", cfg.Operator)
	assert.Equal(t, "2", cfg.Curve.Slope)
	assert.Equal(t, 8, cfg.EventBuffer)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Setenv("LPVAULT_OPERATOR", "ops")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStateFile, cfg.StateFile)
	assert.Equal(t, DefaultMaxElapsed, cfg.Persist.MaxElapsed)
	assert.Equal(t, "", cfg.Journal.File)
	assert.Equal(t, 5.0, cfg.Alerts.SharePriceDropPercent)
	assert.Equal(t, 5*time.Minute, cfg.Alerts.Cooldown)

	volume, err := cfg.TradeVolumeThreshold()
	require.NoError(t, err)
	assert.True(t, volume.IsZero())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Operator:      "ops",
			Issuer:        "treasury",
			VaultAddress:  DefaultVaultAddress,
			MarketAddress: DefaultMarketAddress,
			StateFile:     DefaultStateFile,
			EventBuffer:   DefaultEventBuffer,
			Curve:         CurveConfig{BasePrice: "0.01", Slope: "0.01"},
			Metrics:       MetricsConfig{Enabled: true, Listen: DefaultMetricsListen},
		}
	}
	require.NoError(t, validateConfig(valid()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing operator", func(c *Config) { c.Operator = "" }},
		{"blank vault address", func(c *Config) { c.VaultAddress = "  " }},
		{"operator is vault", func(c *Config) { c.Operator = c.VaultAddress }},
		{"issuer is market", func(c *Config) { c.Issuer = c.MarketAddress }},
		{"no state file", func(c *Config) { c.StateFile = "" }},
		{"zero buffer", func(c *Config) { c.EventBuffer = 0 }},
		{"zero slope", func(c *Config) { c.Curve.Slope = "0" }},
		{"bad base price", func(c *Config) { c.Curve.BasePrice = "cheap" }},
		{"negative base price", func(c *Config) { c.Curve.BasePrice = "-1" }},
		{"bad listen address", func(c *Config) { c.Metrics.Listen = "9464" }},
		{"negative max elapsed", func(c *Config) { c.Persist.MaxElapsed = -time.Second }},
		{"journal without interval", func(c *Config) { c.Journal.File = "j.csv" }},
		{"drop above 100", func(c *Config) { c.Alerts.SharePriceDropPercent = 150 }},
		{"negative loss limit", func(c *Config) { c.Alerts.LossLimitPercent = -1 }},
		{"bad trade volume", func(c *Config) { c.Alerts.TradeVolume = "lots" }},
		{"negative cooldown", func(c *Config) { c.Alerts.Cooldown = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}
