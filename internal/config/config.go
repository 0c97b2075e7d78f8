// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"cosmossdk.io/math"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/lpvault/internal/curve"
	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/logger"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

type Config struct {
	Operator      string        `mapstructure:"operator"`
	Issuer        string        `mapstructure:"issuer"`
	VaultAddress  string        `mapstructure:"vault_address"`
	MarketAddress string        `mapstructure:"market_address"`
	StateFile     string        `mapstructure:"state_file"`
	StableSymbol  string        `mapstructure:"stable_symbol"`
	EventBuffer   int           `mapstructure:"event_buffer"`
	Curve         CurveConfig   `mapstructure:"curve"`
	Log           logger.Config `mapstructure:"log"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
	Persist       PersistConfig `mapstructure:"persist"`
	Journal       JournalConfig `mapstructure:"journal"`
	Alerts        AlertsConfig  `mapstructure:"alerts"`
}

type CurveConfig struct {
	Symbol    string `mapstructure:"symbol"`
	BasePrice string `mapstructure:"base_price"`
	Slope     string `mapstructure:"slope"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type PersistConfig struct {
	MaxElapsed time.Duration `mapstructure:"max_elapsed"`
}

// JournalConfig controls the CSV activity journal. An empty File disables it.
type JournalConfig struct {
	File          string        `mapstructure:"file"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// AlertsConfig holds the operator alert thresholds. Zero disables an alert.
type AlertsConfig struct {
	SharePriceDropPercent float64       `mapstructure:"share_price_drop_percent"`
	LossLimitPercent      float64       `mapstructure:"loss_limit_percent"`
	TradeVolume           string        `mapstructure:"trade_volume"`
	Cooldown              time.Duration `mapstructure:"cooldown"`
}

const (
	DefaultVaultAddress  = "vault"
	DefaultMarketAddress = "curve"
	DefaultStateFile     = "lpvault-state.json"
	DefaultStableSymbol  = "USD"
	DefaultEventBuffer   = 256
	DefaultBasePrice     = "0.01"
	DefaultSlope         = "0.01"
	DefaultMetricsListen = "127.0.0.1:9464"
	DefaultMaxElapsed    = 5 * time.Second
	DefaultFlushInterval = time.Second
)

const envPrefix = "LPVAULT"

func setDefaults(v *viper.Viper) {
	logDefaults := logger.DefaultConfig()
	defaults := map[string]interface{}{
		"operator":               "",
		"issuer":                 "",
		"vault_address":          DefaultVaultAddress,
		"market_address":         DefaultMarketAddress,
		"state_file":             DefaultStateFile,
		"stable_symbol":          DefaultStableSymbol,
		"event_buffer":           DefaultEventBuffer,
		"curve.symbol":           curve.DefaultSymbol,
		"curve.base_price":       DefaultBasePrice,
		"curve.slope":            DefaultSlope,
		"log.file":               logDefaults.LogFile,
		"log.max_size":           logDefaults.MaxSize,
		"log.max_age":            logDefaults.MaxAge,
		"log.max_backups":        logDefaults.MaxBackups,
		"log.compress":           logDefaults.Compress,
		"log.development":        logDefaults.Development,
		"metrics.enabled":        false,
		"metrics.listen":         DefaultMetricsListen,
		"persist.max_elapsed":    DefaultMaxElapsed,
		"journal.file":           "",
		"journal.flush_interval": DefaultFlushInterval,

		"alerts.share_price_drop_percent": 5.0,
		"alerts.loss_limit_percent":       10.0,
		"alerts.trade_volume":             "",
		"alerts.cooldown":                 5 * time.Minute,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// LoadConfig reads path (any format viper understands) and applies LPVAULT_*
// environment overrides. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.Operator == "" {
		return errors.New("missing operator in configuration")
	}
	addrs := map[string]string{
		"operator":       cfg.Operator,
		"vault_address":  cfg.VaultAddress,
		"market_address": cfg.MarketAddress,
	}
	if cfg.Issuer != "" {
		addrs["issuer"] = cfg.Issuer
	}
	seen := make(map[string]string, len(addrs))
	for key, raw := range addrs {
		if _, err := types.ParseAddress(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if other, dup := seen[raw]; dup {
			return fmt.Errorf("%s and %s must differ", other, key)
		}
		seen[raw] = key
	}
	if cfg.StateFile == "" {
		return errors.New("state_file is empty")
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	if _, err := cfg.CurveParams(); err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("invalid metrics.listen: %w", err)
		}
	}
	if cfg.Persist.MaxElapsed < 0 {
		return errors.New("invalid persist.max_elapsed")
	}
	if cfg.Journal.File != "" && cfg.Journal.FlushInterval <= 0 {
		return errors.New("invalid journal.flush_interval")
	}
	for key, pct := range map[string]float64{
		"alerts.share_price_drop_percent": cfg.Alerts.SharePriceDropPercent,
		"alerts.loss_limit_percent":       cfg.Alerts.LossLimitPercent,
	} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("invalid %s: %v is outside [0, 100]", key, pct)
		}
	}
	if _, err := cfg.TradeVolumeThreshold(); err != nil {
		return err
	}
	if cfg.Alerts.Cooldown < 0 {
		return errors.New("invalid alerts.cooldown")
	}
	return nil
}

// TradeVolumeThreshold parses alerts.trade_volume into raw units; empty is zero.
func (c *Config) TradeVolumeThreshold() (math.Int, error) {
	if c.Alerts.TradeVolume == "" {
		return math.ZeroInt(), nil
	}
	v, err := fixedpoint.Parse(c.Alerts.TradeVolume, false)
	if err != nil {
		return math.Int{}, fmt.Errorf("invalid alerts.trade_volume: %w", err)
	}
	return v, nil
}

// CurveParams parses the decimal curve settings into raw units.
func (c *Config) CurveParams() (curve.Params, error) {
	base, err := fixedpoint.Parse(c.Curve.BasePrice, false)
	if err != nil {
		return curve.Params{}, fmt.Errorf("invalid curve.base_price: %w", err)
	}
	slope, err := fixedpoint.Parse(c.Curve.Slope, false)
	if err != nil {
		return curve.Params{}, fmt.Errorf("invalid curve.slope: %w", err)
	}
	p := curve.Params{BasePrice: base, Slope: slope}
	if err := p.Validate(); err != nil {
		return curve.Params{}, err
	}
	return p, nil
}
