package strategy

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
)

// Format is the closed set of serialization formats a Config can round-trip
// through, the same choice the teacher's strategy export surface offered.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Marshal serializes cfg to the requested format.
func Marshal(cfg Config, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(cfg, "", "  ")
	case FormatYAML, "":
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("strategy: unsupported format %q", format)
	}
}

// Unmarshal parses a strategy Config from bytes in the given format,
// starting from DefaultConfig so omitted fields keep their defaults rather
// than zero-valuing.
func Unmarshal(data []byte, format Format) (Config, error) {
	cfg := DefaultConfig()
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &cfg)
	case FormatYAML, "":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("strategy: unsupported format %q", format)
	}
	if err != nil {
		metrics.RecordStrategyValidationFailure("unmarshal_error")
		return Config{}, fmt.Errorf("strategy: unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		metrics.RecordStrategyValidationFailure("invalid_config")
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks a Config's invariants: gate periods positive, the
// trend_ma period floors at 20, sizing fractions ordered, chunk bounds sane.
func Validate(cfg Config) error {
	if cfg.TrendMAPeriod != 0 && cfg.TrendMAPeriod < 20 {
		return fmt.Errorf("strategy: trend_ma_period must be >= 20, got %d", cfg.TrendMAPeriod)
	}
	if cfg.Sizing.MinPositionPct > cfg.Sizing.MaxPositionPct {
		return fmt.Errorf("strategy: min_position_pct (%v) exceeds max_position_pct (%v)",
			cfg.Sizing.MinPositionPct, cfg.Sizing.MaxPositionPct)
	}
	if cfg.OrderSplit.MinChunks < 2 || cfg.OrderSplit.MaxChunks > 10 || cfg.OrderSplit.MinChunks > cfg.OrderSplit.MaxChunks {
		return fmt.Errorf("strategy: split order chunk bounds must satisfy 2 <= min <= max <= 10")
	}
	if cfg.Sizing.RiskPerTrade <= 0 || cfg.Sizing.RiskPerTrade >= 1 {
		return fmt.Errorf("strategy: risk_per_trade must be in (0, 1), got %v", cfg.Sizing.RiskPerTrade)
	}
	return nil
}
