// Package config loads Covenant configuration from defaults, an optional
// YAML file, a .env file and COVENANT_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/covenant/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. COVENANT_SERVER_PORT.
const EnvPrefix = "COVENANT"

// Load builds the configuration. Later sources win:
//  1. DefaultConfig, or ProConfig when COVENANT_TIER=pro
//  2. the YAML file at path, if path is not empty
//  3. COVENANT_* environment variables, including those from ./.env
func Load(path string) (*domain.Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	base := domain.DefaultConfig()
	if strings.EqualFold(os.Getenv(EnvPrefix+"_TIER"), string(domain.TierPro)) {
		base = domain.ProConfig()
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults go in as a YAML document so every key is known to viper,
	// which AutomaticEnv needs to resolve nested overrides.
	defaults, err := yaml.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to read defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg domain.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the components would fail on later.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	switch cfg.Tier {
	case domain.TierCommunity, domain.TierPro:
	default:
		return fmt.Errorf("unknown tier %q", cfg.Tier)
	}

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported repository driver %q", cfg.Repository.Driver)
	}

	switch cfg.Cache.Type {
	case "", "none", "memory", "ttl", "redis":
	default:
		return fmt.Errorf("unsupported cache type %q", cfg.Cache.Type)
	}

	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("unsupported event bus type %q", cfg.EventBus.Type)
	}

	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Logging.Format)
	}

	e := cfg.Engine
	if e.ClauseMediumThreshold > e.ClauseHighThreshold {
		return fmt.Errorf("clause medium threshold %v above high threshold %v", e.ClauseMediumThreshold, e.ClauseHighThreshold)
	}
	if e.ContractMediumThreshold > e.ContractHighThreshold {
		return fmt.Errorf("contract medium threshold %v above high threshold %v", e.ContractMediumThreshold, e.ContractHighThreshold)
	}
	if e.FallbackMinClauses < 1 {
		return fmt.Errorf("fallbackMinClauses must be at least 1")
	}

	return nil
}

// ParseLevel maps a LoggingConfig level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// Redacted returns a copy of cfg with credentials masked, for display.
func Redacted(cfg *domain.Config) *domain.Config {
	out := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.Repository.PostgresPassword = mask(out.Repository.PostgresPassword)
	out.Cache.RedisPassword = mask(out.Cache.RedisPassword)
	out.EventBus.NATSToken = mask(out.EventBus.NATSToken)
	return &out
}

// Marshal renders cfg as YAML.
func Marshal(cfg *domain.Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}
