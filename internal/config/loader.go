package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // timezone validation must not depend on the host zoneinfo

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "RAIDEP_"
	EnvConfigFile = "RAIDEP_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if RAIDEP_CONFIG is set
//  3. env (prefix RAIDEP_)
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(EnvConfigFile))
}

// LoadFile is Load with an explicit file path; an empty path skips the file layer.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like RAIDEP_QUEUE_SIZE -> queue_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if len(cfg.Raids) == 0 {
		cfg.Raids = DefaultRaids()
	}
	if len(cfg.Bosses) == 0 {
		cfg.Bosses = DefaultBosses()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the scalar settings. Reference data is checked by Catalog.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.MaxStandingsLimit <= 0 {
		return fmt.Errorf("%w: max_standings_limit must be positive, got %d", ErrInvalidConfig, c.MaxStandingsLimit)
	}
	if c.DedupeSize < 0 {
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	}
	if c.LogYear < 0 {
		return fmt.Errorf("%w: log_year must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := checkThresholds("defaults", c.DefaultRequiredUptime, c.DefaultMinimumUptime); err != nil {
		return err
	}
	for _, r := range c.Raids {
		req, minimum, _ := c.raidThresholds(r)
		if err := checkThresholds(r.Name, req, minimum); err != nil {
			return err
		}
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

func checkThresholds(name string, required, minimum float64) error {
	if required < 0 || required > 1 || minimum < 0 || minimum > 1 {
		return fmt.Errorf("%w: %s: uptime thresholds must be within [0, 1]", ErrInvalidConfig, name)
	}
	if minimum > required {
		return fmt.Errorf("%w: %s: minimum uptime %.2f exceeds required uptime %.2f",
			ErrInvalidConfig, name, minimum, required)
	}
	return nil
}
