package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const DefaultLockTimeout = 2 * time.Second

type ProjectConfig struct {
	Project  string         `yaml:"project"`
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
	Worlds   []World        `yaml:"worlds"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"PIPEWORKS_DATABASE_DSN"`
}

type LedgerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Dir         string        `yaml:"dir" env:"PIPEWORKS_LEDGER_DIR"`
	LockTimeout time.Duration `yaml:"lock_timeout" env:"PIPEWORKS_LEDGER_LOCK_TIMEOUT"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" env:"PIPEWORKS_METRICS_ADDR"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"PIPEWORKS_LOG_LEVEL"`
	Format string `yaml:"format" env:"PIPEWORKS_LOG_FORMAT"`
}

// World binds a world id to the package root holding its policy files and
// lists the axes its characters carry.
type World struct {
	ID   string   `yaml:"id"`
	Root string   `yaml:"root"`
	Axes []string `yaml:"axes"`
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: parse env: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

// World returns the configured world with the given id.
func (c *ProjectConfig) World(id string) (World, bool) {
	if c == nil {
		return World{}, false
	}
	for _, world := range c.Worlds {
		if world.ID == id {
			return world, true
		}
	}
	return World{}, false
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Ledger.LockTimeout <= 0 {
		cfg.Ledger.LockTimeout = DefaultLockTimeout
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if strings.TrimSpace(cfg.Log.Format) == "" {
		cfg.Log.Format = "text"
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.Ledger.Enabled && strings.TrimSpace(cfg.Ledger.Dir) == "" {
		return fmt.Errorf("ledger dir is required when the ledger is enabled")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Log.Format)
	}
	if len(cfg.Worlds) == 0 {
		return fmt.Errorf("at least one world is required")
	}

	seen := make(map[string]struct{})
	for i, world := range cfg.Worlds {
		if strings.TrimSpace(world.ID) == "" {
			return fmt.Errorf("world %d id is required", i)
		}
		if strings.TrimSpace(world.Root) == "" {
			return fmt.Errorf("world %s root is required", world.ID)
		}
		if _, exists := seen[world.ID]; exists {
			return fmt.Errorf("duplicate world id: %s", world.ID)
		}
		seen[world.ID] = struct{}{}

		axes := make(map[string]struct{})
		for _, axis := range world.Axes {
			if strings.TrimSpace(axis) == "" {
				return fmt.Errorf("world %s has an empty axis name", world.ID)
			}
			if _, exists := axes[axis]; exists {
				return fmt.Errorf("world %s has duplicate axis: %s", world.ID, axis)
			}
			axes[axis] = struct{}{}
		}
	}

	return nil
}
