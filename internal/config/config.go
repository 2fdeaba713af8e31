package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDSN   = "sqlite:main.db"
	DefaultTable = "schema_migrations"
)

type Config struct {
	DSN             string `yaml:"dsn" env:"DB_DSN"`
	DataDir         string `yaml:"data_dir" env:"DATA_DIR"`
	Dir             string `yaml:"dir" env:"MIGRATIONS_DIR"`
	JSON            bool   `yaml:"json" env:"LOG_JSON"`
	DryRun          bool   `yaml:"dry_run" env:"DRY_RUN"`
	LockTimeoutSec  int    `yaml:"lock_timeout_sec" env:"LOCK_TIMEOUT_SEC"`
	MigrationsTable string `yaml:"migrations_table" env:"MIGRATIONS_TABLE"`
	AppliedBy       string `yaml:"applied_by" env:"APPLIED_BY"`
}

func Default() *Config {
	return &Config{
		DSN:             DefaultDSN,
		LockTimeoutSec:  30,
		MigrationsTable: DefaultTable,
	}
}

// LoadYAML reads path over the defaults. An empty path yields the defaults.
func LoadYAML(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// MergeEnv overlays variables that are set in the environment. Unset
// variables leave the current value alone.
func MergeEnv(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) LockTimeout() time.Duration {
	if c.LockTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LockTimeoutSec) * time.Second
}

// Validate rejects configurations that cannot boot.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if c.MigrationsTable == "" {
		return fmt.Errorf("migrations table name is required")
	}
	return nil
}
