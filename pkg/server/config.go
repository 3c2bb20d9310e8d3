// Package server wires the registry, schema, session, release, and audit
// components into one HTTP service.
package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from an optional YAML file with
// environment-variable overrides.
type Config struct {
	Listen       string   `yaml:"listen"`
	DatabaseType string   `yaml:"databaseType"`
	DatabaseDSN  string   `yaml:"databaseDsn"`
	SchemaDir    string   `yaml:"schemaDir"`
	CORSOrigins  []string `yaml:"corsOrigins"`

	SweepEnabled         bool `yaml:"sweepEnabled"`
	SweepIntervalMinutes int  `yaml:"sweepIntervalMinutes"`

	AuditRetentionDays int `yaml:"auditRetentionDays"`
}

// SweepInterval returns the sweep interval as a duration, defaulting to one
// hour when unset.
func (c *Config) SweepInterval() time.Duration {
	if c.SweepIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:               ":8080",
		DatabaseType:         "sqlite",
		DatabaseDSN:          "registry.db",
		SchemaDir:            "schemas",
		CORSOrigins:          []string{"http://localhost:3000"},
		SweepEnabled:         false,
		SweepIntervalMinutes: 60,
		AuditRetentionDays:   90,
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults
// when the file does not exist, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides config fields from REGISTRY_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("REGISTRY_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("REGISTRY_DATABASE_TYPE"); v != "" {
		c.DatabaseType = v
	}
	if v := os.Getenv("REGISTRY_DATABASE_DSN"); v != "" {
		c.DatabaseDSN = v
	}
	if v := os.Getenv("REGISTRY_SCHEMA_DIR"); v != "" {
		c.SchemaDir = v
	}
	if v := os.Getenv("REGISTRY_SWEEP_ENABLED"); v != "" {
		c.SweepEnabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("REGISTRY_SWEEP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SweepIntervalMinutes = n
		}
	}
	if v := os.Getenv("REGISTRY_AUDIT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.AuditRetentionDays = n
		}
	}
}
