package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "schemas", cfg.SchemaDir)
	assert.False(t, cfg.SweepEnabled)
	assert.Equal(t, 90, cfg.AuditRetentionDays)
}

func TestLoadConfig_MissingFileFallsBack(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
databaseType: postgres
databaseDsn: "host=db user=registry"
schemaDir: /etc/registry/schemas
sweepEnabled: true
sweepIntervalMinutes: 30
auditRetentionDays: 14
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "/etc/registry/schemas", cfg.SchemaDir)
	assert.True(t, cfg.SweepEnabled)
	assert.Equal(t, 30*time.Minute, cfg.SweepInterval())
	assert.Equal(t, 14, cfg.AuditRetentionDays)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("REGISTRY_LISTEN", ":7070")
	t.Setenv("REGISTRY_DATABASE_TYPE", "mysql")
	t.Setenv("REGISTRY_SWEEP_ENABLED", "true")
	t.Setenv("REGISTRY_SWEEP_INTERVAL_MINUTES", "15")
	t.Setenv("REGISTRY_AUDIT_RETENTION_DAYS", "7")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "mysql", cfg.DatabaseType)
	assert.True(t, cfg.SweepEnabled)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval())
	assert.Equal(t, 7, cfg.AuditRetentionDays)
}
