package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Scanner.Provider.Source = "bloomberg"
	cfg.Scanner.Simulation.BaseDate = "01-01-2024"
	cfg.Scanner.Scan.Breakout.MaxGap = 2.0

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "scanner.provider.source")
	assert.Contains(t, err.Error(), "scanner.simulation.base_date")
	assert.Contains(t, err.Error(), "scanner.scan.breakout.max_gap")
}

func TestLoadAppliesYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
env: test
scanner:
  http_port: 9090
  simulation:
    enabled: true
    base_date: "2024-01-01"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("DB_NAME", "scanner_test")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, 9090, cfg.Scanner.HTTPPort)
	assert.True(t, cfg.Scanner.Simulation.Enabled)
	assert.Equal(t, "scanner_test", cfg.Scanner.Database.Name)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.Scanner.Provider.Breaker.FailureThreshold)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Scanner.HTTPPort, cfg.Scanner.HTTPPort)
}
