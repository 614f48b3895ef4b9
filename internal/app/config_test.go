package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.False(t, cfg.Lifecycle.Strict)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, 72*time.Hour, cfg.Sweeper.GraceWindow)
	assert.Equal(t, 4, cfg.Sweeper.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("LEDGER_DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("LEDGER_LIFECYCLE_STRICT", "true")
	t.Setenv("LEDGER_SWEEPER_GRACE_WINDOW", "24h")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/ledger", cfg.DatabaseURL)
	assert.True(t, cfg.Lifecycle.Strict)
	assert.Equal(t, 24*time.Hour, cfg.Sweeper.Sweeper().GraceWindow)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_PlatformDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
}

func TestLoadConfig_InvalidInterval(t *testing.T) {
	t.Setenv("LEDGER_SWEEPER_INTERVAL", "0s")

	_, err := LoadConfig([]string{})
	require.Error(t, err)
}
