package config_test

import (
	"testing"
	"time"

	"aidigest/internal/config"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TOKEN", "123:abc")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "db.sqlite", cfg.DBPath)
	require.Equal(t, 5, cfg.BatchCap)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, 30*time.Second, cfg.TickInterval)
	require.Equal(t, time.Minute, cfg.RefreshReuseWindow)
	require.Equal(t, 5*time.Minute, cfg.CycleTimeout)
	require.Equal(t, 30*time.Second, cfg.ShutdownGrace)
	require.Empty(t, cfg.AllowedUsers)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("TOKEN", "123:abc")
	t.Setenv("ALLOWED_USERS", "1,2,3")
	t.Setenv("BATCH_CAP", "3")
	t.Setenv("TICK_INTERVAL", "10s")
	t.Setenv("TIMEZONE", "Europe/Moscow")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	require.Equal(t, []int64{1, 2, 3}, cfg.AllowedUsers)
	require.Equal(t, 3, cfg.BatchCap)
	require.Equal(t, 10*time.Second, cfg.TickInterval)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Europe/Moscow", loc.String())
}

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("TOKEN", "")

	_, err := config.LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("TOKEN", "123:abc")
	t.Setenv("WORKERS", "0")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := config.LoadConfig()
	require.ErrorContains(t, err, "WORKERS")
	require.ErrorContains(t, err, "Mars/Olympus")
}
