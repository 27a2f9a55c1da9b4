package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "http://localhost:3001", cfg.Sync.TargetURL)
	assert.Equal(t, "/api/sync", cfg.Sync.EndpointPath)
	assert.Equal(t, 300000*time.Millisecond, cfg.Sync.Interval)
	assert.Equal(t, 30*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, 500, cfg.Sync.BatchSize)
	assert.False(t, cfg.Sync.IncludeState)
	assert.True(t, cfg.Sync.Enabled)
	assert.False(t, cfg.LeaderElection.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYNC_TARGET_URL", "http://indexer:3001")
	t.Setenv("SYNC_INTERVAL_MS", "60000")
	t.Setenv("SYNC_TIMEOUT", "5s")
	t.Setenv("SYNC_INCLUDE_STATE", "true")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/data/a.db")
	t.Setenv("LEADER_ELECTION_IDENTITY", "pod-a")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://indexer:3001", cfg.Sync.TargetURL)
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 5*time.Second, cfg.Sync.Timeout)
	assert.True(t, cfg.Sync.IncludeState)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/data/a.db", cfg.Store.SQLite.Path)
	assert.Equal(t, "pod-a", cfg.LeaderElection.Identity)
}

func TestLoad_Fallbacks(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_MS", "-1")
	t.Setenv("SYNC_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 300000*time.Millisecond, cfg.Sync.Interval)
	assert.Equal(t, 30*time.Second, cfg.Sync.Timeout)
}

func TestLoad_UnsupportedDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_ConfigFileUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "sync_target_url: http://from-file:3001\nsync_batch_size: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SYNC_BATCH_SIZE", "25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:3001", cfg.Sync.TargetURL)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "svc", Password: "p@ss", Name: "artifacts", SSLMode: "require"}
	assert.Equal(t, "postgres://svc:p%40ss@db:5432/artifacts?sslmode=require", d.DSN())
}
