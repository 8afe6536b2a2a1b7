// internal/config/write_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinedex", "config.toml")

	require.NoError(t, WriteDefault(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[server]")
	assert.Contains(t, string(content), "[feed]")
	assert.Contains(t, string(content), "${CINEDEX_OUTBOUND_URL")
}

func TestWriteDefault_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 1\n"), 0o644))

	assert.Error(t, WriteDefault(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[server]\nport = 1\n", string(content))
}

func TestWriteDefault_Loads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, 720*time.Hour, cfg.Events.Retention)
	assert.Equal(t, "http://127.0.0.1:8586/send", cfg.Transport.OutboundURL)
}

func TestConfig_WriteRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 9000
	cfg.Bot.AllowedUsers = []int64{42}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, cfg.Write(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, got.Server.Port)
	assert.Equal(t, []int64{42}, got.Bot.AllowedUsers)
	assert.Equal(t, cfg.Dispatch.Pace, got.Dispatch.Pace)
	assert.Equal(t, cfg.Feed.Extensions, got.Feed.Extensions)
}
