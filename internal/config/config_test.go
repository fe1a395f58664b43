package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
server:
  addr: ":9000"
marketplace:
  address: "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
  reentrancy_guard: true
storage:
  driver: sqlite
  sqlite:
    path: /tmp/market.db
events:
  webhook:
    url: http://indexer.local/events
    timeout: 2s
`
	cfg, err := Load(writeTempFile(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", cfg.Marketplace.Address)
	assert.True(t, cfg.Marketplace.ReentrancyGuard)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/market.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, 2*time.Second, cfg.Events.Webhook.Timeout)
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
storage:
  driver: postgres
  postgres:
    host: localhost
    name: market
    user: market
    password: ${TEST_DB_PASSWORD}
`
	cfg, err := LoadAndValidate(writeTempFile(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "secret123", cfg.Storage.Postgres.Password)
	assert.Equal(t, DefaultDBPort, cfg.Storage.Postgres.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultMarketplaceAddress, cfg.Marketplace.Address)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, DefaultWebsocketPath, cfg.Events.Websocket.Path)
	require.NotNil(t, cfg.Events.Recent)
	assert.Equal(t, DefaultRecentEvents, *cfg.Events.Recent)
	require.NotNil(t, cfg.Events.Webhook.MaxRetries)
	assert.Equal(t, DefaultWebhookRetries, *cfg.Events.Webhook.MaxRetries)
	assert.NoError(t, cfg.Validate())
}

func TestLoadKeepsExplicitZero(t *testing.T) {
	yaml := `
events:
  recent: 0
  webhook:
    url: http://indexer.local/events
    max_retries: 0
`
	cfg, err := LoadAndValidate(writeTempFile(t, yaml))
	require.NoError(t, err)
	require.NotNil(t, cfg.Events.Recent)
	assert.Equal(t, 0, *cfg.Events.Recent, "0 keeps every event")
	require.NotNil(t, cfg.Events.Webhook.MaxRetries)
	assert.Equal(t, 0, *cfg.Events.Webhook.MaxRetries, "0 disables retries")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad marketplace address", func(c *Config) { c.Marketplace.Address = "not-an-address" }},
		{"zero marketplace address", func(c *Config) { c.Marketplace.Address = "0x0000000000000000000000000000000000000000" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"postgres without host", func(c *Config) {
			c.Storage.Driver = DriverPostgres
			c.Storage.Postgres.Name = "market"
			c.Storage.Postgres.User = "market"
		}},
		{"webhook without scheme", func(c *Config) { c.Events.Webhook.URL = "indexer.local/events" }},
		{"negative recent", func(c *Config) { c.Events.Recent = intPtr(-1) }},
		{"negative webhook retries", func(c *Config) {
			c.Events.Webhook.URL = "http://indexer.local/events"
			c.Events.Webhook.MaxRetries = intPtr(-1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
