package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr               = ":8081"
	DefaultShutdownTimeout    = 10 * time.Second
	DefaultLogLevel           = "info"
	DefaultMarketplaceAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	DefaultDriver             = DriverMemory
	DefaultSQLitePath         = "marketplace.db"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 1
	DefaultRecentEvents       = 256
	DefaultWebhookTimeout     = 5 * time.Second
	DefaultWebhookRetries     = 3
	DefaultWebhookQueueSize   = 1024
	DefaultWebsocketPath      = "/events/ws"
	DefaultWebsocketBuffer    = 64
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ApplyDefaults fills zero-valued optional fields. Pointer fields are filled only when
// absent, so an explicit 0 is kept.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Marketplace.Address == "" {
		c.Marketplace.Address = DefaultMarketplaceAddress
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultDriver
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = DefaultSQLitePath
	}
	pg := &c.Storage.Postgres
	if pg.Port == 0 {
		pg.Port = DefaultDBPort
	}
	if pg.SSLMode == "" {
		pg.SSLMode = DefaultDBSSLMode
	}
	if pg.MaxConns == 0 {
		pg.MaxConns = DefaultMaxConns
	}
	if pg.MinConns == 0 {
		pg.MinConns = DefaultMinConns
	}

	if c.Events.Recent == nil {
		c.Events.Recent = intPtr(DefaultRecentEvents)
	}
	if c.Events.Webhook.Timeout == 0 {
		c.Events.Webhook.Timeout = DefaultWebhookTimeout
	}
	if c.Events.Webhook.MaxRetries == nil {
		c.Events.Webhook.MaxRetries = intPtr(DefaultWebhookRetries)
	}
	if c.Events.Webhook.QueueSize == 0 {
		c.Events.Webhook.QueueSize = DefaultWebhookQueueSize
	}
	if c.Events.Websocket.Path == "" {
		c.Events.Websocket.Path = DefaultWebsocketPath
	}
	if c.Events.Websocket.Buffer == 0 {
		c.Events.Websocket.Buffer = DefaultWebsocketBuffer
	}
}

func intPtr(v int) *int { return &v }
