package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zapcore"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if !common.IsHexAddress(c.Marketplace.Address) {
		return fmt.Errorf("marketplace.address %q is not a hex address", c.Marketplace.Address)
	}
	if common.HexToAddress(c.Marketplace.Address) == (common.Address{}) {
		return errors.New("marketplace.address must not be the zero address")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	case DriverPostgres:
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.driver must be one of memory, sqlite, postgres, got %q", c.Storage.Driver)
	}

	if c.Events.Recent != nil && *c.Events.Recent < 0 {
		return errors.New("events.recent must be >= 0")
	}
	if c.Events.Webhook.URL != "" {
		u, err := url.Parse(c.Events.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("events.webhook.url %q must be an http(s) URL", c.Events.Webhook.URL)
		}
		if c.Events.Webhook.MaxRetries != nil && *c.Events.Webhook.MaxRetries < 0 {
			return errors.New("events.webhook.max_retries must be >= 0")
		}
	}
	if c.Events.Websocket.Enabled && c.Events.Websocket.Buffer < 1 {
		return errors.New("events.websocket.buffer must be >= 1")
	}
	return nil
}

func (db *PostgresConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 || db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns must be between 0 and max_conns", prefix)
	}
	return nil
}
