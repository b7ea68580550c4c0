package config

import (
	"fmt"
	"time"

	"github.com/vargaseous/sec-mcptest/errors"
)

// Validate checks the configuration for values the components cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.ConfigInvalid("server.addr is required")
	}

	switch c.Store.Backend {
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.ConfigInvalid("store.redis.addr is required for the redis backend")
		}
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			return errors.ConfigInvalid("store.sqlite.path is required for the sqlite backend")
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown store backend %q (want redis, memory or sqlite)", c.Store.Backend)).
			WithDetail("backend", c.Store.Backend)
	}

	if c.Store.Key == "" {
		return errors.ConfigInvalid("store.key is required")
	}
	if c.Store.Channel == "" {
		return errors.ConfigInvalid("store.channel is required")
	}
	if err := validatePositive("store.op_timeout", c.Store.OpTimeout); err != nil {
		return err
	}
	if err := validatePositive("poll.interval", c.Poll.Interval); err != nil {
		return err
	}
	if err := validatePositive("poll.check_timeout", c.Poll.CheckTimeout); err != nil {
		return err
	}
	if c.Poll.CheckTimeout.Std() >= time.Second {
		return errors.ConfigInvalid("poll.check_timeout must be below one second")
	}
	if err := validatePositive("client.timeout", c.Client.Timeout); err != nil {
		return err
	}
	if c.Dataset.ClassField == "" {
		return errors.ConfigInvalid("dataset.class_field is required")
	}

	return nil
}

func validatePositive(field string, d Duration) error {
	if d <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("%s must be positive, got %s", field, d.Std())).
			WithDetail("field", field)
	}
	return nil
}
