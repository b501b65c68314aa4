package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// RedisConfig configures the client of the redis that shares the settings
// between instances.
//
// Traffic is one GET per reload, one SET+PUBLISH per update and a single
// long-lived subscription, so the pool is small and no idle connections are
// kept warm.
type RedisConfig struct {
	// URL (redis:// or rediss://) replaces Host, Port, Password and DB.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT" default:"6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0" validate:"min=0,max=15"`

	TLSEnabled bool `envconfig:"TLS_ENABLED" default:"false"`

	PoolSize    int           `envconfig:"POOL_SIZE" default:"4" validate:"min=1,max=32"`
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT" default:"3s"`

	// CommandTimeout bounds each read and write on a connection.
	CommandTimeout time.Duration `envconfig:"COMMAND_TIMEOUT" default:"2s"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"2" validate:"min=0,max=10"`

	// The startup ping is retried ConnectAttempts times, doubling ConnectBackoff.
	ConnectAttempts int           `envconfig:"CONNECT_ATTEMPTS" default:"5" validate:"min=1,max=20"`
	ConnectBackoff  time.Duration `envconfig:"CONNECT_BACKOFF" default:"500ms"`
}

// Addr is the host:port to dial when no URL is set.
func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate checks the connection target and the client timeouts. It only
// runs when redis holds the settings.
func (c *RedisConfig) Validate(environment string) error {
	production := environment == EnvironmentProduction

	if c.URL != "" {
		if c.Host != "" {
			return fmt.Errorf("redis URL and host are mutually exclusive")
		}
		scheme, err := validateRedisURL(c.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		if production && scheme != "rediss" {
			return fmt.Errorf("redis URL must use rediss:// in production environment")
		}
	} else {
		if err := validateHost(c.Host, "redis"); err != nil {
			return err
		}
		if err := validatePort(c.Port, "redis"); err != nil {
			return err
		}
		if production {
			if c.Password == "" {
				return fmt.Errorf("redis password is required in production environment")
			}
			if err := validatePasswordStrength(c.Password, "redis", environment); err != nil {
				return err
			}
			if !c.TLSEnabled {
				return fmt.Errorf("redis TLS must be enabled in production environment")
			}
		}
	}

	if c.DialTimeout <= 0 || c.CommandTimeout <= 0 {
		return fmt.Errorf("redis dial and command timeouts must be positive")
	}
	if c.ConnectBackoff <= 0 {
		return fmt.Errorf("redis connect backoff must be positive, got %s", c.ConnectBackoff)
	}

	return nil
}

// validateRedisURL checks the scheme, host and optional DB path and returns the scheme.
func validateRedisURL(redisURL string) (string, error) {
	parsed, err := parseAndValidateURL(redisURL, []string{"redis", "rediss"})
	if err != nil {
		return "", err
	}

	if db := strings.TrimPrefix(parsed.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return "", fmt.Errorf("database number must be an integer, got %q", db)
		}
		if n < 0 || n > 15 {
			return "", fmt.Errorf("database number must be between 0 and 15, got %d", n)
		}
	}

	return parsed.Scheme, nil
}
