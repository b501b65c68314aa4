package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// PostgresConfig configures the pool of the database holding the settings row.
//
// While the settings are watched one connection stays checked out for
// LISTEN; the rest serve loads and saves, which are rare.
type PostgresConfig struct {
	// URL (postgres:// or postgresql://) replaces the individual fields.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT" default:"5432"`
	Name     string `envconfig:"NAME" default:"indexgate"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`

	SSLMode string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	MaxConns        int           `envconfig:"MAX_CONNS" default:"4" validate:"min=2,max=32"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"10m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`
}

// ConnectionString returns URL when set, otherwise a URL built from the fields.
func (c *PostgresConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Validate checks the connection target and pool bounds. It only runs when
// postgres holds the settings.
func (c *PostgresConfig) Validate(environment string) error {
	production := environment == EnvironmentProduction

	if c.URL != "" {
		if c.Host != "" {
			return fmt.Errorf("postgres URL and host are mutually exclusive")
		}
		if err := validatePostgresURL(c.URL, production); err != nil {
			return fmt.Errorf("invalid postgres URL: %w", err)
		}
	} else {
		if err := validateHost(c.Host, "postgres"); err != nil {
			return err
		}
		if err := validatePort(c.Port, "postgres"); err != nil {
			return err
		}
		if err := validateNoWhitespace(c.Name, "postgres database name"); err != nil {
			return err
		}
		if len(c.Name) > 63 {
			return fmt.Errorf("postgres database name cannot exceed 63 characters")
		}
		if err := validateNoWhitespace(c.User, "postgres user"); err != nil {
			return err
		}
		if production {
			if c.Password == "" {
				return fmt.Errorf("postgres password is required in production environment")
			}
			if err := validatePasswordStrength(c.Password, "postgres", environment); err != nil {
				return err
			}
			if !isVerifyingSSLMode(c.SSLMode) {
				return fmt.Errorf("postgres SSL mode must be require, verify-ca or verify-full in production environment")
			}
		}
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("postgres connect timeout must be positive, got %s", c.ConnectTimeout)
	}

	return nil
}

func validatePostgresURL(dbURL string, production bool) error {
	parsed, err := parseAndValidateURL(dbURL, []string{"postgres", "postgresql"})
	if err != nil {
		return err
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return fmt.Errorf("user is required in URL")
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		return fmt.Errorf("database name is required in URL path")
	}
	if production && !isVerifyingSSLMode(parsed.Query().Get("sslmode")) {
		return fmt.Errorf("sslmode must be require, verify-ca or verify-full in production environment")
	}
	return nil
}

func isVerifyingSSLMode(mode string) bool {
	return mode == "require" || mode == "verify-ca" || mode == "verify-full"
}
