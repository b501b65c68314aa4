package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"time"
)

// QueryAPIConfig configures the HTTP surface indexers call for decisions.
//
// Decision requests are small and arrive in bursts from a few long-lived
// clients: timeouts stay short and idle connections are kept for reuse.
type QueryAPIConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"8080"`

	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"2s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"2m"`

	// Headers carry little more than the API key.
	MaxHeaderBytes int `envconfig:"MAX_HEADER_BYTES" default:"65536" validate:"min=4096"`

	// MaxBatchPaths and MaxBatchBytes bound one batch decision request.
	MaxBatchPaths int   `envconfig:"MAX_BATCH_PATHS" default:"10000" validate:"min=1"`
	MaxBatchBytes int64 `envconfig:"MAX_BATCH_BYTES" default:"8388608" validate:"min=1024"`

	// APIKeyHash is the SHA-256 hex digest of the key required by the
	// routes that change the engine (settings, cache, session).
	APIKeyHash string `envconfig:"API_KEY_HASH"`

	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCert    string `envconfig:"TLS_CERT_FILE"`
	TLSKey     string `envconfig:"TLS_KEY_FILE"`
}

// Address is the listen address of the query API.
func (c *QueryAPIConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// AuthRequired reports whether admin routes check the API key. Outside
// production an unset hash leaves them open for local use.
func (c *QueryAPIConfig) AuthRequired(environment string) bool {
	return c.APIKeyHash != "" || environment == EnvironmentProduction
}

// Validate checks the listener, timeouts, admin key and TLS files.
func (c *QueryAPIConfig) Validate(environment string) error {
	if err := validateHost(c.Host, "query api"); err != nil {
		return err
	}
	if err := validatePort(c.Port, "query api"); err != nil {
		return err
	}

	for name, d := range map[string]time.Duration{
		"read timeout":        c.ReadTimeout,
		"read header timeout": c.ReadHeaderTimeout,
		"write timeout":       c.WriteTimeout,
		"idle timeout":        c.IdleTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("query api %s must be positive, got %s", name, d)
		}
	}
	if c.ReadHeaderTimeout > c.ReadTimeout {
		return fmt.Errorf("query api read header timeout (%s) cannot exceed read timeout (%s)", c.ReadHeaderTimeout, c.ReadTimeout)
	}

	// A configured hash is checked everywhere; a typo would lock the admin routes.
	if c.APIKeyHash != "" {
		if err := validateSHA256Hex(c.APIKeyHash); err != nil {
			return fmt.Errorf("invalid query api key hash: %w", err)
		}
	}

	if environment == EnvironmentProduction {
		if c.APIKeyHash == "" {
			return fmt.Errorf("query api key hash is required in production environment")
		}
		if !c.TLSEnabled {
			return fmt.Errorf("query api TLS must be enabled in production environment")
		}
	}

	if c.TLSEnabled && (c.TLSCert == "" || c.TLSKey == "") {
		return fmt.Errorf("query api TLS enabled but cert or key file not specified")
	}

	return nil
}

// validateSHA256Hex accepts 64 hexadecimal characters in either case.
func validateSHA256Hex(hash string) error {
	if len(hash) != 64 {
		return fmt.Errorf("SHA-256 hex digest must be 64 characters, got %d", len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("digest must be hexadecimal: %w", err)
	}
	return nil
}
