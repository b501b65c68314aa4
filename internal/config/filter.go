package config

import (
	"fmt"
	"time"
)

// FilterConfig tunes the exclusion engines.
type FilterConfig struct {
	// CacheCapacity bounds the number of paths each engine remembers decisions for.
	CacheCapacity int `envconfig:"CACHE_CAPACITY" default:"1048576" validate:"min=1"`

	// SessionResetInterval is the period of the stats/invalidate/reset cycle.
	// Zero disables periodic resets; they stay available through the API.
	SessionResetInterval time.Duration `envconfig:"SESSION_RESET_INTERVAL" default:"1h" validate:"min=0"`

	// RetireGrace is how long a replaced engine keeps serving in-flight queries
	// before its cache is released.
	RetireGrace time.Duration `envconfig:"RETIRE_GRACE" default:"30s" validate:"min=0"`
}

// Validate checks FilterConfig fields for correctness.
func (c *FilterConfig) Validate() error {
	if c.SessionResetInterval > 0 && c.SessionResetInterval < time.Second {
		return fmt.Errorf("session reset interval must be at least 1s, got %s", c.SessionResetInterval)
	}
	return nil
}
