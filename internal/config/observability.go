package config

import (
	"fmt"
	"strings"
	"time"
)

// ObservabilityConfig configures the side port serving prometheus metrics
// and the liveness and readiness endpoints.
type ObservabilityConfig struct {
	Port string `envconfig:"PORT" default:"9090"`

	// ReadinessTimeout bounds one readiness round, which pings the settings
	// source (redis, postgres or the file directory) and the engine.
	ReadinessTimeout time.Duration `envconfig:"READINESS_TIMEOUT" default:"2s" validate:"min=100ms,max=30s"`

	// ServerTimeout applies to reads and writes; idle connections get three times it.
	ServerTimeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/health/live"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/health/ready"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// Validate checks the port, the readiness budget and the route paths.
func (o *ObservabilityConfig) Validate() error {
	if err := validatePort(o.Port, "observability"); err != nil {
		return err
	}

	// The readiness answer has to be written before the server gives up.
	if o.ReadinessTimeout >= o.ServerTimeout {
		return fmt.Errorf("observability readiness timeout (%s) must be shorter than server timeout (%s)", o.ReadinessTimeout, o.ServerTimeout)
	}

	seen := make(map[string]string, 3)
	for name, path := range map[string]string{
		"liveness":  o.LivenessPath,
		"readiness": o.ReadinessPath,
		"metrics":   o.MetricsPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("observability %s path must start with '/', got %q", name, path)
		}
		if other, dup := seen[path]; dup {
			return fmt.Errorf("observability %s and %s paths are both %q", other, name, path)
		}
		seen[path] = name
	}

	return nil
}
