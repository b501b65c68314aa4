package observability

import "context"

// Checker is a dependency verified by the readiness endpoint.
// Implementations must be safe for concurrent use and honor ctx.
type Checker interface {
	// Name identifies the component in the readiness body, e.g. "redis".
	Name() string
	// Check returns nil when the component is healthy.
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	ComponentName string
	Fn            func(ctx context.Context) error
}

func (c CheckerFunc) Name() string { return c.ComponentName }

func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }
