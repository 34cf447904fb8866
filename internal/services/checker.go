// Package services probes the external dependencies the backend talks to.
package services

import "context"

// Checker reports whether a dependency is reachable
type Checker interface {
	// Type returns the dependency kind, e.g. "postgres"
	Type() string

	// HealthCheck returns nil when the dependency answers
	HealthCheck(ctx context.Context) error
}

// BaseChecker provides common functionality for checkers
type BaseChecker struct {
	checkerType string
}

// Type returns the dependency kind
func (c *BaseChecker) Type() string {
	return c.checkerType
}

// PingFunc adapts a Ping method, such as a store's, to a Checker
type PingFunc struct {
	BaseChecker
	ping func(ctx context.Context) error
}

// NewPingFunc wraps ping as a Checker of the given kind
func NewPingFunc(checkerType string, ping func(ctx context.Context) error) *PingFunc {
	return &PingFunc{BaseChecker: BaseChecker{checkerType: checkerType}, ping: ping}
}

// HealthCheck calls the wrapped ping
func (p *PingFunc) HealthCheck(ctx context.Context) error {
	return p.ping(ctx)
}
