// Package health reports readiness of the identity stack's dependencies.
package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger checks database connectivity, e.g. *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the permission engine can evaluate, e.g. the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status is the outcome of one check. Err is empty when the component is healthy.
type Status struct {
	Component string
	Err       string
	Took      time.Duration
}

// Checker runs the configured checks. Nil dependencies are skipped.
type Checker struct {
	DB     Pinger
	Policy PolicyChecker
}

// Check runs every configured check and returns their statuses and the first failure.
func (c *Checker) Check(ctx context.Context) ([]Status, error) {
	var (
		out      []Status
		firstErr error
	)
	run := func(name string, fn func(context.Context) error) {
		start := time.Now()
		err := fn(ctx)
		s := Status{Component: name, Took: time.Since(start)}
		if err != nil {
			s.Err = err.Error()
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
		}
		out = append(out, s)
	}
	if c.DB != nil {
		run("database", c.DB.PingContext)
	}
	if c.Policy != nil {
		run("policy", c.Policy.HealthCheck)
	}
	return out, firstErr
}
