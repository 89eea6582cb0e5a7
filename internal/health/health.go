// Package health tracks the guardian's dependencies (assessment store,
// upstream bank services) for the /healthy probe.
package health

import (
	"context"
	"sync"
	"time"
)

// checkTimeout bounds a single subsystem check so a hung dependency
// cannot stall the probe.
const checkTimeout = 2 * time.Second

// Status reports the health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker checks one subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named health checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates an empty registry. A registry with no checkers
// reports healthy.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named health checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every registered checker, each under its own timeout,
// and returns the aggregate verdict plus per-subsystem results in
// registration order.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		statuses[i] = nc.check(checkCtx)
		cancel()
		if !statuses[i].Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}
