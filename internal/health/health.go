// Package health tracks the readiness of dropwatch subsystems. The server
// registers one checker per backing store and reports the aggregate on the
// health endpoints.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the result of probing a single subsystem.
type Status struct {
	Name      string  `json:"name"`
	Healthy   bool    `json:"healthy"`
	Detail    string  `json:"detail,omitempty"`
	LatencyMS float64 `json:"latencyMs"`
}

// Checker probes one subsystem. Implementations should honor ctx deadlines;
// the registry fills in Name and LatencyMS on the returned Status.
type Checker func(ctx context.Context) Status

// Registry holds named subsystem checkers and probes them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a checker under the given subsystem name. The name overrides
// whatever the checker puts in Status.Name.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll probes every registered subsystem and returns the aggregate
// health plus the individual results, in registration order. A single
// unhealthy subsystem makes the aggregate unhealthy.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		start := time.Now()
		st := nc.check(ctx)
		st.Name = nc.name
		st.LatencyMS = float64(time.Since(start).Microseconds()) / 1000.0
		statuses[i] = st
		if !st.Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}
