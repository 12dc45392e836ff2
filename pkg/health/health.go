// Package health serves the liveness and readiness probes. Readiness
// follows the platform state and the reachability of its backing stores.
package health

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// pingTimeout bounds each dependency check made by the readiness probe.
const pingTimeout = 2 * time.Second

// Pinger is a dependency the readiness probe checks, such as *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// Checker tracks the readiness of the platform. It is safe for concurrent
// use.
type Checker struct {
	state atomic.Int32

	mu   sync.RWMutex
	deps map[string]Pinger
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{}
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// AddDependency registers a dependency that must answer a ping for the
// service to be ready.
func (c *Checker) AddDependency(name string, p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deps == nil {
		c.deps = make(map[string]Pinger)
	}
	c.deps[name] = p
}

// CheckDependencies pings every dependency and returns "ok" or the error
// text per name, plus whether all succeeded.
func (c *Checker) CheckDependencies(ctx context.Context) (map[string]string, bool) {
	c.mu.RLock()
	deps := maps.Clone(c.deps)
	c.mu.RUnlock()

	results := make(map[string]string, len(deps))
	healthy := true
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := deps[name].PingContext(pctx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler answers 200 while the process can serve HTTP at all.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler answers 200 once the platform has started and every
// dependency answers a ping. While starting, draining or degraded it answers
// 503 so load balancers stop routing lookups here.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
			return
		}
		checks, ok := c.CheckDependencies(r.Context())
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Checks: checks})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: c.State(), Checks: checks})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
