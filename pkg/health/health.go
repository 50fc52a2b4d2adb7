// Package health tracks server readiness and serves the probe endpoints.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

const defaultProbeTimeout = 2 * time.Second

// Probe checks one dependency, typically a database ping.
type Probe func(ctx context.Context) error

// Checker tracks readiness and the dependency probes that gate it.
// It is safe for concurrent use.
type Checker struct {
	state atomic.Int32

	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
}

// NewChecker creates a Checker in the starting state.
func NewChecker() *Checker {
	return &Checker{probes: make(map[string]Probe), timeout: defaultProbeTimeout}
}

// AddProbe registers a dependency that must pass for the server to be ready.
func (c *Checker) AddProbe(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// SetReady marks startup complete.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining marks the server as shutting down.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady reports whether startup completed and shutdown has not begun.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the lifecycle state name.
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

// Check runs every probe and returns the names of the failing ones, sorted.
func (c *Checker) Check(ctx context.Context) []string {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for k, v := range c.probes {
		probes[k] = v
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var failed []string
	for name, p := range probes {
		if err := p(ctx); err != nil {
			slog.Warn("health probe failed", "probe", name, "error", err)
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}

// LivenessHandler always responds 200 OK.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler responds 200 when ready and every probe passes, 503
// otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
			return
		}
		if failed := c.Check(r.Context()); len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Failed: failed})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: c.State()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
