// Package health exposes Kubernetes-style /livez and /readyz probes.
//
// Every registered probe runs on its own ticker goroutine. Probes flip state
// only after consecutive results cross a threshold, so a single slow database
// ping during a vacuum does not take the service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// State transition thresholds, mirroring Kubernetes probe defaults.
const (
	failAfter    = 3
	recoverAfter = 1
)

// CheckFunc reports on a single dependency or process property. A nil return
// means healthy.
type CheckFunc func(ctx context.Context) error

// probe is one registered check plus its runtime state.
//
// tick() runs on exactly one goroutine, so the streak counters need no
// locking. healthy and lastErr are read from HTTP handler goroutines and use
// atomics.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	failStreak int
	okStreak   int
}

func (p *probe) ok() bool {
	return p.healthy.Load()
}

func (p *probe) err() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// tick runs the check once and advances the streak counters. Single-goroutine
// only.
func (p *probe) tick(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.okStreak = 0
		p.failStreak++
		if p.failStreak >= failAfter {
			p.healthy.Store(false)
		}
		return
	}

	p.failStreak = 0
	p.okStreak++
	if p.okStreak >= recoverAfter {
		p.healthy.Store(true)
	}
}

// Health holds the liveness and readiness probe sets for one service.
type Health struct {
	ready atomic.Bool

	// mu guards the probe slices and cancel. Handlers only snapshot the
	// slices under RLock; probe state itself is atomic.
	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns a Health that reports not-ready until SetReady(true) is called
// after startup completes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe answering "is this process wedged":
// goroutine leaks, GC stalls, deadlocks.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a probe answering "can this process serve
// traffic": database reachability, broker connectivity, warm caches.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{
		name:    name,
		timeout: timeout,
		check:   check,
	}
	// Optimistic start: a probe has to earn its unhealthy state.
	p.healthy.Store(true)
	return p
}

// Start launches one ticker goroutine per registered probe. Call once, after
// all probes are registered.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go loop(ctx, p, interval)
	}
}

func loop(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// SetReady flips the manual readiness gate. Set true once startup finishes
// and false at the start of graceful shutdown to drain traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports true only when the manual gate is open and every readiness
// probe is passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if !p.ok() {
			return false
		}
	}
	return true
}

// Stop cancels all probe goroutines. Idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} when every liveness probe
// passes, 503 with per-probe failure messages otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	probes := make([]*probe, len(h.liveness))
	copy(probes, h.liveness)
	h.mu.RUnlock()

	writeProbes(w, failuresOf(probes))
}

// ReadyEndpoint serves /readyz: 200 only when the manual gate is open and
// every readiness probe passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	probes := make([]*probe, len(h.readiness))
	copy(probes, h.readiness)
	h.mu.RUnlock()

	failed := failuresOf(probes)
	if !ready {
		failed["_readiness"] = "service is not ready"
	}
	writeProbes(w, failed)
}

// failuresOf maps probe name to failure message for every unhealthy probe,
// using the last stored error rather than re-running checks on request.
func failuresOf(probes []*probe) map[string]string {
	failed := make(map[string]string)
	for _, p := range probes {
		if p.ok() {
			continue
		}
		if err := p.err(); err != nil {
			failed[p.name] = err.Error()
		} else {
			failed[p.name] = "check is unhealthy"
		}
	}
	return failed
}

func writeProbes(w http.ResponseWriter, failed map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failed
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
