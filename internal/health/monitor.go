// Package health runs the background dependency monitor behind /ready.
package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/group03/phychat-backend/internal/metrics"
)

// Prober checks a set of named dependencies
type Prober interface {
	HealthCheckAll(ctx context.Context) map[string]error
}

// Status is the latest check result for one dependency
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Monitor periodically probes dependencies and keeps the latest results
type Monitor struct {
	prober   Prober
	interval time.Duration
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	results map[string]Status
	checked bool
}

// NewMonitor creates a new health monitor; m may be nil
func NewMonitor(prober Prober, interval time.Duration, m *metrics.Metrics) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Monitor{
		prober:   prober,
		interval: interval,
		metrics:  m,
		results:  make(map[string]Status),
	}
}

// Start begins the monitor in a goroutine
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

// run is the main loop for the monitor
func (m *Monitor) run(ctx context.Context) {
	slog.Info("health monitor started", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Run immediately on start
	m.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes every dependency once and records the results
func (m *Monitor) Check(ctx context.Context) {
	slog.Debug("running health check cycle")

	results := m.prober.HealthCheckAll(ctx)
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, err := range results {
		status := Status{Name: name, Healthy: err == nil, CheckedAt: now}
		if err != nil {
			status.Error = err.Error()
		}

		prev, seen := m.results[name]
		switch {
		case !seen && !status.Healthy:
			slog.Warn("dependency unhealthy", "dependency", name, "error", err)
		case seen && prev.Healthy && !status.Healthy:
			slog.Warn("dependency became unhealthy", "dependency", name, "error", err)
		case seen && !prev.Healthy && status.Healthy:
			slog.Info("dependency recovered", "dependency", name)
		}

		m.results[name] = status
		m.setGauge(name, status.Healthy)
	}
	m.checked = true
}

// Ready reports whether every dependency passed its last check, together with
// the per-dependency results sorted by name. Before the first check completes
// the monitor is not ready.
func (m *Monitor) Ready() (bool, []Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]Status, 0, len(m.results))
	ready := m.checked
	for _, s := range m.results {
		statuses = append(statuses, s)
		if !s.Healthy {
			ready = false
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })

	return ready, statuses
}

func (m *Monitor) setGauge(name string, healthy bool) {
	if m.metrics == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.metrics.DependencyUp.WithLabelValues(name).Set(v)
}
