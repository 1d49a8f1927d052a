// Package connectivity answers "is the backend currently reachable" with a
// cheap cached signal backed by periodic real probes. Link-layer online is
// not trusted: only a successful round-trip against the backend flips the
// monitor online.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexypass/nexypass-backend/internal/infrastructure/observability"
)

type State int32

const (
	StateUnknown State = iota
	StateOnline
	StateOffline
)

// Quality is a cosmetic indicator derived from measured probe latency. It
// never gates correctness; only the online/offline state does.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityPoor      Quality = "poor"
	QualityOffline   Quality = "offline"
)

type ProbeFunc func(ctx context.Context) error

type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	timeout  time.Duration

	state   atomic.Int32
	quality atomic.Value

	mu        sync.Mutex
	onOnline  []func()
	onOffline []func()
}

func NewMonitor(probe ProbeFunc, interval, timeout time.Duration) *Monitor {
	m := &Monitor{
		probe:    probe,
		interval: interval,
		timeout:  timeout,
	}
	m.state.Store(int32(StateUnknown))
	m.quality.Store(QualityOffline)
	return m
}

// IsReachable is the cheap cached signal; it never performs network I/O.
func (m *Monitor) IsReachable() bool {
	return State(m.state.Load()) == StateOnline
}

func (m *Monitor) Quality() Quality {
	return m.quality.Load().(Quality)
}

func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

func (m *Monitor) OnOffline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, fn)
}

// Probe performs one real round-trip, updates the cached state and quality,
// and fires transition callbacks. Returns the new reachability.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := m.probe(probeCtx)
	latency := time.Since(start)
	observability.ProbeDuration.Observe(latency.Seconds())

	if err != nil {
		m.quality.Store(QualityOffline)
		observability.BackendReachable.Set(0)
		m.transition(StateOffline)
		return false
	}

	m.quality.Store(bucket(latency))
	observability.BackendReachable.Set(1)
	m.transition(StateOnline)
	return true
}

func bucket(latency time.Duration) Quality {
	switch {
	case latency < 200*time.Millisecond:
		return QualityExcellent
	case latency < time.Second:
		return QualityGood
	default:
		return QualityPoor
	}
}

func (m *Monitor) transition(next State) {
	prev := State(m.state.Swap(int32(next)))
	if prev == next {
		return
	}

	m.mu.Lock()
	var callbacks []func()
	switch next {
	case StateOnline:
		callbacks = append(callbacks, m.onOnline...)
	case StateOffline:
		// Going offline from unknown is not a transition worth announcing.
		if prev == StateOnline {
			callbacks = append(callbacks, m.onOffline...)
		}
	}
	m.mu.Unlock()

	slog.Info("connectivity state changed", "from", stateName(prev), "to", stateName(next))
	for _, fn := range callbacks {
		fn()
	}
}

func stateName(s State) string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Start probes immediately, then on every tick until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
