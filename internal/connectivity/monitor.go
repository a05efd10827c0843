// Package connectivity tracks whether the remote backend is reachable
// and notifies subscribers on every transition. The offline queue
// subscribes so that a restored connection triggers an immediate drain.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Probe checks reachability of the backend, returning nil when online.
type Probe func(ctx context.Context) error

// Monitor holds the current online/offline state. State changes come
// from the periodic probe loop or from SetOnline (manual override for
// operators and tests).
type Monitor struct {
	probe    Probe
	interval time.Duration
	bus      *Bus

	mu     sync.RWMutex
	online bool
}

// NewMonitor creates a monitor. The probe may be nil, in which case the
// state only changes via SetOnline. A zero interval defaults to 30s.
func NewMonitor(probe Probe, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		bus:      NewBus(),
	}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline overrides the state, publishing an event on change.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if changed {
		slog.Info("connectivity changed", "online", online)
		m.bus.Publish(Event{Online: online, At: time.Now().UTC()})
	}
}

// Subscribe registers a listener for connectivity transitions.
func (m *Monitor) Subscribe() <-chan Event {
	return m.bus.Subscribe()
}

// Unsubscribe removes a listener.
func (m *Monitor) Unsubscribe(ch <-chan Event) {
	m.bus.Unsubscribe(ch)
}

// Run probes the backend at the configured interval until ctx is done.
// The first probe fires immediately so the initial state is accurate.
func (m *Monitor) Run(ctx context.Context) error {
	if m.probe == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	m.probeOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.probeOnce(ctx)
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	err := m.probe(probeCtx)
	if err != nil && ctx.Err() != nil {
		return // shutting down, not a connectivity verdict
	}
	m.SetOnline(err == nil)
}
