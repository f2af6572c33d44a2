// ABOUTME: Connectivity monitoring with change subscriptions
// ABOUTME: Polls the service health endpoint and notifies subscribers on state changes
package sync

import (
	"context"
	"sync"
	"time"
)

// ConnectivityMonitor reports whether the remote service is reachable
// and notifies subscribers when that changes. Subscribe returns an
// unsubscribe function; callbacks run on the monitor's goroutine and
// must not block.
type ConnectivityMonitor interface {
	IsConnected() bool
	Subscribe(fn func(connected bool)) (unsubscribe func())
}

// pinger is the probe the monitor polls. *APIClient satisfies it.
type pinger interface {
	Healthy(ctx context.Context) bool
}

// ProbeMonitor polls a health endpoint on an interval and tracks
// reachability.
type ProbeMonitor struct {
	mu          sync.Mutex
	probe       pinger
	interval    time.Duration
	connected   bool
	subscribers map[int]func(bool)
	nextSubID   int
	stop        chan struct{}
	done        chan struct{}
	started     bool
}

// NewProbeMonitor creates a monitor that polls the given probe. The
// initial state comes from one synchronous probe when Start is called.
func NewProbeMonitor(probe pinger, interval time.Duration) *ProbeMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ProbeMonitor{
		probe:       probe,
		interval:    interval,
		subscribers: make(map[int]func(bool)),
	}
}

// Start begins polling. Safe to call once.
func (m *ProbeMonitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.check()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends polling and waits for the poll goroutine to exit.
func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stop)
	m.mu.Unlock()
	<-m.done
}

func (m *ProbeMonitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *ProbeMonitor) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *ProbeMonitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	connected := m.probe.Healthy(ctx)

	m.mu.Lock()
	changed := connected != m.connected
	m.connected = connected
	var notify []func(bool)
	if changed {
		for _, fn := range m.subscribers {
			notify = append(notify, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range notify {
		fn(connected)
	}
}

// ManualMonitor is a connectivity monitor driven by explicit state
// changes. Used by tests and environments where the host reports
// connectivity directly.
type ManualMonitor struct {
	mu          sync.Mutex
	connected   bool
	subscribers map[int]func(bool)
	nextSubID   int
}

// NewManualMonitor creates a monitor in the given initial state.
func NewManualMonitor(connected bool) *ManualMonitor {
	return &ManualMonitor{
		connected:   connected,
		subscribers: make(map[int]func(bool)),
	}
}

func (m *ManualMonitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *ManualMonitor) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// SetConnected updates the state, notifying subscribers on change.
func (m *ManualMonitor) SetConnected(connected bool) {
	m.mu.Lock()
	changed := connected != m.connected
	m.connected = connected
	var notify []func(bool)
	if changed {
		for _, fn := range m.subscribers {
			notify = append(notify, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range notify {
		fn(connected)
	}
}
