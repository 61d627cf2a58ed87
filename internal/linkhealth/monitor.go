// Package linkhealth tracks whether an external link (the Redis bus, the
// MQTT broker) is reachable and retries with exponential backoff when it
// is not.
package linkhealth

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status is a point-in-time view of one link.
type Status struct {
	Name       string    `json:"name"`
	Connected  bool      `json:"connected"`
	LastPingOK time.Time `json:"last_ping_ok,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	Reconnects int       `json:"reconnects"`
	Latency    string    `json:"latency,omitempty"`
}

// PingFunc probes the link once.
type PingFunc func(ctx context.Context) error

// RedisPing probes a Redis client with PING.
func RedisPing(rdb *redis.Client) PingFunc {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

// Monitor pings a link on an interval and keeps its status.
type Monitor struct {
	name     string
	ping     PingFunc
	interval time.Duration
	timeout  time.Duration

	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int

	mu         sync.RWMutex
	connected  bool
	lastPing   time.Time
	lastErr    string
	reconnects int
	latency    time.Duration

	onDown func()
	onUp   func()
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the check interval (default 5s).
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.interval = d
	}
}

// WithBackoff sets the reconnect schedule: delays double from base up to
// max, for at most attempts tries per outage check.
func WithBackoff(base, max time.Duration, attempts int) Option {
	return func(m *Monitor) {
		m.baseDelay = base
		m.maxDelay = max
		m.maxAttempts = attempts
	}
}

// WithOnDown is called when the link goes from up to down.
func WithOnDown(fn func()) Option {
	return func(m *Monitor) {
		m.onDown = fn
	}
}

// WithOnUp is called when the link comes back.
func WithOnUp(fn func()) Option {
	return func(m *Monitor) {
		m.onUp = fn
	}
}

// New creates a monitor that assumes the link is up until a ping fails.
func New(name string, ping PingFunc, opts ...Option) *Monitor {
	m := &Monitor{
		name:        name,
		ping:        ping,
		interval:    5 * time.Second,
		timeout:     3 * time.Second,
		baseDelay:   500 * time.Millisecond,
		maxDelay:    30 * time.Second,
		maxAttempts: 10,
		connected:   true,
		lastPing:    time.Now(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run checks the link every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) (time.Duration, error) {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()
	err := m.ping(pingCtx)
	return time.Since(start), err
}

func (m *Monitor) check(ctx context.Context) {
	elapsed, err := m.probe(ctx)

	m.mu.Lock()
	wasConnected := m.connected
	if err != nil {
		m.connected = false
		m.lastErr = err.Error()
		m.mu.Unlock()

		if wasConnected {
			log.Printf("%s health: connection lost: %v", m.name, err)
			if m.onDown != nil {
				m.onDown()
			}
		}
		m.reconnect(ctx)
		return
	}
	m.connected = true
	m.lastPing = time.Now()
	m.latency = elapsed
	m.lastErr = ""
	m.mu.Unlock()

	if !wasConnected {
		log.Printf("%s health: connection restored (latency=%v)", m.name, elapsed)
		if m.onUp != nil {
			m.onUp()
		}
	}
}

func (m *Monitor) reconnect(ctx context.Context) {
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		delay := time.Duration(float64(m.baseDelay) * math.Pow(2, float64(attempt)))
		if delay > m.maxDelay {
			delay = m.maxDelay
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		elapsed, err := m.probe(ctx)
		if err == nil {
			m.mu.Lock()
			m.connected = true
			m.lastPing = time.Now()
			m.latency = elapsed
			m.lastErr = ""
			m.reconnects++
			m.mu.Unlock()

			log.Printf("%s health: reconnected after %d attempts", m.name, attempt+1)
			if m.onUp != nil {
				m.onUp()
			}
			return
		}
		m.mu.Lock()
		m.lastErr = err.Error()
		m.mu.Unlock()
		log.Printf("%s health: reconnect attempt %d/%d failed: %v", m.name, attempt+1, m.maxAttempts, err)
	}
	log.Printf("%s health: still down after %d attempts, will retry on next check", m.name, m.maxAttempts)
}

// IsConnected reports whether the last probe succeeded.
func (m *Monitor) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// GetStatus returns the current status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Name:       m.name,
		Connected:  m.connected,
		LastPingOK: m.lastPing,
		LastError:  m.lastErr,
		Reconnects: m.reconnects,
	}
	if m.latency > 0 {
		s.Latency = m.latency.String()
	}
	return s
}
