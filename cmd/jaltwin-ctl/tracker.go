package main

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Presence is the liveness of a twin instance as seen from its heartbeats.
type Presence int

const (
	PresenceOnline Presence = iota
	PresenceStale
	PresenceOffline
)

func (p Presence) String() string {
	switch p {
	case PresenceOnline:
		return "ONLINE"
	case PresenceStale:
		return "STALE"
	case PresenceOffline:
		return "OFFLINE"
	default:
		return "UNKNOWN"
	}
}

// Tracker remembers when each twin instance last sent a heartbeat.
type Tracker struct {
	mu         sync.RWMutex
	staleAfter time.Duration
	now        func() time.Time
	last       map[string]time.Time
}

// NewTracker marks an instance stale once staleAfter passes without a
// heartbeat.
func NewTracker(staleAfter time.Duration) *Tracker {
	return &Tracker{staleAfter: staleAfter, now: time.Now, last: make(map[string]time.Time)}
}

// Seen records a heartbeat from instance.
func (t *Tracker) Seen(instance string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[instance] = t.now()
}

// Presence combines the alive key's TTL with the heartbeat history. A TTL
// of zero or less means the key expired.
func (t *Tracker) Presence(instance string, ttl time.Duration) (Presence, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	last := t.last[instance]
	if ttl <= 0 {
		return PresenceOffline, last
	}
	if !last.IsZero() && t.now().Sub(last) > t.staleAfter {
		return PresenceStale, last
	}
	return PresenceOnline, last
}

// Instances returns every instance seen so far, sorted.
func (t *Tracker) Instances() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.last))
	for inst := range t.last {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// FormatPresence renders one presence line.
func FormatPresence(instance string, ttl time.Duration, p Presence, last time.Time, now time.Time) string {
	var color string
	switch p {
	case PresenceOnline:
		color = colorGreen
	case PresenceStale:
		color = colorYellow
	case PresenceOffline:
		color = colorRed
	}
	detail := fmt.Sprintf("TTL=%-4d  %s", int64(ttl.Seconds()), p)
	if p != PresenceOnline && !last.IsZero() {
		detail += fmt.Sprintf("  (last seen %s ago)", now.Sub(last).Round(time.Second))
	}
	return paint(color, fmt.Sprintf("[%-9s]  %-12s  %s", "presence", instance, detail))
}
