package redisbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
)

// Publisher mirrors the twin onto Redis: every snapshot is stored under
// StateKey and published on SnapshotChannel, newly raised alerts go to
// AlertChannel, and a heartbeat goes out on HeartbeatChannel.
type Publisher struct {
	rdb     *redis.Client
	source  protocol.Source
	running func() bool

	interval time.Duration
	every    time.Duration
	started  time.Time

	latest chan model.State
	held   *model.State
	last   *model.State
	seen   map[string]int
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithHeartbeatInterval sets the heartbeat period (default 5s).
func WithHeartbeatInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.interval = d
	}
}

// WithSnapshotInterval publishes at most one snapshot per d, always the
// newest one offered. d <= 0 publishes every snapshot as it arrives.
func WithSnapshotInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.every = d
	}
}

// NewPublisher creates a publisher. running reports whether the engine's
// tick loop is active and may be nil.
func NewPublisher(rdb *redis.Client, source protocol.Source, running func() bool, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		rdb:      rdb,
		source:   source,
		running:  running,
		interval: 5 * time.Second,
		started:  time.Now(),
		latest:   make(chan model.State, 1),
		seen:     make(map[string]int),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Offer queues s for publishing without blocking. A snapshot still waiting
// is replaced, so a slow bus sees the newest state.
func (p *Publisher) Offer(s model.State) {
	for {
		select {
		case p.latest <- s:
			return
		default:
		}
		select {
		case <-p.latest:
		default:
		}
	}
}

// Run publishes queued snapshots and heartbeats until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var flush <-chan time.Time
	if p.every > 0 {
		gate := time.NewTicker(p.every)
		defer gate.Stop()
		flush = gate.C
	}

	p.heartbeat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-p.latest:
			if flush == nil {
				p.publish(ctx, s)
			} else {
				p.held = &s
			}
		case <-flush:
			if p.held != nil {
				s := *p.held
				p.held = nil
				p.publish(ctx, s)
			}
		case <-ticker.C:
			p.heartbeat(ctx)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, s model.State) {
	p.last = &s
	if err := p.publishSnapshot(ctx, s); err != nil && ctx.Err() == nil {
		log.Printf("publisher: snapshot: %v", err)
	}
	for _, a := range p.freshAlerts(s) {
		if err := p.publishAlert(ctx, a); err != nil && ctx.Err() == nil {
			log.Printf("publisher: alert %s: %v", a.ID, err)
		}
	}
}

// freshAlerts returns alerts in s that are new or re-raised since the
// previous snapshot.
func (p *Publisher) freshAlerts(s model.State) []model.Alert {
	var out []model.Alert
	seen := make(map[string]int, len(s.Metrics.Alerts))
	for _, a := range s.Metrics.Alerts {
		seen[a.ID] = a.Occurrences
		if a.Acknowledged {
			continue
		}
		if n, ok := p.seen[a.ID]; !ok || n != a.Occurrences {
			out = append(out, a)
		}
	}
	p.seen = seen
	return out
}

func (p *Publisher) encode(msgType string, payload any) (string, error) {
	msg, err := protocol.NewMessage(p.source, msgType, payload)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", msgType, err)
	}
	return string(data), nil
}

func (p *Publisher) publishSnapshot(ctx context.Context, s model.State) error {
	data, err := p.encode(protocol.TypeSnapshot, s)
	if err != nil {
		return err
	}
	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, StateKey(p.source.Instance), data, 0)
	pipe.Publish(ctx, SnapshotChannel(p.source.Instance), data)
	_, err = pipe.Exec(ctx)
	return err
}

func (p *Publisher) publishAlert(ctx context.Context, a model.Alert) error {
	data, err := p.encode(protocol.TypeAlert, a)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, AlertChannel(p.source.Instance), data).Err()
}

// HeartbeatPayload describes the service as of the last published snapshot.
func (p *Publisher) HeartbeatPayload() protocol.HeartbeatPayload {
	hb := protocol.HeartbeatPayload{
		Status:        "stopped",
		UptimeSeconds: int64(time.Since(p.started).Seconds()),
		Version:       p.source.Version,
	}
	if p.running != nil && p.running() {
		hb.Status = "running"
	}
	if p.last != nil {
		hb.Tick = p.last.Tick
		hb.SystemStatus = string(p.last.SystemStatus)
		hb.ActiveAlerts = len(p.last.ActiveAlerts())
		hb.Failsafe = p.last.Failsafe.Active
	}
	return hb
}

func (p *Publisher) heartbeat(ctx context.Context) {
	data, err := p.encode(protocol.TypeServiceHeartbeat, p.HeartbeatPayload())
	if err != nil {
		log.Printf("publisher: heartbeat build error: %v", err)
		return
	}
	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, HeartbeatChannel, data)
	pipe.Set(ctx, AliveKey(p.source.Instance), "1", 3*p.interval)
	if _, err := pipe.Exec(ctx); err != nil && ctx.Err() == nil {
		log.Printf("publisher: heartbeat publish error: %v", err)
	}
}
