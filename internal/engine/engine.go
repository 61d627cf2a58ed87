// Package engine owns the twin's state and drives it forward one tick at a
// time. Every external read gets a deep copy; every external write goes
// through a command that returns a Result and never panics.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/alerts"
	"github.com/strawberryjas/gramjaljeevan/internal/failsafe"
	"github.com/strawberryjas/gramjaljeevan/internal/history"
	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/physics"
	"github.com/strawberryjas/gramjaljeevan/internal/relay"
	"github.com/strawberryjas/gramjaljeevan/internal/schedule"
	"github.com/strawberryjas/gramjaljeevan/internal/simrand"
)

// Result is returned by every command.
type Result = relay.Result

// maxCatchUp bounds how much wall time one tick may cover. A longer gap
// (a stopped engine, a stalled host) advances a single period instead.
const maxCatchUp = 5

// Config holds the engine parameters. The zero value of any field falls
// back to DefaultConfig.
type Config struct {
	TickPeriod  time.Duration     `yaml:"tick_period"`
	TimeScale   float64           `yaml:"time_scale"`
	HistorySize int               `yaml:"history_size"`
	Seed        int64             `yaml:"seed"`
	Physics     physics.Config    `yaml:"physics"`
	Relay       relay.Config      `yaml:"relay"`
	Alerts      alerts.Thresholds `yaml:"alerts"`
	Schedule    schedule.Limits   `yaml:"schedule"`
	Failsafe    failsafe.Config   `yaml:"failsafe"`
}

// DefaultConfig ticks once per second in real time.
func DefaultConfig() Config {
	return Config{
		TickPeriod:  time.Second,
		TimeScale:   1,
		HistorySize: history.DefaultSize,
		Seed:        1,
		Physics:     physics.DefaultConfig(),
		Relay:       relay.DefaultConfig(),
		Alerts:      alerts.DefaultThresholds(),
		Schedule:    schedule.DefaultLimits(),
		Failsafe:    failsafe.DefaultConfig(),
	}
}

// Auditor receives journal events. Calls happen under the engine lock and
// must not block.
type Auditor interface {
	AlertRaised(a model.Alert)
	AlertAcknowledged(a model.Alert)
	CommandRecorded(c model.RelayCommand)
	MaintenanceRecorded(r model.MaintenanceRecord)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

// WithRand replaces the seeded source built from Config.Seed.
func WithRand(src simrand.Source) Option {
	return func(e *Engine) {
		e.rand = src
	}
}

// WithState starts the engine from s instead of the reference plant.
func WithState(s model.State) Option {
	return func(e *Engine) {
		c := s.Clone()
		e.initial = &c
	}
}

// WithAuditor attaches a journal.
func WithAuditor(a Auditor) Option {
	return func(e *Engine) {
		e.audit = a
	}
}

// Engine is one independent twin instance.
type Engine struct {
	cfg   Config
	clock func() time.Time
	rand  simrand.Source
	audit Auditor

	initial *model.State

	// deliverMu orders ticks end to end so subscribers see snapshots in
	// tick order.
	deliverMu sync.Mutex

	mu       sync.Mutex
	state    model.State
	relay    *relay.Relay
	book     *alerts.Book
	failsafe *failsafe.Coordinator
	lastTick time.Time
	holdTank bool
	forcing  func(*model.State)

	// heldOutlet pins forced outlet samples through the next quality step.
	heldOutlet map[int]model.LineQuality

	history *history.Ring[model.State]

	subMu   sync.Mutex
	subs    map[uint64]func(model.State)
	nextSub uint64

	runMu    sync.Mutex
	running  bool
	cancel   context.CancelFunc
	runUnsub func()
}

// New creates a stopped engine holding the reference plant.
func New(cfg Config, opts ...Option) *Engine {
	cfg = withDefaults(cfg)
	e := &Engine{
		cfg:   cfg,
		clock: time.Now,
		subs:  make(map[uint64]func(model.State)),
	}
	for _, o := range opts {
		o(e)
	}
	if e.rand == nil {
		e.rand = simrand.New(cfg.Seed)
	}

	e.relay = relay.New(cfg.Relay, e.rand, relay.WithRecorder(func(c model.RelayCommand) {
		if e.audit != nil {
			e.audit.CommandRecorded(c)
		}
	}))
	e.book = alerts.NewBook(func() string { return simrand.NewID(e.rand, "ALT") })
	e.failsafe = failsafe.New(cfg.Failsafe, func(st model.FailsafeState) {
		log.Printf("failsafe: tripped (%s): %s", st.Reason, st.Description)
	})
	e.history = history.New[model.State](cfg.HistorySize)

	now := e.clock()
	if e.initial != nil {
		e.state = *e.initial
		e.initial = nil
	} else {
		e.state = ReferencePlant(now)
		physics.Settle(&e.state, cfg.Physics)
	}
	e.state.UpdatedAt = now
	e.state.Failsafe = e.failsafe.GetState()
	physics.Summarize(&e.state)
	e.history.Push(e.state.Clone())
	return e
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = def.TickPeriod
	}
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = def.TimeScale
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.Physics == (physics.Config{}) {
		cfg.Physics = def.Physics
	}
	if cfg.Relay == (relay.Config{}) {
		cfg.Relay = def.Relay
	}
	if cfg.Alerts == (alerts.Thresholds{}) {
		cfg.Alerts = def.Alerts
	}
	if cfg.Schedule == (schedule.Limits{}) {
		cfg.Schedule = def.Schedule
	}
	if cfg.Failsafe == (failsafe.Config{}) {
		cfg.Failsafe = def.Failsafe
	}
	return cfg
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Start runs the tick loop in the background and subscribes onSnapshot
// (which may be nil) for the lifetime of this run. While already running
// it returns the same stop function and starts nothing new.
func (e *Engine) Start(onSnapshot func(model.State)) func() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return e.Stop
	}

	e.mu.Lock()
	e.lastTick = time.Time{}
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true
	if onSnapshot != nil {
		e.runUnsub = e.Subscribe(onSnapshot)
	}
	go e.loop(ctx)
	log.Printf("engine: started, tick %s x%g", e.cfg.TickPeriod, e.cfg.TimeScale)
	return e.Stop
}

// Stop cancels the tick loop. The last snapshot stays readable. Stopping a
// stopped engine does nothing. A tick already in flight completes.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	e.cancel()
	e.cancel = nil
	if e.runUnsub != nil {
		e.runUnsub()
		e.runUnsub = nil
	}
	log.Printf("engine: stopped")
}

// IsRunning reports whether the tick loop is active.
func (e *Engine) IsRunning() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

// Run starts the engine and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.Start(nil)
	<-ctx.Done()
	e.Stop()
}

func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			e.Step()
		}
	}
}

// Step runs one tick immediately, records it in history and delivers it to
// every subscriber before returning. Subscribers must not call Step.
func (e *Engine) Step() model.State {
	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	e.mu.Lock()
	e.step(e.clock())
	snap := e.state.Clone()
	e.mu.Unlock()

	e.history.Push(snap)
	e.publish(snap)
	return snap.Clone()
}

// Subscribe registers fn for every future snapshot. The returned function
// removes exactly this subscription and may be called any number of times.
func (e *Engine) Subscribe(fn func(model.State)) func() {
	e.subMu.Lock()
	e.nextSub++
	token := e.nextSub
	e.subs[token] = fn
	e.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, token)
			e.subMu.Unlock()
		})
	}
}

func (e *Engine) publish(snap model.State) {
	e.subMu.Lock()
	tokens := make([]uint64, 0, len(e.subs))
	fns := make([]func(model.State), 0, len(e.subs))
	for t, fn := range e.subs {
		tokens = append(tokens, t)
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for i, fn := range fns {
		e.deliver(tokens[i], fn, snap.Clone())
	}
}

func (e *Engine) deliver(token uint64, fn func(model.State), s model.State) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: subscriber %d panicked: %v", token, r)
		}
	}()
	fn(s)
}

// GetLiveState returns a copy of the current state.
func (e *Engine) GetLiveState() model.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// GetRealtimeHistory returns the retained snapshots, oldest first.
func (e *Engine) GetRealtimeHistory() []model.State {
	items := e.history.Items()
	for i := range items {
		items[i] = items[i].Clone()
	}
	return items
}

// FailsafeActive reports whether the overflow interlock is latched.
func (e *Engine) FailsafeActive() bool {
	return e.failsafe.Active()
}
