package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// Sink is a telemetry destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, readings []Reading) error
	Close() error
}

// Publisher sends the newest snapshot to every sink once per interval.
// Offer never blocks, so a slow broker cannot stall the tick loop.
type Publisher struct {
	sinks    []Sink
	interval time.Duration

	mu      sync.Mutex
	latest  *model.State
	lastErr map[string]bool

	published int64
	failed    int64
}

// NewPublisher creates a publisher. interval <= 0 means 5s.
func NewPublisher(interval time.Duration, sinks ...Sink) *Publisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Publisher{sinks: sinks, interval: interval, lastErr: make(map[string]bool)}
}

// Offer replaces the pending snapshot.
func (p *Publisher) Offer(s model.State) {
	p.mu.Lock()
	p.latest = &s
	p.mu.Unlock()
}

func (p *Publisher) take() *model.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.latest
	p.latest = nil
	return s
}

// Stats returns how many batches went out and how many sink writes failed.
func (p *Publisher) Stats() (published, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.failed
}

// Flush publishes the pending snapshot, if any, to every sink.
func (p *Publisher) Flush(ctx context.Context) {
	s := p.take()
	if s == nil {
		return
	}
	readings := Readings(*s)
	for _, sink := range p.sinks {
		err := sink.Publish(ctx, readings)

		p.mu.Lock()
		wasFailing := p.lastErr[sink.Name()]
		p.lastErr[sink.Name()] = err != nil
		if err != nil {
			p.failed++
		} else {
			p.published++
		}
		p.mu.Unlock()

		switch {
		case err != nil && !wasFailing:
			log.Printf("telemetry: %s publish failed: %v", sink.Name(), err)
		case err == nil && wasFailing:
			log.Printf("telemetry: %s publishing again", sink.Name())
		}
	}
}

// Run flushes every interval until ctx is cancelled, then closes the sinks.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer func() {
		for _, sink := range p.sinks {
			if err := sink.Close(); err != nil {
				log.Printf("telemetry: closing %s: %v", sink.Name(), err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}
