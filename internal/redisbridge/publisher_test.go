package redisbridge

import (
	"context"
	"testing"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

func TestOfferKeepsNewest(t *testing.T) {
	p := NewPublisher(nil, twinSource, nil)
	p.Offer(model.State{Tick: 1})
	p.Offer(model.State{Tick: 2})
	p.Offer(model.State{Tick: 3})

	select {
	case s := <-p.latest:
		if s.Tick != 3 {
			t.Errorf("tick = %d, want 3", s.Tick)
		}
	default:
		t.Fatal("nothing queued")
	}
	select {
	case s := <-p.latest:
		t.Errorf("unexpected second snapshot %d", s.Tick)
	default:
	}
}

func TestFreshAlerts(t *testing.T) {
	p := NewPublisher(nil, twinSource, nil)
	low := model.Alert{ID: "ALT-1", Type: model.AlertTankLow, Occurrences: 1}
	leak := model.Alert{ID: "ALT-2", Type: model.AlertLeakage, Occurrences: 1}

	s := model.State{Metrics: model.SystemMetrics{Alerts: []model.Alert{low}}}
	if got := p.freshAlerts(s); len(got) != 1 || got[0].ID != "ALT-1" {
		t.Fatalf("first pass = %+v", got)
	}
	if got := p.freshAlerts(s); len(got) != 0 {
		t.Fatalf("repeat pass = %+v", got)
	}

	low.Occurrences = 2
	s.Metrics.Alerts = []model.Alert{low, leak}
	got := p.freshAlerts(s)
	if len(got) != 2 {
		t.Fatalf("re-raise pass = %+v", got)
	}

	leak.Acknowledged = true
	leak.Occurrences = 3
	s.Metrics.Alerts = []model.Alert{low, leak}
	if got := p.freshAlerts(s); len(got) != 0 {
		t.Errorf("acknowledged alert published: %+v", got)
	}
}

func TestHeartbeatPayload(t *testing.T) {
	running := true
	p := NewPublisher(nil, twinSource, func() bool { return running })

	hb := p.HeartbeatPayload()
	if hb.Status != "running" || hb.Version != "1.0.0" || hb.Tick != 0 {
		t.Errorf("before snapshot = %+v", hb)
	}

	p.last = &model.State{
		Tick:         42,
		SystemStatus: model.StatusFailsafe,
		Failsafe:     model.FailsafeState{Active: true},
		Metrics: model.SystemMetrics{Alerts: []model.Alert{
			{ID: "ALT-1"},
			{ID: "ALT-2", Acknowledged: true},
		}},
	}
	running = false
	hb = p.HeartbeatPayload()
	if hb.Status != "stopped" {
		t.Errorf("status = %q, want stopped", hb.Status)
	}
	if hb.Tick != 42 || hb.SystemStatus != "FAILSAFE" || !hb.Failsafe || hb.ActiveAlerts != 1 {
		t.Errorf("after snapshot = %+v", hb)
	}
}

func TestPublisherRunStopsOnCancel(t *testing.T) {
	rdb := unreachable()
	defer rdb.Close()
	p := NewPublisher(rdb, twinSource, nil, WithHeartbeatInterval(20*time.Millisecond))
	p.Offer(model.State{Tick: 7})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if p.last == nil || p.last.Tick != 7 {
		t.Errorf("last = %+v, want tick 7", p.last)
	}
}

func TestSnapshotIntervalGatesPublishing(t *testing.T) {
	cases := []struct {
		name      string
		every     time.Duration
		published bool
	}{
		{"held until the interval elapses", time.Hour, false},
		{"flushed on the interval", 20 * time.Millisecond, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rdb := unreachable()
			defer rdb.Close()
			p := NewPublisher(rdb, twinSource, nil, WithSnapshotInterval(tc.every))
			p.Offer(model.State{Tick: 7})

			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			done := make(chan struct{})
			go func() {
				p.Run(ctx)
				close(done)
			}()
			<-done

			if tc.published {
				if p.last == nil || p.last.Tick != 7 || p.held != nil {
					t.Errorf("last = %+v held = %+v, want tick 7 published", p.last, p.held)
				}
				return
			}
			if p.last != nil {
				t.Errorf("published tick %d before the interval elapsed", p.last.Tick)
			}
			if p.held == nil || p.held.Tick != 7 {
				t.Errorf("held = %+v, want tick 7", p.held)
			}
		})
	}
}
