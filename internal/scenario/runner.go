package scenario

import (
	"context"
	"log"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/command"
	"github.com/strawberryjas/gramjaljeevan/internal/relay"
)

// StepResult is the outcome of one played step.
type StepResult struct {
	Index   int           `json:"index"`
	Command string        `json:"command"`
	At      time.Duration `json:"at"`
	Result  relay.Result  `json:"result"`
}

// Runner plays scenarios against a twin.
type Runner struct {
	twin  command.Twin
	clock func() time.Time
	wait  func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner that waits in wall-clock time.
func NewRunner(twin command.Twin) *Runner {
	return &Runner{twin: twin, clock: time.Now, wait: sleep}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Play runs sc to completion or until ctx is cancelled. A failed step is
// logged and does not stop the scenario.
func (r *Runner) Play(ctx context.Context, sc Scenario) ([]StepResult, error) {
	log.Printf("scenario: %s: %d steps over %s", sc.Name, len(sc.Steps), sc.Duration())
	results := make([]StepResult, 0, len(sc.Steps))
	var elapsed time.Duration

	for i, st := range sc.Steps {
		if err := r.wait(ctx, st.At-elapsed); err != nil {
			log.Printf("scenario: %s: stopped before step %d", sc.Name, i+1)
			return results, err
		}
		elapsed = st.At

		res := command.Execute(r.twin, st.Request(r.clock()))
		if res.Success {
			log.Printf("scenario: %s: step %d %s: %s", sc.Name, i+1, st.Command, res.Reason)
		} else {
			log.Printf("scenario: %s: step %d %s failed: %s", sc.Name, i+1, st.Command, res.Reason)
		}
		results = append(results, StepResult{Index: i + 1, Command: st.Command, At: st.At, Result: res})
	}
	log.Printf("scenario: %s: done", sc.Name)
	return results, nil
}
