// Package scenario plays scripted operator and fault sequences against a
// twin: a YAML list of commands, each fired at an offset from the start.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strawberryjas/gramjaljeevan/internal/command"
	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
)

// Scenario is a named list of timed steps.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step fires one command At after the scenario starts. Only the fields the
// command uses are read.
type Step struct {
	At         time.Duration      `yaml:"at"`
	Command    string             `yaml:"command"`
	Pipeline   *int               `yaml:"pipeline,omitempty"`
	Open       *bool              `yaml:"open,omitempty"`
	Status     string             `yaml:"status,omitempty"`
	Minutes    *float64           `yaml:"minutes,omitempty"`
	StopIn     time.Duration      `yaml:"stop_in,omitempty"`
	StartPump  bool               `yaml:"start_pump,omitempty"`
	Reason     string             `yaml:"reason,omitempty"`
	AlertID    string             `yaml:"alert_id,omitempty"`
	Component  string             `yaml:"component,omitempty"`
	State      string             `yaml:"state,omitempty"`
	Overrides  map[string]float64 `yaml:"overrides,omitempty"`
	Target     string             `yaml:"target,omitempty"`
	Technician string             `yaml:"technician,omitempty"`
	Notes      string             `yaml:"notes,omitempty"`
}

// Request converts the step to a command request. StopIn becomes an
// absolute stop time relative to now.
func (s Step) Request(now time.Time) protocol.CommandRequestPayload {
	req := protocol.CommandRequestPayload{
		Command:    s.Command,
		Pipeline:   s.Pipeline,
		Open:       s.Open,
		Status:     s.Status,
		Minutes:    s.Minutes,
		StartPump:  s.StartPump,
		Reason:     s.Reason,
		AlertID:    s.AlertID,
		Component:  s.Component,
		State:      s.State,
		Overrides:  s.Overrides,
		Target:     s.Target,
		Technician: s.Technician,
		Notes:      s.Notes,
	}
	if s.StopIn > 0 {
		at := now.Add(s.StopIn)
		req.StopAt = &at
	}
	return req
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Load reads a scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Validate checks that every step names a known command and that steps
// are in time order.
func (sc Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	known := command.Names()
	var errs []error
	var prev time.Duration
	for i, st := range sc.Steps {
		name := strings.ToLower(strings.TrimSpace(st.Command))
		if !slices.Contains(known, name) {
			errs = append(errs, fmt.Errorf("step %d: unknown command %q", i+1, st.Command))
		}
		if st.At < 0 {
			errs = append(errs, fmt.Errorf("step %d: negative offset %s", i+1, st.At))
		}
		if st.At < prev {
			errs = append(errs, fmt.Errorf("step %d: offset %s before previous step (%s)", i+1, st.At, prev))
		}
		prev = st.At
	}
	return errors.Join(errs...)
}

// Duration is the offset of the last step.
func (sc Scenario) Duration() time.Duration {
	if len(sc.Steps) == 0 {
		return 0
	}
	return sc.Steps[len(sc.Steps)-1].At
}
