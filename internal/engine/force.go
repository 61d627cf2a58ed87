package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/physics"
	"github.com/strawberryjas/gramjaljeevan/internal/relay"
)

// Force components.
const (
	ComponentPump = "pump"
	ComponentTank = "tank"
	ComponentMCU  = "mcu"
)

// Named target states accepted by ForceSimulationState. SET applies only
// the overrides.
const (
	ForceOn           = "ON"
	ForceOff          = "OFF"
	ForceOverheat     = "OVERHEAT"
	ForceDegraded     = "DEGRADED"
	ForceNormal       = "NORMAL"
	ForceLow          = "LOW"
	ForceFull         = "FULL"
	ForceOverflow     = "OVERFLOW"
	ForceEmpty        = "EMPTY"
	ForceLevel        = "LEVEL"
	ForceContaminated = "CONTAMINATED"
	ForceLeak         = "LEAK"
	ForceBurst        = "BURST"
	ForceConnected    = "CONNECTED"
	ForceDisconnected = "DISCONNECTED"
	ForceFault        = "FAULT"
	ForceSet          = "SET"
)

// field is one overridable numeric value.
type field struct {
	lo, hi float64
	set    func(s *model.State, p *model.PipelineSegment, v float64)
}

var pumpFields = map[string]field{
	"motortemperature": {20, 110, func(s *model.State, _ *model.PipelineSegment, v float64) { s.Pump.MotorTemperature = v }},
	"efficiency":       {40, 100, func(s *model.State, _ *model.PipelineSegment, v float64) { s.Pump.Efficiency = v }},
	"bearingwear":      {0, 10, func(s *model.State, _ *model.PipelineSegment, v float64) { s.Pump.BearingWear = v }},
	"vibration":        {0, 20, func(s *model.State, _ *model.PipelineSegment, v float64) { s.Pump.Vibration = v }},
}

var tankFields = map[string]field{
	"level":       {0, 100, func(s *model.State, _ *model.PipelineSegment, v float64) { physics.SetTankLevel(&s.Tank, v) }},
	"temperature": {0, 50, func(s *model.State, _ *model.PipelineSegment, v float64) { s.Tank.Temperature = v }},
	"ph":          {physics.PHRange[0], physics.PHRange[1], func(s *model.State, _ *model.PipelineSegment, v float64) { s.Tank.Quality.PH = v }},
	"turbidity":   {physics.TurbidityRange[0], physics.TurbidityRange[1], func(s *model.State, _ *model.PipelineSegment, v float64) { s.Tank.Quality.Turbidity = v }},
	"chlorine":    {physics.ChlorineRange[0], physics.ChlorineRange[1], func(s *model.State, _ *model.PipelineSegment, v float64) { s.Tank.Quality.Chlorine = v }},
	"tds":         {physics.TDSRange[0], physics.TDSRange[1], func(s *model.State, _ *model.PipelineSegment, v float64) { s.Tank.Quality.TDS = v }},
}

var pipelineFields = map[string]field{
	"leakageprobability": {0, 100, func(_ *model.State, p *model.PipelineSegment, v float64) { p.LeakageProbability = v }},
	"ecoli":              {0, 1000, func(_ *model.State, p *model.PipelineSegment, v float64) { p.Outlet.Quality.Ecoli = v }},
}

var mcuFields = map[string]field{
	"health": {0, 100, func(s *model.State, _ *model.PipelineSegment, v float64) { s.ControlUnit.Health = v }},
	"signalstrength": {-110, -30, func(s *model.State, _ *model.PipelineSegment, v float64) {
		s.ControlUnit.SignalStrength = v
		s.ControlUnit.NetworkStatus = relay.LinkStatus(v)
	}},
}

// ForceSimulationState puts a component into a named state, bypassing the
// physics for one tick. component is "pump", "tank", "mcu" or
// "pipeline-N". overrides are named numeric fields such as level,
// motorTemperature or leakageProbability; camelCase and snake_case are
// both accepted.
func (e *Engine) ForceSimulationState(component, state string, overrides map[string]float64) Result {
	component = strings.ToLower(strings.TrimSpace(component))
	state = strings.ToUpper(strings.TrimSpace(state))

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()

	pipelineID, isPipeline := 0, false
	var fields map[string]field
	var apply func(s *model.State, p *model.PipelineSegment)
	holdTank, holdOutlet := false, false

	switch component {
	case ComponentPump:
		fields = pumpFields
		switch state {
		case ForceOn, ForceOff:
			if len(overrides) > 0 {
				return relay.Fail("pump %s takes no overrides", state)
			}
			if state == ForceOn {
				if err := e.pumpStartBlocked(model.OriginForce); err != nil {
					return relay.Fail("%v", err)
				}
			}
			r := e.submit(model.RelayCommand{Device: model.DevicePump, Action: state, Origin: model.OriginForce}, now)
			e.refresh()
			return r
		case ForceOverheat:
			apply = func(s *model.State, _ *model.PipelineSegment) { s.Pump.MotorTemperature = 78 }
		case ForceDegraded:
			apply = func(s *model.State, _ *model.PipelineSegment) {
				s.Pump.Efficiency = 60
				s.Pump.BearingWear = 4
			}
		case ForceNormal:
			apply = func(s *model.State, _ *model.PipelineSegment) {
				physics.RepairPump(&s.Pump, e.cfg.Physics)
				s.Pump.MotorTemperature = e.cfg.Physics.AmbientTemperature
			}
		case ForceSet:
		default:
			return relay.Fail("unknown pump state %q", state)
		}

	case ComponentTank:
		fields = tankFields
		holdTank = true
		level := func(v float64) func(*model.State, *model.PipelineSegment) {
			return func(s *model.State, _ *model.PipelineSegment) { physics.SetTankLevel(&s.Tank, v) }
		}
		switch state {
		case ForceLow:
			apply = level(15)
		case ForceFull:
			apply = level(96)
		case ForceOverflow:
			apply = level(100)
		case ForceEmpty:
			apply = level(0)
		case ForceLevel:
			if _, ok := lookup(overrides, "level"); !ok {
				return relay.Fail("tank LEVEL needs a level override")
			}
		case ForceContaminated:
			holdTank = false
			apply = func(s *model.State, _ *model.PipelineSegment) {
				q := &s.Tank.Quality
				q.Turbidity = 6
				q.Chlorine = 0.1
				q.PH = 6.2
			}
		case ForceSet:
		default:
			return relay.Fail("unknown tank state %q", state)
		}

	case ComponentMCU:
		fields = mcuFields
		link := func(st model.NetworkStatus) func(*model.State, *model.PipelineSegment) {
			return func(s *model.State, _ *model.PipelineSegment) {
				s.ControlUnit.SignalStrength = relay.SignalFor(st)
				s.ControlUnit.NetworkStatus = st
			}
		}
		switch state {
		case ForceConnected:
			apply = link(model.NetworkConnected)
		case ForceDegraded:
			apply = link(model.NetworkDegraded)
		case ForceDisconnected:
			apply = link(model.NetworkDisconnected)
		case ForceFault:
			degraded := link(model.NetworkDegraded)
			apply = func(s *model.State, p *model.PipelineSegment) {
				degraded(s, p)
				s.ControlUnit.Health = 20
			}
		case ForceSet:
		default:
			return relay.Fail("unknown mcu state %q", state)
		}

	default:
		id, ok := parsePipelineTarget(component)
		if !ok {
			return relay.Fail("unknown component %q", component)
		}
		if e.state.Pipeline(id) == nil {
			return relay.Fail("pipeline %d not found", id)
		}
		pipelineID, isPipeline = id, true
		fields = pipelineFields
		_, holdOutlet = lookup(overrides, "ecoli")
		switch state {
		case ForceLeak:
			apply = func(_ *model.State, p *model.PipelineSegment) {
				p.LeakageProbability = math.Max(p.LeakageProbability, 45)
			}
		case ForceBurst:
			apply = func(_ *model.State, p *model.PipelineSegment) { p.LeakageProbability = 85 }
		case ForceNormal:
			apply = func(_ *model.State, p *model.PipelineSegment) { physics.RepairPipeline(p) }
		case ForceContaminated:
			holdOutlet = true
			apply = func(_ *model.State, p *model.PipelineSegment) {
				p.Outlet.Quality.Ecoli = 12
				p.Outlet.Quality.ResidualChlorine = 0.05
			}
		case ForceSet:
		default:
			return relay.Fail("unknown pipeline state %q", state)
		}
	}

	setters, err := resolve(fields, overrides)
	if err != nil {
		return relay.Fail("%v", err)
	}
	if apply == nil && len(setters) == 0 {
		return relay.Fail("%s %s: nothing to apply", component, state)
	}

	e.forcing = func(s *model.State) {
		var p *model.PipelineSegment
		if isPipeline {
			p = s.Pipeline(pipelineID)
		}
		if apply != nil {
			apply(s, p)
		}
		for _, set := range setters {
			set(s, p)
		}
		if holdTank {
			e.holdTank = true
		}
		if holdOutlet && p != nil {
			if e.heldOutlet == nil {
				e.heldOutlet = make(map[int]model.LineQuality)
			}
			e.heldOutlet[p.ID] = p.Outlet.Quality
		}
	}
	r := e.submit(model.RelayCommand{
		Device:     model.DeviceSimulation,
		Action:     component + ":" + state,
		PipelineID: pipelineID,
		Origin:     model.OriginForce,
	}, now)
	e.forcing = nil
	e.refresh()
	return r
}

// resolve validates overrides against the component's fields and returns
// setters in a stable order.
func resolve(fields map[string]field, overrides map[string]float64) ([]func(*model.State, *model.PipelineSegment), error) {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []func(*model.State, *model.PipelineSegment)
	for _, name := range names {
		v := overrides[name]
		f, ok := fields[normalize(name)]
		if !ok {
			return nil, fmt.Errorf("unknown override %q", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("override %q is not a number", name)
		}
		v = physics.Clamp(v, f.lo, f.hi)
		set := f.set
		out = append(out, func(s *model.State, p *model.PipelineSegment) { set(s, p, v) })
	}
	return out, nil
}

func lookup(overrides map[string]float64, key string) (float64, bool) {
	for name, v := range overrides {
		if normalize(name) == key {
			return v, true
		}
	}
	return 0, false
}

func normalize(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(name, "_", ""), "-", ""))
}
