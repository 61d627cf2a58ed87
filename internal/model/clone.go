package model

// Clone returns a deep copy of the state. Nothing in the copy aliases the
// receiver.
func (s *State) Clone() State {
	cp := *s
	cp.Tank.Maintenance = s.Tank.Maintenance.clone()
	cp.Pump.Maintenance = s.Pump.Maintenance.clone()

	if s.Pipelines != nil {
		cp.Pipelines = make([]PipelineSegment, len(s.Pipelines))
		for i, p := range s.Pipelines {
			p.Maintenance = p.Maintenance.clone()
			cp.Pipelines[i] = p
		}
	}

	cp.ControlUnit = s.ControlUnit.Clone()
	cp.Metrics.Alerts = CloneAlerts(s.Metrics.Alerts)

	if s.Schedule.LastEvent != nil {
		ev := *s.Schedule.LastEvent
		cp.Schedule.LastEvent = &ev
	}
	return cp
}

// Clone returns a deep copy of the control unit.
func (c ControlUnit) Clone() ControlUnit {
	cp := c
	if c.PendingCommands != nil {
		cp.PendingCommands = append([]RelayCommand(nil), c.PendingCommands...)
	}
	if c.ExecutedCommands != nil {
		cp.ExecutedCommands = append([]RelayCommand(nil), c.ExecutedCommands...)
	}
	if c.ValveRelays != nil {
		cp.ValveRelays = make(map[int]ValveState, len(c.ValveRelays))
		for k, v := range c.ValveRelays {
			cp.ValveRelays[k] = v
		}
	}
	return cp
}

// CloneAlerts deep-copies an alert slice.
func CloneAlerts(in []Alert) []Alert {
	if in == nil {
		return nil
	}
	out := make([]Alert, len(in))
	for i, a := range in {
		if a.AcknowledgedAt != nil {
			t := *a.AcknowledgedAt
			a.AcknowledgedAt = &t
		}
		out[i] = a
	}
	return out
}

func (m Maintenance) clone() Maintenance {
	if m.MaintenanceHistory != nil {
		m.MaintenanceHistory = append([]MaintenanceRecord(nil), m.MaintenanceHistory...)
	}
	return m
}
