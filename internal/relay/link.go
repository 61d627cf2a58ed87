package relay

import (
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/simrand"
)

const (
	nominalSignal   = -42.0 // dBm
	connectedFloor  = -75.0
	degradedFloor   = -90.0
	signalRecovery  = 0.005 // fraction of the gap closed per second
	minSignal       = -110.0
	maxSignal       = -30.0
	healthDriftStep = 0.02
)

// Heartbeat advances the controller's uptime, signal and health by dt.
func (r *Relay) Heartbeat(cu *model.ControlUnit, dt time.Duration, now time.Time) {
	sec := dt.Seconds()
	cu.Uptime += sec
	cu.LastHeartbeat = now

	gap := nominalSignal - cu.SignalStrength
	step := gap * signalRecovery * sec
	if abs(step) > abs(gap) {
		step = gap
	}
	cu.SignalStrength = clamp(cu.SignalStrength+step+simrand.Noise(r.rand, 0.5), minSignal, maxSignal)
	cu.Health = clamp(cu.Health+simrand.Noise(r.rand, healthDriftStep), 0, 100)
	cu.NetworkStatus = LinkStatus(cu.SignalStrength)
}

// LinkStatus classifies a signal strength.
func LinkStatus(dbm float64) model.NetworkStatus {
	switch {
	case dbm >= connectedFloor:
		return model.NetworkConnected
	case dbm >= degradedFloor:
		return model.NetworkDegraded
	}
	return model.NetworkDisconnected
}

// SignalFor returns a representative signal strength for a link status.
func SignalFor(s model.NetworkStatus) float64 {
	switch s {
	case model.NetworkDegraded:
		return -82
	case model.NetworkDisconnected:
		return minSignal
	}
	return nominalSignal
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
