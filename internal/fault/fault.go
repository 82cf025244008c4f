// Package fault implements per-node fault injection: a lag spike (100% loss
// for a bounded duration) or a forced timeout (100% loss until toggled off).
// The two modes are mutually exclusive; activating one deactivates the other.
package fault

// LagSpikeDurationsMS is the discrete set of lag-spike durations offered to
// the user, in milliseconds. Requested durations snap to the nearest entry.
var LagSpikeDurationsMS = []int{10, 100, 200, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000}

// inactive is the sentinel for both timers.
const inactive = -1

// Injector holds the fault state for one node. The zero value is not usable;
// call New.
type Injector struct {
	// LagSpikeRemainingMS counts down while a lag spike is active; -1 when
	// inactive.
	LagSpikeRemainingMS int
	// TimeoutElapsedSeconds counts up while a forced timeout is active; -1
	// when inactive.
	TimeoutElapsedSeconds float64

	// spikeCarryMS holds fractional milliseconds not yet applied to the
	// countdown, so sub-millisecond ticks do not stretch the spike.
	spikeCarryMS float64
}

// New returns an injector with both faults inactive.
func New() *Injector {
	return &Injector{
		LagSpikeRemainingMS:   inactive,
		TimeoutElapsedSeconds: inactive,
	}
}

// LagSpikeActive reports whether a lag spike is running.
func (i *Injector) LagSpikeActive() bool {
	return i.LagSpikeRemainingMS >= 0
}

// TimeoutActive reports whether a forced timeout is running.
func (i *Injector) TimeoutActive() bool {
	return i.TimeoutElapsedSeconds >= 0
}

// Active reports whether either fault is running. While active, the node's
// effective profile forces 100% packet loss.
func (i *Injector) Active() bool {
	return i.LagSpikeActive() || i.TimeoutActive()
}

// ToggleLagSpike starts a lag spike of roughly the given duration, or stops
// the running one. A running forced timeout is deactivated first. Returns
// whether the lag spike is active afterwards.
func (i *Injector) ToggleLagSpike(durationMS int) bool {
	if i.TimeoutActive() {
		i.TimeoutElapsedSeconds = inactive
	}
	if i.LagSpikeActive() {
		i.LagSpikeRemainingMS = inactive
		return false
	}
	i.LagSpikeRemainingMS = SnapDuration(durationMS)
	i.spikeCarryMS = 0
	return true
}

// ToggleTimeout starts a forced timeout, or stops the running one. A running
// lag spike is deactivated first. Returns whether the timeout is active
// afterwards.
func (i *Injector) ToggleTimeout() bool {
	if i.LagSpikeActive() {
		i.LagSpikeRemainingMS = inactive
	}
	if i.TimeoutActive() {
		i.TimeoutElapsedSeconds = inactive
		return false
	}
	i.TimeoutElapsedSeconds = 0
	return true
}

// Reset deactivates both faults.
func (i *Injector) Reset() {
	i.LagSpikeRemainingMS = inactive
	i.TimeoutElapsedSeconds = inactive
	i.spikeCarryMS = 0
}

// ClearTimeout deactivates a forced timeout without touching the lag spike.
// Used when the node disconnects, which ends the timeout implicitly.
func (i *Injector) ClearTimeout() {
	i.TimeoutElapsedSeconds = inactive
}

// Advance moves the fault timers forward by dt seconds. It returns true when
// the effective profile changed (a lag spike ran out) and must be re-applied
// to the transport.
func (i *Injector) Advance(dt float64) bool {
	changed := false
	if i.LagSpikeActive() {
		i.spikeCarryMS += dt * 1000
		elapsed := int(i.spikeCarryMS)
		i.spikeCarryMS -= float64(elapsed)
		i.LagSpikeRemainingMS -= elapsed
		if i.LagSpikeRemainingMS < 0 {
			i.LagSpikeRemainingMS = inactive
			i.spikeCarryMS = 0
			changed = true
		}
	}
	if i.TimeoutActive() {
		i.TimeoutElapsedSeconds += dt
	}
	return changed
}

// SnapDuration returns the entry of LagSpikeDurationsMS closest to ms.
func SnapDuration(ms int) int {
	best := LagSpikeDurationsMS[0]
	for _, d := range LagSpikeDurationsMS[1:] {
		if abs(ms-d) < abs(ms-best) {
			best = d
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
