package profile

import "math"

// The two views edit the same canonical numbers. A view is a thin handle over
// a Profile; reading a view and writing the same values back never changes
// the canonical fields (no drift on repeated no-op edits).

// PerPacketView edits the profile in terms of one-way per-packet delay.
type PerPacketView struct {
	p *Profile
}

// PerPacket returns the per-packet editing view.
func (p *Profile) PerPacket() PerPacketView {
	return PerPacketView{p: p}
}

// DelayMS returns the one-way delay.
func (v PerPacketView) DelayMS() int { return v.p.DelayMS }

// JitterMS returns the one-way jitter.
func (v PerPacketView) JitterMS() int { return v.p.JitterMS }

// SetDelayMS sets the one-way delay directly.
func (v PerPacketView) SetDelayMS(ms int) {
	v.p.DelayMS = maxInt(0, ms)
}

// SetJitterMS sets the one-way jitter directly.
func (v PerPacketView) SetJitterMS(ms int) {
	v.p.JitterMS = maxInt(0, ms)
}

// Range returns the [min, max] per-packet delay range.
func (v PerPacketView) Range() (minMS, maxMS int) {
	return v.p.PerPacketMinMS(), v.p.PerPacketMaxMS()
}

// SetRange applies a drag of the [min, max] range. A symmetric drag (both
// handles moved by the same amount) changes only the jitter; otherwise the
// jitter is inferred from whichever handle moved more.
func (v PerPacketView) SetRange(newMin, newMax float64) {
	oldMin, oldMax := v.Range()
	dMin := newMin - float64(oldMin)
	dMax := newMax - float64(oldMax)

	var jitter int
	var delay int
	switch {
	case math.Abs(math.Abs(dMin)-math.Abs(dMax)) <= epsilon:
		jitter = round((newMax - newMin) * 0.5)
		// min + jitter, computed before jitter is rounded
		delay = round((newMin + newMax) * 0.5)
	case math.Abs(dMin) > math.Abs(dMax):
		jitter = round(float64(v.p.DelayMS) - newMin)
		if jitter < 0 {
			jitter = 0
		}
		delay = round(newMin + float64(jitter))
	default:
		jitter = round(newMax - float64(v.p.DelayMS))
		if jitter < 0 {
			jitter = 0
		}
		delay = round(newMin + float64(jitter))
	}

	v.p.JitterMS = jitter
	v.p.DelayMS = maxInt(0, delay)
}

// PingView edits the profile in terms of round-trip time, the number most
// players actually see.
type PingView struct {
	p *Profile
}

// Ping returns the round-trip editing view.
func (p *Profile) Ping() PingView {
	return PingView{p: p}
}

// RTTMS returns the round-trip time.
func (v PingView) RTTMS() int { return v.p.RTTMS() }

// RTTJitterMS returns the round-trip jitter.
func (v PingView) RTTJitterMS() int { return v.p.RTTJitterMS() }

// SetRTTMS sets the round-trip time; the canonical one-way delay is half.
func (v PingView) SetRTTMS(ms int) {
	v.p.DelayMS = maxInt(0, round(float64(ms)*0.5))
}

// SetRTTJitterMS sets the round-trip jitter; the canonical jitter is half.
func (v PingView) SetRTTJitterMS(ms int) {
	v.p.JitterMS = maxInt(0, round(float64(ms)*0.5))
}

// Range returns the [min, max] total round-trip delay range, which spans
// twice the per-packet range.
func (v PingView) Range() (minMS, maxMS int) {
	return 2 * v.p.PerPacketMinMS(), 2 * v.p.PerPacketMaxMS()
}

// SetRange applies a drag of the round-trip range. Same heuristic as the
// per-packet view, scaled by 0.25 instead of 0.5 because the range spans
// twice the per-packet range.
func (v PingView) SetRange(newMin, newMax float64) {
	oldMin, oldMax := v.Range()
	dMin := newMin - float64(oldMin)
	dMax := newMax - float64(oldMax)

	var jitter int
	var delay int
	switch {
	case math.Abs(math.Abs(dMin)-math.Abs(dMax)) <= epsilon:
		jitter = round((newMax - newMin) * 0.25)
		delay = round((newMin + newMax) * 0.25)
	case math.Abs(dMin) > math.Abs(dMax):
		jitter = round(float64(v.p.DelayMS) - newMin*0.5)
		if jitter < 0 {
			jitter = 0
		}
		delay = round(newMin*0.5 + float64(jitter))
	default:
		jitter = round(newMax*0.5 - float64(v.p.DelayMS))
		if jitter < 0 {
			jitter = 0
		}
		delay = round(newMin*0.5 + float64(jitter))
	}

	v.p.JitterMS = jitter
	v.p.DelayMS = maxInt(0, delay)
}
