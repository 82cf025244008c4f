// Package profile models emulated network conditions: a per-packet delay with
// jitter, a packet drop rate, and a packet corruption ("fuzz") rate. The four
// canonical numbers can be edited through two equivalent views, per-packet and
// ping, both of which round-trip back to the canonical fields exactly.
package profile

import "math"

// epsilon distinguishes a symmetric range drag (both handles moved together)
// from a single-handle drag. The tie-break for diagonal drags is a UX choice,
// not a correctness requirement.
const epsilon = 0.001

// Profile describes the emulated network conditions for one node. The zero
// value is a clean connection with emulation disabled.
type Profile struct {
	// DelayMS is the one-way per-packet delay in milliseconds.
	DelayMS int
	// JitterMS is the per-packet delay variance in milliseconds.
	JitterMS int
	// DropPercent is the chance a packet is dropped, 0-100.
	DropPercent int
	// FuzzPercent is the chance a packet is corrupted, 0-100.
	FuzzPercent int
	// Enabled gates the whole emulation pipeline. Flipping it is disruptive:
	// active connections must reconnect to pick up the new pipeline.
	Enabled bool
}

// PerPacketMinMS is the lower bound of the per-packet delay range.
func (p Profile) PerPacketMinMS() int {
	if p.DelayMS < p.JitterMS {
		return 0
	}
	return p.DelayMS - p.JitterMS
}

// PerPacketMaxMS is the upper bound of the per-packet delay range.
func (p Profile) PerPacketMaxMS() int {
	return p.DelayMS + p.JitterMS
}

// RTTMS is the round-trip time implied by the one-way delay.
func (p Profile) RTTMS() int {
	return 2 * p.DelayMS
}

// RTTJitterMS is the round-trip jitter implied by the one-way jitter.
func (p Profile) RTTJitterMS() int {
	return 2 * p.JitterMS
}

// Effective returns the profile actually pushed to the transport: the base
// profile, except drop is forced to 100% while a fault is active on the node.
func (p Profile) Effective(faultActive bool) Profile {
	if faultActive {
		p.DropPercent = 100
	}
	return p
}

// Normalize clamps all fields into their valid ranges.
func (p *Profile) Normalize() {
	p.DelayMS = maxInt(0, p.DelayMS)
	p.JitterMS = maxInt(0, p.JitterMS)
	p.DropPercent = clampInt(p.DropPercent, 0, 100)
	p.FuzzPercent = clampInt(p.FuzzPercent, 0, 100)
}

// Classification is an advisory quality rating. It never blocks anything.
type Classification int

const (
	ClassNominal Classification = iota
	ClassPoor
	ClassTerrible
)

func (c Classification) String() string {
	switch c {
	case ClassNominal:
		return "nominal"
	case ClassPoor:
		return "poor"
	case ClassTerrible:
		return "terrible"
	default:
		return "unknown"
	}
}

// Classify rates the connection quality the profile describes.
func (p Profile) Classify() Classification {
	total := p.DelayMS + p.JitterMS
	switch {
	case p.DropPercent > 60 || total > 500:
		return ClassTerrible
	case p.DropPercent > 15 || total > 200:
		return ClassPoor
	default:
		return ClassNominal
	}
}

// Corrupting reports whether the profile corrupts packets. Corruption is a
// test-only condition and not representative of real networks.
func (p Profile) Corrupting() bool {
	return p.FuzzPercent > 0
}

// Advisories returns the human-readable warnings for the profile.
func (p Profile) Advisories() []string {
	var out []string
	if p.Corrupting() {
		out = append(out, "packet corruption is enabled; test-only, not representative of real networks")
	}
	switch p.Classify() {
	case ClassTerrible:
		out = append(out, "terrible connection: most traffic will not get through")
	case ClassPoor:
		out = append(out, "poor connection")
	}
	return out
}

func round(v float64) int {
	return int(math.Round(v))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
