package profile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripPerPacketView(t *testing.T) {
	// Reading the view and writing the same values back must reproduce the
	// canonical fields exactly, for the whole supported range.
	for delay := 0; delay <= 500; delay++ {
		for jitter := 0; jitter <= delay; jitter++ {
			p := Profile{DelayMS: delay, JitterMS: jitter}
			v := p.PerPacket()

			lo, hi := v.Range()
			v.SetRange(float64(lo), float64(hi))

			if p.DelayMS != delay || p.JitterMS != jitter {
				t.Fatalf("per-packet round trip drifted: (%d,%d) -> (%d,%d)",
					delay, jitter, p.DelayMS, p.JitterMS)
			}
		}
	}
}

func TestRoundTripPingView(t *testing.T) {
	for delay := 0; delay <= 500; delay++ {
		for jitter := 0; jitter <= delay; jitter++ {
			p := Profile{DelayMS: delay, JitterMS: jitter}
			v := p.Ping()

			v.SetRTTMS(v.RTTMS())
			v.SetRTTJitterMS(v.RTTJitterMS())
			lo, hi := v.Range()
			v.SetRange(float64(lo), float64(hi))

			if p.DelayMS != delay || p.JitterMS != jitter {
				t.Fatalf("ping round trip drifted: (%d,%d) -> (%d,%d)",
					delay, jitter, p.DelayMS, p.JitterMS)
			}
		}
	}
}

func TestSymmetricDragChangesOnlyJitter(t *testing.T) {
	for _, k := range []float64{1, 2, 2.5, 7, 10.25} {
		t.Run(fmt.Sprintf("k=%v", k), func(t *testing.T) {
			p := Profile{DelayMS: 50, JitterMS: 10}
			v := p.PerPacket()

			lo, hi := v.Range()
			v.SetRange(float64(lo)-k, float64(hi)+k)

			assert.Equal(t, 50, p.DelayMS, "symmetric drag must not move the delay")
			assert.InDelta(t, 10+k, float64(p.JitterMS), 0.5+epsilon)
		})
	}
}

func TestSymmetricDragPingView(t *testing.T) {
	p := Profile{DelayMS: 50, JitterMS: 10}
	v := p.Ping()

	lo, hi := v.Range()
	require.Equal(t, 80, lo)
	require.Equal(t, 120, hi)

	v.SetRange(float64(lo)-4, float64(hi)+4)
	assert.Equal(t, 50, p.DelayMS)
	assert.Equal(t, 12, p.JitterMS)
}

func TestAsymmetricDragInfersJitterFromMovedBound(t *testing.T) {
	p := Profile{DelayMS: 50, JitterMS: 10}
	v := p.PerPacket()

	// Only the max handle moves: [40,60] -> [40,70].
	v.SetRange(40, 70)
	assert.Equal(t, 20, p.JitterMS)
	assert.Equal(t, 60, p.DelayMS)

	p = Profile{DelayMS: 50, JitterMS: 10}
	v = p.PerPacket()

	// Only the min handle moves: [40,60] -> [30,60].
	v.SetRange(30, 60)
	assert.Equal(t, 20, p.JitterMS)
	assert.Equal(t, 50, p.DelayMS)
}

func TestViewScenario(t *testing.T) {
	p := Profile{DelayMS: 50, JitterMS: 10}

	lo, hi := p.PerPacket().Range()
	assert.Equal(t, 40, lo)
	assert.Equal(t, 60, hi)

	ping := p.Ping()
	assert.Equal(t, 100, ping.RTTMS())
	assert.Equal(t, 20, ping.RTTJitterMS())
	lo, hi = ping.Range()
	assert.Equal(t, 80, lo)
	assert.Equal(t, 120, hi)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		p    Profile
		want Classification
	}{
		{"clean", Profile{}, ClassNominal},
		{"mild", Profile{DelayMS: 100, JitterMS: 50}, ClassNominal},
		{"poor delay", Profile{DelayMS: 180, JitterMS: 30}, ClassPoor},
		{"poor drop", Profile{DropPercent: 16}, ClassPoor},
		{"terrible delay", Profile{DelayMS: 450, JitterMS: 60}, ClassTerrible},
		{"terrible drop", Profile{DropPercent: 61}, ClassTerrible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Classify())
		})
	}
}

func TestAdvisories(t *testing.T) {
	p := Profile{FuzzPercent: 5, DropPercent: 70}
	advisories := p.Advisories()
	require.Len(t, advisories, 2)
	assert.Contains(t, advisories[0], "corruption")
	assert.Contains(t, advisories[1], "terrible")

	assert.Empty(t, Profile{}.Advisories())
}

func TestEffectiveForcesFullLoss(t *testing.T) {
	p := Profile{DelayMS: 50, JitterMS: 10, DropPercent: 5, Enabled: true}

	eff := p.Effective(true)
	assert.Equal(t, 100, eff.DropPercent)
	assert.Equal(t, 50, eff.DelayMS)

	// The base profile is untouched.
	assert.Equal(t, 5, p.DropPercent)
	assert.Equal(t, p, p.Effective(false))
}

func TestNormalize(t *testing.T) {
	p := Profile{DelayMS: -5, JitterMS: -1, DropPercent: 120, FuzzPercent: -3}
	p.Normalize()
	assert.Equal(t, Profile{DropPercent: 100}, p)
}
