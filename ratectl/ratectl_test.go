package ratectl

import (
	"math/rand"
	"testing"

	"github.com/soypat/acx/acxfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreCountSwallowsReports(t *testing.T) {
	c := Controller{FallbackThreshold: 1, StepupThreshold: 1, IgnoreAfterChange: 2}
	s := State{Cur: acxfw.Rate1 | acxfw.Rate2, Cfg: acxfw.RateB, IgnoreCount: 2}
	assert.Equal(t, Unchanged, c.Update(&s, acxfw.Rate1, true))
	assert.Equal(t, Unchanged, c.Update(&s, acxfw.Rate1, true))
	assert.Equal(t, acxfw.Rate1|acxfw.Rate2, s.Cur, "ignored reports must not change rate")
	assert.Equal(t, Fallback, c.Update(&s, acxfw.Rate1, true))
	assert.Equal(t, acxfw.Rate1, s.Cur)
	assert.EqualValues(t, 2, s.IgnoreCount)
}

func TestFallbackAtThreshold(t *testing.T) {
	c := Controller{FallbackThreshold: 3, StepupThreshold: 10, IgnoreAfterChange: 0}
	s := State{Cur: acxfw.Rate1 | acxfw.Rate2 | acxfw.Rate11, Cfg: acxfw.RateB}
	for i := 0; i < 2; i++ {
		require.Equal(t, Unchanged, c.Update(&s, acxfw.Rate11, true))
	}
	require.Equal(t, Fallback, c.Update(&s, acxfw.Rate11, true))
	assert.Equal(t, acxfw.Rate1|acxfw.Rate2, s.Cur)
	assert.Zero(t, s.FallbackCount)
}

func TestSlowerRateCountsAsFallback(t *testing.T) {
	c := Controller{FallbackThreshold: 1, StepupThreshold: 1}
	s := State{Cur: acxfw.Rate2 | acxfw.Rate11, Cfg: acxfw.RateB}
	// Successful transmission, but at a rate below the one being tried.
	require.Equal(t, Fallback, c.Update(&s, acxfw.Rate2, false))
	assert.Equal(t, acxfw.Rate2, s.Cur)
}

func TestNeverClearsLastBit(t *testing.T) {
	c := Controller{FallbackThreshold: 1, StepupThreshold: 1}
	s := State{Cur: acxfw.Rate1, Cfg: acxfw.RateB}
	for i := 0; i < 10; i++ {
		assert.Equal(t, Unchanged, c.Update(&s, acxfw.Rate1, true))
		require.Equal(t, acxfw.Rate1, s.Cur)
	}
}

func TestStepupSkipsRatesAlreadySet(t *testing.T) {
	c := Controller{FallbackThreshold: 3, StepupThreshold: 2}
	s := State{Cur: acxfw.Rate1 | acxfw.Rate2, Cfg: acxfw.Rate1 | acxfw.Rate2 | acxfw.Rate11 | acxfw.Rate54}
	require.Equal(t, Unchanged, c.Update(&s, acxfw.Rate2, false))
	require.Equal(t, Stepup, c.Update(&s, acxfw.Rate2, false))
	assert.Equal(t, acxfw.Rate1|acxfw.Rate2|acxfw.Rate11, s.Cur, "5.5 is not in cfg and must be skipped")
}

func TestStepupAtTopIsNoop(t *testing.T) {
	c := Controller{FallbackThreshold: 3, StepupThreshold: 1}
	s := State{Cur: acxfw.RateB, Cfg: acxfw.RateB}
	assert.Equal(t, Unchanged, c.Update(&s, acxfw.Rate11, false))
	assert.Equal(t, acxfw.RateB, s.Cur)
	assert.Zero(t, s.StepupCount)
}

func TestUninitializedStateIgnored(t *testing.T) {
	c := Default()
	var s State
	assert.Equal(t, Unchanged, c.Update(&s, acxfw.Rate1, true))
	assert.Zero(t, s.Cur)
}

func TestReset(t *testing.T) {
	var s State
	s.Reset(acxfw.Rate5|acxfw.Rate11, 16)
	assert.Equal(t, acxfw.Rate5, s.Cur)
	assert.EqualValues(t, 16, s.IgnoreCount)
}

// Random event sequences: the rate set is never emptied, fallback strictly
// lowers the top rate and stepup strictly raises it.
func TestRandomEventsProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		c := Controller{
			FallbackThreshold: uint8(1 + rng.Intn(4)),
			StepupThreshold:   uint8(1 + rng.Intn(6)),
			IgnoreAfterChange: uint8(rng.Intn(3)),
		}
		cfg := acxfw.Rate(rng.Intn(int(acxfw.RateAll))) | acxfw.Rate1
		var s State
		s.Reset(cfg, 0)
		for ev := 0; ev < 500; ev++ {
			before := s.Cur.Highest()
			used := before
			if rng.Intn(3) == 0 {
				used = acxfw.Rate(1) << rng.Intn(13)
			}
			switch c.Update(&s, used, rng.Intn(4) == 0) {
			case Fallback:
				require.Less(t, s.Cur.Highest(), before)
			case Stepup:
				require.Greater(t, s.Cur.Highest(), before)
				require.NotZero(t, s.Cur.Highest()&cfg)
			}
			require.NotZero(t, s.Cur, "trial %d event %d", trial, ev)
		}
	}
}

func TestFullRateSuccessesStepUp(t *testing.T) {
	c := Default()
	var s State
	s.Reset(acxfw.RateB, 0)
	before := s.Cur.Highest()
	for i := 0; i < int(c.StepupThreshold); i++ {
		c.Update(&s, s.Cur.Highest(), false)
	}
	assert.Greater(t, s.Cur.Highest(), before)
}
