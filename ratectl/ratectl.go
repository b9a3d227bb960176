// package ratectl implements per-peer automatic TX rate selection driven by
// transmit completion reports.
package ratectl

import (
	"github.com/soypat/acx/acxfw"
	"golang.org/x/exp/constraints"
)

// Default controller tuning.
const (
	DefaultFallbackThreshold = 3
	DefaultStepupThreshold   = 10
	DefaultIgnoreAfterChange = 3
)

// State is the rate control state kept for each peer.
type State struct {
	// Cur is the set of rates the firmware may use for the peer. It is never
	// zero once initialized; its highest bit is the rate being tried.
	Cur acxfw.Rate
	// Cfg is the set of rates both sides allow.
	Cfg           acxfw.Rate
	FallbackCount uint8
	StepupCount   uint8
	// IgnoreCount is the number of completion reports still to be ignored
	// after a rate change, since they were queued under the old setting.
	IgnoreCount uint8
}

// Reset sets Cfg and starts from its lowest rate.
func (s *State) Reset(cfg acxfw.Rate, ignore uint8) {
	s.Cfg = cfg
	s.Cur = cfg.Lowest()
	s.FallbackCount = 0
	s.StepupCount = 0
	s.IgnoreCount = ignore
}

// Change describes what an Update did to the current rate.
type Change int8

const (
	Unchanged Change = iota
	Fallback
	Stepup
)

func (c Change) String() string {
	switch c {
	case Fallback:
		return "fallback"
	case Stepup:
		return "stepup"
	}
	return "unchanged"
}

// Controller holds the thresholds shared by all peers of a device.
type Controller struct {
	FallbackThreshold uint8
	StepupThreshold   uint8
	IgnoreAfterChange uint8
}

// Default returns a controller with the default thresholds.
func Default() Controller {
	return Controller{
		FallbackThreshold: DefaultFallbackThreshold,
		StepupThreshold:   DefaultStepupThreshold,
		IgnoreAfterChange: DefaultIgnoreAfterChange,
	}
}

// Update feeds one transmit completion into s. used is the single-bit rate
// the firmware transmitted at and failed reports a transmit error.
func (c *Controller) Update(s *State, used acxfw.Rate, failed bool) Change {
	if s.IgnoreCount > 0 {
		s.IgnoreCount--
		return Unchanged
	}
	if s.Cur == 0 {
		// Uninitialized peer; nothing sane to adapt.
		return Unchanged
	}
	top := s.Cur.Highest()
	slower := used.Highest() < top
	if slower || failed {
		s.StepupCount = 0
		s.FallbackCount = satinc(s.FallbackCount)
		if s.FallbackCount < max(c.FallbackThreshold, 1) {
			return Unchanged
		}
		s.FallbackCount = 0
		if s.Cur == top {
			// Last remaining rate is never cleared.
			return Unchanged
		}
		s.Cur &^= top
		s.IgnoreCount = c.IgnoreAfterChange
		return Fallback
	}
	s.FallbackCount = 0
	s.StepupCount = satinc(s.StepupCount)
	if s.StepupCount < max(c.StepupThreshold, 1) {
		return Unchanged
	}
	s.StepupCount = 0
	next := nextAllowed(top, s.Cfg, s.Cur)
	if next == 0 {
		return Unchanged
	}
	s.Cur |= next
	s.IgnoreCount = c.IgnoreAfterChange
	return Stepup
}

// nextAllowed searches upward from the bit above from for a rate present in
// cfg and absent from cur. It returns 0 when none exists.
func nextAllowed(from, cfg, cur acxfw.Rate) acxfw.Rate {
	for bit := from << 1; bit != 0 && bit <= cfg.Highest(); bit <<= 1 {
		if cfg&bit != 0 && cur&bit == 0 {
			return bit
		}
	}
	return 0
}

func satinc[T constraints.Unsigned](v T) T {
	if v+1 == 0 {
		return v
	}
	return v + 1
}
