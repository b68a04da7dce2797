package discretize

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/errs"
	"github.com/sawpanic/legscan/internal/domain/swingstate"
)

// CrossingSemantics selects how a level is judged crossed. close_cross
// is the only behavior this module implements; open_close_cross and
// wick_touch are reserved aliases of it per spec.md §9 Open Question 1
// and SPEC_FULL.md §5.1.
type CrossingSemantics string

const (
	CloseCross     CrossingSemantics = "close_cross"
	OpenCloseCross CrossingSemantics = "open_close_cross"
	WickTouch      CrossingSemantics = "wick_touch"
)

// Config aggregates every tunable the discretizer's replay pass needs,
// recorded verbatim into every log's meta (spec.md §4.5 "Configuration
// recorded with every log").
type Config struct {
	LevelSet             []decimal.Decimal
	LevelSetVersion      string
	CrossingSemantics    CrossingSemantics
	CrossingTolerancePct decimal.Decimal

	// InvalidationThresholds maps scale to the ratio below which an
	// active swing is invalidated (defaults: S, M = -0.10; L, XL =
	// -0.15, per spec.md §4.5 step 6).
	InvalidationThresholds map[swingstate.Scale]decimal.Decimal

	// RollingWindowSizes sizes the per-scale ring buffers driving the
	// shock annotation's median (defaults S=20, M=50, L=100, XL=200).
	RollingWindowSizes map[swingstate.Scale]int

	GapThresholdPct decimal.Decimal

	SwingDetectorVersion string
	DiscretizerVersion   string

	// onAliasSemantics, when set, receives a one-time notice when a
	// caller selects a reserved crossing semantics that currently
	// behaves identically to close_cross. It is registered through
	// OnAliasSemantics; when nil, Validate emits no notice.
	onAliasSemantics func(selected CrossingSemantics)
}

// DefaultConfig returns the discretizer configuration using every
// default spec.md §4.5 names.
func DefaultConfig() Config {
	return Config{
		LevelSet:            CanonicalLevelSet(),
		LevelSetVersion:     LevelSetVersion,
		CrossingSemantics:   CloseCross,
		CrossingTolerancePct: decimal.RequireFromString("0.001"),
		InvalidationThresholds: map[swingstate.Scale]decimal.Decimal{
			swingstate.ScaleS:  decimal.RequireFromString("-0.10"),
			swingstate.ScaleM:  decimal.RequireFromString("-0.10"),
			swingstate.ScaleL:  decimal.RequireFromString("-0.15"),
			swingstate.ScaleXL: decimal.RequireFromString("-0.15"),
		},
		RollingWindowSizes: map[swingstate.Scale]int{
			swingstate.ScaleS:  20,
			swingstate.ScaleM:  50,
			swingstate.ScaleL:  100,
			swingstate.ScaleXL: 200,
		},
		GapThresholdPct:      decimal.RequireFromString("0.02"),
		SwingDetectorVersion: "1.0",
		DiscretizerVersion:   DiscretizerVersion,
	}
}

// OnAliasSemantics registers a callback invoked once, at Validate time,
// if CrossingSemantics selects a reserved alias. Returns cfg for
// chaining at construction sites.
func (c Config) OnAliasSemantics(fn func(selected CrossingSemantics)) Config {
	c.onAliasSemantics = fn
	return c
}

// Validate enforces the InvalidConfig rules relevant to the
// discretizer: a non-empty, strictly monotonic level set, and
// non-negative tolerances. A reserved crossing semantics is accepted
// (spec.md: implementations "MAY leave them at parity with
// close_cross"), but triggers the registered alias notice exactly
// once.
func (c Config) Validate() error {
	if len(c.LevelSet) == 0 {
		return errs.New(errs.KindInvalidConfig, "level_set must not be empty")
	}
	for i := 1; i < len(c.LevelSet); i++ {
		if !c.LevelSet[i].GreaterThan(c.LevelSet[i-1]) {
			return errs.New(errs.KindInvalidConfig, "level_set must be strictly increasing",
				errs.F("index", i))
		}
	}
	if c.CrossingTolerancePct.LessThan(decimal.Zero) {
		return errs.New(errs.KindInvalidConfig, "crossing_tolerance_pct must be non-negative")
	}
	if c.GapThresholdPct.LessThan(decimal.Zero) {
		return errs.New(errs.KindInvalidConfig, "gap_threshold_pct must be non-negative")
	}
	switch c.CrossingSemantics {
	case CloseCross:
	case OpenCloseCross, WickTouch:
		if c.onAliasSemantics != nil {
			c.onAliasSemantics(c.CrossingSemantics)
		}
	default:
		return errs.New(errs.KindInvalidConfig, "crossing_semantics must be close_cross, open_close_cross, or wick_touch",
			errs.F("crossing_semantics", string(c.CrossingSemantics)))
	}
	return nil
}

// thresholdFor returns the configured invalidation threshold for
// scale, defaulting to -0.10 if unset.
func (c Config) thresholdFor(scale swingstate.Scale) decimal.Decimal {
	if v, ok := c.InvalidationThresholds[scale]; ok {
		return v
	}
	return decimal.RequireFromString("-0.10")
}

// windowFor returns the configured rolling-window capacity for scale,
// defaulting to 20 if unset.
func (c Config) windowFor(scale swingstate.Scale) int {
	if v, ok := c.RollingWindowSizes[scale]; ok && v > 0 {
		return v
	}
	return 20
}
