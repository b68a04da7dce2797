// Package swingstate implements the tolerance-aware swing state
// machine (C4): once a leg has formed into a SwingNode, this package
// tracks it through level crossings, completion, and invalidation using
// rules that loosen as the swing's scale grows. A strict S/M swing is
// invalidated the instant price (wick or close) crosses back past its
// defended pivot; a
// tolerant L/XL swing is allowed a configured overshoot before the same
// call is made, and wicks are judged separately from closes.
package swingstate

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/errs"
)

// Scale buckets a swing by its absolute price range. Small and Medium
// swings use strict tolerance; Large and ExtraLarge use relaxed
// tolerance and are exempt from the 2x auto-completion rule.
type Scale string

const (
	ScaleS  Scale = "S"
	ScaleM  Scale = "M"
	ScaleL  Scale = "L"
	ScaleXL Scale = "XL"
)

// Config tunes scale classification, invalidation tolerance, the
// completion threshold, and level-cross tracking.
type Config struct {
	// ScaleBoundaries are the three ascending range cutoffs separating
	// S|M|L|XL.
	ScaleBoundaries [3]decimal.Decimal

	// WickInvalidationTolerance is the ratio overshoot (in frame space,
	// where 0 is the defended pivot) a relaxed-tolerance (L/XL) swing's
	// wick may absorb before being invalidated. Strict (S/M) swings use
	// zero tolerance on both wick and close regardless of these values.
	WickInvalidationTolerance decimal.Decimal

	// CloseInvalidationTolerance is the same overshoot allowance judged
	// against the bar's close rather than its wick; spec.md §4.4 sets
	// this tighter than the wick tolerance (a close beyond it is a
	// "soft" invalidation even when the wick alone would be absorbed).
	CloseInvalidationTolerance decimal.Decimal

	// CompletionThreshold is the ratio (default 2.0) at which a swing
	// is considered to have reached its extension target.
	CompletionThreshold decimal.Decimal

	// SmallScaleCompletionOnly restricts the COMPLETION rule to S/M
	// swings entirely, per spec.md §4.4 ("big swings never complete by
	// this rule — they are considered ongoing structural context"):
	// when true (the default), an L/XL swing never emits COMPLETION or
	// transitions to completed, no matter how far price extends.
	SmallScaleCompletionOnly bool

	// Levels is the canonical Fibonacci band in ratio space, checked in
	// ascending order for every swing; the swing's frame already orients
	// bull and bear ratios the same way.
	Levels []decimal.Decimal

	// LevelTolerance is the ratio-space slack used when matching a
	// bar's extreme against a configured level.
	LevelTolerance decimal.Decimal

	// MaxTrackedLegs bounds how many concurrent swings receive
	// level-cross tracking; level-cross bookkeeping is the most
	// expensive per-bar operation, so new swings beyond the cap are
	// tracked for completion/invalidation only.
	MaxTrackedLegs int
}

// DefaultConfig returns the standard 12-level Fibonacci band and the
// thresholds named in spec.md §4.
func DefaultConfig() Config {
	return Config{
		ScaleBoundaries:            [3]decimal.Decimal{decimal.RequireFromString("0.005"), decimal.RequireFromString("0.02"), decimal.RequireFromString("0.08")},
		WickInvalidationTolerance:  decimal.RequireFromString("0.15"),
		CloseInvalidationTolerance: decimal.RequireFromString("0.10"),
		CompletionThreshold:        decimal.RequireFromString("2.0"),
		SmallScaleCompletionOnly:   true,
		Levels: []decimal.Decimal{
			decimal.RequireFromString("0"),
			decimal.RequireFromString("0.382"),
			decimal.RequireFromString("0.5"),
			decimal.RequireFromString("0.618"),
			decimal.RequireFromString("0.786"),
			decimal.RequireFromString("1.0"),
			decimal.RequireFromString("1.236"),
			decimal.RequireFromString("1.382"),
			decimal.RequireFromString("1.5"),
			decimal.RequireFromString("1.618"),
			decimal.RequireFromString("1.786"),
			decimal.RequireFromString("2.0"),
		},
		LevelTolerance: decimal.RequireFromString("0.01"),
		MaxTrackedLegs: 10,
	}
}

// Validate enforces ascending scale boundaries and non-negative
// tolerances.
func (c Config) Validate() error {
	zero := decimal.Zero
	if c.ScaleBoundaries[0].LessThanOrEqual(zero) ||
		c.ScaleBoundaries[1].LessThanOrEqual(c.ScaleBoundaries[0]) ||
		c.ScaleBoundaries[2].LessThanOrEqual(c.ScaleBoundaries[1]) {
		return errs.New(errs.KindInvalidConfig, "scale_boundaries must be strictly ascending and positive")
	}
	if c.WickInvalidationTolerance.LessThan(zero) {
		return errs.New(errs.KindInvalidConfig, "wick_invalidation_tolerance must be non-negative")
	}
	if c.CloseInvalidationTolerance.LessThan(zero) {
		return errs.New(errs.KindInvalidConfig, "close_invalidation_tolerance must be non-negative")
	}
	if c.CompletionThreshold.LessThanOrEqual(zero) {
		return errs.New(errs.KindInvalidConfig, "completion_threshold must be positive")
	}
	if c.LevelTolerance.LessThan(zero) {
		return errs.New(errs.KindInvalidConfig, "level_tolerance must be non-negative")
	}
	if c.MaxTrackedLegs <= 0 {
		return errs.New(errs.KindInvalidConfig, "max_tracked_legs must be positive")
	}
	if len(c.Levels) == 0 {
		return errs.New(errs.KindInvalidConfig, "levels must be non-empty")
	}
	return nil
}

// ClassifyScale buckets an absolute price range into S|M|L|XL using
// cfg's ascending boundaries.
func ClassifyScale(rng decimal.Decimal, cfg Config) Scale {
	switch {
	case rng.LessThan(cfg.ScaleBoundaries[0]):
		return ScaleS
	case rng.LessThan(cfg.ScaleBoundaries[1]):
		return ScaleM
	case rng.LessThan(cfg.ScaleBoundaries[2]):
		return ScaleL
	default:
		return ScaleXL
	}
}

// tolerant reports whether a scale uses relaxed invalidation tolerance
// and is exempt from forced termination at completion.
func (s Scale) tolerant() bool {
	return s == ScaleL || s == ScaleXL
}
