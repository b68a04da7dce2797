package legs

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/errs"
)

// ProximityStrategy selects which leg survives a proximity cluster.
type ProximityStrategy string

const (
	ProximityOldest       ProximityStrategy = "oldest"
	ProximityCounterTrend ProximityStrategy = "counter_trend"
)

// Config aggregates the detector's pruning and formation tuning, per
// spec.md §6. All thresholds default to the values listed there.
type Config struct {
	FormationFib decimal.Decimal

	// PivotBreachThreshold and EngulfedBreachThreshold are part of the
	// per-direction tuning surface named in spec.md §6. Engulfment
	// itself (§4.3 rule 1) is unconditional on any breach amount once
	// both anchors have crossed, so these two do not gate pruneEngulfed;
	// they are carried for config-contract completeness and validated
	// in Validate below.
	PivotBreachThreshold    decimal.Decimal
	EngulfedBreachThreshold decimal.Decimal

	EnableEngulfedPrune       bool
	EnableInnerStructurePrune bool
	SubtreePruneThreshold     decimal.Decimal

	ProximityPruneStrategy    ProximityStrategy
	OriginRangePruneThreshold decimal.Decimal
	OriginTimePruneThreshold  decimal.Decimal

	MinCounterTrendRatio    decimal.Decimal
	MinTurnThreshold        decimal.Decimal
	MinBranchRatio          decimal.Decimal
	StaleExtensionThreshold decimal.Decimal

	// MaxTrackedLegs (default 10) is validated to be positive but is
	// not read by the detector; the swing-state layer's level-cross cap
	// is swingstate.Config.MaxTrackedLegs.
	MaxTrackedLegs int
}

// DefaultConfig returns the detector configuration with every default
// named in spec.md §4.
func DefaultConfig() Config {
	return Config{
		FormationFib:              decimal.RequireFromString("0.287"),
		PivotBreachThreshold:      decimal.RequireFromString("0.10"),
		EngulfedBreachThreshold:   decimal.RequireFromString("0.20"),
		EnableEngulfedPrune:       true,
		EnableInnerStructurePrune: true,
		SubtreePruneThreshold:     decimal.RequireFromString("0.10"),
		ProximityPruneStrategy:    ProximityOldest,
		OriginRangePruneThreshold: decimal.RequireFromString("0.15"),
		OriginTimePruneThreshold:  decimal.RequireFromString("0.10"),
		MinCounterTrendRatio:      decimal.RequireFromString("0.0"),
		MinTurnThreshold:          decimal.RequireFromString("0.0"),
		MinBranchRatio:            decimal.RequireFromString("0.0"),
		StaleExtensionThreshold:   decimal.RequireFromString("2.0"),
		MaxTrackedLegs:            10,
	}
}

// Validate enforces the InvalidConfig rules from spec.md §7.
func (c Config) Validate() error {
	zero := decimal.Zero
	one := decimal.RequireFromString("1")
	if c.FormationFib.LessThanOrEqual(zero) || c.FormationFib.GreaterThanOrEqual(one) {
		return errs.New(errs.KindInvalidConfig, "formation_fib must be in (0, 1)",
			errs.F("formation_fib", c.FormationFib.String()))
	}
	if c.ProximityPruneStrategy != ProximityOldest && c.ProximityPruneStrategy != ProximityCounterTrend {
		return errs.New(errs.KindInvalidConfig, "proximity_prune_strategy must be oldest or counter_trend",
			errs.F("proximity_prune_strategy", string(c.ProximityPruneStrategy)))
	}
	if c.MaxTrackedLegs <= 0 {
		return errs.New(errs.KindInvalidConfig, "max_tracked_legs must be positive",
			errs.F("max_tracked_legs", c.MaxTrackedLegs))
	}
	for _, nn := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"pivot_breach_threshold", c.PivotBreachThreshold},
		{"engulfed_breach_threshold", c.EngulfedBreachThreshold},
		{"subtree_prune_threshold", c.SubtreePruneThreshold},
		{"origin_range_prune_threshold", c.OriginRangePruneThreshold},
		{"origin_time_prune_threshold", c.OriginTimePruneThreshold},
		{"min_counter_trend_ratio", c.MinCounterTrendRatio},
		{"min_turn_threshold", c.MinTurnThreshold},
		{"min_branch_ratio", c.MinBranchRatio},
		{"stale_extension_threshold", c.StaleExtensionThreshold},
	} {
		if nn.v.LessThan(zero) {
			return errs.New(errs.KindInvalidConfig, nn.name+" must be non-negative",
				errs.F(nn.name, nn.v.String()))
		}
	}
	return nil
}
