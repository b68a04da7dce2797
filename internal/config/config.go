// Package config loads the engine's tunables from a YAML file, the
// way internal/application's LoadAPIsConfig / LoadCacheConfig load the
// teacher's config structs: os.ReadFile followed by yaml.Unmarshal,
// returning (*Config, error). This loader is a cmd/-level convenience;
// the internal/domain packages never touch the filesystem themselves
// (spec.md §6 describes Configuration as a plain struct the caller
// constructs).
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/legscan/internal/domain/discretize"
	"github.com/sawpanic/legscan/internal/domain/legs"
	"github.com/sawpanic/legscan/internal/domain/swingstate"
)

// Config is the root document a YAML config file supplies: one
// section per sub-component, all optional (zero-valued sections fall
// back to that component's DefaultConfig()).
type Config struct {
	Legs       yamlLegsConfig       `yaml:"legs"`
	SwingState yamlSwingStateConfig `yaml:"swing_state"`
	Discretize yamlDiscretizeConfig `yaml:"discretize"`
}

type yamlLegsConfig struct {
	FormationFib              string `yaml:"formation_fib"`
	PivotBreachThreshold      string `yaml:"pivot_breach_threshold"`
	EngulfedBreachThreshold   string `yaml:"engulfed_breach_threshold"`
	EnableEngulfedPrune       *bool  `yaml:"enable_engulfed_prune"`
	EnableInnerStructurePrune *bool  `yaml:"enable_inner_structure_prune"`
	ProximityPruneStrategy    string `yaml:"proximity_prune_strategy"`
	MinBranchRatio            string `yaml:"min_branch_ratio"`
	MinTurnThreshold          string `yaml:"min_turn_threshold"`
	MinCounterTrendRatio      string `yaml:"min_counter_trend_ratio"`
	StaleExtensionThreshold   string `yaml:"stale_extension_threshold"`
	MaxTrackedLegs            int    `yaml:"max_tracked_legs"`
}

type yamlSwingStateConfig struct {
	WickInvalidationTolerance  string `yaml:"wick_invalidation_tolerance"`
	CloseInvalidationTolerance string `yaml:"close_invalidation_tolerance"`
	CompletionThreshold        string `yaml:"completion_threshold"`
	LevelTolerance             string `yaml:"level_tolerance"`
	MaxTrackedLegs             int    `yaml:"max_tracked_legs"`
}

type yamlDiscretizeConfig struct {
	CrossingSemantics    string `yaml:"crossing_semantics"`
	CrossingTolerancePct string `yaml:"crossing_tolerance_pct"`
	GapThresholdPct      string `yaml:"gap_threshold_pct"`
}

// Load reads path and unmarshals it into Config. A missing or partial
// document is not an error: every section that is absent falls back to
// its component's own DefaultConfig() in Build.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &c, nil
}

// Built holds the three sub-component configs ready to drive a
// detector / swing-state manager / discretizer.
type Built struct {
	Legs       legs.Config
	SwingState swingstate.Config
	Discretize discretize.Config
}

// Build materializes Config into validated sub-component configs,
// starting from each component's documented defaults and overlaying
// only the fields the YAML document set. It returns the first
// InvalidConfig error any sub-component's Validate() reports.
func (c *Config) Build() (*Built, error) {
	lc := legs.DefaultConfig()
	overlayDecimal(&lc.FormationFib, c.Legs.FormationFib)
	overlayDecimal(&lc.PivotBreachThreshold, c.Legs.PivotBreachThreshold)
	overlayDecimal(&lc.EngulfedBreachThreshold, c.Legs.EngulfedBreachThreshold)
	overlayDecimal(&lc.MinBranchRatio, c.Legs.MinBranchRatio)
	overlayDecimal(&lc.MinTurnThreshold, c.Legs.MinTurnThreshold)
	overlayDecimal(&lc.MinCounterTrendRatio, c.Legs.MinCounterTrendRatio)
	overlayDecimal(&lc.StaleExtensionThreshold, c.Legs.StaleExtensionThreshold)
	if c.Legs.EnableEngulfedPrune != nil {
		lc.EnableEngulfedPrune = *c.Legs.EnableEngulfedPrune
	}
	if c.Legs.EnableInnerStructurePrune != nil {
		lc.EnableInnerStructurePrune = *c.Legs.EnableInnerStructurePrune
	}
	if c.Legs.ProximityPruneStrategy != "" {
		lc.ProximityPruneStrategy = legs.ProximityStrategy(c.Legs.ProximityPruneStrategy)
	}
	if c.Legs.MaxTrackedLegs > 0 {
		lc.MaxTrackedLegs = c.Legs.MaxTrackedLegs
	}
	if err := lc.Validate(); err != nil {
		return nil, err
	}

	sc := swingstate.DefaultConfig()
	overlayDecimal(&sc.WickInvalidationTolerance, c.SwingState.WickInvalidationTolerance)
	overlayDecimal(&sc.CloseInvalidationTolerance, c.SwingState.CloseInvalidationTolerance)
	overlayDecimal(&sc.CompletionThreshold, c.SwingState.CompletionThreshold)
	overlayDecimal(&sc.LevelTolerance, c.SwingState.LevelTolerance)
	if c.SwingState.MaxTrackedLegs > 0 {
		sc.MaxTrackedLegs = c.SwingState.MaxTrackedLegs
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	dc := discretize.DefaultConfig()
	if c.Discretize.CrossingSemantics != "" {
		dc.CrossingSemantics = discretize.CrossingSemantics(c.Discretize.CrossingSemantics)
	}
	overlayDecimal(&dc.CrossingTolerancePct, c.Discretize.CrossingTolerancePct)
	overlayDecimal(&dc.GapThresholdPct, c.Discretize.GapThresholdPct)
	if err := dc.Validate(); err != nil {
		return nil, err
	}

	return &Built{Legs: lc, SwingState: sc, Discretize: dc}, nil
}

func overlayDecimal(dst *decimal.Decimal, raw string) {
	if raw == "" {
		return
	}
	if v, err := decimal.NewFromString(raw); err == nil {
		*dst = v
	}
}
