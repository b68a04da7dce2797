package legs

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/reference"
)

// Detector is the streaming leg detector and pruner (C3). It is
// single-threaded and cooperative: ProcessBar runs a bar to completion
// synchronously and never suspends, per spec.md §5.
type Detector struct {
	cfg      Config
	state    State
	impulses *impulsePopulation
}

// NewDetector constructs a Detector from validated configuration.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, state: NewState(), impulses: &impulsePopulation{}}, nil
}

// FromState restores a Detector from a previously captured State. A
// resumed detector fed the next bar MUST produce the same output as an
// uninterrupted one (spec.md §6, §8).
func FromState(cfg Config, s State) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, state: s.clone(), impulses: fromSnapshot(s.FormedLegImpulses)}, nil
}

// GetState returns a deep-copied, serializable snapshot of the
// detector's working set.
func (d *Detector) GetState() State {
	snap := d.state.clone()
	snap.FormedLegImpulses = d.impulses.snapshot()
	return snap
}

// ActiveLegs returns the detector's current active legs (read-only
// view; callers must not mutate).
func (d *Detector) ActiveLegs() []*Leg { return d.state.ActiveLegs }

// Swing looks up a SwingNode by id.
func (d *Detector) Swing(id string) (*SwingNode, bool) {
	sw, ok := d.state.Swings[id]
	return sw, ok
}

// ProcessBar runs the fixed eight-step pipeline from spec.md §4.3 for
// one incoming bar and returns the events it produced, in emission
// order. On error, no state is changed.
func (d *Detector) ProcessBar(bar classify.Bar) ([]Event, error) {
	if err := bar.Validate(d.state.PrevBar); err != nil {
		return nil, err
	}

	var events []Event

	// Step 1: prune engulfed legs.
	events = append(events, d.pruneEngulfed(bar)...)

	// Step 2: extend pivots for live, non-origin-breached legs.
	events = append(events, d.extendPivots(bar)...)

	// Step 3: update breach tracking.
	newlyOriginBreached, breachEvents := d.updateBreaches(bar)
	events = append(events, breachEvents...)

	// Step 4: inner-structure pruning, gated on new origin breaches.
	if len(newlyOriginBreached) > 0 && d.cfg.EnableInnerStructurePrune {
		events = append(events, d.pruneInnerStructure(bar)...)
	}

	bootstrapping := d.state.PrevBar == nil
	var barType classify.Type
	if bootstrapping {
		// Step 5: first-bar bootstrap.
		d.bootstrapFirstBar(bar)
	} else {
		// Step 6: bar-type branch.
		barType = classify.Classify(*d.state.PrevBar, bar)
		events = append(events, d.runBarTypeLogic(bar, barType)...)
		d.state.PrevBarType = barType
	}

	// Step 7: increment bar_count and fold in per-bar contributions for
	// every live leg.
	barRange, _ := bar.High.Sub(bar.Low).Float64()
	for _, l := range d.state.ActiveLegs {
		if l.Status == StatusActive {
			l.BarCount++
			l.observeContribution(barRange)
		}
	}

	// Step 8: extension-beyond-origin pruning.
	events = append(events, d.pruneExtensionBeyondOrigin(bar)...)

	// Formation check, after creation and pivot extension.
	events = append(events, d.checkFormation(bar, barType)...)

	prev := bar
	d.state.PrevBar = &prev
	d.state.BarsSeen++

	return events, nil
}

// checkPrice returns the price formation/retracement recomputation
// uses for a bar of the given type: close for Type2 bars, the
// direction-appropriate extreme for Inside bars.
func checkPrice(bar classify.Bar, barType classify.Type, dir reference.Direction) decimal.Decimal {
	if barType == classify.Inside {
		if dir == reference.Bull {
			return bar.High
		}
		return bar.Low
	}
	return bar.Close
}

func (d *Detector) removeLeg(legID string) {
	out := d.state.ActiveLegs[:0]
	for _, l := range d.state.ActiveLegs {
		if l.LegID != legID {
			out = append(out, l)
		}
	}
	d.state.ActiveLegs = out
}
