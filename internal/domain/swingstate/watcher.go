package swingstate

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/legs"
	"github.com/sawpanic/legscan/internal/domain/reference"
)

// watcher tracks one confirmed swing through its post-formation
// lifecycle. Invalidation is judged against both the bar's close and
// its adverse wick, completion against the close only, and level
// crosses against the bar's low-high span. This package has no
// crossing-semantics setting.
type watcher struct {
	swing *legs.SwingNode
	frame reference.Frame
	scale Scale

	tracked bool

	completed   bool
	invalidated bool
	terminated  bool

	// maxRatioReached is the highest ratio this swing's close has ever
	// reached, never below the starting floor of 1, retained even after
	// invalidation. spec.md §4.4's
	// "max_location" re-form-prevention rule derives is_completed from
	// this value at query time, so a later change to CompletionThreshold
	// reclassifies a swing retroactively instead of requiring a replay.
	maxRatioReached decimal.Decimal

	crossed     map[string]bool
	warnedAlias bool
}

func newWatcher(sw *legs.SwingNode, tracked bool) (*watcher, error) {
	frame, err := sw.Frame()
	if err != nil {
		return nil, err
	}
	return &watcher{
		swing:           sw,
		frame:           frame,
		tracked:         tracked,
		maxRatioReached: decimal.RequireFromString("1"), // ratio 1 (origin) is the floor: untested
		crossed:         make(map[string]bool),
	}, nil
}

// invalidationBoundaries returns the (wick, close) ratio floors below
// which price crossing invalidates the swing. Strict (S/M) swings use
// zero tolerance on both; relaxed (L/XL) swings absorb a deeper wick
// than close, per spec.md §4.4.
func (w *watcher) invalidationBoundaries(cfg Config) (wick, closeBoundary decimal.Decimal) {
	if w.scale.tolerant() {
		return cfg.WickInvalidationTolerance.Neg(), cfg.CloseInvalidationTolerance.Neg()
	}
	return decimal.Zero, decimal.Zero
}

// step applies one bar's close and wick-extreme ratio to the watcher's
// state machine, in canonical close_cross semantics, and returns every
// non-level-cross event it produced. wickRatio is the more adverse
// (lower) of the bar's high/low ratios in this swing's frame.
func (w *watcher) step(closeRatio, wickRatio decimal.Decimal, cfg Config, swingID string, barIndex uint64, ts int64) []Event {
	if w.terminated {
		return nil
	}

	if closeRatio.GreaterThan(w.maxRatioReached) {
		w.maxRatioReached = closeRatio
	}

	var events []Event

	wickBoundary, closeBoundary := w.invalidationBoundaries(cfg)
	if !w.invalidated && (wickRatio.LessThan(wickBoundary) || closeRatio.LessThan(closeBoundary)) {
		w.invalidated = true
		events = append(events, Event{Kind: EventInvalidation, SwingID: swingID, BarIndex: barIndex, Timestamp: ts})
		w.terminated = true
		events = append(events, Event{Kind: EventTerminated, SwingID: swingID, BarIndex: barIndex, Timestamp: ts})
		return events
	}

	canComplete := !cfg.SmallScaleCompletionOnly || !w.scale.tolerant()
	if canComplete && !w.completed && closeRatio.GreaterThanOrEqual(cfg.CompletionThreshold) {
		w.completed = true
		events = append(events, Event{Kind: EventCompletion, SwingID: swingID, BarIndex: barIndex, Timestamp: ts})
		w.terminated = true
		events = append(events, Event{Kind: EventTerminated, SwingID: swingID, BarIndex: barIndex, Timestamp: ts})
	}

	return events
}

// isCompleted derives completion retroactively from the highest ratio
// ever observed, independent of whether a COMPLETION event was ever
// emitted (an L/XL swing may have crossed the threshold without ever
// transitioning, per spec.md §4.4).
func (w *watcher) isCompleted(threshold decimal.Decimal) bool {
	return w.maxRatioReached.GreaterThanOrEqual(threshold)
}

// levelCrosses checks the bar's [low, high] ratio span against every
// configured level not yet crossed, in tolerance. Called only for
// tracked watchers.
func (w *watcher) levelCrosses(lowRatio, highRatio, prevCloseRatio decimal.Decimal, cfg Config, swingID string, barIndex uint64, ts int64) []Event {
	if !w.tracked || w.terminated {
		return nil
	}
	var events []Event
	for _, level := range cfg.Levels {
		key := level.String()
		if w.crossed[key] {
			continue
		}
		lo := lowRatio.Sub(cfg.LevelTolerance)
		hi := highRatio.Add(cfg.LevelTolerance)
		if level.LessThan(lo) || level.GreaterThan(hi) {
			continue
		}
		w.crossed[key] = true
		dir := "up"
		if level.LessThan(prevCloseRatio) {
			dir = "down"
		}
		events = append(events, Event{Kind: EventLevelCross, SwingID: swingID, BarIndex: barIndex, Timestamp: ts, Level: level.String(), Direction: dir})
	}
	return events
}
