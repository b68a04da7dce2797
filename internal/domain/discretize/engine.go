package discretize

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/errs"
	"github.com/sawpanic/legscan/internal/domain/reference"
	"github.com/sawpanic/legscan/internal/domain/swingstate"
)

// scaleOrder fixes the parent-context walk direction: smaller scales
// look outward toward larger ones, never the reverse (spec.md §4.5
// step 5 "Parent context").
var scaleOrder = []swingstate.Scale{swingstate.ScaleS, swingstate.ScaleM, swingstate.ScaleL, swingstate.ScaleXL}

func scaleRank(s swingstate.Scale) int {
	for i, v := range scaleOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// RunInput is everything a discretizer pass needs: the OHLC table and
// a mapping of scale to pre-detected swing entries (spec.md §4.5).
type RunInput struct {
	Instrument       string
	SourceResolution string
	Bars             []classify.Bar
	SwingsByScale    map[swingstate.Scale][]SwingEntry
}

// Engine is the discretizer (C5): a batch processor that replays an
// OHLC table against precomputed swings to produce one canonical
// DiscretizationLog. It carries no mutable state between Run calls.
type Engine struct {
	cfg      Config
	now      func() time.Time
	newRunID func() string
}

// NewEngine constructs an Engine from validated configuration.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, now: time.Now, newRunID: uuid.NewString}, nil
}

// withClock overrides the engine's time source for deterministic
// tests; production callers never need this.
func (e *Engine) withClock(now func() time.Time, runID func() string) *Engine {
	cp := *e
	if now != nil {
		cp.now = now
	}
	if runID != nil {
		cp.newRunID = runID
	}
	return &cp
}

// trackedSwing is the engine's live bookkeeping for one swing entry
// across the replay pass.
type trackedSwing struct {
	entry *SwingEntry
	frame reference.Frame

	prevRatio    decimal.Decimal
	prevBand     int
	bandEntryBar uint64
	lastStepUp   *bool
	testCount    int
	maxProbeR    float64

	registered bool
	terminated bool
}

// Run replays input against the engine's configuration and produces a
// sorted DiscretizationLog. Bars must be supplied in ascending index
// order; Run fails with InconsistentSwings if any swing's bar indices
// fall outside the supplied bars or its two anchors are equal. Anchor
// prices are not checked against the bars' highs and lows.
func (e *Engine) Run(input RunInput) (*DiscretizationLog, error) {
	if len(input.Bars) == 0 {
		return nil, errs.New(errs.KindInconsistentSwings, "bars must be non-empty")
	}

	flat, byBar, err := e.prepareSwings(input)
	if err != nil {
		return nil, err
	}

	windows := make(map[swingstate.Scale]*rangeWindow, len(scaleOrder))
	for _, s := range scaleOrder {
		windows[s] = newRangeWindow(e.cfg.windowFor(s))
	}

	log := &DiscretizationLog{Meta: e.buildMeta(input)}

	var prevClose decimal.Decimal
	hasPrevClose := false

	for _, bar := range input.Bars {
		isGap, gapSize := detectGap(bar, prevClose, hasPrevClose, e.cfg.GapThresholdPct)

		barRange, _ := bar.High.Sub(bar.Low).Float64()
		for _, s := range scaleOrder {
			windows[s].push(barRange)
		}

		for _, ts := range byBar[bar.Index] {
			if err := e.registerSwing(ts, bar); err != nil {
				return nil, err
			}
			log.Events = append(log.Events, DiscretizationEvent{
				Bar: bar.Index, Timestamp: isoTime(bar.Timestamp), SwingID: ts.entry.SwingID,
				EventType: EventSwingFormed,
				Data: map[string]string{
					"anchor0": ts.entry.Anchor0.String(), "anchor1": ts.entry.Anchor1.String(),
					"direction": string(ts.entry.Direction), "scale": string(ts.entry.Scale),
				},
			})
		}

		for _, ts := range flat {
			if !ts.registered || ts.terminated || ts.entry.FormedAtBar == bar.Index {
				continue
			}
			e.stepSwing(ts, flat, windows, bar, isGap, gapSize, barRange, log)
		}

		prevClose = bar.Close
		hasPrevClose = true
	}

	log.Swings = make([]SwingEntry, len(flat))
	for i, ts := range flat {
		log.Swings[i] = *ts.entry
	}

	return log, nil
}

func detectGap(bar classify.Bar, prevClose decimal.Decimal, hasPrevClose bool, gapThresholdPct decimal.Decimal) (bool, decimal.Decimal) {
	if !hasPrevClose || prevClose.IsZero() {
		return false, decimal.Zero
	}
	diff := bar.Open.Sub(prevClose).Abs()
	if diff.GreaterThan(gapThresholdPct.Mul(prevClose.Abs())) {
		return true, diff
	}
	return false, decimal.Zero
}

// registerSwing seeds a freshly-forming swing's frame and starting
// ratio/band on its formation bar.
func (e *Engine) registerSwing(ts *trackedSwing, bar classify.Bar) error {
	frame, err := ts.entry.Frame()
	if err != nil {
		return errs.New(errs.KindInconsistentSwings, "swing frame is degenerate", errs.F("swing_id", ts.entry.SwingID))
	}
	ts.frame = frame
	ts.prevRatio = frame.Ratio(bar.Close)
	ts.prevBand = bandIndex(e.cfg.LevelSet, ts.prevRatio)
	ts.bandEntryBar = bar.Index
	ts.registered = true
	return nil
}

// stepSwing advances one already-active swing through a single bar:
// level crossings, effort/shock annotation, parent context, and the
// completion/invalidation/termination check, in that emission order.
func (e *Engine) stepSwing(ts *trackedSwing, flat []*trackedSwing, windows map[swingstate.Scale]*rangeWindow, bar classify.Bar, isGap bool, gapSize decimal.Decimal, barRange float64, log *DiscretizationLog) {
	currentRatio := ts.frame.Ratio(bar.Close)
	crossed := levelsBetween(e.cfg.LevelSet, ts.prevRatio, currentRatio, e.cfg.CrossingTolerancePct)

	var firstEvt *DiscretizationEvent
	for _, lvl := range crossed {
		dir := "up"
		if currentRatio.LessThan(ts.prevRatio) {
			dir = "down"
		}
		log.Events = append(log.Events, DiscretizationEvent{
			Bar: bar.Index, Timestamp: isoTime(bar.Timestamp), SwingID: ts.entry.SwingID,
			EventType: EventLevelCross,
			Data: map[string]string{
				"from_ratio":    ts.prevRatio.String(),
				"to_ratio":      currentRatio.String(),
				"level_crossed": lvl.String(),
				"direction":     dir,
			},
		})
		if firstEvt == nil {
			firstEvt = &log.Events[len(log.Events)-1]
		}
	}

	currentBand := bandIndex(e.cfg.LevelSet, currentRatio)
	e.updateEffort(ts, currentBand, crossed, currentRatio, bar.Index)

	window := windows[ts.entry.Scale]
	med := window.median()
	rMul := 0.0
	if med > 0 {
		rMul = barRange / med
	}
	var gapMul *float64
	if isGap {
		gm := 0.0
		if med > 0 {
			gSize, _ := gapSize.Float64()
			gm = gSize / med
		}
		gapMul = &gm
	}
	shock := &Shock{LevelsJumped: len(crossed), RangeMultiple: rMul, GapMultiple: gapMul, IsGap: isGap}
	effort := &Effort{DwellBars: int(bar.Index - ts.bandEntryBar), TestCount: ts.testCount, MaxProbeR: ts.maxProbeR}
	pc := e.parentContext(ts, flat)

	if firstEvt != nil {
		firstEvt.Shock, firstEvt.Effort, firstEvt.ParentContext = shock, effort, pc
	}

	terminationEvents := e.checkTermination(ts, currentRatio, bar)
	if len(terminationEvents) > 0 && firstEvt == nil {
		terminationEvents[0].Shock, terminationEvents[0].Effort, terminationEvents[0].ParentContext = shock, effort, pc
	}
	log.Events = append(log.Events, terminationEvents...)

	ts.prevRatio = currentRatio
	ts.prevBand = currentBand
}

// updateEffort advances a swing's band-dwell bookkeeping: a band
// change resets dwell/test tracking and records the probe depth past
// the boundary just exited; otherwise it folds in a reversal test when
// the ratio's direction of travel flips since the last bar.
func (e *Engine) updateEffort(ts *trackedSwing, currentBand int, crossed []decimal.Decimal, currentRatio decimal.Decimal, barIndex uint64) {
	if currentBand != ts.prevBand {
		probe := 0.0
		if len(crossed) > 0 {
			boundary := crossed[len(crossed)-1]
			probe, _ = currentRatio.Sub(boundary).Abs().Float64()
		}
		ts.bandEntryBar = barIndex
		ts.testCount = 0
		ts.maxProbeR = probe
		ts.lastStepUp = nil
		return
	}
	up := currentRatio.GreaterThan(ts.prevRatio)
	if ts.lastStepUp != nil && *ts.lastStepUp != up {
		ts.testCount++
	}
	ts.lastStepUp = &up
}

// parentContext walks the scale hierarchy above ts looking for the
// first currently-active swing of a strictly larger scale.
func (e *Engine) parentContext(ts *trackedSwing, flat []*trackedSwing) *ParentContext {
	rank := scaleRank(ts.entry.Scale)
	if rank < 0 {
		return nil
	}
	for r := rank + 1; r < len(scaleOrder); r++ {
		scale := scaleOrder[r]
		for _, other := range flat {
			if other.entry.Scale != scale || !other.registered || other.terminated {
				continue
			}
			return &ParentContext{
				SwingID:   other.entry.SwingID,
				Scale:     string(other.entry.Scale),
				Band:      other.prevBand,
				Direction: string(other.entry.Direction),
				Ratio:     other.prevRatio.String(),
			}
		}
	}
	return nil
}

// checkTermination evaluates the completion/invalidation rule against
// ts's just-updated ratio and emits COMPLETION/INVALIDATION followed
// by SWING_TERMINATED, in that order, per spec.md §4.5 step 6.
func (e *Engine) checkTermination(ts *trackedSwing, currentRatio decimal.Decimal, bar classify.Bar) []DiscretizationEvent {
	two := decimal.RequireFromString("2.0")
	if currentRatio.GreaterThanOrEqual(two) && ts.prevRatio.LessThan(two) {
		ts.terminated = true
		ts.entry.Status = "completed"
		terminated := bar.Index
		reason := string(TerminationCompleted)
		ts.entry.TerminatedAtBar = &terminated
		ts.entry.TerminationReason = &reason
		return []DiscretizationEvent{
			{Bar: bar.Index, Timestamp: isoTime(bar.Timestamp), SwingID: ts.entry.SwingID, EventType: EventCompletion,
				Data: map[string]string{"ratio": currentRatio.String()}},
			{Bar: bar.Index, Timestamp: isoTime(bar.Timestamp), SwingID: ts.entry.SwingID, EventType: EventSwingTerminated,
				Data: map[string]string{"termination_type": string(TerminationCompleted)}},
		}
	}
	threshold := e.cfg.thresholdFor(ts.entry.Scale)
	if currentRatio.LessThan(threshold) {
		ts.terminated = true
		ts.entry.Status = "invalidated"
		terminated := bar.Index
		reason := string(TerminationInvalidated)
		ts.entry.TerminatedAtBar = &terminated
		ts.entry.TerminationReason = &reason
		return []DiscretizationEvent{
			{Bar: bar.Index, Timestamp: isoTime(bar.Timestamp), SwingID: ts.entry.SwingID, EventType: EventInvalidation,
				Data: map[string]string{"invalidation_ratio": currentRatio.String(), "threshold": threshold.String()}},
			{Bar: bar.Index, Timestamp: isoTime(bar.Timestamp), SwingID: ts.entry.SwingID, EventType: EventSwingTerminated,
				Data: map[string]string{"termination_type": string(TerminationInvalidated)}},
		}
	}
	return nil
}

// prepareSwings flattens the scale-keyed swing map in S -> M -> L -> XL
// order, validates every entry against the supplied bars, and indexes
// entries by their formation bar for fast per-bar lookup.
func (e *Engine) prepareSwings(input RunInput) ([]*trackedSwing, map[uint64][]*trackedSwing, error) {
	n := uint64(len(input.Bars))
	var flat []*trackedSwing
	byBar := make(map[uint64][]*trackedSwing)

	for _, scale := range scaleOrder {
		for _, raw := range input.SwingsByScale[scale] {
			entry := raw
			entry.Scale = scale
			entry.Status = "active"
			if entry.FormedAtBar >= n || entry.Anchor0Bar >= n || entry.Anchor1Bar >= n {
				return nil, nil, errs.New(errs.KindInconsistentSwings, "swing bar index out of OHLC range",
					errs.F("swing_id", entry.SwingID))
			}
			if _, err := entry.Frame(); err != nil {
				return nil, nil, errs.New(errs.KindInconsistentSwings, "swing anchors are degenerate",
					errs.F("swing_id", entry.SwingID))
			}
			ts := &trackedSwing{entry: &entry}
			flat = append(flat, ts)
			byBar[entry.FormedAtBar] = append(byBar[entry.FormedAtBar], ts)
		}
	}
	return flat, byBar, nil
}

func (e *Engine) buildMeta(input RunInput) Meta {
	levelStrs := make([]string, len(e.cfg.LevelSet))
	for i, l := range e.cfg.LevelSet {
		levelStrs[i] = l.String()
	}
	start, end := "", ""
	if len(input.Bars) > 0 {
		start = isoTime(input.Bars[0].Timestamp)
		end = isoTime(input.Bars[len(input.Bars)-1].Timestamp)
	}
	return Meta{
		Instrument:           input.Instrument,
		SourceResolution:     input.SourceResolution,
		DateRangeStart:       start,
		DateRangeEnd:         end,
		CreatedAt:            e.now().UTC().Format(time.RFC3339),
		RunID:                e.newRunID(),
		LevelSet:             levelStrs,
		LevelSetVersion:      e.cfg.LevelSetVersion,
		CrossingSemantics:    string(e.cfg.CrossingSemantics),
		CrossingTolerancePct: e.cfg.CrossingTolerancePct.String(),
		GapThresholdPct:      e.cfg.GapThresholdPct.String(),
		SwingDetectorVersion: e.cfg.SwingDetectorVersion,
		DiscretizerVersion:   e.cfg.DiscretizerVersion,
		SchemaVersion:        SchemaVersion,
	}
}

func isoTime(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).UTC().Format(time.RFC3339)
}
