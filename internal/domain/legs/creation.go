package legs

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/reference"
)

// bootstrapFirstBar seeds both pending origins from the opening bar.
// No leg can exist yet: a leg needs a confirmed origin from one bar and
// a consuming extreme from a later one.
func (d *Detector) bootstrapFirstBar(bar classify.Bar) {
	d.state.PendingBull = &PendingOrigin{Price: bar.Low, BarIndex: bar.Index, Direction: reference.Bull, Source: "low"}
	d.state.PendingBear = &PendingOrigin{Price: bar.High, BarIndex: bar.Index, Direction: reference.Bear, Source: "high"}
}

// runBarTypeLogic drives step 6 of the per-bar pipeline: turn
// bookkeeping followed by new-extreme handling for whichever
// direction(s) this bar's classification produced.
func (d *Detector) runBarTypeLogic(bar classify.Bar, barType classify.Type) []Event {
	d.updateTurnBookkeeping(bar, barType)

	var events []Event
	madeHigh := barType == classify.Type2Bull || barType == classify.Outside
	madeLow := barType == classify.Type2Bear || barType == classify.Outside

	if madeHigh {
		events = append(events, d.handleNewExtreme(bar, reference.Bull, bar.High)...)
	}
	if madeLow {
		events = append(events, d.handleNewExtreme(bar, reference.Bear, bar.Low)...)
	}
	return events
}

// updateTurnBookkeeping advances last_turn_bar[dir] only on the bar
// that transitions AWAY FROM a run of the opposite directional bar
// type, never on the first directional bar of a fresh run in the same
// direction.
func (d *Detector) updateTurnBookkeeping(bar classify.Bar, barType classify.Type) {
	opposingType := map[reference.Direction]classify.Type{
		reference.Bull: classify.Type2Bear,
		reference.Bear: classify.Type2Bull,
	}
	for _, dir := range [2]reference.Direction{reference.Bull, reference.Bear} {
		if d.state.PrevBarType == opposingType[dir] && barType != opposingType[dir] {
			d.state.setLastTurnBar(dir, bar.Index)
		}
	}
}

// handleNewExtreme consumes the direction's pending origin (if any) to
// attempt a leg creation anchored at the new extreme, then re-anchors
// the opposite direction's pending origin to this extreme.
func (d *Detector) handleNewExtreme(bar classify.Bar, dir reference.Direction, extremePrice decimal.Decimal) []Event {
	var events []Event
	if pending := d.state.pendingFor(dir); pending != nil {
		events = append(events, d.tryCreateLeg(bar, dir, *pending, extremePrice)...)
	}
	d.state.setPendingFor(opposite(dir), &PendingOrigin{
		Price: extremePrice, BarIndex: bar.Index, Direction: opposite(dir), Source: sourceTag(dir),
	})
	return events
}

func sourceTag(dir reference.Direction) string {
	if dir == reference.Bull {
		return "high"
	}
	return "low"
}

// tryCreateLeg builds a candidate leg from a confirmed origin and a new
// extreme, applies branch-ratio domination against its parent (if any),
// resolves origin-proximity clustering against existing unformed
// siblings, and finally applies the post-creation turn-ratio and
// minimum-counter-trend pruning rules.
func (d *Detector) tryCreateLeg(bar classify.Bar, dir reference.Direction, pending PendingOrigin, pivotPrice decimal.Decimal) []Event {
	for _, l := range d.state.ActiveLegs {
		if l.Status == StatusActive && l.Direction == dir && l.OriginIndex == pending.BarIndex && l.OriginPrice.Equal(pending.Price) {
			return nil
		}
	}

	candidateRange := pivotPrice.Sub(pending.Price).Abs()
	if candidateRange.IsZero() {
		return nil
	}

	parent := d.findLegByPivot(opposite(dir), pending.Price)
	if parent != nil && !d.cfg.MinBranchRatio.IsZero() && !parent.Range().IsZero() {
		if candidateRange.LessThan(d.cfg.MinBranchRatio.Mul(parent.Range())) {
			return nil
		}
	}

	leg := NewLeg(dir, pending.Price, pending.BarIndex, pivotPrice, bar.Index, bar.Index)
	if parent != nil {
		leg.ParentLegID = parent.LegID
		d.applyCounterTrendBookkeeping(parent, leg)
		d.updateParentSegment(parent, leg)
	}
	leg.recomputeImpulse()

	if ev := d.pruneProximityCluster(bar, leg); ev != nil {
		return ev
	}

	d.state.ActiveLegs = append(d.state.ActiveLegs, leg)
	if dir == reference.Bull {
		d.state.HasCreatedBullLeg = true
	} else {
		d.state.HasCreatedBearLeg = true
	}

	events := []Event{{Kind: EventLegCreated, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: leg.LegID}}

	if ev := d.pruneTurnRatio(bar, leg); ev != nil {
		events = append(events, ev...)
	} else if ev := d.pruneMinCounterTrend(bar, leg); ev != nil {
		events = append(events, ev...)
	}

	return events
}

// applyCounterTrendBookkeeping records the new leg's range against its
// parent's largest counter-trend child range seen so far, and derives
// the child's counter_trend_ratio relative to that running maximum.
func (d *Detector) applyCounterTrendBookkeeping(parent, child *Leg) {
	if child.Direction == parent.Direction {
		return
	}
	childRange := child.Range()
	if parent.MaxCounterLegRange == nil || childRange.GreaterThan(*parent.MaxCounterLegRange) {
		cr := childRange
		parent.MaxCounterLegRange = &cr
	}
	child.OriginCounterTrendRange = parent.Range()
	if parent.MaxCounterLegRange != nil && !parent.MaxCounterLegRange.IsZero() {
		child.CounterTrendRatio = childRange.Div(*parent.MaxCounterLegRange)
	}
}

// updateParentSegment tracks the deepest retracement any child has
// carved into the parent's range, and the two impulse ratios measured
// against that deepest point.
func (d *Detector) updateParentSegment(parent, child *Leg) {
	if parent.Range().IsZero() {
		return
	}
	childOrigin := child.OriginPrice
	deeper := parent.SegmentDeepestPrice == nil
	if !deeper {
		if parent.Direction == reference.Bull {
			deeper = childOrigin.LessThan(*parent.SegmentDeepestPrice)
		} else {
			deeper = childOrigin.GreaterThan(*parent.SegmentDeepestPrice)
		}
	}
	if !deeper {
		return
	}
	p := childOrigin
	parent.SegmentDeepestPrice = &p
	idx := child.OriginIndex
	parent.SegmentDeepestIndex = &idx
	toDeepest, _ := parent.OriginPrice.Sub(childOrigin).Abs().Div(parent.Range()).Float64()
	parent.ImpulseToDeepest = toDeepest
	backRange, _ := parent.PivotPrice.Sub(childOrigin).Abs().Div(parent.Range()).Float64()
	parent.ImpulseBack = backRange
}

// pruneProximityCluster checks a freshly built, not-yet-tracked
// candidate leg against existing unformed siblings of the same
// direction. Formed legs (already promoted to a swing) are immune.
// Proximity is judged on origin price distance relative to the
// candidate's own range, and origin index distance relative to total
// bars seen so far.
func (d *Detector) pruneProximityCluster(bar classify.Bar, candidate *Leg) []Event {
	barsSeen := d.state.BarsSeen
	if barsSeen == 0 {
		barsSeen = 1
	}
	barsSeenDec := decimal.NewFromInt(int64(barsSeen))

	for _, l := range d.state.ActiveLegs {
		if l.Status != StatusActive || l.Direction != candidate.Direction || l.Formed {
			continue
		}
		priceClose := l.OriginPrice.Sub(candidate.OriginPrice).Abs().Div(candidate.Range()).LessThanOrEqual(d.cfg.OriginRangePruneThreshold)
		indexDelta := int64(l.OriginIndex) - int64(candidate.OriginIndex)
		if indexDelta < 0 {
			indexDelta = -indexDelta
		}
		timeClose := decimal.NewFromInt(indexDelta).Div(barsSeenDec).LessThanOrEqual(d.cfg.OriginTimePruneThreshold)
		if !priceClose || !timeClose {
			continue
		}

		survivor, loser := d.resolveProximity(l, candidate)
		if loser.LegID == candidate.LegID {
			return []Event{{Kind: EventLegPruned, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: candidate.LegID, Reason: ReasonOriginProximity}}
		}
		if survivor.SwingID == "" && loser.SwingID != "" {
			survivor.SwingID = loser.SwingID
		}
		d.removeLeg(loser.LegID)
		return []Event{{Kind: EventLegPruned, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: loser.LegID, SwingID: loser.SwingID, Reason: ReasonOriginProximity}}
	}
	return nil
}

func (d *Detector) resolveProximity(existing, candidate *Leg) (survivor, loser *Leg) {
	if d.cfg.ProximityPruneStrategy == ProximityCounterTrend {
		if candidate.CounterTrendRatio.GreaterThan(existing.CounterTrendRatio) {
			return candidate, existing
		}
		return existing, candidate
	}
	if existing.OriginIndex <= candidate.OriginIndex {
		return existing, candidate
	}
	return candidate, existing
}

// pruneTurnRatio removes a just-created counter-trend leg whose range
// is too small a fraction of the move it is retracing to be a
// meaningful turn. Root legs (no parent, no counter-trend range) are
// exempt.
func (d *Detector) pruneTurnRatio(bar classify.Bar, leg *Leg) []Event {
	if d.cfg.MinTurnThreshold.IsZero() || leg.OriginCounterTrendRange.IsZero() {
		return nil
	}
	if leg.Range().Div(leg.OriginCounterTrendRange).LessThan(d.cfg.MinTurnThreshold) {
		d.removeLeg(leg.LegID)
		return []Event{{Kind: EventLegPruned, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: leg.LegID, Reason: ReasonTurnRatio}}
	}
	return nil
}

// pruneMinCounterTrend removes a counter-trend leg whose ratio against
// its parent's largest counter-trend child falls below the configured
// floor.
func (d *Detector) pruneMinCounterTrend(bar classify.Bar, leg *Leg) []Event {
	if d.cfg.MinCounterTrendRatio.IsZero() || leg.ParentLegID == "" {
		return nil
	}
	if leg.CounterTrendRatio.LessThan(d.cfg.MinCounterTrendRatio) {
		d.removeLeg(leg.LegID)
		return []Event{{Kind: EventLegPruned, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: leg.LegID, Reason: ReasonMinCounterTrend}}
	}
	return nil
}
