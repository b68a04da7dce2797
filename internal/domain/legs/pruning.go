package legs

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/reference"
)

// extendPivots moves the pivot of every live, non-origin-breached leg
// to a new favorable extreme and re-anchors the opposite direction's
// pending origin there. A leg whose origin has breached is frozen: it
// no longer extends, which is what makes a later pivot breach possible
// (see updateBreaches).
func (d *Detector) extendPivots(bar classify.Bar) []Event {
	for _, l := range d.state.ActiveLegs {
		if l.Status != StatusActive || l.OriginBreached() {
			continue
		}
		extended := false
		switch l.Direction {
		case reference.Bull:
			if bar.High.GreaterThan(l.PivotPrice) {
				l.PivotPrice, l.PivotIndex = bar.High, bar.Index
				extended = true
			}
		case reference.Bear:
			if bar.Low.LessThan(l.PivotPrice) {
				l.PivotPrice, l.PivotIndex = bar.Low, bar.Index
				extended = true
			}
		}
		if !extended {
			continue
		}
		l.LastModifiedBar = bar.Index
		l.recomputeImpulse()
		if sw, ok := d.state.Swings[l.SwingID]; ok {
			if l.Direction == reference.Bull {
				sw.HighPrice, sw.HighBarIndex = l.PivotPrice, l.PivotIndex
			} else {
				sw.LowPrice, sw.LowBarIndex = l.PivotPrice, l.PivotIndex
			}
		}
		d.state.setPendingFor(opposite(l.Direction), &PendingOrigin{
			Price: l.PivotPrice, BarIndex: bar.Index, Direction: opposite(l.Direction), Source: "pivot_extension",
		})
	}
	return nil
}

// updateBreaches records origin and pivot breaches for every live leg.
// Breach amounts are monotonically non-decreasing and are recorded the
// instant a crossing occurs, regardless of size. It returns the ids of
// legs whose origin was breached for the first time this bar.
func (d *Detector) updateBreaches(bar classify.Bar) ([]string, []Event) {
	var newlyBreached []string
	var events []Event

	for _, l := range d.state.ActiveLegs {
		if l.Status != StatusActive {
			continue
		}

		var amt decimal.Decimal
		crossed := false
		switch l.Direction {
		case reference.Bull:
			if bar.Low.LessThan(l.OriginPrice) {
				amt, crossed = l.OriginPrice.Sub(bar.Low), true
			}
		case reference.Bear:
			if bar.High.GreaterThan(l.OriginPrice) {
				amt, crossed = bar.High.Sub(l.OriginPrice), true
			}
		}
		if crossed {
			first := l.MaxOriginBreach == nil
			if first || amt.GreaterThan(*l.MaxOriginBreach) {
				l.MaxOriginBreach = &amt
			}
			if first {
				newlyBreached = append(newlyBreached, l.LegID)
				d.state.OriginBreachedLegIDs[l.LegID] = true
				events = append(events, Event{Kind: EventOriginBreached, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: l.LegID, SwingID: l.SwingID})
				if l.SwingID != "" {
					if sw, ok := d.state.Swings[l.SwingID]; ok && sw.Status == SwingActive {
						sw.Status = SwingInvalidated
						events = append(events, Event{Kind: EventSwingInvalidated, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: l.LegID, SwingID: l.SwingID, Reason: ReasonOriginBreachedInvalid})
					}
				}
			}
		}

		if !l.Formed {
			continue
		}
		var pAmt decimal.Decimal
		pCrossed := false
		switch l.Direction {
		case reference.Bull:
			if bar.High.GreaterThan(l.PivotPrice) {
				pAmt, pCrossed = bar.High.Sub(l.PivotPrice), true
			}
		case reference.Bear:
			if bar.Low.LessThan(l.PivotPrice) {
				pAmt, pCrossed = l.PivotPrice.Sub(bar.Low), true
			}
		}
		if pCrossed {
			first := l.MaxPivotBreach == nil
			if first || pAmt.GreaterThan(*l.MaxPivotBreach) {
				l.MaxPivotBreach = &pAmt
			}
			if first {
				events = append(events, Event{Kind: EventPivotBreached, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: l.LegID, SwingID: l.SwingID})
			}
		}
	}

	return newlyBreached, events
}

// pruneEngulfed removes legs whose origin AND pivot have both been
// breached, at all, by price: once both anchors have round-tripped,
// the leg is structurally refuted regardless of breach magnitude. This
// is unconditional — there is no threshold gate.
func (d *Detector) pruneEngulfed(bar classify.Bar) []Event {
	if !d.cfg.EnableEngulfedPrune {
		return nil
	}
	var events []Event
	var toRemove []string
	for _, l := range d.state.ActiveLegs {
		if l.Status != StatusActive || l.MaxOriginBreach == nil || l.MaxPivotBreach == nil {
			continue
		}
		events = append(events, Event{Kind: EventLegPruned, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: l.LegID, SwingID: l.SwingID, Reason: ReasonEngulfed})
		toRemove = append(toRemove, l.LegID)
	}
	for _, id := range toRemove {
		d.removeLeg(id)
	}
	return events
}

// pruneExtensionBeyondOrigin removes non-root legs whose origin breach
// has grown to StaleExtensionThreshold times their own range: the
// price move has gone so far past where this leg started that tracking
// it as a live branch no longer adds information. Root legs (no
// parent) are never pruned by this rule.
func (d *Detector) pruneExtensionBeyondOrigin(bar classify.Bar) []Event {
	var events []Event
	var toRemove []string
	for _, l := range d.state.ActiveLegs {
		if l.Status != StatusActive || l.ParentLegID == "" || !l.OriginBreached() {
			continue
		}
		rng := l.Range()
		if rng.IsZero() {
			continue
		}
		threshold := d.cfg.StaleExtensionThreshold.Mul(rng)
		if l.MaxOriginBreach.GreaterThanOrEqual(threshold) {
			events = append(events, Event{Kind: EventLegPruned, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: l.LegID, SwingID: l.SwingID, Reason: ReasonExtension})
			toRemove = append(toRemove, l.LegID)
		}
	}
	for _, id := range toRemove {
		d.removeLeg(id)
	}
	return events
}

// pruneInnerStructure removes opposite-direction legs made redundant
// by containment: if same-direction leg B's origin and pivot both lie
// strictly inside same-direction leg A's range, and an opposite-
// direction leg anchors to each of A's and B's pivots but both of
// those opposite legs currently share the same (extended) pivot, the
// leg anchored to B's pivot adds nothing A's anchor doesn't already
// cover and is pruned. The prune is skipped if any other leg of the
// pruned leg's direction with status active has its pivot at the shared
// pivot; legs in any other status do not make a pivot immune.
func (d *Detector) pruneInnerStructure(bar classify.Bar) []Event {
	var events []Event
	for _, dir := range []reference.Direction{reference.Bull, reference.Bear} {
		candidates := d.originBreachedOf(dir)
		for _, outer := range candidates {
			lo, hi := decimal.Min(outer.OriginPrice, outer.PivotPrice), decimal.Max(outer.OriginPrice, outer.PivotPrice)
			for _, inner := range candidates {
				if inner.LegID == outer.LegID {
					continue
				}
				if !strictlyBetween(inner.OriginPrice, lo, hi) || !strictlyBetween(inner.PivotPrice, lo, hi) {
					continue
				}
				oppDir := opposite(dir)
				legOuter := d.findLegByOrigin(oppDir, outer.PivotPrice)
				legInner := d.findLegByOrigin(oppDir, inner.PivotPrice)
				if legOuter == nil || legInner == nil || legOuter.LegID == legInner.LegID {
					continue
				}
				if !legOuter.PivotPrice.Equal(legInner.PivotPrice) {
					continue
				}
				if d.pivotImmune(oppDir, legInner.PivotPrice, legOuter.LegID, legInner.LegID) {
					continue
				}
				events = append(events, Event{Kind: EventLegPruned, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: legInner.LegID, SwingID: legInner.SwingID, Reason: ReasonInnerStructure})
				d.removeLeg(legInner.LegID)
			}
		}
	}
	return events
}

func (d *Detector) originBreachedOf(dir reference.Direction) []*Leg {
	var out []*Leg
	for _, l := range d.state.ActiveLegs {
		if l.Status == StatusActive && l.Direction == dir && l.OriginBreached() {
			out = append(out, l)
		}
	}
	return out
}

func (d *Detector) findLegByOrigin(dir reference.Direction, originPrice decimal.Decimal) *Leg {
	for _, l := range d.state.ActiveLegs {
		if l.Status == StatusActive && l.Direction == dir && l.OriginPrice.Equal(originPrice) {
			return l
		}
	}
	return nil
}

func (d *Detector) findLegByPivot(dir reference.Direction, pivotPrice decimal.Decimal) *Leg {
	for _, l := range d.state.ActiveLegs {
		if l.Status == StatusActive && l.Direction == dir && l.PivotPrice.Equal(pivotPrice) {
			return l
		}
	}
	return nil
}

func (d *Detector) pivotImmune(dir reference.Direction, pivotPrice decimal.Decimal, exclude ...string) bool {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	for _, l := range d.state.ActiveLegs {
		if l.Direction != dir || excluded[l.LegID] || !l.PivotPrice.Equal(pivotPrice) {
			continue
		}
		if l.Status == StatusActive {
			return true
		}
	}
	return false
}

func strictlyBetween(p, lo, hi decimal.Decimal) bool {
	return p.GreaterThan(lo) && p.LessThan(hi)
}
