package legs

import (
	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/reference"
)

// legFrame builds the oriented reference.Frame for a leg the same way
// swingFromLeg orients a confirmed SwingNode, so ratio math is
// identical before and after formation.
func legFrame(l *Leg) (reference.Frame, error) {
	if l.Direction == reference.Bull {
		return reference.FromAnchors(l.OriginPrice, l.PivotPrice, reference.Bull)
	}
	return reference.FromAnchors(l.PivotPrice, l.OriginPrice, reference.Bear)
}

// checkFormation recomputes every live, unformed leg's retracement
// against the current bar's check price and promotes any leg that has
// retraced past FormationFib into a SwingNode. check_price is the
// close on Type2/Outside bars and the direction-favorable extreme on
// Inside bars, matching the original implementation's bar-type-aware
// recheck.
func (d *Detector) checkFormation(bar classify.Bar, barType classify.Type) []Event {
	var events []Event
	for _, l := range d.state.ActiveLegs {
		if l.Status != StatusActive || l.Formed {
			continue
		}
		frame, err := legFrame(l)
		if err != nil {
			continue
		}
		price := checkPrice(bar, barType, l.Direction)
		l.RetracementPct = frame.Ratio(price)

		if !frame.IsFormed(price, d.cfg.FormationFib) {
			continue
		}

		l.Formed = true
		l.LastModifiedBar = bar.Index

		sw := swingFromLeg(l, bar.Index)
		d.state.Swings[sw.SwingID] = sw
		l.SwingID = sw.SwingID

		d.impulses.insert(l.Impulse)
		l.Impulsiveness = d.impulses.percentile(l.Impulse)

		events = append(events, Event{Kind: EventSwingFormed, BarIndex: bar.Index, Timestamp: bar.Timestamp, LegID: l.LegID, SwingID: sw.SwingID})
	}
	return events
}
