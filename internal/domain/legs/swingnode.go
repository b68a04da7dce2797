package legs

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/reference"
)

// SwingStatus is the lifecycle state of a confirmed swing.
type SwingStatus string

const (
	SwingActive      SwingStatus = "active"
	SwingInvalidated SwingStatus = "invalidated"
	SwingCompleted   SwingStatus = "completed"
)

// SwingNode is the confirmed, higher-level entity a leg forms into
// once its retracement crosses the formation threshold.
type SwingNode struct {
	SwingID      string
	Direction    reference.Direction
	HighPrice    decimal.Decimal
	HighBarIndex uint64
	LowPrice     decimal.Decimal
	LowBarIndex  uint64
	Status       SwingStatus
	FormedAtBar  uint64
}

// DefendedPivot is the anchor the swing relies on holding: the low for
// a bull swing, the high for a bear swing.
func (s SwingNode) DefendedPivot() decimal.Decimal {
	if s.Direction == reference.Bull {
		return s.LowPrice
	}
	return s.HighPrice
}

// Origin is the anchor opposite the defended pivot.
func (s SwingNode) Origin() decimal.Decimal {
	if s.Direction == reference.Bull {
		return s.HighPrice
	}
	return s.LowPrice
}

// Frame builds the oriented reference.Frame for this swing.
func (s SwingNode) Frame() (reference.Frame, error) {
	return reference.FromAnchors(s.LowPrice, s.HighPrice, s.Direction)
}

// swingFromLeg creates the SwingNode a newly-formed leg anchors.
func swingFromLeg(l *Leg, bar uint64) *SwingNode {
	sw := &SwingNode{
		SwingID:     l.LegID,
		Direction:   l.Direction,
		Status:      SwingActive,
		FormedAtBar: bar,
	}
	if l.Direction == reference.Bull {
		sw.LowPrice, sw.LowBarIndex = l.OriginPrice, l.OriginIndex
		sw.HighPrice, sw.HighBarIndex = l.PivotPrice, l.PivotIndex
	} else {
		sw.HighPrice, sw.HighBarIndex = l.OriginPrice, l.OriginIndex
		sw.LowPrice, sw.LowBarIndex = l.PivotPrice, l.PivotIndex
	}
	return sw
}
