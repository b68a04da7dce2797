package legs

import (
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/reference"
)

// Status is the lifecycle state of a Leg.
type Status string

const (
	StatusActive      Status = "active"
	StatusStale       Status = "stale"
	StatusPruned      Status = "pruned"
	StatusInvalidated Status = "invalidated"
)

// PendingOrigin is a candidate origin awaiting temporal confirmation by
// a subsequent bar. At most one is retained per direction.
type PendingOrigin struct {
	Price     decimal.Decimal
	BarIndex  uint64
	Direction reference.Direction
	Source    string // "high" | "low" | "pivot_extension" | "open" | "close"
}

// Leg is a provisional directional price move, tracked before and
// after it is promoted into a SwingNode.
type Leg struct {
	LegID       string
	SwingID     string // set once formed
	ParentLegID string // empty for root legs

	Direction   reference.Direction
	OriginPrice decimal.Decimal
	OriginIndex uint64
	PivotPrice  decimal.Decimal
	PivotIndex  uint64

	RetracementPct decimal.Decimal
	Formed         bool
	Status         Status

	MaxOriginBreach *decimal.Decimal
	MaxPivotBreach  *decimal.Decimal

	BarCount        int
	LastModifiedBar uint64
	CreatedAtBar    uint64

	Impulse       float64
	Impulsiveness float64 // percentile of Impulse among formed legs, [0,100]
	Spikiness     float64 // Fisher-skew derived, sigmoid mapped to [0,100]

	// Counter-trend bookkeeping.
	OriginCounterTrendRange decimal.Decimal
	MaxCounterLegRange      *decimal.Decimal // nil before bootstrap
	CounterTrendRatio       decimal.Decimal

	// Segment impulse, maintained on the parent as children attach.
	SegmentDeepestPrice *decimal.Decimal
	SegmentDeepestIndex *uint64
	ImpulseToDeepest    float64
	ImpulseBack         float64

	// Contributions holds each bar's price delta since the leg's creation, used to
	// derive Spikiness (Fisher skew) once n >= 3. Bounded by the leg's
	// own lifetime, which pruning keeps short in practice.
	Contributions []float64
}

// Range is the absolute range of the leg.
func (l *Leg) Range() decimal.Decimal {
	return l.OriginPrice.Sub(l.PivotPrice).Abs()
}

// OriginBreached reports whether price has ever breached the origin.
func (l *Leg) OriginBreached() bool { return l.MaxOriginBreach != nil }

// PivotBreached reports whether price has ever breached the pivot.
func (l *Leg) PivotBreached() bool { return l.MaxPivotBreach != nil }

// deriveID computes the deterministic id shared by a leg and the
// SwingNode it forms into, derived from (direction, origin price,
// origin index). crypto/sha256 is stdlib, not an ecosystem grounding
// choice: google/uuid (the pack's id generator) produces random ids
// and cannot satisfy the determinism invariant in spec.md §8, so a
// content hash is used instead. See DESIGN.md.
func deriveID(direction reference.Direction, originPrice decimal.Decimal, originIndex uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", direction, originPrice.String(), originIndex)))
	return fmt.Sprintf("%x", sum[:8])
}

// NewLeg constructs a leg from a pending origin consumed by a new
// extreme at (pivotPrice, pivotIndex).
func NewLeg(direction reference.Direction, originPrice decimal.Decimal, originIndex uint64, pivotPrice decimal.Decimal, pivotIndex uint64, bar uint64) *Leg {
	return &Leg{
		LegID:           deriveID(direction, originPrice, originIndex),
		Direction:       direction,
		OriginPrice:     originPrice,
		OriginIndex:     originIndex,
		PivotPrice:      pivotPrice,
		PivotIndex:      pivotIndex,
		RetracementPct:  decimal.Zero,
		Status:          StatusActive,
		CreatedAtBar:    bar,
		LastModifiedBar: bar,
	}
}

// recomputeImpulse refreshes Impulse from the current range and age.
func (l *Leg) recomputeImpulse() {
	bars := int64(l.PivotIndex) - int64(l.OriginIndex)
	if bars <= 0 {
		l.Impulse = 0
		return
	}
	r, _ := l.Range().Float64()
	l.Impulse = r / float64(bars)
}

// observeContribution folds a per-bar price contribution into the
// leg's running history and, once n >= 3, recomputes Spikiness from
// the sample's Fisher skew mapped through a sigmoid to [0, 100].
func (l *Leg) observeContribution(x float64) {
	l.Contributions = append(l.Contributions, x)
	n := len(l.Contributions)
	if n < 3 {
		return
	}
	mean := 0.0
	for _, v := range l.Contributions {
		mean += v
	}
	mean /= float64(n)

	var m2, m3 float64
	for _, v := range l.Contributions {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= float64(n)
	m3 /= float64(n)

	if m2 <= 0 {
		l.Spikiness = sigmoid(0) * 100
		return
	}
	skew := m3 / math.Pow(m2, 1.5)
	l.Spikiness = sigmoid(skew) * 100
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
