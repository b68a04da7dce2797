// Package reference implements the direction-independent ratio
// coordinate system swings are reasoned about in: ratio 0 is the
// defended pivot, ratio 1 is the origin, ratio 2 is the completion
// target. Every other component treats bull and bear swings
// symmetrically by going through a Frame rather than branching on
// direction.
package reference

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/errs"
)

// Direction is the polarity of a leg, swing, or reference frame.
type Direction string

const (
	Bull Direction = "BULL"
	Bear Direction = "BEAR"
)

// Frame is an immutable oriented coordinate system. For bull frames
// anchor0 is the low (defended pivot) and anchor1 is the high (origin);
// for bear frames the roles are reversed.
type Frame struct {
	anchor0   decimal.Decimal
	anchor1   decimal.Decimal
	direction Direction
	rng       decimal.Decimal
}

// New constructs a Frame, validating that the anchors differ (§7
// ZeroRange). anchor0 is the defended pivot, anchor1 is the origin.
func New(anchor0, anchor1 decimal.Decimal, direction Direction) (Frame, error) {
	if anchor0.Equal(anchor1) {
		return Frame{}, errs.New(errs.KindZeroRange, "anchor0 and anchor1 must differ",
			errs.F("anchor0", anchor0.String()), errs.F("anchor1", anchor1.String()))
	}
	return Frame{
		anchor0:   anchor0,
		anchor1:   anchor1,
		direction: direction,
		rng:       anchor1.Sub(anchor0),
	}, nil
}

// FromAnchors builds a Frame from a bull/bear swing's low and high,
// orienting anchor0/anchor1 per direction the way ReferenceFrame.from_swing
// does in the original implementation.
func FromAnchors(low, high decimal.Decimal, direction Direction) (Frame, error) {
	if direction == Bull {
		return New(low, high, Bull)
	}
	return New(high, low, Bear)
}

// Anchor0 is the defended pivot price (ratio 0).
func (f Frame) Anchor0() decimal.Decimal { return f.anchor0 }

// Anchor1 is the origin extremum price (ratio 1).
func (f Frame) Anchor1() decimal.Decimal { return f.anchor1 }

// Direction reports the frame's polarity.
func (f Frame) Direction() Direction { return f.direction }

// Range is the signed range of the frame: positive for bull, negative
// for bear.
func (f Frame) Range() decimal.Decimal { return f.rng }

// Ratio converts an absolute price into this frame's coordinate.
func (f Frame) Ratio(price decimal.Decimal) decimal.Decimal {
	return price.Sub(f.anchor0).Div(f.rng)
}

// Price converts a ratio back into an absolute price in this frame.
// Price(Ratio(p)) == p for every price, by construction.
func (f Frame) Price(ratio decimal.Decimal) decimal.Decimal {
	return f.anchor0.Add(ratio.Mul(f.rng))
}

// GetFibPrice is a thin wrapper over Price used by the discretizer to
// compute the absolute price of a configured Fibonacci level.
func (f Frame) GetFibPrice(level decimal.Decimal) decimal.Decimal {
	return f.Price(level)
}

// IsViolated reports whether price has breached the defended pivot
// beyond tolerance, i.e. ratio(price) < -tolerance.
func (f Frame) IsViolated(price, tolerance decimal.Decimal) bool {
	return f.Ratio(price).LessThan(tolerance.Neg())
}

// IsFormed reports whether price has retraced from the origin past the
// formation threshold: ratio(price) >= formationFib. Inclusive at the
// boundary per §8.
func (f Frame) IsFormed(price, formationFib decimal.Decimal) bool {
	return f.Ratio(price).GreaterThanOrEqual(formationFib)
}

// IsCompleted reports whether price has reached the completion target:
// ratio(price) >= threshold (default 2.0). Inclusive at the boundary.
func (f Frame) IsCompleted(price, threshold decimal.Decimal) bool {
	return f.Ratio(price).GreaterThanOrEqual(threshold)
}
