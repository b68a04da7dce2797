// Package classify holds the Bar entity and the per-bar classification
// (inside / type-2-bull / type-2-bear / outside) that fixes the
// intra-bar temporal ordering the leg detector relies on.
package classify

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/errs"
)

// Bar is an immutable OHLC bar. Once constructed it is never mutated.
type Bar struct {
	Index     uint64
	Timestamp int64 // seconds since epoch
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
}

// Validate enforces low <= min(open, close) <= max(open, close) <= high
// and, when prev is non-nil, that Index is strictly increasing.
func (b Bar) Validate(prev *Bar) error {
	if b.Low.GreaterThan(b.High) {
		return errs.New(errs.KindInvalidBar, "low exceeds high",
			errs.F("bar_index", b.Index), errs.F("low", b.Low.String()), errs.F("high", b.High.String()))
	}
	lo := decimal.Min(b.Open, b.Close)
	hi := decimal.Max(b.Open, b.Close)
	if b.Low.GreaterThan(lo) || hi.GreaterThan(b.High) {
		return errs.New(errs.KindInvalidBar, "open/close fall outside low/high range",
			errs.F("bar_index", b.Index))
	}
	if prev != nil {
		if b.Index <= prev.Index {
			return errs.New(errs.KindInvalidBar, "bar index is not monotonically increasing",
				errs.F("bar_index", b.Index), errs.F("prev_index", prev.Index))
		}
	}
	return nil
}

// Type is the classification of a bar relative to its predecessor.
type Type string

const (
	// Inside: high <= prev.high and low >= prev.low.
	Inside Type = "INSIDE"
	// Type2Bull: high > prev.high and low >= prev.low.
	Type2Bull Type = "TYPE2_BULL"
	// Type2Bear: high <= prev.high and low < prev.low.
	Type2Bear Type = "TYPE2_BEAR"
	// Outside: high > prev.high and low < prev.low.
	Outside Type = "OUTSIDE"
)

// Classify labels cur relative to prev. Equal extremes are treated as
// not exceeding, per spec.
func Classify(prev, cur Bar) Type {
	higherHigh := cur.High.GreaterThan(prev.High)
	lowerLow := cur.Low.LessThan(prev.Low)
	lowerHigh := !higherHigh // high <= prev.high
	higherLow := !lowerLow   // low >= prev.low

	switch {
	case higherHigh && lowerLow:
		return Outside
	case higherHigh && higherLow:
		return Type2Bull
	case lowerLow && lowerHigh:
		return Type2Bear
	case lowerHigh && higherLow:
		return Inside
	}
	// Unreachable: the four cases above are exhaustive over the
	// {higherHigh, lowerLow} x {lowerHigh, higherLow} truth table.
	return Inside
}
