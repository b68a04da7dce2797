package discretize

import "github.com/shopspring/decimal"

// SchemaVersion is bumped whenever DiscretizationLog's on-disk shape
// changes in a way old readers cannot tolerate. Recorded in every
// log's meta per spec.md §4.5 ("configuration recorded with every
// log"), matching original_source's schema.py discipline of carrying
// an explicit version constant (see SPEC_FULL.md §4).
const SchemaVersion = "1.0"

// DiscretizerVersion identifies the behavior of this replay pass,
// independent of the on-disk schema. Two logs are only comparable if
// both LevelSet and LevelSetVersion match (spec.md §4.5); readers warn,
// never fail, on a mismatch.
const DiscretizerVersion = "1.0"

// LevelSetVersion names the canonical 16-entry Fibonacci level set
// below.
const LevelSetVersion = "v1.0"

// CanonicalLevelSet is the v1.0, 16-entry level set from spec.md §4.5.
// Bands are the half-open intervals between adjacent levels, with
// "<min" and ">=max" sentinels at the extremes.
func CanonicalLevelSet() []decimal.Decimal {
	return []decimal.Decimal{
		decimal.RequireFromString("-0.15"),
		decimal.RequireFromString("-0.10"),
		decimal.RequireFromString("0.0"),
		decimal.RequireFromString("0.236"),
		decimal.RequireFromString("0.382"),
		decimal.RequireFromString("0.5"),
		decimal.RequireFromString("0.618"),
		decimal.RequireFromString("0.786"),
		decimal.RequireFromString("1.0"),
		decimal.RequireFromString("1.236"),
		decimal.RequireFromString("1.382"),
		decimal.RequireFromString("1.5"),
		decimal.RequireFromString("1.618"),
		decimal.RequireFromString("1.786"),
		decimal.RequireFromString("2.0"),
		decimal.RequireFromString("2.236"),
	}
}

// SeparationLevels is the 12-entry band original_source's constants.py
// uses for structural separation checks during leg-creation look-ahead
// (distinct from the discretizer's 16-entry CanonicalLevelSet; see
// SPEC_FULL.md §4 "Centralized level constants"). It is exposed here,
// alongside the canonical set, because both share the same band-index
// machinery below.
func SeparationLevels() []decimal.Decimal {
	return []decimal.Decimal{
		decimal.RequireFromString("-0.272"),
		decimal.RequireFromString("0.0"),
		decimal.RequireFromString("0.236"),
		decimal.RequireFromString("0.382"),
		decimal.RequireFromString("0.5"),
		decimal.RequireFromString("0.618"),
		decimal.RequireFromString("0.786"),
		decimal.RequireFromString("1.0"),
		decimal.RequireFromString("1.236"),
		decimal.RequireFromString("1.382"),
		decimal.RequireFromString("1.618"),
		decimal.RequireFromString("2.0"),
	}
}

// bandIndex locates ratio within levels, returning an index in
// [0, len(levels)]: 0 means "below levels[0]", i means
// "[levels[i-1], levels[i])", and len(levels) means ">= levels[len-1]".
func bandIndex(levels []decimal.Decimal, ratio decimal.Decimal) int {
	for i, lvl := range levels {
		if ratio.LessThan(lvl) {
			return i
		}
	}
	return len(levels)
}

// levelsBetween returns every configured level strictly crossed while
// price moved from `from` to `to`, in the order price would have
// reached them. `from` itself is never reported (it was already
// crossed on a prior bar); levels up to tol beyond `to` are included, so
// a close that stops within tol short of a level still registers it, per spec.md §8
// ("a level exactly crossed is emitted once, not twice").
func levelsBetween(levels []decimal.Decimal, from, to, tol decimal.Decimal) []decimal.Decimal {
	if from.Equal(to) {
		return nil
	}
	var crossed []decimal.Decimal
	if to.GreaterThan(from) {
		hiBound := to.Add(tol)
		for _, lvl := range levels {
			if lvl.GreaterThan(from) && lvl.LessThanOrEqual(hiBound) {
				crossed = append(crossed, lvl)
			}
		}
		return crossed
	}
	loBound := to.Sub(tol)
	for i := len(levels) - 1; i >= 0; i-- {
		lvl := levels[i]
		if lvl.LessThan(from) && lvl.GreaterThanOrEqual(loBound) {
			crossed = append(crossed, lvl)
		}
	}
	return crossed
}
