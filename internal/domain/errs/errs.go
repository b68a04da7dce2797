// Package errs defines the closed error taxonomy shared by the swing
// detection core. Every failure the engine can produce is one of these
// kinds, except that discretize.Read reports JSON-decoding and log
// validation failures as plain errors; there are no ad-hoc sentinel
// errors scattered across packages.
package errs

import "fmt"

// Kind discriminates the failure categories the engine can report.
type Kind string

const (
	// KindInvalidBar covers malformed bars: low > high, non-monotonic
	// index, or a bar index that goes backwards.
	KindInvalidBar Kind = "INVALID_BAR"
	// KindInvalidConfig covers configuration that fails validation at
	// construction time (out-of-range thresholds, empty level sets,
	// non-monotonic level sets).
	KindInvalidConfig Kind = "INVALID_CONFIG"
	// KindZeroRange covers a reference frame whose anchors are equal.
	KindZeroRange Kind = "ZERO_RANGE"
	// KindInvalidState covers a state snapshot that fails to restore:
	// missing fields or unparseable decimals.
	KindInvalidState Kind = "INVALID_STATE"
	// KindInconsistentSwings covers a discretizer input where a swing's
	// anchors or bar indices don't reconcile with the supplied OHLC.
	KindInconsistentSwings Kind = "INCONSISTENT_SWINGS"
	// KindSubscriptionFull is the soft error swingstate.Manager.Subscribe
	// returns when level-cross tracking already holds MaxTrackedLegs
	// swings; existing subscriptions are left untouched.
	KindSubscriptionFull Kind = "SUBSCRIPTION_FULL"
)

// Error is the single error type the engine returns. Fields carries
// whatever context is relevant to the kind (bar_index, leg_id, field).
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]any
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s %v", e.Kind, e.Message, e.Fields)
}

// New constructs an Error of the given kind with optional context
// fields, e.g. New(KindInvalidBar, "low exceeds high", F("bar_index", 7)).
func New(kind Kind, message string, fields ...Field) *Error {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return &Error{Kind: kind, Message: message, Fields: m}
}

// Field is a single named context value attached to an Error.
type Field struct {
	Key   string
	Value any
}

// F builds a Field for use with New.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Is reports whether err is an *Error of the given kind, so callers can
// branch with errors.Is-style checks without exporting sentinel values.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
