package swingstate

import "fmt"

// EventKind is the closed set of state changes this layer emits on top
// of a SwingNode already formed by the leg detector.
type EventKind string

const (
	EventLevelCross   EventKind = "LEVEL_CROSS"
	EventCompletion   EventKind = "COMPLETION"
	EventInvalidation EventKind = "INVALIDATION"
	EventTerminated   EventKind = "SWING_TERMINATED"
)

// Event carries the swing id and bar index alongside kind-specific
// payload (Level/Direction for crosses).
type Event struct {
	Kind      EventKind
	SwingID   string
	BarIndex  uint64
	Timestamp int64
	Level     string // decimal.String() ratio, level-cross only
	Direction string // "up" | "down", level-cross only
}

// Explain produces a short human-readable summary, matching the
// per-leg Event.Explain() style in internal/domain/legs.
func (e Event) Explain() string {
	switch e.Kind {
	case EventLevelCross:
		return fmt.Sprintf("swing %s crossed level %s (%s) at bar %d", e.SwingID, e.Level, e.Direction, e.BarIndex)
	case EventCompletion:
		return fmt.Sprintf("swing %s completed at bar %d", e.SwingID, e.BarIndex)
	case EventInvalidation:
		return fmt.Sprintf("swing %s invalidated at bar %d", e.SwingID, e.BarIndex)
	case EventTerminated:
		return fmt.Sprintf("swing %s terminated at bar %d", e.SwingID, e.BarIndex)
	default:
		return string(e.Kind)
	}
}
