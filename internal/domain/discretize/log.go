// Package discretize implements the discretizer (C5): a batch replay
// pass that, given an OHLC table plus a pre-detected mapping of scale
// to swing entries, produces a single canonical, ordered
// DiscretizationLog describing every structural event observed, with
// effort/shock/parent-context side-channel annotations. It is
// standalone: it needs no live leg detector, only precomputed swings
// and bars (spec.md §2).
package discretize

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/reference"
	"github.com/sawpanic/legscan/internal/domain/swingstate"
)

// EventType is the canonical six-member event union the
// discretization log exposes, independent of which inner layer (leg
// detector or swing state machine) would have produced an analogous
// event live.
type EventType string

const (
	EventLevelCross      EventType = "LEVEL_CROSS"
	EventLevelTest       EventType = "LEVEL_TEST"
	EventCompletion      EventType = "COMPLETION"
	EventInvalidation    EventType = "INVALIDATION"
	EventSwingFormed     EventType = "SWING_FORMED"
	EventSwingTerminated EventType = "SWING_TERMINATED"
)

// TerminationType distinguishes why a SWING_TERMINATED event fired.
type TerminationType string

const (
	TerminationCompleted   TerminationType = "COMPLETED"
	TerminationInvalidated TerminationType = "INVALIDATED"
)

// DiscretizationEvent is one canonical log entry. Data carries
// event-specific payload as simple, JSON-friendly key/value pairs
// rather than a typed union per event kind, matching spec.md §3's
// "data (event-specific map)".
type DiscretizationEvent struct {
	Bar       uint64            `json:"bar"`
	Timestamp string            `json:"timestamp"` // ISO-8601
	SwingID   string            `json:"swing_id"`
	EventType EventType         `json:"event_type"`
	Data      map[string]string `json:"data,omitempty"`

	Effort        *Effort        `json:"effort,omitempty"`
	Shock         *Shock         `json:"shock,omitempty"`
	ParentContext *ParentContext `json:"parent_context,omitempty"`
}

// SwingEntry is both the discretizer's input record (scale, direction,
// anchors, formation bar) and, once replay fills in Status /
// TerminatedAtBar / TerminationReason, its output record embedded in
// the log (spec.md §6 "Output: DiscretizationLog").
type SwingEntry struct {
	SwingID     string              `json:"swing_id"`
	Scale       swingstate.Scale    `json:"scale"`
	Direction   reference.Direction `json:"direction"`
	Anchor0     decimal.Decimal     `json:"anchor0"`
	Anchor1     decimal.Decimal     `json:"anchor1"`
	Anchor0Bar  uint64              `json:"anchor0_bar"`
	Anchor1Bar  uint64              `json:"anchor1_bar"`
	FormedAtBar uint64              `json:"formed_at_bar"`

	Status            string  `json:"status"`
	TerminatedAtBar    *uint64 `json:"terminated_at_bar,omitempty"`
	TerminationReason *string `json:"termination_reason,omitempty"`
}

// Frame builds the oriented reference.Frame this entry's anchors
// describe. Anchor0 is the defended pivot, Anchor1 the origin, exactly
// as legs.SwingNode orients them.
func (s SwingEntry) Frame() (reference.Frame, error) {
	return reference.New(s.Anchor0, s.Anchor1, s.Direction)
}

// Meta carries the run-level context spec.md §6 requires to travel
// with every log.
type Meta struct {
	Instrument       string `json:"instrument"`
	SourceResolution string `json:"source_resolution"`
	DateRangeStart   string `json:"date_range_start"`
	DateRangeEnd     string `json:"date_range_end"`
	CreatedAt        string `json:"created_at"`

	RunID string `json:"run_id"`

	LevelSet             []string `json:"level_set"`
	LevelSetVersion      string   `json:"level_set_version"`
	CrossingSemantics    string   `json:"crossing_semantics"`
	CrossingTolerancePct string   `json:"crossing_tolerance_pct"`
	GapThresholdPct      string   `json:"gap_threshold_pct"`
	SwingDetectorVersion string   `json:"swing_detector_version"`
	DiscretizerVersion   string   `json:"discretizer_version"`
	SchemaVersion        string   `json:"schema_version"`
}

// DiscretizationLog is the complete, versioned, replayable output of a
// discretizer run: metadata, every swing it tracked, and every
// canonical event emitted, sorted by bar ascending per spec.md §5.
type DiscretizationLog struct {
	Meta   Meta                  `json:"meta"`
	Swings []SwingEntry          `json:"swings"`
	Events []DiscretizationEvent `json:"events"`
}
