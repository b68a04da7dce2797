package discretize

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Warning is returned by Read alongside a successfully-parsed log when
// its recorded level_set or level_set_version differs from the
// reader's config. The other recorded settings are not compared.
// Per spec.md §6 this is advisory, not fatal: the log is still
// returned.
type Warning struct {
	Message string
}

func (w Warning) Error() string { return w.Message }

// Write serializes log as the on-disk JSON form spec.md §6 describes:
// a plain object mirroring the in-memory structure, with nested
// side-channels as nested objects (json.Marshal already does this for
// the Effort/Shock/ParentContext pointer fields above).
func Write(log *DiscretizationLog) ([]byte, error) {
	return json.MarshalIndent(log, "", "  ")
}

// Read parses a DiscretizationLog and validates it against cfg. It
// never fails solely because the log's recorded configuration differs
// from cfg — level_set/level_set_version mismatches are reported as a
// Warning the caller may log or ignore, per spec.md §6 ("the reader
// SHOULD warn when they do not [match]").
func Read(data []byte, cfg Config) (*DiscretizationLog, *Warning, error) {
	var log DiscretizationLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, nil, fmt.Errorf("discretize: invalid log: %w", err)
	}
	if err := validateLog(&log); err != nil {
		return nil, nil, err
	}

	var warn *Warning
	if log.Meta.LevelSetVersion != cfg.LevelSetVersion || !sameLevelSet(log.Meta.LevelSet, cfg.LevelSet) {
		warn = &Warning{Message: fmt.Sprintf(
			"discretize: log level_set_version %q does not match reader's %q; events may not be comparable",
			log.Meta.LevelSetVersion, cfg.LevelSetVersion)}
	}
	return &log, warn, nil
}

// validateLog enforces the structural invariants spec.md §8 requires
// of a DiscretizationLog: events sorted by bar, and every swing_id an
// event references present in Swings.
func validateLog(log *DiscretizationLog) error {
	known := make(map[string]bool, len(log.Swings))
	for _, sw := range log.Swings {
		known[sw.SwingID] = true
	}

	var lastBar uint64
	for i, ev := range log.Events {
		if i > 0 && ev.Bar < lastBar {
			return fmt.Errorf("discretize: events not sorted by bar ascending at index %d (bar %d after %d)", i, ev.Bar, lastBar)
		}
		lastBar = ev.Bar
		if ev.SwingID != "" && !known[ev.SwingID] {
			return fmt.Errorf("discretize: event at index %d references unknown swing_id %q", i, ev.SwingID)
		}
	}
	return nil
}

func sameLevelSet(a []string, b []decimal.Decimal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i].String() {
			return false
		}
	}
	return true
}
