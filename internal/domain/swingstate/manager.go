package swingstate

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/errs"
	"github.com/sawpanic/legscan/internal/domain/legs"
)

// Manager tracks every confirmed swing's post-formation lifecycle.
// Level-cross bookkeeping is bounded by cfg.MaxTrackedLegs: swings
// beyond the cap still receive completion/invalidation tracking but no
// LEVEL_CROSS events, the same subscription-cap tradeoff the original
// get_pending_cross_events() queue was sized against.
type Manager struct {
	cfg      Config
	watchers map[string]*watcher
	tracked  int

	pendingCrosses []Event
}

// NewManager constructs a Manager from validated configuration.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, watchers: make(map[string]*watcher)}, nil
}

// Register begins tracking a newly-formed swing. rng is the swing's
// absolute price range, used to classify its scale.
func (m *Manager) Register(sw *legs.SwingNode, rng decimal.Decimal) error {
	tracked := m.tracked < m.cfg.MaxTrackedLegs
	w, err := newWatcher(sw, tracked)
	if err != nil {
		return err
	}
	w.scale = ClassifyScale(rng, m.cfg)
	if tracked {
		m.tracked++
	}
	m.watchers[sw.SwingID] = w
	return nil
}

// ProcessBar advances every tracked swing's state machine off the
// bar's OHLC and returns the completion/invalidation/termination
// events produced. Level-cross events are queued separately; call
// FlushPendingCrossEvents to drain them.
func (m *Manager) ProcessBar(bar classify.Bar) []Event {
	var events []Event
	for id, w := range m.watchers {
		if w.terminated {
			continue
		}
		closeRatio := w.frame.Ratio(bar.Close)
		lowRatio := w.frame.Ratio(bar.Low)
		highRatio := w.frame.Ratio(bar.High)
		if lowRatio.GreaterThan(highRatio) {
			lowRatio, highRatio = highRatio, lowRatio
		}
		events = append(events, w.step(closeRatio, lowRatio, m.cfg, id, bar.Index, bar.Timestamp)...)

		m.pendingCrosses = append(m.pendingCrosses, w.levelCrosses(lowRatio, highRatio, closeRatio, m.cfg, id, bar.Index, bar.Timestamp)...)

		if w.terminated {
			m.releaseSlot(w)
		}
	}
	return events
}

// FlushPendingCrossEvents drains and returns every LEVEL_CROSS event
// accumulated since the last flush.
func (m *Manager) FlushPendingCrossEvents() []Event {
	out := m.pendingCrosses
	m.pendingCrosses = nil
	return out
}

// MaxRatioReached returns the highest close ratio ever observed for
// swingID, or 1 if no close has gone above ratio 1, retained past
// invalidation. ok is false if swingID is unknown.
func (m *Manager) MaxRatioReached(swingID string) (decimal.Decimal, bool) {
	w, ok := m.watchers[swingID]
	if !ok {
		return decimal.Zero, false
	}
	return w.maxRatioReached, true
}

// IsCompleted derives swingID's completion status from its
// MaxRatioReached rather than from whether a COMPLETION event was
// emitted, so a later change to cfg.CompletionThreshold reclassifies
// retroactively (spec.md §4.4, §9 "max_location"). ok is false if
// swingID is unknown.
func (m *Manager) IsCompleted(swingID string) (completed bool, ok bool) {
	w, ok := m.watchers[swingID]
	if !ok {
		return false, false
	}
	return w.isCompleted(m.cfg.CompletionThreshold), true
}

// Subscribe explicitly opts an already-registered swing into
// level-cross monitoring, enforcing cfg.MaxTrackedLegs at the
// subscription boundary rather than silently at Register time. Per
// spec.md §7, exceeding the cap returns a soft KindSubscriptionFull
// error and leaves every existing subscription untouched; it is not a
// fatal condition for the caller.
func (m *Manager) Subscribe(swingID string) error {
	w, ok := m.watchers[swingID]
	if !ok {
		return errs.New(errs.KindInvalidState, "unknown swing id", errs.F("swing_id", swingID))
	}
	if w.tracked {
		return nil
	}
	if m.tracked >= m.cfg.MaxTrackedLegs {
		return errs.New(errs.KindSubscriptionFull, "level-cross tracking is at capacity",
			errs.F("swing_id", swingID), errs.F("max_tracked_legs", m.cfg.MaxTrackedLegs))
	}
	w.tracked = true
	m.tracked++
	return nil
}

func (m *Manager) releaseSlot(w *watcher) {
	if w.tracked {
		w.tracked = false
		m.tracked--
	}
}
