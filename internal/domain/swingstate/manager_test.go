package swingstate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/errs"
	"github.com/sawpanic/legscan/internal/domain/legs"
	"github.com/sawpanic/legscan/internal/domain/reference"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bullSwing(id string, low, high string) *legs.SwingNode {
	return &legs.SwingNode{SwingID: id, Direction: reference.Bull, LowPrice: dec(low), HighPrice: dec(high), Status: legs.SwingActive}
}

func TestStrictScaleInvalidatesOnCloseBelowPivot(t *testing.T) {
	mgr, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	sw := bullSwing("s1", "100", "101")
	require.NoError(t, mgr.Register(sw, dec("0.001"))) // S scale: strict, zero tolerance

	// closeRatio = -0.03: would be absorbed by the L/XL tolerant
	// boundary (-0.10) but invalidates immediately under the strict
	// S/M rule (tolerance 0).
	events := mgr.ProcessBar(classify.Bar{Index: 1, Open: dec("100.5"), High: dec("100.6"), Low: dec("99.9"), Close: dec("99.97")})
	kinds := map[EventKind]bool{}
	for _, e := range events {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[EventInvalidation])
	assert.True(t, kinds[EventTerminated])
}

func TestTolerantScaleAbsorbsSmallOvershoot(t *testing.T) {
	mgr, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	sw := bullSwing("s2", "100", "110")
	require.NoError(t, mgr.Register(sw, dec("10"))) // XL scale

	events := mgr.ProcessBar(classify.Bar{Index: 1, Open: dec("109"), High: dec("109.5"), Low: dec("99.7"), Close: dec("99.8")})
	for _, e := range events {
		assert.NotEqual(t, EventInvalidation, e.Kind)
	}
}

func TestCompletionTerminatesOnlySmallScale(t *testing.T) {
	mgr, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	sw := bullSwing("s3", "100", "100.2")
	require.NoError(t, mgr.Register(sw, dec("0.01"))) // M scale

	events := mgr.ProcessBar(classify.Bar{Index: 1, Open: dec("100.2"), High: dec("100.5"), Low: dec("100.1"), Close: dec("100.4")})
	kinds := map[EventKind]bool{}
	for _, e := range events {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[EventCompletion])
	assert.True(t, kinds[EventTerminated])

	completed, ok := mgr.IsCompleted("s3")
	require.True(t, ok)
	assert.True(t, completed)
}

func TestBigScaleNeverCompletes(t *testing.T) {
	mgr, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	sw := bullSwing("s4", "100", "110")
	require.NoError(t, mgr.Register(sw, dec("10"))) // XL scale

	events := mgr.ProcessBar(classify.Bar{Index: 1, Open: dec("119"), High: dec("125"), Low: dec("118"), Close: dec("120")})
	for _, e := range events {
		assert.NotEqual(t, EventCompletion, e.Kind)
		assert.NotEqual(t, EventTerminated, e.Kind)
	}

	// The reference-layer query still reports completion retroactively
	// even though no COMPLETION event was ever emitted.
	completed, ok := mgr.IsCompleted("s4")
	require.True(t, ok)
	assert.True(t, completed)
}

func TestLevelCrossTrackingRespectsMaxTrackedCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTrackedLegs = 1
	mgr, err := NewManager(cfg)
	require.NoError(t, err)
	require.NoError(t, mgr.Register(bullSwing("tracked", "100", "110"), dec("10")))
	require.NoError(t, mgr.Register(bullSwing("untracked", "200", "210"), dec("10")))

	mgr.ProcessBar(classify.Bar{Index: 1, Open: dec("205"), High: dec("210"), Low: dec("199"), Close: dec("202")})
	crosses := mgr.FlushPendingCrossEvents()
	for _, e := range crosses {
		assert.NotEqual(t, "untracked", e.SwingID)
	}
}

func TestSubscribeReturnsSoftErrorAtCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTrackedLegs = 1
	mgr, err := NewManager(cfg)
	require.NoError(t, err)
	require.NoError(t, mgr.Register(bullSwing("first", "100", "110"), dec("10")))
	require.NoError(t, mgr.Register(bullSwing("second", "200", "210"), dec("10")))

	// "first" filled the only auto-tracked slot at Register time, so an
	// explicit re-subscribe is a no-op rather than an error.
	require.NoError(t, mgr.Subscribe("first"))

	// "second" never got an auto-tracked slot; subscribing it now must
	// fail softly without disturbing "first"'s existing subscription.
	err = mgr.Subscribe("second")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindSubscriptionFull))

	mgr.ProcessBar(classify.Bar{Index: 1, Open: dec("105"), High: dec("107"), Low: dec("104"), Close: dec("106")})
	crosses := mgr.FlushPendingCrossEvents()
	sawFirst := false
	for _, e := range crosses {
		assert.NotEqual(t, "second", e.SwingID)
		if e.SwingID == "first" {
			sawFirst = true
		}
	}
	assert.True(t, sawFirst, "expected level-cross events for the still-tracked swing")
}
