package legs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/legscan/internal/domain/reference"
)

// TestPruneEngulfedIsUnconditional is the direct, numbers-from-the-spec
// regression for spec.md §8 scenario 5: a leg whose origin and pivot
// have both been breached is pruned regardless of breach magnitude.
// The table's "only one side breached" rows guard against reintroducing
// a threshold gate on either side.
func TestPruneEngulfedIsUnconditional(t *testing.T) {
	cases := []struct {
		name         string
		originBreach *string
		pivotBreach  *string
		wantPruned   bool
	}{
		{
			name:         "scenario 5: small breach amounts on both sides still prune",
			originBreach: strPtr("3"), // origin=4450, breach amount 3 -> originRatio 0.1
			pivotBreach:  strPtr("4"), // pivot=4420, breach amount 4 -> pivotRatio ~0.133
			wantPruned:   true,
		},
		{
			name:         "origin only: not engulfed",
			originBreach: strPtr("3"),
			pivotBreach:  nil,
			wantPruned:   false,
		},
		{
			name:         "pivot only: not engulfed",
			originBreach: nil,
			pivotBreach:  strPtr("4"),
			wantPruned:   false,
		},
		{
			name:         "neither breached",
			originBreach: nil,
			pivotBreach:  nil,
			wantPruned:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			det := newTestDetector(t)
			leg := NewLeg(reference.Bear, d("4450"), 0, d("4420"), 1, 1)
			leg.Formed = true
			if tc.originBreach != nil {
				v := d(*tc.originBreach)
				leg.MaxOriginBreach = &v
			}
			if tc.pivotBreach != nil {
				v := d(*tc.pivotBreach)
				leg.MaxPivotBreach = &v
			}
			det.state.ActiveLegs = []*Leg{leg}

			events := det.pruneEngulfed(bar(2, "4430", "4430", "4430", "4430"))

			if tc.wantPruned {
				require.Len(t, events, 1)
				assert.Equal(t, EventLegPruned, events[0].Kind)
				assert.Equal(t, ReasonEngulfed, events[0].Reason)
				assert.Equal(t, leg.LegID, events[0].LegID)
				assert.Empty(t, det.state.ActiveLegs)
			} else {
				assert.Empty(t, events)
				require.Len(t, det.state.ActiveLegs, 1)
			}
		})
	}
}

func strPtr(s string) *string { return &s }

// TestEngulfedPruneScenario5EndToEnd drives the literal scenario 5 bar
// sequence through ProcessBar: a formed bear leg origin=4450/pivot=4420
// first has its origin breached (bar pushes high=4453), then its pivot
// breached (bar pushes low=4416). The leg must be pruned with reason
// engulfed, and no leg is ever re-created from the original origin.
func TestEngulfedPruneScenario5EndToEnd(t *testing.T) {
	det := newTestDetector(t)
	bars := []struct {
		o, h, l, c string
	}{
		{"4445", "4450", "4440", "4443"}, // bar 0: bootstrap, pending bear origin = high = 4450
		{"4440", "4445", "4420", "4425"}, // bar 1: Type2-Bear, creates bear leg origin=4450/pivot=4420; close 4425 (ratio 0.83) forms it
		{"4430", "4440", "4430", "4435"}, // bar 2: Inside bar, no new extreme, nothing created
		{"4435", "4453", "4425", "4430"}, // bar 3 ("Bar A"): origin breach, amount 3
		{"4422", "4424", "4416", "4418"}, // bar 4 ("Bar B"): pivot breach, amount 4
		{"4417", "4419", "4415", "4416"}, // bar 5: engulfed prune fires (step 1 of this bar)
	}

	wantLegID := deriveID(reference.Bear, d("4450"), 0)

	var all []Event
	for i, b := range bars {
		ev, err := det.ProcessBar(bar(uint64(i), b.o, b.h, b.l, b.c))
		require.NoError(t, err)
		all = append(all, ev...)
	}

	var originBreached, pivotBreached, pruned []Event
	createdCount := 0
	for _, e := range all {
		if e.LegID != wantLegID {
			continue
		}
		switch e.Kind {
		case EventLegCreated:
			createdCount++
		case EventOriginBreached:
			originBreached = append(originBreached, e)
		case EventPivotBreached:
			pivotBreached = append(pivotBreached, e)
		case EventLegPruned:
			pruned = append(pruned, e)
		}
	}

	require.Len(t, originBreached, 1)
	assert.EqualValues(t, 3, originBreached[0].BarIndex)

	require.Len(t, pivotBreached, 1)
	assert.EqualValues(t, 4, pivotBreached[0].BarIndex)

	require.Len(t, pruned, 1)
	assert.Equal(t, ReasonEngulfed, pruned[0].Reason)

	assert.Equal(t, 1, createdCount, "no replacement leg should be created from the original origin")

	for _, l := range det.ActiveLegs() {
		assert.NotEqual(t, wantLegID, l.LegID)
	}
}

// TestPruneInnerStructureRemovesRedundantOppositeLeg covers spec.md
// §4.3 step 4: of two same-direction legs where the inner's origin and
// pivot both lie strictly inside the outer's range, the opposite-
// direction leg anchored at the inner's pivot is pruned once both
// opposite legs share the same (extended) current pivot.
func TestPruneInnerStructureRemovesRedundantOppositeLeg(t *testing.T) {
	det := newTestDetector(t)

	outer := NewLeg(reference.Bull, d("100"), 0, d("200"), 5, 5)
	inner := NewLeg(reference.Bull, d("150"), 2, d("180"), 4, 4)
	oppOuter := NewLeg(reference.Bear, d("200"), 5, d("150"), 8, 8)
	oppInner := NewLeg(reference.Bear, d("180"), 4, d("150"), 8, 8)

	ob, ib := d("5"), d("3")
	outer.MaxOriginBreach = &ob
	inner.MaxOriginBreach = &ib

	det.state.ActiveLegs = []*Leg{outer, inner, oppOuter, oppInner}

	events := det.pruneInnerStructure(bar(9, "150", "150", "150", "150"))

	require.Len(t, events, 1)
	assert.Equal(t, EventLegPruned, events[0].Kind)
	assert.Equal(t, ReasonInnerStructure, events[0].Reason)
	assert.Equal(t, oppInner.LegID, events[0].LegID)

	remaining := map[string]bool{}
	for _, l := range det.state.ActiveLegs {
		remaining[l.LegID] = true
	}
	assert.False(t, remaining[oppInner.LegID])
	assert.True(t, remaining[oppOuter.LegID])
	assert.True(t, remaining[outer.LegID])
	assert.True(t, remaining[inner.LegID])
}

// TestPruneInnerStructurePivotImmunity checks the immunity escape
// hatch: if another still-active same-direction leg also anchors to
// the shared pivot, the inner-structure prune does not fire.
func TestPruneInnerStructurePivotImmunity(t *testing.T) {
	det := newTestDetector(t)

	outer := NewLeg(reference.Bull, d("100"), 0, d("200"), 5, 5)
	inner := NewLeg(reference.Bull, d("150"), 2, d("180"), 4, 4)
	oppOuter := NewLeg(reference.Bear, d("200"), 5, d("150"), 8, 8)
	oppInner := NewLeg(reference.Bear, d("180"), 4, d("150"), 8, 8)
	immune := NewLeg(reference.Bear, d("160"), 3, d("150"), 8, 8)

	ob, ib := d("5"), d("3")
	outer.MaxOriginBreach = &ob
	inner.MaxOriginBreach = &ib

	det.state.ActiveLegs = []*Leg{outer, inner, oppOuter, oppInner, immune}

	events := det.pruneInnerStructure(bar(9, "150", "150", "150", "150"))

	assert.Empty(t, events)
	require.Len(t, det.state.ActiveLegs, 5)
}

// TestPruneTurnRatio covers the post-creation turn-ratio rule: a
// freshly created counter-trend leg whose range is too small a
// fraction of the move it retraces is pruned immediately.
func TestPruneTurnRatio(t *testing.T) {
	cases := []struct {
		name           string
		minTurn        string
		counterRange   string
		legOriginPrice string
		legPivotPrice  string
		wantPruned     bool
	}{
		{
			name:           "below threshold: pruned",
			minTurn:        "0.5",
			counterRange:   "100",
			legOriginPrice: "100",
			legPivotPrice:  "110", // range 10, ratio 0.1 < 0.5
			wantPruned:     true,
		},
		{
			name:           "meets threshold: kept",
			minTurn:        "0.5",
			counterRange:   "100",
			legOriginPrice: "100",
			legPivotPrice:  "160", // range 60, ratio 0.6 >= 0.5
			wantPruned:     false,
		},
		{
			name:           "threshold disabled: kept",
			minTurn:        "0",
			counterRange:   "100",
			legOriginPrice: "100",
			legPivotPrice:  "110",
			wantPruned:     false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MinTurnThreshold = d(tc.minTurn)
			det, err := NewDetector(cfg)
			require.NoError(t, err)

			leg := NewLeg(reference.Bear, d(tc.legOriginPrice), 0, d(tc.legPivotPrice), 1, 1)
			leg.OriginCounterTrendRange = d(tc.counterRange)
			det.state.ActiveLegs = []*Leg{leg}

			events := det.pruneTurnRatio(bar(2, "1", "1", "1", "1"), leg)

			if tc.wantPruned {
				require.Len(t, events, 1)
				assert.Equal(t, ReasonTurnRatio, events[0].Reason)
				assert.Empty(t, det.state.ActiveLegs)
			} else {
				assert.Empty(t, events)
				require.Len(t, det.state.ActiveLegs, 1)
			}
		})
	}
}

// TestPruneMinCounterTrend covers the config-gated pass that removes
// legs whose counter_trend_ratio falls below min_counter_trend_ratio.
// Root legs (no parent) are exempt.
func TestPruneMinCounterTrend(t *testing.T) {
	cases := []struct {
		name       string
		minCTR     string
		ratio      string
		hasParent  bool
		wantPruned bool
	}{
		{
			name:       "below floor: pruned",
			minCTR:     "0.3",
			ratio:      "0.1",
			hasParent:  true,
			wantPruned: true,
		},
		{
			name:       "meets floor: kept",
			minCTR:     "0.3",
			ratio:      "0.5",
			hasParent:  true,
			wantPruned: false,
		},
		{
			name:       "root leg: exempt",
			minCTR:     "0.3",
			ratio:      "0.1",
			hasParent:  false,
			wantPruned: false,
		},
		{
			name:       "rule disabled: kept",
			minCTR:     "0",
			ratio:      "0.1",
			hasParent:  true,
			wantPruned: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MinCounterTrendRatio = d(tc.minCTR)
			det, err := NewDetector(cfg)
			require.NoError(t, err)

			leg := NewLeg(reference.Bear, d("100"), 0, d("110"), 1, 1)
			leg.CounterTrendRatio = d(tc.ratio)
			if tc.hasParent {
				leg.ParentLegID = "parent-leg"
			}
			det.state.ActiveLegs = []*Leg{leg}

			events := det.pruneMinCounterTrend(bar(2, "1", "1", "1", "1"), leg)

			if tc.wantPruned {
				require.Len(t, events, 1)
				assert.Equal(t, ReasonMinCounterTrend, events[0].Reason)
				assert.Empty(t, det.state.ActiveLegs)
			} else {
				assert.Empty(t, events)
				require.Len(t, det.state.ActiveLegs, 1)
			}
		})
	}
}

// TestBranchRatioDominationBlocksCreation covers the one pruning-table
// row with no event: a candidate leg whose range is too small relative
// to min_branch_ratio times its parent's range is never created at
// all, silently.
func TestBranchRatioDominationBlocksCreation(t *testing.T) {
	newDetectorWithParent := func(t *testing.T, minBranchRatio string) (*Detector, *Leg) {
		t.Helper()
		cfg := DefaultConfig()
		cfg.MinBranchRatio = d(minBranchRatio)
		det, err := NewDetector(cfg)
		require.NoError(t, err)
		parent := NewLeg(reference.Bull, d("100"), 0, d("200"), 5, 5)
		det.state.ActiveLegs = []*Leg{parent}
		return det, parent
	}

	t.Run("below min branch ratio: blocked", func(t *testing.T) {
		det, parent := newDetectorWithParent(t, "0.5")
		pending := PendingOrigin{Price: parent.PivotPrice, BarIndex: parent.PivotIndex, Direction: reference.Bear, Source: "pivot_extension"}

		events := det.tryCreateLeg(bar(6, "1", "1", "1", "1"), reference.Bear, pending, d("180"))

		assert.Empty(t, events)
		require.Len(t, det.state.ActiveLegs, 1, "candidate leg must not be created")
	})

	t.Run("meets min branch ratio: created", func(t *testing.T) {
		det, parent := newDetectorWithParent(t, "0.5")
		pending := PendingOrigin{Price: parent.PivotPrice, BarIndex: parent.PivotIndex, Direction: reference.Bear, Source: "pivot_extension"}

		events := det.tryCreateLeg(bar(6, "1", "1", "1", "1"), reference.Bear, pending, d("140"))

		require.NotEmpty(t, events)
		assert.Equal(t, EventLegCreated, events[0].Kind)
		require.Len(t, det.state.ActiveLegs, 2)
	})

	t.Run("root leg exempt from branch-ratio gate", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MinBranchRatio = d("0.99")
		det, err := NewDetector(cfg)
		require.NoError(t, err)
		pending := PendingOrigin{Price: d("200"), BarIndex: 5, Direction: reference.Bear, Source: "high"}

		events := det.tryCreateLeg(bar(6, "1", "1", "1", "1"), reference.Bear, pending, d("199"))

		require.NotEmpty(t, events)
		assert.Equal(t, EventLegCreated, events[0].Kind)
	})
}
