package legs

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/legscan/internal/domain/classify"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bar(idx uint64, o, h, l, c string) classify.Bar {
	return classify.Bar{Index: idx, Timestamp: int64(idx) * 60, Open: d(o), High: d(h), Low: d(l), Close: d(c)}
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	det, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	return det
}

func eventKinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestSimpleBullFormation(t *testing.T) {
	det := newTestDetector(t)
	bars := []classify.Bar{
		bar(0, "100", "101", "99", "100"),
		bar(1, "100", "103", "100", "102"),
		bar(2, "102", "108", "101", "107"),
		bar(3, "107", "116", "106", "115"),
		bar(4, "115", "117", "108", "108"),
	}
	var all []Event
	for _, b := range bars {
		ev, err := det.ProcessBar(b)
		require.NoError(t, err)
		all = append(all, ev...)
	}

	var formed *Event
	for i := range all {
		if all[i].Kind == EventSwingFormed {
			formed = &all[i]
		}
	}
	require.NotNil(t, formed, "expected a SWING_FORMED event, got kinds %v", eventKinds(all))

	sw, ok := det.Swing(formed.SwingID)
	require.True(t, ok)
	assert.True(t, sw.LowPrice.Equal(d("99")))
	assert.True(t, sw.HighPrice.Equal(d("117")))
}

func TestBearLegOriginBreachInvalidatesSwing(t *testing.T) {
	det := newTestDetector(t)
	bars := []classify.Bar{
		bar(0, "100", "101", "99", "100"),
		bar(1, "100", "100", "96", "97"),
		bar(2, "97", "97", "90", "91"),
		bar(3, "91", "92", "84", "85"),
		// deep wick back above the bear leg's origin (the prior high).
		bar(4, "85", "103", "84", "100"),
	}
	var all []Event
	for _, b := range bars {
		ev, err := det.ProcessBar(b)
		require.NoError(t, err)
		all = append(all, ev...)
	}

	kinds := eventKinds(all)
	assert.Contains(t, kinds, EventSwingFormed)
	assert.Contains(t, kinds, EventOriginBreached)
	assert.Contains(t, kinds, EventSwingInvalidated)
}

func TestDeterministicLegIDAcrossIndependentRuns(t *testing.T) {
	bars := []classify.Bar{
		bar(0, "100", "101", "99", "100"),
		bar(1, "100", "103", "100", "102"),
		bar(2, "102", "108", "101", "107"),
	}

	run := func() []Event {
		det := newTestDetector(t)
		var all []Event
		for _, b := range bars {
			ev, err := det.ProcessBar(b)
			require.NoError(t, err)
			all = append(all, ev...)
		}
		return all
	}

	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].LegID, b[i].LegID)
	}
}

func TestWideDownBarStillClassifiesAndBreaches(t *testing.T) {
	det := newTestDetector(t)
	bars := []classify.Bar{
		bar(0, "100", "101", "99", "100"),
		bar(1, "100", "110", "100", "109"), // establishes a bull leg, origin=99
		// a wide down bar, opening at the prior close, whose low
		// breaches the origin outright.
		bar(2, "109", "109", "80", "82"),
	}
	var all []Event
	for _, b := range bars {
		ev, err := det.ProcessBar(b)
		require.NoError(t, err)
		all = append(all, ev...)
	}
	assert.Contains(t, eventKinds(all), EventOriginBreached)
}

func TestPauseResumeProducesSameEventsAsUninterrupted(t *testing.T) {
	bars := []classify.Bar{
		bar(0, "100", "101", "99", "100"),
		bar(1, "100", "103", "100", "102"),
		bar(2, "102", "108", "101", "107"),
		bar(3, "107", "116", "106", "115"),
	}

	uninterrupted := newTestDetector(t)
	var want []Event
	for _, b := range bars {
		ev, err := uninterrupted.ProcessBar(b)
		require.NoError(t, err)
		want = append(want, ev...)
	}

	resumed := newTestDetector(t)
	var got []Event
	for i, b := range bars {
		ev, err := resumed.ProcessBar(b)
		require.NoError(t, err)
		got = append(got, ev...)
		if i == 1 {
			snap := resumed.GetState()
			var err2 error
			resumed, err2 = FromState(DefaultConfig(), snap)
			require.NoError(t, err2)
		}
	}

	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Kind, got[i].Kind)
		assert.Equal(t, want[i].LegID, got[i].LegID)
	}
}

func TestStateSurvivesJSONRoundTrip(t *testing.T) {
	bars := []classify.Bar{
		bar(0, "100", "101", "99", "100"),
		bar(1, "100", "103", "100", "102"),
		bar(2, "102", "108", "101", "107"),
		bar(3, "107", "116", "106", "115"),
	}

	uninterrupted := newTestDetector(t)
	var want []Event
	for _, b := range bars {
		ev, err := uninterrupted.ProcessBar(b)
		require.NoError(t, err)
		want = append(want, ev...)
	}

	resumed := newTestDetector(t)
	var got []Event
	for _, b := range bars[:2] {
		ev, err := resumed.ProcessBar(b)
		require.NoError(t, err)
		got = append(got, ev...)
	}

	// Snapshot State as a caller would for pause/resume (spec.md §6):
	// marshal to JSON, cross a process boundary, and restore. Every
	// field ProcessBar depends on must survive this round-trip bit for
	// bit, including the unexported-looking bookkeeping (turn-bar
	// "set" flags, bars-seen counter, per-leg counter-trend/spikiness
	// state) now promoted to exported fields for exactly this reason.
	blob, err := json.Marshal(resumed.GetState())
	require.NoError(t, err)
	var restored State
	require.NoError(t, json.Unmarshal(blob, &restored))

	resumed, err = FromState(DefaultConfig(), restored)
	require.NoError(t, err)

	for _, b := range bars[2:] {
		ev, err := resumed.ProcessBar(b)
		require.NoError(t, err)
		got = append(got, ev...)
	}

	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Kind, got[i].Kind)
		assert.Equal(t, want[i].LegID, got[i].LegID)
	}
}

func TestInvalidBarRejected(t *testing.T) {
	det := newTestDetector(t)
	_, err := det.ProcessBar(bar(0, "100", "99", "101", "100"))
	assert.Error(t, err)
}

func TestFormedLegImpulsesStaysSorted(t *testing.T) {
	det := newTestDetector(t)
	bars := []classify.Bar{
		bar(0, "100", "101", "99", "100"),
		bar(1, "100", "110", "99", "109"),
		bar(2, "109", "109", "95", "97"),
		bar(3, "97", "120", "96", "119"),
		bar(4, "119", "119", "90", "93"),
		bar(5, "93", "140", "92", "138"),
	}
	for _, b := range bars {
		_, err := det.ProcessBar(b)
		require.NoError(t, err)
	}
	assert.True(t, det.impulses.isSorted())
}
