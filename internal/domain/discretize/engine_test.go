package discretize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/reference"
	"github.com/sawpanic/legscan/internal/domain/swingstate"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bar(idx uint64, o, h, l, c string) classify.Bar {
	return classify.Bar{Index: idx, Timestamp: int64(idx) * 60, Open: d(o), High: d(h), Low: d(l), Close: d(c)}
}

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	return eng.withClock(func() time.Time { return time.Unix(0, 0) }, func() string { return "test-run" })
}

func TestCompletionAtExactTwoTerminatesSmallSwing(t *testing.T) {
	eng := newTestEngine(t, nil)
	entry := SwingEntry{
		SwingID: "sw1", Scale: swingstate.ScaleS, Direction: reference.Bull,
		Anchor0: d("5000"), Anchor1: d("5100"), Anchor0Bar: 0, Anchor1Bar: 0, FormedAtBar: 0,
	}
	bars := []classify.Bar{
		bar(0, "5000", "5100", "5000", "5000"),
		bar(1, "5000", "5200", "5000", "5200"),
	}
	log, err := eng.Run(RunInput{Instrument: "TEST", Bars: bars, SwingsByScale: map[swingstate.Scale][]SwingEntry{swingstate.ScaleS: {entry}}})
	require.NoError(t, err)

	var kinds []EventType
	for _, e := range log.Events {
		kinds = append(kinds, e.EventType)
	}
	assert.Contains(t, kinds, EventCompletion)
	assert.Contains(t, kinds, EventSwingTerminated)

	require.Len(t, log.Swings, 1)
	assert.Equal(t, "completed", log.Swings[0].Status)
	require.NotNil(t, log.Swings[0].TerminatedAtBar)
	assert.Equal(t, uint64(1), *log.Swings[0].TerminatedAtBar)
}

func TestInvalidationBelowThreshold(t *testing.T) {
	eng := newTestEngine(t, nil)
	entry := SwingEntry{
		SwingID: "sw2", Scale: swingstate.ScaleS, Direction: reference.Bull,
		Anchor0: d("5000"), Anchor1: d("5100"), Anchor0Bar: 0, Anchor1Bar: 0, FormedAtBar: 0,
	}
	bars := []classify.Bar{
		bar(0, "5000", "5100", "5000", "5000"),
		// ratio = (4980 - 5000) / 100 = -0.2, below the default S threshold of -0.10.
		bar(1, "5000", "5010", "4980", "4980"),
	}
	log, err := eng.Run(RunInput{Instrument: "TEST", Bars: bars, SwingsByScale: map[swingstate.Scale][]SwingEntry{swingstate.ScaleS: {entry}}})
	require.NoError(t, err)

	var kinds []EventType
	for _, e := range log.Events {
		kinds = append(kinds, e.EventType)
	}
	assert.Contains(t, kinds, EventInvalidation)
	assert.Contains(t, kinds, EventSwingTerminated)
	assert.Equal(t, "invalidated", log.Swings[0].Status)
}

func TestGapThroughMultipleLevelsEmitsOrderedCrossings(t *testing.T) {
	eng := newTestEngine(t, func(c *Config) {
		c.GapThresholdPct = d("0.001") // lower than default so the 23-point gap below registers.
	})
	entry := SwingEntry{
		SwingID: "sw3", Scale: swingstate.ScaleM, Direction: reference.Bull,
		Anchor0: d("5000"), Anchor1: d("5100"), Anchor0Bar: 0, Anchor1Bar: 0, FormedAtBar: 0,
	}
	bars := []classify.Bar{
		bar(0, "5000", "5000", "5000", "5000"),
		bar(1, "5023", "5046", "5023", "5046"),
	}
	log, err := eng.Run(RunInput{Instrument: "TEST", Bars: bars, SwingsByScale: map[swingstate.Scale][]SwingEntry{swingstate.ScaleM: {entry}}})
	require.NoError(t, err)

	var crosses []DiscretizationEvent
	for _, e := range log.Events {
		if e.EventType == EventLevelCross {
			crosses = append(crosses, e)
		}
	}
	require.Len(t, crosses, 2)
	assert.Equal(t, "0.236", crosses[0].Data["level_crossed"])
	assert.Equal(t, "0.382", crosses[1].Data["level_crossed"])
	require.NotNil(t, crosses[0].Shock)
	assert.Equal(t, 2, crosses[0].Shock.LevelsJumped)
	assert.True(t, crosses[0].Shock.IsGap)
}

func TestLevelCrossedOnceNotTwice(t *testing.T) {
	eng := newTestEngine(t, nil)
	entry := SwingEntry{
		SwingID: "sw4", Scale: swingstate.ScaleM, Direction: reference.Bull,
		Anchor0: d("5000"), Anchor1: d("5100"), Anchor0Bar: 0, Anchor1Bar: 0, FormedAtBar: 0,
	}
	bars := []classify.Bar{
		bar(0, "5000", "5000", "5000", "5000"),
		bar(1, "5000", "5040", "5000", "5040"), // crosses 0.236
		bar(2, "5040", "5045", "5035", "5041"), // stays above 0.236, should not re-cross
	}
	log, err := eng.Run(RunInput{Instrument: "TEST", Bars: bars, SwingsByScale: map[swingstate.Scale][]SwingEntry{swingstate.ScaleM: {entry}}})
	require.NoError(t, err)

	count := 0
	for _, e := range log.Events {
		if e.EventType == EventLevelCross && e.Data["level_crossed"] == "0.236" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestInconsistentSwingBarIndexRejected(t *testing.T) {
	eng := newTestEngine(t, nil)
	entry := SwingEntry{SwingID: "bad", Scale: swingstate.ScaleS, Direction: reference.Bull,
		Anchor0: d("5000"), Anchor1: d("5100"), Anchor0Bar: 0, Anchor1Bar: 0, FormedAtBar: 99}
	bars := []classify.Bar{bar(0, "5000", "5100", "5000", "5050")}
	_, err := eng.Run(RunInput{Bars: bars, SwingsByScale: map[swingstate.Scale][]SwingEntry{swingstate.ScaleS: {entry}}})
	assert.Error(t, err)
}

func TestEventsSortedAscendingByBar(t *testing.T) {
	eng := newTestEngine(t, nil)
	entry := SwingEntry{
		SwingID: "sw5", Scale: swingstate.ScaleS, Direction: reference.Bull,
		Anchor0: d("100"), Anchor1: d("110"), Anchor0Bar: 0, Anchor1Bar: 0, FormedAtBar: 0,
	}
	bars := []classify.Bar{
		bar(0, "100", "100", "100", "100"),
		bar(1, "100", "105", "100", "105"),
		bar(2, "105", "108", "103", "107"),
	}
	log, err := eng.Run(RunInput{Bars: bars, SwingsByScale: map[swingstate.Scale][]SwingEntry{swingstate.ScaleS: {entry}}})
	require.NoError(t, err)

	var last uint64
	for i, e := range log.Events {
		if i > 0 {
			assert.GreaterOrEqual(t, e.Bar, last)
		}
		last = e.Bar
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	eng := newTestEngine(t, nil)
	entry := SwingEntry{
		SwingID: "sw6", Scale: swingstate.ScaleS, Direction: reference.Bull,
		Anchor0: d("100"), Anchor1: d("110"), Anchor0Bar: 0, Anchor1Bar: 0, FormedAtBar: 0,
	}
	bars := []classify.Bar{
		bar(0, "100", "100", "100", "100"),
		bar(1, "100", "105", "100", "105"),
	}
	log, err := eng.Run(RunInput{Bars: bars, SwingsByScale: map[swingstate.Scale][]SwingEntry{swingstate.ScaleS: {entry}}})
	require.NoError(t, err)

	data, err := Write(log)
	require.NoError(t, err)

	readBack, warn, err := Read(data, DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, warn)
	assert.Equal(t, log.Meta.RunID, readBack.Meta.RunID)
	assert.Equal(t, len(log.Events), len(readBack.Events))
}
