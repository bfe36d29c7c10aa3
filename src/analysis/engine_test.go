package analysis

import (
	"math"
	"testing"
	"time"

	"quote-observer/src/logger"
	"quote-observer/src/models"
	"quote-observer/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hour = int64(3600)

// base is an arbitrary hour-aligned timestamp (2024-01-02 00:00 UTC)
const base = int64(1704153600)

func testConfig(windowSize int) *models.MConfig {
	return &models.MConfig{
		Engine: models.MEngineConfig{
			WindowSize:         windowSize,
			CadenceSeconds:     hour,
			MinPeriods:         1,
			MissingValuePolicy: models.MissingValueCarry,
		},
	}
}

func testEngine(cfg *models.MConfig) *Engine {
	return NewEngine(cfg, nil, 0, logger.NewLogger("ERROR", "test"))
}

func snap(id string, hoursFromBase int64, bid, mid, ask float64) models.MQuoteSnapshot {
	return models.MQuoteSnapshot{
		SecurityID: id,
		Timestamp:  base + hoursFromBase*hour,
		Bid:        bid,
		Mid:        mid,
		Ask:        ask,
	}
}

// -----------------------------------------------------------------------------

func TestEngineConstantValuesZeroStdev(t *testing.T) {
	// Window size 3, hours 0..3 all 10: stdev stays 0, including after the
	// oldest value is evicted at hour 3.
	e := testEngine(testConfig(3))

	snaps := []models.MQuoteSnapshot{
		snap("SEC1", 0, 10, 10, 10),
		snap("SEC1", 1, 10, 10, 10),
		snap("SEC1", 2, 10, 10, 10),
		snap("SEC1", 3, 10, 10, 10),
	}

	results := e.Process(snaps, base, base+10*hour)
	require.Len(t, results, 4)

	for _, r := range results {
		require.NotNil(t, r.MidStdev)
		assert.Equal(t, 0.0, *r.MidStdev)
	}

	assert.Equal(t, 3, e.States["SEC1"].Mid.Len())
}

func TestEngineGapResetsWindow(t *testing.T) {
	// Hours 0,1,2 = 10, then hour 5 (gap > tolerance) = 20: the window must
	// reset to [20], not compute over [10,10,20].
	e := testEngine(testConfig(3))

	snaps := []models.MQuoteSnapshot{
		snap("SEC1", 0, 10, 10, 10),
		snap("SEC1", 1, 10, 10, 10),
		snap("SEC1", 2, 10, 10, 10),
		snap("SEC1", 5, 20, 20, 20),
	}

	results := e.Process(snaps, base, base+10*hour)
	require.Len(t, results, 4)

	last := results[3]
	require.NotNil(t, last.MidStdev)
	assert.Equal(t, 0.0, *last.MidStdev)

	state := e.States["SEC1"]
	assert.Equal(t, 1, state.Bid.Len())
	assert.Equal(t, 1, state.Mid.Len())
	assert.Equal(t, 1, state.Ask.Len())
	assert.Equal(t, []float64{20}, state.Mid.Values())
	assert.Equal(t, base+5*hour, state.LastTimestamp)
	assert.Equal(t, 1, e.Metrics.GapResets)
}

func TestEngineMissingFieldCarry(t *testing.T) {
	// Missing mid at hour 2 leaves mid_stdev equal to the hour-1 value while
	// bid/ask update normally.
	e := testEngine(testConfig(3))

	snaps := []models.MQuoteSnapshot{
		snap("SEC1", 0, 10, 10, 10),
		snap("SEC1", 1, 20, 20, 20),
		snap("SEC1", 2, 30, math.NaN(), 30),
	}

	results := e.Process(snaps, base, base+10*hour)
	require.Len(t, results, 3)

	atHour1 := results[1]
	atHour2 := results[2]

	require.NotNil(t, atHour1.MidStdev)
	require.NotNil(t, atHour2.MidStdev)
	assert.Equal(t, *atHour1.MidStdev, *atHour2.MidStdev, "mid window must be untouched by the missing value")

	// Bid got the third value, so its stdev moved on
	require.NotNil(t, atHour2.BidStdev)
	assert.NotEqual(t, *atHour1.BidStdev, *atHour2.BidStdev)

	assert.Equal(t, 2, e.States["SEC1"].Mid.Len())
	assert.Equal(t, 3, e.States["SEC1"].Bid.Len())
}

func TestEngineMissingFieldOmit(t *testing.T) {
	cfg := testConfig(3)
	cfg.Engine.MissingValuePolicy = models.MissingValueOmit
	e := testEngine(cfg)

	snaps := []models.MQuoteSnapshot{
		snap("SEC1", 0, 10, 10, 10),
		snap("SEC1", 1, 20, math.NaN(), 20),
	}

	results := e.Process(snaps, base, base+10*hour)
	require.Len(t, results, 2)

	assert.Nil(t, results[1].MidStdev)
	assert.NotNil(t, results[1].BidStdev)
	assert.NotNil(t, results[1].AskStdev)
}

func TestEngineAllFieldsMissingEmitsNothing(t *testing.T) {
	e := testEngine(testConfig(3))

	snaps := []models.MQuoteSnapshot{
		snap("SEC1", 0, math.NaN(), math.NaN(), math.NaN()),
	}

	results := e.Process(snaps, base, base+10*hour)
	assert.Empty(t, results)
}

func TestEngineInsaneValuesTreatedAsAbsent(t *testing.T) {
	e := testEngine(testConfig(3))

	snaps := []models.MQuoteSnapshot{
		snap("SEC1", 0, 10, math.Inf(1), 1e16),
	}

	results := e.Process(snaps, base, base+10*hour)
	require.Len(t, results, 1)
	assert.NotNil(t, results[0].BidStdev)
	assert.Nil(t, results[0].MidStdev)
	assert.Nil(t, results[0].AskStdev)
}

func TestEngineWarmupDoesNotEmit(t *testing.T) {
	// Snapshots before the range seed the windows but produce no records
	e := testEngine(testConfig(3))

	snaps := []models.MQuoteSnapshot{
		snap("SEC1", 0, 10, 10, 10),
		snap("SEC1", 1, 12, 12, 12),
		snap("SEC1", 2, 14, 14, 14),
	}

	results := e.Process(snaps, base+2*hour, base+10*hour)
	require.Len(t, results, 1)
	assert.Equal(t, base+2*hour, results[0].Timestamp)

	// The emitted stdev reflects the warmed-up window, not a cold start
	require.NotNil(t, results[0].MidStdev)
	assert.Greater(t, *results[0].MidStdev, 0.0)
	assert.Equal(t, 3, e.States["SEC1"].Mid.Len())
}

func TestEngineMinPeriodsThreshold(t *testing.T) {
	cfg := testConfig(5)
	cfg.Engine.MinPeriods = 3
	e := testEngine(cfg)

	snaps := []models.MQuoteSnapshot{
		snap("SEC1", 0, 10, 10, 10),
		snap("SEC1", 1, 11, 11, 11),
		snap("SEC1", 2, 12, 12, 12),
	}

	results := e.Process(snaps, base, base+10*hour)

	// Hours 0 and 1 have fewer than 3 samples in every window
	require.Len(t, results, 1)
	assert.Equal(t, base+2*hour, results[0].Timestamp)
}

func TestEngineMultipleSecuritiesOrderPreserved(t *testing.T) {
	e := testEngine(testConfig(3))

	snaps := []models.MQuoteSnapshot{
		snap("AAA", 0, 10, 10, 10),
		snap("AAA", 1, 11, 11, 11),
		snap("BBB", 0, 50, 50, 50),
		snap("BBB", 1, 51, 51, 51),
	}

	results := e.Process(snaps, base, base+10*hour)
	require.Len(t, results, 4)

	assert.Equal(t, "AAA", results[0].SecurityID)
	assert.Equal(t, "AAA", results[1].SecurityID)
	assert.Equal(t, "BBB", results[2].SecurityID)
	assert.Equal(t, "BBB", results[3].SecurityID)
	assert.Equal(t, 2, len(e.States))

	// Gaps are judged per security: BBB's hour 0 right after AAA's hour 1 is
	// not a gap
	assert.Equal(t, 0, e.Metrics.GapResets)
}

func TestEngineHighWaterMark(t *testing.T) {
	e := testEngine(testConfig(3))

	snaps := []models.MQuoteSnapshot{
		snap("SEC1", 0, 10, 10, 10),
		snap("SEC1", 1, 11, 11, 11),
	}
	e.Process(snaps, base, base+10*hour)

	assert.Equal(t, base+hour, e.HighWaterMark)
}

func TestEngineLookbackOverlapDoesNotDuplicate(t *testing.T) {
	// First batch covers hours 0..2. The next run's lookback re-feeds those
	// hours into the resumed state; they are already counted in the windows
	// and must be skipped, not pushed again.
	cfg := testConfig(5)
	first := testEngine(cfg)
	first.Process([]models.MQuoteSnapshot{
		snap("SEC1", 0, 10, 100, 10),
		snap("SEC1", 1, 10, 103, 10),
		snap("SEC1", 2, 10, 106, 10),
	}, base, base+2*hour)

	second := NewEngine(cfg, first.States, first.HighWaterMark, logger.NewLogger("ERROR", "test"))
	results := second.Process([]models.MQuoteSnapshot{
		snap("SEC1", 0, 10, 100, 10),
		snap("SEC1", 1, 10, 103, 10),
		snap("SEC1", 2, 10, 106, 10),
		snap("SEC1", 3, 10, 109, 10),
		snap("SEC1", 4, 10, 112, 10),
	}, base+3*hour, base+4*hour)

	require.Len(t, results, 2)
	assert.Equal(t, []float64{100, 103, 106, 109, 112}, second.States["SEC1"].Mid.Values())
	assert.Equal(t, 3, second.Metrics.SnapshotsSkipped)
	assert.Equal(t, 0, second.Metrics.GapResets)
	assert.Equal(t, base+4*hour, second.HighWaterMark)
}

func TestEngineCalendarForgivesClosedMarket(t *testing.T) {
	nyLoc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	e := testEngine(testConfig(5))
	e.calendar = &utils.TradingCalendar{Fallback: true, Timezone: nyLoc}

	friday := time.Date(2024, 4, 5, 15, 0, 0, 0, nyLoc).Unix()  // open hour
	monday := time.Date(2024, 4, 8, 10, 0, 0, 0, nyLoc).Unix()  // open hour
	intraGap := time.Date(2024, 4, 8, 14, 0, 0, 0, nyLoc).Unix() // 4h hole across open hours

	snaps := []models.MQuoteSnapshot{
		{SecurityID: "SEC1", Timestamp: friday, Bid: 10, Mid: 10, Ask: 10},
		{SecurityID: "SEC1", Timestamp: monday, Bid: 11, Mid: 11, Ask: 11},
		{SecurityID: "SEC1", Timestamp: intraGap, Bid: 12, Mid: 12, Ask: 12},
	}

	e.Process(snaps, friday, intraGap)

	// Weekend gap forgiven, intraday hole across open hours not
	assert.Equal(t, 1, e.Metrics.GapResets)
	assert.Equal(t, 1, e.States["SEC1"].Mid.Len())
}
