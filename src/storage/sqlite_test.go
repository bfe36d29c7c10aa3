package storage

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-observer/src/logger"
	"quote-observer/src/models"
)

func testDB(t *testing.T) *SQLiteDB {
	t.Helper()

	cfg := &models.MConfig{
		Name: "quote-observer-test",
		Storage: models.MStorageConfig{
			DBType:            "sqlite",
			DBPath:            filepath.Join(t.TempDir(), "test.db"),
			DataRetentionDays: 90,
		},
	}

	db, err := NewSQLiteDB(cfg, logger.NewLogger("ERROR", cfg.Name))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })

	return db
}

func floatPtr(v float64) *float64 { return &v }

// -----------------------------------------------------------------------------

func TestSaveLoadQuoteSnapshots(t *testing.T) {
	db := testDB(t)

	snapshots := []models.MQuoteSnapshot{
		{SecurityID: "SEC_B", Timestamp: 1704157200, Bid: 49.75, Mid: 50, Ask: 50.25},
		{SecurityID: "SEC_A", Timestamp: 1704160800, Bid: 99.25, Mid: 100.5, Ask: 101.75},
		{SecurityID: "SEC_A", Timestamp: 1704157200, Bid: 99.5, Mid: 100, Ask: 100.5},
	}
	require.NoError(t, db.SaveQuoteSnapshotsBulk(snapshots))

	loaded, err := db.LoadQuoteSnapshots(1704157200, 1704160800)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	// Ordered by (security_id, timestamp)
	assert.Equal(t, "SEC_A", loaded[0].SecurityID)
	assert.Equal(t, int64(1704157200), loaded[0].Timestamp)
	assert.Equal(t, 100.0, loaded[0].Mid)
	assert.Equal(t, "SEC_A", loaded[1].SecurityID)
	assert.Equal(t, int64(1704160800), loaded[1].Timestamp)
	assert.Equal(t, "SEC_B", loaded[2].SecurityID)
}

func TestLoadQuoteSnapshotsRangeFilter(t *testing.T) {
	db := testDB(t)

	snapshots := []models.MQuoteSnapshot{
		{SecurityID: "SEC_A", Timestamp: 1704153600, Mid: 100, Bid: math.NaN(), Ask: math.NaN()},
		{SecurityID: "SEC_A", Timestamp: 1704157200, Mid: 101, Bid: math.NaN(), Ask: math.NaN()},
		{SecurityID: "SEC_A", Timestamp: 1704160800, Mid: 102, Bid: math.NaN(), Ask: math.NaN()},
	}
	require.NoError(t, db.SaveQuoteSnapshotsBulk(snapshots))

	loaded, err := db.LoadQuoteSnapshots(1704157200, 1704157200)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 101.0, loaded[0].Mid)
}

func TestMissingFieldsRoundtripAsNaN(t *testing.T) {
	db := testDB(t)

	snapshots := []models.MQuoteSnapshot{
		{SecurityID: "SEC_A", Timestamp: 1704157200, Bid: math.NaN(), Mid: 100, Ask: math.Inf(1)},
	}
	require.NoError(t, db.SaveQuoteSnapshotsBulk(snapshots))

	loaded, err := db.LoadQuoteSnapshots(0, 1704160800)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	assert.True(t, math.IsNaN(loaded[0].Bid))
	assert.Equal(t, 100.0, loaded[0].Mid)
	// Inf is stored as NULL and comes back as NaN
	assert.True(t, math.IsNaN(loaded[0].Ask))
}

func TestSaveQuoteSnapshotsUpsert(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SaveQuoteSnapshotsBulk([]models.MQuoteSnapshot{
		{SecurityID: "SEC_A", Timestamp: 1704157200, Bid: 99.5, Mid: 100, Ask: 100.5},
	}))
	require.NoError(t, db.SaveQuoteSnapshotsBulk([]models.MQuoteSnapshot{
		{SecurityID: "SEC_A", Timestamp: 1704157200, Bid: 99.75, Mid: 100.25, Ask: 100.75},
	}))

	loaded, err := db.LoadQuoteSnapshots(0, 1704160800)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 100.25, loaded[0].Mid)
}

// -----------------------------------------------------------------------------

func TestSaveStdevRecordsBulk(t *testing.T) {
	db := testDB(t)

	records := []models.MStdevRecord{
		{SecurityID: "SEC_A", Timestamp: 1704157200, BidStdev: floatPtr(0.5), MidStdev: nil, AskStdev: floatPtr(0.75)},
	}
	require.NoError(t, db.SaveStdevRecordsBulk(records))

	var bid, mid, ask interface{}
	row := db.DB.QueryRow("SELECT bid_stdev, mid_stdev, ask_stdev FROM stdev_results WHERE security_id = ? AND timestamp = ?", "SEC_A", int64(1704157200))
	require.NoError(t, row.Scan(&bid, &mid, &ask))

	assert.Equal(t, 0.5, bid)
	assert.Nil(t, mid)
	assert.Equal(t, 0.75, ask)

	// Re-running the same range replaces, not duplicates
	records[0].MidStdev = floatPtr(0.25)
	require.NoError(t, db.SaveStdevRecordsBulk(records))

	var count int
	require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM stdev_results").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, db.DB.QueryRow("SELECT mid_stdev FROM stdev_results").Scan(&mid))
	assert.Equal(t, 0.25, mid)
}

func TestSaveEmptySlicesAreNoOps(t *testing.T) {
	db := testDB(t)

	assert.NoError(t, db.SaveQuoteSnapshotsBulk(nil))
	assert.NoError(t, db.SaveStdevRecordsBulk(nil))
}

// -----------------------------------------------------------------------------

func TestCleanupOldData(t *testing.T) {
	db := testDB(t)

	// One ancient snapshot, one recent enough to survive the retention window
	require.NoError(t, db.SaveQuoteSnapshotsBulk([]models.MQuoteSnapshot{
		{SecurityID: "SEC_A", Timestamp: 1, Bid: 99.5, Mid: 100, Ask: 100.5},
		{SecurityID: "SEC_A", Timestamp: 1704157200, Bid: 99.5, Mid: 100, Ask: 100.5},
	}))
	require.NoError(t, db.SaveStdevRecordsBulk([]models.MStdevRecord{
		{SecurityID: "SEC_A", Timestamp: 1, MidStdev: floatPtr(0)},
	}))

	// Ten years of retention keeps the 2024 row and drops the epoch one
	db.Config.Storage.DataRetentionDays = 3650
	require.NoError(t, db.CleanupOldData())

	var snapCount, resultCount int
	require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM quote_snapshots").Scan(&snapCount))
	require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM stdev_results").Scan(&resultCount))
	assert.Equal(t, 1, snapCount)
	assert.Equal(t, 0, resultCount)
}
