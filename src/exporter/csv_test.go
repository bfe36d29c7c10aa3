package exporter

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-observer/src/models"
)

func floatPtr(v float64) *float64 { return &v }

// -----------------------------------------------------------------------------

func TestWriteStdevCSV(t *testing.T) {
	records := []models.MStdevRecord{
		{SecurityID: "SEC_B", Timestamp: 1704157200, BidStdev: floatPtr(0.5), MidStdev: floatPtr(0.25), AskStdev: floatPtr(0.75)},
		{SecurityID: "SEC_A", Timestamp: 1704160800, BidStdev: floatPtr(1.5), MidStdev: nil, AskStdev: floatPtr(2)},
		{SecurityID: "SEC_A", Timestamp: 1704157200, BidStdev: nil, MidStdev: floatPtr(1), AskStdev: nil},
	}

	path := filepath.Join(t.TempDir(), "out", "stdev.csv")
	require.NoError(t, WriteStdevCSV(records, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "security_id,timestamp,bid_stdev,mid_stdev,ask_stdev", lines[0])

	// Sorted by security then timestamp; nil statistics are empty cells.
	assert.Equal(t, "SEC_A,2024-01-02T01:00:00Z,,1,", lines[1])
	assert.Equal(t, "SEC_A,2024-01-02T02:00:00Z,1.5,,2", lines[2])
	assert.Equal(t, "SEC_B,2024-01-02T01:00:00Z,0.5,0.25,0.75", lines[3])
}

func TestWriteStdevCSVEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdev.csv")
	err := WriteStdevCSV(nil, path)
	assert.Error(t, err)
	assert.NoFileExists(t, path)
}

// -----------------------------------------------------------------------------

func TestReadSnapshotsCSV(t *testing.T) {
	content := strings.Join([]string{
		"security_id,timestamp,bid,mid,ask",
		"SEC_A,2024-01-02T01:00:00Z,99.5,100,100.5",
		"SEC_A,1704160800,,101,",
		"SEC_B,2024-01-02T01:00:00Z,49.75,50,50.25",
	}, "\n")

	path := filepath.Join(t.TempDir(), "snapshots.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	snaps, err := ReadSnapshotsCSV(path)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	assert.Equal(t, "SEC_A", snaps[0].SecurityID)
	assert.Equal(t, int64(1704157200), snaps[0].Timestamp)
	assert.Equal(t, 99.5, snaps[0].Bid)
	assert.Equal(t, 100.0, snaps[0].Mid)
	assert.Equal(t, 100.5, snaps[0].Ask)

	// Unix-seconds timestamp and empty price cells
	assert.Equal(t, int64(1704160800), snaps[1].Timestamp)
	assert.True(t, math.IsNaN(snaps[1].Bid))
	assert.Equal(t, 101.0, snaps[1].Mid)
	assert.True(t, math.IsNaN(snaps[1].Ask))
}

func TestReadSnapshotsCSVRejectsBadRows(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no data rows", "security_id,timestamp,bid,mid,ask"},
		{"column count", "security_id,timestamp,bid,mid,ask\nSEC_A,1704157200,100"},
		{"bad timestamp", "security_id,timestamp,bid,mid,ask\nSEC_A,yesterday,99.5,100,100.5"},
		{"bad price", "security_id,timestamp,bid,mid,ask\nSEC_A,1704157200,99.5,hundred,100.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.csv")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0644))
			_, err := ReadSnapshotsCSV(path)
			assert.Error(t, err)
		})
	}
}

// -----------------------------------------------------------------------------

func TestWriteReadTimestampRoundtrip(t *testing.T) {
	ts := time.Date(2024, 4, 8, 14, 0, 0, 0, time.UTC).Unix()
	records := []models.MStdevRecord{
		{SecurityID: "SEC_A", Timestamp: ts, MidStdev: floatPtr(0.125)},
	}

	path := filepath.Join(t.TempDir(), "stdev.csv")
	require.NoError(t, WriteStdevCSV(records, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	parsed, err := parseTimestamp(strings.Split(lines[1], ",")[1])
	require.NoError(t, err)
	assert.Equal(t, ts, parsed)
}
