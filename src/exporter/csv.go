package exporter

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"quote-observer/src/models"
)

// -----------------------------------------------------------------------------
// CSV export of stdev records / CSV ingest of quote snapshots
// -----------------------------------------------------------------------------

// WriteStdevCSV writes result records to a CSV file, sorted by
// (security_id, timestamp). Fields with no statistic become empty cells.
func WriteStdevCSV(records []models.MStdevRecord, outputPath string) error {
	if len(records) == 0 {
		return fmt.Errorf("no records to export")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file '%s': %w", outputPath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"security_id", "timestamp", "bid_stdev", "mid_stdev", "ask_stdev"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Sort for deterministic output
	sorted := make([]models.MStdevRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SecurityID == sorted[j].SecurityID {
			return sorted[i].Timestamp < sorted[j].Timestamp
		}
		return sorted[i].SecurityID < sorted[j].SecurityID
	})

	for _, r := range sorted {
		row := []string{
			r.SecurityID,
			time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339),
			formatStdev(r.BidStdev),
			formatStdev(r.MidStdev),
			formatStdev(r.AskStdev),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record for %s: %w", r.SecurityID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// -----------------------------------------------------------------------------

// ReadSnapshotsCSV loads quote snapshots from a CSV file with header
// security_id,timestamp,bid,mid,ask. Timestamps are RFC3339 or unix seconds;
// empty price cells become NaN (absent).
func ReadSnapshotsCSV(inputPath string) ([]models.MQuoteSnapshot, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file '%s': %w", inputPath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file '%s': %w", inputPath, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file '%s' has no data rows", inputPath)
	}

	var snapshots []models.MQuoteSnapshot
	for i, row := range rows[1:] {
		if len(row) != 5 {
			return nil, fmt.Errorf("row %d: expected 5 columns, got %d", i+2, len(row))
		}

		ts, err := parseTimestamp(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}

		snap := models.MQuoteSnapshot{
			SecurityID: row[0],
			Timestamp:  ts,
		}
		if snap.Bid, err = parsePrice(row[2]); err != nil {
			return nil, fmt.Errorf("row %d bid: %w", i+2, err)
		}
		if snap.Mid, err = parsePrice(row[3]); err != nil {
			return nil, fmt.Errorf("row %d mid: %w", i+2, err)
		}
		if snap.Ask, err = parsePrice(row[4]); err != nil {
			return nil, fmt.Errorf("row %d ask: %w", i+2, err)
		}

		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}

// -----------------------------------------------------------------------------

func formatStdev(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// -----------------------------------------------------------------------------

func parseTimestamp(s string) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unix, nil
	}
	return 0, fmt.Errorf("unparseable timestamp '%s'", s)
}

// -----------------------------------------------------------------------------

func parsePrice(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
