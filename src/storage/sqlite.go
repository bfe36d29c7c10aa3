package storage

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"quote-observer/src/logger"
	"quote-observer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// Tables survive across runs: the whole point of the persisted state is
	// resuming over previously stored snapshots.
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS quote_snapshots (
			security_id TEXT,
			timestamp INTEGER,
			bid REAL,
			mid REAL,
			ask REAL,
			PRIMARY KEY (security_id, timestamp)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create quote_snapshots: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS stdev_results (
			security_id TEXT,
			timestamp INTEGER,
			bid_stdev REAL,
			mid_stdev REAL,
			ask_stdev REAL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (security_id, timestamp)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create stdev_results: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveQuoteSnapshotsBulk(snapshots []models.MQuoteSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO quote_snapshots (security_id, timestamp, bid, mid, ask)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (security_id, timestamp) DO UPDATE SET
			bid = excluded.bid,
			mid = excluded.mid,
			ask = excluded.ask
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range snapshots {
		_, err := stmt.Exec(s.SecurityID, s.Timestamp, nullableField(s.Bid), nullableField(s.Mid), nullableField(s.Ask))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadQuoteSnapshots(from, to int64) ([]models.MQuoteSnapshot, error) {
	rows, err := d.DB.Query(`
		SELECT security_id, timestamp, bid, mid, ask
		FROM quote_snapshots
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY security_id, timestamp
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveStdevRecordsBulk(records []models.MStdevRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stdev_results (security_id, timestamp, bid_stdev, mid_stdev, ask_stdev, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (security_id, timestamp) DO UPDATE SET
			bid_stdev = excluded.bid_stdev,
			mid_stdev = excluded.mid_stdev,
			ask_stdev = excluded.ask_stdev,
			created_at = excluded.created_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(r.SecurityID, r.Timestamp, r.BidStdev, r.MidStdev, r.AskStdev, time.Now().UTC())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	d.Logger.Info("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec("DELETE FROM quote_snapshots WHERE timestamp < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup quote_snapshots error: %v", err)
	}
	if _, err := d.DB.Exec("DELETE FROM stdev_results WHERE timestamp < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup stdev_results error: %v", err)
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

// nullableField maps an absent (NaN/Inf) field value to SQL NULL
func nullableField(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// -----------------------------------------------------------------------------

// scanSnapshots reads snapshot rows, mapping NULL fields back to NaN
func scanSnapshots(rows *sql.Rows) ([]models.MQuoteSnapshot, error) {
	var snapshots []models.MQuoteSnapshot

	for rows.Next() {
		var s models.MQuoteSnapshot
		var bid, mid, ask sql.NullFloat64

		if err := rows.Scan(&s.SecurityID, &s.Timestamp, &bid, &mid, &ask); err != nil {
			return nil, err
		}

		s.Bid = floatOrNaN(bid)
		s.Mid = floatOrNaN(mid)
		s.Ask = floatOrNaN(ask)
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// -----------------------------------------------------------------------------

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
