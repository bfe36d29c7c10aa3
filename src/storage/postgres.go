package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quote-observer/src/logger"
	"quote-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Use the executable name as schema so multiple deployments can share one
	// database without clashing.
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	// Persistent across runs: resuming depends on previously stored rows
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."quote_snapshots" (
			security_id TEXT,
			timestamp BIGINT,
			bid DOUBLE PRECISION,
			mid DOUBLE PRECISION,
			ask DOUBLE PRECISION,
			PRIMARY KEY (security_id, timestamp)
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create quote_snapshots: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."stdev_results" (
			security_id TEXT,
			timestamp BIGINT,
			bid_stdev DOUBLE PRECISION,
			mid_stdev DOUBLE PRECISION,
			ask_stdev DOUBLE PRECISION,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (security_id, timestamp)
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create stdev_results: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveQuoteSnapshotsBulk(snapshots []models.MQuoteSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."quote_snapshots" (security_id, timestamp, bid, mid, ask)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (security_id, timestamp) DO UPDATE SET
			bid = EXCLUDED.bid,
			mid = EXCLUDED.mid,
			ask = EXCLUDED.ask
	`, d.Schema)
	stmt, err := tx.Prepare(query)
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

func (d *PostgresDB) LoadQuoteSnapshots(from, to int64) ([]models.MQuoteSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT security_id, timestamp, bid, mid, ask
		FROM "%s"."quote_snapshots"
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY security_id, timestamp
	`, d.Schema)

	rows, err := d.DB.Query(query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveStdevRecordsBulk(records []models.MStdevRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."stdev_results" (security_id, timestamp, bid_stdev, mid_stdev, ask_stdev, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (security_id, timestamp) DO UPDATE SET
			bid_stdev = EXCLUDED.bid_stdev,
			mid_stdev = EXCLUDED.mid_stdev,
			ask_stdev = EXCLUDED.ask_stdev,
			created_at = EXCLUDED.created_at
	`, d.Schema)

	stmt, err := tx.Prepare(query)
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

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	d.Logger.Info("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM "%s"."quote_snapshots" WHERE timestamp < $1`, d.Schema), cutoff); err != nil {
		d.Logger.Error("Cleanup quote_snapshots error: %v", err)
	}
	if _, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM "%s"."stdev_results" WHERE timestamp < $1`, d.Schema), cutoff); err != nil {
		d.Logger.Error("Cleanup stdev_results error: %v", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
