package interfaces

import "quote-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveQuoteSnapshotsBulk inserts a batch of quote snapshots.
	SaveQuoteSnapshotsBulk(snapshots []models.MQuoteSnapshot) error

	// -----------------------------------------------------------------------------

	// LoadQuoteSnapshots returns snapshots with timestamps in [from, to],
	// ordered by (security_id, timestamp). Absent fields come back as NaN.
	LoadQuoteSnapshots(from, to int64) ([]models.MQuoteSnapshot, error)

	// -----------------------------------------------------------------------------

	// SaveStdevRecordsBulk upserts a batch of computed stdev records.
	SaveStdevRecordsBulk(records []models.MStdevRecord) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
