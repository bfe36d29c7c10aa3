package models

// MProcessingMetrics represents the performance counters for one batch run.
type MProcessingMetrics struct {
	ProcessTimeSeconds float64 `json:"process_time_seconds"`
	SnapshotsIn        int     `json:"snapshots_in"`
	SnapshotsSkipped   int     `json:"snapshots_skipped"`
	RecordsEmitted     int     `json:"records_emitted"`
	GapResets          int     `json:"gap_resets"`
	SecuritiesTracked  int     `json:"securities_tracked"`
}
