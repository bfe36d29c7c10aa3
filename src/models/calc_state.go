package models

import "time"

// -----------------------------------------------------------------------------
// Persisted calculation state (one file per engine instance)
// -----------------------------------------------------------------------------

// MWindowState is the serialized form of one rolling window. The running sums
// are stored alongside the values so a loader can cross-check them against a
// from-scratch recomputation and reject a corrupt file.
type MWindowState struct {
	Values     []float64 `json:"values"`
	Sum        float64   `json:"sum"`
	SumSquares float64   `json:"sum_squares"`
}

// MEntityState bundles the three per-field windows and the last timestamp seen
// for one security.
type MEntityState struct {
	Bid           MWindowState `json:"bid"`
	Mid           MWindowState `json:"mid"`
	Ask           MWindowState `json:"ask"`
	LastTimestamp int64        `json:"last_timestamp"`
}

// MCalcState is the on-disk layout of a full calculation state file.
type MCalcState struct {
	Version       int                     `json:"version"`
	WindowSize    int                     `json:"window_size"`
	HighWaterMark int64                   `json:"high_water_mark"`
	SavedAt       time.Time               `json:"saved_at"`
	Entities      map[string]MEntityState `json:"entities"`
}
