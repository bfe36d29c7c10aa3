package models

import "time"

// MStdevRecord is one emitted result row: the rolling population standard
// deviations for a security at a snapshot timestamp. A nil field means no
// statistic was available for that field at that time.
type MStdevRecord struct {
	SecurityID string    `json:"security_id"`
	Timestamp  int64     `json:"timestamp"`
	BidStdev   *float64  `json:"bid_stdev"`
	MidStdev   *float64  `json:"mid_stdev"`
	AskStdev   *float64  `json:"ask_stdev"`
	CreatedAt  time.Time `json:"created_at"`
}
