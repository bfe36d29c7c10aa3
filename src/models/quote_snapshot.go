package models

// MQuoteSnapshot represents one hourly bid/mid/ask observation for a security.
// Absent fields are carried as NaN so the engine can skip them per field.
type MQuoteSnapshot struct {
	SecurityID string  `json:"security_id"`
	Timestamp  int64   `json:"timestamp"`
	Bid        float64 `json:"bid"`
	Mid        float64 `json:"mid"`
	Ask        float64 `json:"ask"`
}
