package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

type MLatestData struct {
	Type              string                  `json:"type"` // "INITIAL" or "UPDATE"
	Results           map[string]MStdevRecord `json:"results"` // latest record per security
	RangeStart        int64                   `json:"range_start"`
	RangeEnd          int64                   `json:"range_end"`
	Timestamp         int64                   `json:"timestamp"`
	ProcessingMetrics MProcessingMetrics      `json:"processing_metrics"`
}
