package interfaces

import "quote-observer/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defines the interface for sharing batch results with
// external consumers (REST + push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes a result payload to connected listeners
	Broadcast(payload *models.MLatestData)

	// -----------------------------------------------------------------------------
	// UpdateAllDatas updates the internal state without broadcasting
	UpdateAllDatas(payload *models.MLatestData)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
