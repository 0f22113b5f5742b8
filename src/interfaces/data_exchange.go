package interfaces

import "volatility-observer/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger shares analysis results with external consumers (Server/Push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes a state update to connected listeners.
	Broadcast(state *models.MLatestData)

	// -----------------------------------------------------------------------------
	// UpdateState merges a state update without broadcasting.
	UpdateState(state *models.MLatestData)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
