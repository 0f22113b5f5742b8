package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

type MLatestData struct {
	Type              string                         `json:"type"` // "INITIAL" or "UPDATE"
	Snapshots         map[string]MVolatilitySnapshot `json:"snapshots"`
	Timestamp         int64                          `json:"timestamp"`
	ProcessingMetrics MProcessingMetrics             `json:"processing_metrics"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command    string   `json:"command"`
	Currencies []string `json:"currencies"`
}
