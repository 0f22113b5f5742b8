package interfaces

import "volatility-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize opens the connection and creates the schema.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveVolatilityPointsBulk upserts a batch of series readings.
	SaveVolatilityPointsBulk(points []models.MVolatilityPoint) error

	// -----------------------------------------------------------------------------

	// SaveSnapshots upserts the latest snapshot per currency.
	SaveSnapshots(snapshots []models.MVolatilitySnapshot) error

	// -----------------------------------------------------------------------------

	// LoadVolatilityPoints returns a series ordered by timestamp, starting at sinceUnix.
	LoadVolatilityPoints(currency, series string, sinceUnix int64) ([]models.MVolatilityPoint, error)

	// -----------------------------------------------------------------------------

	// RegisterCurrencies records which currencies a source tracks.
	RegisterCurrencies(sourceName string, currencies []string) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
