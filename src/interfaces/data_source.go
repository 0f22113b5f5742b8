package interfaces

import (
	"context"
	"sync"

	"volatility-observer/src/models"
)

// -----------------------------------------------------------------------------
// IDataSource fetches volatility series from an external provider.
// Results are keyed by currency; each point carries its series name.
// -----------------------------------------------------------------------------

type IDataSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// FetchInitialData retrieves the history (DVOL year + historical volatility) per currency.
	FetchInitialData(ctx context.Context) (map[string][]models.MVolatilityPoint, error)

	// -----------------------------------------------------------------------------

	// FetchUpdateData retrieves the latest readings per currency.
	FetchUpdateData(ctx context.Context) (map[string][]models.MVolatilityPoint, error)

	// -----------------------------------------------------------------------------

	// IsRealTime returns true if the source pushes data instead of polling
	IsRealTime() bool

	// -----------------------------------------------------------------------------

	// UpdateSymbols replaces the list of currencies being monitored
	UpdateSymbols(currencies []string) error

	// -----------------------------------------------------------------------------

	// Symbols returns the currencies being monitored
	Symbols() []string

	// -----------------------------------------------------------------------------

	// Start begins the data fetching process
	// ctx: controls the lifecycle (cancellation stops the source)
	// outputChan: channel to push data to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, outputChan chan<- map[string][]models.MVolatilityPoint, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the data fetching process.
	// Cancelling the context passed to Start has the same effect.
	Stop() error
}
