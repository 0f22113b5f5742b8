package interfaces

// -----------------------------------------------------------------------------
// ICurrencyProvider reports the currencies being monitored right now.
// Every IDataSource satisfies it.
// -----------------------------------------------------------------------------

type ICurrencyProvider interface {
	Symbols() []string
}
