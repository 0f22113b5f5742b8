package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"

	"github.com/alitto/pond/v2"
)

// MultiSourceManager aggregates multiple IDataSource instances
type MultiSourceManager struct {
	Sources    map[string]interfaces.IDataSource
	Logger     *logger.Logger
	mu         sync.RWMutex
	outputChan chan<- map[string][]models.MVolatilityPoint // Send-only, managed by parent
	ctx        context.Context                             // Lifecycle context (derived)
	cancelFunc context.CancelFunc                          // To stop all sources
	wg         *sync.WaitGroup                             // Shared WaitGroup (ptr)
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(sources []interfaces.IDataSource, log *logger.Logger) *MultiSourceManager {
	m := &MultiSourceManager{
		Sources: make(map[string]interfaces.IDataSource),
		Logger:  log,
	}

	for _, s := range sources {
		m.Sources[s.Name()] = s
	}

	return m
}

// -----------------------------------------------------------------------------

// AddSource adds a new source and starts it if the manager is running
func (m *MultiSourceManager) AddSource(source interfaces.IDataSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.Name()
	if _, exists := m.Sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}

	m.Sources[name] = source
	m.Logger.Info("Added source: %s", name)

	if m.outputChan != nil && m.ctx != nil {
		if err := source.Start(m.ctx, m.outputChan, m.wg); err != nil {
			return fmt.Errorf("failed to start source %s: %w", name, err)
		}
		m.Logger.Info("Started source: %s", name)
	}

	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource stops and removes a source
func (m *MultiSourceManager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.Sources[name]
	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	if m.ctx != nil {
		if err := source.Stop(); err != nil {
			m.Logger.Error("Error stopping source %s: %v", name, err)
		}
	}

	delete(m.Sources, name)
	m.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (m *MultiSourceManager) GetSource(name string) (interfaces.IDataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, exists := m.Sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}
	return source, nil
}

// -----------------------------------------------------------------------------

// GetAllSources returns all sources sorted by name
func (m *MultiSourceManager) GetAllSources() []interfaces.IDataSource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]interfaces.IDataSource, 0, len(m.Sources))
	for _, s := range m.Sources {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// -----------------------------------------------------------------------------

// Start starts all sources. Each source registers itself on wg.
func (m *MultiSourceManager) Start(parentCtx context.Context, outputChan chan<- map[string][]models.MVolatilityPoint, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("MultiSourceManager is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel
	m.outputChan = outputChan
	m.wg = wg

	for _, src := range m.Sources {
		if err := src.Start(m.ctx, m.outputChan, m.wg); err != nil {
			m.Logger.Error("Failed to start source %s: %v", src.Name(), err)
			return err
		}
	}
	return nil
}

// Stop stops all sources gracefully by cancelling the internal context
func (m *MultiSourceManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil // Already stopped
	}

	m.Logger.Info("Stopping MultiSourceManager...")

	for name, src := range m.Sources {
		if err := src.Stop(); err != nil {
			m.Logger.Debug("Source %s: %v", name, err)
		}
	}
	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	m.cancelFunc = nil
	m.ctx = nil
	m.outputChan = nil

	m.Logger.Info("MultiSourceManager Stopped.")
	return nil
}

// -----------------------------------------------------------------------------

// StartSource starts a specific source by name
func (m *MultiSourceManager) StartSource(name string) error {
	m.mu.RLock()
	source, exists := m.Sources[name]
	ctx := m.ctx
	outChan := m.outputChan
	wg := m.wg
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("source %s not found", name)
	}
	if outChan == nil || ctx == nil {
		return fmt.Errorf("MultiSourceManager is not running")
	}

	return source.Start(ctx, outChan, wg)
}

// -----------------------------------------------------------------------------

// StopSource stops a specific source by name
func (m *MultiSourceManager) StopSource(name string) error {
	m.mu.RLock()
	source, exists := m.Sources[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	return source.Stop()
}

// -----------------------------------------------------------------------------

// Close releases the resources held by sources implementing io.Closer.
// Call it once the sources are stopped and their goroutines have exited.
func (m *MultiSourceManager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for name, src := range m.Sources {
		closer, ok := src.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			m.Logger.Warning("Closing source %s failed: %v", name, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------

// Name returns "MultiSourceManager"
func (m *MultiSourceManager) Name() string {
	return "MultiSourceManager"
}

// -----------------------------------------------------------------------------

// fanOut runs fetch on every source in a worker pool and merges the results
// per currency. A failing source is logged and skipped.
func (m *MultiSourceManager) fanOut(
	stage string,
	fetch func(interfaces.IDataSource) (map[string][]models.MVolatilityPoint, error),
) (map[string][]models.MVolatilityPoint, error) {
	sources := m.GetAllSources()
	results := make(map[string][]models.MVolatilityPoint)
	if len(sources) == 0 {
		return results, nil
	}

	var mu sync.Mutex
	failed := 0
	var firstErr error

	pool := pond.NewPool(len(sources))
	for _, src := range sources {
		pool.Submit(func() {
			data, err := fetch(src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.Logger.Error("Source %s failed %s fetch: %v", src.Name(), stage, err)
				failed++
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for currency, points := range data {
				results[currency] = append(results[currency], points...)
			}
		})
	}
	pool.StopAndWait()

	if failed == len(sources) {
		return nil, fmt.Errorf("all sources failed %s fetch: %w", stage, firstErr)
	}
	return results, nil
}

// -----------------------------------------------------------------------------

// FetchInitialData fans out to all sources and merges results
func (m *MultiSourceManager) FetchInitialData(ctx context.Context) (map[string][]models.MVolatilityPoint, error) {
	return m.fanOut("initial", func(s interfaces.IDataSource) (map[string][]models.MVolatilityPoint, error) {
		return s.FetchInitialData(ctx)
	})
}

// -----------------------------------------------------------------------------

// FetchUpdateData fans out to all sources for manual update trigger
func (m *MultiSourceManager) FetchUpdateData(ctx context.Context) (map[string][]models.MVolatilityPoint, error) {
	return m.fanOut("update", func(s interfaces.IDataSource) (map[string][]models.MVolatilityPoint, error) {
		return s.FetchUpdateData(ctx)
	})
}

// -----------------------------------------------------------------------------

// IsRealTime reports whether any underlying source pushes data.
func (m *MultiSourceManager) IsRealTime() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.Sources {
		if s.IsRealTime() {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) UpdateSymbols(currencies []string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, src := range m.Sources {
		if err := src.UpdateSymbols(currencies); err != nil {
			m.Logger.Error("Failed to update currencies for a source: %v", err)
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Symbols returns the union of all source currencies, sorted.
func (m *MultiSourceManager) Symbols() []string {
	seen := make(map[string]bool)
	for _, src := range m.GetAllSources() {
		for _, cur := range src.Symbols() {
			seen[cur] = true
		}
	}
	out := make([]string, 0, len(seen))
	for cur := range seen {
		out = append(out, cur)
	}
	sort.Strings(out)
	return out
}
