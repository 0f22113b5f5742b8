package deribit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"
	"volatility-observer/src/utils"

	"github.com/alitto/pond/v2"
)

type DeribitSource struct {
	Config           *models.MConfig
	SourceConfig     models.MSourceConfig
	currencies       atomic.Value // Stores []string safely
	Client           *Client
	Logger           *logger.Logger
	Scheduler        *utils.SettlementScheduler
	LastTimestamps   map[string]int64 // keyed by models.SeriesKey
	lastTimestampsMu sync.RWMutex
	cancelFunc       context.CancelFunc
	ctx              context.Context
	outputChan       chan<- map[string][]models.MVolatilityPoint
	isRunning        atomic.Bool
	mu               sync.Mutex
}

// -----------------------------------------------------------------------------

func NewDeribitSource(cfg *models.MConfig, sourceCfg models.MSourceConfig, netMgr interfaces.INetworkManager) *DeribitSource {
	log := logger.NewLogger(cfg, "DeribitSource-"+sourceCfg.Name)
	s := &DeribitSource{
		Config:         cfg,
		SourceConfig:   sourceCfg,
		Client:         NewClient(sourceCfg.BaseURL, netMgr, cfg.Network.ConcurrentRequests, log),
		Logger:         log,
		Scheduler:      utils.NewSettlementScheduler(logger.NewLogger(cfg, "Settlement-"+sourceCfg.Name)),
		LastTimestamps: make(map[string]int64),
	}
	s.currencies.Store(append([]string(nil), sourceCfg.Currencies...))
	return s
}

// -----------------------------------------------------------------------------

func (s *DeribitSource) Name() string {
	return s.SourceConfig.Name
}

// -----------------------------------------------------------------------------

// IsRealTime returns false: Deribit volatility endpoints are polled.
func (s *DeribitSource) IsRealTime() bool {
	return false
}

// -----------------------------------------------------------------------------

// FetchInitialData fetches the DVOL year and historical volatility per currency.
func (s *DeribitSource) FetchInitialData(ctx context.Context) (map[string][]models.MVolatilityPoint, error) {
	data, err := s.fetchBatch(ctx, s.Symbols(), func(currency string) ([]models.MVolatilityPoint, error) {
		dvol, err := s.Client.GetFullYearDvol(ctx, currency)
		if err != nil {
			return nil, err
		}
		hv, err := s.Client.FetchHistoricalVolatility(ctx, currency, s.SourceConfig.Resolution)
		if err != nil {
			return nil, err
		}
		return append(dvol, hv...), nil
	})
	if err != nil {
		return nil, err
	}

	s.rememberTimestamps(data)
	s.Scheduler.MarkRefreshed()
	return data, nil
}

// -----------------------------------------------------------------------------

// FetchUpdateData fetches the live DVOL index per currency.
func (s *DeribitSource) FetchUpdateData(ctx context.Context) (map[string][]models.MVolatilityPoint, error) {
	return s.fetchBatch(ctx, s.Symbols(), func(currency string) ([]models.MVolatilityPoint, error) {
		value, err := s.Client.FetchCurrentDvol(ctx, currency)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		return []models.MVolatilityPoint{{
			Currency:  currency,
			Series:    models.SeriesDvolIndex,
			Timestamp: now.Unix(),
			Date:      models.PointDate(models.SeriesDvolIndex, now.Unix()),
			Value:     value,
			CreatedAt: now,
		}}, nil
	})
}

// -----------------------------------------------------------------------------

// fetchBatch processes currencies concurrently
func (s *DeribitSource) fetchBatch(
	ctx context.Context,
	currencies []string,
	fetchFunc func(string) ([]models.MVolatilityPoint, error),
) (map[string][]models.MVolatilityPoint, error) {
	if len(currencies) == 0 {
		return make(map[string][]models.MVolatilityPoint), nil
	}

	results := make(map[string][]models.MVolatilityPoint)
	var mu sync.Mutex
	errs := make([]error, 0, len(currencies))

	limit := s.Config.Network.ConcurrentRequests
	if limit <= 0 {
		limit = 1
	}
	// Distinct from the client page pool, which these tasks submit into
	pool := pond.NewPool(limit)

	for _, currency := range currencies {
		pool.Submit(func() {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}

			data, err := fetchFunc(currency)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.Logger.Info("Error fetching %s: %v", currency, err)
				errs = append(errs, err)
				return
			}
			if data != nil {
				results[currency] = data
			}
		})
	}

	pool.StopAndWait()

	s.Logger.Info("Deribit: Fetched %d/%d currencies successfully", len(results), len(currencies))

	// Return errors if all failed, otherwise return results
	if len(results) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all fetches failed: %w", errs[0])
	}

	return results, nil
}

// -----------------------------------------------------------------------------

func (s *DeribitSource) rememberTimestamps(data map[string][]models.MVolatilityPoint) {
	s.lastTimestampsMu.Lock()
	defer s.lastTimestampsMu.Unlock()

	for _, points := range data {
		for _, p := range points {
			key := models.SeriesKey(p.Currency, p.Series)
			if p.Timestamp > s.LastTimestamps[key] {
				s.LastTimestamps[key] = p.Timestamp
			}
		}
	}
}

// -----------------------------------------------------------------------------

// freshPoints drops points not newer than the last pushed point of their series.
func freshPoints(data map[string][]models.MVolatilityPoint, last map[string]int64) map[string][]models.MVolatilityPoint {
	valid := make(map[string][]models.MVolatilityPoint)
	for currency, points := range data {
		var fresh []models.MVolatilityPoint
		for _, p := range points {
			key := models.SeriesKey(p.Currency, p.Series)
			if last[key] == 0 || p.Timestamp > last[key] {
				fresh = append(fresh, p)
			}
		}
		for _, p := range fresh {
			key := models.SeriesKey(p.Currency, p.Series)
			if p.Timestamp > last[key] {
				last[key] = p.Timestamp
			}
		}
		if len(fresh) > 0 {
			valid[currency] = fresh
		}
	}
	return valid
}

// -----------------------------------------------------------------------------

// Start begins the polling loop
func (s *DeribitSource) Start(parentCtx context.Context, outputChan chan<- map[string][]models.MVolatilityPoint, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.Name())
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.ctx = ctx
	s.outputChan = outputChan
	s.isRunning.Store(true)

	wg.Add(1)
	go s.runLoop(ctx, wg)
	s.Logger.Info("Started DeribitSource: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the run loop to exit
func (s *DeribitSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning.Store(false)
	s.Logger.Info("Stopped DeribitSource: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

// Close stops the source if needed and releases the client worker pool.
// The source cannot be restarted afterwards.
func (s *DeribitSource) Close() error {
	if s.isRunning.Load() {
		_ = s.Stop()
	}
	s.Client.Close()
	return nil
}

// -----------------------------------------------------------------------------

// PushToDataSourceManager sends data to the manager's channel safely
func (s *DeribitSource) PushToDataSourceManager(data map[string][]models.MVolatilityPoint) error {
	if s.outputChan == nil {
		return fmt.Errorf("output channel is nil")
	}

	select {
	case s.outputChan <- data:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// -----------------------------------------------------------------------------

// runLoop polls the live index and refetches history after each settlement
func (s *DeribitSource) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	interval := time.Duration(s.Config.DataSource.UpdateIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Only this goroutine writes while running; copy to avoid locking per tick
	localTimestamps := make(map[string]int64)
	s.lastTimestampsMu.RLock()
	for k, v := range s.LastTimestamps {
		localTimestamps[k] = v
	}
	s.lastTimestampsMu.RUnlock()

	defer func() {
		s.lastTimestampsMu.Lock()
		for k, v := range localTimestamps {
			if v > s.LastTimestamps[k] {
				s.LastTimestamps[k] = v
			}
		}
		s.lastTimestampsMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var (
				data map[string][]models.MVolatilityPoint
				err  error
			)
			if s.Scheduler.RefreshDue() {
				s.Logger.Info("Settlement passed. Refreshing volatility history...")
				data, err = s.FetchInitialData(ctx)
			} else {
				data, err = s.FetchUpdateData(ctx)
			}
			if err != nil {
				s.Logger.Info("Error fetching updates: %v", err)
				continue
			}

			validData := freshPoints(data, localTimestamps)
			if len(validData) > 0 {
				if err := s.PushToDataSourceManager(validData); err != nil {
					return
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *DeribitSource) UpdateSymbols(currencies []string) error {
	if len(currencies) == 0 {
		return fmt.Errorf("source %s: currency list cannot be empty", s.Name())
	}
	s.currencies.Store(append([]string(nil), currencies...))
	s.Logger.Info("Updated currency list. New count: %d", len(currencies))
	return nil
}

// -----------------------------------------------------------------------------

func (s *DeribitSource) Symbols() []string {
	return s.currencies.Load().([]string)
}
