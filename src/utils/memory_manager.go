package utils

import (
	"runtime"
	"runtime/debug"
	"sort"
	"sync"

	"volatility-observer/src/logger"
	"volatility-observer/src/models"
)

// -----------------------------------------------------------------------------
// MemoryManager manages in-memory ring buffers, one per (currency, series).
// -----------------------------------------------------------------------------

type MemoryManager struct {
	DataStreams   map[string]*RingBuffer
	MaxMemoryMB   int
	MaxDataPoints int
	Logger        *logger.Logger
	mu            sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMemoryManager(maxMemoryMB, maxDataPoints int) *MemoryManager {
	return &MemoryManager{
		DataStreams:   make(map[string]*RingBuffer),
		MaxMemoryMB:   maxMemoryMB,
		MaxDataPoints: maxDataPoints,
		Logger:        logger.NewLogger(nil, "MemoryManager"),
	}
}

// -----------------------------------------------------------------------------

// AddDataPoint stores a point in its series buffer. Returns true if stored.
func (mm *MemoryManager) AddDataPoint(point models.MVolatilityPoint) bool {
	mm.mu.Lock()
	added := mm.addLocked(point)
	size := mm.DataStreams[models.SeriesKey(point.Currency, point.Series)].Size()
	mm.mu.Unlock()

	// Periodic memory check
	if added && size%100 == 0 {
		mm.CheckMemoryLimits()
	}
	return added
}

// -----------------------------------------------------------------------------

// AddDataPoints stores a batch (sorted by timestamp per series) and returns
// how many points changed a buffer.
func (mm *MemoryManager) AddDataPoints(points []models.MVolatilityPoint) int {
	sorted := make([]models.MVolatilityPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	mm.mu.Lock()
	added := 0
	for _, p := range sorted {
		if mm.addLocked(p) {
			added++
		}
	}
	mm.mu.Unlock()

	if added > 0 {
		mm.CheckMemoryLimits()
	}
	return added
}

// -----------------------------------------------------------------------------

func (mm *MemoryManager) addLocked(point models.MVolatilityPoint) bool {
	key := models.SeriesKey(point.Currency, point.Series)
	buffer, ok := mm.DataStreams[key]
	if !ok {
		buffer = NewRingBuffer(mm.MaxDataPoints, point.Currency, point.Series)
		mm.DataStreams[key] = buffer
	}
	return buffer.Append(point)
}

// -----------------------------------------------------------------------------

// Series returns the full history of a stream, oldest first.
func (mm *MemoryManager) Series(currency, series string) []models.MVolatilityPoint {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	buffer, ok := mm.DataStreams[models.SeriesKey(currency, series)]
	if !ok {
		return []models.MVolatilityPoint{}
	}
	return buffer.GetAll()
}

// -----------------------------------------------------------------------------

// Latest returns the newest point of a stream.
func (mm *MemoryManager) Latest(currency, series string) (models.MVolatilityPoint, bool) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	buffer, ok := mm.DataStreams[models.SeriesKey(currency, series)]
	if !ok || buffer.Size() == 0 {
		return models.MVolatilityPoint{}, false
	}
	return buffer.GetLatest(1)[0], true
}

// -----------------------------------------------------------------------------

// Currencies returns every currency with stored data, sorted.
func (mm *MemoryManager) Currencies() []string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	seen := make(map[string]bool)
	for _, buffer := range mm.DataStreams {
		if buffer.Size() > 0 {
			seen[buffer.currency] = true
		}
	}

	out := make([]string, 0, len(seen))
	for cur := range seen {
		out = append(out, cur)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

// CheckMemoryLimits halves buffer capacities when the heap exceeds the limit
func (mm *MemoryManager) CheckMemoryLimits() {
	if mm.MaxMemoryMB <= 0 {
		return
	}
	currentMemory := mm.GetProcessMemoryMB()

	if currentMemory > float64(mm.MaxMemoryMB) {
		mm.Logger.Info("Memory usage %.1fMB exceeds limit %dMB. Cleaning up.",
			currentMemory, mm.MaxMemoryMB)

		mm.mu.Lock()
		for _, buffer := range mm.DataStreams {
			if buffer.Capacity() > DvolHistoryDays*2 {
				buffer.Resize(buffer.Capacity() / 2)
			}
		}
		mm.mu.Unlock()

		runtime.GC()
		debug.FreeOSMemory()
	}
}

// -----------------------------------------------------------------------------

// GetProcessMemoryMB gets current heap usage in MB
func (mm *MemoryManager) GetProcessMemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / 1024 / 1024
}

// -----------------------------------------------------------------------------

// Cleanup clears all data
func (mm *MemoryManager) Cleanup() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.DataStreams = make(map[string]*RingBuffer)
	runtime.GC()
	debug.FreeOSMemory()
}

// -----------------------------------------------------------------------------

// HasSeries checks if a stream exists
func (mm *MemoryManager) HasSeries(currency, series string) bool {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	_, ok := mm.DataStreams[models.SeriesKey(currency, series)]
	return ok
}

// -----------------------------------------------------------------------------

// StreamCount returns number of streams with data
func (mm *MemoryManager) StreamCount() int {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	return len(mm.DataStreams)
}
