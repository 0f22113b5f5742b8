package utils

import (
	"volatility-observer/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of one volatility series.
// True ring buffer - no resizing on append!
// -----------------------------------------------------------------------------

type RingBuffer struct {
	currency string
	series   string

	// Data storage as 2D slice (rows x features)
	data     [][models.RB_NUM_FEATURES]float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity for (currency, series)
func NewRingBuffer(capacity int, currency, series string) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}

	return &RingBuffer{
		currency: currency,
		series:   series,
		data:     make([][models.RB_NUM_FEATURES]float64, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// Append adds a point. Points older than the newest stored one are ignored and
// a point with the same timestamp replaces its value. Returns true when the
// buffer changed.
func (rb *RingBuffer) Append(point models.MVolatilityPoint) bool {
	if rb.size > 0 {
		lastIdx := (rb.index - 1 + rb.capacity) % rb.capacity
		lastTs := int64(rb.data[lastIdx][models.RB_IDX_TIMESTAMP])
		if point.Timestamp < lastTs {
			return false
		}
		if point.Timestamp == lastTs {
			if rb.data[lastIdx][models.RB_IDX_VALUE] == point.Value {
				return false
			}
			rb.data[lastIdx][models.RB_IDX_VALUE] = point.Value
			return true
		}
	}

	rb.data[rb.index] = [models.RB_NUM_FEATURES]float64{
		float64(point.Timestamp),
		point.Value,
	}

	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
	return true
}

// -----------------------------------------------------------------------------

func (rb *RingBuffer) toPoint(row [models.RB_NUM_FEATURES]float64) models.MVolatilityPoint {
	ts := int64(row[models.RB_IDX_TIMESTAMP])
	return models.MVolatilityPoint{
		Currency:  rb.currency,
		Series:    rb.series,
		Timestamp: ts,
		Date:      models.PointDate(rb.series, ts),
		Value:     row[models.RB_IDX_VALUE],
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns n latest records, oldest first
func (rb *RingBuffer) GetLatest(n int) []models.MVolatilityPoint {
	if rb.size == 0 || n <= 0 {
		return []models.MVolatilityPoint{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MVolatilityPoint, count)

	// Calculate starting index (latest data is at index-1)
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		result[i] = rb.toPoint(rb.data[idx])
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (rb *RingBuffer) GetAll() []models.MVolatilityPoint {
	return rb.GetLatest(rb.size)
}

// -----------------------------------------------------------------------------

// Values returns only the values, oldest to newest
func (rb *RingBuffer) Values() []float64 {
	if rb.size == 0 {
		return []float64{}
	}

	result := make([]float64, rb.size)
	startIdx := (rb.index - rb.size + rb.capacity) % rb.capacity
	for i := 0; i < rb.size; i++ {
		result[i] = rb.data[(startIdx+i)%rb.capacity][models.RB_IDX_VALUE]
	}
	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// Resize changes the capacity of the buffer
// If newCapacity < size, oldest data is dropped
func (rb *RingBuffer) Resize(newCapacity int) {
	if newCapacity <= 0 || newCapacity == rb.capacity {
		return
	}

	newData := make([][models.RB_NUM_FEATURES]float64, newCapacity)

	count := rb.size
	if count > newCapacity {
		count = newCapacity
	}

	// Keep the newest 'count' rows
	startIdx := (rb.index - count + rb.capacity) % rb.capacity
	for i := 0; i < count; i++ {
		newData[i] = rb.data[(startIdx+i)%rb.capacity]
	}

	rb.data = newData
	rb.capacity = newCapacity
	rb.size = count
	rb.index = count % newCapacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (rb *RingBuffer) IsFull() bool {
	return rb.size == rb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (rb *RingBuffer) Clear() {
	rb.index = 0
	rb.size = 0
}
