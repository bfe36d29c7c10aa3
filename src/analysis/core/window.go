package core

import "math"

// -----------------------------------------------------------------------------
// Window is a fixed-capacity circular buffer holding the most recent values of
// one quote field, with O(1) running sum and sum-of-squares maintenance.
// True ring buffer - no resizing allowed!
// -----------------------------------------------------------------------------

type Window struct {
	values     []float64
	capacity   int
	index      int // Next write position
	size       int // Current number of elements
	sum        float64
	sumSquares float64
}

// -----------------------------------------------------------------------------

// NewWindow creates a new empty window with fixed capacity
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 20 // Default window size
	}

	return &Window{
		values:   make([]float64, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// NewWindowFromValues rebuilds a window from persisted contents (oldest to
// newest). The running sums are recomputed from scratch so restored state
// cannot carry accumulated floating-point drift.
func NewWindowFromValues(capacity int, values []float64) *Window {
	w := NewWindow(capacity)
	for _, v := range values {
		w.Push(v)
	}
	return w
}

// -----------------------------------------------------------------------------

// Push appends a value, evicting the oldest one once the window is full. The
// running sums are adjusted by the entering and leaving values only, keeping
// the update O(1) regardless of capacity.
func (w *Window) Push(v float64) {
	if w.size == w.capacity {
		old := w.values[w.index]
		w.sum -= old
		w.sumSquares -= old * old
	} else {
		w.size++
	}

	w.values[w.index] = v
	w.sum += v
	w.sumSquares += v * v
	w.index = (w.index + 1) % w.capacity
}

// -----------------------------------------------------------------------------

// Stdev returns the population standard deviation of the held values
// (N denominator, not N-1). The second return is false when the window is
// empty; a single-value window yields 0.
func (w *Window) Stdev() (float64, bool) {
	if w.size == 0 {
		return 0, false
	}

	n := float64(w.size)
	mean := w.sum / n
	variance := w.sumSquares/n - mean*mean

	// Floating-point cancellation can push the variance slightly negative
	if variance < 0 {
		variance = 0
	}

	return math.Sqrt(variance), true
}

// -----------------------------------------------------------------------------

// Reset clears all held values and zeroes the running sums
func (w *Window) Reset() {
	w.index = 0
	w.size = 0
	w.sum = 0
	w.sumSquares = 0
}

// -----------------------------------------------------------------------------

// Values returns the held values in insertion order (oldest to newest)
func (w *Window) Values() []float64 {
	result := make([]float64, w.size)

	// Oldest element position depends on whether the buffer has wrapped
	startIdx := 0
	if w.size == w.capacity {
		startIdx = w.index
	}

	for i := 0; i < w.size; i++ {
		result[i] = w.values[(startIdx+i)%w.capacity]
	}

	return result
}

// -----------------------------------------------------------------------------

// Len returns the current number of held values
func (w *Window) Len() int {
	return w.size
}

// -----------------------------------------------------------------------------

// Cap returns the window capacity (fixed)
func (w *Window) Cap() int {
	return w.capacity
}

// -----------------------------------------------------------------------------

// Sum returns the running sum of held values
func (w *Window) Sum() float64 {
	return w.sum
}

// -----------------------------------------------------------------------------

// SumSquares returns the running sum of squared held values
func (w *Window) SumSquares() float64 {
	return w.sumSquares
}
