package trigger

// Buffer is a fixed-size FIFO window of recent probabilities for one class.
// Once full, each Push evicts the oldest sample.
type Buffer struct {
	values []float64
	size   int
}

// NewBuffer creates a Buffer holding at most size samples.
// A size below 1 is treated as 1.
func NewBuffer(size int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{
		values: make([]float64, 0, size),
		size:   size,
	}
}

// Push appends p and evicts the oldest sample on overflow.
func (b *Buffer) Push(p float64) {
	if len(b.values) == b.size {
		copy(b.values, b.values[1:])
		b.values = b.values[:b.size-1]
	}
	b.values = append(b.values, p)
}

// Average returns the mean of the samples in the window, or 0 when empty.
func (b *Buffer) Average() float64 {
	if len(b.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range b.values {
		sum += v
	}
	return sum / float64(len(b.values))
}

// Clear drops every sample.
func (b *Buffer) Clear() {
	b.values = b.values[:0]
}

// Len returns the number of samples currently held.
func (b *Buffer) Len() int {
	return len(b.values)
}

// Cap returns the window size.
func (b *Buffer) Cap() int {
	return b.size
}

// Values returns a copy of the window, oldest first.
func (b *Buffer) Values() []float64 {
	out := make([]float64, len(b.values))
	copy(out, b.values)
	return out
}
