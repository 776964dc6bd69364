package common

// Ring keeps the last Size values of a single channel in insertion order.
type Ring struct {
	buffer   []float64
	size     int
	writePos int
	count    int
}

// NewRing creates a ring holding at most size values.
func NewRing(size int) *Ring {
	return &Ring{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Push adds v and returns the evicted value and whether one was evicted.
func (r *Ring) Push(v float64) (float64, bool) {
	var evicted float64
	full := r.count == r.size
	if full {
		evicted = r.buffer[r.writePos]
	} else {
		r.count++
	}
	r.buffer[r.writePos] = v
	r.writePos = (r.writePos + 1) % r.size
	return evicted, full
}

// At returns the i-th oldest value, 0 <= i < Len.
func (r *Ring) At(i int) float64 {
	start := (r.writePos - r.count + r.size) % r.size
	return r.buffer[(start+i)%r.size]
}

// Last returns the most recently pushed value.
func (r *Ring) Last() float64 {
	return r.buffer[(r.writePos-1+r.size)%r.size]
}

// Values copies the held values, oldest first, into dst.
func (r *Ring) Values(dst []float64) []float64 {
	dst = dst[:0]
	for i := 0; i < r.count; i++ {
		dst = append(dst, r.At(i))
	}
	return dst
}

// Len returns the number of values held.
func (r *Ring) Len() int {
	return r.count
}

// Size returns the capacity.
func (r *Ring) Size() int {
	return r.size
}

// IsFull returns true if the ring holds Size values.
func (r *Ring) IsFull() bool {
	return r.count == r.size
}

// Clear empties the ring
func (r *Ring) Clear() {
	r.writePos = 0
	r.count = 0
}
