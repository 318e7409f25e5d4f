// Package history provides a fixed-capacity ring buffer of command lines
// for per-session history navigation.
package history

// DefaultCapacity is the number of history entries kept per session.
const DefaultCapacity = 16

// Ring is a fixed-capacity circular buffer of command lines. When full, the
// oldest entry is overwritten. Index 0 is the most recently pushed entry.
//
// A Ring belongs to a single session goroutine and is not synchronized.
type Ring struct {
	entries  []string
	capacity int
	count    int
	write    int // next write position
}

// NewRing creates a Ring with the given capacity.
// A capacity below 1 defaults to 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		entries:  make([]string, capacity),
		capacity: capacity,
	}
}

// Push appends a command line. Empty lines and lines identical to the most
// recent entry are skipped.
func (r *Ring) Push(line string) {
	if line == "" {
		return
	}
	if r.count > 0 {
		prev := (r.write + r.capacity - 1) % r.capacity
		if r.entries[prev] == line {
			return
		}
	}
	r.entries[r.write] = line
	r.write = (r.write + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}
}

// Get returns the entry at the given logical index, where 0 is the most
// recent. The second return value is false when the index is out of range.
func (r *Ring) Get(index int) (string, bool) {
	if index < 0 || index >= r.count {
		return "", false
	}
	pos := (r.write + r.capacity - 1 - index) % r.capacity
	return r.entries[pos], true
}

// Len returns the number of stored entries.
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the capacity of the ring.
func (r *Ring) Cap() int {
	return r.capacity
}
