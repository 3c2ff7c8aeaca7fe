package fleet

// ring is a fixed-capacity deque that keeps the newest element first and
// drops the oldest on overflow.
type ring[T any] struct {
	buf  []T
	head int // index of the newest element
	size int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

// pushFront inserts v as the newest element. It returns the evicted element
// and true when the ring was full.
func (r *ring[T]) pushFront(v T) (T, bool) {
	var evicted T
	full := r.size == len(r.buf)
	r.head = (r.head - 1 + len(r.buf)) % len(r.buf)
	if full {
		// the slot now at head held the oldest element
		evicted = r.buf[r.head]
	} else {
		r.size++
	}
	r.buf[r.head] = v
	return evicted, full
}

// at returns a pointer to the i-th element, 0 being the newest.
func (r *ring[T]) at(i int) *T {
	return &r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring[T]) len() int { return r.size }

func (r *ring[T]) capacity() int { return len(r.buf) }

// slice copies the contents newest first.
func (r *ring[T]) slice() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = *r.at(i)
	}
	return out
}
