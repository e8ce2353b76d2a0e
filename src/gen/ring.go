package gen

// Fixed-capacity containers for code that is not allowed to allocate
// after startup.  All storage is claimed at construction time and the
// containers never grow.

type FixedRing[T any] struct {
	items []T
	head  int
	count int
}

func NewFixedRing[T any](capacity int) *FixedRing[T] {
	return &FixedRing[T]{items: make([]T, capacity)}
}

// Push appends at the tail.  Returns false when the ring is full; the
// caller decides whether that is an error.
func (r *FixedRing[T]) Push(v T) bool {
	if r.count == len(r.items) {
		return false
	}
	r.items[(r.head+r.count)%len(r.items)] = v
	r.count++
	return true
}

// Pop removes from the head, so order out equals order in.
func (r *FixedRing[T]) Pop() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	v := r.items[r.head]
	r.items[r.head] = zero
	r.head = (r.head + 1) % len(r.items)
	r.count--
	return v, true
}

// Items returns the current contents oldest first, without consuming
// them.
func (r *FixedRing[T]) Items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

func (r *FixedRing[T]) Len() int {
	return r.count
}

func (r *FixedRing[T]) Cap() int {
	return len(r.items)
}

func (r *FixedRing[T]) Empty() bool {
	return r.count == 0
}

func (r *FixedRing[T]) Full() bool {
	return r.count == len(r.items)
}
