package poise

import (
	"poise/src/gen"
)

// Pending-work queue: critical-section-exit actions deferred while
// interrupts were masked.  Populated during masked sections, drained
// by the trampoline at the single designated safe point, empty
// between traps.  Order in equals order out; the scheduler decides
// what goes in and in what order, this layer never reorders.

const pendingQueueSlots = 32

type PendingQueue struct {
	ring *gen.FixedRing[func()]
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{ring: gen.NewFixedRing[func()](pendingQueueSlots)}
}

// Defer enqueues one unit of work.  Meant to be called with
// interrupts masked; the queue has no locking of its own because the
// masking is the lock.
func (q *PendingQueue) Defer(fn func()) EntryError {
	if !q.ring.Push(fn) {
		return MakeError(ErrorTrampolinePendingOverrun, NoTaskId)
	}
	return NoError
}

func (q *PendingQueue) Len() int {
	return q.ring.Len()
}

func (q *PendingQueue) pop() (func(), bool) {
	return q.ring.Pop()
}
