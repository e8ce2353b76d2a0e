package poise

import (
	"poise/src/hardware/leon"
)

// backingStore is the tagged variant over the two places a vacated
// window may spill: the kernel stack region or the owning task's
// stack region.  The classification happens once, when the trap
// origin is decided; after that the store carries everything the
// spill needs to know.
type backingStore struct {
	user bool
	task *Task //nil for the kernel store
}

func kernelStore() backingStore {
	return backingStore{}
}

func userStore(t *Task) backingStore {
	return backingStore{user: true, task: t}
}

// write spills w at addr.  For the kernel store a fault is impossible
// by construction (the kernel stack is always mapped and the
// addresses are computed, not taken from user state), so a non-nil
// error from the kernel store is the caller's cue to halt.  For a
// user store the address came out of a user register: it must land
// inside the owning task's stack region, and the store itself may
// fault.  Either way the failure comes back to the caller for the
// corruption path.
func (s backingStore) write(bus *leon.Bus, addr uint32, w *leon.RegisterWindow) error {
	if s.user {
		if addr < s.task.StackLow || addr+leon.SpillRecordBytes > s.task.StackHigh {
			return &leon.BusFault{Addr: addr, Write: true, Reason: "outside task stack region"}
		}
	}
	return leon.StoreWindow(bus, addr, w)
}
