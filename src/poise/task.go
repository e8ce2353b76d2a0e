package poise

import (
	"github.com/google/uuid"
)

// Task public API
// NewTaskTable()  called once at startup
// Create          registers a task and its user stack region
// Lookup          finds a task by slot
// Reclaim         frees the slot of a task that has been torn down
//
// Scheduling policy lives elsewhere; the entry layer only needs to
// know which task was interrupted and where its stack region is, so
// that user-owned windows spill to the right place and a corrupt
// stack can be pinned on its owner.

type TaskId uint16

const NoTaskId TaskId = 0xffff

const maxTasks = 64

type taskState int

const (
	tsRunning taskState = 0
	tsDoomed  taskState = 1
	tsZombie  taskState = 2
)

// Task is the per-task record the entry layer keeps.  The Id is
// stable across the task's whole life; the slot is just its index in
// the table.
type Task struct {
	Id        uuid.UUID
	Slot      TaskId
	state     taskState
	StackLow  uint32
	StackHigh uint32
}

// Doom flags the task for abnormal termination.  The actual teardown
// and signal delivery belong to the process-management layer; our
// obligation ends at raising the flag and the one-shot notification.
func (t *Task) Doom() {
	t.state = tsDoomed
}

func (t *Task) Doomed() bool {
	return t.state == tsDoomed
}

// ProcessManager is the process-management collaborator.  Terminate
// is a one-shot notification that the task must die; how the signal
// is delivered is the collaborator's concern.
type ProcessManager interface {
	Terminate(t *Task)
}

type TaskTable struct {
	slots   [maxTasks]*Task
	running uint16
}

func NewTaskTable() *TaskTable {
	return &TaskTable{}
}

func (tt *TaskTable) Create(stackLow uint32, stackHigh uint32) (*Task, EntryError) {
	for i := 0; i < maxTasks; i++ {
		if tt.slots[i] != nil {
			continue
		}
		t := &Task{
			Id:        uuid.New(),
			Slot:      TaskId(i),
			state:     tsRunning,
			StackLow:  stackLow,
			StackHigh: stackHigh,
		}
		tt.slots[i] = t
		tt.running++
		return t, NoError
	}
	return nil, MakeError(ErrorTaskNoFreeSlot, NoTaskId)
}

func (tt *TaskTable) Lookup(slot TaskId) *Task {
	if int(slot) >= maxTasks {
		return nil
	}
	return tt.slots[slot]
}

func (tt *TaskTable) Reclaim(slot TaskId) EntryError {
	if int(slot) >= maxTasks || tt.slots[slot] == nil {
		return MakeError(ErrorTaskBadSlot, slot)
	}
	tt.slots[slot].state = tsZombie
	tt.slots[slot] = nil
	tt.running--
	return NoError
}

func (tt *TaskTable) Running() uint16 {
	return tt.running
}
