package poise

import "fmt"

const subsystemMask = 0x00ff_0000_0000_0000
const taskSlotMask = 0x0000_ffff_0000_0000
const errorNumberMask = 0x0000_0000_0000_ffff

const NoError = EntryError(0)

// Window subsystem errors
const WindowSubsystem = 1
const WindowBackingStoreFault = 1
const WindowMaskPopcount = 2
const WindowVacateDidNotHelp = 3

var ErrorWindowBackingStoreFault = errorValue(WindowSubsystem, WindowBackingStoreFault)
var ErrorWindowMaskPopcount = errorValue(WindowSubsystem, WindowMaskPopcount)
var ErrorWindowVacateDidNotHelp = errorValue(WindowSubsystem, WindowVacateDidNotHelp)

// Trampoline subsystem errors
const TrampolineSubsystem = 2
const TrampolineSwitchNeverFired = 1
const TrampolinePendingOverrun = 2

var ErrorTrampolineSwitchNeverFired = errorValue(TrampolineSubsystem, TrampolineSwitchNeverFired)
var ErrorTrampolinePendingOverrun = errorValue(TrampolineSubsystem, TrampolinePendingOverrun)

// Task subsystem errors
const TaskSubsystem = 3
const TaskNoFreeSlot = 1
const TaskBadSlot = 2

var ErrorTaskNoFreeSlot = errorValue(TaskSubsystem, TaskNoFreeSlot)
var ErrorTaskBadSlot = errorValue(TaskSubsystem, TaskBadSlot)

type EntryError uint64
type RawEntryError uint64 // error with just the constant part of the value filled in

var errorMap map[uint64]string

func EntryErrorMessage(e EntryError) string {
	return errorText(uint64(e))
}

func InitErrors() {
	errorMap = make(map[uint64]string)
	createError(WindowSubsystem, WindowBackingStoreFault,
		"spill to a user backing store faulted, window contents discarded")
	createError(WindowSubsystem, WindowMaskPopcount,
		"invalid-window mask popcount left the legal range")
	createError(WindowSubsystem, WindowVacateDidNotHelp,
		"window allocation still faults after the slot was vacated")
	createError(TrampolineSubsystem, TrampolineSwitchNeverFired,
		"context-switch exception was requested but never fired")
	createError(TrampolineSubsystem, TrampolinePendingOverrun,
		"pending-work queue is full")
	createError(TaskSubsystem, TaskNoFreeSlot,
		"no free task slot")
	createError(TaskSubsystem, TaskBadSlot,
		"task slot is empty or out of range")
}

func createError(subsys byte, errorNumber uint16, format string) {
	n := errorValue(subsys, errorNumber)
	errorMap[uint64(n)] = format
}

func errorText(raw uint64) string {
	t, ok := errorMap[raw&^taskSlotMask]
	if !ok {
		return "Unknown error code"
	}
	slot := (raw & taskSlotMask) >> 32
	return fmt.Sprintf("Task slot %d: %s", slot, t)
}

func errorValue(subsys byte, errorNumber uint16) RawEntryError {
	ss := subsystemMask & (uint64(subsys) << 48)
	en := errorNumberMask & uint64(errorNumber)
	return RawEntryError(ss | en)
}

// MakeError adds the dynamic fields (the task slot involved) to the
// constant error value.
func MakeError(rawError RawEntryError, slot TaskId) EntryError {
	raw := uint64(rawError)
	s := (uint64(slot) << 32) & taskSlotMask
	return EntryError(raw | s)
}
