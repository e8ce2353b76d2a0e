package poise

import (
	"poise/src/hardware/leon"
	"poise/src/lib/trust"
)

// Interrupt trampoline: capture minimal state on the active stack,
// hand off to the generic dispatcher, resume wherever the dispatcher
// says.  A higher-priority interrupt may re-enter the same code while
// a lower one is mid-dispatch; every nesting level gets its own frame
// at its own stack address, so nothing here needs a lock.

type Trampoline struct {
	cpu      *leon.CPU
	log      *trust.Logger
	dispatch InterruptDispatcher
	depth    int
}

func NewTrampoline(cpu *leon.CPU, log *trust.Logger, dispatch InterruptDispatcher) *Trampoline {
	return &Trampoline{
		cpu:      cpu,
		log:      log,
		dispatch: dispatch,
	}
}

// Depth is the current interrupt nesting depth, zero outside any
// interrupt.
func (tr *Trampoline) Depth() int {
	return tr.depth
}

// Enter is interrupt entry.  Saves the scratch registers and the
// interrupted status word into a frame on the active stack, calls the
// dispatcher with a pointer to it, then unwinds: interrupts off,
// stack pointer restored to its entry value, registers and status
// restored from the frame (never from a stale copy), and execution
// continues at whatever address the dispatcher selected.  Returns the
// resume address.
func (tr *Trampoline) Enter(pc uint32, cause uint32) uint32 {
	cpu := tr.cpu
	interrupted := cpu.PSR
	cpu.EnterTrapMode()
	savedSP := cpu.CurrentWindow().SP()
	frameAddr := (savedSP - InterruptContextBytes) &^ 7

	ctx := &InterruptContext{
		Addr: frameAddr,
		PSR:  interrupted,
		PC:   pc,
	}
	copy(ctx.Scratch[:], cpu.Global[1:7])
	if err := ctx.writeOut(cpu.Bus); err != nil {
		tr.log.Errorf("interrupt context store faulted: %v", err)
		cpu.Halt("active stack unusable for interrupt context")
		return pc
	}
	cpu.CurrentWindow().SetSP(frameAddr)

	tr.depth++
	//from here a higher-priority interrupt may nest
	cpu.EnableTraps()

	resume := tr.dispatch.DispatchInterrupt(ctx, cause)

	//resume-after-dispatch: interrupts off, SP back to the entry
	//value, then branch per the dispatcher's return
	cpu.DisableTraps()
	tr.depth--

	back, err := readBackInterruptContext(cpu.Bus, frameAddr)
	if err != nil {
		tr.log.Errorf("interrupt context readback faulted: %v", err)
		cpu.Halt("interrupt context lost")
		return pc
	}
	copy(cpu.Global[1:7], back.Scratch[:])
	cpu.CurrentWindow().SetSP(savedSP)
	//privilege and the trap-enable bit both come back from the frame
	if !back.PSR.Supervisor() {
		cpu.PSR &^= leon.PSRSupervisor
	}
	if back.PSR.TrapsEnabled() {
		cpu.EnableTraps()
	}

	if resume == ResumeInterrupted {
		return pc
	}
	return uint32(resume)
}

// DeliverPending runs the interrupt entry for the latched device
// request if the hardware gate lets it through.  While the dispatcher
// runs the processor interrupt level is raised to the delivered
// priority, so equal or lower requests stay latched until this one
// unwinds.  Returns the resume address and whether delivery happened.
func (tr *Trampoline) DeliverPending(pc uint32) (uint32, bool) {
	cpu := tr.cpu
	cause, priority, ok := cpu.TakeIRQ()
	if !ok {
		return pc, false
	}
	entryLevel := cpu.PSR.PIL()
	cpu.PSR = cpu.PSR.WithPIL(priority)
	resume := tr.Enter(pc, cause)
	cpu.PSR = cpu.PSR.WithPIL(entryLevel)
	return resume, true
}

// SwitchReturn is the resume path through the lowest-priority
// exception when no context switch turned out to be needed.  That
// exception owns only the scratch half of the frame: restore those
// words, skip past the rest without touching it, and go straight back
// to the instruction the original entry interrupted.
func (tr *Trampoline) SwitchReturn(ctx *InterruptContext) uint32 {
	cpu := tr.cpu
	for i := 0; i < switchOwnedWords; i++ {
		v, err := cpu.Bus.Load32(ctx.Addr + switchOwnedOffset + uint32(i*leon.WordSize))
		if err != nil {
			tr.log.Errorf("switch-return readback faulted: %v", err)
			cpu.Halt("interrupt context lost on switch return")
			return ctx.PC
		}
		cpu.Global[1+i] = v
	}
	cpu.CurrentWindow().SetSP(ctx.Addr + InterruptContextBytes)
	return ctx.PC
}

// InitialContext is what the scheduler hands us for a context that
// has never run: where it starts, its stack, and the scratch register
// values it begins with.
type InitialContext struct {
	Entry   uint32
	SP      uint32
	Scratch [6]uint32
}

// StartDeferred is deferred dispatch on new-context entry.  Part of
// the fresh context's registers are reloaded and pushed onto its
// stack, interrupts are opened just long enough to drain the work
// that was deferred while a critical section was held, and then the
// low-priority exception is requested to perform the actual switch.
// On success the exception takes over and this call is the end of the
// road for the current execution.  If the requested exception fails
// to preempt, the machine halts: continuing would run with
// inconsistent CPU state.
func (tr *Trampoline) StartDeferred(ic *InitialContext, deferred *PendingQueue) {
	cpu := tr.cpu
	cpu.DisableTraps()

	//reload part of the new context and push it on the active stack
	copy(cpu.Global[1:7], ic.Scratch[:])
	frameAddr := (ic.SP - InterruptContextBytes) &^ 7
	ctx := &InterruptContext{
		Addr:    frameAddr,
		PSR:     cpu.PSR,
		PC:      ic.Entry,
		Scratch: ic.Scratch,
	}
	if err := ctx.writeOut(cpu.Bus); err != nil {
		tr.log.Errorf("initial context store faulted: %v", err)
		cpu.Halt("new context stack unusable")
		return
	}
	cpu.CurrentWindow().SetSP(frameAddr)

	//the one designated drain point: interrupts open for a bounded
	//window, items run in the order they were queued
	n := deferred.Len()
	cpu.EnableTraps()
	for i := 0; i < n; i++ {
		fn, ok := deferred.pop()
		if !ok {
			break
		}
		fn()
	}
	cpu.DisableTraps()

	cpu.RequestContextSwitch()
	cpu.EnableTraps()
	if cpu.TakeContextSwitch() {
		return
	}

	tr.log.Errorf("%s", EntryErrorMessage(MakeError(ErrorTrampolineSwitchNeverFired, NoTaskId)))
	cpu.Halt("context-switch exception failed to fire")
}
