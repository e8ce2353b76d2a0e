package poise

// ResumeTarget is the address where execution continues after a
// handler runs.  The dispatcher hands one back so it can redirect
// execution somewhere other than the interrupted instruction; zero
// means "go back where you came from".
type ResumeTarget uint32

const ResumeInterrupted ResumeTarget = 0

// TrapDispatcher is the generic trap handler this layer calls into
// once the stack pointer is known valid and the trap frame is built.
type TrapDispatcher interface {
	DispatchTrap(f *TrapFrame, cause uint32) ResumeTarget
}

// InterruptDispatcher is the generic interrupt handler the trampoline
// calls with the captured context.
type InterruptDispatcher interface {
	DispatchInterrupt(c *InterruptContext, cause uint32) ResumeTarget
}
