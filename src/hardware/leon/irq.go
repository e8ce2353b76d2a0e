package leon

// Interrupt controller state.  Two latches live here: the device
// interrupt request, gated by the traps-enabled bit and the processor
// interrupt level, and the context-switch exception, the lowest
// priority trap the machine knows about.  Software latches a request
// and the hardware takes it only when the gate lets it through; a
// refused delivery keeps the latch, which is what lets the
// deferred-dispatch path request work from interrupt level and have
// it fire after the interrupt unwinds.

type irqLatch struct {
	pending  bool
	cause    uint32
	priority int
}

// RaiseIRQ latches a device interrupt request at the given priority.
// A request already latched at equal or higher priority is kept; the
// lower one waits behind it at the device.
func (c *CPU) RaiseIRQ(cause uint32, priority int) {
	if c.irq.pending && c.irq.priority >= priority {
		return
	}
	c.irq = irqLatch{pending: true, cause: cause, priority: priority}
}

func (c *CPU) PendingIRQ() bool {
	return c.irq.pending
}

// TakeIRQ delivers the latched request if it can fire: traps enabled
// and the request's priority above the processor interrupt level.
// The latch survives a refused delivery.
func (c *CPU) TakeIRQ() (cause uint32, priority int, ok bool) {
	if !c.irq.pending || !c.PSR.TrapsEnabled() || c.irq.priority <= c.PSR.PIL() {
		return 0, 0, false
	}
	cause, priority = c.irq.cause, c.irq.priority
	c.irq = irqLatch{}
	return cause, priority, true
}

// InstallSwitchHandler registers the handler the machine invokes when
// the latched switch request is taken.  The entry layer installs
// itself here.
func (c *CPU) InstallSwitchHandler(fn func(*CPU)) {
	c.switchHandler = fn
}

// RequestContextSwitch latches the lowest-priority exception.  The
// latch stays set until the exception is taken.
func (c *CPU) RequestContextSwitch() {
	c.switchRequested = true
}

func (c *CPU) SwitchRequested() bool {
	return c.switchRequested
}

// TakeContextSwitch delivers the latched exception if it can fire:
// traps enabled, a handler installed, a request pending.  Returns
// whether delivery happened.
func (c *CPU) TakeContextSwitch() bool {
	if !c.switchRequested || c.switchHandler == nil || !c.PSR.TrapsEnabled() {
		return false
	}
	c.switchRequested = false
	c.EnterTrapMode()
	c.switchHandler(c)
	c.EnableTraps()
	return true
}
