package wovmon

import (
	"fmt"
	"strings"

	"poise/src/gen"
	"poise/src/hardware/leon"
	"poise/src/lib/boardcfg"
	"poise/src/lib/trust"
	"poise/src/poise"
)

// Single-step monitor for the trap-entry machinery.  One key, one
// machine event; the screen shows the ring, the status word and a
// scrolling event history, so window spills and the corruption path
// can be watched happening.

const historyLines = 12

type Monitor struct {
	cfg   *boardcfg.Config
	cpu   *leon.CPU
	wm    *poise.WindowManager
	tramp *poise.Trampoline
	tasks *poise.TaskTable
	queue *poise.PendingQueue

	log       *trust.Logger
	history   *gen.FixedRing[string]
	nextStack int
	frames    uint32
	switches  int
}

// lineWriter feeds completed log lines into the history ring, evicting
// the oldest line when the ring is full.
type lineWriter struct {
	ring    *gen.FixedRing[string]
	partial strings.Builder
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b != '\n' {
			w.partial.WriteByte(b)
			continue
		}
		if w.ring.Full() {
			w.ring.Pop()
		}
		w.ring.Push(w.partial.String())
		w.partial.Reset()
	}
	return len(p), nil
}

type monitorDispatcher struct {
	log *trust.Logger
}

func (d *monitorDispatcher) DispatchTrap(f *poise.TrapFrame, cause uint32) poise.ResumeTarget {
	d.log.Infof("trap cause %d dispatched, frame %08x", cause, f.Addr)
	return poise.ResumeInterrupted
}

func (d *monitorDispatcher) DispatchInterrupt(c *poise.InterruptContext, cause uint32) poise.ResumeTarget {
	d.log.Infof("interrupt cause %d dispatched, context %08x", cause, c.Addr)
	return poise.ResumeInterrupted
}

type monitorProcs struct {
	log *trust.Logger
}

func (p *monitorProcs) Terminate(t *poise.Task) {
	p.log.Warnf("task %s (slot %d) terminated", t.Id, t.Slot)
}

func NewMonitor(cfg *boardcfg.Config) *Monitor {
	poise.InitErrors()
	history := gen.NewFixedRing[string](historyLines)
	log := trust.NewLogger(&lineWriter{ring: history}, func(int) {})

	bus := leon.NewBus()
	bus.Map("kstack", cfg.KernelStackBase, cfg.KernelStackSize, false)
	bus.Map("user", cfg.UserRegionBase, cfg.UserRegionSize, true)
	cpu := leon.NewCPU(bus)
	cpu.CurrentWindow().SetSP(cfg.KernelStackTop() - 0x100)

	disp := &monitorDispatcher{log: log}
	m := &Monitor{
		cfg:     cfg,
		cpu:     cpu,
		wm:      poise.NewWindowManager(cpu, log, &monitorProcs{log: log}, disp, cfg.KernelStackTop()),
		tramp:   poise.NewTrampoline(cpu, log, disp),
		tasks:   poise.NewTaskTable(),
		queue:   poise.NewPendingQueue(),
		log:     log,
		history: history,
	}
	cpu.InstallSwitchHandler(func(c *leon.CPU) {
		m.switches++
		log.Infof("context-switch exception delivered")
	})
	log.Infof("machine reset, kernel stack [%08x,%08x)", cfg.KernelStackBase, cfg.KernelStackTop())
	return m
}

// Handle runs the machine event bound to key.  It returns false when
// the monitor should exit.
func (m *Monitor) Handle(key rune) bool {
	if m.cpu.Halted() && key != 'q' {
		m.log.Errorf("machine is halted: %s", m.cpu.HaltReason())
		return true
	}
	switch key {
	case 'q':
		return false
	case 'a':
		m.wm.AllocateWindow()
		if !m.cpu.Halted() {
			m.frames++
			m.cpu.CurrentWindow().SetSP(m.cfg.KernelStackTop() - 0x100 - m.frames*96)
			m.log.Debugf("allocated window %d", m.cpu.PSR.CWP())
		}
	case 't':
		m.wm.HandleTrap(0x1000, 0x1004, 6)
	case 'i':
		m.cpu.RaiseIRQ(11, 3)
		if _, ok := m.tramp.DeliverPending(0x5000); !ok {
			m.log.Warnf("interrupt masked at pil %d, request stays latched", m.cpu.PSR.PIL())
		}
	case 'p':
		m.cpu.PSR = m.cpu.PSR.WithPIL((m.cpu.PSR.PIL() + 4) % 16)
		m.log.Debugf("processor interrupt level now %d", m.cpu.PSR.PIL())
	case 'u':
		m.enterTask()
	case 'k':
		m.cpu.PSR |= leon.PSRSupervisor
		m.log.Debugf("forced supervisor mode")
	case 'c':
		target := m.cpu.InvalidMask().Slot()
		m.cpu.Window(target).SetSP(0xDEAD_0000)
		m.log.Warnf("poisoned frame pointer of window %d", target)
	case 'd':
		if e := m.queue.Defer(func() { m.log.Infof("deferred item ran") }); e != poise.NoError {
			m.log.Errorf("%s", poise.EntryErrorMessage(e))
		} else {
			m.log.Debugf("deferred one item, queue depth %d", m.queue.Len())
		}
	case 's':
		ic := &poise.InitialContext{Entry: 0xB000, SP: m.cfg.KernelStackTop() - 0x800}
		m.tramp.StartDeferred(ic, m.queue)
	case 'r':
		m.reset()
	}
	return true
}

func (m *Monitor) enterTask() {
	low, high := m.cfg.TaskStack(m.nextStack)
	task, e := m.tasks.Create(low, high)
	if e != poise.NoError {
		m.log.Errorf("%s", poise.EntryErrorMessage(e))
		return
	}
	m.nextStack++
	m.wm.SetCurrentTask(task)
	if err := m.cpu.SetInvalidMask(leon.MaskBit(m.cpu.PSR.CWP())); err != nil {
		m.log.Errorf("%v", err)
		return
	}
	m.cpu.PSR &^= leon.PSRSupervisor
	m.cpu.CurrentWindow().SetSP(high - 0x80)
	m.log.Infof("entered task %s on stack [%08x,%08x)", task.Id, low, high)
}

func (m *Monitor) reset() {
	m.cpu.Reset()
	m.cpu.CurrentWindow().SetSP(m.cfg.KernelStackTop() - 0x100)
	m.wm.SetCurrentTask(nil)
	m.frames = 0
	m.log.Infof("machine reset")
}

func (m *Monitor) statusLine() string {
	mode := "kernel"
	if !m.cpu.PSR.Supervisor() {
		mode = "user"
	}
	traps := "masked"
	if m.cpu.PSR.TrapsEnabled() {
		traps = "open"
	}
	pending := ""
	if m.cpu.PendingIRQ() {
		pending = " irq-latched"
	}
	return fmt.Sprintf("mode=%s traps=%s pil=%d depth=%d queue=%d switches=%d tasks=%d%s",
		mode, traps, m.cpu.PSR.PIL(), m.tramp.Depth(), m.queue.Len(),
		m.switches, m.tasks.Running(), pending)
}
