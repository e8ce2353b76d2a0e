package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"poise/src/hardware/leon"
	"poise/src/lib/boardcfg"
	"poise/src/lib/trust"
	"poise/src/poise"
)

// A scenario file is a TOML script of machine events.  The harness
// replays them against a fresh machine and reports the ring and task
// state after every step, which makes the window and trampoline
// behavior observable without a board.

type Scenario struct {
	Title string `toml:"title"`
	Steps []Step `toml:"step"`
}

type Step struct {
	Op       string `toml:"op"`
	Count    int    `toml:"count"`
	PC       uint32 `toml:"pc"`
	NPC      uint32 `toml:"npc"`
	Cause    uint32 `toml:"cause"`
	Priority int    `toml:"priority"`
	Entry    uint32 `toml:"entry"`
}

func LoadScenario(path string) (*Scenario, error) {
	var s Scenario
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("decoding scenario %s: %w", path, err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &s, nil
}

// runner owns one machine and the entry-layer objects wired onto it.
type runner struct {
	cfg   *boardcfg.Config
	log   *trust.Logger
	cpu   *leon.CPU
	wm    *poise.WindowManager
	tramp *poise.Trampoline
	tasks *poise.TaskTable
	queue *poise.PendingQueue

	nextStack int
	frames    uint32
	switched  int
}

// loggingDispatcher satisfies both dispatcher interfaces and just
// narrates what it was handed.
type loggingDispatcher struct {
	log *trust.Logger
}

func (d *loggingDispatcher) DispatchTrap(f *poise.TrapFrame, cause uint32) poise.ResumeTarget {
	d.log.Infof("trap cause %d, frame at %08x, pc %08x", cause, f.Addr, f.PC)
	return poise.ResumeInterrupted
}

func (d *loggingDispatcher) DispatchInterrupt(c *poise.InterruptContext, cause uint32) poise.ResumeTarget {
	d.log.Infof("interrupt cause %d, context at %08x", cause, c.Addr)
	return poise.ResumeInterrupted
}

type loggingProcs struct {
	log *trust.Logger
}

func (p *loggingProcs) Terminate(t *poise.Task) {
	p.log.Warnf("task %s (slot %d) terminated", t.Id, t.Slot)
}

func newRunner(cfg *boardcfg.Config, log *trust.Logger) *runner {
	bus := leon.NewBus()
	bus.Map("kstack", cfg.KernelStackBase, cfg.KernelStackSize, false)
	bus.Map("user", cfg.UserRegionBase, cfg.UserRegionSize, true)
	cpu := leon.NewCPU(bus)
	cpu.CurrentWindow().SetSP(cfg.KernelStackTop() - 0x100)

	disp := &loggingDispatcher{log: log}
	r := &runner{
		cfg:   cfg,
		log:   log,
		cpu:   cpu,
		wm:    poise.NewWindowManager(cpu, log, &loggingProcs{log: log}, disp, cfg.KernelStackTop()),
		tramp: poise.NewTrampoline(cpu, log, disp),
		tasks: poise.NewTaskTable(),
		queue: poise.NewPendingQueue(),
	}
	cpu.InstallSwitchHandler(func(c *leon.CPU) {
		r.switched++
		log.Infof("context-switch exception delivered")
	})
	return r
}

func (r *runner) Run(s *Scenario) error {
	r.log.Infof("scenario: %s (%d steps)", s.Title, len(s.Steps))
	for i, st := range s.Steps {
		if r.cpu.Halted() {
			return fmt.Errorf("machine halted before step %d: %s", i+1, r.cpu.HaltReason())
		}
		if err := r.step(st); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
		r.log.Debugf("after step %-9s cwp=%d mask=%s user-resident=%v queue=%d",
			st.Op, r.cpu.PSR.CWP(), r.cpu.InvalidMask(), r.wm.UserWindowsResident(), r.queue.Len())
	}
	if r.cpu.Halted() {
		return fmt.Errorf("machine halted: %s", r.cpu.HaltReason())
	}
	return nil
}

func (r *runner) step(st Step) error {
	count := st.Count
	if count == 0 {
		count = 1
	}
	switch st.Op {
	case "allocate":
		for i := 0; i < count; i++ {
			r.wm.AllocateWindow()
			if r.cpu.Halted() {
				return fmt.Errorf("halted during allocation: %s", r.cpu.HaltReason())
			}
			r.frames++
			r.cpu.CurrentWindow().SetSP(r.currentFrameBase())
		}
	case "trap":
		r.wm.HandleTrap(st.PC, st.NPC, st.Cause)
	case "interrupt":
		priority := st.Priority
		if priority == 0 {
			priority = 1
		}
		r.cpu.RaiseIRQ(st.Cause, priority)
		if _, ok := r.tramp.DeliverPending(st.PC); !ok {
			r.log.Infof("interrupt cause %d masked at pil %d, request stays latched",
				st.Cause, r.cpu.PSR.PIL())
		}
	case "pil":
		r.cpu.PSR = r.cpu.PSR.WithPIL(st.Count)
		r.log.Debugf("processor interrupt level now %d", r.cpu.PSR.PIL())
	case "user":
		low, high := r.cfg.TaskStack(r.nextStack)
		r.nextStack++
		task, e := r.tasks.Create(low, high)
		if e != poise.NoError {
			return fmt.Errorf("%s", poise.EntryErrorMessage(e))
		}
		r.wm.SetCurrentTask(task)
		//a switch to a fresh task flushes the ring down to its window
		if err := r.cpu.SetInvalidMask(leon.MaskBit(r.cpu.PSR.CWP())); err != nil {
			return err
		}
		r.cpu.PSR &^= leon.PSRSupervisor
		r.cpu.CurrentWindow().SetSP(high - 0x80)
		r.log.Infof("entered task %s on stack [%08x,%08x)", task.Id, low, high)
	case "kernel":
		r.cpu.PSR |= leon.PSRSupervisor
	case "corrupt":
		//poison the slot the next overflow will vacate
		target := r.cpu.InvalidMask().Slot()
		r.cpu.Window(target).SetSP(0xDEAD_0000)
		r.log.Infof("poisoned frame pointer of window %d", target)
	case "defer":
		for i := 0; i < count; i++ {
			i := i
			if e := r.queue.Defer(func() {
				r.log.Infof("deferred item %d ran", i)
			}); e != poise.NoError {
				return fmt.Errorf("%s", poise.EntryErrorMessage(e))
			}
		}
	case "start":
		ic := &poise.InitialContext{Entry: st.Entry, SP: r.cfg.KernelStackTop() - 0x800}
		r.tramp.StartDeferred(ic, r.queue)
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}

func (r *runner) currentFrameBase() uint32 {
	return r.cfg.KernelStackTop() - 0x100 - r.frames*96
}

func (r *runner) report() {
	r.log.Statsf("machine", "cwp=%d mask=%s switches=%d tasks=%d halted=%v",
		r.cpu.PSR.CWP(), r.cpu.InvalidMask(), r.switched, r.tasks.Running(), r.cpu.Halted())
}
