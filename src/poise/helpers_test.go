package poise

import (
	"bytes"
	"testing"

	"poise/src/hardware/leon"
	"poise/src/lib/trust"
)

const kernelStackBase = 0x4000_0000
const kernelStackSize = 0x0000_4000
const kernelStackTop = kernelStackBase + kernelStackSize

const userStackBase = 0x8000_0000
const userStackSize = 0x0000_2000
const userStackTop = userStackBase + userStackSize

// newTestMachine builds a CPU with a mapped kernel stack and a logger
// that collects output instead of printing it.
func newTestMachine(t *testing.T) (*leon.CPU, *trust.Logger, *bytes.Buffer) {
	t.Helper()
	bus := leon.NewBus()
	bus.Map("kstack", kernelStackBase, kernelStackSize, false)
	cpu := leon.NewCPU(bus)
	//boot window runs on the kernel stack
	cpu.CurrentWindow().SetSP(kernelStackTop - 0x100)
	var buf bytes.Buffer
	log := trust.NewLogger(&buf, func(int) {})
	return cpu, log, &buf
}

func mapUserStack(cpu *leon.CPU) {
	cpu.Bus.Map("ustack", userStackBase, userStackSize, true)
}

//
// fake collaborators, in the spirit of the byte-buster fakes used by
// the boot loader tests
//

type fakeProcessManager struct {
	terminated []*Task
}

func (f *fakeProcessManager) Terminate(t *Task) {
	f.terminated = append(f.terminated, t)
}

type fakeTrapDispatcher struct {
	calls  int
	frames []*TrapFrame
	causes []uint32
	fn     func(f *TrapFrame, cause uint32) ResumeTarget
}

func (f *fakeTrapDispatcher) DispatchTrap(frame *TrapFrame, cause uint32) ResumeTarget {
	f.calls++
	f.frames = append(f.frames, frame)
	f.causes = append(f.causes, cause)
	if f.fn != nil {
		return f.fn(frame, cause)
	}
	return ResumeInterrupted
}

type fakeInterruptDispatcher struct {
	calls int
	ctxs  []*InterruptContext
	fn    func(c *InterruptContext, cause uint32) ResumeTarget
}

func (f *fakeInterruptDispatcher) DispatchInterrupt(c *InterruptContext, cause uint32) ResumeTarget {
	f.calls++
	f.ctxs = append(f.ctxs, c)
	if f.fn != nil {
		return f.fn(c, cause)
	}
	return ResumeInterrupted
}

// seedWindow gives a window a recognizable register pattern derived
// from its slot number, so spilled records can be traced back.
func seedWindow(w *leon.RegisterWindow, slot int) {
	for i := 0; i < 8; i++ {
		w.Local[i] = uint32(slot)<<16 | uint32(i)
		if i != leon.SPIndex {
			w.In[i] = uint32(slot)<<24 | uint32(i)
		}
	}
}

func init() {
	InitErrors()
}
