package poise

import (
	"poise/src/hardware/leon"
	"poise/src/lib/trust"
)

// Window manager: makes every window allocation succeed.  When an
// allocation targets the slot carrying the invalid mark, one slot is
// vacated to memory and the allocation retries; the caller never sees
// any of it.  The only observable failure is a task dying because its
// stack could not take the spill.
//
// The boundary field records the ring slot of the last user-owned
// window still resident in hardware, set on every entry from user
// mode before the overflow test runs.  Kernel-mode overflow handling
// consults it to decide whether the slot being vacated belongs to the
// kernel call chain or to the suspended user chain, which in turn
// decides which backing store takes the spill.

const noBoundary = -1

type WindowManager struct {
	cpu            *leon.CPU
	log            *trust.Logger
	procs          ProcessManager
	dispatch       TrapDispatcher
	kernelStackTop uint32
	currentTask    *Task
	boundary       int
}

func NewWindowManager(cpu *leon.CPU, log *trust.Logger, procs ProcessManager,
	dispatch TrapDispatcher, kernelStackTop uint32) *WindowManager {
	return &WindowManager{
		cpu:            cpu,
		log:            log,
		procs:          procs,
		dispatch:       dispatch,
		kernelStackTop: kernelStackTop,
		boundary:       noBoundary,
	}
}

// SetCurrentTask records which user task is on (or was interrupted
// on) the CPU.  The scheduler owns this decision; we only consume it
// to find the right stack region and the right victim when a
// user-owned window has to be spilled or condemned.
func (wm *WindowManager) SetCurrentTask(t *Task) {
	wm.currentTask = t
}

func (wm *WindowManager) CurrentTask() *Task {
	return wm.currentTask
}

// UserWindowsResident reports whether any window of the suspended
// user chain is still in hardware.
func (wm *WindowManager) UserWindowsResident() bool {
	return wm.boundary != noBoundary
}

// HandleTrap is the generic trap entry.  It classifies the origin,
// allocates the trap window (resolving overflow if the target slot is
// marked), builds the trap frame, and only then hands control to the
// generic dispatcher with a stack pointer that is known valid.  On
// return the frame is released and the interrupted state restored.
func (wm *WindowManager) HandleTrap(pc uint32, npc uint32, cause uint32) ResumeTarget {
	cpu := wm.cpu
	cpu.EnterTrapMode()
	fromKernel := cpu.PSR.PrevSupervisor()
	callerSP := cpu.CurrentWindow().SP()

	if !fromKernel {
		//the outgoing window is the last user window resident in
		//hardware; record that before the overflow test so kernel
		//mode can later tell whether user windows remain
		wm.boundary = cpu.PSR.CWP()
	}

	target, ok := cpu.AdvanceWindow()
	if !ok {
		if wm.vacate(target, fromKernel) {
			if _, ok := cpu.AdvanceWindow(); !ok {
				//a successful vacate moved the mark off target, so this
				//retry cannot fault; reaching here means the mask state
				//machine is broken and the machine must not run on
				wm.log.Errorf("%s", EntryErrorMessage(MakeError(ErrorWindowVacateDidNotHelp, NoTaskId)))
				cpu.Halt("window allocation still faults after vacate")
				return ResumeTarget(pc)
			}
		} else {
			if cpu.Halted() {
				return ResumeTarget(pc)
			}
			//corruption path: the slot's contents were discarded, so
			//it can be entered as an empty window
			cpu.ForceWindow(target)
		}
	}

	var frameAddr uint32
	if fromKernel {
		//the caller frame pointer is trusted kernel state
		frameAddr = (callerSP - TrapFrameBytes) &^ 7
	} else {
		//first entry from user mode: the kernel stack pointer cannot
		//be trusted yet, build at the fixed top of the kernel stack
		frameAddr = (wm.kernelStackTop - TrapFrameBytes) &^ 7
	}
	tf, err := buildTrapFrame(cpu, frameAddr, pc, npc)
	if err != nil {
		wm.log.Errorf("trap frame store faulted on the kernel stack: %v", err)
		cpu.Halt("kernel stack unusable for trap frame")
		return ResumeTarget(pc)
	}
	cpu.CurrentWindow().SetSP(frameAddr)

	resume := wm.dispatch.DispatchTrap(tf, cause)

	wm.returnFromTrap(tf)
	if resume == ResumeInterrupted {
		return ResumeTarget(pc)
	}
	return resume
}

// AllocateWindow is the dedicated entry for an explicit
// window-allocation executed by already-running code.  No trap frame
// exists here; privilege is derived from scratch.  When this returns
// the ring has a valid slot and the faulting operation has been
// re-executed: from the caller's point of view the allocation simply
// succeeded.
func (wm *WindowManager) AllocateWindow() {
	cpu := wm.cpu
	target, ok := cpu.AdvanceWindow()
	if ok {
		return
	}
	cpu.EnterTrapMode()
	fromKernel := cpu.PSR.PrevSupervisor()
	if !fromKernel && wm.boundary == noBoundary {
		//faulting user code: its current window is by definition the
		//last resident user window
		wm.boundary = cpu.PSR.CWP()
	}
	if wm.vacate(target, fromKernel) {
		if _, ok := cpu.AdvanceWindow(); !ok {
			//can't happen for the same reason as in HandleTrap: the
			//vacate moved the mark off target
			wm.log.Errorf("%s", EntryErrorMessage(MakeError(ErrorWindowVacateDidNotHelp, NoTaskId)))
			cpu.Halt("window allocation still faults after vacate")
			return
		}
	} else {
		if cpu.Halted() {
			return
		}
		cpu.ForceWindow(target)
	}
	cpu.ExitTrapMode()
}

// vacate frees the marked slot so an allocation can enter it.  The
// slot's registers go to the backing store of whoever owns them:
// kernel windows to the kernel stack, user windows to the owning
// task's stack.  Returns false only when the corruption path fired
// and the contents were discarded instead of spilled.
func (wm *WindowManager) vacate(target int, fromKernel bool) bool {
	cpu := wm.cpu
	preFault := cpu.InvalidMask()
	primary := (target + 1) % leon.WindowCount
	victim := cpu.Window(target)
	addr := victim.SP()

	if fromKernel && wm.boundary == noBoundary {
		//pure kernel ring: shift the mark one slot, spill to the
		//kernel store, single-bit form preserved throughout
		if err := cpu.SetInvalidMask(leon.MaskBit(primary)); err != nil {
			wm.log.Errorf("%s", EntryErrorMessage(MakeError(ErrorWindowMaskPopcount, NoTaskId)))
			cpu.Halt(err.Error())
			return false
		}
		if err := kernelStore().write(cpu.Bus, addr, victim); err != nil {
			//kernel backing store faults are not survivable
			wm.log.Errorf("kernel backing store fault: %v", err)
			cpu.Halt("spill to kernel backing store faulted")
			return false
		}
		wm.log.Debugf("vacated kernel window %d to %08x, mask now %s",
			target, addr, cpu.InvalidMask())
		*victim = leon.RegisterWindow{}
		return true
	}

	//the slot being vacated belongs to the suspended user chain
	task := wm.currentTask
	if task == nil {
		wm.log.Errorf("user-owned window %d resident but no current task", target)
		cpu.Halt("user window with no owning task")
		return false
	}
	two := leon.MaskBit(primary) | leon.MaskBit(wm.boundary)
	if err := cpu.SetInvalidMask(two); err != nil {
		wm.log.Errorf("%s", EntryErrorMessage(MakeError(ErrorWindowMaskPopcount, task.Slot)))
		cpu.Halt(err.Error())
		return false
	}
	if err := userStore(task).write(cpu.Bus, addr, victim); err != nil {
		//corruption: abort the spill, discard the primary mark and
		//declare no resident user windows.  The CPU state is still
		//consistent; only the would-be-spilled data is lost, and the
		//owner pays for it.
		if merr := cpu.SetInvalidMask(preFault); merr != nil {
			cpu.Halt(merr.Error())
			return false
		}
		wm.boundary = noBoundary
		task.Doom()
		wm.procs.Terminate(task)
		wm.log.Errorf("%s: %v", EntryErrorMessage(MakeError(ErrorWindowBackingStoreFault, task.Slot)), err)
		return false
	}
	if err := cpu.SetInvalidMask(leon.MaskBit(primary)); err != nil {
		cpu.Halt(err.Error())
		return false
	}
	if wm.boundary == target {
		//that was the last resident user window
		wm.boundary = noBoundary
	}
	wm.log.Debugf("vacated user window %d to %08x (task slot %d), mask now %s",
		target, addr, task.Slot, cpu.InvalidMask())
	*victim = leon.RegisterWindow{}
	return true
}

// returnFromTrap releases the trap window and frame and puts the
// processor back in the interrupted state recorded by the frame.
func (wm *WindowManager) returnFromTrap(tf *TrapFrame) {
	cpu := wm.cpu
	if _, ok := cpu.RetreatWindow(); !ok {
		//retreating onto a marked slot is the underflow case; the
		//fill path that reloads it is owned by a collaborator
		wm.log.Warnf("trap return underflowed, fill path must resolve slot")
	}
	cpu.Global = tf.Global
	if !tf.PSR.PrevSupervisor() {
		cpu.PSR &^= leon.PSRSupervisor
	}
	cpu.EnableTraps()
}
