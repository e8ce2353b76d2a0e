package leon

import (
	"fmt"
	"math/bits"
)

// Processor model for a SPARC V8 style integer unit with register
// windows.  This is the hardware the entry layer runs against: the
// window ring, the status word and the invalid-window mask are the
// real architectural resources, modeled here so the trap code can be
// driven on a stock toolchain.

const WindowCount = 8
const RegistersPerWindow = 16
const WordSize = 4

// RegisterWindow is one slot of the ring: eight locals plus the eight
// incoming arguments of the frame that owns the slot.  In[6] holds
// the frame's stack pointer, which is also the slot's spill address.
type RegisterWindow struct {
	Local [8]uint32
	In    [8]uint32
}

const SPIndex = 6

func (w *RegisterWindow) SP() uint32 {
	return w.In[SPIndex]
}

func (w *RegisterWindow) SetSP(sp uint32) {
	w.In[SPIndex] = sp
}

//
// PSR is the processor status word.
//
type PSR uint32

const psrCWPMask = 0x1F       //bits 4:0
const PSRTrapsEnabled = 1 << 5
const PSRPrevSupervisor = 1 << 6
const PSRSupervisor = 1 << 7
const psrPILShift = 8 //bits 11:8
const psrPILMask = 0xF << psrPILShift

func (p PSR) CWP() int {
	return int(p & psrCWPMask)
}

func (p PSR) WithCWP(w int) PSR {
	return (p &^ psrCWPMask) | PSR(w%WindowCount)
}

func (p PSR) Supervisor() bool {
	return p&PSRSupervisor != 0
}

func (p PSR) PrevSupervisor() bool {
	return p&PSRPrevSupervisor != 0
}

func (p PSR) TrapsEnabled() bool {
	return p&PSRTrapsEnabled != 0
}

func (p PSR) PIL() int {
	return int(p&psrPILMask) >> psrPILShift
}

func (p PSR) WithPIL(level int) PSR {
	return (p &^ psrPILMask) | PSR(level<<psrPILShift)&psrPILMask
}

//
// WindowMask marks ring slots that must not be entered by an
// allocation without first vacating them.
//
type WindowMask uint32

func MaskBit(slot int) WindowMask {
	return WindowMask(1) << (uint(slot) % WindowCount)
}

func (m WindowMask) On(slot int) bool {
	return m&MaskBit(slot) != 0
}

func (m WindowMask) Count() int {
	return bits.OnesCount32(uint32(m))
}

// Slot returns the index of the single set bit.  Only meaningful when
// Count() == 1.
func (m WindowMask) Slot() int {
	return bits.TrailingZeros32(uint32(m))
}

func (m WindowMask) String() string {
	return fmt.Sprintf("%08b", uint32(m)&((1<<WindowCount)-1))
}

//
// CPU is the single owned handle to the processor state.  Entry-layer
// code receives it by reference and never duplicates it.
//
type CPU struct {
	PSR     PSR
	wim     WindowMask
	Windows [WindowCount]RegisterWindow
	Global  [8]uint32
	Bus     *Bus

	switchHandler   func(*CPU)
	switchRequested bool
	irq             irqLatch

	halted     bool
	haltReason string
}

func NewCPU(bus *Bus) *CPU {
	c := &CPU{Bus: bus}
	c.Reset()
	return c
}

// Reset puts the processor in the post-boot state: supervisor mode,
// traps enabled, window zero current with the invalid mark on it.
// The mark on the current slot is not a contradiction: allocation
// tests the target slot, so the boot window only trips the mark after
// the ring has wrapped all the way around.
func (c *CPU) Reset() {
	c.PSR = PSR(0).WithCWP(0) | PSRSupervisor | PSRTrapsEnabled
	c.wim = MaskBit(0)
	c.switchRequested = false
	c.irq = irqLatch{}
	c.halted = false
	c.haltReason = ""
}

func (c *CPU) InvalidMask() WindowMask {
	return c.wim
}

// SetInvalidMask is the one funnel through which the mask changes.
// A mask with zero bits or more than two bits set means the window
// state machine has lost track of the ring; callers treat that as
// unrecoverable.
func (c *CPU) SetInvalidMask(m WindowMask) error {
	n := m.Count()
	if n == 0 || n > 2 {
		return fmt.Errorf("invalid-window mask popcount %d (mask %s)", n, m)
	}
	c.wim = m
	return nil
}

func (c *CPU) CurrentWindow() *RegisterWindow {
	return &c.Windows[c.PSR.CWP()]
}

func (c *CPU) Window(slot int) *RegisterWindow {
	return &c.Windows[slot%WindowCount]
}

// AdvanceWindow attempts the window-allocation step: the pointer
// moves +1 around the ring.  If the target slot carries the invalid
// mark the pointer does not move and ok is false; the caller must
// resolve the overflow and retry.
func (c *CPU) AdvanceWindow() (target int, ok bool) {
	target = (c.PSR.CWP() + 1) % WindowCount
	if c.wim.On(target) {
		return target, false
	}
	c.PSR = c.PSR.WithCWP(target)
	return target, true
}

// ForceWindow moves the pointer onto a marked slot whose contents
// have been declared dead, clearing the slot first.  Only the
// overflow recovery path uses this; everything else goes through
// AdvanceWindow.
func (c *CPU) ForceWindow(slot int) {
	slot = slot % WindowCount
	c.Windows[slot] = RegisterWindow{}
	c.PSR = c.PSR.WithCWP(slot)
}

// RetreatWindow is the release step, pointer moves -1.  The marked
// slot is the oldest window still resident, so retreating onto it is
// legal; retreating off it would re-enter a slot whose contents were
// vacated to memory.  That is the underflow case, and the fill path
// that resolves it is owned by a collaborator, not here.
func (c *CPU) RetreatWindow() (target int, ok bool) {
	target = (c.PSR.CWP() + WindowCount - 1) % WindowCount
	if c.wim.On(c.PSR.CWP()) {
		return target, false
	}
	c.PSR = c.PSR.WithCWP(target)
	return target, true
}

// EnterTrapMode is the architectural side of taking a trap: the
// privilege bit is copied to the previous-privilege bit, the
// processor goes to supervisor mode and further traps of the same
// class are disabled until the handler re-enables them.
func (c *CPU) EnterTrapMode() {
	c.PSR &^= PSRPrevSupervisor
	if c.PSR.Supervisor() {
		c.PSR |= PSRPrevSupervisor
	}
	c.PSR |= PSRSupervisor
	c.PSR &^= PSRTrapsEnabled
}

// ExitTrapMode undoes EnterTrapMode for handlers that resume the
// interrupted code in place: privilege falls back to what the
// previous-privilege bit recorded and traps come back on.
func (c *CPU) ExitTrapMode() {
	if !c.PSR.PrevSupervisor() {
		c.PSR &^= PSRSupervisor
	}
	c.PSR |= PSRTrapsEnabled
}

func (c *CPU) EnableTraps() {
	c.PSR |= PSRTrapsEnabled
}

func (c *CPU) DisableTraps() {
	c.PSR &^= PSRTrapsEnabled
}

// Halt stops the machine.  There is no way back; the entry layer
// halts only on invariant violations where continuing would run with
// inconsistent processor state.
func (c *CPU) Halt(reason string) {
	c.halted = true
	c.haltReason = reason
}

func (c *CPU) Halted() bool {
	return c.halted
}

func (c *CPU) HaltReason() string {
	return c.haltReason
}
