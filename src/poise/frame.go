package poise

import (
	"poise/src/hardware/leon"
)

// Two stack-resident records live in this file.  The trap frame is
// built once per trap and owned by the trap sequence until the trap
// returns.  The interrupt context is the smaller block the trampoline
// captures at interrupt entry; one exists per nesting level, each at
// its own stack address.

// TrapFrame layout, one word each: PSR, PC, NPC, the eight globals,
// one pad word so the frame stays 8-byte sized.
const TrapFrameWords = 12
const TrapFrameBytes = TrapFrameWords * leon.WordSize

type TrapFrame struct {
	Addr   uint32 //where the frame lives
	PSR    leon.PSR
	PC     uint32
	NPC    uint32
	Global [8]uint32
}

// writeOut stores the frame at its address.  Trap frames only ever
// live on the kernel stack, so a fault here is not survivable; the
// caller checks.
func (f *TrapFrame) writeOut(bus *leon.Bus) error {
	words := [TrapFrameWords]uint32{
		uint32(f.PSR), f.PC, f.NPC,
		f.Global[0], f.Global[1], f.Global[2], f.Global[3],
		f.Global[4], f.Global[5], f.Global[6], f.Global[7],
		0,
	}
	for i, w := range words {
		if err := bus.Store32(f.Addr+uint32(i*leon.WordSize), w); err != nil {
			return err
		}
	}
	return nil
}

func buildTrapFrame(cpu *leon.CPU, addr uint32, pc uint32, npc uint32) (*TrapFrame, error) {
	f := &TrapFrame{
		Addr:   addr,
		PSR:    cpu.PSR,
		PC:     pc,
		NPC:    npc,
		Global: cpu.Global,
	}
	if err := f.writeOut(cpu.Bus); err != nil {
		return nil, err
	}
	return f, nil
}

// InterruptContext layout, one word each: PSR, PC, then the six
// scratch globals the dispatcher is allowed to clobber.  Eight words,
// which keeps the active stack at the alignment the architecture
// demands.
const InterruptContextWords = 8
const InterruptContextBytes = InterruptContextWords * leon.WordSize

// The low-priority context-switch exception owns only the scratch
// half of the frame; the PSR/PC half belongs to the interrupt that
// built it.
const switchOwnedWords = 6
const switchOwnedOffset = 2 * leon.WordSize

type InterruptContext struct {
	Addr    uint32
	PSR     leon.PSR
	PC      uint32
	Scratch [6]uint32
}

func (c *InterruptContext) writeOut(bus *leon.Bus) error {
	words := [InterruptContextWords]uint32{
		uint32(c.PSR), c.PC,
		c.Scratch[0], c.Scratch[1], c.Scratch[2],
		c.Scratch[3], c.Scratch[4], c.Scratch[5],
	}
	for i, w := range words {
		if err := bus.Store32(c.Addr+uint32(i*leon.WordSize), w); err != nil {
			return err
		}
	}
	return nil
}

// readBack refetches the context from the stack.  Used on the resume
// path so register restoration always comes from the frame, never
// from a stale Go-side copy.
func readBackInterruptContext(bus *leon.Bus, addr uint32) (*InterruptContext, error) {
	var words [InterruptContextWords]uint32
	for i := range words {
		v, err := bus.Load32(addr + uint32(i*leon.WordSize))
		if err != nil {
			return nil, err
		}
		words[i] = v
	}
	c := &InterruptContext{
		Addr: addr,
		PSR:  leon.PSR(words[0]),
		PC:   words[1],
	}
	copy(c.Scratch[:], words[2:])
	return c, nil
}
