package leon

import (
	"testing"
)

func TestResetState(t *testing.T) {
	c := NewCPU(NewBus())
	if !c.PSR.Supervisor() {
		t.Errorf("reset should leave us in supervisor mode")
	}
	if !c.PSR.TrapsEnabled() {
		t.Errorf("reset should leave traps enabled")
	}
	if c.PSR.CWP() != 0 {
		t.Errorf("reset window pointer should be 0, got %d", c.PSR.CWP())
	}
	if c.InvalidMask().Count() != 1 {
		t.Errorf("reset mask should have exactly one bit, got %s", c.InvalidMask())
	}
}

func TestAdvanceWrapsAndTrips(t *testing.T) {
	c := NewCPU(NewBus())
	//seven advances succeed, the eighth hits the mark on slot 0
	for i := 1; i < WindowCount; i++ {
		target, ok := c.AdvanceWindow()
		if !ok {
			t.Fatalf("advance %d should not overflow", i)
		}
		if target != i {
			t.Errorf("advance %d landed on %d", i, target)
		}
	}
	target, ok := c.AdvanceWindow()
	if ok {
		t.Fatalf("wrap-around advance should trip the invalid mark")
	}
	if target != 0 {
		t.Errorf("wrap-around target should be 0, got %d", target)
	}
	if c.PSR.CWP() != WindowCount-1 {
		t.Errorf("pointer must not move on a tripped advance, got %d", c.PSR.CWP())
	}
}

func TestRetreatIsSymmetric(t *testing.T) {
	c := NewCPU(NewBus())
	c.AdvanceWindow()
	c.AdvanceWindow()
	target, ok := c.RetreatWindow()
	if !ok || target != 1 {
		t.Errorf("retreat from 2 should land on 1, got %d ok=%v", target, ok)
	}
	//the marked slot is the oldest resident window, entering it is fine
	target, ok = c.RetreatWindow()
	if !ok || target != 0 {
		t.Errorf("retreat onto the marked slot should succeed, got %d ok=%v", target, ok)
	}
	//retreating off it would leave the resident range, pointer stays
	target, ok = c.RetreatWindow()
	if ok {
		t.Errorf("retreat off the marked slot should report underflow")
	}
	if target != WindowCount-1 {
		t.Errorf("underflow target should be %d, got %d", WindowCount-1, target)
	}
	if c.PSR.CWP() != 0 {
		t.Errorf("pointer must not move on underflow, got %d", c.PSR.CWP())
	}
}

func TestMaskFunnelRejectsBadPopcount(t *testing.T) {
	c := NewCPU(NewBus())
	if err := c.SetInvalidMask(0); err == nil {
		t.Errorf("zero-bit mask must be rejected")
	}
	if err := c.SetInvalidMask(MaskBit(1) | MaskBit(3) | MaskBit(5)); err == nil {
		t.Errorf("three-bit mask must be rejected")
	}
	if err := c.SetInvalidMask(MaskBit(2) | MaskBit(6)); err != nil {
		t.Errorf("two-bit mask is a legal transient: %v", err)
	}
	if err := c.SetInvalidMask(MaskBit(4)); err != nil {
		t.Errorf("single-bit mask is the steady state: %v", err)
	}
	if c.InvalidMask().Slot() != 4 {
		t.Errorf("expected slot 4, got %d", c.InvalidMask().Slot())
	}
}

func TestEnterTrapModeTracksPrivilege(t *testing.T) {
	c := NewCPU(NewBus())
	//from supervisor
	c.EnterTrapMode()
	if !c.PSR.PrevSupervisor() {
		t.Errorf("trap from supervisor must record previous privilege")
	}
	if c.PSR.TrapsEnabled() {
		t.Errorf("trap entry must disable same-class traps")
	}
	//from user
	c.PSR &^= PSRSupervisor
	c.PSR |= PSRTrapsEnabled
	c.EnterTrapMode()
	if c.PSR.PrevSupervisor() {
		t.Errorf("trap from user must record previous privilege as user")
	}
	if !c.PSR.Supervisor() {
		t.Errorf("trap entry must raise privilege")
	}
}

func TestIRQLatchGating(t *testing.T) {
	c := NewCPU(NewBus())
	if _, _, ok := c.TakeIRQ(); ok {
		t.Errorf("nothing latched, must not fire")
	}
	c.RaiseIRQ(11, 3)
	c.DisableTraps()
	if _, _, ok := c.TakeIRQ(); ok {
		t.Errorf("traps disabled, must not fire")
	}
	if !c.PendingIRQ() {
		t.Errorf("refused delivery must keep the latch")
	}
	c.EnableTraps()
	c.PSR = c.PSR.WithPIL(3)
	if _, _, ok := c.TakeIRQ(); ok {
		t.Errorf("priority at or below the processor level, must not fire")
	}
	if !c.PendingIRQ() {
		t.Errorf("masked request must stay latched")
	}
	c.PSR = c.PSR.WithPIL(2)
	cause, priority, ok := c.TakeIRQ()
	if !ok || cause != 11 || priority != 3 {
		t.Errorf("expected cause 11 priority 3, got %d/%d ok=%v", cause, priority, ok)
	}
	if c.PendingIRQ() {
		t.Errorf("latch must clear on delivery")
	}
}

func TestIRQLatchKeepsHighestPriority(t *testing.T) {
	c := NewCPU(NewBus())
	c.RaiseIRQ(11, 3)
	c.RaiseIRQ(12, 2)
	cause, priority, _ := c.TakeIRQ()
	if cause != 11 || priority != 3 {
		t.Errorf("lower-priority raise must not replace the latch, got %d/%d", cause, priority)
	}
	c.RaiseIRQ(11, 3)
	c.RaiseIRQ(13, 9)
	cause, priority, _ = c.TakeIRQ()
	if cause != 13 || priority != 9 {
		t.Errorf("higher-priority raise must replace the latch, got %d/%d", cause, priority)
	}
}

func TestSwitchExceptionGating(t *testing.T) {
	c := NewCPU(NewBus())
	fired := 0
	c.InstallSwitchHandler(func(cpu *CPU) { fired++ })

	if c.TakeContextSwitch() {
		t.Errorf("no request latched, must not fire")
	}
	c.RequestContextSwitch()
	c.DisableTraps()
	if c.TakeContextSwitch() {
		t.Errorf("traps disabled, must not fire")
	}
	c.EnableTraps()
	if !c.TakeContextSwitch() {
		t.Errorf("request latched and traps enabled, must fire")
	}
	if fired != 1 {
		t.Errorf("handler should have run exactly once, ran %d times", fired)
	}
	if c.SwitchRequested() {
		t.Errorf("latch must clear on delivery")
	}
}
