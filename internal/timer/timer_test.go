package timer

import "testing"

type countingIRQ struct{ n int }

func (c *countingIRQ) Request(bit int) {
	if bit == 2 {
		c.n++
	}
}

func TestTimer_FallingEdgeIncrementsTIMA(t *testing.T) {
	irq := &countingIRQ{}
	tm := New(irq)
	tm.WriteIO(0xFF07, 0x05) // enabled, bit 3: falls every 16 ticks

	for i := 0; i < 16; i++ {
		tm.Tick()
	}
	v, _ := tm.ReadIO(0xFF05)
	if v != 1 {
		t.Fatalf("TIMA = %d, want 1 after one falling edge", v)
	}
}

func TestTimer_OverflowReloadsAfterDelay(t *testing.T) {
	irq := &countingIRQ{}
	tm := New(irq)
	tm.WriteIO(0xFF06, 0x55) // TMA
	tm.WriteIO(0xFF07, 0x05)
	tm.WriteIO(0xFF05, 0xFF)

	for i := 0; i < 16; i++ {
		tm.Tick()
	}
	v, _ := tm.ReadIO(0xFF05)
	if v != 0 {
		t.Fatalf("TIMA = %#x immediately after overflow, want 0", v)
	}
	for i := 0; i < 4; i++ {
		tm.Tick()
	}
	v, _ = tm.ReadIO(0xFF05)
	if v != 0x55 {
		t.Fatalf("TIMA = %#x after reload delay, want TMA (0x55)", v)
	}
	if irq.n != 1 {
		t.Fatalf("expected exactly one timer interrupt, got %d", irq.n)
	}
}

func TestTimer_TIMAWriteDuringDelayCancelsReload(t *testing.T) {
	irq := &countingIRQ{}
	tm := New(irq)
	tm.WriteIO(0xFF07, 0x05)
	tm.WriteIO(0xFF05, 0xFF)
	for i := 0; i < 16; i++ {
		tm.Tick()
	}
	tm.WriteIO(0xFF05, 0x20)
	for i := 0; i < 4; i++ {
		tm.Tick()
	}
	v, _ := tm.ReadIO(0xFF05)
	if v != 0x20 {
		t.Fatalf("TIMA = %#x, want the cancelled-reload write (0x20) to stick", v)
	}
}
