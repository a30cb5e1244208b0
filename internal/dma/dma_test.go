package dma

import "testing"

func TestController_PrepThenTransferThenIdle(t *testing.T) {
	c := New()
	if c.Active() {
		t.Fatal("new controller should be idle")
	}
	c.Trigger(0xC0)
	if !c.Active() {
		t.Fatal("controller should be active right after trigger")
	}

	// Two preparation cycles copy nothing.
	for i := 0; i < 2; i++ {
		if copyNow, _, _ := c.Tick(); copyNow {
			t.Fatalf("prep cycle %d requested a copy", i)
		}
	}
	// Then 160 cycles copy source+i to OAM index i.
	for i := 0; i < 160; i++ {
		copyNow, src, idx := c.Tick()
		if !copyNow {
			t.Fatalf("transfer cycle %d did not request a copy", i)
		}
		if src != 0xC000+uint16(i) || idx != i {
			t.Fatalf("cycle %d: src=%#04x idx=%d", i, src, idx)
		}
	}
	if c.Active() {
		t.Fatal("controller should return to idle after 162 cycles")
	}
	if c.Register() != 0xC0 {
		t.Fatalf("register readback got %#02x", c.Register())
	}
}

func TestController_RestartMidTransfer(t *testing.T) {
	c := New()
	c.Trigger(0x80)
	for i := 0; i < 50; i++ {
		c.Tick()
	}
	c.Trigger(0x90)
	c.Tick()
	c.Tick() // prep
	copyNow, src, idx := c.Tick()
	if !copyNow || src != 0x9000 || idx != 0 {
		t.Fatalf("restart did not reset progress: copy=%v src=%#04x idx=%d", copyNow, src, idx)
	}
}
