package interrupt

import "testing"

func TestController_PriorityOrder(t *testing.T) {
	c := New()
	c.WriteIE(0x1F)
	c.Request(Timer)
	c.Request(VBlank)
	c.Request(Joypad)

	bit, vec, ok := c.Highest()
	if !ok || bit != VBlank || vec != 0x40 {
		t.Fatalf("got bit=%d vec=%#x ok=%v, want VBlank/0x40", bit, vec, ok)
	}
	c.Clear(VBlank)
	bit, vec, ok = c.Highest()
	if !ok || bit != Timer || vec != 0x50 {
		t.Fatalf("got bit=%d vec=%#x ok=%v, want Timer/0x50", bit, vec, ok)
	}
}

func TestController_PendingRequiresEnable(t *testing.T) {
	c := New()
	c.Request(VBlank)
	if c.Pending() {
		t.Fatalf("expected no pending interrupt while IE=0")
	}
	c.WriteIE(0x01)
	if !c.Pending() {
		t.Fatalf("expected pending once IE enables VBlank")
	}
}

func TestController_SaveLoadState(t *testing.T) {
	c := New()
	c.WriteIE(0x0A)
	c.Request(Serial)
	s := c.SaveState()

	c2 := New()
	c2.LoadState(s)
	if c2.ReadIE() != 0x0A {
		t.Fatalf("IE not restored")
	}
	if c2.ReadIF()&0x08 == 0 {
		t.Fatalf("IF not restored")
	}
}
