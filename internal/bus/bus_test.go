package bus

import "testing"

// fakeCart is a minimal Cart for exercising bus routing without
// depending on internal/cart.
type fakeCart struct {
	rom [0x8000]byte
	ram [0x2000]byte
}

func (c *fakeCart) Read(addr uint16) byte {
	if addr < 0x8000 {
		return c.rom[addr]
	}
	return c.ram[addr-0xA000]
}

func (c *fakeCart) Write(addr uint16, v byte) {
	if addr >= 0xA000 {
		c.ram[addr-0xA000] = v
	}
}

// fakeVideo stands in for the PPU: a flat byte array over the ranges
// the bus delegates to it.
type fakeVideo struct {
	mem map[uint16]byte
}

func newFakeVideo() *fakeVideo { return &fakeVideo{mem: map[uint16]byte{}} }

func (v *fakeVideo) Read(addr uint16) byte  { return v.mem[addr] }
func (v *fakeVideo) Write(addr uint16, b byte) { v.mem[addr] = b }

func newTestBus() (*Bus, *fakeCart) {
	b := New()
	c := &fakeCart{}
	b.SetCart(c)
	b.SetVideo(newFakeVideo())
	return b, c
}

func TestBus_ROMAndRAM(t *testing.T) {
	b, c := newTestBus()
	c.rom[0x0100] = 0x42

	if got := b.Read(0x0100); got != 0x42 {
		t.Fatalf("ROM read got %02x, want 42", got)
	}

	b.Write(0xC000, 0x99)
	if got := b.Read(0xC000); got != 0x99 {
		t.Fatalf("RAM read got %02x, want 99", got)
	}

	b.Write(0xE000, 0x55)
	if got := b.Read(0xC000); got != 0x99 {
		t.Fatalf("echo write leaked into WRAM: got %02x", got)
	}
	if got := b.Read(0xE000); got != 0 {
		t.Fatalf("echo region read got %02x, want 0", got)
	}

	b.Write(0xFF80, 0xAB)
	if got := b.Read(0xFF80); got != 0xAB {
		t.Fatalf("HRAM read got %02x, want AB", got)
	}
}

func TestBus_UnusableAndEchoReadAsZero(t *testing.T) {
	b, _ := newTestBus()
	if got := b.Read(0xFEA5); got != 0 {
		t.Fatalf("unusable region got %02x, want 0", got)
	}
	b.Write(0xC000, 0x5A)
	if got := b.Read(0xE000); got != 0 {
		t.Fatalf("echo region got %02x, want 0", got)
	}
}

func TestBus_InterruptRegisters(t *testing.T) {
	b, _ := newTestBus()
	b.Write(0xFFFF, 0x1F)
	if got := b.Read(0xFFFF); got != 0x1F {
		t.Fatalf("IE got %02x, want 1F", got)
	}
	b.Write(0xFF0F, 0x03)
	if got := b.Read(0xFF0F); got != 0xE0|0x03 {
		t.Fatalf("IF got %02x, want %02x", got, 0xE0|0x03)
	}
}

func TestBus_TimerRegistersRoundTrip(t *testing.T) {
	b, _ := newTestBus()
	b.Write(0xFF06, 0x42) // TMA
	if got := b.Read(0xFF06); got != 0x42 {
		t.Fatalf("TMA got %02x, want 42", got)
	}
	b.Write(0xFF07, 0x05) // TAC
	if got := b.Read(0xFF07); got != 0xF8|0x05 {
		t.Fatalf("TAC got %02x, want %02x", got, 0xF8|0x05)
	}
}

func TestBus_OAMDMACopies160Bytes(t *testing.T) {
	b, _ := newTestBus()
	for i := 0; i < 0xA0; i++ {
		b.Write(0xC000+uint16(i), byte(i))
	}
	b.Write(0xFF46, 0xC0)
	for i := 0; i < 162; i++ {
		b.TickCycle()
	}
	if b.DMAActive() {
		t.Fatalf("DMA still active after 162 cycles")
	}
	for i := 0; i < 0xA0; i++ {
		if got := b.Read(0xFE00 + uint16(i)); got != byte(i) {
			t.Fatalf("OAM[%d] = %02x, want %02x", i, got, byte(i))
		}
	}
}

func TestBus_BootROMOverlayAndDisable(t *testing.T) {
	b, c := newTestBus()
	boot := make([]byte, 0x100)
	boot[0] = 0xAA
	c.rom[0] = 0x11
	b.SetBootROM(boot)

	if got := b.Read(0x0000); got != 0xAA {
		t.Fatalf("boot overlay got %02x, want AA", got)
	}
	b.Write(0xFF50, 1)
	if got := b.Read(0x0000); got != 0x11 {
		t.Fatalf("after disabling boot rom got %02x, want cart's 11", got)
	}
}

func TestBus_SaveLoadStateRoundTrip(t *testing.T) {
	b, _ := newTestBus()
	b.Write(0xC000, 0x77)
	b.Write(0xFF06, 0x10)
	snap := b.SaveState()

	b2 := New()
	b2.SetCart(&fakeCart{})
	b2.SetVideo(newFakeVideo())
	if err := b2.LoadState(snap); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got := b2.Read(0xC000); got != 0x77 {
		t.Fatalf("restored WRAM got %02x, want 77", got)
	}
	if got := b2.Read(0xFF06); got != 0x10 {
		t.Fatalf("restored TMA got %02x, want 10", got)
	}
}
