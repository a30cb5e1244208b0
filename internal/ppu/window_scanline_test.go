package ppu

import "testing"

func TestWindowTriggersImmediatelyAndRendersItsOwnTiles(t *testing.T) {
	p := New(nil)
	// LCD on, BG on, window on, window map at 0x9C00, tile data at 0x8000
	p.lcdc = 0x80 | 0x01 | 0x20 | 0x40 | 0x10
	p.wy = 0
	p.wx = 7 // renderX+7 >= wx holds from the very first pixel
	p.bgp = 0xE4
	// bg tile (never shown once the window triggers at x=0)
	p.vram[0x9800-0x8000] = 0
	p.vram[0x8000-0x8000] = 0x00
	p.vram[0x8001-0x8000] = 0xFF // bg ci=2
	// window tile, uniform ci=1
	p.vram[0x9C00-0x8000] = 0
	p.vram[0x8000-0x8000] = 0xFF
	p.vram[0x8001-0x8000] = 0x00
	p.Tick(456)

	for x := 0; x < 160; x++ {
		if v := p.fb[x*4]; v != 0xAA {
			t.Fatalf("px %d got %#x want 0xAA (window ci=1)", x, v)
		}
	}
	if lr := p.LineRegs(0); lr.WinLine != 0 {
		t.Fatalf("expected WinLine=0 at WY, got %d", lr.WinLine)
	}
}

func TestWindowDoesNotTriggerBeforeWX(t *testing.T) {
	p := New(nil)
	p.lcdc = 0x80 | 0x01 | 0x20 | 0x40 | 0x10
	p.wy = 0
	p.wx = 87 // window starts at screen column 80
	p.bgp = 0xE4
	p.vram[0x9800-0x8000] = 0
	p.vram[0x8000-0x8000] = 0x00
	p.vram[0x8001-0x8000] = 0xFF // bg ci=2 -> shade 0x55
	p.vram[0x9C00-0x8000] = 0
	p.Tick(456)

	for x := 0; x < 80; x++ {
		if v := p.fb[x*4]; v != 0x55 {
			t.Fatalf("bg px %d got %#x want 0x55", x, v)
		}
	}
}

func TestWindowNeverTriggersWhenWXTooLarge(t *testing.T) {
	p := New(nil)
	p.lcdc = 0x80 | 0x01 | 0x20 | 0x10
	p.wy = 0
	p.wx = 250
	p.bgp = 0xE4
	p.vram[0x9800-0x8000] = 0
	p.vram[0x8000-0x8000] = 0x00
	p.vram[0x8001-0x8000] = 0xFF // bg ci=2
	p.Tick(456)

	for x := 0; x < 160; x++ {
		if v := p.fb[x*4]; v != 0x55 {
			t.Fatalf("px %d got %#x want 0x55 (bg, window never visible)", x, v)
		}
	}
}
