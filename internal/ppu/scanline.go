package ppu

import "sort"

// Sprite is a single OAM entry already resolved to on-screen
// coordinates (X, Y are the sprite's top-left corner, not the raw
// OAM Y+16/X+8 encoding).
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

// scanSpritesForLine collects up to 10 sprites overlapping scanline
// ly, selected in OAM order, translating the raw Y+16/X+8 OAM encoding
// to on-screen coordinates, and returns them sorted by X (ties by OAM
// index). Run once, at the start of mode 2 (OAM scan).
func (p *PPU) scanSpritesForLine(ly byte, tall bool) []Sprite {
	height := 8
	if tall {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		rawY := p.oam[base]
		rawX := p.oam[base+1]
		tile := p.oam[base+2]
		attr := p.oam[base+3]
		topY := int(rawY) - 16
		if int(ly) < topY || int(ly) >= topY+height {
			continue
		}
		out = append(out, Sprite{X: int(rawX) - 8, Y: topY, Tile: tile, Attr: attr, OAMIndex: i})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].OAMIndex < out[j].OAMIndex
	})
	return out
}

// dmgShade maps a 2-bit color index through a DMG palette byte to a
// grayscale sample.
func dmgShade(colorIndex, palette byte) byte {
	switch (palette >> (colorIndex * 2)) & 0x03 {
	case 0:
		return 0xFF
	case 1:
		return 0xAA
	case 2:
		return 0x55
	default:
		return 0x00
	}
}

// mixSpritesIntoRow mixes sprites into a tile row at push time: for
// each of the up to 8 candidate sprites overlapping the 8 screen columns
// starting at baseX, override the background item at that column when
// the sprite pixel is opaque and either the sprite has no
// behind-background priority or the background color index is 0.
func (p *PPU) mixSpritesIntoRow(items *[8]fifoItem, baseX int) {
	if p.lcdc&0x02 == 0 || len(p.lineSprites) == 0 {
		return
	}
	tall := p.lcdc&0x04 != 0
	height := 8
	if tall {
		height = 16
	}
	candidates := 0
	for _, s := range p.lineSprites {
		if candidates >= 8 {
			break
		}
		if s.X+8 <= baseX || s.X >= baseX+8 {
			continue
		}
		candidates++
		row := int(p.ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		yFlip := s.Attr&0x40 != 0
		xFlip := s.Attr&0x20 != 0
		tile := s.Tile
		if tall {
			tile &^= 1
			if yFlip {
				row = height - 1 - row
			}
			if row >= 8 {
				tile |= 1
				row -= 8
			}
		} else if yFlip {
			row = 7 - row
		}
		addr := uint16(tile)*16 + uint16(row)*2
		lo := p.vram[addr]
		hi := p.vram[addr+1]
		for px := 0; px < 8; px++ {
			screenX := s.X + px
			if screenX < baseX || screenX >= baseX+8 {
				continue
			}
			bit := byte(px)
			if !xFlip {
				bit = 7 - byte(px)
			}
			ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if ci == 0 {
				continue
			}
			slot := screenX - baseX
			bgPriority := s.Attr&0x80 != 0
			if bgPriority && items[slot].ColorIndex != 0 {
				continue
			}
			pal := byte(1)
			if s.Attr&0x10 != 0 {
				pal = 2
			}
			items[slot] = fifoItem{ColorIndex: ci, Palette: pal}
		}
	}
}

// startOAMScan runs the once-per-line sprite prescan and updates the
// window-internal line counter, both anchored to mode 2's first dot.
func (p *PPU) startOAMScan() {
	p.lineSprites = p.scanSpritesForLine(p.ly, p.lcdc&0x04 != 0)
	if p.lcdc&0x20 != 0 && p.ly >= p.wy && p.wx <= 166 {
		p.winLine++
	}
	if p.winLine < 0 {
		p.curWinLine = 0
	} else {
		p.curWinLine = p.winLine
	}
}

// startPixelTransfer resets the FIFO and fetcher for a fresh
// scanline, snapshots the registers that affect rendering, and arms
// the SCX%8 discard count.
func (p *PPU) startPixelTransfer() {
	p.fifo.Clear()
	p.fetchState = fetchGetTileNum
	p.fetchSubDot = 0
	p.bgTileIndex = 0
	p.winTileIndex = 0
	p.inWindow = false
	p.curBaseX = -int(p.scx & 7)
	p.discardRemaining = int(p.scx & 7)
	p.renderX = 0
	p.mode3Done = false
	p.lineRegs[p.ly] = LineRegs{
		LCDC: p.lcdc, SCY: p.scy, SCX: p.scx, WY: p.wy, WX: p.wx,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WinLine: p.curWinLine,
	}
}

// checkWindowTrigger switches the fetcher over to the window tilemap
// the first dot the visibility test holds (line_x+7 >= WX and
// line_y >= WY), clearing the FIFO and SCX discard since the window
// is never affected by background scroll.
func (p *PPU) checkWindowTrigger() {
	if p.inWindow || p.lcdc&0x20 == 0 {
		return
	}
	if int(p.ly) < int(p.wy) {
		return
	}
	if p.renderX+7 < int(p.wx) {
		return
	}
	p.inWindow = true
	p.winTileIndex = 0
	p.curBaseX = p.renderX
	p.discardRemaining = 0
	p.fifo.Clear()
	p.fetchState = fetchGetTileNum
	p.fetchSubDot = 0
}

// stepPixelTransfer advances the fetcher and shift-out stage by one
// dot of mode 3.
func (p *PPU) stepPixelTransfer() {
	p.checkWindowTrigger()
	p.tickFetcher()
	if p.fifo.Len() <= 8 {
		return
	}
	item, ok := p.fifo.Pop()
	if !ok {
		return
	}
	if p.discardRemaining > 0 {
		p.discardRemaining--
		return
	}
	pal := p.bgp
	switch item.Palette {
	case 1:
		pal = p.obp0
	case 2:
		pal = p.obp1
	}
	v := dmgShade(item.ColorIndex, pal)
	idx := (int(p.ly)*160 + p.renderX) * 4
	p.fb[idx+0] = v
	p.fb[idx+1] = v
	p.fb[idx+2] = v
	p.fb[idx+3] = 0xFF
	p.renderX++
	if p.renderX >= 160 {
		p.mode3Done = true
	}
}
