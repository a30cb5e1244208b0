package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// LineRegs is a snapshot of the registers that affect rendering, taken
// at the moment a scanline enters mode 3 (pixel transfer), plus the
// window-internal line counter at that point.
type LineRegs struct {
	LCDC, SCY, SCX, WY, WX, BGP, OBP0, OBP1 byte
	WinLine                                 int
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, and basic timing.
// It exposes CPU-facing Read/Write for VRAM/OAM and PPU IO regs.
type PPU struct {
	// memory
	vram [0x2000]byte // 0x8000–0x9FFF
	oam  [0xA0]byte   // 0xFE00–0xFE9F

	// regs
	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	// onLine153 marks the tail of scanline 153, where LY already reads
	// 0 but the PPU is still in V-blank until the line's dots run out.
	onLine153 bool

	winLine    int // window-internal line counter, -1 until first activation this frame
	curWinLine int // winLine snapshot taken at this line's OAM scan

	lineRegs [144]LineRegs

	fb [160 * 144 * 4]byte // RGBA8888 output, filled dot-by-dot during mode 3

	req InterruptRequester

	// Mode-3 pixel pipeline state: the fetcher FSM, its FIFO, the
	// sprite list prescanned at OAM-scan time, and the
	// render/discard cursors. mode3Done flips once render-x reaches
	// 160, ending mode 3 early instead of at a fixed dot count.
	fetchState        fetchState
	fetchSubDot       int
	fetchTileNum      byte
	fetchDataLow      byte
	fetchDataHigh     byte
	bgTileIndex       int
	winTileIndex      int
	inWindow          bool
	curBaseX          int
	discardRemaining  int
	renderX           int
	mode3Done         bool
	fifo              pixelFIFO
	lineSprites       []Sprite
}

func New(req InterruptRequester) *PPU {
	return &PPU{req: req, winLine: -1, fifo: newPixelFIFO()}
}

// Framebuffer returns the 160x144 RGBA8888 frame produced by the most
// recently rendered scanlines.
func (p *PPU) Framebuffer() []byte { return p.fb[:] }

// LineRegs returns the register snapshot captured for scanline ly, or
// the zero value if that line has not yet been rendered this frame.
func (p *PPU) LineRegs(ly int) LineRegs {
	if ly < 0 || ly >= len(p.lineRegs) {
		return LineRegs{}
	}
	return p.lineRegs[ly]
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		// VRAM is inaccessible to the CPU during mode 3
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		// OAM is inaccessible during modes 2 and 3
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		// bit 7 reads as 1; bits 6..3 enables; bit 2 coincidence; bits 1..0 mode
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			// Turning LCD off resets LY/mode
			p.ly = 0
			p.dot = 0
			p.onLine153 = false
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			// Turning LCD on: start at LY=0, mode 2 (OAM)
			p.ly = 0
			p.dot = 0
			p.winLine = -1
			p.mode3Done = false
			p.onLine153 = false
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.mode3Done = false
		p.onLine153 = false
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Tick advances PPU state by the given number of dots (T-cycles).
// Mode 3 drives the fetcher/FIFO one dot at a time and ends as soon
// as render-x reaches the last column, rather than at a fixed dot
// count.
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 { // LCD off
			continue
		}
		p.dot++
		// Scanline 153 spends almost all of its dots reporting LY=0
		// while remaining in V-blank until the line's dots run out.
		if p.ly == 153 && p.dot >= 4 && !p.onLine153 {
			p.onLine153 = true
			p.ly = 0
			p.updateLYC()
		}
		// Mode scheduling
		var mode byte
		if p.ly >= 144 || p.onLine153 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case !p.mode3Done:
				mode = 3
			default:
				mode = 0
			}
		}
		p.setMode(mode)
		if mode == 3 {
			p.stepPixelTransfer()
		}

		if p.dot >= 456 {
			p.dot = 0
			p.mode3Done = false
			lyChanged := true
			if p.onLine153 {
				// frame boundary: LY already reads 0 and was compared
				p.onLine153 = false
				p.winLine = -1
				lyChanged = false
			} else {
				p.ly++
			}
			if p.ly == 144 {
				// Enter VBlank
				if p.req != nil {
					p.req(0)
				} // VBlank IF
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				} // STAT VBlank
			}
			if lyChanged {
				p.updateLYC()
			}
			// Set mode for new line start (dot=0)
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0: // HBlank
		if (p.stat & (1 << 3)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 2: // OAM scan: prescan sprites and advance the window line counter
		if p.ly < 144 {
			p.startOAMScan()
		}
		if (p.stat & (1 << 5)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 3: // pixel transfer: reset the FIFO/fetcher for this scanline
		if p.ly < 144 {
			p.startPixelTransfer()
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat & (1 << 6)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }

// State is the gob-encoded snapshot of everything the PPU owns: VRAM,
// OAM, the register block, the dot/line counters, and the in-flight
// mode-3 fetcher/FIFO state (a snapshot can land mid-scanline, since
// the emulator ticks the PPU inside a single CPU instruction's worth
// of dots). The framebuffer and per-line register cache are
// reconstructible from a re-render and are not persisted.
type State struct {
	VRAM [0x2000]byte
	OAM  [0xA0]byte

	LCDC, STAT, SCY, SCX, LY, LYC, BGP, OBP0, OBP1, WY, WX byte

	Dot, WinLine, CurWinLine int
	OnLine153                bool

	FetchState                                fetchState
	FetchSubDot                               int
	FetchTileNum, FetchDataLow, FetchDataHigh byte
	BGTileIndex, WinTileIndex                 int
	InWindow                                  bool
	CurBaseX, DiscardRemaining, RenderX       int
	Mode3Done                                 bool
	FIFO                                      []fifoItem
	LineSprites                               []Sprite
}

func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	s := State{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, WinLine: p.winLine, CurWinLine: p.curWinLine, OnLine153: p.onLine153,
		FetchState: p.fetchState, FetchSubDot: p.fetchSubDot,
		FetchTileNum: p.fetchTileNum, FetchDataLow: p.fetchDataLow, FetchDataHigh: p.fetchDataHigh,
		BGTileIndex: p.bgTileIndex, WinTileIndex: p.winTileIndex, InWindow: p.inWindow,
		CurBaseX: p.curBaseX, DiscardRemaining: p.discardRemaining, RenderX: p.renderX,
		Mode3Done: p.mode3Done, FIFO: p.fifo.items(), LineSprites: p.lineSprites,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) error {
	var s State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.winLine, p.curWinLine, p.onLine153 = s.Dot, s.WinLine, s.CurWinLine, s.OnLine153
	p.fetchState, p.fetchSubDot = s.FetchState, s.FetchSubDot
	p.fetchTileNum, p.fetchDataLow, p.fetchDataHigh = s.FetchTileNum, s.FetchDataLow, s.FetchDataHigh
	p.bgTileIndex, p.winTileIndex, p.inWindow = s.BGTileIndex, s.WinTileIndex, s.InWindow
	p.curBaseX, p.discardRemaining, p.renderX = s.CurBaseX, s.DiscardRemaining, s.RenderX
	p.mode3Done, p.lineSprites = s.Mode3Done, s.LineSprites
	p.fifo.load(s.FIFO)
	return nil
}

// Read and Write satisfy bus.Video, which still speaks the plain
// Read/Write naming the rest of the address-space segments use.
func (p *PPU) Read(addr uint16) byte          { return p.CPURead(addr) }
func (p *PPU) Write(addr uint16, value byte) { p.CPUWrite(addr, value) }
