package ppu

import "github.com/silverpine-labs/dmgcore/internal/ring"

// fifoItem is one already-mixed pixel waiting in the FIFO: a 2-bit
// color index plus which palette register resolves it to RGB.
type fifoItem struct {
	ColorIndex byte // 0..3
	Palette    byte // 0: BGP, 1: OBP0, 2: OBP1
}

// pixelFIFO holds up to 16 pixel items; the fetcher pushes 8 at a time
// and the shift-out stage drains one per dot.
type pixelFIFO struct {
	q *ring.Buffer[fifoItem]
}

func newPixelFIFO() pixelFIFO {
	return pixelFIFO{q: ring.New[fifoItem](16)}
}

func (f *pixelFIFO) ensure() {
	if f.q == nil {
		f.q = ring.New[fifoItem](16)
	}
}

func (f *pixelFIFO) Clear() {
	f.ensure()
	f.q.Clear()
}

func (f *pixelFIFO) Len() int {
	f.ensure()
	return f.q.Len()
}

// Push8 appends 8 items if there is room (at most 8 already buffered,
// the invariant that keeps the pipeline from overflowing its 16 slots).
func (f *pixelFIFO) Push8(items [8]fifoItem) bool {
	f.ensure()
	if f.q.Len() > 8 {
		return false
	}
	for _, it := range items {
		f.q.Push(it)
	}
	return true
}

func (f *pixelFIFO) Pop() (fifoItem, bool) {
	f.ensure()
	return f.q.Pop()
}

// items copies the buffered contents front-to-back without consuming
// them, for snapshotting.
func (f *pixelFIFO) items() []fifoItem {
	f.ensure()
	out := make([]fifoItem, 0, f.q.Len())
	for i := 0; i < f.q.Len(); i++ {
		v, _ := f.q.At(i)
		out = append(out, v)
	}
	return out
}

// load replaces the buffered contents with items, oldest first.
func (f *pixelFIFO) load(items []fifoItem) {
	f.ensure()
	f.q.Clear()
	for _, it := range items {
		f.q.Push(it)
	}
}

// fetchState is the pixel fetcher's five-state machine: GetTileNum,
// GetDataLow, GetDataHigh and Sleep each take two dots;
// Push retries every dot until the FIFO has room, pushes 8 mixed
// pixels, and hands control back to GetTileNum.
type fetchState byte

const (
	fetchGetTileNum fetchState = iota
	fetchGetDataLow
	fetchGetDataHigh
	fetchSleep
	fetchPush
)

// tickFetcher advances the fetcher FSM by one dot. Each two-dot state
// transitions on its second dot; Push is polled every dot and only
// advances once the FIFO has room for another 8 pixels.
func (p *PPU) tickFetcher() {
	switch p.fetchState {
	case fetchGetTileNum:
		p.fetchSubDot++
		if p.fetchSubDot >= 2 {
			p.fetchSubDot = 0
			p.latchTileNum()
			p.fetchState = fetchGetDataLow
		}
	case fetchGetDataLow:
		p.fetchSubDot++
		if p.fetchSubDot >= 2 {
			p.fetchSubDot = 0
			p.latchDataLow()
			p.fetchState = fetchGetDataHigh
		}
	case fetchGetDataHigh:
		p.fetchSubDot++
		if p.fetchSubDot >= 2 {
			p.fetchSubDot = 0
			p.latchDataHigh()
			p.fetchState = fetchSleep
		}
	case fetchSleep:
		p.fetchSubDot++
		if p.fetchSubDot >= 2 {
			p.fetchSubDot = 0
			p.fetchState = fetchPush
		}
	case fetchPush:
		if p.pushTileRow() {
			p.fetchState = fetchGetTileNum
		}
	}
}

// latchTileNum reads the tile-number byte for the tile currently
// being fetched, from the background or window tilemap.
func (p *PPU) latchTileNum() {
	var mapBase uint16
	var col, row uint16
	if p.inWindow {
		if p.lcdc&0x40 != 0 {
			mapBase = 0x9C00
		} else {
			mapBase = 0x9800
		}
		col = uint16(p.winTileIndex) & 0x1F
		row = (uint16(p.curWinLine) >> 3) & 0x1F
	} else {
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		} else {
			mapBase = 0x9800
		}
		col = (uint16(p.bgTileIndex) + uint16(p.scx)/8) & 0x1F
		row = (uint16(p.ly)+uint16(p.scy))/8%32 & 0x1F
	}
	addr := mapBase + row*32 + col
	p.fetchTileNum = p.vram[addr-0x8000]
}

func (p *PPU) fetchRow() byte {
	if p.inWindow {
		return byte(p.curWinLine & 7)
	}
	return byte((uint16(p.ly) + uint16(p.scy)) & 7)
}

func (p *PPU) tileDataAddr() uint16 {
	row := p.fetchRow()
	if p.lcdc&0x10 != 0 {
		return 0x8000 + uint16(p.fetchTileNum)*16 + uint16(row)*2
	}
	return 0x9000 + uint16(int8(p.fetchTileNum))*16 + uint16(row)*2
}

func (p *PPU) latchDataLow() {
	p.fetchDataLow = p.vram[p.tileDataAddr()-0x8000]
}

func (p *PPU) latchDataHigh() {
	p.fetchDataHigh = p.vram[p.tileDataAddr()+1-0x8000]
}

// pushTileRow mixes the latched background/window row with any
// sprites overlapping its 8 screen columns and pushes the result,
// advancing the tile cursor for the next fetch. Returns false (and
// retries next dot) if the FIFO has no room yet.
func (p *PPU) pushTileRow() bool {
	var items [8]fifoItem
	if p.lcdc&0x01 != 0 {
		for px := 0; px < 8; px++ {
			bit := 7 - byte(px)
			ci := ((p.fetchDataHigh>>bit)&1)<<1 | ((p.fetchDataLow >> bit) & 1)
			items[px] = fifoItem{ColorIndex: ci, Palette: 0}
		}
	}
	// LCDC bit 0 clear blanks the background and window layers to
	// color index 0; sprites still mix over the blank row.
	p.mixSpritesIntoRow(&items, p.curBaseX)
	if !p.fifo.Push8(items) {
		return false
	}
	p.curBaseX += 8
	if p.inWindow {
		p.winTileIndex++
	} else {
		p.bgTileIndex++
	}
	return true
}
