package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/silverpine-labs/dmgcore/internal/dma"
	"github.com/silverpine-labs/dmgcore/internal/interrupt"
	"github.com/silverpine-labs/dmgcore/internal/ram"
	"github.com/silverpine-labs/dmgcore/internal/timer"
)

// Cart is the subset of cart.Cartridge the bus needs: ROM space
// (0x0000-0x7FFF) and external RAM space (0xA000-0xBFFF), both
// delegated whole since bank switching is the cartridge's business.
type Cart interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// Video is the subset of ppu.PPU the bus delegates VRAM (0x8000-9FFF),
// OAM (0xFE00-FE9F), and the LCD register block (0xFF40-0xFF4B) to.
type Video interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// Audio is the subset of apu.APU the bus delegates the sound register
// block (0xFF10-0xFF3F) to.
type Audio interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// Joypad button bitmasks for SetButtons. Set bits mean "pressed".
const (
	JoypRight     = 1 << 0
	JoypLeft      = 1 << 1
	JoypUp        = 1 << 2
	JoypDown      = 1 << 3
	JoypA         = 1 << 4
	JoypB         = 1 << 5
	JoypSelectBtn = 1 << 6
	JoypStart     = 1 << 7
)

// Bus is the DMG address bus: the single read/write entry point the
// CPU uses. It dispatches by comparing the raw address against the
// fixed segment intervals and delegates to one port/handler per
// segment; each segment's logic (timer, DMA, interrupts, RAM) lives
// in its own package.
type Bus struct {
	cart  Cart
	video Video
	audio Audio

	wram *ram.Bank
	hram *ram.Bank

	wramPort Port
	hramPort Port

	irq *interrupt.Controller
	tmr *timer.Timer
	dmaCtl *dma.Controller

	joypSelect byte
	joypad     byte
	joypLower4 byte

	sb byte
	sc byte
	sw io.Writer

	bootROM    []byte
	bootMapped bool
}

// New constructs a Bus with WRAM/HRAM allocated and the interrupt
// controller, timer, and DMA controller wired in. Cart/Video/Audio
// must be supplied via SetCart/SetVideo/SetAudio before use.
func New() *Bus {
	irq := interrupt.New()
	wram := ram.NewWRAM()
	hram := ram.NewHRAM()
	b := &Bus{
		wram: wram,
		hram: hram,
		wramPort: NewPort(0xC000, wram),
		hramPort: NewPort(0xFF80, hram),
		irq:  irq,
		tmr:  timer.New(irq),
		dmaCtl: dma.New(),
	}
	return b
}

func (b *Bus) SetCart(c Cart)     { b.cart = c }
func (b *Bus) SetVideo(v Video)   { b.video = v }
func (b *Bus) SetAudio(a Audio)   { b.audio = a }

// Interrupts returns the bus's interrupt controller, through which
// components outside the bus (such as the PPU's requester) raise
// interrupts.
func (b *Bus) Interrupts() *interrupt.Controller { return b.irq }

// SetSerialWriter sets a sink that receives bytes written via the
// serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM installs a boot ROM image that shadows cartridge
// addresses 0x0000-0x00FF until a nonzero write to 0xFF50.
func (b *Bus) SetBootROM(img []byte) {
	if len(img) < 0x100 {
		b.bootROM = nil
		b.bootMapped = false
		return
	}
	b.bootROM = make([]byte, 0x100)
	copy(b.bootROM, img[:0x100])
	b.bootMapped = true
}

// BootMapped reports whether the boot ROM overlay is still active.
func (b *Bus) BootMapped() bool { return b.bootMapped }

// SetButtons sets which joypad buttons are currently pressed (mask of
// the Joyp* constants; set bits mean pressed) and raises the Joypad
// interrupt on any newly-selected-and-pressed button.
func (b *Bus) SetButtons(mask byte) {
	b.joypad = mask
	b.updateJoypadIRQ()
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr <= 0x7FFF:
		if b.bootMapped && addr <= 0x00FF {
			return b.bootROM[addr]
		}
		if b.cart == nil {
			return 0xFF
		}
		return b.cart.Read(addr)
	case addr <= 0x9FFF:
		return b.readVideo(addr)
	case addr <= 0xBFFF:
		if b.cart == nil {
			return 0xFF
		}
		return b.cart.Read(addr)
	case addr <= 0xDFFF:
		v, _ := b.wramPort.Read(addr)
		return v
	case addr <= 0xFDFF:
		// echo region, unsupported
		return 0
	case addr <= 0xFE9F:
		if b.dmaCtl.Active() {
			return 0xFF
		}
		return b.readVideo(addr)
	case addr <= 0xFEFF:
		return 0
	case addr <= 0xFF7F:
		return b.readIO(addr)
	case addr <= 0xFFFE:
		v, _ := b.hramPort.Read(addr)
		return v
	default:
		return b.irq.ReadIE()
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr <= 0x7FFF:
		if b.cart != nil {
			b.cart.Write(addr, value)
		}
	case addr <= 0x9FFF:
		b.writeVideo(addr, value)
	case addr <= 0xBFFF:
		if b.cart != nil {
			b.cart.Write(addr, value)
		}
	case addr <= 0xDFFF:
		_ = b.wramPort.Write(addr, value)
	case addr <= 0xFDFF:
		// echo region, ignored
	case addr <= 0xFE9F:
		if b.dmaCtl.Active() {
			return
		}
		b.writeVideo(addr, value)
	case addr <= 0xFEFF:
		// unusable, ignored
	case addr <= 0xFF7F:
		b.writeIO(addr, value)
	case addr <= 0xFFFE:
		_ = b.hramPort.Write(addr, value)
	default:
		b.irq.WriteIE(value)
	}
}

func (b *Bus) readVideo(addr uint16) byte {
	if b.video == nil {
		return 0xFF
	}
	return b.video.Read(addr)
}

func (b *Bus) writeVideo(addr uint16, v byte) {
	if b.video != nil {
		b.video.Write(addr, v)
	}
}

func (b *Bus) readIO(addr uint16) byte {
	switch {
	case addr == 0xFF00:
		return b.readJoyp()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr >= 0xFF04 && addr <= 0xFF07:
		v, _ := b.tmr.ReadIO(addr)
		return v
	case addr == 0xFF0F:
		v, _ := b.irq.ReadIO(addr)
		return v
	case addr == 0xFF46:
		v, _ := b.dmaCtl.ReadIO(addr)
		return v
	case addr == 0xFF50:
		return 0xFF
	case addr >= 0xFF10 && addr <= 0xFF3F:
		if b.audio == nil {
			return 0xFF
		}
		return b.audio.Read(addr)
	case addr >= 0xFF40 && addr <= 0xFF4B:
		return b.readVideo(addr)
	default:
		return 0xFF
	}
}

func (b *Bus) writeIO(addr uint16, v byte) {
	switch {
	case addr == 0xFF00:
		b.joypSelect = v & 0x30
		b.updateJoypadIRQ()
	case addr == 0xFF01:
		b.sb = v
	case addr == 0xFF02:
		b.sc = v & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.irq.Request(interrupt.Serial)
			b.sc &^= 0x80
		}
	case addr >= 0xFF04 && addr <= 0xFF07:
		b.tmr.WriteIO(addr, v)
	case addr == 0xFF0F:
		b.irq.WriteIO(addr, v)
	case addr == 0xFF46:
		b.dmaCtl.WriteIO(addr, v)
	case addr == 0xFF50:
		if v != 0 {
			b.bootMapped = false
		}
	case addr >= 0xFF10 && addr <= 0xFF3F:
		if b.audio != nil {
			b.audio.Write(addr, v)
		}
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.writeVideo(addr, v)
	}
}

func (b *Bus) readJoyp() byte {
	res := byte(0xC0 | (b.joypSelect & 0x30) | 0x0F)
	if b.joypSelect&0x10 == 0 {
		if b.joypad&JoypRight != 0 {
			res &^= 0x01
		}
		if b.joypad&JoypLeft != 0 {
			res &^= 0x02
		}
		if b.joypad&JoypUp != 0 {
			res &^= 0x04
		}
		if b.joypad&JoypDown != 0 {
			res &^= 0x08
		}
	}
	if b.joypSelect&0x20 == 0 {
		if b.joypad&JoypA != 0 {
			res &^= 0x01
		}
		if b.joypad&JoypB != 0 {
			res &^= 0x02
		}
		if b.joypad&JoypSelectBtn != 0 {
			res &^= 0x04
		}
		if b.joypad&JoypStart != 0 {
			res &^= 0x08
		}
	}
	return res
}

func (b *Bus) updateJoypadIRQ() {
	newLower := byte(0x0F)
	if b.joypSelect&0x10 == 0 {
		if b.joypad&JoypRight != 0 {
			newLower &^= 0x01
		}
		if b.joypad&JoypLeft != 0 {
			newLower &^= 0x02
		}
		if b.joypad&JoypUp != 0 {
			newLower &^= 0x04
		}
		if b.joypad&JoypDown != 0 {
			newLower &^= 0x08
		}
	}
	if b.joypSelect&0x20 == 0 {
		if b.joypad&JoypA != 0 {
			newLower &^= 0x01
		}
		if b.joypad&JoypB != 0 {
			newLower &^= 0x02
		}
		if b.joypad&JoypSelectBtn != 0 {
			newLower &^= 0x04
		}
		if b.joypad&JoypStart != 0 {
			newLower &^= 0x08
		}
	}
	falling := b.joypLower4 &^ newLower
	if falling != 0 {
		b.irq.Request(interrupt.Joypad)
	}
	b.joypLower4 = newLower
}

// TickCycle advances the timer and OAM DMA by one M-cycle. The CPU
// driver calls this once per M-cycle elapsed; the PPU and APU are
// ticked separately by the emulator's top-level step since they run
// off the same cycle count but are owned outside the bus.
func (b *Bus) TickCycle() {
	b.tmr.Tick()
	if copy, src, idx := b.dmaCtl.Tick(); copy {
		v := b.Read(src)
		b.writeVideo(0xFE00+uint16(idx), v)
	}
}

// DMAActive reports whether an OAM DMA transfer is in progress.
func (b *Bus) DMAActive() bool { return b.dmaCtl.Active() }

// --- Save/Load state ---

type State struct {
	WRAM, HRAM             []byte
	Irq                    interrupt.State
	Tmr                    timer.State
	Dma                    dma.State
	JoypSelect, Joypad, JoypLower4 byte
	SB, SC                 byte
	BootMapped             bool
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := State{
		WRAM: append([]byte(nil), b.wram.Raw()...),
		HRAM: append([]byte(nil), b.hram.Raw()...),
		Irq:  b.irq.SaveState(),
		Tmr:  b.tmr.SaveState(),
		Dma:  b.dmaCtl.SaveState(),
		JoypSelect: b.joypSelect, Joypad: b.joypad, JoypLower4: b.joypLower4,
		SB: b.sb, SC: b.sc,
		BootMapped: b.bootMapped,
	}
	_ = enc.Encode(s)
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s State
	if err := dec.Decode(&s); err != nil {
		return err
	}
	b.wram.LoadRaw(s.WRAM)
	b.hram.LoadRaw(s.HRAM)
	b.irq.LoadState(s.Irq)
	b.tmr.LoadState(s.Tmr)
	b.dmaCtl.LoadState(s.Dma)
	b.joypSelect, b.joypad, b.joypLower4 = s.JoypSelect, s.Joypad, s.JoypLower4
	b.sb, b.sc = s.SB, s.SC
	b.bootMapped = s.BootMapped
	return nil
}
