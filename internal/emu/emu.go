// Package emu wires bus/cpu/ppu/apu/cart into a single stateful
// Machine, the way cmd/cpurunner wires the same pieces by hand for a
// one-shot test-ROM run. Machine additionally owns ROM/battery/state
// file I/O, the frame-stepping loop, and the cosmetic DMG compat
// palette.
package emu

import (
	"bytes"
	"compress/flate"
	"encoding/gob"
	"io"
	"os"
	"strings"

	"github.com/silverpine-labs/dmgcore/internal/apu"
	"github.com/silverpine-labs/dmgcore/internal/bus"
	"github.com/silverpine-labs/dmgcore/internal/cart"
	"github.com/silverpine-labs/dmgcore/internal/cpu"
	"github.com/silverpine-labs/dmgcore/internal/interrupt"
	"github.com/silverpine-labs/dmgcore/internal/ppu"
	"github.com/silverpine-labs/dmgcore/internal/ring"
	"github.com/silverpine-labs/dmgcore/internal/status"
)

// Buttons is the joypad state for one input sample.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// rtcTicker is satisfied by cartridges (MBC3) that drive a real-time
// clock from wall time; Machine advances it once per frame rather
// than once per T-cycle.
type rtcTicker interface {
	Tick()
}

// Machine owns one DMG session: the address bus and the four
// components hung off it, plus the currently loaded cartridge. Per
// the component lifecycle note, the bus/cpu/ppu/apu quartet is
// rebuilt whole on every cartridge (re)load, since a fresh ROM means
// fresh VRAM/OAM/sound state with nothing worth carrying over.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU
	ppu *ppu.PPU
	apu *apu.APU
	crt cart.Cartridge

	header  *cart.Header
	romPath string
	bootROM []byte

	vblankHit bool

	saveGame cart.SaveFunc

	serial      io.Writer
	debugSerial *ring.Buffer[byte]

	compatPaletteID int
	useCGBBG        bool
}

// serialSink feeds every byte written to the serial port into the
// machine's debug accumulator before forwarding it to whatever
// external sink SetSerialWriter installed. Keeping the accumulator on
// the Machine (not package-level) lets multiple machines coexist.
type serialSink struct{ m *Machine }

func (s serialSink) Write(p []byte) (int, error) {
	for _, b := range p {
		if s.m.debugSerial.Full() {
			s.m.debugSerial.Pop()
		}
		s.m.debugSerial.Push(b)
	}
	if s.m.serial != nil {
		return s.m.serial.Write(p)
	}
	return len(p), nil
}

// New builds a Machine with no cartridge loaded; reads return 0xFF
// and writes are discarded until LoadCartridge succeeds.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg, debugSerial: ring.New[byte](256)}
	m.rebuild()
	return m
}

// DebugSerial returns the most recent bytes written to the serial
// port (up to the accumulator's fixed capacity), independent of
// whether an external SetSerialWriter sink is attached.
func (m *Machine) DebugSerial() []byte {
	out := make([]byte, 0, m.debugSerial.Len())
	for i := 0; i < m.debugSerial.Len(); i++ {
		if v, ok := m.debugSerial.At(i); ok {
			out = append(out, v)
		}
	}
	return out
}

// rebuild discards the current bus/cpu/ppu/apu and constructs a fresh
// quartet, wiring the VBlank-detecting interrupt requester the frame
// loop relies on. Called from New and from every successful
// LoadCartridge.
func (m *Machine) rebuild() {
	b := bus.New()
	m.ppu = ppu.New(func(bit int) {
		if bit == interrupt.VBlank {
			m.vblankHit = true
		}
		b.Interrupts().Request(bit)
	})
	m.apu = apu.New(0)
	b.SetVideo(m.ppu)
	b.SetAudio(m.apu)
	b.SetSerialWriter(serialSink{m})
	m.bus = b
	m.cpu = cpu.New(b)
	if m.crt != nil {
		b.SetCart(m.crt)
	}
}

// SetSerialWriter attaches a sink for serial-port bytes (SB writes
// with a pending SC transfer), surviving across cartridge reloads.
// Bytes always also land in the debug-serial accumulator regardless
// of this sink; see DebugSerial.
func (m *Machine) SetSerialWriter(w io.Writer) {
	m.serial = w
}

// SetBootROM installs a boot image used by subsequent LoadCartridge
// or ResetWithBoot calls.
func (m *Machine) SetBootROM(img []byte) {
	m.bootROM = img
}

// LoadCartridge parses rom's header, verifies its checksum, builds
// the matching MBC, and rewires a fresh bus/cpu/ppu/apu quartet
// around it. boot, if at least 0x100 bytes, maps as a boot ROM and
// the CPU starts at PC=0; otherwise the CPU is primed with the
// typical post-boot register state.
func (m *Machine) LoadCartridge(rom, boot []byte) error {
	if len(rom) < 0x150 {
		return status.New(status.InvalidArgument, "ROM too small to contain a header")
	}
	if !cart.HeaderChecksumOK(rom) {
		return status.New(status.ChecksumFailure, "cartridge header checksum mismatch")
	}
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return status.New(status.InvalidArgument, err.Error())
	}

	m.Eject()
	m.crt = cart.NewCartridge(rom)
	if bb, ok := m.crt.(cart.BatteryBacked); ok {
		bb.SetSaveFunc(m.saveGame)
	}
	m.header = h
	m.rebuild()

	if len(boot) >= 0x100 {
		m.bootROM = boot
		m.ResetWithBoot()
	} else {
		m.ResetPostBoot()
	}

	if id, ok := autoCompatPaletteFromHeader(h); ok {
		m.compatPaletteID = id
	}
	return nil
}

// LoadROMFromFile reads path and loads it via LoadCartridge, using
// whatever boot ROM is currently installed. It also records path as
// ROMPath for battery/state file placement.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return status.New(status.FileNotFound, err.Error())
	}
	if err := m.LoadCartridge(data, m.bootROM); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path LoadROMFromFile last loaded, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the loaded cartridge's header title, trimmed of
// padding, or "" if no cartridge is loaded.
func (m *Machine) ROMTitle() string {
	return normalizedTitle(m.header)
}

// SetSaveGameFunc installs the callback that receives battery-backed
// RAM whenever the cartridge flushes unsaved content (bank switches
// away from a dirtied bank, or unload). Survives cartridge reloads.
func (m *Machine) SetSaveGameFunc(fn func(data []byte)) {
	m.saveGame = fn
	if bb, ok := m.crt.(cart.BatteryBacked); ok {
		bb.SetSaveFunc(fn)
	}
}

// Eject flushes any unsaved battery-backed RAM through the save
// callback and drops the current cartridge. A no-op with none loaded.
func (m *Machine) Eject() {
	if bb, ok := m.crt.(cart.BatteryBacked); ok {
		bb.Flush()
	}
	m.crt = nil
	m.header = nil
}

// LoadBattery restores external RAM (and, for MBC3+RTC carts, the
// persisted clock) from a prior SaveBattery blob. Reports false if
// the loaded cartridge has no battery-backed RAM to restore.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.crt.(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns the loaded cartridge's battery-backed RAM (and
// RTC state, where applicable). ok is false if the cartridge has no
// battery-backed RAM.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.crt.(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	data := bb.SaveRAM()
	if data == nil {
		return nil, false
	}
	return data, true
}

// snapshot is the top-level save-state envelope: one gob-encoded blob
// per component, matching each component's own SaveState/LoadState
// format so a new component version can reject an incompatible inner
// blob without corrupting the others.
type snapshot struct {
	Bus, CPU, PPU, APU, Cart []byte
	ROMPath                  string
}

// SaveStateToFile writes a full snapshot (bus, CPU, PPU, APU, and
// cartridge banking/RTC state) to path.
func (m *Machine) SaveStateToFile(path string) error {
	s := snapshot{
		Bus:     m.bus.SaveState(),
		CPU:     m.cpu.SaveState(),
		PPU:     m.ppu.SaveState(),
		APU:     m.apu.SaveState(),
		ROMPath: m.romPath,
	}
	if m.crt != nil {
		s.Cart = m.crt.SaveState()
	}
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(s); err != nil {
		return status.New(status.Generic, err.Error())
	}

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return status.New(status.Generic, err.Error())
	}
	if _, err := fw.Write(raw.Bytes()); err != nil {
		fw.Close()
		return status.New(status.Generic, err.Error())
	}
	if err := fw.Close(); err != nil {
		return status.New(status.Generic, err.Error())
	}

	if err := os.WriteFile(path, compressed.Bytes(), 0644); err != nil {
		return status.New(status.Generic, err.Error())
	}
	return nil
}

// LoadStateFromFile restores a snapshot written by SaveStateToFile
// into the current Machine. The cartridge itself (ROM bytes) is not
// part of the snapshot; a matching ROM must already be loaded.
func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return status.New(status.FileNotFound, err.Error())
	}
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	var s snapshot
	if err := gob.NewDecoder(fr).Decode(&s); err != nil {
		return status.New(status.ChecksumFailure, err.Error())
	}
	if err := m.bus.LoadState(s.Bus); err != nil {
		return status.New(status.Generic, err.Error())
	}
	if err := m.cpu.LoadState(s.CPU); err != nil {
		return status.New(status.Generic, err.Error())
	}
	if err := m.ppu.LoadState(s.PPU); err != nil {
		return status.New(status.Generic, err.Error())
	}
	m.apu.LoadState(s.APU)
	if m.crt != nil && len(s.Cart) > 0 {
		m.crt.LoadState(s.Cart)
	}
	return nil
}

// applyPostBootIO writes the IO register values a real DMG boot ROM
// leaves behind, for the no-boot-ROM path (mirrors cpurunner's
// equivalent setup for test ROMs that assume this state).
func (m *Machine) applyPostBootIO() {
	writes := []struct {
		addr uint16
		v    byte
	}{
		{0xFF05, 0x00}, {0xFF06, 0x00}, {0xFF07, 0x00},
		{0xFF10, 0x80}, {0xFF11, 0xBF}, {0xFF12, 0xF3},
		{0xFF14, 0xBF}, {0xFF16, 0x3F}, {0xFF17, 0x00},
		{0xFF19, 0xBF}, {0xFF1A, 0x7F}, {0xFF1B, 0xFF},
		{0xFF1C, 0x9F}, {0xFF1E, 0xBF}, {0xFF20, 0xFF},
		{0xFF21, 0x00}, {0xFF22, 0x00}, {0xFF23, 0xBF},
		{0xFF24, 0x77}, {0xFF25, 0xF3}, {0xFF26, 0xF1},
		{0xFF40, 0x91}, {0xFF42, 0x00}, {0xFF43, 0x00},
		{0xFF45, 0x00}, {0xFF47, 0xFC}, {0xFF48, 0xFF},
		{0xFF49, 0xFF}, {0xFF4A, 0x00}, {0xFF4B, 0x00},
		{0xFF50, 0x01},
	}
	for _, w := range writes {
		m.bus.Write(w.addr, w.v)
	}
}

// ResetPostBoot reinitializes the CPU to typical DMG post-boot
// register values and reapplies the post-boot IO defaults, without
// touching the loaded cartridge or VRAM/OAM contents.
func (m *Machine) ResetPostBoot() {
	m.cpu.ResetNoBoot()
	m.cpu.SetPC(0x0100)
	m.applyPostBootIO()
	m.vblankHit = false
}

// ResetWithBoot maps the installed boot ROM (if any) and starts the
// CPU at PC=0 with IME clear, as on real hardware reset. Falls back
// to ResetPostBoot if no boot ROM is installed.
func (m *Machine) ResetWithBoot() {
	if len(m.bootROM) < 0x100 {
		m.ResetPostBoot()
		return
	}
	m.bus.SetBootROM(m.bootROM)
	m.cpu.ResetNoBoot()
	m.cpu.SetPC(0x0000)
	m.vblankHit = false
}

// ResetCGBPostBoot behaves like ResetPostBoot; keepPalette controls
// whether the current compat palette selection survives the reset or
// is re-derived from the cartridge header.
func (m *Machine) ResetCGBPostBoot(keepPalette bool) {
	m.ResetPostBoot()
	if !keepPalette {
		if id, ok := autoCompatPaletteFromHeader(m.header); ok {
			m.compatPaletteID = id
		}
	}
}

// SetUseFetcherBG records whether the fetcher/FIFO background path
// should be preferred. The PPU only has the dot-clocked fetcher path,
// so this is kept for UI/config roundtripping rather than switching
// behavior.
func (m *Machine) SetUseFetcherBG(v bool) { m.cfg.UseFetcherBG = v }

// StepFrame runs CPU/PPU/APU (and, for RTC cartridges, the clock)
// until one V-blank has been entered, then returns. This is one
// emulated frame.
func (m *Machine) StepFrame() {
	m.runFrame()
}

// StepFrameNoRender is equivalent to StepFrame: the PPU always
// composites each scanline as it renders (there is no cheaper partial
// path), so skipping "render" only means the caller doesn't look at
// Framebuffer afterward.
func (m *Machine) StepFrameNoRender() {
	m.runFrame()
}

// frameCycleBudget bounds one runFrame call to roughly two frames of
// T-cycles, so a game that turns the LCD off (no V-blank will ever
// fire) still returns control to the host at frame cadence.
const frameCycleBudget = 2 * 154 * 456

func (m *Machine) runFrame() {
	m.vblankHit = false
	spent := 0
	for !m.vblankHit && spent < frameCycleBudget {
		cyc := m.cpu.Step()
		spent += cyc
		m.ppu.Tick(cyc)
		m.apu.Tick(cyc)
		if m.cpu.Fault != nil && m.cpu.Fault.Code.Fatal() {
			return
		}
	}
	if t, ok := m.crt.(rtcTicker); ok {
		t.Tick()
	}
}

// Framebuffer returns the 160x144 RGBA8888 buffer most recently
// produced by the PPU.
func (m *Machine) Framebuffer() []byte { return m.ppu.Framebuffer() }

// SetButtons applies one joypad input sample.
func (m *Machine) SetButtons(b Buttons) { m.bus.SetButtons(b.mask()) }

// APUBufferedStereo reports how many stereo sample pairs are queued
// and ready to pull.
func (m *Machine) APUBufferedStereo() int { return m.apu.StereoAvailable() }

// APUPullStereo drains up to max queued stereo sample pairs,
// interleaved L,R,L,R,...
func (m *Machine) APUPullStereo(max int) []int16 { return m.apu.PullStereo(max) }

// APUCapBufferedStereo drops the oldest queued samples until at most
// n stereo pairs remain, bounding playback latency after a stall
// (e.g. the menu being open) without an audible pop from clearing the
// whole buffer.
func (m *Machine) APUCapBufferedStereo(n int) {
	if avail := m.apu.StereoAvailable(); avail > n {
		m.apu.PullStereo(avail - n)
	}
}

// APUClearAudioLatency drains all queued audio, used when resuming
// playback after a pause would otherwise replay a stale backlog.
func (m *Machine) APUClearAudioLatency() {
	for {
		avail := m.apu.StereoAvailable()
		if avail == 0 {
			return
		}
		m.apu.PullStereo(avail)
	}
}

// IsCGBCompat reports whether the compat-palette feature applies to
// the loaded cartridge. Every DMG-mode game qualifies; there is no
// loaded game for which applying a palette would be a regression.
func (m *Machine) IsCGBCompat() bool { return m.crt != nil }

// CompatPaletteName returns the display name for palette id, or ""
// if id is out of range.
func (m *Machine) CompatPaletteName(id int) string {
	if id < 0 || id >= len(cgbCompatSetNames) {
		return ""
	}
	return cgbCompatSetNames[id]
}

// CurrentCompatPalette returns the selected palette id.
func (m *Machine) CurrentCompatPalette() int { return m.compatPaletteID }

// SetCompatPalette selects palette id, wrapped modulo the palette count.
func (m *Machine) SetCompatPalette(id int) {
	n := len(cgbCompatSetNames)
	if n == 0 {
		return
	}
	id %= n
	if id < 0 {
		id += n
	}
	m.compatPaletteID = id
}

// CycleCompatPalette advances the selected palette by delta (may be
// negative), wrapping around the available set.
func (m *Machine) CycleCompatPalette(delta int) {
	m.SetCompatPalette(m.compatPaletteID + delta)
}

// SetUseCGBBG toggles the cosmetic tinted-background mode.
func (m *Machine) SetUseCGBBG(v bool) { m.useCGBBG = v }

// UseCGBBG reports whether the cosmetic tinted-background mode is on.
func (m *Machine) UseCGBBG() bool { return m.useCGBBG }

// WantCGBColors is an alias for UseCGBBG kept for call sites that
// read the setting as a "do we want" query rather than a state query.
func (m *Machine) WantCGBColors() bool { return m.useCGBBG }

// cgbCompatPalette is one 4-shade RGB ramp, lightest-to-darkest,
// matching DMG shade-index ordering.
type cgbCompatPalette [4][3]byte

var cgbCompatSetNames = []string{
	"Green", "Sepia", "Blue", "Red", "Pastel", "Grayscale",
}

var cgbCompatSets = []cgbCompatPalette{
	{{0xE0, 0xF8, 0xD0}, {0x88, 0xC0, 0x70}, {0x34, 0x68, 0x56}, {0x08, 0x18, 0x20}}, // Green
	{{0xF7, 0xE7, 0xC6}, {0xC8, 0x9B, 0x6B}, {0x8A, 0x5A, 0x44}, {0x3B, 0x28, 0x20}}, // Sepia
	{{0xE0, 0xF0, 0xF8}, {0x70, 0xA0, 0xC8}, {0x40, 0x60, 0x90}, {0x10, 0x18, 0x30}}, // Blue
	{{0xF8, 0xE0, 0xE0}, {0xD0, 0x70, 0x70}, {0x90, 0x30, 0x30}, {0x30, 0x08, 0x08}}, // Red
	{{0xF8, 0xF0, 0xF8}, {0xD8, 0xB8, 0xD8}, {0x98, 0x78, 0x98}, {0x48, 0x38, 0x48}}, // Pastel
	{{0xFF, 0xFF, 0xFF}, {0xAA, 0xAA, 0xAA}, {0x55, 0x55, 0x55}, {0x00, 0x00, 0x00}}, // Grayscale
}

// CompatPaletteRGB returns the RGB ramp for the currently selected
// palette, for a UI layer to apply when WantCGBColors is on.
func (m *Machine) CompatPaletteRGB() cgbCompatPalette {
	id := m.compatPaletteID
	if id < 0 || id >= len(cgbCompatSets) {
		return cgbCompatSets[0]
	}
	return cgbCompatSets[id]
}

// normalizedTitle mirrors the trimming compat_tables.go applies
// before matching, exposed for callers that want to display it.
func normalizedTitle(h *cart.Header) string {
	if h == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(h.Title, "\x00"))
}
