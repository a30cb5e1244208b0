package emu

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/silverpine-labs/dmgcore/internal/status"
)

// testROM builds a 32 KiB image with a valid header checksum, the
// given cartridge-type/RAM-size bytes, and program at the entry point.
func testROM(cartType, ramSizeCode byte, program []byte) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0134:0x0144], "SCENARIO")
	rom[0x0147] = cartType
	rom[0x0148] = 0x00
	rom[0x0149] = ramSizeCode
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	rom[0x014D] = sum
	copy(rom[0x0100:], program)
	return rom
}

func TestLoadCartridgeRejectsBadChecksum(t *testing.T) {
	rom := testROM(0x00, 0x00, nil)
	rom[0x0134] ^= 0xFF
	m := New(Config{})
	err := m.LoadCartridge(rom, nil)
	if err == nil {
		t.Fatal("expected checksum failure")
	}
	if !errors.Is(err, status.Wrap(status.ChecksumFailure)) {
		t.Fatalf("expected ChecksumFailure, got %v", err)
	}
}

func TestTimerOverflowServicesInterrupt(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(testROM(0x00, 0x00, nil), nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	m.bus.Write(0xFF04, 0x00) // clear DIV
	m.bus.Write(0xFF07, 0x05) // enabled, selector 1: every 16 M-cycles
	m.bus.Write(0xFF06, 0x42) // TMA
	m.bus.Write(0xFF05, 0xFF) // TIMA on the brink
	m.bus.Write(0xFF0F, 0x00)
	m.bus.Write(0xFFFF, 0x04) // enable Timer interrupt only
	m.cpu.IME = true
	spBefore := m.cpu.SP

	for i := 0; i < 64 && m.cpu.PC != 0x0050; i++ {
		m.cpu.Step()
	}
	if m.cpu.PC != 0x0050 {
		t.Fatalf("timer interrupt never serviced, PC=%#04x", m.cpu.PC)
	}
	if got := m.bus.Read(0xFF05); got != 0x42 {
		t.Fatalf("TIMA got %#02x want the TMA reload 0x42", got)
	}
	if m.bus.Read(0xFF0F)&0x04 != 0 {
		t.Fatal("serviced Timer bit should be cleared in IF")
	}
	if m.cpu.SP != spBefore-2 {
		t.Fatalf("SP got %#04x want %#04x", m.cpu.SP, spBefore-2)
	}
}

func TestStepFrameReturnsWithLCDOff(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(testROM(0x00, 0x00, nil), nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	m.bus.Write(0xFF40, 0x00) // LCD off: no V-blank will ever fire
	m.StepFrame()             // must come back on the frame cycle budget
}

func TestBatteryFlushOnEject(t *testing.T) {
	m := New(Config{})
	saves := 0
	var saved []byte
	m.SetSaveGameFunc(func(data []byte) {
		saves++
		saved = data
	})
	// MBC1+RAM+battery, 32 KiB RAM
	if err := m.LoadCartridge(testROM(0x03, 0x03, nil), nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	m.bus.Write(0x0000, 0x0A) // RAM enable
	m.bus.Write(0xA000, 0x5A)
	m.Eject()
	if saves != 1 {
		t.Fatalf("expected exactly one save on eject, got %d", saves)
	}
	if len(saved) != 32*1024 || saved[0] != 0x5A {
		t.Fatalf("save payload wrong: len=%d first=%#02x", len(saved), saved[0])
	}
	// Ejecting again must not save again.
	m.Eject()
	if saves != 1 {
		t.Fatalf("second eject saved again (%d)", saves)
	}
}

func TestSaveStateRoundTripThroughFile(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(testROM(0x00, 0x00, nil), nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	m.bus.Write(0xC123, 0x77)
	m.cpu.SetPC(0x4321)
	path := filepath.Join(t.TempDir(), "slot0.state")
	if err := m.SaveStateToFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	m.bus.Write(0xC123, 0x00)
	m.cpu.SetPC(0x0100)
	if err := m.LoadStateFromFile(path); err != nil {
		t.Fatalf("load state: %v", err)
	}
	if got := m.bus.Read(0xC123); got != 0x77 {
		t.Fatalf("restored WRAM got %#02x want 0x77", got)
	}
	if m.cpu.PC != 0x4321 {
		t.Fatalf("restored PC got %#04x want 0x4321", m.cpu.PC)
	}
}

func TestDebugSerialAccumulates(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(testROM(0x00, 0x00, nil), nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	m.bus.Write(0xFF01, 'H')
	m.bus.Write(0xFF02, 0x81)
	m.bus.Write(0xFF01, 'i')
	m.bus.Write(0xFF02, 0x81)
	if got := string(m.DebugSerial()); got != "Hi" {
		t.Fatalf("debug serial got %q want \"Hi\"", got)
	}
}
