package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC2 implements the controller's ROM banking and built-in
// 512x4-bit RAM: a write to 0x0000-0x3FFF enables RAM when address
// bit 8 is clear, or selects a 4-bit ROM bank when bit 8 is set. RAM is addressed as nibbles and mirrored across 0xA000-0xBFFF;
// reads return the nibble in the low 4 bits with the high nibble
// fixed at 1.
type MBC2 struct {
	batteryState
	rom []byte
	ram [512]byte // low nibble per entry holds the stored value

	ramEnabled bool
	romBank    byte // 4 bits (1..15)
}

func NewMBC2(rom []byte, battery bool) *MBC2 {
	m := &MBC2{rom: rom}
	m.battery = battery
	m.romBank = 1
	return m
}

func (m *MBC2) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x0F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		return 0xF0 | (m.ram[int(addr-0xA000)%512] & 0x0F)
	default:
		return 0xFF
	}
}

func (m *MBC2) Write(addr uint16, value byte) {
	switch {
	case addr < 0x4000:
		if addr&0x0100 == 0 {
			m.ramEnabled = (value & 0x0F) == 0x0A
		} else {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		m.ram[int(addr-0xA000)%512] = value & 0x0F
		m.markDirty()
	}
}

func (m *MBC2) SaveRAM() []byte {
	if !m.battery {
		return nil
	}
	out := make([]byte, 512)
	copy(out, m.ram[:])
	return out
}

func (m *MBC2) LoadRAM(data []byte) {
	n := copy(m.ram[:], data)
	for i := n; i < len(m.ram); i++ {
		m.ram[i] = 0
	}
	m.dirty = false
}

// Flush hands unsaved RAM to the save callback; MBC2's RAM is a
// single built-in bank so unload is the only flush point.
func (m *MBC2) Flush() { m.flush(m.SaveRAM) }

type mbc2State struct {
	RAM              [512]byte
	RomBank          byte
	RamEnabled       bool
}

func (m *MBC2) SaveState() []byte {
	var buf bytes.Buffer
	s := mbc2State{RAM: m.ram, RomBank: m.romBank, RamEnabled: m.ramEnabled}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (m *MBC2) LoadState(data []byte) {
	var s mbc2State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.ram, m.romBank, m.ramEnabled = s.RAM, s.RomBank, s.RamEnabled
}
