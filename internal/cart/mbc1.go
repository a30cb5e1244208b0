package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC1 implements basic MBC1 ROM/RAM banking.
// Supports ROM banking up to 2MB and RAM up to 32KB.
type MBC1 struct {
	batteryState
	rom []byte
	ram []byte

	romBankLow5       byte // lower 5 bits of ROM bank number (0->1 remapped)
	ramBankOrRomHigh2 byte // either RAM bank (mode1) or ROM bank high bits (mode0)
	ramEnabled        bool
	modeSelect        byte // 0: ROM banking (default), 1: RAM banking
}

func NewMBC1(rom []byte, ramSize int, battery bool) *MBC1 {
	m := &MBC1{rom: rom}
	m.battery = battery
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	// default to bank 1 for switchable area
	m.romBankLow5 = 1
	return m
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		// Bank 0 or high bits applied in mode1
		if m.modeSelect == 0 {
			// ROM bank 0 fixed
			if int(addr) < len(m.rom) {
				return m.rom[addr]
			}
			return 0xFF
		}
		// mode 1: apply high bits to bank 0 region
		bank := int((m.ramBankOrRomHigh2 & 0x03) << 5)
		off := bank*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		// Switchable ROM bank
		bank := int(m.effectiveROMBank())
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		ramBank := 0
		if m.modeSelect == 1 {
			ramBank = int(m.ramBankOrRomHigh2 & 0x03)
		}
		off := ramBank*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		// RAM enable: low 4 bits must be 0x0A
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		// ROM bank low 5 bits (0 maps to 1)
		m.romBankLow5 = value & 0x1F
		if m.romBankLow5 == 0 {
			m.romBankLow5 = 1
		}
	case addr < 0x6000:
		// RAM bank or ROM high bits (2 bits). Switching away from a
		// dirtied RAM bank flushes unsaved content to the save callback.
		next := value & 0x03
		if m.modeSelect == 1 && next != m.ramBankOrRomHigh2 {
			m.flush(m.SaveRAM)
		}
		m.ramBankOrRomHigh2 = next
	case addr < 0x8000:
		// Mode select: 0 ROM banking, 1 RAM banking
		m.modeSelect = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		ramBank := 0
		if m.modeSelect == 1 {
			ramBank = int(m.ramBankOrRomHigh2 & 0x03)
		}
		off := ramBank*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
			m.markDirty()
		}
	}
}

func (m *MBC1) effectiveROMBank() byte {
	// Combine the high 2 bits (ROM banking mode) with the low 5. The
	// low field was already remapped away from 0 at write time.
	high := m.ramBankOrRomHigh2 & 0x03
	return m.romBankLow5 | (high << 5)
}

// SaveRAM returns a copy of external RAM, or nil without a battery.
func (m *MBC1) SaveRAM() []byte {
	if !m.battery || len(m.ram) == 0 {
		return nil
	}
	return append([]byte(nil), m.ram...)
}

// LoadRAM restores external RAM from a previous SaveRAM.
func (m *MBC1) LoadRAM(data []byte) {
	if len(m.ram) == 0 {
		return
	}
	n := copy(m.ram, data)
	for i := n; i < len(m.ram); i++ {
		m.ram[i] = 0
	}
	m.dirty = false
}

// Flush hands unsaved RAM to the save callback, typically on unload.
func (m *MBC1) Flush() { m.flush(m.SaveRAM) }

type mbc1State struct {
	RAM                               []byte
	RomBankLow5, RamBankOrRomHigh2    byte
	RamEnabled                        bool
	ModeSelect                        byte
}

// SaveState encodes the banking registers and RAM contents; ROM is
// immutable and not included.
func (m *MBC1) SaveState() []byte {
	var buf bytes.Buffer
	s := mbc1State{
		RAM:               append([]byte(nil), m.ram...),
		RomBankLow5:       m.romBankLow5,
		RamBankOrRomHigh2: m.ramBankOrRomHigh2,
		RamEnabled:        m.ramEnabled,
		ModeSelect:        m.modeSelect,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (m *MBC1) LoadState(data []byte) {
	var s mbc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(m.ram) == len(s.RAM) {
		copy(m.ram, s.RAM)
	}
	m.romBankLow5 = s.RomBankLow5
	m.ramBankOrRomHigh2 = s.RamBankOrRomHigh2
	m.ramEnabled = s.RamEnabled
	m.modeSelect = s.ModeSelect
}
