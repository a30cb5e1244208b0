package cart

// Cartridge defines the minimal interface the Bus needs for ROM/RAM banking.
// Implementations can be ROM-only or MBC variants. Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000–0x7FFF) and external RAM (0xA000–0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000–0x7FFF) and external RAM writes (0xA000–0xBFFF).
	Write(addr uint16, value byte)
	// SaveState/LoadState serialize internal banking registers and external RAM for save states.
	SaveState() []byte
	LoadState(data []byte)
}

// SaveFunc receives a battery-backed cartridge's persisted bytes; the
// host typically writes them to a .sav file.
type SaveFunc func(data []byte)

// BatteryBacked is the optional interface of cartridges whose external
// RAM survives power-off. SaveRAM returns the persisted bytes (nil when
// the cartridge has no battery); LoadRAM restores a prior save.
// SetSaveFunc installs the callback that bank switches away from a
// dirtied bank and Flush invoke; Flush is called on cartridge unload
// and fires the callback only if RAM was written since the last save.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
	SetSaveFunc(fn SaveFunc)
	Flush()
}

// NewCartridge picks an implementation based on the ROM header.
func NewCartridge(rom []byte) Cartridge {
	h, err := ParseHeader(rom)
	if err != nil {
		return NewROMOnly(rom)
	}
	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom)
	case 0x01, 0x02, 0x03:
		return NewMBC1(rom, h.RAMSizeBytes, h.CartType == 0x03)
	case 0x05, 0x06:
		return NewMBC2(rom, h.CartType == 0x06)
	case 0x0F, 0x10:
		return NewMBC3WithRTC(rom, h.RAMSizeBytes, true)
	case 0x11, 0x12, 0x13:
		m := NewMBC3(rom, h.RAMSizeBytes)
		m.battery = h.CartType == 0x13
		return m
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return NewMBC5(rom, h.RAMSizeBytes, h.CartType == 0x1B || h.CartType == 0x1E)
	default:
		// Fall back to ROM-only for unknown types so homebrew/test ROMs still run.
		return NewROMOnly(rom)
	}
}
