package cart

import "testing"

func TestMBC1_BatterySaveOnBankSwitchAndFlush(t *testing.T) {
	rom := make([]byte, 128*1024)
	m := NewMBC1(rom, 32*1024, true)
	saves := 0
	var last []byte
	m.SetSaveFunc(func(data []byte) {
		saves++
		last = data
	})

	m.Write(0x0000, 0x0A) // RAM enable
	m.Write(0x6000, 0x01) // advanced banking mode

	// Fill every bank with a distinct value and read it back.
	for bank := byte(0); bank < 4; bank++ {
		m.Write(0x4000, bank)
		for off := uint16(0); off < 0x2000; off += 0x400 {
			m.Write(0xA000+off, bank+1)
		}
	}
	for bank := byte(0); bank < 4; bank++ {
		m.Write(0x4000, bank)
		if got := m.Read(0xA000); got != bank+1 {
			t.Fatalf("bank %d readback got %d want %d", bank, got, bank+1)
		}
	}
	// Each switch away from a dirtied bank saves once: 3 while filling
	// (banks 0..2) plus 1 while reading back (away from dirty bank 3,
	// then the re-selects are clean).
	if saves != 4 {
		t.Fatalf("expected 4 saves from bank transitions, got %d", saves)
	}
	if len(last) != 32*1024 {
		t.Fatalf("save payload is %d bytes, want full 32 KiB RAM", len(last))
	}

	// Switching banks without further writes must not save again.
	before := saves
	m.Write(0x4000, 0x01)
	m.Write(0x4000, 0x02)
	if saves != before {
		t.Fatalf("clean bank switches saved anyway (%d -> %d)", before, saves)
	}

	// Unload flush saves exactly once more after a dirtying write.
	m.Write(0xA000, 0x7E)
	m.Flush()
	m.Flush()
	if saves != before+1 {
		t.Fatalf("expected exactly one flush save, got %d extra", saves-before)
	}
}

func TestMBC1_NoBatteryNeverSaves(t *testing.T) {
	rom := make([]byte, 64*1024)
	m := NewMBC1(rom, 8*1024, false)
	saves := 0
	m.SetSaveFunc(func([]byte) { saves++ })
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x42)
	m.Flush()
	if saves != 0 {
		t.Fatalf("battery-less cartridge saved %d times", saves)
	}
	if m.SaveRAM() != nil {
		t.Fatal("SaveRAM should be nil without a battery")
	}
}

func TestMBC5_BankZeroIsSelectable(t *testing.T) {
	rom := make([]byte, 128*1024)
	rom[0x0000] = 0xA0          // bank 0 start
	rom[0x4000] = 0xA1          // bank 1 start
	m := NewMBC5(rom, 0, false)

	if got := m.Read(0x4000); got != 0xA1 {
		t.Fatalf("default switchable bank got %02X want bank 1's A1", got)
	}
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0xA0 {
		t.Fatalf("bank 0 select got %02X want bank 0's A0", got)
	}
}

func TestMBC2_NibbleRAMAndBattery(t *testing.T) {
	rom := make([]byte, 64*1024)
	m := NewMBC2(rom, true)
	saves := 0
	m.SetSaveFunc(func([]byte) { saves++ })

	m.Write(0x0000, 0x0A) // bit 8 clear: RAM enable
	m.Write(0xA000, 0xFF)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("nibble RAM read got %02X want FF (high nibble forced 1)", got)
	}
	if got := m.Read(0xA200); got != 0xFF {
		t.Fatalf("mirrored nibble read got %02X want FF", got)
	}
	m.Flush()
	if saves != 1 {
		t.Fatalf("expected one unload save, got %d", saves)
	}

	m.Write(0x0100, 0x03) // bit 8 set: ROM bank select
	rom[3*0x4000] = 0x33
	if got := m.Read(0x4000); got != 0x33 {
		t.Fatalf("MBC2 bank 3 read got %02X want 33", got)
	}
}
