package cart

import (
	"testing"
	"time"
)

func TestMBC3_RTC_LatchAndRead(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3WithRTC(rom, 0x2000, true)
	base := time.Unix(100, 0)
	m.now = func() time.Time { return base }

	m.Write(0x0000, 0x0A) // RAM/RTC enable
	m.rtc.Advance(7*secondsPerHour + 6*secondsPerMinute + 5)
	m.rtc.Advance(256 * secondsPerDay) // push day MSB to 1

	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01) // latch 0->1

	m.Write(0x4000, 0x08) // select seconds
	if got := m.Read(0xA000); got&0x3F != 5 {
		t.Fatalf("latched seconds got %d want 5", got&0x3F)
	}

	// live counter keeps moving; latched read must not change
	m.rtc.Advance(10)
	if got := m.Read(0xA000); got&0x3F != 5 {
		t.Fatalf("latched seconds changed unexpectedly: got %d", got&0x3F)
	}

	m.Write(0x4000, 0x0C) // day-ctrl
	got := m.Read(0xA000)
	if got&0x01 == 0 {
		t.Fatalf("latched day MSB not set")
	}
	if got&0x40 != 0 {
		t.Fatalf("halt bit set unexpectedly")
	}
}

func TestMBC3_RTC_AdvanceAndPersist(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3WithRTC(rom, 0x2000, true)
	m.Write(0x0000, 0x0A)

	m.rtc.Advance(23*secondsPerHour + 59*secondsPerMinute + 30)
	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01)
	m.Write(0x4000, 0x08)
	if got := m.Read(0xA000); got&0x3F != 30 {
		t.Fatalf("seconds got %d want 30", got&0x3F)
	}

	m.rtc.Advance(60) // cross into the next minute/hour/day
	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01)
	m.Write(0x4000, 0x09)
	if got := m.Read(0xA000); got&0x3F != 0 {
		t.Fatalf("minutes after rollover got %d want 0", got&0x3F)
	}

	data := m.SaveRAM()
	n := NewMBC3WithRTC(rom, 0x2000, true)
	n.LoadRAM(data)
	n.Write(0x0000, 0x0A)
	n.Write(0x4000, 0x09)
	if got := n.Read(0xA000); got&0x3F != 0 {
		t.Fatalf("restored minutes got %d want 0", got&0x3F)
	}
}

func TestMBC3_RAMBanking(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x8000) // 4 banks of 8 KiB, no RTC
	m.Write(0x0000, 0x0A)
	for bank := byte(0); bank < 4; bank++ {
		m.Write(0x4000, bank)
		m.Write(0xA000, bank+1)
	}
	for bank := byte(0); bank < 4; bank++ {
		m.Write(0x4000, bank)
		if got := m.Read(0xA000); got != bank+1 {
			t.Fatalf("bank %d: got %d want %d", bank, got, bank+1)
		}
	}
}
