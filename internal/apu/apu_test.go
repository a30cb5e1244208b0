package apu

import "testing"

const (
	tCyclesPerFSStep = cpuHz / 512
)

// tickSteps advances the APU by n frame-sequencer steps.
func tickSteps(a *APU, n int) {
	a.Tick(n * tCyclesPerFSStep)
}

func TestLengthCounterDisablesChannel1(t *testing.T) {
	a := New(0)
	a.CPUWrite(0xFF24, 0x77) // NR50
	a.CPUWrite(0xFF25, 0x11) // NR51: ch1 both sides
	a.CPUWrite(0xFF26, 0x80) // power on
	a.CPUWrite(0xFF11, 0x3F) // length = 64-63 = 1
	a.CPUWrite(0xFF12, 0xF0) // vol 15, DAC on
	a.CPUWrite(0xFF14, 0xC0) // trigger + length enable

	if a.CPURead(0xFF26)&0x01 == 0 {
		t.Fatal("ch1 should be enabled right after trigger")
	}
	// Two sequencer steps guarantee at least one length clock.
	tickSteps(a, 2)
	if a.CPURead(0xFF26)&0x01 != 0 {
		t.Fatal("ch1 should be disabled once its length counter expires")
	}
}

func TestLengthCounterAllChannels(t *testing.T) {
	a := New(0)
	a.CPUWrite(0xFF26, 0x80)
	// ch2
	a.CPUWrite(0xFF16, 0x3F)
	a.CPUWrite(0xFF17, 0xF0)
	a.CPUWrite(0xFF19, 0xC0)
	// ch3
	a.CPUWrite(0xFF1A, 0x80) // DAC on
	a.CPUWrite(0xFF1B, 0xFF) // length = 256-255 = 1
	a.CPUWrite(0xFF1E, 0xC0)
	// ch4
	a.CPUWrite(0xFF20, 0x3F)
	a.CPUWrite(0xFF21, 0xF0)
	a.CPUWrite(0xFF23, 0xC0)

	if got := a.CPURead(0xFF26) & 0x0E; got != 0x0E {
		t.Fatalf("channels 2-4 should be enabled after trigger, NR52 flags %#02x", got)
	}
	tickSteps(a, 2)
	if got := a.CPURead(0xFF26) & 0x0E; got != 0 {
		t.Fatalf("channels 2-4 should all be length-expired, NR52 flags %#02x", got)
	}
}

func TestLengthEnableOffFreezesCounter(t *testing.T) {
	a := New(0)
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF16, 0x3F) // length 1
	a.CPUWrite(0xFF17, 0xF0)
	a.CPUWrite(0xFF19, 0x80) // trigger, length DISABLED
	tickSteps(a, 4)
	if a.CPURead(0xFF26)&0x02 == 0 {
		t.Fatal("ch2 should stay enabled while NRx4 bit 6 is clear")
	}
}

func TestDACOffDisablesChannelAndStaysOff(t *testing.T) {
	a := New(0)
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF17, 0xF0)
	a.CPUWrite(0xFF19, 0x80) // trigger
	if a.CPURead(0xFF26)&0x02 == 0 {
		t.Fatal("ch2 should be enabled after trigger")
	}
	a.CPUWrite(0xFF17, 0x00) // DAC off
	if a.CPURead(0xFF26)&0x02 != 0 {
		t.Fatal("disabling the DAC should immediately disable ch2")
	}
	a.CPUWrite(0xFF17, 0xF0) // DAC back on
	if a.CPURead(0xFF26)&0x02 != 0 {
		t.Fatal("re-enabling the DAC must not re-enable the channel without a trigger")
	}
}

func TestRegisterReadMasks(t *testing.T) {
	masks := map[uint16]byte{
		0xFF10: 0x80, 0xFF11: 0x3F, 0xFF12: 0x00, 0xFF13: 0xFF, 0xFF14: 0xBF,
		0xFF15: 0xFF, 0xFF16: 0x3F, 0xFF17: 0x00, 0xFF18: 0xFF, 0xFF19: 0xBF,
		0xFF1A: 0x7F, 0xFF1B: 0xFF, 0xFF1C: 0x9F, 0xFF1D: 0xFF, 0xFF1E: 0xBF,
		0xFF1F: 0xFF, 0xFF20: 0xFF, 0xFF21: 0x00, 0xFF22: 0x00, 0xFF23: 0xBF,
		0xFF24: 0x00, 0xFF25: 0x00, 0xFF26: 0x70,
	}
	a := New(0)
	a.CPUWrite(0xFF26, 0x80)
	for addr, mask := range masks {
		a.CPUWrite(addr, 0x00)
		if got := a.CPURead(addr); got&mask != mask {
			t.Errorf("reg %#04x: read %#02x, mask bits %#02x must read as 1", addr, got, mask)
		}
	}
}

func TestPowerOffResetsStateButKeepsWaveRAM(t *testing.T) {
	a := New(0)
	a.CPUWrite(0xFF26, 0x80)
	for i := uint16(0); i < 16; i++ {
		a.CPUWrite(0xFF30+i, byte(0x10+i))
	}
	a.CPUWrite(0xFF24, 0x77)
	a.CPUWrite(0xFF25, 0xFF)
	a.CPUWrite(0xFF17, 0xF0)
	a.CPUWrite(0xFF19, 0x80)

	a.CPUWrite(0xFF26, 0x00) // power off
	if a.CPURead(0xFF26)&0x80 != 0 {
		t.Fatal("NR52 bit 7 should read 0 after power off")
	}
	if got := a.CPURead(0xFF26) & 0x0F; got != 0 {
		t.Fatalf("all channel flags should clear on power off, got %#02x", got)
	}
	if got := a.CPURead(0xFF24); got != 0 {
		t.Fatalf("NR50 should read 0 after power off, got %#02x", got)
	}
	for i := uint16(0); i < 16; i++ {
		if got := a.CPURead(0xFF30 + i); got != byte(0x10+i) {
			t.Fatalf("wave RAM[%d] lost across power off: got %#02x", i, got)
		}
	}
	// Register writes are ignored while powered off.
	a.CPUWrite(0xFF25, 0xFF)
	if got := a.CPURead(0xFF25); got != 0 {
		t.Fatalf("NR51 write should be ignored while off, read %#02x", got)
	}
}

func TestSweepOverflowDisablesOnTrigger(t *testing.T) {
	a := New(0)
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF10, 0x11) // pace 1, up, shift 1
	a.CPUWrite(0xFF12, 0xF0)
	a.CPUWrite(0xFF13, 0xFF) // freq low
	a.CPUWrite(0xFF14, 0x87) // trigger, freq high = 7 -> freq 0x7FF
	if a.CPURead(0xFF26)&0x01 != 0 {
		t.Fatal("trigger overflow check should disable ch1 at max frequency")
	}
}

func TestEnvelopeStepsVolume(t *testing.T) {
	a := New(0)
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF17, 0x59) // vol 5, up, period 1
	a.CPUWrite(0xFF19, 0x80) // trigger, no length
	tickSteps(a, 8)          // one full sequencer cycle includes one envelope clock
	if a.ch2.curVol != 6 {
		t.Fatalf("envelope should step volume 5 -> 6, got %d", a.ch2.curVol)
	}
}

func TestNoisePeriodFollowsDividerAndShift(t *testing.T) {
	a := New(0)
	a.ch4.divSel, a.ch4.shift = 1, 2
	a.reloadCh4Timer()
	if a.ch4.timer != (16<<2)*4 {
		t.Fatalf("divider 1 shift 2: timer %d, want %d", a.ch4.timer, (16<<2)*4)
	}
	a.ch4.divSel, a.ch4.shift = 0, 0
	a.reloadCh4Timer()
	if a.ch4.timer != 8*4 {
		t.Fatalf("divider code 0: timer %d, want %d", a.ch4.timer, 8*4)
	}
}

func TestStereoRoutingAndBuffer(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF24, 0x77)
	a.CPUWrite(0xFF25, 0x11)
	a.CPUWrite(0xFF12, 0xF0)
	a.CPUWrite(0xFF14, 0x80)
	a.Tick(cpuHz / 100) // 10 ms worth of cycles
	if a.StereoAvailable() == 0 {
		t.Fatal("expected buffered stereo frames after ticking")
	}
	out := a.PullStereo(16)
	if len(out) == 0 || len(out)%2 != 0 {
		t.Fatalf("PullStereo returned %d values, want a nonzero even count", len(out))
	}
}
