package cart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// secondsPerDay and the wrap range (512 days, a 9-bit day counter)
// match the real MBC3 RTC's day-high/overflow-bit semantics.
const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
	maxDays          = 512
)

// rtcReg identifies one of the five latched shadow registers the CPU
// can address through 0xA000-0xBFFF once MBC3 has mapped RTC mode in.
type rtcReg byte

const (
	RTCSeconds rtcReg = 0x08
	RTCMinutes rtcReg = 0x09
	RTCHours   rtcReg = 0x0A
	RTCDayLow  rtcReg = 0x0B
	RTCDayHigh rtcReg = 0x0C
)

// dayCtrl bit layout.
const (
	dayCtrlDayMSB   = 1 << 0
	dayCtrlHalt     = 1 << 6
	dayCtrlOverflow = 1 << 7
)

// RTC models the MBC3 real-time clock: a free-running counter derived
// from wall-clock deltas taken at each Sync, and five shadow registers
// that only update on a latch 0->1 transition. The counter and the
// visible registers are intentionally decoupled, as in the real chip.
type RTC struct {
	counter  int64 // seconds since the cartridge's epoch, wrapped mod maxDays*secondsPerDay
	halt     bool
	overflow bool // sticky until cleared by a day-ctrl write

	latchPrev byte
	shadow    [5]byte // seconds, minutes, hours, day-low, day-ctrl

	prevSync time.Time
}

func NewRTC() *RTC {
	return &RTC{prevSync: time.Time{}}
}

// Sync advances the counter by the wall-clock delta since the last
// call, unless halted. The emulator calls this periodically (e.g. once
// per frame) with the current host time.
func (r *RTC) Sync(now time.Time) {
	if r.prevSync.IsZero() {
		r.prevSync = now
		return
	}
	delta := now.Sub(r.prevSync)
	r.prevSync = now
	if r.halt || delta <= 0 {
		return
	}
	r.Advance(int64(delta / time.Second))
}

// Advance steps the counter forward by an explicit number of seconds,
// independent of wall-clock time; Sync is built on top of this, and
// tests drive it directly for determinism.
func (r *RTC) Advance(deltaSeconds int64) {
	if r.halt || deltaSeconds <= 0 {
		return
	}
	wrap := int64(maxDays) * secondsPerDay
	r.counter += deltaSeconds
	if r.counter >= wrap {
		r.counter %= wrap
		r.overflow = true
	}
}

// Latch derives the five shadow registers from the counter on a 0->1
// transition of value's low bit, preserving HALT/overflow.
func (r *RTC) Latch(value byte) {
	bit := value & 1
	if r.latchPrev == 0 && bit == 1 {
		r.latchFromCounter()
	}
	r.latchPrev = bit
}

func (r *RTC) latchFromCounter() {
	days := r.counter / secondsPerDay
	rem := r.counter % secondsPerDay
	seconds := byte(rem % secondsPerMinute)
	minutes := byte((rem / secondsPerMinute) % 60)
	hours := byte(rem / secondsPerHour)
	dayLow := byte(days & 0xFF)
	dayHigh := byte((days >> 8) & 1)

	r.shadow[0] = seconds
	r.shadow[1] = minutes
	r.shadow[2] = hours
	r.shadow[3] = dayLow
	ctrl := dayHigh & dayCtrlDayMSB
	if r.halt {
		ctrl |= dayCtrlHalt
	}
	if r.overflow {
		ctrl |= dayCtrlOverflow
	}
	r.shadow[4] = ctrl
}

// unlatchToCounter reverses latchFromCounter, deriving the counter
// from the current shadow registers. Used when the game writes a
// register while HALT is set.
func (r *RTC) unlatchToCounter() {
	days := int64(r.shadow[3]) | int64(r.shadow[4]&dayCtrlDayMSB)<<8
	secs := int64(r.shadow[0]&0x3F) + int64(r.shadow[1]&0x3F)*secondsPerMinute + int64(r.shadow[2]&0x1F)*secondsPerHour
	r.counter = days*secondsPerDay + secs
}

// regMaskFor returns the OR-mask applied on every read: seconds and
// minutes expose 6 bits, hours 5 bits, day-ctrl only bits 0/6/7.
func regMaskFor(reg rtcReg) byte {
	switch reg {
	case RTCSeconds, RTCMinutes:
		return 0xC0
	case RTCHours:
		return 0xE0
	case RTCDayLow:
		return 0x00
	case RTCDayHigh:
		return 0x3E
	default:
		return 0xFF
	}
}

// ReadReg returns the masked shadow byte for reg.
func (r *RTC) ReadReg(reg rtcReg) byte {
	idx := int(reg - RTCSeconds)
	if idx < 0 || idx > 4 {
		return 0xFF
	}
	return r.shadow[idx] | regMaskFor(reg)
}

// WriteReg writes to a shadow register. While HALT-ed this also
// updates the underlying counter; while running, only the
// day-ctrl HALT/overflow bits are writable, and toggling HALT off
// resets prevSync to "now" so no elapsed time leaks in once Sync
// resumes (the caller passes the same `now` it will next Sync with).
func (r *RTC) WriteReg(reg rtcReg, v byte, now time.Time) {
	idx := int(reg - RTCSeconds)
	if idx < 0 || idx > 4 {
		return
	}
	if reg == RTCDayHigh {
		wasHalt := r.halt
		newHalt := v&dayCtrlHalt != 0
		r.shadow[4] = v & (dayCtrlDayMSB | dayCtrlHalt | dayCtrlOverflow)
		r.halt = newHalt
		r.overflow = v&dayCtrlOverflow != 0
		if wasHalt && !newHalt {
			r.unlatchToCounter()
			r.prevSync = now
		} else if !wasHalt && newHalt {
			r.latchFromCounter()
		}
		return
	}
	if !r.halt {
		return
	}
	r.shadow[idx] = v
	r.unlatchToCounter()
}

// Persisted encodes the clock state appended after the cartridge's
// external RAM in the save-file format.
func (r *RTC) Persisted() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(struct {
		Counter  int64
		Halt     bool
		Overflow bool
		Shadow   [5]byte
	}{r.counter, r.halt, r.overflow, r.shadow})
	return buf.Bytes()
}

func (r *RTC) LoadPersisted(data []byte) {
	var s struct {
		Counter  int64
		Halt     bool
		Overflow bool
		Shadow   [5]byte
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	r.counter, r.halt, r.overflow, r.shadow = s.Counter, s.Halt, s.Overflow, s.Shadow
}
