package bus

import "github.com/silverpine-labs/dmgcore/internal/status"

// Device is a fixed-size byte resource addressed in its own local,
// 0-based space. WRAM, HRAM, VRAM, and OAM all implement it.
type Device interface {
	Size() int
	ReadAt(offset int) byte
	WriteAt(offset int, value byte)
}

// Port binds a resource to its base address on the CPU-facing bus:
// it translates a 16-bit address into the resource's local space by
// subtracting Offset, and reports
// AddressOutOfBound for anything outside [Offset, Offset+Size).
//
// A zero-value Port (Resource == nil) reports NotInitialized, modeling
// a segment whose read/write function has not been installed yet.
type Port struct {
	Offset   uint16
	Resource Device
}

// NewPort builds a Port bound to resource at the given base address.
func NewPort(offset uint16, resource Device) Port {
	return Port{Offset: offset, Resource: resource}
}

func (p Port) contains(addr uint16) bool {
	if p.Resource == nil {
		return false
	}
	size := p.Resource.Size()
	return addr >= p.Offset && int(addr-p.Offset) < size
}

// Read returns the byte at addr, or an AddressOutOfBound/NotInitialized
// status error.
func (p Port) Read(addr uint16) (byte, error) {
	if p.Resource == nil {
		return 0, status.Wrap(status.NotInitialized)
	}
	if !p.contains(addr) {
		return 0, status.Wrap(status.AddressOutOfBound)
	}
	return p.Resource.ReadAt(int(addr - p.Offset)), nil
}

// Write stores value at addr, or returns the same error Read would.
func (p Port) Write(addr uint16, value byte) error {
	if p.Resource == nil {
		return status.Wrap(status.NotInitialized)
	}
	if !p.contains(addr) {
		return status.Wrap(status.AddressOutOfBound)
	}
	p.Resource.WriteAt(int(addr-p.Offset), value)
	return nil
}
