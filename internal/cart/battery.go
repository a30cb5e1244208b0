package cart

// batteryState is the dirty-tracking shared by every battery-backed
// controller: a write to external RAM marks the cartridge dirty, and
// a bank switch away from a dirtied bank or an unload-time Flush
// hands the persisted bytes to the installed SaveFunc exactly once.
type batteryState struct {
	battery bool
	dirty   bool
	save    SaveFunc
}

// SetSaveFunc installs the callback invoked with the cartridge's
// persisted bytes whenever unsaved RAM content needs to reach the host.
func (b *batteryState) SetSaveFunc(fn SaveFunc) { b.save = fn }

func (b *batteryState) markDirty() {
	if b.battery {
		b.dirty = true
	}
}

// flush invokes the save callback with persist()'s result if there is
// unsaved content, clearing the dirty bit. With no callback installed
// the content stays marked dirty for a later flush.
func (b *batteryState) flush(persist func() []byte) {
	if !b.battery || !b.dirty || b.save == nil {
		return
	}
	b.save(persist())
	b.dirty = false
}
