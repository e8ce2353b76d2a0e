package leon

// Wire format of a spill record: the eight locals followed by the
// eight ins, one word each, at the slot's stack pointer.  The fill
// (underflow) side reads the same layout back.

const SpillRecordWords = RegistersPerWindow
const SpillRecordBytes = SpillRecordWords * WordSize

// StoreWindow writes w's spill record at addr.  The first failing
// store aborts the record; a partial record is never read back
// because the failure path discards the whole window.
func StoreWindow(b *Bus, addr uint32, w *RegisterWindow) error {
	for i := 0; i < 8; i++ {
		if err := b.Store32(addr+uint32(i*WordSize), w.Local[i]); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := b.Store32(addr+uint32((8+i)*WordSize), w.In[i]); err != nil {
			return err
		}
	}
	return nil
}

// LoadWindow reads a spill record back from addr.
func LoadWindow(b *Bus, addr uint32) (RegisterWindow, error) {
	var w RegisterWindow
	for i := 0; i < 8; i++ {
		v, err := b.Load32(addr + uint32(i*WordSize))
		if err != nil {
			return w, err
		}
		w.Local[i] = v
	}
	for i := 0; i < 8; i++ {
		v, err := b.Load32(addr + uint32((8+i)*WordSize))
		if err != nil {
			return w, err
		}
		w.In[i] = v
	}
	return w, nil
}
