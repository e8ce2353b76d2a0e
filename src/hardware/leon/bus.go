package leon

import (
	"encoding/binary"
	"fmt"
)

// BusFault is what the memory system raises for a store or load that
// cannot complete: unmapped address, or an access that is not word
// aligned.  Faults on user regions are survivable (the entry layer
// has a recovery path); faults on kernel regions are not supposed to
// happen at all.
type BusFault struct {
	Addr   uint32
	Write  bool
	Reason string
}

func (f *BusFault) Error() string {
	dir := "load"
	if f.Write {
		dir = "store"
	}
	return fmt.Sprintf("bus fault: %s at %08x: %s", dir, f.Addr, f.Reason)
}

// Region is one mapped range of the physical address space.
type Region struct {
	Name string
	Base uint32
	User bool //user regions may be remapped or torn down under us
	mem  []byte
}

func (r *Region) Size() uint32 {
	return uint32(len(r.mem))
}

func (r *Region) contains(addr uint32) bool {
	return addr >= r.Base && addr-r.Base < uint32(len(r.mem))
}

// Bus is the memory system: a flat list of mapped regions.  All
// accesses are 32 bit words; the window spill/fill records and the
// trap frames are word sequences.
type Bus struct {
	regions []*Region
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Map(name string, base uint32, size uint32, user bool) *Region {
	r := &Region{
		Name: name,
		Base: base,
		User: user,
		mem:  make([]byte, size),
	}
	b.regions = append(b.regions, r)
	return r
}

// Unmap tears down a region by name.  Stores to it fault afterward,
// which is exactly how a corrupt user stack presents to the spill
// path.
func (b *Bus) Unmap(name string) {
	for i, r := range b.regions {
		if r.Name == name {
			b.regions = append(b.regions[:i], b.regions[i+1:]...)
			return
		}
	}
}

func (b *Bus) Region(name string) *Region {
	for _, r := range b.regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (b *Bus) find(addr uint32) *Region {
	for _, r := range b.regions {
		if r.contains(addr) {
			return r
		}
	}
	return nil
}

func (b *Bus) Load32(addr uint32) (uint32, error) {
	if addr%WordSize != 0 {
		return 0, &BusFault{Addr: addr, Reason: "misaligned"}
	}
	r := b.find(addr)
	if r == nil || !r.contains(addr + WordSize - 1) {
		return 0, &BusFault{Addr: addr, Reason: "unmapped"}
	}
	return binary.BigEndian.Uint32(r.mem[addr-r.Base:]), nil
}

func (b *Bus) Store32(addr uint32, v uint32) error {
	if addr%WordSize != 0 {
		return &BusFault{Addr: addr, Write: true, Reason: "misaligned"}
	}
	r := b.find(addr)
	if r == nil || !r.contains(addr + WordSize - 1) {
		return &BusFault{Addr: addr, Write: true, Reason: "unmapped"}
	}
	binary.BigEndian.PutUint32(r.mem[addr-r.Base:], v)
	return nil
}
