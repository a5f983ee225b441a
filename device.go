package rtl

import (
	"github.com/pkg/errors"
)

// DeviceFunc adapts a plain function to the Device interface.
type DeviceFunc func(s *Simulator)

// Tick calls f.
func (f DeviceFunc) Tick(s *Simulator) { f(s) }

// A MemWindow is a memory-mapped peripheral model: it watches an address
// range of a block memory and dispatches every word the design stores there
// to a handler, once, on the tick after the write commits. The handler may
// return a replacement value (a status word, a cleared doorbell) to store
// back into the slot.
//
// This is the modeled-I/O boundary for designs that talk to peripherals
// through memory: the design writes a command word, the window delivers it,
// the handler services it outside the netlist.
type MemWindow struct {
	mem  MemID
	base int
	prev []uint64

	handler func(s *Simulator, addr int, v uint64) (uint64, bool)
}

// NewMemWindow watches size words of the named memory starting at base.
// handler receives the absolute word address and the stored value whenever a
// watched word changes; returning (v, true) writes v back to the slot.
//
func NewMemWindow(s *Simulator, name string, base, size int,
	handler func(s *Simulator, addr int, v uint64) (uint64, bool)) (*MemWindow, error) {

	id, err := s.d.MemID(name)
	if err != nil {
		return nil, err
	}
	m := s.d.Mems[id]
	if base < 0 || size < 1 || base+size > m.Depth {
		return nil, errors.Errorf("%s: window [%d, %d) out of range for memory %q (depth %d)",
			s.d.Name, base, base+size, name, m.Depth)
	}
	w := &MemWindow{mem: id, base: base, prev: make([]uint64, size), handler: handler}
	copy(w.prev, s.st.Mem(id)[base:base+size])
	s.AddDevice(w)
	return w, nil
}

// Tick dispatches every watched word that changed since the previous tick.
func (w *MemWindow) Tick(s *Simulator) {
	words := s.st.Mem(w.mem)
	width := s.d.Mems[w.mem].Width
	for i := range w.prev {
		v := words[w.base+i]
		if v == w.prev[i] {
			continue
		}
		if nv, store := w.handler(s, w.base+i, v); store {
			v = truncate(nv, width)
			words[w.base+i] = v
		}
		w.prev[i] = v
	}
}
