package rtl

import (
	"github.com/pkg/errors"
)

// A Simulator binds one immutable Design to one execution backend and one
// mutable value state. Stepping is single-threaded and fully synchronous:
// Step and RunCycles block until the requested clock edges have completed. A
// step is atomic: it either finishes the combinational settle and the
// sequential commit, or it returns an error with committed register state
// untouched, leaving the design at its last fully-committed cycle.
//
// Several Simulators may share one Design concurrently; each owns its value
// state exclusively.
type Simulator struct {
	d   *Design
	st  *State
	eng engine

	cycle   uint64
	watches []watch
	devices []Device
}

// WatchFn receives a watched signal's value after each completed step.
type WatchFn func(cycle uint64, v uint64)

type watch struct {
	id SignalID
	fn WatchFn
}

// A Device models external work attached to the simulation (a disk
// controller servicing DMA queues, a UART draining its FIFO). Tick runs once
// per completed step, outside the synchronous netlist, and may peek and poke
// freely. This is the boundary between RTL simulation and modeled I/O.
type Device interface {
	Tick(s *Simulator)
}

// New builds a Simulator for the design with the requested backend. With
// cfg.AllowFallback false, a requested backend that is unavailable for this
// design is an error; otherwise construction falls back to the JIT.
// Registers start at their declared reset values and input ports at their
// declared defaults.
//
func New(d *Design, cfg Config) (*Simulator, error) {
	s := &Simulator{d: d, st: newState(d)}
	switch cfg.Backend {
	case Interpreter:
		s.eng = newInterp(d)
	case JIT:
		s.eng = newJIT(d)
	case Native:
		if r := findRunner(d); r != nil {
			s.eng = &nativeEngine{r: r}
			break
		}
		if !cfg.AllowFallback {
			return nil, errors.Errorf("%s: no native runner recognizes this design and fallback is disabled", d.Name)
		}
		s.eng = newJIT(d)
	default:
		return nil, errors.Errorf("%s: unknown backend %d", d.Name, cfg.Backend)
	}
	if err := s.settle(); err != nil {
		return nil, err
	}
	return s, nil
}

// Backend reports the backend actually in use (after any fallback).
func (s *Simulator) Backend() BackendKind { return s.eng.kind() }

// Native reports whether a hand-written native runner is executing the
// design.
func (s *Simulator) Native() bool { return s.eng.kind() == Native }

// Runner returns the name of the native runner in use, or "".
func (s *Simulator) Runner() string {
	if ne, ok := s.eng.(*nativeEngine); ok {
		return ne.r.Name()
	}
	return ""
}

// Design returns the simulated design.
func (s *Simulator) Design() *Design { return s.d }

// Cycle returns the number of completed clock edges.
func (s *Simulator) Cycle() uint64 { return s.cycle }

func (s *Simulator) recoverFault(err *error) {
	if r := recover(); r != nil {
		re, ok := r.(runtimeError)
		if !ok {
			panic(r)
		}
		*err = re.err
	}
}

func (s *Simulator) settle() (err error) {
	defer s.recoverFault(&err)
	s.eng.settle(s.st)
	return nil
}

// Reset loads every register's declared reset value and settles the
// combinational logic, so every output is a pure function of the reset
// state. Resetting twice is the same as resetting once. Memory contents and
// input values survive a reset.
//
func (s *Simulator) Reset() error {
	s.st.loadRegisters()
	return s.settle()
}

// Step advances the simulation by one clock edge: exactly one combinational
// settle against pre-edge values, then one synchronous commit. Watches and
// devices run after the commit.
//
func (s *Simulator) Step() (err error) {
	defer s.recoverFault(&err)
	s.eng.step(s.st)
	s.cycle++
	for _, w := range s.watches {
		w.fn(s.cycle, s.st.Get(w.id))
	}
	for _, dev := range s.devices {
		dev.Tick(s)
	}
	return nil
}

// RunCycles advances the simulation by n clock edges, stopping at the first
// error.
//
func (s *Simulator) RunCycles(n int) error {
	for i := 0; i < n; i++ {
		if err := s.Step(); err != nil {
			return errors.WithMessagef(err, "cycle %d", s.cycle+1)
		}
	}
	return nil
}

// Lookup resolves a signal name to its index for repeated PeekID/PokeID
// access.
func (s *Simulator) Lookup(name string) (SignalID, error) {
	return s.d.SignalID(name)
}

// Peek returns the current value of the named signal.
func (s *Simulator) Peek(name string) (uint64, error) {
	id, err := s.d.SignalID(name)
	if err != nil {
		return 0, err
	}
	return s.st.Get(id), nil
}

// PeekID returns the current value of a resolved signal index. The index
// must come from Lookup or the design's signal table; an out-of-range index
// panics.
func (s *Simulator) PeekID(id SignalID) uint64 { return s.st.Get(id) }

// Poke sets the named signal's value, masked to its declared width. Poking
// a combinationally driven net only lasts until the next settle; inputs and
// registers are the useful targets.
func (s *Simulator) Poke(name string, v uint64) error {
	id, err := s.d.SignalID(name)
	if err != nil {
		return err
	}
	s.st.Set(id, v)
	return nil
}

// PokeID sets a resolved signal index's value, masked to its width. The
// index must come from Lookup or the design's signal table; an out-of-range
// index panics.
func (s *Simulator) PokeID(id SignalID, v uint64) { s.st.Set(id, v) }

// Watch registers fn to receive the named signal's value after every
// completed step. This is the hook waveform capture builds on; the engine
// itself emits no trace format.
func (s *Simulator) Watch(name string, fn WatchFn) error {
	id, err := s.d.SignalID(name)
	if err != nil {
		return err
	}
	s.watches = append(s.watches, watch{id: id, fn: fn})
	return nil
}

// AddDevice attaches a modeled peripheral ticked once per step.
func (s *Simulator) AddDevice(dev Device) {
	s.devices = append(s.devices, dev)
}

// LoadMemory bulk-initializes a block memory from words, starting at offset.
// Words are masked to the memory width. This is how programs and ROM images
// reach a design before stepping starts.
//
func (s *Simulator) LoadMemory(name string, offset int, words []uint64) error {
	id, err := s.d.MemID(name)
	if err != nil {
		return err
	}
	m := s.d.Mems[id]
	if offset < 0 || offset+len(words) > m.Depth {
		return errors.Errorf("%s: image of %d words at offset %d exceeds memory %q (depth %d)",
			s.d.Name, len(words), offset, name, m.Depth)
	}
	dst := s.st.Mem(id)
	for i, w := range words {
		dst[offset+i] = truncate(w, m.Width)
	}
	return nil
}

// PeekMem returns the word at addr in the named memory.
func (s *Simulator) PeekMem(name string, addr int) (uint64, error) {
	id, err := s.d.MemID(name)
	if err != nil {
		return 0, err
	}
	if addr < 0 || addr >= s.d.Mems[id].Depth {
		return 0, errors.Errorf("%s: address %d out of range for memory %q (depth %d)",
			s.d.Name, addr, name, s.d.Mems[id].Depth)
	}
	return s.st.Mem(id)[addr], nil
}

// PokeMem sets the word at addr in the named memory, masked to its width.
func (s *Simulator) PokeMem(name string, addr int, v uint64) error {
	id, err := s.d.MemID(name)
	if err != nil {
		return err
	}
	if addr < 0 || addr >= s.d.Mems[id].Depth {
		return errors.Errorf("%s: address %d out of range for memory %q (depth %d)",
			s.d.Name, addr, name, s.d.Mems[id].Depth)
	}
	s.st.Mem(id)[addr] = truncate(v, s.d.Mems[id].Width)
	return nil
}
