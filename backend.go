package rtl

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// BackendKind selects an execution strategy.
type BackendKind int

// Execution backends. All of them implement one stepping contract and must
// produce bit-identical architectural state for the same design and the same
// stimulus; the interpreter is the reference oracle.
const (
	// Interpreter walks the flattened expression IR node by node every step.
	Interpreter BackendKind = iota
	// JIT compiles the flattened IR into composed closures once at load
	// time and replays them every step.
	JIT
	// Native selects a registered hand-written runner recognized by
	// structural fingerprint, bypassing generic graph evaluation.
	Native
)

var backendNames = [...]string{Interpreter: "interp", JIT: "jit", Native: "native"}

func (k BackendKind) String() string {
	if int(k) < len(backendNames) {
		return backendNames[k]
	}
	return "backend(?)"
}

// ParseBackend maps a configuration string to a BackendKind.
//
func ParseBackend(s string) (BackendKind, error) {
	switch strings.ToLower(s) {
	case "interp", "interpreter":
		return Interpreter, nil
	case "jit":
		return JIT, nil
	case "native":
		return Native, nil
	}
	return 0, errors.Errorf("unknown backend %q", s)
}

// Config selects the execution backend for a Simulator. With AllowFallback
// false, an unavailable backend is a construction-time error instead of a
// silent downgrade, so callers can assert a required execution mode.
type Config struct {
	Backend       BackendKind
	AllowFallback bool
}

// State holds the mutable values of one simulation instance: the current
// value of every signal and the contents of every block memory. Each
// Simulator owns its State exclusively; the Design it derives from is
// immutable and shared.
type State struct {
	d    *Design
	vals []uint64
	mems [][]uint64
}

func newState(d *Design) *State {
	st := &State{d: d, vals: make([]uint64, len(d.Signals))}
	st.mems = make([][]uint64, len(d.Mems))
	for i, m := range d.Mems {
		st.mems[i] = make([]uint64, m.Depth)
	}
	for id, sig := range d.Signals {
		switch sig.Kind {
		case SigReg:
			st.vals[id] = sig.Reset
		case SigInput:
			if sig.HasDefault {
				st.vals[id] = sig.Default
			}
		}
	}
	return st
}

// Get returns the current value of a signal.
func (st *State) Get(id SignalID) uint64 { return st.vals[id] }

// Set writes a signal value, masked to the signal's declared width.
func (st *State) Set(id SignalID, v uint64) {
	st.vals[id] = truncate(v, st.d.Signals[id].Width)
}

// Mem returns the backing words of a memory. Writes through the returned
// slice must be masked to the memory width by the caller.
func (st *State) Mem(m MemID) []uint64 { return st.mems[m] }

// Design returns the immutable design this state belongs to.
func (st *State) Design() *Design { return st.d }

// loadRegisters applies every register's declared reset value.
func (st *State) loadRegisters() {
	for id, sig := range st.d.Signals {
		if sig.Kind == SigReg {
			st.vals[id] = sig.Reset
		}
	}
}

// runtimeError carries a runtime fault (out-of-range memory access) out of a
// stepping backend. Simulator.Step recovers it into a returned error before
// any register state has been committed.
type runtimeError struct{ err error }

func runtimeFault(format string, args ...interface{}) {
	panic(runtimeError{errors.Errorf(format, args...)})
}

// Fault aborts the current step with a runtime error, leaving committed
// register state untouched. It is for Runner implementations, which must
// report out-of-range accesses the same way the generic backends do.
//
func Fault(format string, args ...interface{}) {
	runtimeFault(format, args...)
}

func (st *State) memAt(m MemID, addr uint64) uint64 {
	words := st.mems[m]
	if addr >= uint64(len(words)) {
		runtimeFault("out-of-range read of memory %q at address %d (depth %d)", st.d.Mems[m].Name, addr, len(words))
	}
	return words[addr]
}

// An engine is one execution strategy bound to a design. Engines are created
// per Simulator and operate on the simulator's State.
type engine interface {
	kind() BackendKind
	// settle re-evaluates every combinational assignment once, in the
	// design's topologically derived order.
	settle(st *State)
	// step advances one clock edge: one combinational settle, then one
	// synchronous commit from pre-edge values.
	step(st *State)
}

// A Runner is a hand-written fast-path implementation of a recognized
// design. It must expose the same stepping semantics as the generic engines
// and reproduce the design's architectural state (registers, memories)
// exactly; the rtltest harness exists to enforce that equivalence.
type Runner interface {
	// Name identifies the runner for introspection.
	Name() string
	// Settle recomputes the architectural combinational state.
	Settle(st *State)
	// Step advances one clock edge.
	Step(st *State)
}

// A Recognizer inspects a flattened design and returns a Runner for it, or
// nil when the design is not one it implements.
type Recognizer func(d *Design) Runner

var (
	runnersMu sync.Mutex
	runners   []Recognizer
)

// RegisterRunner adds a native runner recognizer. Typically called from an
// init function of the package providing the runner.
//
func RegisterRunner(rec Recognizer) {
	runnersMu.Lock()
	runners = append(runners, rec)
	runnersMu.Unlock()
}

func findRunner(d *Design) Runner {
	runnersMu.Lock()
	recs := make([]Recognizer, len(runners))
	copy(recs, runners)
	runnersMu.Unlock()
	for _, rec := range recs {
		if r := rec(d); r != nil {
			return r
		}
	}
	return nil
}

type nativeEngine struct{ r Runner }

func (e *nativeEngine) kind() BackendKind { return Native }
func (e *nativeEngine) settle(st *State)  { e.r.Settle(st) }
func (e *nativeEngine) step(st *State)    { e.r.Step(st) }

// memWriteOp is a validated, pre-evaluated memory write waiting for commit.
type memWriteOp struct {
	mem  MemID
	addr uint64
	data uint64
}

// commitSeq performs the synchronous commit half of a step for the generic
// engines. eval computes an expression against the settled pre-edge state.
// All next values and memory writes are computed and validated before
// anything is applied, so register updates behave as if simultaneous and a
// runtime fault leaves committed state untouched.
func commitSeq(d *Design, st *State, eval func(Expr) uint64) {
	type pending struct {
		target SignalID
		val    uint64
	}
	var regs []pending
	var writes []memWriteOp

	for _, sb := range d.Seq {
		if sb.Reset >= 0 && st.Get(sb.Reset) != 0 {
			for _, a := range sb.Assigns {
				regs = append(regs, pending{a.Target, d.Signals[a.Target].Reset})
			}
			continue
		}
		if sb.Enable >= 0 && st.Get(sb.Enable) == 0 {
			continue // hold: registers keep their value, writes are suppressed
		}
		for _, a := range sb.Assigns {
			regs = append(regs, pending{a.Target, eval(a.Expr)})
		}
		for _, w := range sb.Writes {
			if eval(w.En) == 0 {
				continue
			}
			addr := eval(w.Addr)
			if addr >= uint64(len(st.mems[w.Mem])) {
				runtimeFault("out-of-range write to memory %q at address %d (depth %d)",
					d.Mems[w.Mem].Name, addr, len(st.mems[w.Mem]))
			}
			writes = append(writes, memWriteOp{w.Mem, addr, eval(w.Data)})
		}
	}

	for _, p := range regs {
		st.Set(p.target, p.val)
	}
	for _, w := range writes {
		st.mems[w.mem][w.addr] = truncate(w.data, d.Mems[w.mem].Width)
	}
}
