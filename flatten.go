package rtl

import (
	"strings"

	"github.com/pkg/errors"
)

// A Design is the product of hierarchy resolution: one global signal table,
// one memory table, the merged combinational assignments in topologically
// derived evaluation order and the clocked domains. A Design is immutable
// after Flatten; only signal and memory values mutate during simulation, and
// those live in per-Simulator state so one Design can back any number of
// concurrent simulation instances.
type Design struct {
	Name    string
	Signals []Signal
	Mems    []Memory
	Comb    []Assign
	Seq     []SeqBlock

	sigIndex map[string]SignalID
	memIndex map[string]MemID
}

// SignalID resolves a qualified signal name ("cpu.alu.carry") to its index.
func (d *Design) SignalID(name string) (SignalID, error) {
	id, ok := d.sigIndex[name]
	if !ok {
		return -1, errors.Errorf("%s: no such signal %q", d.Name, name)
	}
	return id, nil
}

// MemID resolves a qualified memory name to its index.
func (d *Design) MemID(name string) (MemID, error) {
	id, ok := d.memIndex[name]
	if !ok {
		return -1, errors.Errorf("%s: no such memory %q", d.Name, name)
	}
	return id, nil
}

type flattener struct {
	d *Design
}

// Flatten resolves c's instance hierarchy into a single Design: child
// signals are renamed into a qualified namespace, port bindings become
// direct signal aliases (or constant-driven wires for literal bindings), and
// the combinational assignments are ordered topologically, stable with
// respect to declaration order. Combinational cycles, unbound ports and
// duplicate drivers are compile-time errors reported by path.
//
func Flatten(c *Component) (*Design, error) {
	f := &flattener{d: &Design{
		Name:     c.Name,
		sigIndex: make(map[string]SignalID),
		memIndex: make(map[string]MemID),
	}}
	if err := f.mount(c, "", nil); err != nil {
		return nil, err
	}
	if err := f.checkDrivers(); err != nil {
		return nil, err
	}
	if err := f.orderComb(); err != nil {
		return nil, err
	}
	return f.d, nil
}

func (f *flattener) newSignal(name string, sig Signal) SignalID {
	id := SignalID(len(f.d.Signals))
	sig.Name = name
	f.d.Signals = append(f.d.Signals, sig)
	f.d.sigIndex[name] = id
	return id
}

// mount adds c's contents to the design under the given path prefix. ports
// maps c's port ids to already-allocated design signals (aliasing); it is
// nil for the top-level component.
func (f *flattener) mount(c *Component, prefix string, ports map[SignalID]SignalID) error {
	sigMap := make([]SignalID, len(c.Signals))
	for id, sig := range c.Signals {
		if did, ok := ports[SignalID(id)]; ok {
			sigMap[id] = did
			continue
		}
		sigMap[id] = f.newSignal(prefix+sig.Name, sig)
	}
	memMap := make([]MemID, len(c.Mems))
	for id, m := range c.Mems {
		did := MemID(len(f.d.Mems))
		m.Name = prefix + m.Name
		f.d.Mems = append(f.d.Mems, m)
		f.d.memIndex[m.Name] = did
		memMap[id] = did
	}

	for _, a := range c.Comb {
		f.d.Comb = append(f.d.Comb, Assign{
			Target: sigMap[a.Target],
			Expr:   remap(a.Expr, sigMap, memMap),
		})
	}
	for _, sb := range c.Seq {
		nb := SeqBlock{Reset: -1, Enable: -1}
		if sb.Reset >= 0 {
			nb.Reset = sigMap[sb.Reset]
		}
		if sb.Enable >= 0 {
			nb.Enable = sigMap[sb.Enable]
		}
		for _, a := range sb.Assigns {
			nb.Assigns = append(nb.Assigns, Assign{Target: sigMap[a.Target], Expr: remap(a.Expr, sigMap, memMap)})
		}
		for _, w := range sb.Writes {
			nb.Writes = append(nb.Writes, MemWrite{
				Mem:  memMap[w.Mem],
				Addr: remap(w.Addr, sigMap, memMap),
				Data: remap(w.Data, sigMap, memMap),
				En:   remap(w.En, sigMap, memMap),
			})
		}
		f.d.Seq = append(f.d.Seq, nb)
	}

	for _, inst := range c.Insts {
		instPath := prefix + inst.Name + "."
		child := inst.Comp
		childPorts := make(map[SignalID]SignalID)
		for pid, psig := range child.Signals {
			if psig.Kind != SigInput && psig.Kind != SigOutput {
				continue
			}
			bv, bound := inst.Conns[psig.Name]
			if !bound {
				switch {
				case psig.Kind == SigOutput:
					return errors.Errorf("%s: unbound output port %s%s", f.d.Name, instPath, psig.Name)
				case psig.HasDefault:
					bv = psig.Default
				default:
					return errors.Errorf("%s: unconnected input port %s%s", f.d.Name, instPath, psig.Name)
				}
			}
			switch v := bv.(type) {
			case string:
				childPorts[SignalID(pid)] = sigMap[c.index[v]]
			case uint64, int:
				// constant binding: materialize a wire driven by the literal.
				id := f.newSignal(instPath+psig.Name, Signal{Kind: SigWire, Width: psig.Width})
				f.d.Comb = append(f.d.Comb, Assign{Target: id, Expr: LitExpr{Val: toUint64(v), W: psig.Width}})
				childPorts[SignalID(pid)] = id
			}
		}
		if err := f.mount(child, instPath, childPorts); err != nil {
			return err
		}
	}
	return nil
}

// remap rewrites an expression tree, substituting component-local signal and
// memory ids with their design-global counterparts.
func remap(e Expr, sigMap []SignalID, memMap []MemID) Expr {
	switch n := e.(type) {
	case LitExpr:
		return n
	case Sig:
		n.ID = sigMap[n.ID]
		return n
	case SelectExpr:
		n.X = remap(n.X, sigMap, memMap)
		return n
	case ConcatExpr:
		parts := make([]Expr, len(n.Parts))
		for i, p := range n.Parts {
			parts[i] = remap(p, sigMap, memMap)
		}
		n.Parts = parts
		return n
	case UnaryExpr:
		n.X = remap(n.X, sigMap, memMap)
		return n
	case BinaryExpr:
		n.L = remap(n.L, sigMap, memMap)
		n.R = remap(n.R, sigMap, memMap)
		return n
	case MuxExpr:
		n.Cond = remap(n.Cond, sigMap, memMap)
		n.Then = remap(n.Then, sigMap, memMap)
		n.Else = remap(n.Else, sigMap, memMap)
		return n
	case CaseExpr:
		n.Sel = remap(n.Sel, sigMap, memMap)
		entries := make([]When, len(n.Entries))
		for i, w := range n.Entries {
			entries[i] = When{Key: w.Key, Val: remap(w.Val, sigMap, memMap)}
		}
		n.Entries = entries
		n.Default = remap(n.Default, sigMap, memMap)
		return n
	case ExtendExpr:
		n.X = remap(n.X, sigMap, memMap)
		return n
	case MemReadExpr:
		n.Mem = memMap[n.Mem]
		n.Addr = remap(n.Addr, sigMap, memMap)
		return n
	}
	panic("unknown expression node")
}

// walkSigs calls fn for every signal reference in e.
func walkSigs(e Expr, fn func(SignalID)) {
	switch n := e.(type) {
	case LitExpr:
	case Sig:
		fn(n.ID)
	case SelectExpr:
		walkSigs(n.X, fn)
	case ConcatExpr:
		for _, p := range n.Parts {
			walkSigs(p, fn)
		}
	case UnaryExpr:
		walkSigs(n.X, fn)
	case BinaryExpr:
		walkSigs(n.L, fn)
		walkSigs(n.R, fn)
	case MuxExpr:
		walkSigs(n.Cond, fn)
		walkSigs(n.Then, fn)
		walkSigs(n.Else, fn)
	case CaseExpr:
		walkSigs(n.Sel, fn)
		for _, w := range n.Entries {
			walkSigs(w.Val, fn)
		}
		walkSigs(n.Default, fn)
	case ExtendExpr:
		walkSigs(n.X, fn)
	case MemReadExpr:
		walkSigs(n.Addr, fn)
	}
}

// checkDrivers rejects signals driven more than once after aliasing has
// merged component namespaces, naming the offender by qualified path.
func (f *flattener) checkDrivers() error {
	d := f.d
	drivers := make(map[SignalID]int)
	for _, a := range d.Comb {
		drivers[a.Target]++
	}
	seqDriven := make(map[SignalID]bool)
	for _, sb := range d.Seq {
		for _, a := range sb.Assigns {
			if drivers[a.Target] > 0 {
				return errors.Errorf("%s: signal %q driven both combinationally and from a clocked domain", d.Name, d.Signals[a.Target].Name)
			}
			if seqDriven[a.Target] {
				return errors.Errorf("%s: register %q driven from two sequential domains", d.Name, d.Signals[a.Target].Name)
			}
			seqDriven[a.Target] = true
		}
	}
	for id, n := range drivers {
		if n > 1 {
			return errors.Errorf("%s: signal %q has %d drivers", d.Name, d.Signals[id].Name, n)
		}
	}
	return nil
}

// orderComb sorts the combinational assignments topologically so every
// assignment reads only values already settled this step. The sort is stable
// with respect to declaration order, keeping evaluation order a pure
// function of compile-time topology. A dependency cycle is a compile-time
// error; there is no runtime iteration to a fixed point.
func (f *flattener) orderComb() error {
	d := f.d
	n := len(d.Comb)
	byTarget := make(map[SignalID]int, n)
	for i, a := range d.Comb {
		byTarget[a.Target] = i
	}

	succs := make([][]int, n)
	indeg := make([]int, n)
	selfLoop := -1
	for i, a := range d.Comb {
		seen := make(map[int]bool)
		walkSigs(a.Expr, func(id SignalID) {
			j, ok := byTarget[id]
			if !ok || seen[j] {
				return // registers and inputs are pre-edge state, not deps
			}
			if j == i && selfLoop < 0 {
				selfLoop = i
			}
			seen[j] = true
			succs[j] = append(succs[j], i)
			indeg[i]++
		})
	}
	if selfLoop >= 0 {
		return errors.Errorf("%s: combinational cycle involving %s", d.Name, d.Signals[d.Comb[selfLoop].Target].Name)
	}

	ordered := make([]Assign, 0, n)
	placed := make([]bool, n)
	for len(ordered) < n {
		found := false
		for i := 0; i < n; i++ {
			if placed[i] || indeg[i] != 0 {
				continue
			}
			placed[i] = true
			ordered = append(ordered, d.Comb[i])
			for _, s := range succs[i] {
				indeg[s]--
			}
			found = true
			break
		}
		if !found {
			var names []string
			for i := 0; i < n; i++ {
				if !placed[i] {
					names = append(names, d.Signals[d.Comb[i].Target].Name)
				}
			}
			return errors.Errorf("%s: combinational cycle involving %s", d.Name, strings.Join(names, ", "))
		}
	}
	d.Comb = ordered
	return nil
}
