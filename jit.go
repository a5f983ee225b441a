package rtl

// jit compiles the flattened IR into composed closures once at construction
// and replays them every step, the way a mounted part closes over its pin
// numbers. It must be functionally indistinguishable from the interpreter
// for every design.
type jit struct {
	d    *Design
	comb []compiledAssign
	seq  []compiledSeq

	// commit scratch, reused across steps
	regs   []pendingReg
	writes []memWriteOp
}

type pendingReg struct {
	target SignalID
	val    uint64
}

type evalFn func(st *State) uint64

type compiledAssign struct {
	target SignalID
	width  int
	fn     evalFn
}

type compiledWrite struct {
	mem   MemID
	depth uint64
	addr  evalFn
	data  evalFn
	en    evalFn
}

type compiledSeq struct {
	reset   SignalID
	enable  SignalID
	assigns []compiledAssign
	writes  []compiledWrite
}

func newJIT(d *Design) *jit {
	j := &jit{d: d}
	for _, a := range d.Comb {
		j.comb = append(j.comb, compiledAssign{
			target: a.Target,
			width:  d.Signals[a.Target].Width,
			fn:     compile(a.Expr),
		})
	}
	for _, sb := range d.Seq {
		cs := compiledSeq{reset: sb.Reset, enable: sb.Enable}
		for _, a := range sb.Assigns {
			cs.assigns = append(cs.assigns, compiledAssign{
				target: a.Target,
				width:  d.Signals[a.Target].Width,
				fn:     compile(a.Expr),
			})
		}
		for _, w := range sb.Writes {
			cs.writes = append(cs.writes, compiledWrite{
				mem:   w.Mem,
				depth: uint64(d.Mems[w.Mem].Depth),
				addr:  compile(w.Addr),
				data:  compile(w.Data),
				en:    compile(w.En),
			})
		}
		j.seq = append(j.seq, cs)
	}
	return j
}

func (j *jit) kind() BackendKind { return JIT }

func (j *jit) settle(st *State) {
	for i := range j.comb {
		a := &j.comb[i]
		st.vals[a.target] = truncate(a.fn(st), a.width)
	}
}

func (j *jit) step(st *State) {
	j.settle(st)

	// compute every next value and memory write from pre-edge state, then
	// apply, so register updates behave as if simultaneous.
	j.regs = j.regs[:0]
	j.writes = j.writes[:0]
	for i := range j.seq {
		sb := &j.seq[i]
		if sb.reset >= 0 && st.vals[sb.reset] != 0 {
			for _, a := range sb.assigns {
				j.regs = append(j.regs, pendingReg{a.target, j.d.Signals[a.target].Reset})
			}
			continue
		}
		if sb.enable >= 0 && st.vals[sb.enable] == 0 {
			continue // hold: registers keep their value, writes are suppressed
		}
		for _, a := range sb.assigns {
			j.regs = append(j.regs, pendingReg{a.target, truncate(a.fn(st), a.width)})
		}
		for _, w := range sb.writes {
			if w.en(st) == 0 {
				continue
			}
			addr := w.addr(st)
			if addr >= w.depth {
				runtimeFault("out-of-range write to memory %q at address %d (depth %d)",
					j.d.Mems[w.mem].Name, addr, w.depth)
			}
			j.writes = append(j.writes, memWriteOp{w.mem, addr, w.data(st)})
		}
	}

	for _, p := range j.regs {
		st.vals[p.target] = p.val
	}
	for _, w := range j.writes {
		st.mems[w.mem][w.addr] = truncate(w.data, j.d.Mems[w.mem].Width)
	}
}

// compile lowers one expression tree into a closure graph. Each node becomes
// a function over the state; widths and masks are resolved here, once, so
// stepping does no IR inspection at all.
func compile(e Expr) evalFn {
	switch n := e.(type) {
	case LitExpr:
		v := n.Val
		return func(*State) uint64 { return v }
	case Sig:
		id := n.ID
		return func(st *State) uint64 { return st.vals[id] }
	case SelectExpr:
		x := compile(n.X)
		lo := uint(n.Lo)
		m := maskOf(n.Hi - n.Lo + 1)
		return func(st *State) uint64 { return x(st) >> lo & m }
	case ConcatExpr:
		parts := make([]evalFn, len(n.Parts))
		shifts := make([]uint, len(n.Parts))
		for i, p := range n.Parts {
			parts[i] = compile(p)
			shifts[i] = uint(p.Width())
		}
		return func(st *State) uint64 {
			var v uint64
			for i, p := range parts {
				v = v<<shifts[i] | p(st)
			}
			return v
		}
	case UnaryExpr:
		x := compile(n.X)
		m := maskOf(n.X.Width())
		switch n.Op {
		case OpNot:
			return func(st *State) uint64 { return ^x(st) & m }
		case OpNeg:
			return func(st *State) uint64 { return -x(st) & m }
		case OpRedOr:
			return func(st *State) uint64 { return boolBit(x(st) != 0) }
		}
	case BinaryExpr:
		return compileBinary(n)
	case MuxExpr:
		cond, then, els := compile(n.Cond), compile(n.Then), compile(n.Else)
		return func(st *State) uint64 {
			if cond(st) != 0 {
				return then(st)
			}
			return els(st)
		}
	case CaseExpr:
		sel := compile(n.Sel)
		keys := make([]uint64, len(n.Entries))
		vals := make([]evalFn, len(n.Entries))
		for i, w := range n.Entries {
			keys[i] = w.Key
			vals[i] = compile(w.Val)
		}
		def := compile(n.Default)
		return func(st *State) uint64 {
			s := sel(st)
			for i, k := range keys {
				if k == s {
					return vals[i](st)
				}
			}
			return def(st)
		}
	case ExtendExpr:
		x := compile(n.X)
		if !n.Signed {
			return x
		}
		w, to := n.X.Width(), n.W
		sign := uint64(1) << uint(w-1)
		ext := maskOf(to) &^ maskOf(w)
		return func(st *State) uint64 {
			v := x(st)
			if v&sign != 0 {
				v |= ext
			}
			return v
		}
	case MemReadExpr:
		mem := n.Mem
		addr := compile(n.Addr)
		return func(st *State) uint64 { return st.memAt(mem, addr(st)) }
	}
	panic("unknown expression node")
}

func compileBinary(n BinaryExpr) evalFn {
	l, r := compile(n.L), compile(n.R)
	w := n.L.Width()
	m := maskOf(n.W)
	switch n.Op {
	case OpAdd:
		return func(st *State) uint64 { return (l(st) + r(st)) & m }
	case OpSub:
		return func(st *State) uint64 { return (l(st) - r(st)) & m }
	case OpAnd:
		return func(st *State) uint64 { return l(st) & r(st) }
	case OpOr:
		return func(st *State) uint64 { return l(st) | r(st) }
	case OpXor:
		return func(st *State) uint64 { return l(st) ^ r(st) }
	case OpShl:
		wm := maskOf(w)
		return func(st *State) uint64 { return l(st) << shiftAmount(r(st)) & wm }
	case OpShr:
		return func(st *State) uint64 { return l(st) >> shiftAmount(r(st)) }
	case OpSra:
		wm := maskOf(w)
		return func(st *State) uint64 {
			sh := shiftAmount(r(st))
			if sh > 63 {
				sh = 63
			}
			return uint64(toSigned(l(st), w)>>sh) & wm
		}
	case OpEq:
		return func(st *State) uint64 { return boolBit(l(st) == r(st)) }
	case OpNe:
		return func(st *State) uint64 { return boolBit(l(st) != r(st)) }
	case OpUlt:
		return func(st *State) uint64 { return boolBit(l(st) < r(st)) }
	case OpUle:
		return func(st *State) uint64 { return boolBit(l(st) <= r(st)) }
	case OpUgt:
		return func(st *State) uint64 { return boolBit(l(st) > r(st)) }
	case OpUge:
		return func(st *State) uint64 { return boolBit(l(st) >= r(st)) }
	case OpSlt:
		return func(st *State) uint64 { return boolBit(toSigned(l(st), w) < toSigned(r(st), w)) }
	case OpSle:
		return func(st *State) uint64 { return boolBit(toSigned(l(st), w) <= toSigned(r(st), w)) }
	case OpSgt:
		return func(st *State) uint64 { return boolBit(toSigned(l(st), w) > toSigned(r(st), w)) }
	case OpSge:
		return func(st *State) uint64 { return boolBit(toSigned(l(st), w) >= toSigned(r(st), w)) }
	}
	panic("unknown binary operator")
}
