package rtl

// interp is the reference backend: a tree-walking evaluator over the
// flattened expression IR. Slowest, simplest, and the oracle every other
// backend is measured against.
type interp struct {
	d *Design
}

func newInterp(d *Design) *interp { return &interp{d: d} }

func (e *interp) kind() BackendKind { return Interpreter }

func (e *interp) settle(st *State) {
	for _, a := range e.d.Comb {
		st.Set(a.Target, eval(a.Expr, st))
	}
}

func (e *interp) step(st *State) {
	e.settle(st)
	commitSeq(e.d, st, func(x Expr) uint64 { return eval(x, st) })
}

// eval computes an expression against the current state. Every node masks
// its result to its declared width, so no intermediate value ever exceeds
// the width the IR assigns to it.
func eval(e Expr, st *State) uint64 {
	switch n := e.(type) {
	case LitExpr:
		return n.Val
	case Sig:
		return st.vals[n.ID]
	case SelectExpr:
		return selectBits(eval(n.X, st), n.Hi, n.Lo)
	case ConcatExpr:
		var v uint64
		for _, p := range n.Parts {
			v = v<<uint(p.Width()) | eval(p, st)
		}
		return v
	case UnaryExpr:
		x := eval(n.X, st)
		switch n.Op {
		case OpNot:
			return truncate(^x, n.X.Width())
		case OpNeg:
			return truncate(-x, n.X.Width())
		case OpRedOr:
			return boolBit(x != 0)
		}
	case BinaryExpr:
		return evalBinary(n, eval(n.L, st), eval(n.R, st))
	case MuxExpr:
		if eval(n.Cond, st) != 0 {
			return eval(n.Then, st)
		}
		return eval(n.Else, st)
	case CaseExpr:
		sel := eval(n.Sel, st)
		for _, w := range n.Entries {
			if w.Key == sel {
				return eval(w.Val, st)
			}
		}
		return eval(n.Default, st)
	case ExtendExpr:
		x := eval(n.X, st)
		if n.Signed {
			return signExtend(x, n.X.Width(), n.W)
		}
		return x
	case MemReadExpr:
		return st.memAt(n.Mem, eval(n.Addr, st))
	}
	panic("unknown expression node")
}

func evalBinary(n BinaryExpr, l, r uint64) uint64 {
	w := n.L.Width()
	switch n.Op {
	case OpAdd:
		return truncate(l+r, n.W)
	case OpSub:
		return truncate(l-r, n.W)
	case OpAnd:
		return l & r
	case OpOr:
		return l | r
	case OpXor:
		return l ^ r
	case OpShl:
		return truncate(l<<shiftAmount(r), w)
	case OpShr:
		return l >> shiftAmount(r)
	case OpSra:
		sh := shiftAmount(r)
		if sh > 63 {
			sh = 63
		}
		return truncate(uint64(toSigned(l, w)>>sh), w)
	case OpEq:
		return boolBit(l == r)
	case OpNe:
		return boolBit(l != r)
	case OpUlt:
		return boolBit(l < r)
	case OpUle:
		return boolBit(l <= r)
	case OpUgt:
		return boolBit(l > r)
	case OpUge:
		return boolBit(l >= r)
	case OpSlt:
		return boolBit(toSigned(l, w) < toSigned(r, w))
	case OpSle:
		return boolBit(toSigned(l, w) <= toSigned(r, w))
	case OpSgt:
		return boolBit(toSigned(l, w) > toSigned(r, w))
	case OpSge:
		return boolBit(toSigned(l, w) >= toSigned(r, w))
	}
	panic("unknown binary operator")
}

// shiftAmount clamps a shift count so Go's shift semantics (zero past the
// operand width) match the IR's.
func shiftAmount(r uint64) uint {
	if r > 64 {
		return 64
	}
	return uint(r)
}
