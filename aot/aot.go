// Package aot compiles a flattened rtl.Design ahead of time into a
// standalone LLVM IR module. The artifact holds one i64 global per signal,
// one array global per block memory, and four functions:
//
//	rtl_reset()            load declared register reset values
//	rtl_step()             one combinational settle + one sequential commit
//	rtl_peek(i64) -> i64   read a signal by its resolved index
//	rtl_poke(i64, i64)     write a signal by its resolved index (masked)
//
// The emitter is derived purely from the flattened IR: the module, compiled
// with any LLVM toolchain and driven by a thin host loop, must reproduce the
// interpreter's architectural state cycle for cycle. Unlike the in-process
// backends, the artifact performs no address range checks; the host is
// expected to validate images before loading them.
package aot

import (
	"io/ioutil"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"

	"github.com/rtlkit/rtl"
)

type emitter struct {
	d    *rtl.Design
	mod  *ir.Module
	sigs []*ir.Global
	mems []*ir.Global

	blk   *ir.Block // current insertion block
	fn    *ir.Func
	cache map[rtl.SignalID]value.Value
}

// Emit builds the LLVM module for a flattened design.
//
func Emit(d *rtl.Design) *ir.Module {
	e := &emitter{d: d, mod: ir.NewModule()}

	for _, sig := range d.Signals {
		e.sigs = append(e.sigs, e.mod.NewGlobalDef(sig.Name, constant.NewInt(types.I64, 0)))
	}
	for _, m := range d.Mems {
		at := types.NewArray(uint64(m.Depth), types.I64)
		e.mems = append(e.mems, e.mod.NewGlobalDef(m.Name, constant.NewZeroInitializer(at)))
	}

	e.emitReset()
	e.emitStep()
	e.emitPeek()
	e.emitPoke()
	return e.mod
}

// EmitText renders the module in LLVM assembly.
//
func EmitText(d *rtl.Design) string { return Emit(d).String() }

// WriteFile emits the module to a .ll file.
//
func WriteFile(d *rtl.Design, path string) error {
	return errors.Wrap(ioutil.WriteFile(path, []byte(EmitText(d)), 0644), "write module")
}

func (e *emitter) newBlock() *ir.Block {
	return e.fn.NewBlock("")
}

func (e *emitter) emitReset() {
	e.fn = e.mod.NewFunc("rtl_reset", types.Void)
	blk := e.fn.NewBlock("entry")
	for id, sig := range e.d.Signals {
		if sig.Kind == rtl.SigReg {
			blk.NewStore(constant.NewInt(types.I64, int64(sig.Reset)), e.sigs[id])
		}
	}
	blk.NewRet(nil)
}

// load returns the value of a signal inside rtl_step, loading each global at
// most once; settled combinational targets read their freshly computed SSA
// value instead of the stale global.
func (e *emitter) load(id rtl.SignalID) value.Value {
	if v, ok := e.cache[id]; ok {
		return v
	}
	v := e.blk.NewLoad(types.I64, e.sigs[id])
	e.cache[id] = v
	return v
}

func (e *emitter) emitStep() {
	e.fn = e.mod.NewFunc("rtl_step", types.Void)
	e.blk = e.fn.NewBlock("entry")
	e.cache = make(map[rtl.SignalID]value.Value)

	// combinational settle, in the design's topological order
	for _, a := range e.d.Comb {
		v := e.mask(e.expr(a.Expr), e.d.Signals[a.Target].Width)
		e.blk.NewStore(v, e.sigs[a.Target])
		e.cache[a.Target] = v
	}

	// synchronous commit: compute every next value and write for every
	// domain from settled pre-edge state, then store, so registers across
	// domains update as if simultaneous.
	type regCommit struct {
		target rtl.SignalID
		v      value.Value
	}
	type memOp struct {
		cond       value.Value
		addr, data value.Value
		mem        rtl.MemID
	}
	var regs []regCommit
	var ops []memOp
	for _, sb := range e.d.Seq {
		var rst, en value.Value
		if sb.Reset >= 0 {
			rst = e.blk.NewICmp(enum.IPredNE, e.load(sb.Reset), constant.NewInt(types.I64, 0))
		}
		if sb.Enable >= 0 {
			en = e.blk.NewICmp(enum.IPredNE, e.load(sb.Enable), constant.NewInt(types.I64, 0))
		}

		for _, a := range sb.Assigns {
			v := e.mask(e.expr(a.Expr), e.d.Signals[a.Target].Width)
			if en != nil {
				v = e.blk.NewSelect(en, v, e.load(a.Target))
			}
			if rst != nil {
				v = e.blk.NewSelect(rst, constant.NewInt(types.I64, int64(e.d.Signals[a.Target].Reset)), v)
			}
			regs = append(regs, regCommit{target: a.Target, v: v})
		}
		for _, w := range sb.Writes {
			wen := e.blk.NewICmp(enum.IPredNE, e.expr(w.En), constant.NewInt(types.I64, 0))
			cond := value.Value(wen)
			if en != nil {
				cond = e.blk.NewAnd(cond, en)
			}
			if rst != nil {
				cond = e.blk.NewAnd(cond, e.blk.NewXor(rst, constant.NewBool(true)))
			}
			ops = append(ops, memOp{
				cond: cond,
				addr: e.expr(w.Addr),
				data: e.mask(e.expr(w.Data), e.d.Mems[w.Mem].Width),
				mem:  w.Mem,
			})
		}
	}

	for _, rc := range regs {
		e.blk.NewStore(rc.v, e.sigs[rc.target])
	}
	for _, op := range ops {
		do := e.newBlock()
		cont := e.newBlock()
		e.blk.NewCondBr(op.cond, do, cont)
		at := types.NewArray(uint64(e.d.Mems[op.mem].Depth), types.I64)
		p := do.NewGetElementPtr(at, e.mems[op.mem], constant.NewInt(types.I64, 0), op.addr)
		do.NewStore(op.data, p)
		do.NewBr(cont)
		e.blk = cont
	}
	e.blk.NewRet(nil)
}

func (e *emitter) emitPeek() {
	e.fn = e.mod.NewFunc("rtl_peek", types.I64, ir.NewParam("id", types.I64))
	entry := e.fn.NewBlock("entry")
	def := e.fn.NewBlock("")
	def.NewRet(constant.NewInt(types.I64, 0))
	var cases []*ir.Case
	for id := range e.d.Signals {
		blk := e.fn.NewBlock("")
		blk.NewRet(blk.NewLoad(types.I64, e.sigs[id]))
		cases = append(cases, ir.NewCase(constant.NewInt(types.I64, int64(id)), blk))
	}
	entry.NewSwitch(e.fn.Params[0], def, cases...)
}

func (e *emitter) emitPoke() {
	e.fn = e.mod.NewFunc("rtl_poke", types.Void,
		ir.NewParam("id", types.I64), ir.NewParam("v", types.I64))
	entry := e.fn.NewBlock("entry")
	def := e.fn.NewBlock("")
	def.NewRet(nil)
	var cases []*ir.Case
	for id, sig := range e.d.Signals {
		blk := e.fn.NewBlock("")
		v := blk.NewAnd(e.fn.Params[1], constant.NewInt(types.I64, int64(maskOf(sig.Width))))
		blk.NewStore(v, e.sigs[id])
		blk.NewRet(nil)
		cases = append(cases, ir.NewCase(constant.NewInt(types.I64, int64(id)), blk))
	}
	entry.NewSwitch(e.fn.Params[0], def, cases...)
}

func maskOf(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(w) - 1
}

func (e *emitter) mask(v value.Value, w int) value.Value {
	if w >= 64 {
		return v
	}
	return e.blk.NewAnd(v, constant.NewInt(types.I64, int64(maskOf(w))))
}

func (e *emitter) bool2i64(v value.Value) value.Value {
	return e.blk.NewZExt(v, types.I64)
}

// signed sign-extends the low w bits of v to a full i64.
func (e *emitter) signed(v value.Value, w int) value.Value {
	if w >= 64 {
		return v
	}
	sh := constant.NewInt(types.I64, int64(64-w))
	return e.blk.NewAShr(e.blk.NewShl(v, sh), sh)
}

// clampShift turns an arbitrary shift amount into one LLVM accepts: amounts
// of 64 or more select a zero (or sign-filled) result below, but the shift
// instruction itself must see an in-range count.
func (e *emitter) clampShift(amt value.Value, max int64) (clamped, over value.Value) {
	over = e.blk.NewICmp(enum.IPredUGE, amt, constant.NewInt(types.I64, 64))
	clamped = e.blk.NewSelect(over, constant.NewInt(types.I64, max), amt)
	return clamped, over
}

// expr lowers one IR node to an i64 SSA value, masked to the node's width.
func (e *emitter) expr(x rtl.Expr) value.Value {
	switch n := x.(type) {
	case rtl.LitExpr:
		return constant.NewInt(types.I64, int64(n.Val))
	case rtl.Sig:
		return e.load(n.ID)
	case rtl.SelectExpr:
		v := e.blk.NewLShr(e.expr(n.X), constant.NewInt(types.I64, int64(n.Lo)))
		return e.mask(v, n.Hi-n.Lo+1)
	case rtl.ConcatExpr:
		var v value.Value
		for _, p := range n.Parts {
			pv := e.expr(p)
			if v == nil {
				v = pv
				continue
			}
			v = e.blk.NewOr(e.blk.NewShl(v, constant.NewInt(types.I64, int64(p.Width()))), pv)
		}
		return v
	case rtl.UnaryExpr:
		v := e.expr(n.X)
		switch n.Op {
		case rtl.OpNot:
			return e.mask(e.blk.NewXor(v, constant.NewInt(types.I64, -1)), n.X.Width())
		case rtl.OpNeg:
			return e.mask(e.blk.NewSub(constant.NewInt(types.I64, 0), v), n.X.Width())
		case rtl.OpRedOr:
			return e.bool2i64(e.blk.NewICmp(enum.IPredNE, v, constant.NewInt(types.I64, 0)))
		}
	case rtl.BinaryExpr:
		return e.binary(n)
	case rtl.MuxExpr:
		cond := e.blk.NewICmp(enum.IPredNE, e.expr(n.Cond), constant.NewInt(types.I64, 0))
		return e.blk.NewSelect(cond, e.expr(n.Then), e.expr(n.Else))
	case rtl.CaseExpr:
		sel := e.expr(n.Sel)
		// build from the default outwards so the first matching entry wins
		v := e.expr(n.Default)
		for i := len(n.Entries) - 1; i >= 0; i-- {
			w := n.Entries[i]
			hit := e.blk.NewICmp(enum.IPredEQ, sel, constant.NewInt(types.I64, int64(w.Key)))
			v = e.blk.NewSelect(hit, e.expr(w.Val), v)
		}
		return v
	case rtl.ExtendExpr:
		v := e.expr(n.X)
		if !n.Signed {
			return v
		}
		return e.mask(e.signed(v, n.X.Width()), n.W)
	case rtl.MemReadExpr:
		at := types.NewArray(uint64(e.d.Mems[n.Mem].Depth), types.I64)
		p := e.blk.NewGetElementPtr(at, e.mems[n.Mem], constant.NewInt(types.I64, 0), e.expr(n.Addr))
		return e.blk.NewLoad(types.I64, p)
	}
	panic("unknown expression node")
}

func (e *emitter) binary(n rtl.BinaryExpr) value.Value {
	l, r := e.expr(n.L), e.expr(n.R)
	w := n.L.Width()
	switch n.Op {
	case rtl.OpAdd:
		return e.mask(e.blk.NewAdd(l, r), n.W)
	case rtl.OpSub:
		return e.mask(e.blk.NewSub(l, r), n.W)
	case rtl.OpAnd:
		return e.blk.NewAnd(l, r)
	case rtl.OpOr:
		return e.blk.NewOr(l, r)
	case rtl.OpXor:
		return e.blk.NewXor(l, r)
	case rtl.OpShl:
		amt, over := e.clampShift(r, 0)
		v := e.blk.NewSelect(over, constant.NewInt(types.I64, 0), e.blk.NewShl(l, amt))
		return e.mask(v, w)
	case rtl.OpShr:
		amt, over := e.clampShift(r, 0)
		v := e.blk.NewLShr(l, amt)
		return e.blk.NewSelect(over, constant.NewInt(types.I64, 0), v)
	case rtl.OpSra:
		amt, _ := e.clampShift(r, 63)
		return e.mask(e.blk.NewAShr(e.signed(l, w), amt), w)
	case rtl.OpEq:
		return e.bool2i64(e.blk.NewICmp(enum.IPredEQ, l, r))
	case rtl.OpNe:
		return e.bool2i64(e.blk.NewICmp(enum.IPredNE, l, r))
	case rtl.OpUlt:
		return e.bool2i64(e.blk.NewICmp(enum.IPredULT, l, r))
	case rtl.OpUle:
		return e.bool2i64(e.blk.NewICmp(enum.IPredULE, l, r))
	case rtl.OpUgt:
		return e.bool2i64(e.blk.NewICmp(enum.IPredUGT, l, r))
	case rtl.OpUge:
		return e.bool2i64(e.blk.NewICmp(enum.IPredUGE, l, r))
	case rtl.OpSlt:
		return e.bool2i64(e.blk.NewICmp(enum.IPredSLT, e.signed(l, w), e.signed(r, w)))
	case rtl.OpSle:
		return e.bool2i64(e.blk.NewICmp(enum.IPredSLE, e.signed(l, w), e.signed(r, w)))
	case rtl.OpSgt:
		return e.bool2i64(e.blk.NewICmp(enum.IPredSGT, e.signed(l, w), e.signed(r, w)))
	case rtl.OpSge:
		return e.bool2i64(e.blk.NewICmp(enum.IPredSGE, e.signed(l, w), e.signed(r, w)))
	}
	panic("unknown binary operator")
}
