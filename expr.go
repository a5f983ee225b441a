package rtl

import (
	"strconv"

	"github.com/pkg/errors"
)

// SignalID identifies a signal within a component or flattened design.
type SignalID int

// MemID identifies a block memory within a component or flattened design.
type MemID int

// An Expr is a node in the typed expression IR. Every node has a statically
// known result width in [1, 64]. Expressions are built with the package
// constructors (Lit, Add, Mux, ...) and the Sig/Mem handles returned by a
// Builder; invalid constructions (width mismatches, out-of-range selects)
// are reported as compile-time errors by Builder.Build.
//
type Expr interface {
	// Width returns the result width of the node in bits.
	Width() int
	expr()
}

func (LitExpr) expr()     {}
func (Sig) expr()         {}
func (SelectExpr) expr()  {}
func (ConcatExpr) expr()  {}
func (UnaryExpr) expr()   {}
func (BinaryExpr) expr()  {}
func (MuxExpr) expr()     {}
func (CaseExpr) expr()    {}
func (ExtendExpr) expr()  {}
func (MemReadExpr) expr() {}

// buildError carries a compile-time diagnostic out of expression
// constructors. Builder.Build and Flatten recover it and return it as an
// error annotated with the offending component path.
type buildError struct{ err error }

func fail(format string, args ...interface{}) {
	panic(buildError{errors.Errorf(format, args...)})
}

func checkWidth(w int, what string) {
	if w < 1 || w > MaxWidth {
		fail("%s: width %d out of range [1, %d]", what, w, MaxWidth)
	}
}

// LitExpr is a literal constant of an explicit width.
type LitExpr struct {
	Val uint64
	W   int
}

func (e LitExpr) Width() int { return e.W }

// Lit returns a w-bit literal. The value must fit in w bits.
//
func Lit(v uint64, w int) Expr {
	checkWidth(w, "literal")
	if v != truncate(v, w) {
		fail("literal %d does not fit in %d bits", v, w)
	}
	return LitExpr{Val: v, W: w}
}

// Sig is a reference to a declared signal. Sig handles are returned by the
// Builder declaration methods and are used both as expression operands and
// as assignment targets.
type Sig struct {
	ID   SignalID
	Name string
	W    int
}

func (s Sig) Width() int { return s.W }

// SelectExpr extracts bits [Hi:Lo] of X.
type SelectExpr struct {
	X      Expr
	Hi, Lo int
}

func (e SelectExpr) Width() int { return e.Hi - e.Lo + 1 }

// Bits returns x[hi:lo], a hi-lo+1 bit value. Selecting outside the operand
// width is a compile-time error.
//
func Bits(x Expr, hi, lo int) Expr {
	if lo < 0 || hi < lo || hi >= x.Width() {
		fail("bit select [%d:%d] out of range for %d-bit operand", hi, lo, x.Width())
	}
	return SelectExpr{X: x, Hi: hi, Lo: lo}
}

// Bit returns the single bit x[i].
//
func Bit(x Expr, i int) Expr { return Bits(x, i, i) }

// ConcatExpr concatenates Parts most-significant-first. Its width is the sum
// of the part widths.
type ConcatExpr struct {
	Parts []Expr
	W     int
}

func (e ConcatExpr) Width() int { return e.W }

// Cat concatenates parts MSB-first into one value.
//
func Cat(parts ...Expr) Expr {
	if len(parts) == 0 {
		fail("empty concatenation")
	}
	w := 0
	for _, p := range parts {
		w += p.Width()
	}
	checkWidth(w, "concatenation")
	return ConcatExpr{Parts: parts, W: w}
}

// UnaryOp enumerates unary operators.
type UnaryOp int

// Unary operators.
const (
	OpNot   UnaryOp = iota // bitwise complement
	OpNeg                  // two's complement negation
	OpRedOr                // reduction or: 1 if any bit set
)

var unaryOpNames = [...]string{OpNot: "not", OpNeg: "neg", OpRedOr: "redor"}

func (op UnaryOp) String() string {
	if int(op) < len(unaryOpNames) {
		return unaryOpNames[op]
	}
	return "unary(" + strconv.Itoa(int(op)) + ")"
}

// UnaryExpr applies Op to X.
type UnaryExpr struct {
	Op UnaryOp
	X  Expr
}

func (e UnaryExpr) Width() int {
	if e.Op == OpRedOr {
		return 1
	}
	return e.X.Width()
}

// Not returns the bitwise complement of x.
func Not(x Expr) Expr { return UnaryExpr{Op: OpNot, X: x} }

// Neg returns the two's complement negation of x, masked to x's width.
func Neg(x Expr) Expr { return UnaryExpr{Op: OpNeg, X: x} }

// RedOr returns the 1-bit or-reduction of x (1 if any bit of x is set).
func RedOr(x Expr) Expr { return UnaryExpr{Op: OpRedOr, X: x} }

// BinOp enumerates binary operators.
type BinOp int

// Binary operators. Add and Sub widen their result by one bit so that the
// carry (respectively borrow) is readable as the top bit; 64-bit adds wrap
// since there is no 65th bit to hold the carry. Comparisons come in explicit
// unsigned and signed variants and yield a 1-bit result. Bitwise and
// comparison operators require operands of equal width; use ZExt/SExt to
// reconcile widths explicitly.
const (
	OpAdd BinOp = iota
	OpSub
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr // logical shift right
	OpSra // arithmetic shift right
	OpEq
	OpNe
	OpUlt
	OpUle
	OpUgt
	OpUge
	OpSlt
	OpSle
	OpSgt
	OpSge
)

var binOpNames = [...]string{
	OpAdd: "add", OpSub: "sub", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpShl: "shl", OpShr: "shr", OpSra: "sra",
	OpEq: "eq", OpNe: "ne",
	OpUlt: "ult", OpUle: "ule", OpUgt: "ugt", OpUge: "uge",
	OpSlt: "slt", OpSle: "sle", OpSgt: "sgt", OpSge: "sge",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return "binary(" + strconv.Itoa(int(op)) + ")"
}

func (op BinOp) isCompare() bool { return op >= OpEq }

// BinaryExpr applies Op to L and R.
type BinaryExpr struct {
	Op   BinOp
	L, R Expr
	W    int
}

func (e BinaryExpr) Width() int { return e.W }

func binary(op BinOp, l, r Expr) Expr {
	w := l.Width()
	switch {
	case op == OpShl || op == OpShr || op == OpSra:
		// shift amount may have any width
	case w != r.Width():
		fail("width mismatch in %s: %d vs %d bits", op, w, r.Width())
	}
	switch {
	case op.isCompare():
		w = 1
	case op == OpAdd || op == OpSub:
		if w < MaxWidth {
			w++
		}
	}
	return BinaryExpr{Op: op, L: l, R: r, W: w}
}

// Add returns l + r. For w-bit operands the result is w+1 bits wide with the
// carry in the top bit.
func Add(l, r Expr) Expr { return binary(OpAdd, l, r) }

// Sub returns l - r. For w-bit operands the result is w+1 bits wide with the
// borrow in the top bit.
func Sub(l, r Expr) Expr { return binary(OpSub, l, r) }

// And returns the bitwise and of two equal-width operands.
func And(l, r Expr) Expr { return binary(OpAnd, l, r) }

// Or returns the bitwise or of two equal-width operands.
func Or(l, r Expr) Expr { return binary(OpOr, l, r) }

// Xor returns the bitwise xor of two equal-width operands.
func Xor(l, r Expr) Expr { return binary(OpXor, l, r) }

// Shl returns l shifted left by r, masked to l's width.
func Shl(l, r Expr) Expr { return binary(OpShl, l, r) }

// Shr returns l logically shifted right by r.
func Shr(l, r Expr) Expr { return binary(OpShr, l, r) }

// Sra returns l arithmetically shifted right by r, replicating l's sign bit.
func Sra(l, r Expr) Expr { return binary(OpSra, l, r) }

// Eq returns the 1-bit comparison l == r.
func Eq(l, r Expr) Expr { return binary(OpEq, l, r) }

// Ne returns the 1-bit comparison l != r.
func Ne(l, r Expr) Expr { return binary(OpNe, l, r) }

// Ult returns the unsigned 1-bit comparison l < r.
func Ult(l, r Expr) Expr { return binary(OpUlt, l, r) }

// Ule returns the unsigned 1-bit comparison l <= r.
func Ule(l, r Expr) Expr { return binary(OpUle, l, r) }

// Ugt returns the unsigned 1-bit comparison l > r.
func Ugt(l, r Expr) Expr { return binary(OpUgt, l, r) }

// Uge returns the unsigned 1-bit comparison l >= r.
func Uge(l, r Expr) Expr { return binary(OpUge, l, r) }

// Slt returns the signed 1-bit comparison l < r.
func Slt(l, r Expr) Expr { return binary(OpSlt, l, r) }

// Sle returns the signed 1-bit comparison l <= r.
func Sle(l, r Expr) Expr { return binary(OpSle, l, r) }

// Sgt returns the signed 1-bit comparison l > r.
func Sgt(l, r Expr) Expr { return binary(OpSgt, l, r) }

// Sge returns the signed 1-bit comparison l >= r.
func Sge(l, r Expr) Expr { return binary(OpSge, l, r) }

// MuxExpr selects Then when Cond is 1, Else otherwise.
type MuxExpr struct {
	Cond, Then, Else Expr
}

func (e MuxExpr) Width() int { return e.Then.Width() }

// Mux returns then when cond is 1, els otherwise. cond must be 1 bit wide
// and both branches must have equal widths.
//
func Mux(cond, then, els Expr) Expr {
	if cond.Width() != 1 {
		fail("mux condition must be 1 bit, got %d", cond.Width())
	}
	if then.Width() != els.Width() {
		fail("width mismatch in mux branches: %d vs %d bits", then.Width(), els.Width())
	}
	return MuxExpr{Cond: cond, Then: then, Else: els}
}

// When is one arm of a Case expression.
type When struct {
	Key uint64
	Val Expr
}

// CaseExpr selects the first entry whose key equals Sel, or Default.
type CaseExpr struct {
	Sel     Expr
	Entries []When
	Default Expr
}

func (e CaseExpr) Width() int { return e.Default.Width() }

// Case returns a priority case-selector: the value of the first entry whose
// key equals sel, or def when no key matches. Keys must fit the selector
// width and all values must share def's width.
//
func Case(sel Expr, entries []When, def Expr) Expr {
	w := def.Width()
	for _, e := range entries {
		if e.Key != truncate(e.Key, sel.Width()) {
			fail("case key %d does not fit in %d-bit selector", e.Key, sel.Width())
		}
		if e.Val.Width() != w {
			fail("width mismatch in case arm for key %d: %d vs %d bits", e.Key, e.Val.Width(), w)
		}
	}
	return CaseExpr{Sel: sel, Entries: entries, Default: def}
}

// ExtendExpr widens X to W bits, zero- or sign-extending.
type ExtendExpr struct {
	X      Expr
	W      int
	Signed bool
}

func (e ExtendExpr) Width() int { return e.W }

func extend(x Expr, w int, signed bool) Expr {
	checkWidth(w, "extension")
	if w < x.Width() {
		fail("cannot extend %d-bit value to narrower width %d", x.Width(), w)
	}
	if w == x.Width() {
		return x
	}
	return ExtendExpr{X: x, W: w, Signed: signed}
}

// ZExt widens x to w bits with zeros.
func ZExt(x Expr, w int) Expr { return extend(x, w, false) }

// SExt widens x to w bits replicating the sign bit.
func SExt(x Expr, w int) Expr { return extend(x, w, true) }

// Mem is a handle to a declared block memory, returned by Builder.Memory.
type Mem struct {
	ID    MemID
	Name  string
	Depth int
	W     int
}

// MemReadExpr is an asynchronous read port: the value at Addr in memory Mem.
type MemReadExpr struct {
	Mem  MemID
	Addr Expr
	W    int
}

func (e MemReadExpr) Width() int { return e.W }

// Read returns the value stored at addr. The read is asynchronous
// (combinational); addressing past the memory depth is a runtime error
// reported by the stepping backend.
//
func (m Mem) Read(addr Expr) Expr {
	return MemReadExpr{Mem: m.ID, Addr: addr, W: m.W}
}
