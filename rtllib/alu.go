package rtllib

import (
	"github.com/rtlkit/rtl"
)

// ALU operation select values.
const (
	ALUAdd uint64 = iota
	ALUSub
	ALUAnd
	ALUOr
	ALUXor
	ALUSlt
	ALUSltu
)

// ALU returns a w-bit combinational arithmetic/logic unit.
//
//	Inputs: a, b, op
//	Outputs: y, carry, zero
//	Function: y = a <op> b; carry is the add/sub carry-out (borrow for sub);
//	zero is 1 when y == 0.
//
// w must be 63 or less so the carry bit exists.
//
func ALU(w int) (*rtl.Component, error) {
	b := rtl.NewComponent("alu")
	a := b.Input("a", w)
	bb := b.Input("b", w)
	op := b.Input("op", 3)
	y := b.Output("y", w)
	carry := b.Output("carry", 1)
	zero := b.Output("zero", 1)

	b.Behavior(func(blk *rtl.Block) {
		sum := rtl.Add(a, bb)
		diff := rtl.Sub(a, bb)
		blk.Set(y, rtl.Case(op, []rtl.When{
			{Key: ALUAdd, Val: rtl.Bits(sum, w-1, 0)},
			{Key: ALUSub, Val: rtl.Bits(diff, w-1, 0)},
			{Key: ALUAnd, Val: rtl.And(a, bb)},
			{Key: ALUOr, Val: rtl.Or(a, bb)},
			{Key: ALUXor, Val: rtl.Xor(a, bb)},
			{Key: ALUSlt, Val: rtl.ZExt(rtl.Slt(a, bb), w)},
			{Key: ALUSltu, Val: rtl.ZExt(rtl.Ult(a, bb), w)},
		}, rtl.Lit(0, w)))
		// carry is meaningful for add/sub only; logic and compare ops drive 0
		blk.Set(carry, rtl.Lit(0, 1))
		blk.SetWhen(rtl.Eq(op, rtl.Lit(ALUAdd, 3)), carry, rtl.Bit(sum, w))
		blk.SetWhen(rtl.Eq(op, rtl.Lit(ALUSub, 3)), carry, rtl.Bit(diff, w))
		blk.Set(zero, rtl.Not(rtl.RedOr(y)))
	})
	return b.Build()
}
