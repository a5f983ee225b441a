// Package rv32 provides the reference CPU consumer of the rtl engine: a
// single-cycle RV32I-subset core described in the builder DSL, plus a
// hand-written native runner recognized by structural fingerprint. The two
// must produce identical architectural state (pc, register file, memory) for
// every program; the backend-parity tests enforce that.
//
// Supported instructions: LUI, JAL, BEQ, BNE, LW, SW (word aligned),
// ADDI, XORI, ORI, ANDI, SLTI, SLTIU, ADD, SUB, SLT, SLTU, XOR, OR, AND.
// Unrecognized opcodes execute as a no-op with pc advancing by 4.
package rv32

import (
	"github.com/pkg/errors"

	"github.com/rtlkit/rtl"
)

// Major opcodes.
const (
	opLUI    = 0x37
	opJAL    = 0x6F
	opBRANCH = 0x63
	opLOAD   = 0x03
	opSTORE  = 0x23
	opOPIMM  = 0x13
	opOP     = 0x33
)

// DesignName is the component name the native runner's fingerprint matches.
const DesignName = "rv32"

// Component builds the core as a reusable component. memWords is the depth
// of the unified instruction/data memory in 32-bit words.
//
func Component(memWords int) (*rtl.Component, error) {
	b := rtl.NewComponent(DesignName)

	rst := b.InputDefault("rst", 1, 0)
	ce := b.InputDefault("ce", 1, 1)
	pc := b.Register("pc", 32, 0)
	mem := b.Memory("mem", memWords, 32)
	regs := b.Memory("regs", 32, 32)

	instr := b.Wire("instr", 32)
	nextPC := b.Wire("next_pc", 32)
	wen := b.Wire("wen", 1)
	wdata := b.Wire("wdata", 32)
	rd := b.Wire("rd", 5)
	storeEn := b.Wire("store_en", 1)
	storeAddr := b.Wire("store_addr", 30)
	storeData := b.Wire("store_data", 32)

	b.Behavior(func(blk *rtl.Block) {
		blk.Set(instr, mem.Read(rtl.Bits(pc, 31, 2)))

		opcode := rtl.Bits(instr, 6, 0)
		funct3 := rtl.Bits(instr, 14, 12)
		rs1 := rtl.Bits(instr, 19, 15)
		rs2 := rtl.Bits(instr, 24, 20)
		blk.Set(rd, rtl.Bits(instr, 11, 7))

		rv1 := regs.Read(rs1)
		rv2 := regs.Read(rs2)

		immI := rtl.SExt(rtl.Bits(instr, 31, 20), 32)
		immU := rtl.Cat(rtl.Bits(instr, 31, 12), rtl.Lit(0, 12))
		immS := rtl.SExt(rtl.Cat(rtl.Bits(instr, 31, 25), rtl.Bits(instr, 11, 7)), 32)
		immB := rtl.SExt(rtl.Cat(rtl.Bit(instr, 31), rtl.Bit(instr, 7),
			rtl.Bits(instr, 30, 25), rtl.Bits(instr, 11, 8), rtl.Lit(0, 1)), 32)
		immJ := rtl.SExt(rtl.Cat(rtl.Bit(instr, 31), rtl.Bits(instr, 19, 12),
			rtl.Bit(instr, 20), rtl.Bits(instr, 30, 21), rtl.Lit(0, 1)), 32)

		is := func(op uint64) rtl.Expr { return rtl.Eq(opcode, rtl.Lit(op, 7)) }
		isLui, isJal, isBranch := is(opLUI), is(opJAL), is(opBRANCH)
		isLoad, isStore, isOpImm, isOp := is(opLOAD), is(opSTORE), is(opOPIMM), is(opOP)

		word32 := func(x rtl.Expr) rtl.Expr { return rtl.Bits(x, 31, 0) }
		sum := word32(rtl.Add(rv1, immI))
		aluImm := rtl.Case(funct3, []rtl.When{
			{Key: 0, Val: sum},
			{Key: 2, Val: rtl.ZExt(rtl.Slt(rv1, immI), 32)},
			{Key: 3, Val: rtl.ZExt(rtl.Ult(rv1, immI), 32)},
			{Key: 4, Val: rtl.Xor(rv1, immI)},
			{Key: 6, Val: rtl.Or(rv1, immI)},
			{Key: 7, Val: rtl.And(rv1, immI)},
		}, rtl.Lit(0, 32))
		aluReg := rtl.Case(funct3, []rtl.When{
			{Key: 0, Val: rtl.Mux(rtl.Bit(instr, 30),
				word32(rtl.Sub(rv1, rv2)), word32(rtl.Add(rv1, rv2)))},
			{Key: 2, Val: rtl.ZExt(rtl.Slt(rv1, rv2), 32)},
			{Key: 3, Val: rtl.ZExt(rtl.Ult(rv1, rv2), 32)},
			{Key: 4, Val: rtl.Xor(rv1, rv2)},
			{Key: 6, Val: rtl.Or(rv1, rv2)},
			{Key: 7, Val: rtl.And(rv1, rv2)},
		}, rtl.Lit(0, 32))

		// data access, word aligned; the address mux keeps the read port in
		// range when the instruction is not a load.
		loadAddr := rtl.Bits(word32(rtl.Add(rv1, immI)), 31, 2)
		loadData := mem.Read(rtl.Mux(isLoad, loadAddr, rtl.Lit(0, 30)))
		blk.Set(storeEn, isStore)
		blk.Set(storeAddr, rtl.Bits(word32(rtl.Add(rv1, immS)), 31, 2))
		blk.Set(storeData, rv2)

		// register write-back: defaults first, per-opcode overrides after,
		// last assignment wins.
		blk.Set(wdata, rtl.Lit(0, 32))
		blk.SetWhen(isLui, wdata, immU)
		blk.SetWhen(isOpImm, wdata, aluImm)
		blk.SetWhen(isOp, wdata, aluReg)
		blk.SetWhen(isLoad, wdata, loadData)
		pc4 := word32(rtl.Add(pc, rtl.Lit(4, 32)))
		blk.SetWhen(isJal, wdata, pc4)

		writes := rtl.Or(rtl.Or(rtl.Or(isLui, isJal), rtl.Or(isOpImm, isOp)), isLoad)
		blk.Set(wen, rtl.And(writes, rtl.RedOr(rd)))

		taken := rtl.And(isBranch,
			rtl.Mux(rtl.Eq(funct3, rtl.Lit(0, 3)), rtl.Eq(rv1, rv2), rtl.Ne(rv1, rv2)))
		blk.Set(nextPC, pc4)
		blk.SetWhen(taken, nextPC, word32(rtl.Add(pc, immB)))
		blk.SetWhen(isJal, nextPC, word32(rtl.Add(pc, immJ)))
	})

	b.Sequential(rtl.SeqOpts{Reset: rst, Enable: ce}, func(blk *rtl.Block) {
		blk.Set(pc, nextPC)
		blk.Write(regs, rd, wdata, wen)
		blk.Write(mem, storeAddr, storeData, storeEn)
	})

	return b.Build()
}

// New builds and flattens the core, ready for simulation.
//
func New(memWords int) (*rtl.Design, error) {
	c, err := Component(memWords)
	if err != nil {
		return nil, errors.WithMessage(err, "build rv32")
	}
	return rtl.Flatten(c)
}
