package rv32

// Instruction encoders, mainly for assembling test programs in Go source.
// Immediates take signed values and are truncated to their field widths.

func encR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return u>>5&0x7F<<25 | rs2<<20 | rs1<<15 | funct3<<12 | u&0x1F<<7 | opcode
}

func encB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return u>>12&1<<31 | u>>5&0x3F<<25 | rs2<<20 | rs1<<15 |
		funct3<<12 | u>>1&0xF<<8 | u>>11&1<<7 | opcode
}

// LUI encodes lui rd, imm; imm is the raw 20-bit upper-immediate field.
func LUI(rd uint32, imm uint32) uint32 { return imm&0xFFFFF<<12 | rd<<7 | opLUI }

// JAL encodes jal rd, offset (byte offset, must be even).
func JAL(rd uint32, offset int32) uint32 {
	u := uint32(offset)
	return u>>20&1<<31 | u>>1&0x3FF<<21 | u>>11&1<<20 | u>>12&0xFF<<12 | rd<<7 | opJAL
}

// BEQ encodes beq rs1, rs2, offset.
func BEQ(rs1, rs2 uint32, offset int32) uint32 { return encB(opBRANCH, 0, rs1, rs2, offset) }

// BNE encodes bne rs1, rs2, offset.
func BNE(rs1, rs2 uint32, offset int32) uint32 { return encB(opBRANCH, 1, rs1, rs2, offset) }

// LW encodes lw rd, offset(rs1).
func LW(rd, rs1 uint32, offset int32) uint32 { return encI(opLOAD, rd, 2, rs1, offset) }

// SW encodes sw rs2, offset(rs1).
func SW(rs2, rs1 uint32, offset int32) uint32 { return encS(opSTORE, 2, rs1, rs2, offset) }

// ADDI encodes addi rd, rs1, imm.
func ADDI(rd, rs1 uint32, imm int32) uint32 { return encI(opOPIMM, rd, 0, rs1, imm) }

// SLTI encodes slti rd, rs1, imm.
func SLTI(rd, rs1 uint32, imm int32) uint32 { return encI(opOPIMM, rd, 2, rs1, imm) }

// SLTIU encodes sltiu rd, rs1, imm.
func SLTIU(rd, rs1 uint32, imm int32) uint32 { return encI(opOPIMM, rd, 3, rs1, imm) }

// XORI encodes xori rd, rs1, imm.
func XORI(rd, rs1 uint32, imm int32) uint32 { return encI(opOPIMM, rd, 4, rs1, imm) }

// ORI encodes ori rd, rs1, imm.
func ORI(rd, rs1 uint32, imm int32) uint32 { return encI(opOPIMM, rd, 6, rs1, imm) }

// ANDI encodes andi rd, rs1, imm.
func ANDI(rd, rs1 uint32, imm int32) uint32 { return encI(opOPIMM, rd, 7, rs1, imm) }

// ADD encodes add rd, rs1, rs2.
func ADD(rd, rs1, rs2 uint32) uint32 { return encR(opOP, rd, 0, rs1, rs2, 0) }

// SUB encodes sub rd, rs1, rs2.
func SUB(rd, rs1, rs2 uint32) uint32 { return encR(opOP, rd, 0, rs1, rs2, 0x20) }

// SLT encodes slt rd, rs1, rs2.
func SLT(rd, rs1, rs2 uint32) uint32 { return encR(opOP, rd, 2, rs1, rs2, 0) }

// SLTU encodes sltu rd, rs1, rs2.
func SLTU(rd, rs1, rs2 uint32) uint32 { return encR(opOP, rd, 3, rs1, rs2, 0) }

// XOR encodes xor rd, rs1, rs2.
func XOR(rd, rs1, rs2 uint32) uint32 { return encR(opOP, rd, 4, rs1, rs2, 0) }

// OR encodes or rd, rs1, rs2.
func OR(rd, rs1, rs2 uint32) uint32 { return encR(opOP, rd, 6, rs1, rs2, 0) }

// AND encodes and rd, rs1, rs2.
func AND(rd, rs1, rs2 uint32) uint32 { return encR(opOP, rd, 7, rs1, rs2, 0) }

// NOP encodes addi x0, x0, 0.
func NOP() uint32 { return ADDI(0, 0, 0) }

// Program converts encoded instructions to memory words for LoadMemory.
func Program(instrs ...uint32) []uint64 {
	words := make([]uint64, len(instrs))
	for i, ins := range instrs {
		words[i] = uint64(ins)
	}
	return words
}
