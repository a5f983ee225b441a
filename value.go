package rtl

// MaxWidth is the widest signal the engine supports. Wider declarations are
// compile-time errors.
const MaxWidth = 64

// maskOf returns the bit mask for a w-bit value. w must be in [1, 64].
//
func maskOf(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(w) - 1
}

// truncate masks v to its declared width. Masking is idempotent:
// truncate(truncate(v, w), w) == truncate(v, w).
//
func truncate(v uint64, w int) uint64 {
	return v & maskOf(w)
}

// toSigned reinterprets the low w bits of v as a two's complement signed
// value.
//
func toSigned(v uint64, w int) int64 {
	v = truncate(v, w)
	if w < 64 && v&(1<<uint(w-1)) != 0 {
		v |= ^maskOf(w)
	}
	return int64(v)
}

// signExtend widens v from w bits to to bits, replicating the sign bit.
//
func signExtend(v uint64, w, to int) uint64 {
	v = truncate(v, w)
	if v&(1<<uint(w-1)) != 0 {
		v |= maskOf(to) &^ maskOf(w)
	}
	return v
}

// selectBits extracts bits [hi:lo] of v. Callers have already validated the
// range against the operand width.
//
func selectBits(v uint64, hi, lo int) uint64 {
	return (v >> uint(lo)) & maskOf(hi-lo+1)
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
