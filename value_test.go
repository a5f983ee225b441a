package rtl

import (
	"testing"
)

func TestMaskOf(t *testing.T) {
	data := []struct {
		w    int
		want uint64
	}{
		{1, 1},
		{2, 3},
		{8, 0xFF},
		{32, 0xFFFFFFFF},
		{63, 0x7FFFFFFFFFFFFFFF},
		{64, 0xFFFFFFFFFFFFFFFF},
	}
	for _, d := range data {
		if got := maskOf(d.w); got != d.want {
			t.Errorf("maskOf(%d) = %#x, want %#x", d.w, got, d.want)
		}
	}
}

func TestTruncateIdempotent(t *testing.T) {
	vals := []uint64{0, 1, 0x80, 0xFF, 0xDEADBEEF, ^uint64(0)}
	for w := 1; w <= 64; w++ {
		for _, v := range vals {
			once := truncate(v, w)
			if twice := truncate(once, w); twice != once {
				t.Fatalf("truncate(%#x, %d): not idempotent: %#x then %#x", v, w, once, twice)
			}
			if once > maskOf(w) {
				t.Fatalf("truncate(%#x, %d) = %#x exceeds mask", v, w, once)
			}
		}
	}
}

func TestToSigned(t *testing.T) {
	data := []struct {
		v    uint64
		w    int
		want int64
	}{
		{0, 8, 0},
		{0x7F, 8, 127},
		{0x80, 8, -128},
		{0xFF, 8, -1},
		{1, 1, -1},
		{0, 1, 0},
		{0xFFFFFFFF, 32, -1},
		{0x80000000, 32, -1 << 31},
		{^uint64(0), 64, -1},
	}
	for _, d := range data {
		if got := toSigned(d.v, d.w); got != d.want {
			t.Errorf("toSigned(%#x, %d) = %d, want %d", d.v, d.w, got, d.want)
		}
	}
}

func TestSignExtend(t *testing.T) {
	data := []struct {
		v     uint64
		w, to int
		want  uint64
	}{
		{0x7F, 8, 16, 0x007F},
		{0x80, 8, 16, 0xFF80},
		{0xFF, 8, 64, ^uint64(0)},
		{1, 1, 4, 0xF},
		{0, 1, 4, 0},
		{0x800, 12, 32, 0xFFFFF800},
	}
	for _, d := range data {
		if got := signExtend(d.v, d.w, d.to); got != d.want {
			t.Errorf("signExtend(%#x, %d, %d) = %#x, want %#x", d.v, d.w, d.to, got, d.want)
		}
	}
}

func TestSelectBits(t *testing.T) {
	data := []struct {
		v      uint64
		hi, lo int
		want   uint64
	}{
		{0xAB, 7, 4, 0xA},
		{0xAB, 3, 0, 0xB},
		{0xAB, 0, 0, 1},
		{0xDEADBEEF, 31, 16, 0xDEAD},
		{^uint64(0), 63, 0, ^uint64(0)},
		{^uint64(0), 63, 63, 1},
	}
	for _, d := range data {
		if got := selectBits(d.v, d.hi, d.lo); got != d.want {
			t.Errorf("selectBits(%#x, %d, %d) = %#x, want %#x", d.v, d.hi, d.lo, got, d.want)
		}
	}
}
