package rtllib_test

import (
	"testing"

	"github.com/rtlkit/rtl"
	"github.com/rtlkit/rtl/rtllib"
	"github.com/rtlkit/rtl/rtltest"
)

func flatten(t *testing.T, c *rtl.Component, err error) *rtl.Design {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
	d, err := rtl.Flatten(c)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestCounter(t *testing.T) {
	c, err := rtllib.Counter(8)
	d := flatten(t, c, err)
	s, err := rtl.New(d, rtl.Config{Backend: rtl.Interpreter})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RunCycles(10); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Peek("cnt"); got != 10 {
		t.Errorf("cnt = %d, want 10", got)
	}
	if err := s.Poke("clr", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Peek("cnt"); got != 0 {
		t.Errorf("after clr: cnt = %d, want 0", got)
	}
}

func TestCounterBackends(t *testing.T) {
	c, err := rtllib.Counter(8)
	rtltest.CompareRandom(t, flatten(t, c, err), 200, 1)
}

func TestDivider(t *testing.T) {
	const n = 4
	c, err := rtllib.Divider(n, 4)
	d := flatten(t, c, err)
	s, err := rtl.New(d, rtl.Config{Backend: rtl.JIT})
	if err != nil {
		t.Fatal(err)
	}
	// after a step, tick reflects the pre-edge count of that step
	var ticks []int
	for i := 0; i < 12; i++ {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
		if v, _ := s.Peek("tick"); v == 1 {
			ticks = append(ticks, i)
		}
	}
	want := []int{3, 7, 11}
	if len(ticks) != len(want) {
		t.Fatalf("ticks at %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("ticks at %v, want %v", ticks, want)
		}
	}
}

// A period that does not fit the counter width must surface as an error,
// not escape as a panic from the expression constructors.
func TestDividerErrors(t *testing.T) {
	data := []struct {
		n, w int
	}{
		{300, 4},
		{0, 4},
		{-1, 8},
		{2, 0},
	}
	for _, v := range data {
		if _, err := rtllib.Divider(v.n, v.w); err == nil {
			t.Errorf("Divider(%d, %d): no error", v.n, v.w)
		}
	}
}

// A divider tick feeding another domain's enable models a sub-rate clock.
func TestDividerGatesCounter(t *testing.T) {
	div, err := rtllib.Divider(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	cnt, err := rtllib.Counter(8)
	if err != nil {
		t.Fatal(err)
	}

	b := rtl.NewComponent("slow")
	b.Wire("tick", 1)
	b.Output("q", 8)
	b.Instance("div", div, rtl.B{"tick": "tick"})
	b.Instance("cnt", cnt, rtl.B{"en": "tick", "q": "q"})
	c, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	d, err := rtl.Flatten(c)
	if err != nil {
		t.Fatal(err)
	}
	s, err := rtl.New(d, rtl.Config{Backend: rtl.Interpreter})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RunCycles(16); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Peek("cnt.cnt"); got != 4 {
		t.Errorf("counter advanced %d times in 16 cycles, want 4", got)
	}
}
