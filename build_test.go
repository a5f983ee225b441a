package rtl_test

import (
	"strings"
	"testing"

	"github.com/rtlkit/rtl"
)

// adder returns a small child component for instance tests.
func adder(t *testing.T, w int) *rtl.Component {
	t.Helper()
	b := rtl.NewComponent("adder")
	a := b.Input("a", w)
	bb := b.Input("b", w)
	sum := b.Output("sum", w)
	b.Behavior(func(blk *rtl.Block) {
		blk.Set(sum, rtl.Add(a, bb))
	})
	c, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBuildErrors(t *testing.T) {
	data := []struct {
		name string
		fn   func(t *testing.T, b *rtl.Builder)
		want string
	}{
		{"duplicate signal", func(t *testing.T, b *rtl.Builder) {
			b.Input("a", 1)
			b.Wire("a", 8)
		}, "duplicate signal"},
		{"dotted name", func(t *testing.T, b *rtl.Builder) {
			b.Wire("a.b", 1)
		}, "invalid signal name"},
		{"zero width", func(t *testing.T, b *rtl.Builder) {
			b.Wire("a", 0)
		}, "width 0 out of range"},
		{"too wide", func(t *testing.T, b *rtl.Builder) {
			b.Wire("a", 65)
		}, "width 65 out of range"},
		{"default does not fit", func(t *testing.T, b *rtl.Builder) {
			b.InputDefault("a", 4, 16)
		}, "does not fit"},
		{"reset does not fit", func(t *testing.T, b *rtl.Builder) {
			b.Register("r", 4, 16)
		}, "does not fit"},
		{"memory redeclares signal", func(t *testing.T, b *rtl.Builder) {
			b.Input("a", 1)
			b.Memory("a", 4, 8)
		}, "redeclares"},
		{"memory zero depth", func(t *testing.T, b *rtl.Builder) {
			b.Memory("m", 0, 8)
		}, "must be positive"},
		{"assign to input", func(t *testing.T, b *rtl.Builder) {
			a := b.Input("a", 1)
			b.Behavior(func(blk *rtl.Block) { blk.Set(a, rtl.Lit(0, 1)) })
		}, "cannot assign input"},
		{"comb assign to register", func(t *testing.T, b *rtl.Builder) {
			r := b.Register("r", 1, 0)
			b.Behavior(func(blk *rtl.Block) { blk.Set(r, rtl.Lit(0, 1)) })
		}, "use a sequential block"},
		{"seq assign to wire", func(t *testing.T, b *rtl.Builder) {
			w := b.Wire("w", 1)
			b.Sequential(rtl.SeqOpts{}, func(blk *rtl.Block) { blk.Set(w, rtl.Lit(0, 1)) })
		}, "only registers"},
		{"conditional before default", func(t *testing.T, b *rtl.Builder) {
			c := b.Input("c", 1)
			w := b.Wire("w", 1)
			b.Behavior(func(blk *rtl.Block) { blk.SetWhen(c, w, rtl.Lit(1, 1)) })
		}, "before an unconditional default"},
		{"wide condition", func(t *testing.T, b *rtl.Builder) {
			c := b.Input("c", 2)
			w := b.Wire("w", 1)
			b.Behavior(func(blk *rtl.Block) {
				blk.Set(w, rtl.Lit(0, 1))
				blk.SetWhen(c, w, rtl.Lit(1, 1))
			})
		}, "must be 1 bit"},
		{"foreign signal handle", func(t *testing.T, b *rtl.Builder) {
			other := rtl.NewComponent("other")
			x := other.Wire("x", 1)
			b.Behavior(func(blk *rtl.Block) { blk.Set(x, rtl.Lit(0, 1)) })
		}, "undeclared signal"},
		{"undriven wire", func(t *testing.T, b *rtl.Builder) {
			b.Wire("w", 1)
		}, "not connected to any driver"},
		{"undriven output", func(t *testing.T, b *rtl.Builder) {
			b.Output("q", 1)
		}, "not connected to any driver"},
		{"write outside sequential", func(t *testing.T, b *rtl.Builder) {
			m := b.Memory("m", 4, 8)
			b.Behavior(func(blk *rtl.Block) {
				blk.Write(m, rtl.Lit(0, 2), rtl.Lit(0, 8), rtl.Lit(1, 1))
			})
		}, "outside a sequential block"},
		{"wide write enable", func(t *testing.T, b *rtl.Builder) {
			m := b.Memory("m", 4, 8)
			b.Sequential(rtl.SeqOpts{}, func(blk *rtl.Block) {
				blk.Write(m, rtl.Lit(0, 2), rtl.Lit(0, 8), rtl.Lit(1, 2))
			})
		}, "must be 1 bit"},
		{"two write ports", func(t *testing.T, b *rtl.Builder) {
			m := b.Memory("m", 4, 8)
			b.Sequential(rtl.SeqOpts{}, func(blk *rtl.Block) {
				blk.Write(m, rtl.Lit(0, 2), rtl.Lit(0, 8), rtl.Lit(1, 1))
				blk.Write(m, rtl.Lit(1, 2), rtl.Lit(0, 8), rtl.Lit(1, 1))
			})
		}, "more than one write port"},
		{"register in two domains", func(t *testing.T, b *rtl.Builder) {
			r := b.Register("r", 1, 0)
			b.Sequential(rtl.SeqOpts{}, func(blk *rtl.Block) { blk.Set(r, rtl.Lit(0, 1)) })
			b.Sequential(rtl.SeqOpts{}, func(blk *rtl.Block) { blk.Set(r, rtl.Lit(1, 1)) })
		}, "two sequential domains"},
		{"wide reset", func(t *testing.T, b *rtl.Builder) {
			rst := b.Input("rst", 2)
			r := b.Register("r", 1, 0)
			b.Sequential(rtl.SeqOpts{Reset: rst}, func(blk *rtl.Block) { blk.Set(r, rtl.Lit(0, 1)) })
		}, "must be 1 bit"},
		{"instance unknown port", func(t *testing.T, b *rtl.Builder) {
			a := b.Input("a", 8)
			s := b.Output("s", 8)
			b.Instance("u0", adder(t, 8), rtl.B{"a": "a", "b": "a", "sum": "s", "nope": "a"})
			_, _ = a, s
		}, "no port"},
		{"instance width mismatch", func(t *testing.T, b *rtl.Builder) {
			b.Input("a", 4)
			b.Output("s", 8)
			b.Instance("u0", adder(t, 8), rtl.B{"a": "a", "b": "a", "sum": "s"})
		}, "bits"},
		{"constant on output port", func(t *testing.T, b *rtl.Builder) {
			b.Input("a", 8)
			b.Instance("u0", adder(t, 8), rtl.B{"a": "a", "b": "a", "sum": 0})
		}, "bound to a constant"},
		{"constant does not fit", func(t *testing.T, b *rtl.Builder) {
			b.Output("s", 8)
			b.Instance("u0", adder(t, 8), rtl.B{"a": 256, "b": 0, "sum": "s"})
		}, "does not fit"},
		{"duplicate instance", func(t *testing.T, b *rtl.Builder) {
			b.Input("a", 8)
			b.Output("s", 8)
			b.Output("s2", 8)
			b.Instance("u0", adder(t, 8), rtl.B{"a": "a", "b": "a", "sum": "s"})
			b.Instance("u0", adder(t, 8), rtl.B{"a": "a", "b": "a", "sum": "s2"})
		}, "duplicate instance"},
		{"output driven twice", func(t *testing.T, b *rtl.Builder) {
			b.Input("a", 8)
			s := b.Output("s", 8)
			b.Instance("u0", adder(t, 8), rtl.B{"a": "a", "b": "a", "sum": "s"})
			b.Behavior(func(blk *rtl.Block) { blk.Set(s, rtl.Lit(0, 8)) })
		}, "2 drivers"},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			b := rtl.NewComponent("dut")
			d.fn(t, b)
			_, err := b.Build()
			if err == nil {
				t.Fatal("expected a build error")
			}
			if !strings.Contains(err.Error(), d.want) {
				t.Errorf("error %q does not mention %q", err, d.want)
			}
		})
	}
}

func TestBuildTwice(t *testing.T) {
	b := rtl.NewComponent("dut")
	a := b.Input("a", 1)
	q := b.Output("q", 1)
	b.Behavior(func(blk *rtl.Block) { blk.Set(q, a) })
	if _, err := b.Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(); err == nil || !strings.Contains(err.Error(), "Build called twice") {
		t.Errorf("second Build: got %v", err)
	}
}

// sim builds, flattens and simulates a component with the interpreter.
func sim(t *testing.T, b *rtl.Builder) *rtl.Simulator {
	t.Helper()
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
	return s
}

func peek(t *testing.T, s *rtl.Simulator, name string) uint64 {
	t.Helper()
	v, err := s.Peek(name)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func poke(t *testing.T, s *rtl.Simulator, name string, v uint64) {
	t.Helper()
	if err := s.Poke(name, v); err != nil {
		t.Fatal(err)
	}
}

func step(t *testing.T, s *rtl.Simulator) {
	t.Helper()
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
}

// Later conditional assignments override earlier ones; the unconditional
// default loses to any asserted condition.
func TestOverrideChainPriority(t *testing.T) {
	b := rtl.NewComponent("prio")
	a := b.Input("a", 1)
	c := b.Input("c", 1)
	y := b.Output("y", 8)
	b.Behavior(func(blk *rtl.Block) {
		blk.Set(y, rtl.Lit(1, 8))
		blk.SetWhen(a, y, rtl.Lit(2, 8))
		blk.SetWhen(c, y, rtl.Lit(3, 8))
	})
	s := sim(t, b)

	data := []struct {
		a, c, want uint64
	}{
		{0, 0, 1},
		{1, 0, 2},
		{0, 1, 3},
		{1, 1, 3}, // latest condition wins
	}
	for _, d := range data {
		poke(t, s, "a", d.a)
		poke(t, s, "c", d.c)
		step(t, s)
		if got := peek(t, s, "y"); got != d.want {
			t.Errorf("a=%d c=%d: y = %d, want %d", d.a, d.c, got, d.want)
		}
	}
}

// An unconditional Set replaces the whole chain built so far.
func TestSetReplacesChain(t *testing.T) {
	b := rtl.NewComponent("replace")
	a := b.Input("a", 1)
	y := b.Output("y", 8)
	b.Behavior(func(blk *rtl.Block) {
		blk.Set(y, rtl.Lit(1, 8))
		blk.SetWhen(a, y, rtl.Lit(2, 8))
		blk.Set(y, rtl.Lit(7, 8))
	})
	s := sim(t, b)
	poke(t, s, "a", 1)
	step(t, s)
	if got := peek(t, s, "y"); got != 7 {
		t.Errorf("y = %d, want 7", got)
	}
}

// A register conditionally assigned without a default holds its value when no
// condition matches.
func TestSeqConditionalHolds(t *testing.T) {
	b := rtl.NewComponent("hold")
	ld := b.InputDefault("ld", 1, 0)
	d := b.Input("d", 8)
	q := b.Register("q", 8, 5)
	b.Sequential(rtl.SeqOpts{}, func(blk *rtl.Block) {
		blk.SetWhen(ld, q, d)
	})
	s := sim(t, b)

	poke(t, s, "d", 42)
	step(t, s)
	if got := peek(t, s, "q"); got != 5 {
		t.Errorf("after hold: q = %d, want reset value 5", got)
	}
	poke(t, s, "ld", 1)
	step(t, s)
	if got := peek(t, s, "q"); got != 42 {
		t.Errorf("after load: q = %d, want 42", got)
	}
}

// Behavior blocks extend each other: an override in a later block wins over
// a default in an earlier one.
func TestBehaviorBlocksShareChain(t *testing.T) {
	b := rtl.NewComponent("blocks")
	a := b.Input("a", 1)
	y := b.Output("y", 4)
	b.Behavior(func(blk *rtl.Block) { blk.Set(y, rtl.Lit(1, 4)) })
	b.Behavior(func(blk *rtl.Block) { blk.SetWhen(a, y, rtl.Lit(2, 4)) })
	s := sim(t, b)

	poke(t, s, "a", 1)
	step(t, s)
	if got := peek(t, s, "y"); got != 2 {
		t.Errorf("y = %d, want 2", got)
	}
}
