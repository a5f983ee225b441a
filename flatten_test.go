package rtl_test

import (
	"strings"
	"testing"

	"github.com/rtlkit/rtl"
)

func TestFlattenHierarchy(t *testing.T) {
	add := adder(t, 8)

	b := rtl.NewComponent("top")
	x := b.Input("x", 8)
	y := b.Input("y", 8)
	s1 := b.Wire("s1", 8)
	out := b.Output("out", 8)
	b.Instance("u0", add, rtl.B{"a": "x", "b": "y", "sum": "s1"})
	b.Instance("u1", add, rtl.B{"a": "s1", "b": "x", "sum": "out"})
	_, _, _, _ = x, y, s1, out

	c, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	d, err := rtl.Flatten(c)
	if err != nil {
		t.Fatal(err)
	}

	// ports alias parent signals: binding creates no new nets
	for _, name := range []string{"u0.a", "u0.sum", "u1.b"} {
		if _, err := d.SignalID(name); err == nil {
			t.Errorf("bound port %s should alias its parent signal, not exist", name)
		}
	}

	s, err := rtl.New(d, rtl.Config{Backend: rtl.Interpreter})
	if err != nil {
		t.Fatal(err)
	}
	poke(t, s, "x", 3)
	poke(t, s, "y", 4)
	step(t, s)
	if got := peek(t, s, "s1"); got != 7 {
		t.Errorf("s1 = %d, want 7", got)
	}
	if got := peek(t, s, "out"); got != 10 {
		t.Errorf("out = %d, want 10", got)
	}
}

func TestFlattenConstantBinding(t *testing.T) {
	b := rtl.NewComponent("top")
	x := b.Input("x", 8)
	out := b.Output("out", 8)
	b.Instance("inc", adder(t, 8), rtl.B{"a": "x", "b": 1, "sum": "out"})
	_, _ = x, out

	c, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	d, err := rtl.Flatten(c)
	if err != nil {
		t.Fatal(err)
	}
	// the literal binding materializes a driven wire under the instance path
	if _, err := d.SignalID("inc.b"); err != nil {
		t.Errorf("constant-bound port: %v", err)
	}

	s, err := rtl.New(d, rtl.Config{Backend: rtl.Interpreter})
	if err != nil {
		t.Fatal(err)
	}
	poke(t, s, "x", 41)
	step(t, s)
	if got := peek(t, s, "out"); got != 42 {
		t.Errorf("out = %d, want 42", got)
	}
}

func TestFlattenDefaultedInput(t *testing.T) {
	child := rtl.NewComponent("gate")
	en := child.InputDefault("en", 1, 1)
	d := child.Input("d", 4)
	q := child.Output("q", 4)
	child.Behavior(func(blk *rtl.Block) {
		blk.Set(q, rtl.Mux(en, d, rtl.Lit(0, 4)))
	})
	cc, err := child.Build()
	if err != nil {
		t.Fatal(err)
	}

	b := rtl.NewComponent("top")
	b.Input("x", 4)
	b.Output("y", 4)
	b.Instance("g", cc, rtl.B{"d": "x", "q": "y"}) // en left unbound
	c, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	des, err := rtl.Flatten(c)
	if err != nil {
		t.Fatal(err)
	}

	s, err := rtl.New(des, rtl.Config{Backend: rtl.Interpreter})
	if err != nil {
		t.Fatal(err)
	}
	poke(t, s, "x", 9)
	step(t, s)
	if got := peek(t, s, "y"); got != 9 {
		t.Errorf("y = %d, want 9 (en defaulted high)", got)
	}
}

func TestFlattenErrors(t *testing.T) {
	data := []struct {
		name string
		fn   func(t *testing.T, b *rtl.Builder)
		want string
	}{
		{"unbound input", func(t *testing.T, b *rtl.Builder) {
			b.Input("x", 8)
			b.Output("y", 8)
			b.Instance("u0", adder(t, 8), rtl.B{"a": "x", "sum": "y"})
		}, `unconnected input port u0.b`},
		{"unbound output", func(t *testing.T, b *rtl.Builder) {
			b.Input("x", 8)
			b.Instance("u0", adder(t, 8), rtl.B{"a": "x", "b": "x"})
		}, `unbound output port u0.sum`},
		{"self loop", func(t *testing.T, b *rtl.Builder) {
			w := b.Wire("w", 1)
			b.Behavior(func(blk *rtl.Block) { blk.Set(w, rtl.Not(w)) })
		}, "combinational cycle involving w"},
		{"two-wire cycle", func(t *testing.T, b *rtl.Builder) {
			x := b.Wire("x", 1)
			y := b.Wire("y", 1)
			b.Behavior(func(blk *rtl.Block) {
				blk.Set(x, y)
				blk.Set(y, x)
			})
		}, "combinational cycle involving x, y"},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			b := rtl.NewComponent("top")
			d.fn(t, b)
			c, err := b.Build()
			if err != nil {
				t.Fatal(err)
			}
			_, err = rtl.Flatten(c)
			if err == nil {
				t.Fatal("expected a flatten error")
			}
			if !strings.Contains(err.Error(), d.want) {
				t.Errorf("error %q does not mention %q", err, d.want)
			}
		})
	}
}

// A register feeding back through combinational logic is not a cycle: the
// register reads pre-edge state.
func TestRegisterFeedbackIsNotACycle(t *testing.T) {
	b := rtl.NewComponent("fb")
	q := b.Register("q", 8, 0)
	n := b.Wire("n", 8)
	b.Behavior(func(blk *rtl.Block) { blk.Set(n, rtl.Add(q, rtl.Lit(1, 8))) })
	b.Sequential(rtl.SeqOpts{}, func(blk *rtl.Block) { blk.Set(q, n) })

	c, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rtl.Flatten(c); err != nil {
		t.Fatal(err)
	}
}

// Assignments are reordered so every read happens after its driver, even when
// declared backwards.
func TestFlattenTopologicalOrder(t *testing.T) {
	b := rtl.NewComponent("topo")
	x := b.Input("x", 8)
	mid := b.Wire("mid", 8)
	out := b.Output("out", 8)
	b.Behavior(func(blk *rtl.Block) {
		blk.Set(out, rtl.Add(mid, rtl.Lit(1, 8))) // reads mid before it is declared driven
		blk.Set(mid, rtl.Add(x, rtl.Lit(1, 8)))
	})
	s := sim(t, b)
	poke(t, s, "x", 10)
	step(t, s)
	if got := peek(t, s, "out"); got != 12 {
		t.Errorf("out = %d, want 12", got)
	}
}
