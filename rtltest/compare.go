// Package rtltest provides differential testing helpers for rtl designs.
//
// The execution backends promise bit-identical architectural state for the
// same design and stimulus. CompareBackends enforces that promise: it drives
// one Simulator per available backend with identical stimulus and compares
// state cycle by cycle, with the interpreter as the reference oracle.
//
package rtltest

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"

	"github.com/rtlkit/rtl"
)

// A Setup function prepares one simulator before stepping starts: loading
// memory images, poking initial input values. It runs once per backend and
// must be deterministic.
type Setup func(s *rtl.Simulator) error

// A Stimulus function pokes input values for the coming cycle. It runs once
// per backend per cycle with the same cycle number and must poke the same
// values each time.
type Stimulus func(cycle int, s *rtl.Simulator) error

// CompareBackends simulates d once per backend for the given number of
// cycles and reports any state divergence as a test error. The interpreter
// and the JIT are compared on every signal; a native runner, when one
// recognizes the design, is compared on architectural state only (registers,
// inputs and memories), since it does not simulate internal nets.
//
func CompareBackends(t *testing.T, d *rtl.Design, cycles int, setup Setup, stim Stimulus) {
	t.Helper()

	ref := newSim(t, d, rtl.Config{Backend: rtl.Interpreter}, setup)
	sims := []*rtl.Simulator{ref, newSim(t, d, rtl.Config{Backend: rtl.JIT}, setup)}
	if nat, err := rtl.New(d, rtl.Config{Backend: rtl.Native}); err == nil && nat.Native() {
		if err := prepare(nat, setup); err != nil {
			t.Fatalf("%s: setup: %v", nat.Backend(), err)
		}
		sims = append(sims, nat)
	}

	for c := 0; c < cycles; c++ {
		for _, s := range sims {
			if stim != nil {
				if err := stim(c, s); err != nil {
					t.Fatalf("cycle %d (%s): stimulus: %v", c+1, s.Backend(), err)
				}
			}
			if err := s.Step(); err != nil {
				t.Fatalf("cycle %d (%s): %v", c+1, s.Backend(), err)
			}
		}
		for _, s := range sims[1:] {
			compareState(t, ref, s, c+1)
		}
	}
}

// CompareRandom is CompareBackends with a stimulus that pokes every input
// port of the design with seeded pseudo-random values each cycle.
//
func CompareRandom(t *testing.T, d *rtl.Design, cycles int, seed int64) {
	t.Helper()

	var inputs []rtl.SignalID
	for id, sig := range d.Signals {
		if sig.Kind == rtl.SigInput {
			inputs = append(inputs, rtl.SignalID(id))
		}
	}
	// one generator per backend so each sees the same sequence
	rngs := make(map[*rtl.Simulator]*rand.Rand)
	CompareBackends(t, d, cycles, nil, func(cycle int, s *rtl.Simulator) error {
		rng := rngs[s]
		if rng == nil {
			rng = rand.New(rand.NewSource(seed))
			rngs[s] = rng
		}
		for _, id := range inputs {
			s.PokeID(id, rng.Uint64())
		}
		return nil
	})
}

func newSim(t *testing.T, d *rtl.Design, cfg rtl.Config, setup Setup) *rtl.Simulator {
	t.Helper()
	s, err := rtl.New(d, cfg)
	if err != nil {
		t.Fatalf("%s: %v", cfg.Backend, err)
	}
	if err := prepare(s, setup); err != nil {
		t.Fatalf("%s: setup: %v", cfg.Backend, err)
	}
	return s
}

func prepare(s *rtl.Simulator, setup Setup) error {
	if setup == nil {
		return nil
	}
	if err := setup(s); err != nil {
		return err
	}
	return errors.WithMessage(s.Reset(), "settle after setup")
}

// compareState checks s against the reference after cycle n. Native runners
// only maintain architectural state, so wires and outputs are skipped for
// them.
func compareState(t *testing.T, ref, s *rtl.Simulator, n int) {
	t.Helper()
	d := ref.Design()
	arch := s.Native()
	for id, sig := range d.Signals {
		if arch && sig.Kind != rtl.SigReg && sig.Kind != rtl.SigInput {
			continue
		}
		got, want := s.PeekID(rtl.SignalID(id)), ref.PeekID(rtl.SignalID(id))
		if got != want {
			t.Errorf("cycle %d: %s: signal %q = %#x, %s has %#x",
				n, s.Backend(), sig.Name, got, ref.Backend(), want)
		}
	}
	for _, m := range d.Mems {
		for addr := 0; addr < m.Depth; addr++ {
			got, _ := s.PeekMem(m.Name, addr)
			want, _ := ref.PeekMem(m.Name, addr)
			if got != want {
				t.Errorf("cycle %d: %s: memory %q[%d] = %#x, %s has %#x",
					n, s.Backend(), m.Name, addr, got, ref.Backend(), want)
			}
		}
	}
}
