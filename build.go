package rtl

import (
	"strings"

	"github.com/pkg/errors"
)

// A Builder accumulates the declaration of one component: ports, wires,
// registers, memories, assignment blocks and child instances. Declarations
// happen in any order before Build; Build compiles the assignment blocks
// into the expression IR and returns the immutable Component.
//
// The declaration sequence replaces inheritance-style DSLs: declare signals,
// declare blocks, finalize. A Builder is single-use.
//
type Builder struct {
	c          *Component
	err        error
	built      bool
	combBlocks []func(*Block)
	seqBlocks  []seqDecl
}

type seqDecl struct {
	reset  Sig
	enable Sig
	fn     func(*Block)
}

// SeqOpts configures one clocked domain. Reset and Enable, when set, name
// 1-bit signals sampled on the clock edge: an asserted Reset loads every
// register's declared reset value; a deasserted Enable holds all registers
// and suppresses memory writes. Clock-enable gating is the engine's sole
// sub-rate mechanism.
type SeqOpts struct {
	Reset  Sig
	Enable Sig
}

// NewComponent returns a Builder for a component with the given name.
//
func NewComponent(name string) *Builder {
	b := &Builder{c: &Component{
		Name:     name,
		index:    make(map[string]SignalID),
		memIndex: make(map[string]MemID),
	}}
	if name == "" {
		b.fail(errors.New("component name must not be empty"))
	}
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = errors.WithMessage(err, b.c.Name)
	}
}

func (b *Builder) declare(name string, kind SigKind, w int) Sig {
	if b.built {
		b.fail(errors.Errorf("declaration of %q after Build", name))
		return Sig{}
	}
	if name == "" || strings.ContainsRune(name, '.') {
		b.fail(errors.Errorf("invalid signal name %q", name))
		return Sig{}
	}
	if _, ok := b.c.index[name]; ok {
		b.fail(errors.Errorf("duplicate signal declaration %q", name))
		return Sig{}
	}
	if _, ok := b.c.memIndex[name]; ok {
		b.fail(errors.Errorf("signal %q redeclares a memory name", name))
		return Sig{}
	}
	if w < 1 || w > MaxWidth {
		b.fail(errors.Errorf("signal %q: width %d out of range [1, %d]", name, w, MaxWidth))
		return Sig{}
	}
	id := SignalID(len(b.c.Signals))
	b.c.Signals = append(b.c.Signals, Signal{Name: name, Kind: kind, Width: w})
	b.c.index[name] = id
	return Sig{ID: id, Name: name, W: w}
}

// Input declares an input port of the given width.
func (b *Builder) Input(name string, w int) Sig {
	return b.declare(name, SigInput, w)
}

// InputDefault declares an input port with a default value, used when the
// port is left unbound by a parent and as the port's initial value at the
// top level.
func (b *Builder) InputDefault(name string, w int, def uint64) Sig {
	s := b.declare(name, SigInput, w)
	if b.err == nil && s.W > 0 {
		if def != truncate(def, w) {
			b.fail(errors.Errorf("input %q: default %d does not fit in %d bits", name, def, w))
			return s
		}
		b.c.Signals[s.ID].Default = def
		b.c.Signals[s.ID].HasDefault = true
	}
	return s
}

// Output declares an output port of the given width.
func (b *Builder) Output(name string, w int) Sig {
	return b.declare(name, SigOutput, w)
}

// Wire declares an internal combinational net.
func (b *Builder) Wire(name string, w int) Sig {
	return b.declare(name, SigWire, w)
}

// Register declares a clocked register with its reset value.
func (b *Builder) Register(name string, w int, reset uint64) Sig {
	s := b.declare(name, SigReg, w)
	if b.err == nil && s.W > 0 {
		if reset != truncate(reset, w) {
			b.fail(errors.Errorf("register %q: reset value %d does not fit in %d bits", name, reset, w))
			return s
		}
		b.c.Signals[s.ID].Reset = reset
	}
	return s
}

// Memory declares a block memory of depth words of the given width.
func (b *Builder) Memory(name string, depth, w int) Mem {
	if b.built {
		b.fail(errors.Errorf("declaration of %q after Build", name))
		return Mem{}
	}
	if name == "" || strings.ContainsRune(name, '.') {
		b.fail(errors.Errorf("invalid memory name %q", name))
		return Mem{}
	}
	if _, ok := b.c.index[name]; ok {
		b.fail(errors.Errorf("memory %q redeclares a signal name", name))
		return Mem{}
	}
	if _, ok := b.c.memIndex[name]; ok {
		b.fail(errors.Errorf("duplicate memory declaration %q", name))
		return Mem{}
	}
	if depth < 1 {
		b.fail(errors.Errorf("memory %q: depth %d must be positive", name, depth))
		return Mem{}
	}
	if w < 1 || w > MaxWidth {
		b.fail(errors.Errorf("memory %q: width %d out of range [1, %d]", name, w, MaxWidth))
		return Mem{}
	}
	id := MemID(len(b.c.Mems))
	b.c.Mems = append(b.c.Mems, Memory{Name: name, Depth: depth, Width: w})
	b.c.memIndex[name] = id
	return Mem{ID: id, Name: name, Depth: depth, W: w}
}

// Behavior declares a combinational block. The function body runs once at
// Build time; its Set/SetWhen calls accumulate the block's override chains.
// Multiple Behavior blocks extend each other in declaration order.
func (b *Builder) Behavior(fn func(*Block)) {
	b.combBlocks = append(b.combBlocks, fn)
}

// Sequential declares one clocked domain. All registers assigned in the
// block commit together on the clock edge from pre-edge values.
func (b *Builder) Sequential(opts SeqOpts, fn func(*Block)) {
	b.seqBlocks = append(b.seqBlocks, seqDecl{reset: opts.Reset, enable: opts.Enable, fn: fn})
}

// Instance places child inside this component under the given instance name,
// binding the child's ports per conns. Binding values are parent signal
// names (string) or constants (uint64/int, input ports only).
func (b *Builder) Instance(name string, child *Component, conns B) {
	if b.built {
		b.fail(errors.Errorf("instance %q declared after Build", name))
		return
	}
	if name == "" || strings.ContainsRune(name, '.') {
		b.fail(errors.Errorf("invalid instance name %q", name))
		return
	}
	if child == nil {
		b.fail(errors.Errorf("instance %q: nil component", name))
		return
	}
	for _, inst := range b.c.Insts {
		if inst.Name == name {
			b.fail(errors.Errorf("duplicate instance name %q", name))
			return
		}
	}
	b.c.Insts = append(b.c.Insts, Instance{Name: name, Comp: child, Conns: conns})
}

// A Block records the assignments of one behavior or sequential block.
// Assignments to the same target accumulate into a single override chain:
// Set replaces the chain (last unconditional assignment wins), SetWhen wraps
// it in a mux so the latest condition has the highest priority.
type Block struct {
	b     *Builder
	seq   bool
	chain map[SignalID]Expr
	order []SignalID

	writes  []MemWrite
	written map[MemID]bool
}

func (blk *Block) target(s Sig) *Signal {
	c := blk.b.c
	if int(s.ID) >= len(c.Signals) || c.Signals[s.ID].Name != s.Name || c.Signals[s.ID].Width != s.W {
		fail("assignment to undeclared signal %q", s.Name)
	}
	sig := &c.Signals[s.ID]
	switch {
	case sig.Kind == SigInput:
		fail("cannot assign input port %q", s.Name)
	case blk.seq && sig.Kind != SigReg:
		fail("sequential assignment to %s %q (only registers update on the clock edge)", sig.Kind, s.Name)
	case !blk.seq && sig.Kind == SigReg:
		fail("combinational assignment to register %q (use a sequential block)", s.Name)
	}
	return sig
}

// fit adapts e to the target width: wider expressions are masked (every
// value assigned to a signal is masked to its declared width), narrower
// ones are zero-extended.
func fit(e Expr, w int) Expr {
	switch {
	case e.Width() > w:
		return Bits(e, w-1, 0)
	case e.Width() < w:
		return ZExt(e, w)
	}
	return e
}

// Set assigns e to target unconditionally, replacing any earlier assignment
// to the same target in this chain.
func (blk *Block) Set(target Sig, e Expr) {
	blk.target(target)
	if _, ok := blk.chain[target.ID]; !ok {
		blk.order = append(blk.order, target.ID)
	}
	blk.chain[target.ID] = fit(e, target.W)
}

// SetWhen assigns e to target when cond is 1, overriding earlier assignments
// in this chain. In a combinational block the target needs an unconditional
// default first; in a sequential block a register without a default holds
// its current value.
func (blk *Block) SetWhen(cond Expr, target Sig, e Expr) {
	blk.target(target)
	if cond.Width() != 1 {
		fail("condition for %q must be 1 bit, got %d", target.Name, cond.Width())
	}
	prev, ok := blk.chain[target.ID]
	if !ok {
		if !blk.seq {
			fail("conditional assignment to %q before an unconditional default", target.Name)
		}
		prev = target // hold
		blk.order = append(blk.order, target.ID)
	}
	blk.chain[target.ID] = Mux(cond, fit(e, target.W), prev)
}

// Write declares the synchronous write port of memory m for this domain:
// when the domain commits and en is 1, data is stored at addr. A memory has
// at most one write port per sequential block.
func (blk *Block) Write(m Mem, addr, data, en Expr) {
	if !blk.seq {
		fail("memory %q written outside a sequential block", m.Name)
	}
	c := blk.b.c
	if int(m.ID) >= len(c.Mems) || c.Mems[m.ID].Name != m.Name {
		fail("write to undeclared memory %q", m.Name)
	}
	if blk.written[m.ID] {
		fail("memory %q has more than one write port in one sequential block", m.Name)
	}
	if en.Width() != 1 {
		fail("write enable for %q must be 1 bit, got %d", m.Name, en.Width())
	}
	blk.written[m.ID] = true
	blk.writes = append(blk.writes, MemWrite{Mem: m.ID, Addr: addr, Data: fit(data, m.W), En: en})
}

func (b *Builder) runBlock(seq bool, shared *Block, fn func(*Block)) (blk *Block, err error) {
	blk = shared
	if blk == nil {
		blk = &Block{b: b, seq: seq, chain: make(map[SignalID]Expr), written: make(map[MemID]bool)}
	}
	defer func() {
		if r := recover(); r != nil {
			be, ok := r.(buildError)
			if !ok {
				panic(r)
			}
			err = errors.WithMessage(be.err, b.c.Name)
		}
	}()
	fn(blk)
	return blk, nil
}

func (b *Builder) checkDomainSig(s Sig, what string) (SignalID, error) {
	if s.W == 0 {
		return -1, nil
	}
	c := b.c
	if int(s.ID) >= len(c.Signals) || c.Signals[s.ID].Name != s.Name {
		return -1, errors.Errorf("%s: %s signal %q not declared", c.Name, what, s.Name)
	}
	if s.W != 1 {
		return -1, errors.Errorf("%s: %s signal %q must be 1 bit, got %d", c.Name, what, s.Name, s.W)
	}
	return s.ID, nil
}

// Build compiles the declared blocks and returns the immutable component.
// It reports undeclared signal references, width mismatches, duplicate
// drivers and registers driven from more than one clocked domain, each with
// the offending component and signal name.
//
func (b *Builder) Build() (*Component, error) {
	if b.built {
		return nil, errors.Errorf("%s: Build called twice", b.c.Name)
	}
	b.built = true
	if b.err != nil {
		return nil, b.err
	}
	c := b.c

	// combinational blocks share one chain so later blocks keep overriding
	// earlier ones in declaration order.
	var comb *Block
	for _, fn := range b.combBlocks {
		var err error
		if comb, err = b.runBlock(false, comb, fn); err != nil {
			return nil, err
		}
	}
	if comb != nil {
		for _, id := range comb.order {
			c.Comb = append(c.Comb, Assign{Target: id, Expr: comb.chain[id]})
		}
	}

	regDomain := make(map[SignalID]bool)
	for _, sd := range b.seqBlocks {
		rst, err := b.checkDomainSig(sd.reset, "reset")
		if err != nil {
			return nil, err
		}
		en, err := b.checkDomainSig(sd.enable, "enable")
		if err != nil {
			return nil, err
		}
		blk, err := b.runBlock(true, nil, sd.fn)
		if err != nil {
			return nil, err
		}
		sb := SeqBlock{Reset: rst, Enable: en, Writes: blk.writes}
		for _, id := range blk.order {
			if regDomain[id] {
				return nil, errors.Errorf("%s: register %q driven from two sequential domains", c.Name, c.Signals[id].Name)
			}
			regDomain[id] = true
			sb.Assigns = append(sb.Assigns, Assign{Target: id, Expr: blk.chain[id]})
		}
		c.Seq = append(c.Seq, sb)
	}

	if err := b.checkDrivers(); err != nil {
		return nil, err
	}
	if err := b.checkInstances(); err != nil {
		return nil, err
	}
	return c, nil
}

// checkDrivers verifies that every wire and output has exactly one driver:
// a combinational assignment or a child instance's output binding.
func (b *Builder) checkDrivers() error {
	c := b.c
	drivers := make(map[SignalID]int)
	for _, a := range c.Comb {
		drivers[a.Target]++
	}
	for _, inst := range c.Insts {
		for port, v := range inst.Conns {
			name, ok := v.(string)
			if !ok {
				continue
			}
			pid, ok := inst.Comp.index[port]
			if !ok {
				continue // reported by checkInstances
			}
			if inst.Comp.Signals[pid].Kind != SigOutput {
				continue
			}
			if id, ok := c.index[name]; ok {
				drivers[id]++
			}
		}
	}
	for id, sig := range c.Signals {
		if sig.Kind != SigWire && sig.Kind != SigOutput {
			continue
		}
		switch n := drivers[SignalID(id)]; {
		case n == 0:
			return errors.Errorf("%s: %s %q is not connected to any driver", c.Name, sig.Kind, sig.Name)
		case n > 1:
			return errors.Errorf("%s: %s %q has %d drivers", c.Name, sig.Kind, sig.Name, n)
		}
	}
	return nil
}

func (b *Builder) checkInstances() error {
	c := b.c
	for _, inst := range c.Insts {
		child := inst.Comp
		for port, v := range inst.Conns {
			pid, ok := child.index[port]
			if !ok {
				return errors.Errorf("%s: instance %q: no port %q in component %s", c.Name, inst.Name, port, child.Name)
			}
			psig := child.Signals[pid]
			if psig.Kind != SigInput && psig.Kind != SigOutput {
				return errors.Errorf("%s: instance %q: %q is not a port of %s", c.Name, inst.Name, port, child.Name)
			}
			switch bv := v.(type) {
			case string:
				id, ok := c.index[bv]
				if !ok {
					return errors.Errorf("%s: instance %q: port %q bound to undeclared signal %q", c.Name, inst.Name, port, bv)
				}
				if c.Signals[id].Width != psig.Width {
					return errors.Errorf("%s: instance %q: port %q is %d bits but %q is %d bits",
						c.Name, inst.Name, port, psig.Width, bv, c.Signals[id].Width)
				}
			case uint64, int:
				if psig.Kind != SigInput {
					return errors.Errorf("%s: instance %q: output port %q bound to a constant", c.Name, inst.Name, port)
				}
				cv := toUint64(bv)
				if cv != truncate(cv, psig.Width) {
					return errors.Errorf("%s: instance %q: constant %d does not fit %d-bit port %q", c.Name, inst.Name, cv, psig.Width, port)
				}
			default:
				return errors.Errorf("%s: instance %q: port %q bound to unsupported value of type %T", c.Name, inst.Name, port, v)
			}
		}
	}
	return nil
}

func toUint64(v interface{}) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int:
		return uint64(n)
	}
	return 0
}
