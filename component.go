package rtl

// SigKind classifies a declared signal.
type SigKind int

// Signal kinds.
const (
	SigInput SigKind = iota
	SigOutput
	SigWire
	SigReg
)

var sigKindNames = [...]string{SigInput: "input", SigOutput: "output", SigWire: "wire", SigReg: "register"}

func (k SigKind) String() string { return sigKindNames[k] }

// A Signal is a named bit-vector net or register. Registers carry a reset
// value; inputs may carry a default used when the port is left unbound.
type Signal struct {
	Name       string
	Kind       SigKind
	Width      int
	Reset      uint64 // registers only
	Default    uint64 // inputs only, valid when HasDefault
	HasDefault bool
}

// A Memory is a word-addressed block memory with one asynchronous read
// expression port (Mem.Read) and at most one synchronous write port per
// sequential domain (Block.Write).
type Memory struct {
	Name  string
	Depth int
	Width int
}

// An Assign binds a target signal to its merged driving expression. Within a
// block, repeated assignments to one target collapse into a single nested
// mux chain, last declaration outermost.
type Assign struct {
	Target SignalID
	Expr   Expr
}

// A MemWrite is a synchronous memory write port: on the clock edge, when the
// domain commits and En is 1, Data is stored at Addr.
type MemWrite struct {
	Mem  MemID
	Addr Expr
	Data Expr
	En   Expr
}

// A SeqBlock is one clocked domain: register next-value assignments and
// memory write ports committed together on the clock edge, gated by an
// optional synchronous reset and clock enable.
type SeqBlock struct {
	Reset   SignalID // -1 when the domain has no reset
	Enable  SignalID // -1 when the domain has no clock enable
	Assigns []Assign
	Writes  []MemWrite
}

// B maps a child instance's port names to bindings in the parent: a string
// names a parent signal, an integer constant binds an input port to a
// literal.
type B map[string]interface{}

// An Instance places a child component inside its parent with port bindings.
// The parent owns the instance; bindings reference parent signals by name.
type Instance struct {
	Name  string
	Comp  *Component
	Conns B
}

// A Component is an immutable description of a circuit: its signals,
// memories, merged combinational assignments, clocked domains and child
// instances. Components are produced by Builder.Build and consumed by
// Flatten.
type Component struct {
	Name    string
	Signals []Signal
	Mems    []Memory
	Comb    []Assign
	Seq     []SeqBlock
	Insts   []Instance

	index    map[string]SignalID
	memIndex map[string]MemID
}

// SignalID returns the local id of the named signal.
func (c *Component) SignalID(name string) (SignalID, bool) {
	id, ok := c.index[name]
	return id, ok
}
