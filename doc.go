/*
Package rtl provides a register-transfer-level hardware description and
simulation engine: a declarative builder API describes synchronous digital
circuits (ports, wires, registers, block memories, combinational and clocked
assignment blocks), a flattener resolves the component hierarchy into one
immutable netlist, and interchangeable execution backends step the netlist
cycle by cycle with bit-accurate, reproducible semantics.

All backends implement one stepping contract (reset, step, peek, poke) and
must produce bit-identical architectural state for the same design and the
same stimulus. The tree-walking interpreter is the reference oracle; the
JIT backend compiles the netlist into closures once and replays them; the
aot subpackage emits a standalone LLVM IR artifact from the same netlist;
hand-written native runners can be registered for recognized designs and are
selected by structural fingerprint.

Values are unsigned bit-vectors of a declared width between 1 and 64 bits.
Every assignment is masked to the target's declared width. Combinational
logic is evaluated exactly once per step in a topologically derived order;
combinational cycles are compile-time errors, never a runtime convergence
loop. Registers commit synchronously on the (implicit, single) clock edge
from pre-edge values, honoring synchronous reset and clock-enable gating.
*/
package rtl
