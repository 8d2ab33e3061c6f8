// Package oracle defines the external fallback collaborator spec.md §6
// describes: an optional plug-in the pipeline driver may consult for an
// instruction the local executor does not handle. This core's executor
// (pkg/exec) handles every opcode in the closed 20-variant set, so the
// fallback is never exercised today; the interface exists as the
// documented extension seam for a future oracle implementation (an LLM
// or any other out-of-process resolver), which is explicitly out of
// scope here (spec.md §1).
package oracle

import (
	"github.com/vexec/vexec/pkg/exec"
	"github.com/vexec/vexec/pkg/ir"
	"github.com/vexec/vexec/pkg/vmstate"
)

// HeapObjectSnapshot is one heap object's serializable form.
type HeapObjectSnapshot struct {
	TypeHint string                   `json:"type_hint"`
	Fields   map[string]vmstate.Value `json:"fields"`
}

// Snapshot is the serializable slice of VM state an oracle is handed: the
// full heap, the current frame's locals and registers, and the
// accumulated path conditions (spec.md §6). It deliberately excludes the
// rest of the call stack and the closure-environment table — an oracle
// resolves one instruction against the current frame's view, not the
// whole run's history.
type Snapshot struct {
	Heap           map[string]HeapObjectSnapshot `json:"heap"`
	Locals         map[string]vmstate.Value      `json:"locals"`
	Registers      map[string]vmstate.Value      `json:"registers"`
	PathConditions []string                      `json:"path_conditions"`
}

// NewSnapshot builds a Snapshot of state's current frame and heap.
func NewSnapshot(state *vmstate.State) Snapshot {
	heap := make(map[string]HeapObjectSnapshot, len(state.Heap))
	for addr, obj := range state.Heap {
		heap[addr] = HeapObjectSnapshot{TypeHint: obj.TypeHint, Fields: obj.Fields}
	}
	top := state.Top()
	return Snapshot{
		Heap:           heap,
		Locals:         top.Locals,
		Registers:      top.Registers,
		PathConditions: state.PathConditions,
	}
}

// Oracle is the one-operation fallback collaborator: given the
// instruction the local executor did not handle and a Snapshot of
// current state, produce a StateUpdate. ok is false if the oracle also
// cannot resolve the instruction, in which case the driver aborts with a
// fatal error naming the opcode (spec.md §4.5 step 3).
type Oracle interface {
	Resolve(instr ir.Instruction, snap Snapshot) (update exec.StateUpdate, ok bool)
}

// SymbolicValueJSON is the serialization contract for a symbolic value
// crossing the oracle boundary (spec.md §6): an object tagged
// __symbolic__: true, with name, an optional type hint, and the ordered
// constraint list.
type SymbolicValueJSON struct {
	Symbolic    bool     `json:"__symbolic__"`
	Name        string   `json:"name"`
	TypeHint    string   `json:"type_hint,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// EncodeSymbolic converts a *vmstate.Symbolic to its wire form.
func EncodeSymbolic(sym *vmstate.Symbolic) SymbolicValueJSON {
	return SymbolicValueJSON{
		Symbolic:    true,
		Name:        sym.Name,
		TypeHint:    sym.TypeHint,
		Constraints: sym.Constraints,
	}
}

// DecodeSymbolic is the inverse of EncodeSymbolic.
func DecodeSymbolic(v SymbolicValueJSON) *vmstate.Symbolic {
	return &vmstate.Symbolic{Name: v.Name, TypeHint: v.TypeHint, Constraints: v.Constraints}
}
