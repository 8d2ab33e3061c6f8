package exec

import (
	"github.com/vexec/vexec/pkg/ir"
	"github.com/vexec/vexec/pkg/vmstate"
)

// resolve reads operand's current value: a register read against the
// top frame if operand looks like "%N", otherwise the operand's literal
// encoding (spec.md §6). A bare identifier that isn't a register and
// isn't a recognized literal (a built-in or variable name used as a call
// target, a field/method name) comes back as its raw string, since those
// operands are never meant to be parsed as value literals.
func resolve(state *vmstate.State, operand string) vmstate.Value {
	if ir.IsRegister(operand) {
		return state.Top().Registers[operand]
	}
	v, err := vmstate.ParseLiteral(operand)
	if err != nil {
		return operand
	}
	return v
}

func resolveAll(state *vmstate.State, operands []string) []vmstate.Value {
	out := make([]vmstate.Value, len(operands))
	for i, op := range operands {
		out[i] = resolve(state, op)
	}
	return out
}

// isSymbolicValue reports whether v is a *vmstate.Symbolic.
func isSymbolicValue(v vmstate.Value) bool {
	_, ok := v.(*vmstate.Symbolic)
	return ok
}
