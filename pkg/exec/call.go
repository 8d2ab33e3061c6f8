package exec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vexec/vexec/pkg/builtins"
	"github.com/vexec/vexec/pkg/ir"
	"github.com/vexec/vexec/pkg/registry"
	"github.com/vexec/vexec/pkg/vmstate"
)

// dispatchCall implements spec.md §4.3's three call opcodes. They share
// the resolved-callable dispatch (class constructor / user function /
// symbolic fallback); only how the callable is found differs.
func dispatchCall(state *vmstate.State, reg *registry.Registry, blt *builtins.Table, instr ir.Instruction) (StateUpdate, error) {
	switch instr.Opcode {
	case ir.OpCallFunction:
		return callFunction(state, reg, blt, instr)
	case ir.OpCallMethod:
		return callMethod(state, reg, instr)
	default:
		return callUnknown(state, reg, instr)
	}
}

func callExpr(name string, args []vmstate.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = exprFormat(a)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

func symbolicCallResult(state *vmstate.State, name string, args []vmstate.Value, resultReg string) StateUpdate {
	sym := state.FreshSymbolic("").WithConstraint(callExpr(name, args))
	return StateUpdate{RegisterWrites: map[string]vmstate.Value{resultReg: sym}}
}

// callFunction implements CALL_FUNCTION's dispatch order (spec.md §4.3):
// built-in table, then stack scope lookup (only for a bare-identifier
// target; a register target is already a resolved value), then the
// shared resolved-callable step.
func callFunction(state *vmstate.State, reg *registry.Registry, blt *builtins.Table, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) == 0 {
		return StateUpdate{}, fmt.Errorf("exec: CALL_FUNCTION missing target operand: %w", ErrMalformedInstruction)
	}
	target := instr.Operands[0]
	args := resolveAll(state, instr.Operands[1:])

	if !ir.IsRegister(target) {
		if fn, ok := blt.Lookup(target); ok {
			return applyBuiltin(state, fn, target, args, instr.ResultReg), nil
		}
	}

	var resolved vmstate.Value
	if ir.IsRegister(target) {
		resolved = resolve(state, target)
	} else {
		v, ok := state.LookupVar(target)
		if !ok {
			return symbolicCallResult(state, target, args, instr.ResultReg), nil
		}
		resolved = v
	}

	return dispatchResolvedCallable(state, reg, resolved, args, instr.ResultReg, target)
}

// dispatchResolvedCallable handles a value already resolved to a
// callable candidate: a class reference (constructor dispatch), a
// function reference (user function dispatch), or anything else
// (symbolic fallback, spec.md §4.3 step 2's "if not found at all").
func dispatchResolvedCallable(state *vmstate.State, reg *registry.Registry, resolved vmstate.Value, args []vmstate.Value, resultReg, displayName string) (StateUpdate, error) {
	s, ok := resolved.(string)
	if !ok {
		return symbolicCallResult(state, displayName, args, resultReg), nil
	}
	if classParts, ok := ir.ParseClassRef(s); ok {
		return dispatchConstructor(state, reg, classParts, args, resultReg), nil
	}
	if funcParts, ok := ir.ParseFunctionRef(s); ok {
		return dispatchUserFunction(state, reg, funcParts, args, resultReg)
	}
	return symbolicCallResult(state, displayName, args, resultReg), nil
}

func bindParams(params []string, args []vmstate.Value) map[string]vmstate.Value {
	out := make(map[string]vmstate.Value, len(params))
	for i, p := range params {
		if i < len(args) {
			out[p] = args[i]
		}
	}
	return out
}

// dispatchConstructor implements spec.md §4.3 call dispatch step 3: a
// heap object is allocated and its address is delivered as the call's
// result immediately (RegisterWrites, applied to the caller's frame
// before any call_push per apply.go step 2); if the class has an
// __init__ method, it is also dispatched as a user function bound to
// the new address, with SuppressResult so __init__'s own return value
// (conventionally None) doesn't later clobber the delivered address.
func dispatchConstructor(state *vmstate.State, reg *registry.Registry, classParts ir.ClassRefParts, args []vmstate.Value, resultReg string) StateUpdate {
	addr := state.FreshObjectAddr()
	update := StateUpdate{
		NewObjects:     []NewObject{{Addr: addr, TypeHint: classParts.Name}},
		RegisterWrites: map[string]vmstate.Value{resultReg: addr},
	}

	initLabel, ok := reg.Method(classParts.Name, "__init__")
	if !ok {
		return update
	}

	params := reg.Params[initLabel]
	callArgs := append([]vmstate.Value{addr}, args...)
	update.VarWrites = bindParams(params, callArgs)
	update.CallPush = &CallPush{FunctionName: classParts.Name + ".__init__", SuppressResult: true}
	update.NextLabel = initLabel
	update.HasNextLabel = true
	return update
}

// dispatchUserFunction implements spec.md §4.3 call dispatch step 4.
func dispatchUserFunction(state *vmstate.State, reg *registry.Registry, funcParts ir.FunctionRefParts, args []vmstate.Value, resultReg string) (StateUpdate, error) {
	params := reg.Params[funcParts.Label]
	varWrites := make(map[string]vmstate.Value)
	push := &CallPush{FunctionName: funcParts.Name}

	if funcParts.HasClosure {
		envID := vmstate.EnvIDFromTag(funcParts.ClosureID)
		push.ClosureEnvID = envID
		push.CapturedNames = make(map[string]bool)
		if env, ok := state.ClosureEnvs[envID]; ok {
			for k, v := range env {
				varWrites[k] = v
				push.CapturedNames[k] = true
			}
		}
	}
	for i, p := range params {
		if i < len(args) {
			varWrites[p] = args[i]
		}
	}

	return StateUpdate{
		CallPush:     push,
		NextLabel:    funcParts.Label,
		HasNextLabel: true,
		VarWrites:    varWrites,
	}, nil
}

// callMethod implements CALL_METHOD (spec.md §4.3): resolve obj_reg to
// an address, look up its type hint, find method in the registry.
func callMethod(state *vmstate.State, reg *registry.Registry, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) < 2 {
		return StateUpdate{}, fmt.Errorf("exec: CALL_METHOD missing obj/method operands: %w", ErrMalformedInstruction)
	}
	objVal := resolve(state, instr.Operands[0])
	method := instr.Operands[1]
	args := resolveAll(state, instr.Operands[2:])

	addr, typeHint, ok := containerKey(objVal)
	if !ok {
		return symbolicCallResult(state, fmt.Sprintf("%s.%s", exprFormat(objVal), method), args, instr.ResultReg), nil
	}
	if obj, exists := state.Heap[string(addr)]; exists {
		typeHint = obj.TypeHint
	}

	label, ok := reg.Method(typeHint, method)
	if !ok {
		return symbolicCallResult(state, fmt.Sprintf("%s.%s", addr, method), args, instr.ResultReg), nil
	}

	params := reg.Params[label]
	callArgs := append([]vmstate.Value{addr}, args...)
	return StateUpdate{
		CallPush:     &CallPush{FunctionName: typeHint + "." + method},
		NextLabel:    label,
		HasNextLabel: true,
		VarWrites:    bindParams(params, callArgs),
	}, nil
}

// callUnknown implements CALL_UNKNOWN (spec.md §4.3): the target is
// always a resolved register value, not a bare name.
func callUnknown(state *vmstate.State, reg *registry.Registry, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) == 0 {
		return StateUpdate{}, fmt.Errorf("exec: CALL_UNKNOWN missing target operand: %w", ErrMalformedInstruction)
	}
	target := resolve(state, instr.Operands[0])
	args := resolveAll(state, instr.Operands[1:])
	return dispatchResolvedCallable(state, reg, target, args, instr.ResultReg, exprFormat(target))
}

// applyBuiltin invokes a built-in and folds its Result into a
// StateUpdate: UNCOMPUTABLE promotes to a symbolic result with
// constraint "name(args...)" (spec.md §4.3 step 1); WantsArray
// materializes the returned elements into a freshly minted array
// (builtins only get read-only heap access, so they can't mint
// addresses themselves — see pkg/builtins.Result).
func applyBuiltin(state *vmstate.State, fn builtins.Func, name string, args []vmstate.Value, resultReg string) StateUpdate {
	res := fn(args, state.Heap)
	update := StateUpdate{Output: res.Output}

	if res.WantsArray {
		addr := state.FreshArrayAddr()
		update.NewObjects = []NewObject{{Addr: addr, TypeHint: "list"}}
		for i, elem := range res.ArrayElems {
			update.HeapWrites = append(update.HeapWrites, HeapWrite{Addr: addr, Key: strconv.Itoa(i), Value: elem})
		}
		update.RegisterWrites = map[string]vmstate.Value{resultReg: addr}
		return update
	}

	val := res.Value
	if vmstate.IsUncomputable(val) {
		val = state.FreshSymbolic("").WithConstraint(callExpr(name, args))
	}
	update.RegisterWrites = map[string]vmstate.Value{resultReg: val}
	return update
}
