package exec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vexec/vexec/pkg/builtins"
	"github.com/vexec/vexec/pkg/ir"
	"github.com/vexec/vexec/pkg/registry"
	"github.com/vexec/vexec/pkg/vmstate"
)

// ErrMalformedInstruction marks every error Step (and the call dispatch
// in call.go) can return: a bad literal, missing operands, or an
// unparseable branch target. It is always wrapped via %w so callers can
// tell it apart from some other, non-malformed-input failure with
// errors.Is — spec.md §7 requires malformed input to be fatal
// unconditionally, never routed through the oracle extension seam.
var ErrMalformedInstruction = errors.New("exec: malformed instruction")

// Step executes one instruction against state, returning the StateUpdate
// describing its effect. It never mutates state itself — see apply.go.
// Opcode is a closed 20-variant set (spec.md §3); every one is handled
// here, so unlike the oracle extension point, Step has nothing left to
// delegate. err is non-nil only for malformed input (spec.md §7), and is
// always ErrMalformedInstruction or a wrapper around it. An unrecognized
// Opcode value reaching the switch below is a programming error, not a
// VM-level one, so it panics rather than erroring.
func Step(state *vmstate.State, reg *registry.Registry, blt *builtins.Table, instr ir.Instruction) (StateUpdate, error) {
	switch instr.Opcode {
	case ir.OpConst:
		return stepConst(state, instr)
	case ir.OpLoadVar:
		return stepLoadVar(state, instr)
	case ir.OpLoadField:
		return stepLoadField(state, instr)
	case ir.OpLoadIndex:
		return stepLoadIndex(state, instr)
	case ir.OpNewObject:
		return stepNewObject(state, instr), nil
	case ir.OpNewArray:
		return stepNewArray(state, instr), nil
	case ir.OpBinop:
		return stepBinop(state, instr)
	case ir.OpUnop:
		return stepUnop(state, instr)
	case ir.OpStoreVar:
		return stepStoreVar(state, instr)
	case ir.OpStoreField:
		return stepStoreField(state, instr)
	case ir.OpStoreIndex:
		return stepStoreIndex(state, instr)
	case ir.OpBranch:
		return StateUpdate{NextLabel: instr.Label, HasNextLabel: true}, nil
	case ir.OpBranchIf:
		return stepBranchIf(state, instr)
	case ir.OpReturn:
		return stepReturn(state, instr), nil
	case ir.OpThrow:
		return stepThrow(state, instr), nil
	case ir.OpSymbolic:
		return stepSymbolic(state, instr), nil
	case ir.OpCallFunction, ir.OpCallMethod, ir.OpCallUnknown:
		return dispatchCall(state, reg, blt, instr)
	case ir.OpLabel:
		return StateUpdate{}, nil
	default:
		panic(fmt.Sprintf("exec: unhandled opcode %v", instr.Opcode))
	}
}

// stepConst implements spec.md §4.3 CONST, including closure promotion:
// a bare <function:NAME@LABEL> literal constructed in a non-<main> frame
// is tagged with the frame's closure-environment id (minting one, and
// copying the frame's current locals into it, on first use).
func stepConst(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) == 0 {
		return StateUpdate{}, fmt.Errorf("exec: CONST %s missing literal operand: %w", instr.ResultReg, ErrMalformedInstruction)
	}
	v, err := vmstate.ParseLiteral(instr.Operands[0])
	if err != nil {
		return StateUpdate{}, fmt.Errorf("exec: CONST %s: %v: %w", instr.ResultReg, err, ErrMalformedInstruction)
	}
	update := StateUpdate{RegisterWrites: map[string]vmstate.Value{}}

	if s, ok := v.(string); ok {
		if parts, ok := ir.ParseFunctionRef(s); ok && !parts.HasClosure {
			top := state.Top()
			if top.FunctionName != vmstate.MainFunctionName {
				envID := top.ClosureEnvID
				if envID == "" {
					envID = state.FreshEnvID()
					update.NewClosureEnvs = append(update.NewClosureEnvs, envID)
					for name, val := range top.Locals {
						update.EnvWrites = append(update.EnvWrites, ClosureEnvWrite{EnvID: envID, Key: name, Value: val})
					}
					update.SetClosureEnv = envID
					update.HasSetClosureEnv = true
				}
				tag, tagErr := vmstate.EnvTag(envID)
				if tagErr != nil {
					return StateUpdate{}, fmt.Errorf("exec: CONST %s: %v: %w", instr.ResultReg, tagErr, ErrMalformedInstruction)
				}
				v = ir.FunctionRef(parts.Name, parts.Label, tag, true)
			}
		}
	}

	update.RegisterWrites[instr.ResultReg] = v
	return update, nil
}

// stepLoadVar implements spec.md §4.3 LOAD_VAR: stack scan, then the
// current frame's closure environment, then a fresh symbolic hinted with
// the variable name.
func stepLoadVar(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) == 0 {
		return StateUpdate{}, fmt.Errorf("exec: LOAD_VAR %s missing name operand: %w", instr.ResultReg, ErrMalformedInstruction)
	}
	name := instr.Operands[0]

	if v, ok := state.LookupVar(name); ok {
		return StateUpdate{RegisterWrites: map[string]vmstate.Value{instr.ResultReg: v}}, nil
	}
	top := state.Top()
	if top.ClosureEnvID != "" {
		if env, ok := state.ClosureEnvs[top.ClosureEnvID]; ok {
			if v, ok := env[name]; ok {
				return StateUpdate{RegisterWrites: map[string]vmstate.Value{instr.ResultReg: v}}, nil
			}
		}
	}
	sym := state.FreshSymbolic(name)
	return StateUpdate{RegisterWrites: map[string]vmstate.Value{instr.ResultReg: sym}}, nil
}

// stepStoreVar implements spec.md §4.3 STORE_VAR. Mirroring into the
// closure environment for captured names happens in Apply (step 6), not
// here, since it is a property of the frame Apply writes into, not of
// this instruction in isolation.
func stepStoreVar(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) < 2 {
		return StateUpdate{}, fmt.Errorf("exec: STORE_VAR missing name/reg operands: %w", ErrMalformedInstruction)
	}
	name := instr.Operands[0]
	v := resolve(state, instr.Operands[1])
	return StateUpdate{VarWrites: map[string]vmstate.Value{name: v}}, nil
}

// containerKey resolves a value that LOAD_FIELD/LOAD_INDEX/STORE_FIELD/
// STORE_INDEX treat as addressable: a concrete heap Address, or a
// *Symbolic treated as an address-shaped placeholder keyed by its own
// name (spec.md §3 invariant 5: "a field lookup on a symbolic heap
// address materializes a synthetic heap object lazily" — the symbolic's
// Name is that address, and its TypeHint seeds the synthesized object's
// type hint).
func containerKey(v vmstate.Value) (vmstate.Address, string, bool) {
	switch x := v.(type) {
	case vmstate.Address:
		return x, "", true
	case *vmstate.Symbolic:
		return vmstate.Address(x.Name), x.TypeHint, true
	default:
		return "", "", false
	}
}

func stepLoadField(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) < 2 {
		return StateUpdate{}, fmt.Errorf("exec: LOAD_FIELD missing obj/field operands: %w", ErrMalformedInstruction)
	}
	obj := resolve(state, instr.Operands[0])
	return loadKeyed(state, obj, instr.Operands[1], instr.ResultReg), nil
}

func stepLoadIndex(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) < 2 {
		return StateUpdate{}, fmt.Errorf("exec: LOAD_INDEX missing obj/index operands: %w", ErrMalformedInstruction)
	}
	obj := resolve(state, instr.Operands[0])
	idx := resolve(state, instr.Operands[1])
	return loadKeyed(state, obj, vmstate.FormatValue(idx), instr.ResultReg), nil
}

func loadKeyed(state *vmstate.State, container vmstate.Value, key, resultReg string) StateUpdate {
	addr, typeHint, ok := containerKey(container)
	if !ok {
		sym := state.FreshSymbolic(key)
		return StateUpdate{RegisterWrites: map[string]vmstate.Value{resultReg: sym}}
	}
	update := StateUpdate{RegisterWrites: map[string]vmstate.Value{}}
	if obj, exists := state.Heap[string(addr)]; exists {
		if v, ok := obj.Fields[key]; ok {
			update.RegisterWrites[resultReg] = v
			return update
		}
	} else {
		update.NewObjects = append(update.NewObjects, NewObject{Addr: addr, TypeHint: typeHint})
	}
	sym := state.FreshSymbolic(string(addr) + "." + key)
	update.RegisterWrites[resultReg] = sym
	update.HeapWrites = append(update.HeapWrites, HeapWrite{Addr: addr, Key: key, Value: sym})
	return update
}

func stepStoreField(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) < 3 {
		return StateUpdate{}, fmt.Errorf("exec: STORE_FIELD missing obj/field/value operands: %w", ErrMalformedInstruction)
	}
	obj := resolve(state, instr.Operands[0])
	val := resolve(state, instr.Operands[2])
	return storeKeyed(state, obj, instr.Operands[1], val), nil
}

func stepStoreIndex(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) < 3 {
		return StateUpdate{}, fmt.Errorf("exec: STORE_INDEX missing obj/index/value operands: %w", ErrMalformedInstruction)
	}
	obj := resolve(state, instr.Operands[0])
	idx := resolve(state, instr.Operands[1])
	val := resolve(state, instr.Operands[2])
	return storeKeyed(state, obj, vmstate.FormatValue(idx), val), nil
}

func storeKeyed(state *vmstate.State, container vmstate.Value, key string, val vmstate.Value) StateUpdate {
	addr, typeHint, ok := containerKey(container)
	if !ok {
		return StateUpdate{}
	}
	update := StateUpdate{HeapWrites: []HeapWrite{{Addr: addr, Key: key, Value: val}}}
	if _, exists := state.Heap[string(addr)]; !exists {
		update.NewObjects = append(update.NewObjects, NewObject{Addr: addr, TypeHint: typeHint})
	}
	return update
}

func stepNewObject(state *vmstate.State, instr ir.Instruction) StateUpdate {
	typeHint := ""
	if len(instr.Operands) > 0 {
		typeHint = instr.Operands[0]
	}
	addr := state.FreshObjectAddr()
	return StateUpdate{
		NewObjects:     []NewObject{{Addr: addr, TypeHint: typeHint}},
		RegisterWrites: map[string]vmstate.Value{instr.ResultReg: addr},
	}
}

func stepNewArray(state *vmstate.State, instr ir.Instruction) StateUpdate {
	addr := state.FreshArrayAddr()
	return StateUpdate{
		NewObjects:     []NewObject{{Addr: addr, TypeHint: "list"}},
		RegisterWrites: map[string]vmstate.Value{instr.ResultReg: addr},
	}
}

func stepBinop(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) < 3 {
		return StateUpdate{}, fmt.Errorf("exec: BINOP missing op/lhs/rhs operands: %w", ErrMalformedInstruction)
	}
	op := instr.Operands[0]
	lhs := resolve(state, instr.Operands[1])
	rhs := resolve(state, instr.Operands[2])

	if isSymbolicValue(lhs) || isSymbolicValue(rhs) {
		sym := state.FreshSymbolic("").WithConstraint(binopExpr(op, lhs, rhs))
		return StateUpdate{RegisterWrites: map[string]vmstate.Value{instr.ResultReg: sym}}, nil
	}

	result := evalBinop(op, lhs, rhs)
	if vmstate.IsUncomputable(result) {
		result = state.FreshSymbolic("").WithConstraint(binopExpr(op, lhs, rhs))
	}
	return StateUpdate{RegisterWrites: map[string]vmstate.Value{instr.ResultReg: result}}, nil
}

func stepUnop(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) < 2 {
		return StateUpdate{}, fmt.Errorf("exec: UNOP missing op/arg operands: %w", ErrMalformedInstruction)
	}
	op := instr.Operands[0]
	arg := resolve(state, instr.Operands[1])

	if isSymbolicValue(arg) {
		sym := state.FreshSymbolic("").WithConstraint(unopExpr(op, arg))
		return StateUpdate{RegisterWrites: map[string]vmstate.Value{instr.ResultReg: sym}}, nil
	}

	result := evalUnop(op, arg)
	if vmstate.IsUncomputable(result) {
		result = state.FreshSymbolic("").WithConstraint(unopExpr(op, arg))
	}
	return StateUpdate{RegisterWrites: map[string]vmstate.Value{instr.ResultReg: result}}, nil
}

// splitBranchTargets parses a BRANCH_IF label of the form
// "true_label,false_label" (mirrors pkg/cfg's own parsing, kept separate
// since the two packages must not import one another for this).
func splitBranchTargets(label string) (string, string, error) {
	for i := 0; i < len(label); i++ {
		if label[i] == ',' {
			return label[:i], label[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("exec: malformed BRANCH_IF target %q, want \"true,false\": %w", label, ErrMalformedInstruction)
}

// symbolicBranchText is the description BRANCH_IF records in the path
// condition for a symbolic condition: the condition's own most specific
// constraint, parenthesized, if it has one (e.g. a comparison BINOP's
// "sym_0 > 0"), falling back to its bare name otherwise. This matches
// spec.md §8 scenario 4: branching on a freshly-compared symbolic records
// "assuming (sym_0 > 0) is True", not "assuming sym_1 is True" (sym_1
// being the comparison's own result name).
func symbolicBranchText(sym *vmstate.Symbolic) string {
	if len(sym.Constraints) > 0 {
		return "(" + sym.Constraints[len(sym.Constraints)-1] + ")"
	}
	return sym.Name
}

func stepBranchIf(state *vmstate.State, instr ir.Instruction) (StateUpdate, error) {
	if len(instr.Operands) == 0 {
		return StateUpdate{}, fmt.Errorf("exec: BRANCH_IF missing condition operand: %w", ErrMalformedInstruction)
	}
	trueLabel, falseLabel, err := splitBranchTargets(instr.Label)
	if err != nil {
		return StateUpdate{}, err
	}
	cond := resolve(state, instr.Operands[0])

	if sym, ok := cond.(*vmstate.Symbolic); ok {
		pc := fmt.Sprintf("assuming %s is True", symbolicBranchText(sym))
		return StateUpdate{NextLabel: trueLabel, HasNextLabel: true, PathCondition: pc, HasPathCondition: true}, nil
	}

	target := falseLabel
	if vmstate.Truthy(cond, state.Heap) {
		target = trueLabel
	}
	return StateUpdate{NextLabel: target, HasNextLabel: true}, nil
}

func stepReturn(state *vmstate.State, instr ir.Instruction) StateUpdate {
	rv := returnValue(state, instr)
	return StateUpdate{ReturnValue: rv, HasReturnValue: true, CallPop: true}
}

// stepThrow treats THROW identically to RETURN for control flow, per the
// resolved Open Question in spec.md §9: no typed exception propagation in
// this core. It additionally records a path condition.
func stepThrow(state *vmstate.State, instr ir.Instruction) StateUpdate {
	rv := returnValue(state, instr)
	pc := "raised " + exprFormat(rv)
	return StateUpdate{ReturnValue: rv, HasReturnValue: true, CallPop: true, PathCondition: pc, HasPathCondition: true}
}

func returnValue(state *vmstate.State, instr ir.Instruction) vmstate.Value {
	if len(instr.Operands) > 0 && instr.Operands[0] != "" {
		return resolve(state, instr.Operands[0])
	}
	return vmstate.None
}

func stepSymbolic(state *vmstate.State, instr ir.Instruction) StateUpdate {
	hint := ""
	if len(instr.Operands) > 0 {
		hint = instr.Operands[0]
	}
	if name, isParam := strings.CutPrefix(hint, "param:"); isParam {
		if v, ok := state.Top().Locals[name]; ok {
			return StateUpdate{RegisterWrites: map[string]vmstate.Value{instr.ResultReg: v}}
		}
	}
	sym := state.FreshSymbolic(hint)
	return StateUpdate{RegisterWrites: map[string]vmstate.Value{instr.ResultReg: sym}}
}
