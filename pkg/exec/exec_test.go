package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexec/vexec/pkg/builtins"
	"github.com/vexec/vexec/pkg/ir"
	"github.com/vexec/vexec/pkg/registry"
	"github.com/vexec/vexec/pkg/vmstate"
)

func TestApplyRegisterWritesLandInCallerBeforePush(t *testing.T) {
	s := vmstate.New()
	update := StateUpdate{
		RegisterWrites: map[string]vmstate.Value{"%0": vmstate.Number(1)},
		CallPush:       &CallPush{FunctionName: "f"},
	}
	pushed := Apply(s, update)
	require.NotNil(t, pushed)
	assert.Equal(t, vmstate.Number(1), s.Stack[0].Registers["%0"])
	assert.Len(t, s.Stack[0].Registers, 1)
	assert.NotContains(t, pushed.Registers, "%0")
}

func TestApplyVarWritesLandInPushedFrame(t *testing.T) {
	s := vmstate.New()
	update := StateUpdate{
		CallPush:  &CallPush{FunctionName: "f"},
		VarWrites: map[string]vmstate.Value{"x": vmstate.Number(2)},
	}
	Apply(s, update)
	assert.Equal(t, vmstate.Number(2), s.Top().Locals["x"])
	assert.NotContains(t, s.Stack[0].Locals, "x")
}

func TestApplyCallPopPopsTopFrame(t *testing.T) {
	s := vmstate.New()
	Apply(s, StateUpdate{CallPush: &CallPush{FunctionName: "f"}})
	require.Len(t, s.Stack, 2)
	Apply(s, StateUpdate{CallPop: true})
	assert.Len(t, s.Stack, 1)
}

func TestApplyCallPopOnLastFrameEmptiesStack(t *testing.T) {
	s := vmstate.New()
	Apply(s, StateUpdate{CallPop: true})
	assert.Len(t, s.Stack, 0)
}

func TestStepConstSimpleLiteral(t *testing.T) {
	s := vmstate.New()
	update, err := Step(s, registry.New(), builtins.New(), ir.Instruction{Opcode: ir.OpConst, ResultReg: "%0", Operands: []string{"42"}})
	require.NoError(t, err)
	assert.Equal(t, vmstate.Number(42), update.RegisterWrites["%0"])
}

func TestStepConstPromotesClosureInNonMainFrame(t *testing.T) {
	s := vmstate.New()
	Apply(s, StateUpdate{CallPush: &CallPush{FunctionName: "outer"}})
	s.Top().Locals["x"] = vmstate.Number(9)

	instr := ir.Instruction{Opcode: ir.OpConst, ResultReg: "%0", Operands: []string{ir.FunctionRef("inner", "func_inner_0", 0, false)}}
	update, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	require.True(t, update.HasSetClosureEnv)
	require.Len(t, update.NewClosureEnvs, 1)

	resolved, ok := update.RegisterWrites["%0"].(string)
	require.True(t, ok)
	parts, ok := ir.ParseFunctionRef(resolved)
	require.True(t, ok)
	assert.True(t, parts.HasClosure)

	foundX := false
	for _, ew := range update.EnvWrites {
		if ew.Key == "x" {
			foundX = true
			assert.Equal(t, vmstate.Number(9), ew.Value)
		}
	}
	assert.True(t, foundX, "closure env should be seeded from the frame's locals")
}

func TestStepConstReusesExistingClosureEnv(t *testing.T) {
	s := vmstate.New()
	Apply(s, StateUpdate{CallPush: &CallPush{FunctionName: "outer"}})
	s.Top().ClosureEnvID = "env_5"

	instr := ir.Instruction{Opcode: ir.OpConst, ResultReg: "%0", Operands: []string{ir.FunctionRef("inner", "func_inner_0", 0, false)}}
	update, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	assert.False(t, update.HasSetClosureEnv)
	assert.Empty(t, update.NewClosureEnvs)

	resolved := update.RegisterWrites["%0"].(string)
	parts, _ := ir.ParseFunctionRef(resolved)
	assert.Equal(t, 5, parts.ClosureID)
}

func TestStepLoadFieldCachesSymbolicAcrossCalls(t *testing.T) {
	s := vmstate.New()
	addr := s.FreshObjectAddr()
	Apply(s, StateUpdate{NewObjects: []NewObject{{Addr: addr, TypeHint: "Point"}}})
	s.Top().Registers["%0"] = addr

	instr := ir.Instruction{Opcode: ir.OpLoadField, ResultReg: "%1", Operands: []string{"%0", "x"}}
	update1, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	Apply(s, update1)

	update2, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	assert.Equal(t, update1.RegisterWrites["%1"], update2.RegisterWrites["%1"])
}

func TestStepBinopConcreteArithmetic(t *testing.T) {
	s := vmstate.New()
	s.Top().Registers["%0"] = vmstate.Number(2)
	s.Top().Registers["%1"] = vmstate.Number(3)
	instr := ir.Instruction{Opcode: ir.OpBinop, ResultReg: "%2", Operands: []string{"+", "%0", "%1"}}
	update, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	assert.Equal(t, vmstate.Number(5), update.RegisterWrites["%2"])
}

func TestStepBinopDivisionByZeroPromotesSymbolic(t *testing.T) {
	s := vmstate.New()
	s.Top().Registers["%0"] = vmstate.Number(1)
	s.Top().Registers["%1"] = vmstate.Number(0)
	instr := ir.Instruction{Opcode: ir.OpBinop, ResultReg: "%2", Operands: []string{"/", "%0", "%1"}}
	update, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	sym, ok := update.RegisterWrites["%2"].(*vmstate.Symbolic)
	require.True(t, ok)
	assert.Equal(t, []string{"1 / 0"}, sym.Constraints)
}

func TestStepBinopSymbolicOperandPropagates(t *testing.T) {
	s := vmstate.New()
	s.Top().Registers["%0"] = s.FreshSymbolic("x")
	s.Top().Registers["%1"] = vmstate.Number(0)
	instr := ir.Instruction{Opcode: ir.OpBinop, ResultReg: "%2", Operands: []string{">", "%0", "%1"}}
	update, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	sym, ok := update.RegisterWrites["%2"].(*vmstate.Symbolic)
	require.True(t, ok)
	assert.Equal(t, []string{"sym_0 > 0"}, sym.Constraints)
}

func TestStepBranchIfSymbolicTakesTrueAndRecordsPathCondition(t *testing.T) {
	s := vmstate.New()
	cond := (&vmstate.Symbolic{Name: "sym_1"}).WithConstraint("sym_0 > 0")
	s.Top().Registers["%0"] = cond
	instr := ir.Instruction{Opcode: ir.OpBranchIf, Operands: []string{"%0"}, Label: "true_b,false_b"}
	update, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	assert.Equal(t, "true_b", update.NextLabel)
	assert.Equal(t, "assuming (sym_0 > 0) is True", update.PathCondition)
}

func TestStepBranchIfConcreteFalsy(t *testing.T) {
	s := vmstate.New()
	s.Top().Registers["%0"] = vmstate.Number(0)
	instr := ir.Instruction{Opcode: ir.OpBranchIf, Operands: []string{"%0"}, Label: "true_b,false_b"}
	update, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	assert.Equal(t, "false_b", update.NextLabel)
	assert.False(t, update.HasPathCondition)
}

func TestStepReturnSetsCallPopAndDefaultsNone(t *testing.T) {
	s := vmstate.New()
	update, err := Step(s, registry.New(), builtins.New(), ir.Instruction{Opcode: ir.OpReturn})
	require.NoError(t, err)
	assert.True(t, update.CallPop)
	assert.Equal(t, vmstate.None, update.ReturnValue)
}

func TestStepThrowRecordsPathConditionAndPops(t *testing.T) {
	s := vmstate.New()
	s.Top().Registers["%0"] = vmstate.Number(7)
	update, err := Step(s, registry.New(), builtins.New(), ir.Instruction{Opcode: ir.OpThrow, Operands: []string{"%0"}})
	require.NoError(t, err)
	assert.True(t, update.CallPop)
	assert.Equal(t, "raised 7", update.PathCondition)
}

func TestStepSymbolicParamPrebound(t *testing.T) {
	s := vmstate.New()
	s.Top().Locals["n"] = vmstate.Number(5)
	update, err := Step(s, registry.New(), builtins.New(), ir.Instruction{Opcode: ir.OpSymbolic, ResultReg: "%0", Operands: []string{"param:n"}})
	require.NoError(t, err)
	assert.Equal(t, vmstate.Number(5), update.RegisterWrites["%0"])
}

func TestStepSymbolicParamUnboundMints(t *testing.T) {
	s := vmstate.New()
	update, err := Step(s, registry.New(), builtins.New(), ir.Instruction{Opcode: ir.OpSymbolic, ResultReg: "%0", Operands: []string{"param:n"}})
	require.NoError(t, err)
	_, ok := update.RegisterWrites["%0"].(*vmstate.Symbolic)
	assert.True(t, ok)
}

func TestCallFunctionBuiltin(t *testing.T) {
	s := vmstate.New()
	s.Top().Registers["%0"] = "hello"
	instr := ir.Instruction{Opcode: ir.OpCallFunction, ResultReg: "%1", Operands: []string{"len", "%0"}}
	update, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	assert.Equal(t, vmstate.Number(5), update.RegisterWrites["%1"])
}

func TestCallFunctionUnknownNameYieldsSymbolicWithConstraint(t *testing.T) {
	s := vmstate.New()
	instr := ir.Instruction{Opcode: ir.OpCallFunction, ResultReg: "%0", Operands: []string{"process"}}
	update, err := Step(s, registry.New(), builtins.New(), instr)
	require.NoError(t, err)
	sym, ok := update.RegisterWrites["%0"].(*vmstate.Symbolic)
	require.True(t, ok)
	assert.Equal(t, []string{"process()"}, sym.Constraints)
}

func TestDispatchUserFunctionBindsParamsAndPushes(t *testing.T) {
	s := vmstate.New()
	r := registry.New()
	r.Params["func_add_0"] = []string{"a", "b"}
	s.Top().Registers["%0"] = vmstate.Number(1)
	s.Top().Registers["%1"] = vmstate.Number(2)

	fref := ir.FunctionRef("add", "func_add_0", 0, false)
	instr := ir.Instruction{Opcode: ir.OpCallFunction, ResultReg: "%2", Operands: []string{"add", "%0", "%1"}}
	s.Top().Locals["add"] = fref

	update, err := Step(s, r, builtins.New(), instr)
	require.NoError(t, err)
	require.NotNil(t, update.CallPush)
	assert.Equal(t, "func_add_0", update.NextLabel)
	assert.Equal(t, vmstate.Number(1), update.VarWrites["a"])
	assert.Equal(t, vmstate.Number(2), update.VarWrites["b"])
}

func TestDispatchConstructorWithInitSuppressesResult(t *testing.T) {
	s := vmstate.New()
	r := registry.New()
	r.Classes["Point"] = &registry.Class{Label: "class_Point_0", Methods: map[string]string{"__init__": "func_Point___init___1"}}
	r.Params["func_Point___init___1"] = []string{"self", "x", "y"}

	s.Top().Locals["Point"] = ir.ClassRef("Point", "class_Point_0")
	s.Top().Registers["%0"] = vmstate.Number(3)
	s.Top().Registers["%1"] = vmstate.Number(4)

	instr := ir.Instruction{Opcode: ir.OpCallFunction, ResultReg: "%2", Operands: []string{"Point", "%0", "%1"}}
	update, err := Step(s, r, builtins.New(), instr)
	require.NoError(t, err)

	require.NotNil(t, update.CallPush)
	assert.True(t, update.CallPush.SuppressResult)
	addr, ok := update.RegisterWrites["%2"].(vmstate.Address)
	require.True(t, ok)
	assert.Equal(t, vmstate.Number(3), update.VarWrites["x"])
	assert.Equal(t, addr, update.VarWrites["self"])
}

func TestDispatchConstructorWithoutInitDeliversAddress(t *testing.T) {
	s := vmstate.New()
	r := registry.New()
	r.Classes["Empty"] = &registry.Class{Label: "class_Empty_0", Methods: map[string]string{}}
	s.Top().Locals["Empty"] = ir.ClassRef("Empty", "class_Empty_0")

	instr := ir.Instruction{Opcode: ir.OpCallFunction, ResultReg: "%0", Operands: []string{"Empty"}}
	update, err := Step(s, r, builtins.New(), instr)
	require.NoError(t, err)
	assert.Nil(t, update.CallPush)
	_, ok := update.RegisterWrites["%0"].(vmstate.Address)
	assert.True(t, ok)
}

func TestCallMethodDispatchesRegisteredMethod(t *testing.T) {
	s := vmstate.New()
	r := registry.New()
	r.Classes["Point"] = &registry.Class{Label: "class_Point_0", Methods: map[string]string{"distance_to": "func_Point_distance_to_2"}}
	r.Params["func_Point_distance_to_2"] = []string{"self", "other"}

	addr := s.FreshObjectAddr()
	Apply(s, StateUpdate{NewObjects: []NewObject{{Addr: addr, TypeHint: "Point"}}})
	s.Top().Registers["%0"] = addr
	s.Top().Registers["%1"] = vmstate.Address("obj_99")

	instr := ir.Instruction{Opcode: ir.OpCallMethod, ResultReg: "%2", Operands: []string{"%0", "distance_to", "%1"}}
	update, err := Step(s, r, builtins.New(), instr)
	require.NoError(t, err)
	require.NotNil(t, update.CallPush)
	assert.Equal(t, "func_Point_distance_to_2", update.NextLabel)
	assert.Equal(t, addr, update.VarWrites["self"])
	assert.Equal(t, vmstate.Address("obj_99"), update.VarWrites["other"])
}

func TestCallMethodUnknownMethodYieldsSymbolic(t *testing.T) {
	s := vmstate.New()
	r := registry.New()
	addr := s.FreshObjectAddr()
	Apply(s, StateUpdate{NewObjects: []NewObject{{Addr: addr, TypeHint: "Point"}}})
	s.Top().Registers["%0"] = addr

	instr := ir.Instruction{Opcode: ir.OpCallMethod, ResultReg: "%1", Operands: []string{"%0", "nope"}}
	update, err := Step(s, r, builtins.New(), instr)
	require.NoError(t, err)
	_, ok := update.RegisterWrites["%1"].(*vmstate.Symbolic)
	assert.True(t, ok)
}
