package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vexec/vexec/pkg/vmstate"
)

func TestLenString(t *testing.T) {
	tbl := New()
	fn, ok := tbl.Lookup("len")
	assert.True(t, ok)
	res := fn([]vmstate.Value{"hello"}, nil)
	assert.Equal(t, vmstate.Number(5), res.Value)
}

func TestLenHeapObject(t *testing.T) {
	heap := map[string]*vmstate.HeapObject{
		"obj_0": {TypeHint: "Point", Fields: map[string]vmstate.Value{"x": vmstate.Number(1), "y": vmstate.Number(2)}},
	}
	fn, _ := New().Lookup("len")
	res := fn([]vmstate.Value{vmstate.Address("obj_0")}, heap)
	assert.Equal(t, vmstate.Number(2), res.Value)
}

func TestLenSymbolicIsUncomputable(t *testing.T) {
	fn, _ := New().Lookup("len")
	res := fn([]vmstate.Value{&vmstate.Symbolic{Name: "sym_0"}}, nil)
	assert.True(t, vmstate.IsUncomputable(res.Value))
}

func TestRangeSingleArg(t *testing.T) {
	fn, _ := New().Lookup("range")
	res := fn([]vmstate.Value{vmstate.Number(3)}, nil)
	assert.True(t, res.WantsArray)
	assert.Equal(t, []vmstate.Value{vmstate.Number(0), vmstate.Number(1), vmstate.Number(2)}, res.ArrayElems)
}

func TestRangeStartStopStep(t *testing.T) {
	fn, _ := New().Lookup("range")
	res := fn([]vmstate.Value{vmstate.Number(10), vmstate.Number(0), vmstate.Number(-3)}, nil)
	assert.Equal(t, []vmstate.Value{vmstate.Number(10), vmstate.Number(7), vmstate.Number(4), vmstate.Number(1)}, res.ArrayElems)
}

func TestRangeZeroStepIsUncomputable(t *testing.T) {
	fn, _ := New().Lookup("range")
	res := fn([]vmstate.Value{vmstate.Number(0), vmstate.Number(10), vmstate.Number(0)}, nil)
	assert.True(t, vmstate.IsUncomputable(res.Value))
}

func TestPrintProducesOutputAndNone(t *testing.T) {
	fn, _ := New().Lookup("print")
	res := fn([]vmstate.Value{"hi", vmstate.Number(1)}, nil)
	assert.Equal(t, vmstate.None, res.Value)
	assert.Equal(t, []string{"hi 1"}, res.Output)
}

func TestAbsMaxMin(t *testing.T) {
	abs, _ := New().Lookup("abs")
	assert.Equal(t, vmstate.Number(5), abs([]vmstate.Value{vmstate.Number(-5)}, nil).Value)

	max, _ := New().Lookup("max")
	assert.Equal(t, vmstate.Number(7), max([]vmstate.Value{vmstate.Number(3), vmstate.Number(7), vmstate.Number(1)}, nil).Value)

	min, _ := New().Lookup("min")
	assert.Equal(t, vmstate.Number(1), min([]vmstate.Value{vmstate.Number(3), vmstate.Number(7), vmstate.Number(1)}, nil).Value)
}

func TestSqrt(t *testing.T) {
	fn, ok := New().Lookup("sqrt")
	assert.True(t, ok)
	assert.Equal(t, vmstate.Number(5), fn([]vmstate.Value{vmstate.Number(25)}, nil).Value)
	assert.True(t, vmstate.IsUncomputable(fn([]vmstate.Value{vmstate.Number(-1)}, nil).Value))
}

func TestCoercions(t *testing.T) {
	intFn, _ := New().Lookup("int")
	assert.Equal(t, vmstate.Number(3), intFn([]vmstate.Value{"3.9"}, nil).Value)

	boolFn, _ := New().Lookup("bool")
	assert.Equal(t, vmstate.Bool(false), boolFn([]vmstate.Value{vmstate.Number(0)}, nil).Value)

	strFn, _ := New().Lookup("str")
	assert.Equal(t, "42", strFn([]vmstate.Value{vmstate.Number(42)}, nil).Value)
}

func TestUnknownNameNotFound(t *testing.T) {
	_, ok := New().Lookup("nonexistent")
	assert.False(t, ok)
}
