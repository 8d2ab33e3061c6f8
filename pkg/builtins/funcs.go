package builtins

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vexec/vexec/pkg/vmstate"
)

func isSymbolic(v vmstate.Value) bool {
	_, ok := v.(*vmstate.Symbolic)
	return ok
}

func builtinLen(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	if len(args) != 1 {
		return uncomputable
	}
	switch x := args[0].(type) {
	case string:
		return value(vmstate.Number(utf8.RuneCountInString(x)))
	case vmstate.Address:
		obj, ok := heap[string(x)]
		if !ok {
			return uncomputable
		}
		return value(vmstate.Number(len(obj.Fields)))
	default:
		return uncomputable
	}
}

// builtinRange implements Python-style range(stop), range(start, stop),
// and range(start, stop, step); see the Result doc comment for why it
// reports WantsArray rather than a concrete Address.
func builtinRange(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	var start, stop, step float64 = 0, 0, 1
	nums := make([]float64, 0, len(args))
	for _, a := range args {
		n, ok := a.(vmstate.Number)
		if !ok {
			return uncomputable
		}
		nums = append(nums, float64(n))
	}
	switch len(nums) {
	case 1:
		stop = nums[0]
	case 2:
		start, stop = nums[0], nums[1]
	case 3:
		start, stop, step = nums[0], nums[1], nums[2]
	default:
		return uncomputable
	}
	if step == 0 {
		return uncomputable
	}
	var elems []vmstate.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			elems = append(elems, vmstate.Number(i))
		}
	} else {
		for i := start; i > stop; i += step {
			elems = append(elems, vmstate.Number(i))
		}
	}
	return Result{WantsArray: true, ArrayElems: elems}
}

func builtinPrint(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			parts[i] = s
			continue
		}
		parts[i] = vmstate.FormatValue(a)
	}
	return Result{Value: vmstate.None, Output: []string{strings.Join(parts, " ")}}
}

func builtinInt(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	if len(args) != 1 || isSymbolic(args[0]) {
		return uncomputable
	}
	switch x := args[0].(type) {
	case vmstate.Number:
		return value(vmstate.Number(math.Trunc(float64(x))))
	case vmstate.Bool:
		if x {
			return value(vmstate.Number(1))
		}
		return value(vmstate.Number(0))
	case string:
		n, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return uncomputable
		}
		return value(vmstate.Number(math.Trunc(n)))
	default:
		return uncomputable
	}
}

func builtinFloat(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	if len(args) != 1 || isSymbolic(args[0]) {
		return uncomputable
	}
	switch x := args[0].(type) {
	case vmstate.Number:
		return value(x)
	case vmstate.Bool:
		if x {
			return value(vmstate.Number(1))
		}
		return value(vmstate.Number(0))
	case string:
		n, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return uncomputable
		}
		return value(vmstate.Number(n))
	default:
		return uncomputable
	}
}

func builtinBool(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	if len(args) != 1 || isSymbolic(args[0]) {
		return uncomputable
	}
	return value(vmstate.Bool(vmstate.Truthy(args[0], heap)))
}

func builtinStr(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	if len(args) != 1 || isSymbolic(args[0]) {
		return uncomputable
	}
	if s, ok := args[0].(string); ok {
		return value(s)
	}
	return value(vmstate.FormatValue(args[0]))
}

func builtinAbs(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	if len(args) != 1 {
		return uncomputable
	}
	n, ok := args[0].(vmstate.Number)
	if !ok {
		return uncomputable
	}
	return value(vmstate.Number(math.Abs(float64(n))))
}

func builtinSqrt(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	if len(args) != 1 {
		return uncomputable
	}
	n, ok := args[0].(vmstate.Number)
	if !ok || n < 0 {
		return uncomputable
	}
	return value(vmstate.Number(math.Sqrt(float64(n))))
}

func builtinMax(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	return numericFold(args, func(a, b float64) bool { return a > b })
}

func builtinMin(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result {
	return numericFold(args, func(a, b float64) bool { return a < b })
}

// numericFold reduces args to the one preferred by better(candidate,
// current); better(a, b) reports whether a should replace b.
func numericFold(args []vmstate.Value, better func(a, b float64) bool) Result {
	if len(args) == 0 {
		return uncomputable
	}
	best, ok := args[0].(vmstate.Number)
	if !ok {
		return uncomputable
	}
	for _, a := range args[1:] {
		n, ok := a.(vmstate.Number)
		if !ok {
			return uncomputable
		}
		if better(float64(n), float64(best)) {
			best = n
		}
	}
	return value(best)
}
