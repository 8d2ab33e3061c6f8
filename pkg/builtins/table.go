// Package builtins is the name-indexed table of primitive functions the
// call dispatcher (pkg/exec) tries before falling back to scope lookup
// (spec.md §4.3 step 1, §4.6).
package builtins

import "github.com/vexec/vexec/pkg/vmstate"

// Result is what a built-in hands back to the caller. Most built-ins set
// only Value. print sets Output instead (its side effect, spec.md §4.6);
// range sets WantsArray and ArrayElems, since materializing a fresh heap
// array requires minting an address, and built-ins only get read-only
// heap access (spec.md §4.6 "read-only access to the VM") — the caller
// (pkg/exec) does the minting and emits the NewObjects/HeapWrites.
type Result struct {
	Value      vmstate.Value
	Output     []string
	WantsArray bool
	ArrayElems []vmstate.Value
}

func value(v vmstate.Value) Result { return Result{Value: v} }

var uncomputable = Result{Value: vmstate.Uncomputable}

// Func is one built-in's implementation: given resolved args and
// read-only heap access (needed by len on heap objects/arrays), produce
// a Result.
type Func func(args []vmstate.Value, heap map[string]*vmstate.HeapObject) Result

// Table is the built-in name -> implementation map.
type Table struct {
	funcs map[string]Func
}

// New returns the standard built-in table (spec.md §4.6): len, range,
// print, int, float, bool, str, abs, max, min, plus sqrt. sqrt is not in
// spec.md's enumerated list, but scenario 5 (§8) requires a concrete
// Euclidean distance — `Point(3,4).distance_to(Point(0,0)) == 5.0` — and
// none of the listed built-ins can produce a square root, so the
// distance formula would otherwise never reduce to a concrete number.
func New() *Table {
	return &Table{funcs: map[string]Func{
		"len":   builtinLen,
		"range": builtinRange,
		"print": builtinPrint,
		"int":   builtinInt,
		"float": builtinFloat,
		"bool":  builtinBool,
		"str":   builtinStr,
		"abs":   builtinAbs,
		"max":   builtinMax,
		"min":   builtinMin,
		"sqrt":  builtinSqrt,
	}}
}

// Lookup returns name's implementation, if any.
func (t *Table) Lookup(name string) (Func, bool) {
	fn, ok := t.funcs[name]
	return fn, ok
}
