package vmstate

import "strconv"

// State is the full VM state: heap, call stack (innermost frame last),
// closure-environment table, accumulated path conditions, the print
// output buffer, and the single monotonically increasing counter used
// to mint every fresh name in a run (spec.md §3 invariant 4). Only the
// state-update applier (pkg/exec) is meant to mutate a State once the
// pipeline driver has started stepping; every method here is a building
// block the applier composes, not a substitute for the applier itself
// (spec.md §4.4: "Only this routine mutates VM state").
type State struct {
	Heap        map[string]*HeapObject
	Stack       []*StackFrame
	ClosureEnvs map[string]map[string]Value

	PathConditions []string
	Output         []string

	counter int
}

// New returns a fresh State with a single bottom frame named <main>,
// per spec.md §3 invariant 1.
func New() *State {
	s := &State{
		Heap:        make(map[string]*HeapObject),
		ClosureEnvs: make(map[string]map[string]Value),
	}
	s.Stack = []*StackFrame{NewStackFrame(MainFunctionName)}
	return s
}

// Top returns the innermost (currently executing) stack frame. It panics
// if the stack is empty, which spec.md §3 invariant 1 says never happens
// during execution.
func (s *State) Top() *StackFrame {
	return s.Stack[len(s.Stack)-1]
}

// next consumes the next integer from the shared counter. Every fresh
// name minted anywhere in the VM — symbolic values, object/array
// addresses, closure-environment ids — goes through this one method, so
// uniqueness is global across all four namespaces (spec.md §3 invariant
// 4), not just within one.
func (s *State) next() int {
	n := s.counter
	s.counter++
	return n
}

// FreshSymbolicName mints a new "sym_N" name.
func (s *State) FreshSymbolicName() string { return namedCounter("sym", s.next()) }

// FreshObjectAddr mints a new "obj_N" heap address.
func (s *State) FreshObjectAddr() Address { return Address(namedCounter("obj", s.next())) }

// FreshArrayAddr mints a new "arr_N" heap address.
func (s *State) FreshArrayAddr() Address { return Address(namedCounter("arr", s.next())) }

// FreshEnvID mints a new "env_N" closure-environment id.
func (s *State) FreshEnvID() string { return namedCounter("env", s.next()) }

// FreshSymbolic mints a brand-new symbolic value with the given type
// hint (may be empty) and no constraints yet.
func (s *State) FreshSymbolic(typeHint string) *Symbolic {
	return &Symbolic{Name: s.FreshSymbolicName(), TypeHint: typeHint}
}


func namedCounter(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n)
}

// MaterializeHeapObject ensures addr exists in the heap, creating an
// empty object with typeHint if it is absent, and returns it. This is
// the lazy-materialization step required by spec.md §3 invariant 5 and
// used by LOAD_FIELD/STORE_FIELD/LOAD_INDEX/STORE_INDEX.
func (s *State) MaterializeHeapObject(addr Address, typeHint string) *HeapObject {
	obj, ok := s.Heap[string(addr)]
	if !ok {
		obj = NewHeapObject(typeHint)
		s.Heap[string(addr)] = obj
	}
	return obj
}

// ClosureEnv returns the bindings map for envID, creating an empty one
// if it does not yet exist.
func (s *State) ClosureEnv(envID string) map[string]Value {
	env, ok := s.ClosureEnvs[envID]
	if !ok {
		env = make(map[string]Value)
		s.ClosureEnvs[envID] = env
	}
	return env
}

// LookupVar walks the call stack from innermost to outermost looking for
// name in each frame's Locals, per spec.md §4.3 LOAD_VAR. It does not
// consult closure environments; that fallback is exec's responsibility
// since it additionally depends on the *current* frame's closure-env id,
// not every frame's.
func (s *State) LookupVar(name string) (Value, bool) {
	for i := len(s.Stack) - 1; i >= 0; i-- {
		if v, ok := s.Stack[i].Locals[name]; ok {
			return v, true
		}
	}
	return nil, false
}
