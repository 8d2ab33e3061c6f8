// Package exec is the local executor: one handler per IR opcode,
// producing the declarative StateUpdate records the applier (also in
// this package, see apply.go) is the sole mutator of VM state for
// (spec.md §4.3/§4.4).
package exec

import "github.com/vexec/vexec/pkg/vmstate"

// HeapWrite describes a single heap field/index write.
type HeapWrite struct {
	Addr  vmstate.Address
	Key   string
	Value vmstate.Value
}

// NewObject describes a heap object to allocate.
type NewObject struct {
	Addr     vmstate.Address
	TypeHint string
}

// ClosureEnvWrite describes a single closure-environment binding write.
type ClosureEnvWrite struct {
	EnvID string
	Key   string
	Value vmstate.Value
}

// CallPush describes the new frame to push. ReturnLabel/ReturnIP/
// ResultReg are deliberately absent: spec.md §4.4 assigns filling those
// in to the pipeline driver, after Apply runs, using the caller's
// pre-call block label and instruction index.
type CallPush struct {
	FunctionName  string
	ClosureEnvID  string
	CapturedNames map[string]bool

	// SuppressResult tells the driver to leave the pushed frame's
	// ResultReg empty instead of defaulting it to the triggering
	// instruction's result register, so that frame's eventual RETURN
	// does not overwrite a value already delivered into that register
	// by this same StateUpdate. Class-constructor dispatch is the one
	// producer (spec.md §4.3 call dispatch step 3): the constructed
	// object's address is written to result_reg immediately, and
	// __init__'s own return value (conventionally None) must not
	// clobber it when __init__ later returns.
	SuppressResult bool
}

// StateUpdate is the sole communication type between the executor (or an
// oracle) and the applier: a pure description of one instruction's
// effect (spec.md §4.3 StateUpdate record).
type StateUpdate struct {
	RegisterWrites map[string]vmstate.Value
	VarWrites      map[string]vmstate.Value
	HeapWrites     []HeapWrite
	NewObjects     []NewObject
	NewClosureEnvs []string
	EnvWrites      []ClosureEnvWrite

	// SetClosureEnv, if HasSetClosureEnv, assigns the current (pre-
	// call-push) frame's ClosureEnvID. CONST's closure-promotion path
	// (spec.md §4.3) is the only producer: it's how a frame that mints
	// its first closure remembers the environment id for subsequent
	// CONSTs in the same frame to reuse.
	SetClosureEnv    string
	HasSetClosureEnv bool

	NextLabel    string
	HasNextLabel bool

	CallPush *CallPush
	CallPop  bool

	ReturnValue    vmstate.Value
	HasReturnValue bool

	PathCondition    string
	HasPathCondition bool

	// Output holds lines appended to the VM's print buffer (the one
	// built-in, print, with an observable side effect — spec.md §4.6).
	Output []string

	// Reasoning is a human-readable trace string; diagnostic only, never
	// interpreted by the applier or driver.
	Reasoning string
}
