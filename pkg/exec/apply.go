package exec

import "github.com/vexec/vexec/pkg/vmstate"

// Apply is the sole mutator of VM state (spec.md §4.4): every other
// routine in this package only produces a StateUpdate describing an
// effect, never touches state directly. The apply order below is
// strict; changing it changes parameter-passing semantics (register
// writes land in the caller before call_push runs, var writes land in
// the callee after it does — that ordering is how arguments cross from
// caller to callee, per spec.md §4.4).
//
// If update.CallPush is set, Apply returns the newly pushed frame so the
// pipeline driver can fill in its ReturnLabel/ReturnIP/ResultReg — that
// part of frame construction is the driver's job, not the applier's,
// because it needs the caller's pre-call (block, ip), which only the
// driver's step loop has in hand.
func Apply(state *vmstate.State, update StateUpdate) *vmstate.StackFrame {
	// 1. Create new heap objects.
	for _, no := range update.NewObjects {
		state.Heap[string(no.Addr)] = vmstate.NewHeapObject(no.TypeHint)
	}
	for _, envID := range update.NewClosureEnvs {
		state.ClosureEnv(envID) // creates it if absent
	}
	if update.HasSetClosureEnv {
		state.Top().ClosureEnvID = update.SetClosureEnv
	}

	// 2. Apply register writes to the caller's frame — the current top,
	// before any call_push below.
	if len(update.RegisterWrites) > 0 {
		top := state.Top()
		for reg, v := range update.RegisterWrites {
			top.Registers[reg] = v
		}
	}

	// 3. Apply heap writes (and the closure-environment analogue: spec.md
	// §3 calls a closure environment "an explicit, heap-like object").
	for _, hw := range update.HeapWrites {
		obj := state.MaterializeHeapObject(hw.Addr, "")
		obj.Fields[hw.Key] = hw.Value
	}
	for _, ew := range update.EnvWrites {
		state.ClosureEnv(ew.EnvID)[ew.Key] = ew.Value
	}

	// 4. Append the path condition, and any print output alongside it —
	// neither interacts with the register/frame ordering below, so both
	// can land here.
	if update.HasPathCondition {
		state.PathConditions = append(state.PathConditions, update.PathCondition)
	}
	state.Output = append(state.Output, update.Output...)

	// 5. Apply call_push: push the new frame. Its return info is filled
	// in by the driver after this call returns.
	var pushed *vmstate.StackFrame
	if update.CallPush != nil {
		pushed = vmstate.NewStackFrame(update.CallPush.FunctionName)
		pushed.ClosureEnvID = update.CallPush.ClosureEnvID
		pushed.CapturedNames = update.CallPush.CapturedNames
		state.Stack = append(state.Stack, pushed)
	}

	// 6. Apply var_writes to the frame that is now on top — the callee if
	// step 5 ran. A write to a captured name mirrors into the frame's
	// closure environment.
	if len(update.VarWrites) > 0 {
		top := state.Top()
		for name, v := range update.VarWrites {
			top.Locals[name] = v
			if top.IsCaptured(name) {
				state.ClosureEnv(top.ClosureEnvID)[name] = v
			}
		}
	}

	// 7. Apply call_pop if requested. Popping the very last frame is what
	// drives the pipeline driver's own termination check (spec.md §4.5
	// step 6): Apply always performs the pop the instruction asked for;
	// whether that empties the stack is the driver's question to answer,
	// not this routine's to prevent.
	if update.CallPop && len(state.Stack) > 0 {
		state.Stack = state.Stack[:len(state.Stack)-1]
	}

	return pushed
}
