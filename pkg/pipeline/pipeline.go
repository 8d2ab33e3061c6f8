// Package pipeline is the step loop that drives the local executor and
// applier to completion, per spec.md §4.5: read the current instruction,
// ask the executor (falling back to an oracle), apply the resulting
// StateUpdate, then interpret its control-flow fields to pick the next
// instruction.
package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/vexec/vexec/pkg/builtins"
	"github.com/vexec/vexec/pkg/cfg"
	"github.com/vexec/vexec/pkg/exec"
	"github.com/vexec/vexec/pkg/ir"
	"github.com/vexec/vexec/pkg/oracle"
	"github.com/vexec/vexec/pkg/registry"
	"github.com/vexec/vexec/pkg/vmstate"
)

// ErrStepBudgetExhausted names the condition of a run that hit MaxSteps
// before terminating naturally. spec.md §4.5/§7 calls this "incomplete",
// not an error in the ExecError sense, and Run does not return it: a run
// that exhausts its budget returns a nil error and a Result whose
// Complete is false.
var ErrStepBudgetExhausted = errors.New("pipeline: step budget exhausted")

// ExecError is the single fatal error type the driver surfaces: the step
// loop can no longer make progress because the instruction stream itself
// is malformed (spec.md §7 Taxonomy, "Malformed input"). It names enough
// to locate the failure in a trace: step index, current block, and
// instruction index within that block.
type ExecError struct {
	Step  int
	Block string
	IP    int
	Instr ir.Instruction
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("pipeline: fatal at step %d (%s:%d) %s: %v", e.Step, e.Block, e.IP, e.Instr, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// StepTrace is one per-step execution record (spec.md §6 "Execution
// trace interface"): step index, the instruction executed, and the
// StateUpdate it produced. Consumers (cmd/vexec --trace) use these for
// replay UIs; the driver itself never interprets them.
type StepTrace struct {
	Step        int
	Block       string
	IP          int
	Instruction ir.Instruction
	Update      exec.StateUpdate
}

// Result is the outcome of a Driver.Run call. FinalFrame is the <main>
// frame as it stood the instant its own RETURN/THROW popped it off an
// otherwise-empty stack: Apply's call_pop (spec.md §4.4 step 7) always
// performs the pop it's asked for, including that last one, so State's
// Stack is genuinely empty afterward (spec.md §8 scenario 2, "stack
// empty at end") — but the StackFrame value itself is not discarded,
// just unlinked from Stack, so its Locals/Registers remain readable here
// for exactly the inspection scenario 1's "locals[x] = 5" requires.
type Result struct {
	State      *vmstate.State
	FinalFrame *vmstate.StackFrame
	Steps      int
	Complete   bool
	Traces     []StepTrace
}

// Driver owns the immutable CFG/registry/built-ins for one program and
// drives a VM state through it. Log is where "vexec: " progress lines
// go, mirroring the teacher's io.Writer-based diagnostics in
// cmd/ralph-cc/main.go; it may be io.Discard.
type Driver struct {
	CFG       *cfg.CFG
	Registry  *registry.Registry
	Builtins  *builtins.Table
	Oracle    oracle.Oracle
	Log       io.Writer
	MaxSteps  int
	WithTrace bool

	state      *vmstate.State
	label      string
	ip         int
	steps      int
	finalFrame *vmstate.StackFrame
}

// New returns a Driver positioned at (g.Entry, 0) with a fresh
// initial state (spec.md §4.5: "State: (current_label, ip) initialized
// to (entry, 0)").
func New(g *cfg.CFG, reg *registry.Registry, blt *builtins.Table, maxSteps int) *Driver {
	return &Driver{
		CFG:      g,
		Registry: reg,
		Builtins: blt,
		Log:      io.Discard,
		MaxSteps: maxSteps,
		state:    vmstate.New(),
		label:    g.Entry,
		ip:       0,
	}
}

// State returns the driver's current VM state.
func (d *Driver) State() *vmstate.State { return d.state }

// Run steps the driver until the program terminates, the step budget is
// exhausted, or a fatal error occurs.
func (d *Driver) Run() (*Result, error) {
	var traces []StepTrace
	for {
		if d.steps >= d.MaxSteps {
			fmt.Fprintf(d.Log, "vexec: step budget of %d exhausted at %s:%d\n", d.MaxSteps, d.label, d.ip)
			return &Result{State: d.state, FinalFrame: d.finalFrame, Steps: d.steps, Complete: false, Traces: traces}, nil
		}

		done, trace, err := d.Step()
		if err != nil {
			return &Result{State: d.state, FinalFrame: d.finalFrame, Steps: d.steps, Traces: traces}, err
		}
		if trace != nil {
			traces = append(traces, *trace)
		}
		if done {
			fmt.Fprintf(d.Log, "vexec: run complete after %d steps\n", d.steps)
			return &Result{State: d.state, FinalFrame: d.finalFrame, Steps: d.steps, Complete: true, Traces: traces}, nil
		}
	}
}

// Step executes exactly one step of the loop described in spec.md §4.5.
// done is true once the call stack has emptied, or once execution runs
// off the end of a block that has no successors (the program has
// terminated either way). trace is non-nil only when d.WithTrace is set and an
// instruction (not block-advance bookkeeping) actually executed.
func (d *Driver) Step() (done bool, trace *StepTrace, err error) {
	block := d.CFG.Block(d.label)
	if block == nil {
		return false, nil, &ExecError{Step: d.steps, Block: d.label, IP: d.ip, Err: fmt.Errorf("pipeline: unknown block %q", d.label)}
	}

	// 1. Advance past the end of a block to its sole successor, or stop.
	if d.ip >= len(block.Instructions) {
		if len(block.Successors) > 0 {
			d.label = block.Successors[0]
			d.ip = 0
			return false, nil, nil
		}
		return true, nil, nil
	}

	instr := block.Instructions[d.ip]

	// 2. LABEL is a no-op at execution time.
	if instr.Opcode == ir.OpLabel {
		d.ip++
		return false, nil, nil
	}

	d.steps++

	// 3. Ask the local executor, falling back to the oracle.
	update, handled, err := d.resolve(instr)
	if err != nil {
		return false, nil, &ExecError{Step: d.steps, Block: d.label, IP: d.ip, Instr: instr, Err: err}
	}
	if !handled {
		return false, nil, &ExecError{Step: d.steps, Block: d.label, IP: d.ip, Instr: instr, Err: fmt.Errorf("pipeline: opcode %s not handled", instr.Opcode)}
	}

	callerLabel, callerIP := d.label, d.ip

	// call_pop on a single-frame stack is about to empty Stack for good
	// (Apply always performs the pop it's asked for); grab the frame
	// first so its Locals/Registers survive for Result.FinalFrame.
	if update.CallPop && len(d.state.Stack) == 1 {
		d.finalFrame = d.state.Top()
	}

	// 4. Apply the update.
	pushed := exec.Apply(d.state, update)

	// 5. Fill in the newly pushed frame's return info.
	if pushed != nil {
		pushed.ReturnLabel = callerLabel
		pushed.ReturnIP = callerIP + 1
		if update.CallPush == nil || !update.CallPush.SuppressResult {
			pushed.ResultReg = instr.ResultReg
		}
	}

	if d.WithTrace {
		trace = &StepTrace{Step: d.steps, Block: callerLabel, IP: callerIP, Instruction: instr, Update: update}
	}

	// 6. call_pop: deliver return_value to the caller, or stop if the
	// stack is now empty.
	if update.CallPop {
		if len(d.state.Stack) == 0 {
			return true, trace, nil
		}
		frame := d.state.Top()
		if frame.ResultReg != "" {
			val := update.ReturnValue
			if !update.HasReturnValue {
				val = vmstate.None
			}
			frame.Registers[frame.ResultReg] = val
		}
		d.label, d.ip = frame.ReturnLabel, frame.ReturnIP
		return false, trace, nil
	}

	// 7. next_label, if set.
	if update.HasNextLabel {
		d.label, d.ip = update.NextLabel, 0
		return false, trace, nil
	}

	// 8. Otherwise advance.
	d.ip++
	return false, trace, nil
}

// resolve asks the local executor, then the oracle if the executor
// cannot handle the instruction for some reason other than malformed
// input. exec.Step currently handles every opcode in the closed
// 20-variant set unconditionally, so the oracle branch is unreachable
// with this core's executor — it is wired in for the extension seam
// spec.md §6 describes, not because it fires today. A malformed
// instruction (exec.ErrMalformedInstruction) is always fatal per
// spec.md §7's taxonomy, regardless of whether an oracle is configured;
// it is never handed to the oracle, since an oracle that happened to
// claim such an instruction would let execution continue on bad input.
func (d *Driver) resolve(instr ir.Instruction) (exec.StateUpdate, bool, error) {
	update, err := exec.Step(d.state, d.Registry, d.Builtins, instr)
	if err == nil {
		return update, true, nil
	}
	if errors.Is(err, exec.ErrMalformedInstruction) {
		return exec.StateUpdate{}, false, err
	}
	if d.Oracle != nil {
		snap := oracle.NewSnapshot(d.state)
		if u, ok := d.Oracle.Resolve(instr, snap); ok {
			return u, true, nil
		}
	}
	return exec.StateUpdate{}, false, err
}
