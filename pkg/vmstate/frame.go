package vmstate

// StackFrame is one call frame: its function name, its register and
// local-variable maps, the caller's resume point (block label,
// instruction index, destination register), and — if this frame is a
// closure invocation — the shared closure-environment id and the frozen
// set of captured variable names (spec.md §3).
type StackFrame struct {
	FunctionName string
	Registers    map[string]Value
	Locals       map[string]Value

	ReturnLabel string
	ReturnIP    int
	ResultReg   string

	ClosureEnvID  string
	CapturedNames map[string]bool
}

// NewStackFrame returns an empty frame for the given function name.
func NewStackFrame(functionName string) *StackFrame {
	return &StackFrame{
		FunctionName: functionName,
		Registers:    make(map[string]Value),
		Locals:       make(map[string]Value),
	}
}

// IsCaptured reports whether name is in this frame's frozen captured-name
// set.
func (f *StackFrame) IsCaptured(name string) bool {
	return f.ClosureEnvID != "" && f.CapturedNames[name]
}

// MainFunctionName is the function name of the bottom-most stack frame
// (spec.md §3 invariant 1).
const MainFunctionName = "<main>"
