// Package registry indexes a flat IR listing: it maps function labels to
// their ordered parameter names, and class names to their class label
// and methods, per spec.md §4.2.
package registry

import (
	"strings"

	"github.com/vexec/vexec/pkg/ir"
)

// Class is a class's label and its method table (method name -> function
// label).
type Class struct {
	Label   string
	Methods map[string]string
}

// Registry is the index built from one IR listing.
type Registry struct {
	// Params maps a function label (e.g. "func_factorial_0") to its
	// ordered parameter names.
	Params map[string][]string
	// Classes maps a class name to its Class record.
	Classes map[string]*Class
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		Params:  make(map[string][]string),
		Classes: make(map[string]*Class),
	}
}

// Build scans instrs twice: once to collect per-function parameter
// lists, once to collect class names and their methods.
func Build(instrs []ir.Instruction) *Registry {
	r := New()
	scanParams(r, instrs)
	scanClasses(r, instrs)
	return r
}

// scanParams walks every block whose label begins with "func_" and
// collects the operands of leading "SYMBOLIC \"param:NAME\"" instructions
// until the first non-SYMBOLIC instruction of that function's body
// (spec.md §4.2 Parameter scan). A flat instruction list has no explicit
// block boundaries at this stage, so "the function body" is taken to run
// from the func_ label to the next LABEL instruction (any label, since
// function bodies are laid out as contiguous block sequences by
// convention — spec.md §6).
func scanParams(r *Registry, instrs []ir.Instruction) {
	i := 0
	for i < len(instrs) {
		instr := instrs[i]
		if instr.Opcode != ir.OpLabel || !strings.HasPrefix(instr.Label, "func_") {
			i++
			continue
		}
		label := instr.Label
		j := i + 1
		var params []string
		for j < len(instrs) {
			next := instrs[j]
			if next.Opcode == ir.OpSymbolic && len(next.Operands) > 0 && strings.HasPrefix(next.Operands[0], "param:") {
				params = append(params, strings.TrimPrefix(next.Operands[0], "param:"))
				j++
				continue
			}
			break
		}
		r.Params[label] = params
		i++
	}
}

// scanClasses performs the two-pass class/method scan described in
// spec.md §4.2: first find every CONST <class:NAME@LABEL>, then walk
// linearly tracking class scope (entered at "class_" labels, left at
// "end_class_" labels) and record every CONST <function:METHOD@LABEL>
// seen while in scope as a method of the enclosing class.
func scanClasses(r *Registry, instrs []ir.Instruction) {
	for _, instr := range instrs {
		if instr.Opcode != ir.OpConst || len(instr.Operands) == 0 {
			continue
		}
		parts, ok := ir.ParseClassRef(instr.Operands[0])
		if !ok {
			continue
		}
		r.Classes[parts.Name] = &Class{Label: parts.Label, Methods: make(map[string]string)}
	}

	labelToClass := make(map[string]string)
	for name, class := range r.Classes {
		labelToClass[class.Label] = name
	}

	var currentClass string
	for _, instr := range instrs {
		switch instr.Opcode {
		case ir.OpLabel:
			if strings.HasPrefix(instr.Label, "class_") {
				if name, ok := labelToClass[instr.Label]; ok {
					currentClass = name
				}
			} else if strings.HasPrefix(instr.Label, "end_class_") {
				currentClass = ""
			}
		case ir.OpConst:
			if currentClass == "" || len(instr.Operands) == 0 {
				continue
			}
			parts, ok := ir.ParseFunctionRef(instr.Operands[0])
			if !ok {
				continue
			}
			r.Classes[currentClass].Methods[parts.Name] = parts.Label
		}
	}
}

// Method looks up the function label for a method on className.
func (r *Registry) Method(className, methodName string) (string, bool) {
	class, ok := r.Classes[className]
	if !ok {
		return "", false
	}
	label, ok := class.Methods[methodName]
	return label, ok
}
