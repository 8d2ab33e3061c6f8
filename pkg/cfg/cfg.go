// Package cfg partitions a flat instruction stream into basic blocks and
// wires the successor/predecessor edges between them, per spec.md §4.1.
package cfg

import (
	"fmt"
	"sort"

	"github.com/vexec/vexec/pkg/ir"
)

// EntryLabel is the distinguished entry block's label (spec.md §3).
const EntryLabel = "entry"

// BasicBlock is a label, its body instructions (the leading LABEL, if
// any, is stripped), and its wired successor/predecessor labels.
type BasicBlock struct {
	Label        string
	Instructions []ir.Instruction
	Successors   []string
	Predecessors []string
}

// CFG is a mapping from label to basic block plus the entry label.
type CFG struct {
	Entry  string
	Blocks map[string]*BasicBlock
}

// Block returns the block for label, or nil if none exists.
func (g *CFG) Block(label string) *BasicBlock { return g.Blocks[label] }

// addEdge records a dedup'd successor/predecessor edge from `from`
// to `to`.
func (g *CFG) addEdge(from, to string) {
	fb := g.Blocks[from]
	tb := g.Blocks[to]
	if fb == nil || tb == nil {
		return
	}
	if !contains(fb.Successors, to) {
		fb.Successors = append(fb.Successors, to)
	}
	if !contains(tb.Predecessors, from) {
		tb.Predecessors = append(tb.Predecessors, from)
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// isTerminator reports whether op ends a basic block with no
// fall-through (RETURN, THROW) or an explicit one (BRANCH, BRANCH_IF).
func isTerminator(op ir.Opcode) bool {
	switch op {
	case ir.OpBranch, ir.OpBranchIf, ir.OpReturn, ir.OpThrow:
		return true
	default:
		return false
	}
}

// Build partitions instrs into basic blocks and wires their edges. An
// empty instruction list produces a CFG with a single empty entry block.
// A BRANCH/BRANCH_IF to a label that does not exist anywhere in instrs is
// a malformed-input error per spec.md §4.1/§7.
func Build(instrs []ir.Instruction) (*CFG, error) {
	g := &CFG{Blocks: make(map[string]*BasicBlock)}

	if len(instrs) == 0 {
		g.Entry = EntryLabel
		g.Blocks[EntryLabel] = &BasicBlock{Label: EntryLabel}
		return g, nil
	}

	starts := markBlockStarts(instrs)
	order := cutBlocks(g, instrs, starts)
	g.Entry = order[0]

	if err := wireEdges(g, order); err != nil {
		return nil, err
	}
	return g, nil
}

// markBlockStarts returns the sorted set of instruction indices that
// begin a new basic block.
func markBlockStarts(instrs []ir.Instruction) []int {
	isStart := make(map[int]bool)
	isStart[0] = true
	for i, instr := range instrs {
		if instr.Opcode == ir.OpLabel {
			isStart[i] = true
		}
		if isTerminator(instr.Opcode) && i+1 < len(instrs) {
			isStart[i+1] = true
		}
	}
	starts := make([]int, 0, len(isStart))
	for i := range isStart {
		starts = append(starts, i)
	}
	sort.Ints(starts)
	return starts
}

// cutBlocks slices instrs at each start boundary, naming blocks by their
// leading LABEL (stripped from the body) or a synthesized "__block_N"
// name, and returns the blocks' labels in program order.
func cutBlocks(g *CFG, instrs []ir.Instruction, starts []int) []string {
	order := make([]string, 0, len(starts))
	anon := 0
	for i, start := range starts {
		end := len(instrs)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		slice := instrs[start:end]

		var label string
		if len(slice) > 0 && slice[0].Opcode == ir.OpLabel {
			label = slice[0].Label
			slice = slice[1:]
		} else {
			label = fmt.Sprintf("__block_%d", anon)
			anon++
		}

		g.Blocks[label] = &BasicBlock{Label: label, Instructions: slice}
		order = append(order, label)
	}
	return order
}

// wireEdges connects each block to its successors based on its last
// instruction.
func wireEdges(g *CFG, order []string) error {
	for i, label := range order {
		block := g.Blocks[label]
		if len(block.Instructions) == 0 {
			if i+1 < len(order) {
				g.addEdge(label, order[i+1])
			}
			continue
		}
		last := block.Instructions[len(block.Instructions)-1]
		switch last.Opcode {
		case ir.OpBranch:
			if g.Blocks[last.Label] == nil {
				return fmt.Errorf("cfg: BRANCH target %q does not exist", last.Label)
			}
			g.addEdge(label, last.Label)
		case ir.OpBranchIf:
			trueLabel, falseLabel, err := splitBranchTargets(last.Label)
			if err != nil {
				return err
			}
			if g.Blocks[trueLabel] == nil {
				return fmt.Errorf("cfg: BRANCH_IF true target %q does not exist", trueLabel)
			}
			if g.Blocks[falseLabel] == nil {
				return fmt.Errorf("cfg: BRANCH_IF false target %q does not exist", falseLabel)
			}
			g.addEdge(label, trueLabel)
			g.addEdge(label, falseLabel)
		case ir.OpReturn, ir.OpThrow:
			// terminal, no successors
		default:
			if i+1 < len(order) {
				g.addEdge(label, order[i+1])
			}
		}
	}
	return nil
}

// splitBranchTargets parses a BRANCH_IF label of the form
// "true_label,false_label".
func splitBranchTargets(label string) (string, string, error) {
	for i := 0; i < len(label); i++ {
		if label[i] == ',' {
			return label[:i], label[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("cfg: malformed BRANCH_IF target %q, want \"true,false\"", label)
}
