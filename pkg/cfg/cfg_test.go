package cfg

import (
	"testing"

	"github.com/vexec/vexec/pkg/ir"
)

func lbl(name string) ir.Instruction { return ir.Instruction{Opcode: ir.OpLabel, Label: name} }

func TestBuildEmptyProducesEmptyEntry(t *testing.T) {
	g, err := Build(nil)
	if err != nil {
		t.Fatalf("Build(nil) error: %v", err)
	}
	if g.Entry != EntryLabel {
		t.Fatalf("Entry = %q, want %q", g.Entry, EntryLabel)
	}
	block := g.Block(EntryLabel)
	if block == nil {
		t.Fatal("missing entry block")
	}
	if len(block.Instructions) != 0 {
		t.Errorf("entry block has %d instructions, want 0", len(block.Instructions))
	}
}

func TestBuildIdempotent(t *testing.T) {
	instrs := []ir.Instruction{
		lbl("entry"),
		{Opcode: ir.OpConst, ResultReg: "%0", Operands: []string{"1"}},
		{Opcode: ir.OpBranch, Label: "done"},
		lbl("done"),
		{Opcode: ir.OpReturn, Operands: []string{"%0"}},
	}
	g1, err := Build(instrs)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := Build(instrs)
	if err != nil {
		t.Fatal(err)
	}
	if len(g1.Blocks) != len(g2.Blocks) {
		t.Fatalf("non-deterministic block count: %d vs %d", len(g1.Blocks), len(g2.Blocks))
	}
	for label, b1 := range g1.Blocks {
		b2 := g2.Blocks[label]
		if b2 == nil {
			t.Fatalf("block %q missing from second build", label)
		}
		if len(b1.Instructions) != len(b2.Instructions) {
			t.Errorf("block %q instruction count differs across builds", label)
		}
	}
}

func TestBuildBranchWiresEdge(t *testing.T) {
	instrs := []ir.Instruction{
		lbl("entry"),
		{Opcode: ir.OpBranch, Label: "target"},
		lbl("target"),
		{Opcode: ir.OpReturn},
	}
	g, err := Build(instrs)
	if err != nil {
		t.Fatal(err)
	}
	entry := g.Block("entry")
	if len(entry.Successors) != 1 || entry.Successors[0] != "target" {
		t.Errorf("entry successors = %v, want [target]", entry.Successors)
	}
	target := g.Block("target")
	if len(target.Predecessors) != 1 || target.Predecessors[0] != "entry" {
		t.Errorf("target predecessors = %v, want [entry]", target.Predecessors)
	}
}

func TestBuildBranchIfWiresBothEdgesInOrder(t *testing.T) {
	instrs := []ir.Instruction{
		lbl("entry"),
		{Opcode: ir.OpBranchIf, Operands: []string{"%0"}, Label: "true_path,false_path"},
		lbl("true_path"),
		{Opcode: ir.OpReturn},
		lbl("false_path"),
		{Opcode: ir.OpReturn},
	}
	g, err := Build(instrs)
	if err != nil {
		t.Fatal(err)
	}
	entry := g.Block("entry")
	if len(entry.Successors) != 2 || entry.Successors[0] != "true_path" || entry.Successors[1] != "false_path" {
		t.Errorf("entry successors = %v, want [true_path false_path]", entry.Successors)
	}
}

func TestBuildReturnIsTerminal(t *testing.T) {
	instrs := []ir.Instruction{
		lbl("entry"),
		{Opcode: ir.OpReturn},
		{Opcode: ir.OpConst, ResultReg: "%0", Operands: []string{"1"}},
	}
	g, err := Build(instrs)
	if err != nil {
		t.Fatal(err)
	}
	entry := g.Block("entry")
	if len(entry.Successors) != 0 {
		t.Errorf("entry (ending in RETURN) successors = %v, want none", entry.Successors)
	}
	// the instruction after RETURN starts a new, unreachable block
	if len(g.Blocks) != 2 {
		t.Errorf("got %d blocks, want 2", len(g.Blocks))
	}
}

func TestBuildDanglingBranchIsError(t *testing.T) {
	instrs := []ir.Instruction{
		lbl("entry"),
		{Opcode: ir.OpBranch, Label: "nowhere"},
	}
	if _, err := Build(instrs); err == nil {
		t.Error("expected error for dangling branch target")
	}
}

func TestBuildSynthesizesAnonymousBlockNames(t *testing.T) {
	instrs := []ir.Instruction{
		{Opcode: ir.OpBranchIf, Operands: []string{"%0"}, Label: "a,b"},
		lbl("a"),
		{Opcode: ir.OpReturn},
		lbl("b"),
		{Opcode: ir.OpReturn},
	}
	g, err := Build(instrs)
	if err != nil {
		t.Fatal(err)
	}
	if g.Entry != "__block_0" {
		t.Errorf("Entry = %q, want __block_0", g.Entry)
	}
}

func TestReachability(t *testing.T) {
	instrs := []ir.Instruction{
		lbl("entry"),
		{Opcode: ir.OpBranch, Label: "reachable"},
		lbl("reachable"),
		{Opcode: ir.OpReturn},
	}
	g, err := Build(instrs)
	if err != nil {
		t.Fatal(err)
	}
	for label, b := range g.Blocks {
		isEntry := label == g.Entry
		hasPreds := len(b.Predecessors) > 0
		if !isEntry && !hasPreds {
			t.Errorf("block %q is unreachable (no predecessors, not entry)", label)
		}
	}
}
