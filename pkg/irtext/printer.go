package irtext

import (
	"strconv"
	"strings"

	"github.com/vexec/vexec/pkg/ir"
)

// Print renders instrs back into the assembly text Parse accepts. It is
// the inverse of Parse: Parse(Print(instrs)) reproduces instrs.
func Print(instrs []ir.Instruction) string {
	var b strings.Builder
	for _, instr := range instrs {
		printInstruction(&b, instr)
		b.WriteByte('\n')
	}
	return b.String()
}

func printInstruction(b *strings.Builder, instr ir.Instruction) {
	if instr.Opcode == ir.OpLabel {
		b.WriteString(instr.Label)
		b.WriteByte(':')
		return
	}
	if instr.ResultReg != "" {
		b.WriteString(instr.ResultReg)
		b.WriteString(" = ")
	}
	b.WriteString(string(instr.Opcode))

	operands := printOperands(instr)
	for i, op := range operands {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		b.WriteString(op)
	}
}

// printOperands renders an instruction's operands (plus, for BRANCH/
// BRANCH_IF, its Label field) into printed operand tokens, inverting
// operandLiteral.
func printOperands(instr ir.Instruction) []string {
	switch instr.Opcode {
	case ir.OpBranch:
		return []string{instr.Label}
	case ir.OpBranchIf:
		return []string{printOperand(instr.Opcode, 0, instr.Operands[0]), strconv.Quote(instr.Label)}
	default:
		out := make([]string, len(instr.Operands))
		for i, op := range instr.Operands {
			out[i] = printOperand(instr.Opcode, i, op)
		}
		return out
	}
}

// printOperand is the inverse of operandLiteral: a register prints
// bare; CONST's literal operand is already in its canonical quoted-or-
// not encoding and prints unchanged; every other operand is a bare
// name or operator symbol and is quoted for readability, matching the
// textual format's convention.
func printOperand(opcode ir.Opcode, index int, operand string) string {
	if ir.IsRegister(operand) {
		return operand
	}
	if opcode == ir.OpConst && index == 0 {
		return operand
	}
	return strconv.Quote(operand)
}
