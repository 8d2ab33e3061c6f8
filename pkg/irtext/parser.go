// Package irtext is the textual assembly format for ir.Instruction
// lists: a line-oriented syntax (`%2 = BINOP "+", %0, %1`, `entry:`,
// `BRANCH_IF %0, "true,false"`) with a Lexer, a recursive-descent
// Parser producing []ir.Instruction, and a Printer for the reverse
// direction. cmd/vexec's run/disasm/step subcommands read and write
// this format from disk.
package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vexec/vexec/pkg/ir"
)

// Parser turns lexed tokens into []ir.Instruction.
type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a Parser reading from l.
func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse lexes and parses src into an instruction list in one call.
func Parse(src string) ([]ir.Instruction, error) {
	return NewParser(New(src)).ParseProgram()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("irtext: line %d, col %d: %s", p.curToken.Line, p.curToken.Column, msg)
}

// ParseProgram parses every line in the input, skipping blank lines,
// and returns the resulting instruction list.
func (p *Parser) ParseProgram() ([]ir.Instruction, error) {
	var instrs []ir.Instruction
	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenNewline) {
			p.nextToken()
			continue
		}
		instr, err := p.parseLine()
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, instr)
		if !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenNewline) {
			return nil, p.errorf("expected end of line, got %s %q", p.curToken.Type, p.curToken.Literal)
		}
		if p.curTokenIs(TokenNewline) {
			p.nextToken()
		}
	}
	return instrs, nil
}

// parseLine parses one label or instruction line; p.curToken is left on
// the token after the parsed line (a NEWLINE or EOF).
func (p *Parser) parseLine() (ir.Instruction, error) {
	if p.curTokenIs(TokenIdent) && p.peekTokenIs(TokenColon) {
		name := p.curToken.Literal
		p.nextToken() // consume ident
		p.nextToken() // consume ':'
		return ir.Instruction{Opcode: ir.OpLabel, Label: name}, nil
	}

	var resultReg string
	if p.curTokenIs(TokenReg) && p.peekTokenIs(TokenAssign) {
		resultReg = p.curToken.Literal
		p.nextToken() // consume reg
		p.nextToken() // consume '='
	}

	if !p.curTokenIs(TokenIdent) {
		return ir.Instruction{}, p.errorf("expected opcode, got %s %q", p.curToken.Type, p.curToken.Literal)
	}
	opcode := ir.Opcode(strings.ToUpper(p.curToken.Literal))
	p.nextToken()

	var rawOperands []Token
	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
		rawOperands = append(rawOperands, p.curToken)
		p.nextToken()
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			continue
		}
		break
	}

	instr := ir.Instruction{Opcode: opcode, ResultReg: resultReg}

	switch opcode {
	case ir.OpBranch:
		if len(rawOperands) != 1 {
			return ir.Instruction{}, p.errorf("BRANCH wants exactly one label operand, got %d", len(rawOperands))
		}
		instr.Label = rawOperands[0].Literal
	case ir.OpBranchIf:
		if len(rawOperands) != 2 {
			return ir.Instruction{}, p.errorf("BRANCH_IF wants a condition and a \"true,false\" target pair, got %d operands", len(rawOperands))
		}
		instr.Operands = []string{operandLiteral(opcode, 0, rawOperands[0])}
		instr.Label = rawOperands[1].Literal
	default:
		for i, tok := range rawOperands {
			instr.Operands = append(instr.Operands, operandLiteral(opcode, i, tok))
		}
	}

	return instr, nil
}

// operandLiteral converts one operand token into its ir.Instruction
// Operands form. CONST's sole operand is the canonical literal encoding
// ParseLiteral expects, so a quoted string there is re-quoted rather
// than unwrapped; every other opcode's operands are raw names or
// operator symbols (registers, variable/field names, BINOP/UNOP
// operators), so a quoted string there is unwrapped to its bare
// content, matching the convention pkg/exec's step handlers rely on.
func operandLiteral(opcode ir.Opcode, index int, tok Token) string {
	if tok.Type != TokenString {
		return tok.Literal
	}
	if opcode == ir.OpConst && index == 0 {
		return strconv.Quote(tok.Literal)
	}
	return tok.Literal
}
