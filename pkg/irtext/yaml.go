package irtext

import (
	"gopkg.in/yaml.v3"

	"github.com/vexec/vexec/pkg/ir"
)

// yamlInstruction is the YAML wire shape for one ir.Instruction: every
// field already holds its canonical literal/raw-name encoding exactly
// as ir.Instruction would store it (no lexer quote-handling applies
// here, since YAML strings are never ambiguous with idents the way
// assembly-text tokens are).
type yamlInstruction struct {
	Op       string   `yaml:"op"`
	Result   string   `yaml:"result,omitempty"`
	Operands []string `yaml:"operands,omitempty"`
	Label    string   `yaml:"label,omitempty"`
}

// DecodeYAML decodes data as a YAML list of instructions, an alternate
// to Parse's assembly-text syntax (cmd/vexec picks it for .yaml/.yml
// input files). cmd/vexec's testdata/scenarios.yaml does not use this
// shape: its programs are assembly text read by Parse.
func DecodeYAML(data []byte) ([]ir.Instruction, error) {
	var raw []yamlInstruction
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	instrs := make([]ir.Instruction, len(raw))
	for i, r := range raw {
		instrs[i] = ir.Instruction{
			Opcode:    ir.Opcode(r.Op),
			ResultReg: r.Result,
			Operands:  r.Operands,
			Label:     r.Label,
		}
	}
	return instrs, nil
}

// EncodeYAML is the inverse of DecodeYAML, used by cmd/vexec disasm
// --format=yaml.
func EncodeYAML(instrs []ir.Instruction) ([]byte, error) {
	raw := make([]yamlInstruction, len(instrs))
	for i, instr := range instrs {
		raw[i] = yamlInstruction{
			Op:       string(instr.Opcode),
			Result:   instr.ResultReg,
			Operands: instr.Operands,
			Label:    instr.Label,
		}
	}
	return yaml.Marshal(raw)
}
