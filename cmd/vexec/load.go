package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/vexec/vexec/pkg/cfg"
	"github.com/vexec/vexec/pkg/ir"
	"github.com/vexec/vexec/pkg/irtext"
	"github.com/vexec/vexec/pkg/registry"
)

// detectFormat picks the textual-assembly or YAML decoder by file
// extension when format isn't given explicitly ("" or "auto").
func detectFormat(filename, format string) string {
	if format != "" && format != "auto" {
		return format
	}
	if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		return "yaml"
	}
	return "text"
}

// decodeInstructions reads filename and decodes it per format ("text" or
// "yaml").
func decodeInstructions(filename, format string) ([]ir.Instruction, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("vexec: reading %s: %w", filename, err)
	}
	switch detectFormat(filename, format) {
	case "yaml":
		return irtext.DecodeYAML(data)
	case "text":
		return irtext.Parse(string(data))
	default:
		return nil, fmt.Errorf("vexec: unknown format %q (want text or yaml)", format)
	}
}

// loadProgram decodes filename and builds its CFG and name registry,
// the two immutable artifacts pipeline.New needs.
func loadProgram(filename, format string) ([]ir.Instruction, *cfg.CFG, *registry.Registry, error) {
	instrs, err := decodeInstructions(filename, format)
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := cfg.Build(instrs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("vexec: building CFG for %s: %w", filename, err)
	}
	reg := registry.Build(instrs)
	return instrs, g, reg, nil
}
