package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vexec/vexec/pkg/irtext"
)

// newDisasmCmd is "vexec disasm": decode a program and re-render it in
// --format (text or yaml), the inverse of whatever it was written in.
// This is what makes the instruction set inspectable the way the
// teacher's -drtl/-dltl/... debug-dump flags make its own IRs
// inspectable.
func newDisasmCmd(out, errOut io.Writer) *cobra.Command {
	var inFormat, outFormat string

	cmd := &cobra.Command{
		Use:   "disasm <file>",
		Short: "print a program in the given format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doDisasm(args[0], inFormat, outFormat, out, errOut)
		},
	}
	cmd.Flags().StringVar(&inFormat, "in", "auto", "input format: auto, text, or yaml")
	cmd.Flags().StringVar(&outFormat, "format", "text", "output format: text or yaml")
	return cmd
}

func doDisasm(filename, inFormat, outFormat string, out, errOut io.Writer) error {
	instrs, err := decodeInstructions(filename, inFormat)
	if err != nil {
		fmt.Fprintf(errOut, "vexec: %v\n", err)
		return err
	}

	switch outFormat {
	case "text":
		fmt.Fprint(out, irtext.Print(instrs))
	case "yaml":
		data, err := irtext.EncodeYAML(instrs)
		if err != nil {
			fmt.Fprintf(errOut, "vexec: %v\n", err)
			return err
		}
		out.Write(data)
	default:
		err := fmt.Errorf("vexec: unknown output format %q (want text or yaml)", outFormat)
		fmt.Fprintln(errOut, err)
		return err
	}
	return nil
}
