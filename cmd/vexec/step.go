package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vexec/vexec/pkg/builtins"
	"github.com/vexec/vexec/pkg/pipeline"
)

// newStepCmd is "vexec step": drive pipeline.Driver.Step one instruction
// at a time, printing the StateUpdate after each, pausing for Enter
// between steps. The VM has no internal suspension points (spec.md §5),
// so this is the natural place to add one: at the CLI level, between
// every instruction, for free.
func newStepCmd(out, errOut io.Writer) *cobra.Command {
	var maxSteps int
	var format string
	var batch bool

	cmd := &cobra.Command{
		Use:   "step <file>",
		Short: "single-step a program, pausing between instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doStep(args[0], format, maxSteps, batch, os.Stdin, out, errOut)
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 100000, "stop after this many steps even if the program hasn't finished")
	cmd.Flags().StringVar(&format, "format", "auto", "input format: auto, text, or yaml")
	cmd.Flags().BoolVar(&batch, "batch", false, "don't wait for Enter between steps")
	return cmd
}

func doStep(filename, format string, maxSteps int, batch bool, in io.Reader, out, errOut io.Writer) error {
	_, g, reg, err := loadProgram(filename, format)
	if err != nil {
		fmt.Fprintf(errOut, "vexec: %v\n", err)
		return err
	}

	d := pipeline.New(g, reg, builtins.New(), maxSteps)
	d.Log = errOut
	d.WithTrace = true

	scanner := bufio.NewScanner(in)
	stepCount := 0
	for stepCount < maxSteps {
		done, trace, err := d.Step()
		if err != nil {
			fmt.Fprintf(errOut, "vexec: %v\n", err)
			return err
		}
		stepCount++
		if trace != nil {
			fmt.Fprintf(out, "#%d %s:%d %s -> %+v\n", trace.Step, trace.Block, trace.IP, trace.Instruction, trace.Update)
		}
		fmt.Fprintf(out, "stack depth %d\n", len(d.State().Stack))
		if done {
			fmt.Fprintln(out, "vexec: program terminated")
			return nil
		}
		if !batch {
			fmt.Fprint(out, "(press Enter to continue) ")
			scanner.Scan()
		}
	}
	fmt.Fprintln(out, "vexec: step budget exhausted")
	return nil
}
