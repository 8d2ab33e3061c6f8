package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vexec/vexec/pkg/builtins"
	"github.com/vexec/vexec/pkg/pipeline"
	"github.com/vexec/vexec/pkg/vmstate"
)

// newRunCmd is the "vexec run" subcommand: load a program, drive it to
// completion with pipeline.Driver, and print its outcome. Mirrors the
// teacher's do<Stage>(filename, out, errOut) handlers in shape, one
// function per subcommand instead of one per compiler stage.
func newRunCmd(out, errOut io.Writer) *cobra.Command {
	var maxSteps int
	var trace bool
	var format string

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "run a program to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRun(args[0], format, maxSteps, trace, out, errOut)
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 100000, "abort with an incomplete result after this many steps")
	cmd.Flags().BoolVar(&trace, "trace", false, "print a StepTrace line for every executed instruction")
	cmd.Flags().StringVar(&format, "format", "auto", "input format: auto, text, or yaml")
	return cmd
}

func doRun(filename, format string, maxSteps int, trace bool, out, errOut io.Writer) error {
	_, g, reg, err := loadProgram(filename, format)
	if err != nil {
		fmt.Fprintf(errOut, "vexec: %v\n", err)
		return err
	}

	d := pipeline.New(g, reg, builtins.New(), maxSteps)
	d.Log = errOut
	d.WithTrace = trace

	result, err := d.Run()
	if err != nil {
		fmt.Fprintf(errOut, "vexec: %v\n", err)
		return err
	}

	if trace {
		for _, t := range result.Traces {
			fmt.Fprintf(out, "#%d %s:%d %s -> %+v\n", t.Step, t.Block, t.IP, t.Instruction, t.Update)
		}
	}
	for _, line := range result.State.Output {
		fmt.Fprintln(out, line)
	}

	printResult(out, result)
	return nil
}

func printResult(out io.Writer, result *pipeline.Result) {
	status := "complete"
	if !result.Complete {
		status = "incomplete (step budget exhausted)"
	}
	fmt.Fprintf(out, "vexec: run %s after %d steps\n", status, result.Steps)

	if result.FinalFrame != nil {
		fmt.Fprintf(out, "locals:\n")
		for name, v := range result.FinalFrame.Locals {
			fmt.Fprintf(out, "  %s = %s\n", name, describeValue(v))
		}
	}
	if len(result.State.PathConditions) > 0 {
		fmt.Fprintf(out, "path conditions:\n")
		for _, pc := range result.State.PathConditions {
			fmt.Fprintf(out, "  %s\n", pc)
		}
	}
}

// describeValue is vmstate.FormatValue plus, for a *Symbolic carrying
// constraints, its most specific one — FormatValue alone only gives the
// symbolic's bare name, which isn't enough to see why a value came out
// symbolic when reading CLI output.
func describeValue(v vmstate.Value) string {
	if sym, ok := v.(*vmstate.Symbolic); ok && len(sym.Constraints) > 0 {
		return sym.Constraints[len(sym.Constraints)-1]
	}
	return vmstate.FormatValue(v)
}
