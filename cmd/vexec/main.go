package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// newRootCmd wires the three subcommands onto a vexec root, mirroring
// the teacher's out/errOut-parameterized newRootCmd so tests can drive
// the whole CLI without touching the real stdout/stderr.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vexec",
		Short:         "vexec drives a symbolic interpreter over a flat VM instruction set",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.AddCommand(newRunCmd(out, errOut))
	rootCmd.AddCommand(newDisasmCmd(out, errOut))
	rootCmd.AddCommand(newStepCmd(out, errOut))

	return rootCmd
}
