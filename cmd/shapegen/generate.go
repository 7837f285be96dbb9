package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"shapegen/internal/driver"
	"shapegen/internal/observ"
	"shapegen/internal/pipeline"
)

var generateCmd = &cobra.Command{
	Use:   "generate [flags] [dir]",
	Short: "Derive capabilities for a Go package and write the generated files",
	Long: `Derive every capability requested by the annotated declarations of the Go
package in dir (default: the current directory) and write one generated file
per enabled environment mode. Declarations with errors are reported and left
out; the command then exits with status 1.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, args, true)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [flags] [dir]",
	Short: "Run the derivation and report diagnostics without writing files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, args, false)
	},
}

func init() {
	addRunFlags(generateCmd)
	generateCmd.Flags().Bool("dry-run", false, "print the generated files instead of writing them")
	generateCmd.Flags().String("from-ir", "", "derive from an IR file written by `shapegen dump`")
	generateCmd.Flags().String("out", "", "output directory (default: the package directory)")
	addRunFlags(checkCmd)
}

// writeFlags are the flags of commands that produce files.
type writeFlags struct {
	dryRun bool
	out    string
}

func readWriteFlags(cmd *cobra.Command) (writeFlags, error) {
	var (
		w   writeFlags
		err error
	)
	if w.dryRun, err = cmd.Flags().GetBool("dry-run"); err != nil {
		return w, fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	if w.out, err = cmd.Flags().GetString("out"); err != nil {
		return w, fmt.Errorf("failed to get out flag: %w", err)
	}
	return w, nil
}

func runGenerate(cmd *cobra.Command, args []string, write bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	flags, err := readRunFlags(cmd)
	if err != nil {
		return err
	}
	var (
		wf     writeFlags
		fromIR string
	)
	if write {
		if wf, err = readWriteFlags(cmd); err != nil {
			return err
		}
		if fromIR, err = cmd.Flags().GetString("from-ir"); err != nil {
			return fmt.Errorf("failed to get from-ir flag: %w", err)
		}
	}

	g, err := flags.loadGate(dir)
	if err != nil {
		return flags.fail(cmd, err)
	}
	opts, err := flags.driverOptions(g)
	if err != nil {
		return err
	}

	res, err := flags.execute(cmd.Context(), "shapegen "+dir, func(ctx context.Context, sink pipeline.ProgressSink) (*driver.Result, error) {
		opts.Sink = sink
		if fromIR != "" {
			return driver.GenerateIR(ctx, fromIR, opts)
		}
		return driver.GenerateDir(ctx, dir, opts)
	})
	if err != nil {
		return flags.fail(cmd, err)
	}
	return flags.finish(cmd, res, write, wf, dir, opts.Timer)
}

// finish reports diagnostics, then writes or prints the outputs.
func (f runFlags) finish(cmd *cobra.Command, res *driver.Result, write bool, wf writeFlags, dir string, timer *observ.Timer) error {
	if err := f.report(cmd, res.Bag, res.Files); err != nil {
		return err
	}
	if res.PkgName == "" && !f.quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "shapegen: no Go package in %s\n", dir)
	}
	if write {
		outDir := dir
		if wf.out != "" {
			outDir = wf.out
		}
		var err error
		if wf.dryRun {
			err = printOutputs(cmd, res)
		} else {
			err = f.writeOutputs(cmd, res, outDir, timer)
		}
		if err != nil {
			return err
		}
	}
	f.printTimings(cmd.ErrOrStderr(), timer)
	if res.HasErrors() {
		return errReported
	}
	return nil
}

func (f runFlags) writeOutputs(cmd *cobra.Command, res *driver.Result, dir string, timer *observ.Timer) error {
	var touched []string
	err := timer.Measure(observ.PhaseWrite, func() error {
		var err error
		touched, err = res.Write(dir)
		return err
	})
	if err != nil {
		return err
	}
	if f.quiet || f.format == "json" {
		return nil
	}
	out := cmd.OutOrStdout()
	for _, path := range touched {
		fmt.Fprintf(out, "updated %s\n", filepath.ToSlash(path))
	}
	if len(touched) == 0 && len(res.Outputs) > 0 {
		fmt.Fprintln(out, "generated files are up to date")
	}
	if res.Cached {
		fmt.Fprintln(out, "(from disk cache)")
	}
	return nil
}

// printOutputs writes every output to stdout, each preceded by its name.
func printOutputs(cmd *cobra.Command, res *driver.Result) error {
	out := cmd.OutOrStdout()
	for _, o := range res.Outputs {
		if _, err := fmt.Fprintf(out, "// ==> %s <==\n%s\n", o.Name, o.Content); err != nil {
			return err
		}
	}
	for _, name := range res.Stale {
		if _, err := fmt.Fprintf(out, "// ==> %s <== (empty, would be removed)\n", name); err != nil {
			return err
		}
	}
	return nil
}
