package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"shapegen/internal/driver"
	"shapegen/internal/pipeline"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [flags] <file.toml|file.yaml>",
	Short: "Generate types and capabilities from a declaration file",
	Long: `Read type declarations from a TOML or YAML schema file and generate both the
Go type declarations (types_shapegen.go) and the derived capabilities. Files
are written next to the schema unless --out is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchema,
}

func init() {
	addRunFlags(schemaCmd)
	schemaCmd.Flags().Bool("dry-run", false, "print the generated files instead of writing them")
	schemaCmd.Flags().String("out", "", "output directory (default: the schema file's directory)")
}

func runSchema(cmd *cobra.Command, args []string) error {
	path := args[0]
	flags, err := readRunFlags(cmd)
	if err != nil {
		return err
	}
	wf, err := readWriteFlags(cmd)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	g, err := flags.loadGate(dir)
	if err != nil {
		return flags.fail(cmd, err)
	}
	opts, err := flags.driverOptions(g)
	if err != nil {
		return err
	}
	res, err := flags.execute(cmd.Context(), "shapegen "+filepath.Base(path), func(ctx context.Context, sink pipeline.ProgressSink) (*driver.Result, error) {
		opts.Sink = sink
		return driver.GenerateSchema(ctx, path, opts)
	})
	if err != nil {
		return flags.fail(cmd, err)
	}
	return flags.finish(cmd, res, true, wf, dir, opts.Timer)
}
