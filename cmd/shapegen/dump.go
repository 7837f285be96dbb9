package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shapegen/internal/driver"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] [dir]",
	Short: "Write the extracted shapes of a Go package as an IR file",
	Long: `Extract every annotated declaration of the Go package in dir and write the
type descriptions as a msgpack IR file. The IR can be derived later with
"shapegen generate --from-ir", without the package sources.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringP("output", "o", "-", "IR file to write (- for stdout)")
	dumpCmd.Flags().String("pkg-path", "", "import path of the package (default: from go.mod)")
	dumpCmd.Flags().String("format", "pretty", "diagnostic output format (pretty|json)")
}

func runDump(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	flags := runFlags{}
	if flags.pkgPath, err = cmd.Flags().GetString("pkg-path"); err != nil {
		return fmt.Errorf("failed to get pkg-path flag: %w", err)
	}
	if flags.format, err = cmd.Flags().GetString("format"); err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	persistent := cmd.Root().PersistentFlags()
	if flags.maxDiagnostics, err = persistent.GetInt("max-diagnostics"); err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if flags.quiet, err = persistent.GetBool("quiet"); err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	var buf bytes.Buffer
	res, err := driver.Dump(cmd.Context(), dir, &buf, driver.Options{MaxDiagnostics: flags.maxDiagnostics, PkgPath: flags.pkgPath})
	if err != nil {
		return err
	}
	if err := flags.report(cmd, res.Bag, res.Files); err != nil {
		return err
	}
	if output == "-" {
		if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
			return err
		}
	} else if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write IR: %w", err)
	}
	if res.HasErrors() {
		return errReported
	}
	return nil
}
