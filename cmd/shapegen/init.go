package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"shapegen/internal/gate"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default shapegen.toml",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing shapegen.toml")
	initCmd.Flags().Bool("freestanding", false, "enable freestanding output as well")
}

const configHeader = `# shapegen configuration.
#
# [features] capabilities lists the capabilities declarations may derive;
# leave it empty to allow every compiled one. hosted and freestanding
# select the environment modes that get a generated file.
#
# [assume] maps a capability (or "*") to named types from other packages
# that are known to implement it.

`

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("failed to get force flag: %w", err)
	}
	freestanding, err := cmd.Flags().GetBool("freestanding")
	if err != nil {
		return fmt.Errorf("failed to get freestanding flag: %w", err)
	}

	path := filepath.Join(dir, gate.ConfigFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := gate.Default()
	cfg.Features.Freestanding = freestanding
	cfg.Features.Capabilities = gate.CompiledFeatures()
	if _, err := gate.Validate(cfg); err != nil {
		return err
	}
	body, err := gate.Encode(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(configHeader), body...), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", filepath.ToSlash(path))
	return nil
}
