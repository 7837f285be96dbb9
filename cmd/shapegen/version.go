package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"shapegen/internal/gate"
	"shapegen/internal/version"
)

type versionPayload struct {
	Tool         string   `json:"tool"`
	Version      string   `json:"version"`
	GitCommit    string   `json:"git_commit,omitempty"`
	BuildDate    string   `json:"build_date,omitempty"`
	GoVersion    string   `json:"go_version"`
	Capabilities []string `json:"capabilities"`
	Defaults     bool     `json:"default_features"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show shapegen build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		out := cmd.OutOrStdout()
		switch strings.ToLower(format) {
		case "pretty":
			fmt.Fprintln(out, version.Banner())
			fmt.Fprintf(out, "capabilities: %s\n", strings.Join(gate.CompiledFeatures(), ", "))
			return nil
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(versionPayload{
				Tool:         "shapegen",
				Version:      version.Version,
				GitCommit:    version.GitCommit,
				BuildDate:    version.BuildDate,
				GoVersion:    runtime.Version(),
				Capabilities: gate.CompiledFeatures(),
				Defaults:     gate.DefaultFeatures(),
			})
		}
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	},
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}
