package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"shapegen/internal/attr"
	"shapegen/internal/capability"
)

var capsCmd = &cobra.Command{
	Use:   "caps",
	Short: "List compiled capabilities, their modes and options",
	Args:  cobra.NoArgs,
	RunE:  runCaps,
}

func init() {
	capsCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type capOption struct {
	Scope  string `json:"scope"`
	Key    string `json:"key"`
	Kind   string `json:"kind"`
	Effect string `json:"effect"`
}

type capInfo struct {
	Name    string      `json:"name"`
	Summary string      `json:"summary"`
	Default bool        `json:"default"`
	Modes   []string    `json:"modes"`
	Options []capOption `json:"options,omitempty"`
}

func runCaps(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	infos := collectCaps()
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "pretty":
		return renderCaps(cmd.OutOrStdout(), infos)
	}
	return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
}

func collectCaps() []capInfo {
	all := capability.All()
	infos := make([]capInfo, 0, len(all))
	for _, c := range all {
		info := capInfo{Name: c.Name, Summary: c.Summary, Default: c.Default}
		for _, m := range c.Modes.Modes() {
			info.Modes = append(info.Modes, m.String())
		}
		info.Options = append(info.Options, capOptions("decl", c.Schema.Decl, c.Schema.DeclKeys())...)
		info.Options = append(info.Options, capOptions("field", c.Schema.Field, c.Schema.FieldKeys())...)
		infos = append(infos, info)
	}
	return infos
}

func capOptions(scope string, specs map[string]attr.Spec, keys []string) []capOption {
	out := make([]capOption, 0, len(keys))
	for _, k := range keys {
		out = append(out, capOption{Scope: scope, Key: k, Kind: specs[k].Kind.String(), Effect: specs[k].Effect})
	}
	return out
}

func renderCaps(w io.Writer, infos []capInfo) error {
	border := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	caps := table.New().Border(lipgloss.NormalBorder()).BorderStyle(border).
		Headers("CAPABILITY", "MODES", "SUMMARY")
	opts := table.New().Border(lipgloss.NormalBorder()).BorderStyle(border).
		Headers("CAPABILITY", "SCOPE", "KEY", "KIND", "EFFECT")
	for _, info := range infos {
		name := info.Name
		if info.Default {
			name += "*"
		}
		caps.Row(name, strings.Join(info.Modes, ", "), info.Summary)
		for _, o := range info.Options {
			opts.Row(info.Name, o.Scope, o.Key, o.Kind, o.Effect)
		}
	}
	_, err := fmt.Fprintf(w, "%s\n* removed by the shapegen_nodefault build tag\n\n%s\n", caps.String(), opts.String())
	return err
}
