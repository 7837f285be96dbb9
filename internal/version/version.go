// Package version carries build information for the shapegen CLI. The
// variables can be overridden at build time via -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fatih/color"
)

var (
	// Version is the semantic version of the engine. It is part of the
	// disk cache key, so generated output is never reused across versions.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	nameColor    = color.New(color.FgCyan, color.Bold)
	versionColor = color.New(color.FgGreen, color.Bold)
	detailColor  = color.New(color.Faint)
)

// Banner is the one-line version string printed by `shapegen version`.
// Colors follow fatih/color's NoColor switch.
func Banner() string {
	var sb strings.Builder
	sb.WriteString(nameColor.Sprint("shapegen"))
	sb.WriteString(" ")
	sb.WriteString(versionColor.Sprint(Version))
	var details []string
	if GitCommit != "" {
		commit := GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		details = append(details, "commit "+commit)
	}
	if BuildDate != "" {
		details = append(details, "built "+BuildDate)
	}
	details = append(details, fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH))
	sb.WriteString(" ")
	sb.WriteString(detailColor.Sprint("(" + strings.Join(details, ", ") + ")"))
	return sb.String()
}
