package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shapegen/internal/diag"
	"shapegen/internal/diagfmt"
	"shapegen/internal/driver"
	"shapegen/internal/gate"
	"shapegen/internal/observ"
	"shapegen/internal/source"
)

// runFlags are the flags shared by the commands that derive code.
type runFlags struct {
	config         string
	mode           string
	format         string
	jobs           int
	pkgPath        string
	ui             toggle
	diskCache      bool
	paths          diagfmt.PathMode
	withNotes      bool
	maxDiagnostics int
	quiet          bool
	timings        bool
}

// addRunFlags registers the flags read by readRunFlags.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to shapegen.toml (default: nearest one above the input)")
	cmd.Flags().String("mode", "", "environment modes to emit (hosted|freestanding|both; default from config)")
	cmd.Flags().String("format", "pretty", "diagnostic output format (pretty|json)")
	cmd.Flags().Int("jobs", 0, "max declarations derived in parallel (0=auto)")
	cmd.Flags().String("pkg-path", "", "import path of the package (default: from go.mod)")
	cmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	cmd.Flags().Bool("disk-cache", false, "reuse outputs of unchanged inputs from the disk cache")
	cmd.Flags().String("paths", "auto", "file paths in diagnostics (auto|absolute|relative|basename)")
	cmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
}

func readRunFlags(cmd *cobra.Command) (runFlags, error) {
	var (
		f   runFlags
		err error
	)
	flags := cmd.Flags()
	if f.config, err = flags.GetString("config"); err != nil {
		return f, fmt.Errorf("failed to get config flag: %w", err)
	}
	if f.mode, err = flags.GetString("mode"); err != nil {
		return f, fmt.Errorf("failed to get mode flag: %w", err)
	}
	if f.format, err = flags.GetString("format"); err != nil {
		return f, fmt.Errorf("failed to get format flag: %w", err)
	}
	f.format = strings.ToLower(f.format)
	if f.format != "pretty" && f.format != "json" {
		return f, fmt.Errorf("unsupported format %q (must be pretty or json)", f.format)
	}
	if f.jobs, err = flags.GetInt("jobs"); err != nil {
		return f, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if f.pkgPath, err = flags.GetString("pkg-path"); err != nil {
		return f, fmt.Errorf("failed to get pkg-path flag: %w", err)
	}
	uiFlag, err := flags.GetString("ui")
	if err != nil {
		return f, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if f.ui, err = parseToggle("ui", uiFlag); err != nil {
		return f, err
	}
	if f.diskCache, err = flags.GetBool("disk-cache"); err != nil {
		return f, fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	pathsFlag, err := flags.GetString("paths")
	if err != nil {
		return f, fmt.Errorf("failed to get paths flag: %w", err)
	}
	var ok bool
	if f.paths, ok = diagfmt.ParsePathMode(pathsFlag); !ok {
		return f, fmt.Errorf("invalid --paths value %q (expected auto|absolute|relative|basename)", pathsFlag)
	}
	if f.withNotes, err = flags.GetBool("with-notes"); err != nil {
		return f, fmt.Errorf("failed to get with-notes flag: %w", err)
	}

	persistent := cmd.Root().PersistentFlags()
	if f.maxDiagnostics, err = persistent.GetInt("max-diagnostics"); err != nil {
		return f, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if f.quiet, err = persistent.GetBool("quiet"); err != nil {
		return f, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if f.timings, err = persistent.GetBool("timings"); err != nil {
		return f, fmt.Errorf("failed to get timings flag: %w", err)
	}
	return f, nil
}

// toggle is the value of an auto|on|off flag.
type toggle uint8

const (
	toggleAuto toggle = iota
	toggleOn
	toggleOff
)

func parseToggle(flag, value string) (toggle, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return toggleAuto, nil
	case "on":
		return toggleOn, nil
	case "off":
		return toggleOff, nil
	}
	return toggleAuto, fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
}

// resolve decides the toggle, asking auto when it was left on auto.
func (t toggle) resolve(auto func() bool) bool {
	switch t {
	case toggleOn:
		return true
	case toggleOff:
		return false
	}
	return auto()
}

func stderrIsTerminal() bool { return term.IsTerminal(int(os.Stderr.Fd())) }

// applyModeFlag overrides the configured modes with --mode.
func applyModeFlag(cfg *gate.Config, mode string) error {
	switch strings.ToLower(mode) {
	case "":
	case "hosted":
		cfg.Features.Hosted, cfg.Features.Freestanding = true, false
	case "freestanding":
		cfg.Features.Hosted, cfg.Features.Freestanding = false, true
	case "both":
		cfg.Features.Hosted, cfg.Features.Freestanding = true, true
	default:
		return fmt.Errorf("invalid --mode value %q (expected hosted|freestanding|both)", mode)
	}
	return nil
}

// loadGate loads the configuration named by --config or discovered above
// startDir, applies --mode and validates it.
func (f runFlags) loadGate(startDir string) (*gate.Gate, error) {
	var (
		cfg gate.Config
		err error
	)
	if f.config != "" {
		cfg, err = gate.Load(f.config)
	} else {
		cfg, err = gate.Discover(startDir)
	}
	if err != nil {
		return nil, err
	}
	if err := applyModeFlag(&cfg, f.mode); err != nil {
		return nil, err
	}
	return gate.Validate(cfg)
}

func (f runFlags) driverOptions(g *gate.Gate) (driver.Options, error) {
	opts := driver.Options{
		Gate:           g,
		Jobs:           f.jobs,
		MaxDiagnostics: f.maxDiagnostics,
		PkgPath:        f.pkgPath,
	}
	if f.timings {
		opts.Timer = observ.NewTimer()
	}
	cacheCfg := g.Config().Cache
	if f.diskCache || cacheCfg.Enabled {
		cache, err := driver.OpenDiskCache(cacheCfg.Dir)
		if err != nil {
			return opts, fmt.Errorf("open disk cache: %w", err)
		}
		opts.Cache = cache
	}
	return opts, nil
}

// execute runs fn with the progress UI when it is wanted and output is
// human-readable.
func (f runFlags) execute(ctx context.Context, title string, fn runFunc) (*driver.Result, error) {
	if f.format == "pretty" && !f.quiet && f.ui.resolve(stderrIsTerminal) {
		return runWithUI(ctx, title, fn)
	}
	return fn(ctx, nil)
}

// report prints the diagnostics of a run in source order: pretty text on
// stderr or a JSON document on stdout.
func (f runFlags) report(cmd *cobra.Command, bag *diag.Bag, fs *source.FileSet) error {
	bag.Sort()
	if f.format == "json" {
		return diagfmt.JSON(cmd.OutOrStdout(), bag, fs, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         f.paths,
			IncludeNotes:     f.withNotes,
		})
	}
	if bag.Len() == 0 {
		return nil
	}
	errOut := cmd.ErrOrStderr()
	err := diagfmt.Pretty(errOut, bag, fs, diagfmt.PrettyOpts{
		Color:     !color.NoColor,
		Context:   1,
		PathMode:  f.paths,
		ShowNotes: f.withNotes,
	})
	if err != nil {
		return err
	}
	if !f.quiet {
		fmt.Fprintf(errOut, "shapegen: %s\n", diagfmt.Summary(bag))
	}
	return nil
}

// fail reports err. Configuration errors print as diagnostics and become
// errReported; internal invariant violations are marked as engine bugs.
func (f runFlags) fail(cmd *cobra.Command, err error) error {
	var ce *gate.ConfigError
	if errors.As(err, &ce) {
		bag := diag.NewBag(1)
		bag.Add(ce.Diagnostic())
		if rerr := f.report(cmd, bag, source.NewFileSet()); rerr != nil {
			return rerr
		}
		return errReported
	}
	if driver.IsFatal(err) {
		return fmt.Errorf("internal error, please report it: %w", err)
	}
	return err
}

func (f runFlags) printTimings(w io.Writer, t *observ.Timer) {
	if f.timings && t != nil {
		fmt.Fprint(w, t.Summary())
	}
}
