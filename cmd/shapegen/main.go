package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shapegen/internal/logx"
	"shapegen/internal/prof"
	"shapegen/internal/version"
)

// errReported ends a run whose problems were already printed as
// diagnostics; main exits 1 without printing it again.
var errReported = errors.New("errors reported")

var rootCmd = &cobra.Command{
	Use:   "shapegen",
	Short: "Derive capability implementations from declarations",
	Long: `shapegen reads type declarations from Go packages or schema files and
generates equality, hashing, ordering keys, debug formatting, cloning and
type descriptors for every capability the declarations derive.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupRun,
}

var profiling *prof.Session

// init registers subcommands and the persistent flags every command reads
// in setupRun.
func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(capsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics per declaration")
	rootCmd.PersistentFlags().String("log-level", "off", "structured log level (off|debug|info|warn|error)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a runtime trace to this file")
}

// main executes the root command. Any error exits with status 1.
func main() {
	err := rootCmd.Execute()
	if stopErr := teardown(); err == nil {
		err = stopErr
	}
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "shapegen: %v\n", err)
		}
		os.Exit(1)
	}
}

// setupRun applies the persistent flags shared by every command: color,
// logging and profiling.
func setupRun(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()

	colorFlag, err := flags.GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	useColor, err := parseToggle("color", colorFlag)
	if err != nil {
		return err
	}
	color.NoColor = !useColor.resolve(func() bool {
		return os.Getenv("NO_COLOR") == "" && stderrIsTerminal()
	})

	level, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}
	logger, err := logx.New(level)
	if err != nil {
		return err
	}
	logx.Set(logger)

	var opts prof.Options
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if opts.Enabled() {
		if profiling, err = prof.Start(opts); err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
	}
	return nil
}

// teardown flushes the logger and stops profiling. Cobra skips post-run
// hooks when a command fails, so main calls it after every run.
func teardown() error {
	_ = logx.L().Sync()
	err := profiling.Stop()
	profiling = nil
	return err
}
