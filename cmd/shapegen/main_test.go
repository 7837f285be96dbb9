package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"shapegen/internal/emit"
	"shapegen/internal/gate"
)

const geoSrc = `package geo

//shapegen:derive eq hash
type Point struct {
	X, Y int
}

//shapegen:derive eq
type Shape interface{ isShape() }

type Circle struct{ C Point; R float64 }
type Square struct{ Side float64 }

func (Circle) isShape() {}
func (Square) isShape() {}
`

const brokenSrc = `package geo

//shapegen:derive eq
type Point struct {
	Base
	X int
}

type Base struct{}
`

// resetFlags restores every flag to its default; cobra keeps flag values
// between Execute calls in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if terr := teardown(); terr != nil {
		t.Fatalf("teardown: %v", terr)
	}
	return stdout.String(), stderr.String(), err
}

func writePkg(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "geo.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute(t, "init", dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	return dir
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := execute(t, "init", "--freestanding", dir)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(stdout, "created ") {
		t.Errorf("stdout = %q", stdout)
	}
	cfg, err := gate.Load(filepath.Join(dir, gate.ConfigFileName))
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if want := emit.NewModeSet(emit.Hosted, emit.Freestanding); cfg.Modes() != want {
		t.Errorf("modes = %s, want %s", cfg.Modes(), want)
	}

	if _, _, err := execute(t, "init", dir); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init err = %v, want already exists", err)
	}
	if _, _, err := execute(t, "init", "--force", dir); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestGenerate(t *testing.T) {
	dir := writePkg(t, geoSrc)
	stdout, stderr, err := execute(t, "generate", "--ui", "off", "--pkg-path", "example.com/geo", dir)
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "updated ") || !strings.Contains(stdout, "hosted_shapegen.go") {
		t.Errorf("stdout = %q", stdout)
	}
	src, err := os.ReadFile(filepath.Join(dir, "hosted_shapegen.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(src, []byte(emit.Banner)) || !bytes.Contains(src, []byte("func (v Point) Equal(o Point) bool {")) {
		t.Errorf("unexpected output:\n%s", src)
	}

	stdout, _, err = execute(t, "generate", "--ui", "off", "--pkg-path", "example.com/geo", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "up to date") {
		t.Errorf("second run stdout = %q", stdout)
	}
}

func TestGenerateDryRun(t *testing.T) {
	dir := writePkg(t, geoSrc)
	stdout, _, err := execute(t, "generate", "--ui", "off", "--dry-run", "--mode", "both", "--pkg-path", "example.com/geo", dir)
	if err != nil {
		t.Fatalf("generate --dry-run: %v", err)
	}
	for _, want := range []string{"// ==> hosted_shapegen.go <==", "// ==> freestanding_shapegen.go <==", "package geo"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q", want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "hosted_shapegen.go")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("dry run wrote a file: %v", err)
	}
}

func TestCheckReportsErrors(t *testing.T) {
	dir := writePkg(t, brokenSrc)
	_, stderr, err := execute(t, "check", "--ui", "off", "--paths", "basename", "--pkg-path", "example.com/geo", dir)
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	for _, want := range []string{"geo.go:5:2: ERROR SHP1002", "1 error"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "hosted_shapegen.go")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("check wrote a file: %v", err)
	}
}

func TestCheckJSON(t *testing.T) {
	dir := writePkg(t, brokenSrc)
	stdout, _, err := execute(t, "check", "--format", "json", "--pkg-path", "example.com/geo", dir)
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	var out struct {
		Count       int  `json:"count"`
		HasErrors   bool `json:"has_errors"`
		Diagnostics []struct {
			Code string `json:"code"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if out.Count != 1 || !out.HasErrors || out.Diagnostics[0].Code != "SHP1002" {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestConfigErrorIsReported(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, gate.ConfigFileName)
	if err := os.WriteFile(cfg, []byte("[features]\nhosted = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, err := execute(t, "check", "--ui", "off", "--config", cfg, dir)
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	if !strings.Contains(stderr, "GATE4001") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestDumpThenGenerateFromIR(t *testing.T) {
	dir := writePkg(t, geoSrc)
	ir := filepath.Join(t.TempDir(), "geo.ir")
	if _, stderr, err := execute(t, "dump", "--pkg-path", "example.com/geo", "-o", ir, dir); err != nil {
		t.Fatalf("dump: %v\n%s", err, stderr)
	}
	out := t.TempDir()
	if _, stderr, err := execute(t, "generate", "--ui", "off", "--config", filepath.Join(dir, gate.ConfigFileName), "--from-ir", ir, "--out", out); err != nil {
		t.Fatalf("generate --from-ir: %v\n%s", err, stderr)
	}
	if _, err := os.Stat(filepath.Join(out, "hosted_shapegen.go")); err != nil {
		t.Errorf("IR run wrote nothing: %v", err)
	}
}

func TestCapsJSON(t *testing.T) {
	stdout, _, err := execute(t, "caps", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var infos []capInfo
	if err := json.Unmarshal([]byte(stdout), &infos); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	names := make(map[string]capInfo, len(infos))
	for _, info := range infos {
		names[info.Name] = info
	}
	eq, ok := names["eq"]
	if !ok {
		t.Fatalf("eq missing from %v", infos)
	}
	if strings.Join(eq.Modes, ",") != "hosted,freestanding" {
		t.Errorf("eq modes = %v", eq.Modes)
	}
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var p versionPayload
	if err := json.Unmarshal([]byte(stdout), &p); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if p.Tool != "shapegen" || p.Version == "" || len(p.Capabilities) == 0 {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestFlagParsing(t *testing.T) {
	t.Run("toggle", func(t *testing.T) {
		for in, want := range map[string]toggle{"": toggleAuto, "auto": toggleAuto, "ON": toggleOn, " off ": toggleOff} {
			got, err := parseToggle("ui", in)
			if err != nil || got != want {
				t.Errorf("parseToggle(%q) = %d, %v", in, got, err)
			}
		}
		if _, err := parseToggle("color", "always"); err == nil || !strings.Contains(err.Error(), "--color") {
			t.Errorf("parseToggle accepted an unknown value: %v", err)
		}
		never := func() bool { return false }
		always := func() bool { return true }
		if !toggleOn.resolve(never) || toggleOff.resolve(always) {
			t.Error("explicit values must ignore auto")
		}
		if !toggleAuto.resolve(always) || toggleAuto.resolve(never) {
			t.Error("auto must follow the terminal check")
		}
	})
	t.Run("mode", func(t *testing.T) {
		tests := []struct {
			in   string
			want emit.ModeSet
		}{
			{"", emit.NewModeSet(emit.Hosted)},
			{"freestanding", emit.NewModeSet(emit.Freestanding)},
			{"both", emit.NewModeSet(emit.Hosted, emit.Freestanding)},
		}
		for _, tt := range tests {
			cfg := gate.Default()
			if err := applyModeFlag(&cfg, tt.in); err != nil {
				t.Fatalf("applyModeFlag(%q): %v", tt.in, err)
			}
			if cfg.Modes() != tt.want {
				t.Errorf("applyModeFlag(%q) modes = %s, want %s", tt.in, cfg.Modes(), tt.want)
			}
		}
		cfg := gate.Default()
		if err := applyModeFlag(&cfg, "kernel"); err == nil {
			t.Error("applyModeFlag accepted an unknown mode")
		}
	})
}
