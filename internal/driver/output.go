package driver

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"shapegen/internal/emit"
	"shapegen/internal/gate"
	"shapegen/internal/goscan"
	"shapegen/internal/logx"
)

// Output is one rendered file.
type Output struct {
	Name    string    `msgpack:"name"`
	Mode    emit.Mode `msgpack:"mode"` // zero for type declarations
	Content []byte    `msgpack:"content"`
}

// OutputName returns the generated file name for mode. The zero mode
// names the type declarations file of schema runs.
func OutputName(prefix string, mode emit.Mode) string {
	if mode == 0 {
		return prefix + "types" + goscan.GeneratedSuffix
	}
	return prefix + mode.String() + goscan.GeneratedSuffix
}

// render prints one file per enabled mode with at least one unit, plus the
// declarations file when decls is non-empty. Enabled modes without units
// are reported as stale.
func render(pkgName string, g *gate.Gate, results []TypeResult, decls []*emit.Unit) ([]Output, []string, error) {
	prefix := g.Config().Output.Prefix
	var (
		outs  []Output
		stale []string
	)
	if len(decls) > 0 {
		src, err := emit.Render(emit.File{Package: pkgName, Units: decls})
		if err != nil {
			return nil, nil, err
		}
		outs = append(outs, Output{Name: OutputName(prefix, 0), Content: src})
	}
	for _, mode := range g.Modes() {
		name := OutputName(prefix, mode)
		units := unitsFor(results, mode)
		if len(units) == 0 {
			stale = append(stale, name)
			continue
		}
		src, err := emit.Render(emit.File{Package: pkgName, Mode: mode, Units: units})
		if err != nil {
			return nil, nil, fmt.Errorf("render %s: %w", name, err)
		}
		outs = append(outs, Output{Name: name, Mode: mode, Content: src})
	}
	return outs, stale, nil
}

// Write stores the outputs in dir and removes stale generated files. Files
// whose content is unchanged are left untouched. It returns the paths
// written or removed.
func (r *Result) Write(dir string) ([]string, error) {
	var touched []string
	for _, out := range r.Outputs {
		path := filepath.Join(dir, out.Name)
		if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, out.Content) {
			continue
		}
		if err := writeAtomic(path, out.Content); err != nil {
			return touched, fmt.Errorf("write %s: %w", path, err)
		}
		logx.L().Debug("wrote", zap.String("path", path), zap.Int("bytes", len(out.Content)))
		touched = append(touched, path)
	}
	for _, name := range r.Stale {
		path := filepath.Join(dir, name)
		removed, err := removeGenerated(path)
		if err != nil {
			return touched, err
		}
		if removed {
			touched = append(touched, path)
		}
	}
	return touched, nil
}

func writeAtomic(path string, content []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".shapegen-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Chmod(0o644); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// removeGenerated deletes path only when it carries the generated banner.
func removeGenerated(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !bytes.HasPrefix(content, []byte(emit.Banner)) {
		logx.L().Warn("not removing hand-written file", zap.String("path", path))
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}
