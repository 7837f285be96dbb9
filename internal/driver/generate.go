package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/emit"
	"shapegen/internal/goscan"
	"shapegen/internal/logx"
	"shapegen/internal/observ"
	"shapegen/internal/pipeline"
	"shapegen/internal/schema"
	"shapegen/internal/shape"
	"shapegen/internal/source"
)

// Frontend names used in cache keys and logs.
const (
	FrontendGo     = "go"
	FrontendSchema = "schema"
	FrontendIR     = "ir"
)

// GenerateDir derives every annotated declaration of the Go package in dir.
func GenerateDir(ctx context.Context, dir string, opts Options) (*Result, error) {
	if opts.Gate == nil {
		return nil, errors.New("driver: options without a validated gate")
	}
	res := &Result{Files: source.NewFileSetWithBase(dir), Bag: diag.NewBag(opts.MaxDiagnostics)}
	var batch *decl.Batch
	err := opts.Timer.Measure(observ.PhaseScan, func() error {
		start := time.Now()
		pipeline.Emit(opts.Sink, pipeline.Event{Stage: pipeline.StageScan, Status: pipeline.StatusWorking})
		var err error
		batch, err = goscan.New(res.Files, opts.PkgPath).ScanDir(dir, res.Bag)
		pipeline.Emit(opts.Sink, pipeline.Event{Stage: pipeline.StageScan, Status: pipeline.StatusDone, Elapsed: time.Since(start)})
		return err
	})
	if err != nil {
		return nil, err
	}
	res.PkgName, res.PkgPath = batch.PkgName, batch.PkgPath
	logx.L().Debug("scanned package", zap.String("dir", dir), zap.String("pkg", batch.PkgPath),
		zap.Int("decls", len(batch.Decls)), zap.Int("annotated", len(batch.Annotated())))
	if res.PkgName == "" {
		return res, nil
	}
	return res, opts.finish(ctx, res, FrontendGo, batch, nil)
}

// GenerateSchema derives the types of a TOML or YAML schema file. The
// outputs also include the Go declarations of the schema types.
func GenerateSchema(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.Gate == nil {
		return nil, errors.New("driver: options without a validated gate")
	}
	res := &Result{Files: source.NewFileSet(), Bag: diag.NewBag(opts.MaxDiagnostics)}
	var s *schema.Schema
	err := opts.Timer.Measure(observ.PhaseScan, func() error {
		var err error
		s, err = schema.Load(res.Files, path, res.Bag)
		return err
	})
	if err != nil || s == nil {
		return res, err
	}
	batch, err := s.Batch(res.Bag)
	if err != nil {
		return nil, err
	}
	if opts.PkgPath != "" {
		for _, d := range batch.Decls {
			d.PkgPath = opts.PkgPath
		}
		batch = decl.NewBatch(opts.PkgPath, batch.PkgName, batch.Decls)
	}
	res.PkgName, res.PkgPath = batch.PkgName, batch.PkgPath
	return res, opts.finish(ctx, res, FrontendSchema, batch, s.Declarations())
}

// GenerateIR derives descriptions read from an IR file written by Dump.
func GenerateIR(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.Gate == nil {
		return nil, errors.New("driver: options without a validated gate")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ir, err := shape.Decode(f)
	if err != nil {
		return nil, err
	}
	res := &Result{PkgName: ir.PkgName, PkgPath: ir.PkgPath, Files: source.NewFileSet(), Bag: diag.NewBag(opts.MaxDiagnostics)}
	idx := opts.Timer.Begin(observ.PhaseDerive)
	res.Types, err = DeriveDescriptions(ctx, ir.Types, opts)
	opts.Timer.End(idx, fmt.Sprintf("%d types", len(ir.Types)))
	if err != nil {
		return nil, err
	}
	res.Bag.Merge(collect(res.Types, opts.MaxDiagnostics))
	return res, opts.renderInto(res, nil)
}

// Dump scans dir, extracts every annotated declaration and writes the
// descriptions as an IR file to w. Declarations that fail extraction are
// reported in the result and left out of the IR.
func Dump(ctx context.Context, dir string, w io.Writer, opts Options) (*Result, error) {
	res := &Result{Files: source.NewFileSetWithBase(dir), Bag: diag.NewBag(opts.MaxDiagnostics)}
	batch, err := goscan.New(res.Files, opts.PkgPath).ScanDir(dir, res.Bag)
	if err != nil {
		return nil, err
	}
	res.PkgName, res.PkgPath = batch.PkgName, batch.PkgPath
	var tds []*shape.TypeDescription
	for _, d := range batch.Annotated() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		td, err := shape.Extract(d, batch)
		if err != nil {
			res.Bag.AddError(err)
			continue
		}
		tds = append(tds, td)
	}
	if err := shape.Encode(w, batch.PkgPath, batch.PkgName, tds); err != nil {
		return nil, fmt.Errorf("write IR: %w", err)
	}
	return res, nil
}

// finish derives and renders a scanned batch, going through the disk cache
// when one is configured. Only runs without error diagnostics are cached.
func (o *Options) finish(ctx context.Context, res *Result, frontend string, batch *decl.Batch, decls []*emit.Unit) error {
	var (
		key    Digest
		cached = o.Cache != nil && !res.HasErrors()
	)
	if cached {
		var err error
		if key, err = CacheKey(o.Gate, frontend, batch.PkgPath, res.Files.Files()); err != nil {
			return err
		}
		payload, hit, err := o.Cache.Get(key)
		if err != nil {
			logx.L().Warn("disk cache read failed", zap.Error(err))
		}
		if hit {
			logx.L().Debug("disk cache hit", zap.Stringer("key", key))
			res.Outputs, res.Stale, res.Cached = payload.Outputs, payload.Stale, true
			return nil
		}
	}

	idx := o.Timer.Begin(observ.PhaseDerive)
	results, err := Derive(ctx, batch, *o)
	o.Timer.End(idx, fmt.Sprintf("%d types", len(results)))
	if err != nil {
		return err
	}
	res.Types = results
	res.Bag.Merge(collect(results, o.MaxDiagnostics))
	if err := o.renderInto(res, decls); err != nil {
		return err
	}

	if cached && !res.HasErrors() {
		payload := &CachePayload{PkgName: res.PkgName, PkgPath: res.PkgPath, Outputs: res.Outputs, Stale: res.Stale}
		if err := o.Cache.Put(key, payload); err != nil {
			logx.L().Warn("disk cache write failed", zap.Error(err))
		}
	}
	return nil
}

func (o *Options) renderInto(res *Result, decls []*emit.Unit) error {
	return o.Timer.Measure(observ.PhaseRender, func() error {
		start := time.Now()
		pipeline.Emit(o.Sink, pipeline.Event{Stage: pipeline.StageRender, Status: pipeline.StatusWorking})
		outs, stale, err := render(res.PkgName, o.Gate, res.Types, decls)
		if err != nil {
			pipeline.Emit(o.Sink, pipeline.Event{Stage: pipeline.StageRender, Status: pipeline.StatusError, Err: err})
			return err
		}
		res.Outputs, res.Stale = outs, stale
		pipeline.Emit(o.Sink, pipeline.Event{Stage: pipeline.StageRender, Status: pipeline.StatusDone, Elapsed: time.Since(start)})
		return nil
	})
}
