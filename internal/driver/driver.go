// Package driver runs the derivation pipeline: it takes declarations from a
// frontend, derives every requested capability per enabled mode, and renders
// the generated files.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shapegen/internal/attr"
	"shapegen/internal/capability"
	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/emit"
	"shapegen/internal/gate"
	"shapegen/internal/logx"
	"shapegen/internal/observ"
	"shapegen/internal/pipeline"
	"shapegen/internal/shape"
	"shapegen/internal/source"
)

// Options configure a run.
type Options struct {
	// Gate is the validated configuration. Required.
	Gate *gate.Gate
	// Jobs bounds the declarations derived concurrently; <= 0 uses
	// GOMAXPROCS.
	Jobs int
	// MaxDiagnostics caps each declaration's diagnostics.
	MaxDiagnostics int
	// PkgPath overrides the import path derived from go.mod.
	PkgPath string
	Sink    pipeline.ProgressSink
	Cache   *DiskCache
	Timer   *observ.Timer
}

func (o *Options) jobs(n int) int {
	jobs := o.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return max(1, min(jobs, n))
}

// TypeResult is the outcome for one annotated declaration.
type TypeResult struct {
	Name string
	// Desc is nil when extraction failed.
	Desc *shape.TypeDescription
	// Units holds the emitted units per mode, in derive order. A
	// capability is missing from a mode when a user error dropped it there.
	Units map[emit.Mode][]*emit.Unit
	// Dropped maps each requested capability that failed to the enabled
	// modes it produced no code for.
	Dropped map[string]emit.ModeSet
	Bag     *diag.Bag
}

// DroppedIn reports whether capability produced no code in mode.
func (r *TypeResult) DroppedIn(capability string, mode emit.Mode) bool {
	return r.Dropped[capability].Has(mode)
}

func (r *TypeResult) drop(capability string, modes ...emit.Mode) {
	if r.Dropped == nil {
		r.Dropped = make(map[string]emit.ModeSet)
	}
	r.Dropped[capability] |= emit.NewModeSet(modes...)
}

// Result is everything a run produced.
type Result struct {
	PkgName string
	PkgPath string
	Files   *source.FileSet
	Bag     *diag.Bag
	Types   []TypeResult
	Outputs []Output
	// Stale lists generated file names of enabled outputs that came out
	// empty; Write removes them.
	Stale  []string
	Cached bool
}

// HasErrors reports whether any error diagnostic was produced.
func (r *Result) HasErrors() bool { return r.Bag != nil && r.Bag.HasErrors() }

// Derive runs the per-declaration pipeline over every annotated
// declaration of batch. Declarations are independent and run in parallel;
// results keep declaration order. The returned error is fatal (an internal
// invariant violation or cancellation); user errors are diagnostics.
func Derive(ctx context.Context, batch *decl.Batch, opts Options) ([]TypeResult, error) {
	decls := batch.Annotated()
	results := make([]TypeResult, len(decls))
	if len(decls) == 0 {
		return results, nil
	}
	for _, d := range decls {
		pipeline.Emit(opts.Sink, pipeline.Event{Item: d.Name, Stage: pipeline.StageExtract, Status: pipeline.StatusQueued})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs(len(decls)))
	for i, d := range decls {
		i, d := i, d
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w := worker{opts: &opts, env: opts.Gate.Env(batch)}
			res, err := w.declaration(d, batch)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DeriveDescriptions derives already extracted descriptions, as loaded
// from an IR file.
func DeriveDescriptions(ctx context.Context, tds []*shape.TypeDescription, opts Options) ([]TypeResult, error) {
	lookup := descLookup(tds)
	results := make([]TypeResult, len(tds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs(len(tds)))
	for i, td := range tds {
		i, td := i, td
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w := worker{opts: &opts, env: opts.Gate.Env(lookup)}
			res := TypeResult{Name: td.Name, Bag: diag.NewBag(opts.MaxDiagnostics)}
			err := w.describe(td, &res)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// descLookup rebuilds the declarations the resolver consults from IR:
// the kind, derive list and directives of each described type matter there.
func descLookup(tds []*shape.TypeDescription) *decl.Batch {
	decls := make([]*decl.Decl, 0, len(tds))
	pkgPath, pkgName := "", ""
	for _, td := range tds {
		pkgPath, pkgName = td.PkgPath, td.PkgName
		kind := decl.KindStruct
		switch td.Shape.Kind {
		case shape.Tuple:
			kind = decl.KindTuple
		case shape.Sum:
			kind = decl.KindSum
		}
		decls = append(decls, &decl.Decl{Name: td.Name, Kind: kind, Derive: td.Derive, Directives: td.Directives, Annotated: true, Span: td.Span})
	}
	return decl.NewBatch(pkgPath, pkgName, decls)
}

type worker struct {
	opts *Options
	env  capability.Env
}

func (w *worker) event(item string, stage pipeline.Stage, status pipeline.Status, start time.Time) {
	evt := pipeline.Event{Item: item, Stage: stage, Status: status}
	if !start.IsZero() {
		evt.Elapsed = time.Since(start)
	}
	pipeline.Emit(w.opts.Sink, evt)
}

func (w *worker) declaration(d *decl.Decl, batch *decl.Batch) (TypeResult, error) {
	res := TypeResult{Name: d.Name, Bag: diag.NewBag(w.opts.MaxDiagnostics)}
	start := time.Now()
	w.event(d.Name, pipeline.StageExtract, pipeline.StatusWorking, time.Time{})
	td, err := shape.Extract(d, batch)
	if err != nil {
		w.reject(&res, d.Derive, err)
		w.event(d.Name, pipeline.StageExtract, pipeline.StatusError, start)
		return res, nil
	}
	return res, w.describe(td, &res)
}

// reject records a user error that drops every requested capability in
// every mode.
func (w *worker) reject(res *TypeResult, derive []decl.Arg, err error) {
	res.Bag.AddError(err)
	for _, a := range derive {
		res.drop(a.Key, w.opts.Gate.Modes()...)
	}
	logx.L().Debug("declaration rejected", zap.String("type", res.Name), zap.Error(err))
}

// describe interprets, resolves and emits every capability of td for every
// enabled mode. Each (capability, mode) pair succeeds or fails on its own.
func (w *worker) describe(td *shape.TypeDescription, res *TypeResult) error {
	res.Desc = td
	start := time.Now()
	w.event(td.Name, pipeline.StageDerive, pipeline.StatusWorking, time.Time{})

	caps, opts, ok := w.interpret(td, res)
	if !ok {
		w.event(td.Name, pipeline.StageDerive, pipeline.StatusError, start)
		return nil
	}

	res.Units = make(map[emit.Mode][]*emit.Unit)
	for _, mode := range w.opts.Gate.Modes() {
		var built []*emit.Unit
		for _, a := range w.resolveMode(td, caps, opts, mode, res) {
			u, err := w.emit(a)
			if err != nil {
				return fmt.Errorf("%s: %w", td.Name, err)
			}
			built = append(built, u)
		}
		if len(built) > 0 {
			res.Units[mode] = built
		}
	}

	status := pipeline.StatusDone
	if res.Bag.HasErrors() {
		status = pipeline.StatusError
	}
	w.event(td.Name, pipeline.StageDerive, status, start)
	return nil
}

// interpret validates directive verbs and the enabled set, then runs the
// attribute interpreter once per requested capability. A capability that
// is not enabled or has bad options is dropped alone; ok is false only when
// the declaration's directives are unusable as a whole.
func (w *worker) interpret(td *shape.TypeDescription, res *TypeResult) ([]*capability.Capability, []*attr.Options, bool) {
	if err := attr.CheckVerbs(td, capability.Known); err != nil {
		w.reject(res, td.Derive, err)
		return nil, nil, false
	}
	var (
		caps []*capability.Capability
		opts []*attr.Options
		seen = make(map[string]bool, len(td.Derive))
	)
	for _, arg := range td.Derive {
		if seen[arg.Key] {
			continue
		}
		seen[arg.Key] = true
		c, enabled := w.opts.Gate.Capability(arg.Key)
		if !enabled {
			res.Bag.AddError(&diag.CapabilityError{
				Code:       diag.CapNotEnabled,
				Capability: arg.Key,
				Loc:        diag.At(td.Name, arg.Span),
				Rule:       "capability is not enabled in " + gate.ConfigFileName,
			})
			res.drop(arg.Key, w.opts.Gate.Modes()...)
			continue
		}
		o, err := attr.Interpret(td, c.Name, c.Schema)
		if err != nil {
			res.Bag.AddError(err)
			res.drop(c.Name, w.opts.Gate.Modes()...)
			continue
		}
		caps = append(caps, c)
		opts = append(opts, o)
	}
	return caps, opts, true
}

// resolveMode resolves every capability for mode and returns the approvals
// of those that succeeded. A failure drops only that capability in mode.
func (w *worker) resolveMode(td *shape.TypeDescription, caps []*capability.Capability, opts []*attr.Options, mode emit.Mode, res *TypeResult) []*emit.Approval {
	approvals := make([]*emit.Approval, 0, len(caps))
	for i, c := range caps {
		a, err := capability.Resolve(td, opts[i], c, mode, w.env)
		if err != nil {
			res.Bag.AddError(err)
			res.drop(c.Name, mode)
			logx.L().Debug("capability rejected",
				zap.String("type", td.Name), zap.String("capability", c.Name), zap.Stringer("mode", mode), zap.Error(err))
			continue
		}
		approvals = append(approvals, a)
	}
	return approvals
}

// emit builds one unit. An internal invariant violation raised by the
// emitter is recovered here and returned as a fatal error; any other panic
// propagates.
func (w *worker) emit(a *emit.Approval) (u *emit.Unit, err error) {
	defer func() {
		if r := recover(); r != nil {
			iv, ok := r.(*diag.InternalInvariantViolation)
			if !ok {
				panic(r)
			}
			err = iv
		}
	}()
	c, ok := capability.Lookup(a.Capability)
	if !ok {
		panic(&diag.InternalInvariantViolation{Type: a.Type.Name, Capability: a.Capability, Mode: a.Mode.String(), Detail: "approved capability is not registered"})
	}
	b := emit.NewBuilder(a, w.opts.Gate.Config().Output.Meta)
	c.Emit(b)
	u = b.Unit()
	logx.L().Debug("emitted",
		zap.String("type", a.Type.Name), zap.String("capability", a.Capability), zap.Stringer("mode", a.Mode),
		zap.Int("fragments", len(u.Fragments())))
	return u, nil
}

// IsFatal reports whether err ended a run rather than a declaration.
func IsFatal(err error) bool {
	var iv *diag.InternalInvariantViolation
	return errors.As(err, &iv)
}

// collect merges per-declaration bags in declaration order.
func collect(results []TypeResult, max int) *diag.Bag {
	bag := diag.NewBag(max)
	for _, r := range results {
		bag.Merge(r.Bag)
	}
	bag.Dedup()
	return bag
}

// unitsFor returns every unit of mode in declaration order.
func unitsFor(results []TypeResult, mode emit.Mode) []*emit.Unit {
	var out []*emit.Unit
	for _, r := range results {
		out = append(out, r.Units[mode]...)
	}
	return slices.Clip(out)
}
