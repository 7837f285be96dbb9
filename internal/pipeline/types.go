// Package pipeline holds the progress vocabulary shared by the driver and
// the terminal UI.
package pipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageScan reads the package or schema file.
	StageScan Stage = "scan"
	// StageExtract normalizes a declaration into its shape.
	StageExtract Stage = "extract"
	// StageDerive interprets options, resolves and emits capabilities.
	StageDerive Stage = "derive"
	// StageRender prints generated files.
	StageRender Stage = "render"
	// StageWrite writes generated files to disk.
	StageWrite Stage = "write"
)

// Order returns the position of a stage in a run, used for progress.
func (s Stage) Order() int {
	switch s {
	case StageScan:
		return 1
	case StageExtract:
		return 2
	case StageDerive:
		return 3
	case StageRender:
		return 4
	case StageWrite:
		return 5
	default:
		return 0
	}
}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task produced error diagnostics.
	StatusError Status = "error"
)

// Event reports progress for one declaration, or for the whole run when
// Item is empty.
type Event struct {
	Item    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Sinks are called from worker
// goroutines and must be safe for concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// Emit sends evt to sink when one is set.
func Emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}
