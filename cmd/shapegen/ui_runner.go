package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"shapegen/internal/driver"
	"shapegen/internal/pipeline"
	"shapegen/internal/ui"
)

// runFunc runs one generation, reporting progress to sink.
type runFunc func(ctx context.Context, sink pipeline.ProgressSink) (*driver.Result, error)

type runOutcome struct {
	result *driver.Result
	err    error
}

// runWithUI runs fn while a Bubble Tea progress view renders its events on
// stderr. Quitting the view early cancels the run.
func runWithUI(ctx context.Context, title string, fn runFunc) (*driver.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan runOutcome, 1)
	go func() {
		res, err := fn(ctx, pipeline.ChannelSink{Ch: events})
		close(events)
		outcomeCh <- runOutcome{result: res, err: err}
	}()

	model := ui.NewProgressModel(title, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	cancel()
	// The run may still be sending when the view quit early.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if outcome.err != nil {
		return outcome.result, outcome.err
	}
	return outcome.result, uiErr
}
