// Package editor applies structural edits to sample documents and submits
// them to the backend.
//
// Every edit follows the same protocol: the sample is looked up by id and
// copied out of the store, the copy is edited, and the full copy is sent to
// the backend. The store itself is never touched; the edit becomes visible
// only when a later refresh brings the backend's document back. Local
// validation failures are returned synchronously as *EditError; backend
// failures are reported through the returned *Submission.
//
// Submissions carry the whole document and no version token, so two edits
// built from the same snapshot overwrite each other in the order the backend
// applies them.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lh-manager/workbench/backend"
	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/observability"
	"github.com/lh-manager/workbench/selection"
	"github.com/lh-manager/workbench/store"
)

const (
	EventSubmitted    observability.EventType = "editor.submitted"
	EventAcknowledged observability.EventType = "editor.acknowledged"
	EventSubmitFailed observability.EventType = "editor.submit_failed"
	EventInvalid      observability.EventType = "editor.invalid"
)

// Editor is the single entry point for document mutations.
type Editor struct {
	store     *store.Store
	backend   backend.Backend
	selection *selection.Context
	observer  observability.Observer
	logger    *slog.Logger
	timeout   time.Duration

	inflight sync.WaitGroup
}

// Option configures an Editor.
type Option func(*Editor)

func WithObserver(o observability.Observer) Option {
	return func(e *Editor) {
		e.observer = o
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// New creates an editor over s that submits to b and moves sel. A nil sel
// gets a private selection context.
func New(s *store.Store, b backend.Backend, sel *selection.Context, cfg Config, opts ...Option) *Editor {
	c := DefaultConfig()
	c.Merge(&cfg)

	if sel == nil {
		sel = selection.New()
	}

	e := &Editor{
		store:     s,
		backend:   b,
		selection: sel,
		observer:  observability.NoOpObserver{},
		logger:    slog.Default(),
		timeout:   c.SubmitTimeout.Std(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Selection returns the selection context the editor moves.
func (e *Editor) Selection() *selection.Context {
	return e.selection
}

// Drain waits for every submission started by the editor to complete.
func (e *Editor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mutation edits the stage of a private sample copy. It returns the method
// index to select afterwards, or selection.NoMethod.
type mutation func(sample *labware.Sample, stage *labware.MethodList) (int, error)

// edit runs the locate, copy, mutate and submit protocol for one stage.
func (e *Editor) edit(ctx context.Context, op, sampleID string, stageName labware.StageName, index int, mutate mutation) (*Submission, error) {
	sample, ok := e.store.Find(sampleID)
	if !ok {
		return nil, e.invalid(ctx, &EditError{Op: op, SampleID: sampleID, Stage: stageName, Index: index, Err: ErrNotFound})
	}

	stage, err := sample.Stage(stageName)
	if err != nil {
		return nil, e.invalid(ctx, &EditError{Op: op, SampleID: sampleID, Stage: stageName, Index: index, Err: err})
	}

	selected, err := mutate(&sample, stage)
	if err != nil {
		return nil, e.invalid(ctx, &EditError{Op: op, SampleID: sampleID, Stage: stageName, Index: index, Err: err})
	}

	if selected != noSelectionChange {
		e.selection.SelectSample(sampleID)
		e.selection.SelectMethod(stageName, selected)
	}

	return e.submitSample(ctx, op, sample), nil
}

// noSelectionChange leaves the selection as it was.
const noSelectionChange = -2

func (e *Editor) submitSample(ctx context.Context, op string, sample labware.Sample) *Submission {
	return e.submit(ctx, op, sample.ID, func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.SubmitSample(ctx, sample)
	})
}

// submit starts call detached from ctx's cancellation and bounded by the
// submit timeout.
func (e *Editor) submit(ctx context.Context, op, sampleID string, call func(context.Context) (*structpb.Struct, error)) *Submission {
	sub := newSubmission(op, sampleID)

	observability.Emit(ctx, e.observer, observability.Event{
		Type:     EventSubmitted,
		Level:    observability.LevelVerbose,
		Source:   "editor." + op,
		SampleID: sampleID,
		Data:     map[string]any{"submission_id": sub.ID},
	})

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer cancel()

		start := time.Now()
		ack, err := call(callCtx)

		event := observability.Event{
			Type:     EventAcknowledged,
			Level:    observability.LevelInfo,
			Source:   "editor." + op,
			SampleID: sampleID,
			Data: map[string]any{
				"submission_id": sub.ID,
				"elapsed":       time.Since(start).String(),
			},
		}
		if err != nil {
			event.Type = EventSubmitFailed
			event.Level = observability.LevelError
			event.Data["error"] = err.Error()
		}
		observability.Emit(callCtx, e.observer, event)
		sub.complete(ack, err)
	}()

	return sub
}

func (e *Editor) invalid(ctx context.Context, err *EditError) error {
	observability.Emit(ctx, e.observer, observability.Event{
		Type:     EventInvalid,
		Level:    observability.LevelWarning,
		Source:   "editor." + err.Op,
		SampleID: err.SampleID,
		Data:     map[string]any{"error": err.Error()},
	})
	return err
}

func checkIndex(index, length int) error {
	if index < 0 || index >= length {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, length)
	}
	return nil
}
