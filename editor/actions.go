package editor

import (
	"context"
	"fmt"
	"slices"

	"github.com/goccy/go-json"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lh-manager/workbench/backend"
	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/selection"
)

// RunSample asks the backend to execute the given stages of a sample, or
// both stages when none are given.
func (e *Editor) RunSample(ctx context.Context, sampleID string, stages ...labware.StageName) (*Submission, error) {
	sample, err := e.lookup(ctx, "run_sample", sampleID)
	if err != nil {
		return nil, err
	}
	for _, stage := range stages {
		if _, err := labware.ParseStage(string(stage)); err != nil {
			return nil, e.invalid(ctx, &EditError{Op: "run_sample", SampleID: sampleID, Stage: stage, Index: selection.NoMethod, Err: err})
		}
	}
	if len(stages) == 0 {
		stages = labware.Stages()
	}

	ref := backend.RefOf(sample)
	return e.submit(ctx, "run_sample", sampleID, func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.RunSample(ctx, ref, stages)
	}), nil
}

// RunMethod asks the backend to execute one method of the editable
// pipeline. The method must already have a backend id.
func (e *Editor) RunMethod(ctx context.Context, sampleID string, stage labware.StageName, index int) (*Submission, error) {
	const op = "run_method"
	sample, err := e.lookup(ctx, op, sampleID)
	if err != nil {
		return nil, err
	}
	ml, err := sample.Stage(stage)
	if err == nil {
		err = checkIndex(index, len(ml.Methods))
	}
	if err == nil && ml.Methods[index].ID == nil {
		err = ErrMethodNotSubmitted
	}
	if err != nil {
		return nil, e.invalid(ctx, &EditError{Op: op, SampleID: sampleID, Stage: stage, Index: index, Err: err})
	}

	ref := backend.RefOf(sample)
	methodID := *ml.Methods[index].ID
	return e.submit(ctx, op, sampleID, func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.RunMethod(ctx, ref, stage, methodID)
	}), nil
}

// ResubmitAllTasks resubmits the pending and failed tasks of an active
// method. It returns a nil submission when there is nothing to resubmit.
func (e *Editor) ResubmitAllTasks(ctx context.Context, sampleID string, stage labware.StageName, activeIndex int) (*Submission, error) {
	const op = "resubmit_all_tasks"
	sample, err := e.lookup(ctx, op, sampleID)
	if err != nil {
		return nil, err
	}
	ml, err := sample.Stage(stage)
	if err == nil {
		err = checkIndex(activeIndex, len(ml.Active))
	}
	if err != nil {
		return nil, e.invalid(ctx, &EditError{Op: op, SampleID: sampleID, Stage: stage, Index: activeIndex, Err: err})
	}

	var tasks []json.RawMessage
	for _, task := range ml.Active[activeIndex].Tasks {
		if task.Status == labware.StatusPending || task.Status == labware.StatusError {
			tasks = append(tasks, slices.Clone(task.Task))
		}
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	return e.submit(ctx, op, sampleID, func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.ResubmitTasks(ctx, tasks)
	}), nil
}

// ResubmitTask resubmits a single task record.
func (e *Editor) ResubmitTask(ctx context.Context, task labware.TaskContainer) (*Submission, error) {
	if len(task.Task) == 0 {
		return nil, fmt.Errorf("resubmit task %s: empty task payload", task.ID)
	}
	payload := []json.RawMessage{slices.Clone(task.Task)}
	return e.submit(ctx, "resubmit_task", "", func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.ResubmitTasks(ctx, payload)
	}), nil
}

// CancelTask cancels a single task record.
func (e *Editor) CancelTask(ctx context.Context, task labware.TaskContainer, opts backend.CancelOptions) (*Submission, error) {
	if len(task.Task) == 0 {
		return nil, fmt.Errorf("cancel task %s: empty task payload", task.ID)
	}
	payload := []json.RawMessage{slices.Clone(task.Task)}
	return e.submit(ctx, "cancel_task", "", func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.CancelTasks(ctx, payload, opts)
	}), nil
}

// ExplodeStage asks the backend to expand a stage's methods into their
// constituent steps.
func (e *Editor) ExplodeStage(ctx context.Context, sampleID string, stage labware.StageName) (*Submission, error) {
	if _, err := e.lookup(ctx, "explode_stage", sampleID); err != nil {
		return nil, err
	}
	if _, err := labware.ParseStage(string(stage)); err != nil {
		return nil, e.invalid(ctx, &EditError{Op: "explode_stage", SampleID: sampleID, Stage: stage, Index: selection.NoMethod, Err: err})
	}
	return e.submit(ctx, "explode_stage", sampleID, func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.ExplodeStage(ctx, sampleID, stage)
	}), nil
}

func (e *Editor) ArchiveAndRemoveSample(ctx context.Context, sampleID string) (*Submission, error) {
	if _, err := e.lookup(ctx, "archive_and_remove_sample", sampleID); err != nil {
		return nil, err
	}
	return e.submit(ctx, "archive_and_remove_sample", sampleID, func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.ArchiveAndRemoveSample(ctx, sampleID)
	}), nil
}

func (e *Editor) RemoveSample(ctx context.Context, sampleID string) (*Submission, error) {
	if _, err := e.lookup(ctx, "remove_sample", sampleID); err != nil {
		return nil, err
	}
	return e.submit(ctx, "remove_sample", sampleID, func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.RemoveSample(ctx, sampleID)
	}), nil
}

// DuplicateSample asks the backend for a copy of the sample. A nil channel
// keeps the original's channel.
func (e *Editor) DuplicateSample(ctx context.Context, sampleID string, channel *int) (*Submission, error) {
	if _, err := e.lookup(ctx, "duplicate_sample", sampleID); err != nil {
		return nil, err
	}
	return e.submit(ctx, "duplicate_sample", sampleID, func(ctx context.Context) (*structpb.Struct, error) {
		return e.backend.DuplicateSample(ctx, sampleID, channel)
	}), nil
}

func (e *Editor) lookup(ctx context.Context, op, sampleID string) (labware.Sample, error) {
	sample, ok := e.store.Find(sampleID)
	if !ok {
		return labware.Sample{}, e.invalid(ctx, &EditError{Op: op, SampleID: sampleID, Index: selection.NoMethod, Err: ErrNotFound})
	}
	return sample, nil
}
