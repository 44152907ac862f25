package editor

import (
	"context"
	"fmt"
	"slices"

	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/selection"
)

// AddMethod appends a method carrying only its name to the stage and selects
// it. Names unknown to the loaded method definitions are refused.
func (e *Editor) AddMethod(ctx context.Context, sampleID string, stage labware.StageName, methodName string) (*Submission, error) {
	return e.edit(ctx, "add_method", sampleID, stage, selection.NoMethod, func(_ *labware.Sample, ml *labware.MethodList) (int, error) {
		if err := e.store.Methods().Known(methodName); err != nil {
			return 0, err
		}
		ml.Methods = append(ml.Methods, labware.NewMethod(methodName))
		return len(ml.Methods) - 1, nil
	})
}

// RemoveMethod deletes the method at index and selects the new last method.
// An index outside the pipeline is an error and nothing is submitted.
func (e *Editor) RemoveMethod(ctx context.Context, sampleID string, stage labware.StageName, index int) (*Submission, error) {
	return e.edit(ctx, "remove_method", sampleID, stage, index, func(_ *labware.Sample, ml *labware.MethodList) (int, error) {
		if err := checkIndex(index, len(ml.Methods)); err != nil {
			return 0, err
		}
		ml.Methods = slices.Delete(ml.Methods, index, index+1)
		return len(ml.Methods) - 1, nil
	})
}

// MoveMethod relocates the method at from to position to, keeping the order
// of the others. A target outside the pipeline makes the call a no-op that
// returns a nil submission and no error.
func (e *Editor) MoveMethod(ctx context.Context, sampleID string, stage labware.StageName, from, to int) (*Submission, error) {
	n, err := e.NumberOfMethods(sampleID, stage)
	if err != nil {
		return nil, e.invalid(ctx, &EditError{Op: "move_method", SampleID: sampleID, Stage: stage, Index: from, Err: err})
	}
	if to < 0 || to >= n {
		return nil, nil
	}

	return e.edit(ctx, "move_method", sampleID, stage, from, func(_ *labware.Sample, ml *labware.MethodList) (int, error) {
		if to >= len(ml.Methods) {
			return noSelectionChange, fmt.Errorf("%w: target %d", ErrIndexOutOfRange, to)
		}
		if err := checkIndex(from, len(ml.Methods)); err != nil {
			return 0, err
		}
		moved := ml.Methods[from]
		ml.Methods = slices.Delete(ml.Methods, from, from+1)
		ml.Methods = slices.Insert(ml.Methods, to, moved)
		return to, nil
	})
}

// CopyMethod inserts a duplicate of the method at index right after it. The
// duplicate has no id, so the backend treats it as new.
func (e *Editor) CopyMethod(ctx context.Context, sampleID string, stage labware.StageName, index int) (*Submission, error) {
	return e.edit(ctx, "copy_method", sampleID, stage, index, func(_ *labware.Sample, ml *labware.MethodList) (int, error) {
		if err := checkIndex(index, len(ml.Methods)); err != nil {
			return 0, err
		}
		dup, err := ml.Methods[index].Clone()
		if err != nil {
			return 0, err
		}
		dup.ID = nil
		ml.Methods = slices.Insert(ml.Methods, index+1, dup)
		return index + 1, nil
	})
}

// ReuseMethod appends a copy of an already submitted method, taken from the
// stage's active list, to the editable pipeline. The copy has no id, no task
// history and status inactive. The active list is not modified.
func (e *Editor) ReuseMethod(ctx context.Context, sampleID string, stage labware.StageName, activeIndex int) (*Submission, error) {
	return e.edit(ctx, "reuse_method", sampleID, stage, activeIndex, func(_ *labware.Sample, ml *labware.MethodList) (int, error) {
		if err := checkIndex(activeIndex, len(ml.Active)); err != nil {
			return 0, err
		}
		reused, err := ml.Active[activeIndex].Clone()
		if err != nil {
			return 0, err
		}
		reused.ID = nil
		reused.Tasks = []labware.TaskContainer{}
		reused.Status = labware.StatusInactive
		ml.Methods = append(ml.Methods, reused)
		return len(ml.Methods) - 1, nil
	})
}

// NumberOfMethods returns the length of the stage's editable pipeline.
func (e *Editor) NumberOfMethods(sampleID string, stage labware.StageName) (int, error) {
	sample, ok := e.store.Find(sampleID)
	if !ok {
		return 0, ErrNotFound
	}
	ml, err := sample.Stage(stage)
	if err != nil {
		return 0, err
	}
	return len(ml.Methods), nil
}
