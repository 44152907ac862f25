package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/editor"
	"github.com/lh-manager/workbench/store"
	"github.com/lh-manager/workbench/workspace"
)

type request struct {
	sampleID string
	stage    string
	method   string
	index    int
	to       int
}

type action func(ctx context.Context, ws *workspace.Workspace, req request) error

var actions = map[string]action{
	"status":        status,
	"watch":         watch,
	"add-method":    addMethod,
	"remove-method": removeMethod,
	"move-method":   moveMethod,
	"copy-method":   copyMethod,
	"reuse-method":  reuseMethod,
	"run-sample":    runSample,
	"run-method":    runMethod,
}

func actionNames() string {
	return strings.Join(slices.Sorted(maps.Keys(actions)), ", ")
}

func status(ctx context.Context, ws *workspace.Workspace, _ request) error {
	if err := ws.RefreshAll(ctx); err != nil {
		return err
	}
	printStatus(ws)
	return nil
}

// watch prints the sample table whenever the store is replaced, until
// interrupted.
func watch(ctx context.Context, ws *workspace.Workspace, _ request) error {
	sub := ws.Store().Revisions().Subscribe("cli")
	defer func() { _ = ws.Store().Revisions().Unsubscribe(sub.ID) }()

	go func() {
		for {
			env, err := sub.Receive(ctx)
			if err != nil {
				return
			}
			if env.Data.Kind != store.RevisionMethods {
				fmt.Printf("\n-- revision %d (%s) --\n", env.Data.Number, env.Data.Kind)
				printStatus(ws)
			}
		}
	}()

	return ws.Run(ctx)
}

func addMethod(ctx context.Context, ws *workspace.Workspace, req request) error {
	if req.method == "" {
		return errors.New("-method is required")
	}
	return edit(ctx, ws, req, func(stage labware.StageName) (*editor.Submission, error) {
		return ws.Editor().AddMethod(ctx, req.sampleID, stage, req.method)
	})
}

func removeMethod(ctx context.Context, ws *workspace.Workspace, req request) error {
	return edit(ctx, ws, req, func(stage labware.StageName) (*editor.Submission, error) {
		return ws.Editor().RemoveMethod(ctx, req.sampleID, stage, req.index)
	})
}

func moveMethod(ctx context.Context, ws *workspace.Workspace, req request) error {
	return edit(ctx, ws, req, func(stage labware.StageName) (*editor.Submission, error) {
		return ws.Editor().MoveMethod(ctx, req.sampleID, stage, req.index, req.to)
	})
}

func copyMethod(ctx context.Context, ws *workspace.Workspace, req request) error {
	return edit(ctx, ws, req, func(stage labware.StageName) (*editor.Submission, error) {
		return ws.Editor().CopyMethod(ctx, req.sampleID, stage, req.index)
	})
}

func reuseMethod(ctx context.Context, ws *workspace.Workspace, req request) error {
	return edit(ctx, ws, req, func(stage labware.StageName) (*editor.Submission, error) {
		return ws.Editor().ReuseMethod(ctx, req.sampleID, stage, req.index)
	})
}

func runSample(ctx context.Context, ws *workspace.Workspace, req request) error {
	var stages []labware.StageName
	if req.stage != "" {
		stage, err := labware.ParseStage(req.stage)
		if err != nil {
			return err
		}
		stages = append(stages, stage)
	}
	if err := ws.Store().Refresh(ctx); err != nil {
		return err
	}
	sub, err := ws.Editor().RunSample(ctx, req.sampleID, stages...)
	if err != nil {
		return err
	}
	return await(ctx, ws, sub)
}

func runMethod(ctx context.Context, ws *workspace.Workspace, req request) error {
	return edit(ctx, ws, req, func(stage labware.StageName) (*editor.Submission, error) {
		return ws.Editor().RunMethod(ctx, req.sampleID, stage, req.index)
	})
}

// edit loads the current documents, applies one editor operation, waits for
// the backend and prints the refreshed stage.
func edit(ctx context.Context, ws *workspace.Workspace, req request, op func(labware.StageName) (*editor.Submission, error)) error {
	if req.sampleID == "" {
		return errors.New("-sample is required")
	}
	stage, err := labware.ParseStage(req.stage)
	if err != nil {
		return err
	}
	if err := ws.RefreshAll(ctx); err != nil {
		return err
	}

	sub, err := op(stage)
	if err != nil {
		return err
	}
	if sub == nil {
		fmt.Println("nothing to submit")
		return nil
	}
	if err := await(ctx, ws, sub); err != nil {
		return err
	}

	sample, ok := ws.Store().Find(req.sampleID)
	if !ok {
		return nil
	}
	ml, err := sample.Stage(stage)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s:\n", sample.Name, stage)
	for i, m := range ml.Methods {
		fmt.Printf("  [%d] %s\n", i, methodLabel(m))
	}
	return nil
}

func await(ctx context.Context, ws *workspace.Workspace, sub *editor.Submission) error {
	ack, err := sub.Wait(ctx)
	if err != nil {
		return err
	}
	if ack != nil {
		fmt.Printf("acknowledged: %v\n", ack.AsMap())
	}
	return ws.Store().Refresh(ctx)
}

func printStatus(ws *workspace.Workspace) {
	views := ws.Overlay().View()
	if len(views) == 0 {
		fmt.Println("no samples")
	}
	for _, v := range views {
		fmt.Printf("%-36s  %-24s  ch %d  %s\n", v.ID, v.Name, v.Channel, v.Status)
		for _, sv := range v.Stages {
			done := 0
			for _, c := range sv.MethodsComplete {
				if c {
					done++
				}
			}
			fmt.Printf("    %-6s  %-18s  %d methods, %d active, %d complete\n", sv.Stage, sv.Status, sv.Methods, sv.Active, done)
		}
	}
	if stale := ws.Overlay().Stale(ws.Store().Samples()); len(stale) > 0 {
		fmt.Printf("status for unknown samples: %s\n", strings.Join(stale, ", "))
	}
}

func methodLabel(m labware.Method) string {
	label := m.MethodName
	if m.DisplayName != "" && m.DisplayName != m.MethodName {
		label = fmt.Sprintf("%s (%s)", m.DisplayName, m.MethodName)
	}
	if m.ID == nil {
		label += " [unsaved]"
	}
	return label
}
