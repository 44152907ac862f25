package workspace_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lh-manager/workbench/backend"
	"github.com/lh-manager/workbench/core/config"
	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/observability"
	"github.com/lh-manager/workbench/picking"
	"github.com/lh-manager/workbench/workspace"
)

func quickConfig() *workspace.Config {
	cfg := workspace.DefaultConfig()
	cfg.Refresh = workspace.RefreshConfig{
		SamplesInterval: config.Duration(5 * time.Millisecond),
		StatusInterval:  config.Duration(5 * time.Millisecond),
		MethodsInterval: config.Duration(5 * time.Millisecond),
		MaxBackoff:      config.Duration(20 * time.Millisecond),
	}
	return &cfg
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNew_Errors(t *testing.T) {
	cfg := workspace.DefaultConfig()
	cfg.Backend.BaseURL = "ftp://lh.local"
	if _, err := workspace.New(&cfg); !errors.Is(err, backend.ErrInvalidURL) {
		t.Errorf("New(ftp) error = %v, want ErrInvalidURL", err)
	}

	cfg = workspace.DefaultConfig()
	cfg.Observer = "nonexistent"
	if _, err := workspace.New(&cfg); !errors.Is(err, observability.ErrUnknownObserver) {
		t.Errorf("New() with unknown observer error = %v, want ErrUnknownObserver", err)
	}
}

func TestNew_DefaultsToHTTPClient(t *testing.T) {
	ws, err := workspace.New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	client, ok := ws.Backend().(*backend.HTTPClient)
	if !ok {
		t.Fatalf("Backend() = %T, want *backend.HTTPClient", ws.Backend())
	}
	if client.BaseURL() != "http://localhost:5001" {
		t.Errorf("BaseURL() = %q", client.BaseURL())
	}
}

func TestRefreshAll(t *testing.T) {
	mem := backend.NewMemory(labware.NewSample("s1", "first"))
	mem.SetStatus(labware.SampleStatusMap{"s1": {Status: labware.StatusActive}})
	mem.SetMethodDefinitions(map[string]labware.MethodDef{"Transfer": {DisplayName: "Transfer"}})

	ws, err := workspace.New(quickConfig(), workspace.WithBackend(mem), workspace.WithObserver(observability.NoOpObserver{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := ws.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	if ws.Store().Len() != 1 {
		t.Errorf("Len() = %d, want 1", ws.Store().Len())
	}
	if got, _ := ws.Overlay().StatusOf("s1"); got.Status != labware.StatusActive {
		t.Errorf("StatusOf(s1) = %s, want active", got.Status)
	}
	if _, ok := ws.Store().Methods().Get("Transfer"); !ok {
		t.Error("method definitions not loaded")
	}

	mem.Fail(backend.ErrUnavailable)
	if err := ws.RefreshAll(context.Background()); !errors.Is(err, backend.ErrUnavailable) {
		t.Errorf("RefreshAll() error = %v, want ErrUnavailable", err)
	}
	if ws.Store().Len() != 1 {
		t.Error("failed refresh cleared the store")
	}
}

func TestRun(t *testing.T) {
	transfer := labware.NewMethod("Transfer")
	transfer.SetField(labware.FieldSource, labware.NullValue())
	sample := labware.NewSample("s1", "first")
	ml, _ := sample.Stage(labware.StagePrep)
	ml.Methods = []labware.Method{transfer}

	mem := backend.NewMemory(sample)
	ws, err := workspace.New(quickConfig(), workspace.WithBackend(mem), workspace.WithObserver(observability.NoOpObserver{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Run(ctx) }()

	eventually(t, func() bool { return ws.Store().Len() == 1 })

	mem.SetSamples([]labware.Sample{sample, labware.NewSample("s2", "second")}, 4)
	eventually(t, func() bool { return ws.Store().Len() == 2 })

	eventually(t, func() bool { return ws.Bus().WellPicked.Subscribers() == 1 })
	target := picking.Target{SampleID: "s1", Stage: labware.StagePrep, MethodIndex: 0, Field: labware.FieldSource}
	if err := ws.Picking().Arm(ctx, target); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	loc := labware.WellLocation{RackID: "Stock", WellNumber: 2}
	ws.Bus().WellPicked.Publish(ctx, "deck", loc)

	eventually(t, func() bool {
		s, ok := ws.Store().Find("s1")
		if !ok {
			return false
		}
		v, _ := s.Stages[labware.StagePrep].Methods[0].Field(labware.FieldSource)
		got, ok := v.AsWell()
		return ok && got == loc
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
	if err := ws.Close(context.Background()); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
