package picking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lh-manager/workbench/backend"
	"github.com/lh-manager/workbench/bus"
	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/editor"
	"github.com/lh-manager/workbench/picking"
	"github.com/lh-manager/workbench/store"
)

type fixture struct {
	mem    *backend.Memory
	store  *store.Store
	editor *editor.Editor
	bus    *bus.Bus
	ctrl   *picking.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	transfer := labware.NewMethod("Transfer")
	transfer.SetField(labware.FieldSource, labware.NullValue())
	transfer.SetField(labware.FieldTarget, labware.NullValue())
	sleep := labware.NewMethod("NCNR_Sleep")
	sleep.SetField("sleep_time", labware.NumberValue(5))

	sample := labware.NewSample("s1", "first")
	ml, _ := sample.Stage(labware.StagePrep)
	ml.Methods = []labware.Method{transfer, sleep}

	mem := backend.NewMemory(sample)
	s := store.New(mem)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	ed := editor.New(s, mem, nil, editor.DefaultConfig())
	b := bus.New(bus.DefaultConfig())
	t.Cleanup(b.Close)

	return &fixture{mem: mem, store: s, editor: ed, bus: b, ctrl: picking.New(s, ed, b.WellPicked)}
}

func (f *fixture) field(t *testing.T, index int, name string) labware.Value {
	t.Helper()
	if err := f.store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	sample, _ := f.store.Find("s1")
	ml, _ := sample.Stage(labware.StagePrep)
	v, _ := ml.Methods[index].Field(name)
	return v
}

func TestHandlePick_WritesArmedField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := labware.WellLocation{RackID: "Stock", WellNumber: 3}

	if err := f.ctrl.Arm(ctx, picking.Target{SampleID: "s1", Stage: labware.StagePrep, MethodIndex: 0, Field: labware.FieldTarget}); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	if got := f.ctrl.State(); got != picking.StateAwaiting {
		t.Fatalf("State() = %s, want awaiting", got)
	}
	if got := f.editor.Selection().Snapshot().WellField; got != labware.FieldTarget {
		t.Errorf("selected well field = %q, want Target", got)
	}

	sub, err := f.ctrl.HandlePick(ctx, loc)
	if err != nil {
		t.Fatalf("HandlePick() error = %v", err)
	}
	if _, err := sub.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if got := f.ctrl.State(); got != picking.StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
	got, ok := f.field(t, 0, labware.FieldTarget).AsWell()
	if !ok || got != loc {
		t.Errorf("Target field = %+v, want %+v", got, loc)
	}
	if last, ok := f.ctrl.LastTarget(); !ok || last != loc {
		t.Errorf("LastTarget() = %+v, %v", last, ok)
	}
	if _, ok := f.ctrl.LastSource(); ok {
		t.Error("LastSource() set by a Target pick")
	}
	if got := f.editor.Selection().Snapshot().WellField; got != "" {
		t.Errorf("selected well field = %q after pick, want empty", got)
	}
}

func TestHandlePick_Idle(t *testing.T) {
	f := newFixture(t)
	before := len(f.mem.Calls())

	_, err := f.ctrl.HandlePick(context.Background(), labware.WellLocation{RackID: "Stock", WellNumber: 1})
	if !errors.Is(err, picking.ErrNoActiveField) {
		t.Fatalf("HandlePick() error = %v, want ErrNoActiveField", err)
	}
	if got := len(f.mem.Calls()); got != before {
		t.Errorf("backend calls = %d, want %d", got, before)
	}
	if len(f.mem.Submissions()) != 0 {
		t.Error("idle pick submitted a document")
	}
}

func TestHandlePick_FieldMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.ctrl.Arm(ctx, picking.Target{SampleID: "s1", Stage: labware.StagePrep, MethodIndex: 1, Field: labware.FieldSource}); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	_, err := f.ctrl.HandlePick(ctx, labware.WellLocation{RackID: "Stock", WellNumber: 1})
	if !errors.Is(err, picking.ErrFieldMissing) {
		t.Fatalf("HandlePick() error = %v, want ErrFieldMissing", err)
	}
	if got := f.ctrl.State(); got != picking.StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
	if len(f.mem.Submissions()) != 0 {
		t.Error("discarded pick submitted a document")
	}
}

func TestArm_ReplacesTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := picking.Target{SampleID: "s1", Stage: labware.StagePrep, MethodIndex: 0, Field: labware.FieldSource}
	second := picking.Target{SampleID: "s1", Stage: labware.StagePrep, MethodIndex: 0, Field: labware.FieldTarget}

	if err := f.ctrl.Arm(ctx, first); err != nil {
		t.Fatalf("Arm(first) error = %v", err)
	}
	if err := f.ctrl.Arm(ctx, second); err != nil {
		t.Fatalf("Arm(second) error = %v", err)
	}
	got, ok := f.ctrl.Target()
	if !ok {
		t.Fatal("Target() not armed")
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("Target() mismatch (-want +got):\n%s", diff)
	}

	if err := f.ctrl.Disarm(ctx); err != nil {
		t.Fatalf("Disarm() error = %v", err)
	}
	if _, ok := f.ctrl.Target(); ok {
		t.Error("Target() still armed after Disarm")
	}
	if err := f.ctrl.Disarm(ctx); err != nil {
		t.Errorf("Disarm() while idle error = %v", err)
	}
}

func TestArm_InvalidTarget(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		target picking.Target
	}{
		{"not a well field", picking.Target{SampleID: "s1", Stage: labware.StagePrep, Field: "Volume"}},
		{"no sample", picking.Target{Stage: labware.StagePrep, Field: labware.FieldSource}},
		{"negative index", picking.Target{SampleID: "s1", Stage: labware.StagePrep, MethodIndex: -1, Field: labware.FieldSource}},
		{"unknown stage", picking.Target{SampleID: "s1", Stage: "wash", Field: labware.FieldSource}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ctrl.Arm(context.Background(), tt.target)
			if !errors.Is(err, picking.ErrInvalidTarget) {
				t.Errorf("Arm() error = %v, want ErrInvalidTarget", err)
			}
			if got := f.ctrl.State(); got != picking.StateIdle {
				t.Errorf("State() = %s, want idle", got)
			}
		})
	}
}

func TestRun_ConsumesWellPicked(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.bus.WellPicked.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("controller never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	if err := f.ctrl.Arm(ctx, picking.Target{SampleID: "s1", Stage: labware.StagePrep, MethodIndex: 0, Field: labware.FieldSource}); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	loc := labware.WellLocation{RackID: "Mix", WellNumber: 7}
	if n := f.bus.WellPicked.Publish(ctx, "deck", loc); n != 1 {
		t.Fatalf("Publish() delivered to %d subscribers, want 1", n)
	}

	for len(f.mem.Submissions()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("pick was never submitted")
		}
		time.Sleep(time.Millisecond)
	}
	if err := f.editor.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if got, _ := f.field(t, 0, labware.FieldSource).AsWell(); got != loc {
		t.Errorf("Source field = %+v, want %+v", got, loc)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
