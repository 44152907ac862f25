package backend

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lh-manager/workbench/core/labware"
)

// Call records one request received by a Memory backend.
type Call struct {
	Op      string
	Payload any
}

// Memory is an in-process Backend. Documents are stored as independent
// copies and every submission replaces the stored sample wholesale, so the
// last submission received wins.
type Memory struct {
	mu sync.Mutex

	samples   []labware.Sample
	nChannels int
	status    labware.SampleStatusMap
	defs      map[string]labware.MethodDef

	submissions []labware.Sample
	calls       []Call
	failure     error
}

var _ Backend = (*Memory)(nil)

func NewMemory(samples ...labware.Sample) *Memory {
	m := &Memory{
		nChannels: 1,
		status:    labware.SampleStatusMap{},
		defs:      map[string]labware.MethodDef{},
	}
	for _, s := range samples {
		m.samples = append(m.samples, mustClone(s))
	}
	return m
}

// SetSamples replaces the stored sample list.
func (m *Memory) SetSamples(samples []labware.Sample, nChannels int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = make([]labware.Sample, 0, len(samples))
	for _, s := range samples {
		m.samples = append(m.samples, mustClone(s))
	}
	m.nChannels = nChannels
}

func (m *Memory) SetStatus(status labware.SampleStatusMap) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone, err := status.Clone()
	if err != nil {
		panic(err)
	}
	m.status = clone
}

func (m *Memory) SetMethodDefinitions(defs map[string]labware.MethodDef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs = maps.Clone(defs)
}

// Fail makes every subsequent call return err wrapped in ErrUnavailable.
// Fail(nil) restores normal operation.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Sample returns a copy of the stored sample.
func (m *Memory) Sample(id string) (labware.Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(id); i >= 0 {
		return mustClone(m.samples[i]), true
	}
	return labware.Sample{}, false
}

// Submissions returns every document received by SubmitSample, in order.
func (m *Memory) Submissions() []labware.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]labware.Sample, 0, len(m.submissions))
	for _, s := range m.submissions {
		out = append(out, mustClone(s))
	}
	return out
}

// Calls returns the log of requests, in order.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *Memory) FetchSamples(ctx context.Context) (labware.SampleList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "fetch samples", nil); err != nil {
		return labware.SampleList{}, err
	}
	list := labware.SampleList{Samples: make([]labware.Sample, 0, len(m.samples)), NChannels: m.nChannels}
	for _, s := range m.samples {
		list.Samples = append(list.Samples, mustClone(s))
	}
	return list, nil
}

func (m *Memory) FetchSampleStatus(ctx context.Context) (labware.SampleStatusMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "fetch sample status", nil); err != nil {
		return nil, err
	}
	return m.status.Clone()
}

func (m *Memory) FetchMethodDefinitions(ctx context.Context) (map[string]labware.MethodDef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "fetch method definitions", nil); err != nil {
		return nil, err
	}
	return maps.Clone(m.defs), nil
}

func (m *Memory) SubmitSample(ctx context.Context, sample labware.Sample) (*structpb.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := mustClone(sample)
	if err := m.begin(ctx, "update sample", doc); err != nil {
		return nil, err
	}
	m.submissions = append(m.submissions, doc)

	if doc.ID == "" {
		return rejected(NewAck(map[string]any{"error": "no id in sample, can't update or add"}))
	}
	if i := m.indexOf(doc.ID); i >= 0 {
		m.samples[i] = mustClone(doc)
		return NewAck(map[string]any{"sample updated": doc.ID}), nil
	}
	m.samples = append(m.samples, mustClone(doc))
	return NewAck(map[string]any{"sample added": doc.ID}), nil
}

func (m *Memory) RunSample(ctx context.Context, ref SampleRef, stages []labware.StageName) (*structpb.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stages == nil {
		stages = labware.Stages()
	}
	if err := m.begin(ctx, "run sample", runSampleRequest{SampleRef: ref, Stage: stages}); err != nil {
		return nil, err
	}
	if m.indexOf(ref.ID) < 0 {
		return rejected(errorResult("sample not found"))
	}
	return successResult(), nil
}

func (m *Memory) RunMethod(ctx context.Context, ref SampleRef, stage labware.StageName, methodID string) (*structpb.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "run method", runMethodRequest{SampleRef: ref, Stage: stage, MethodID: methodID}); err != nil {
		return nil, err
	}
	if m.indexOf(ref.ID) < 0 {
		return rejected(errorResult("sample not found"))
	}
	return successResult(), nil
}

func (m *Memory) ResubmitTasks(ctx context.Context, tasks []json.RawMessage) (*structpb.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "resubmit tasks", tasksRequest{Tasks: slices.Clone(tasks)}); err != nil {
		return nil, err
	}
	return successResult(), nil
}

func (m *Memory) CancelTasks(ctx context.Context, tasks []json.RawMessage, opts CancelOptions) (*structpb.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload := cancelRequest{
		Tasks:              slices.Clone(tasks),
		IncludeActiveQueue: opts.IncludeActiveQueue,
		DropMaterial:       opts.DropMaterial,
	}
	if err := m.begin(ctx, "cancel tasks", payload); err != nil {
		return nil, err
	}
	return successResult(), nil
}

func (m *Memory) ExplodeStage(ctx context.Context, sampleID string, stage labware.StageName) (*structpb.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "explode sample", explodeRequest{ID: sampleID, Stage: stage}); err != nil {
		return nil, err
	}
	if m.indexOf(sampleID) < 0 {
		return rejected(NewAck(map[string]any{"error": "sample not found, can't explode"}))
	}
	return NewAck(map[string]any{"sample exploded": sampleID}), nil
}

func (m *Memory) ArchiveAndRemoveSample(ctx context.Context, sampleID string) (*structpb.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "archive and remove sample", idRequest{ID: sampleID}); err != nil {
		return nil, err
	}
	i := m.indexOf(sampleID)
	if i < 0 {
		return rejected(NewAck(map[string]any{"error": "sample not found, can't archive"}))
	}
	m.samples = slices.Delete(m.samples, i, i+1)
	return NewAck(map[string]any{"sample archived and removed": sampleID}), nil
}

func (m *Memory) RemoveSample(ctx context.Context, sampleID string) (*structpb.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "remove sample", idRequest{ID: sampleID}); err != nil {
		return nil, err
	}
	i := m.indexOf(sampleID)
	if i < 0 {
		return rejected(NewAck(map[string]any{"error": "sample not found, can't delete"}))
	}
	m.samples = slices.Delete(m.samples, i, i+1)
	delete(m.status, sampleID)
	return NewAck(map[string]any{"sample removed": sampleID}), nil
}

// DuplicateSample inserts a copy after the original with a fresh id, a
// unique name and every stage reset to its editable methods.
func (m *Memory) DuplicateSample(ctx context.Context, sampleID string, channel *int) (*structpb.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "duplicate sample", duplicateRequest{ID: sampleID, Channel: channel}); err != nil {
		return nil, err
	}
	i := m.indexOf(sampleID)
	if i < 0 {
		return rejected(NewAck(map[string]any{"error": "sample not found, can't duplicate"}))
	}

	dup := mustClone(m.samples[i])
	dup.ID = uuid.NewString()
	if channel != nil && m.nChannels > 0 {
		dup.Channel = *channel % m.nChannels
	}
	for m.nameTaken(dup.Name) {
		dup.Name += " copy"
	}
	for name, stage := range dup.Stages {
		dup.Stages[name] = &labware.MethodList{Methods: stage.Methods, Active: []labware.Method{}}
	}

	m.samples = slices.Insert(m.samples, i+1, dup)
	return NewAck(map[string]any{"sample duplicated": dup.ID}), nil
}

// begin records the call and applies the configured failure. Callers hold mu.
func (m *Memory) begin(ctx context.Context, op string, payload any) error {
	m.calls = append(m.calls, Call{Op: op, Payload: payload})
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}
	if m.failure != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, m.failure)
	}
	return nil
}

func (m *Memory) indexOf(id string) int {
	return slices.IndexFunc(m.samples, func(s labware.Sample) bool { return s.ID == id })
}

func (m *Memory) nameTaken(name string) bool {
	return slices.ContainsFunc(m.samples, func(s labware.Sample) bool { return s.Name == name })
}

func rejected(ack *structpb.Struct) (*structpb.Struct, error) {
	return ack, CheckAck(ack)
}

func successResult() *structpb.Struct {
	return NewAck(map[string]any{"result": "success", "message": "success"})
}

func errorResult(message string) *structpb.Struct {
	return NewAck(map[string]any{"result": "error", "message": message})
}

func mustClone(s labware.Sample) labware.Sample {
	clone, err := s.Clone()
	if err != nil {
		panic(err)
	}
	return clone
}
