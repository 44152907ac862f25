// Package store holds the workbench's authoritative local copy of the sample
// list, the backend status overlay and the method definitions.
//
// Every refresh replaces its collection wholesale; nothing from the backend
// is patched in incrementally. Readers always get independent copies, so a
// caller editing a returned sample never changes what other readers see.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lh-manager/workbench/backend"
	"github.com/lh-manager/workbench/bus"
	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/methods"
	"github.com/lh-manager/workbench/observability"
)

const (
	EventSamplesReplaced observability.EventType = "store.samples_replaced"
	EventStatusReplaced  observability.EventType = "store.status_replaced"
	EventMethodsReplaced observability.EventType = "store.methods_replaced"
	EventRefreshFailed   observability.EventType = "store.refresh_failed"
)

// TopicRevision carries a Revision after every replacement.
const TopicRevision = "store.revision"

// Store is safe for concurrent use.
type Store struct {
	backend   backend.Backend
	registry  *methods.Registry
	observer  observability.Observer
	logger    *slog.Logger
	revisions *bus.Topic[Revision]

	mu        sync.RWMutex
	samples   []labware.Sample
	index     map[string]int
	nChannels int
	status    labware.SampleStatusMap
	revision  uint64
}

// New creates an empty store reading from b.
func New(b backend.Backend, opts ...Option) *Store {
	s := &Store{
		backend:  b,
		registry: methods.NewRegistry(),
		observer: observability.NoOpObserver{},
		logger:   slog.Default(),
		index:    map[string]int{},
		status:   labware.SampleStatusMap{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh fetches the sample list and replaces the local copy. On failure
// the local copy is left untouched.
func (s *Store) Refresh(ctx context.Context) error {
	list, err := s.backend.FetchSamples(ctx)
	if err != nil {
		s.refreshFailed(ctx, "samples", err)
		return fmt.Errorf("refresh samples: %w", err)
	}
	s.Replace(ctx, list)
	return nil
}

// RefreshStatus fetches the status overlay and replaces the local copy.
func (s *Store) RefreshStatus(ctx context.Context) error {
	status, err := s.backend.FetchSampleStatus(ctx)
	if err != nil {
		s.refreshFailed(ctx, "status", err)
		return fmt.Errorf("refresh sample status: %w", err)
	}
	s.ReplaceStatus(ctx, status)
	return nil
}

// RefreshMethodDefs fetches the method definitions into the registry.
func (s *Store) RefreshMethodDefs(ctx context.Context) error {
	defs, err := s.backend.FetchMethodDefinitions(ctx)
	if err != nil {
		s.refreshFailed(ctx, "methods", err)
		return fmt.Errorf("refresh method definitions: %w", err)
	}
	if err := s.registry.Replace(defs); err != nil {
		s.refreshFailed(ctx, "methods", err)
		return fmt.Errorf("refresh method definitions: %w", err)
	}

	rev := s.bump(RevisionMethods)
	observability.Emit(ctx, s.observer, observability.Event{
		Type:   EventMethodsReplaced,
		Level:  observability.LevelVerbose,
		Source: "store",
		Data:   map[string]any{"methods": len(defs), "revision": rev.Number},
	})
	s.publish(ctx, rev)
	return nil
}

// Replace installs list as the sample collection. The store takes ownership
// of list.
func (s *Store) Replace(ctx context.Context, list labware.SampleList) {
	index := make(map[string]int, len(list.Samples))
	for i, sample := range list.Samples {
		if _, dup := index[sample.ID]; dup {
			s.logger.WarnContext(ctx, "duplicate sample id in list", slog.String("sample_id", sample.ID))
			continue
		}
		index[sample.ID] = i
	}

	s.mu.Lock()
	s.samples = list.Samples
	s.index = index
	s.nChannels = list.NChannels
	s.revision++
	rev := Revision{Kind: RevisionSamples, Number: s.revision}
	s.mu.Unlock()

	observability.Emit(ctx, s.observer, observability.Event{
		Type:   EventSamplesReplaced,
		Level:  observability.LevelVerbose,
		Source: "store",
		Data:   map[string]any{"samples": len(list.Samples), "revision": rev.Number},
	})
	s.publish(ctx, rev)
}

// ReplaceStatus installs status as the overlay. The store takes ownership of
// status.
func (s *Store) ReplaceStatus(ctx context.Context, status labware.SampleStatusMap) {
	if status == nil {
		status = labware.SampleStatusMap{}
	}

	s.mu.Lock()
	s.status = status
	s.revision++
	rev := Revision{Kind: RevisionStatus, Number: s.revision}
	s.mu.Unlock()

	observability.Emit(ctx, s.observer, observability.Event{
		Type:   EventStatusReplaced,
		Level:  observability.LevelVerbose,
		Source: "store",
		Data:   map[string]any{"entries": len(status), "revision": rev.Number},
	})
	s.publish(ctx, rev)
}

// Find returns an independent copy of the sample with the given id.
func (s *Store) Find(id string) (labware.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return labware.Sample{}, false
	}
	return s.clone(i)
}

// At returns an independent copy of the sample at position i of the list.
func (s *Store) At(i int) (labware.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.samples) {
		return labware.Sample{}, false
	}
	return s.clone(i)
}

// IndexOf returns the list position of the sample, or -1.
func (s *Store) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// Samples returns copies of all samples in list order.
func (s *Store) Samples() []labware.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]labware.Sample, 0, len(s.samples))
	for i := range s.samples {
		if c, ok := s.clone(i); ok {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Status returns a copy of the status overlay.
func (s *Store) Status() labware.SampleStatusMap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone, err := s.status.Clone()
	if err != nil {
		s.logger.Error("clone status overlay", slog.String("error", err.Error()))
		return labware.SampleStatusMap{}
	}
	return clone
}

func (s *Store) ChannelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nChannels
}

// Methods returns the method-definition registry. It is shared, not copied.
func (s *Store) Methods() *methods.Registry {
	return s.registry
}

func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Revisions is the topic revisions are published on, or nil when the store
// was built without a bus.
func (s *Store) Revisions() *bus.Topic[Revision] {
	return s.revisions
}

// clone copies sample i. Callers hold mu.
func (s *Store) clone(i int) (labware.Sample, bool) {
	c, err := s.samples[i].Clone()
	if err != nil {
		s.logger.Error("clone sample", slog.String("sample_id", s.samples[i].ID), slog.String("error", err.Error()))
		return labware.Sample{}, false
	}
	return c, true
}

func (s *Store) bump(kind RevisionKind) Revision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	return Revision{Kind: kind, Number: s.revision}
}

func (s *Store) publish(ctx context.Context, rev Revision) {
	if s.revisions != nil {
		s.revisions.Publish(ctx, "store", rev)
	}
}

func (s *Store) refreshFailed(ctx context.Context, what string, err error) {
	observability.Emit(ctx, s.observer, observability.Event{
		Type:   EventRefreshFailed,
		Level:  observability.LevelWarning,
		Source: "store",
		Data:   map[string]any{"collection": what, "error": err.Error()},
	})
}
