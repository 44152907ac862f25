// Package overlay joins the backend's status map with the local sample
// documents for display. The overlay never writes into a sample.
package overlay

import (
	"context"
	"sort"

	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/store"
)

// StageView is the displayed status of one stage.
type StageView struct {
	Stage           labware.StageName
	Status          labware.Status
	MethodsComplete []bool
	Methods         int
	Active          int
}

// Complete reports whether the method at i has finished. Positions the
// backend has not reported are not complete.
func (v StageView) Complete(i int) bool {
	return i >= 0 && i < len(v.MethodsComplete) && v.MethodsComplete[i]
}

// SampleView is one sample as displayed with its status.
type SampleView struct {
	ID      string
	Name    string
	Channel int
	Status  labware.Status
	Known   bool
	Stages  []StageView
}

// Overlay reads the status map held by a store.
type Overlay struct {
	store *store.Store
}

func New(s *store.Store) *Overlay {
	return &Overlay{store: s}
}

// Refresh replaces the whole status map from the backend.
func (o *Overlay) Refresh(ctx context.Context) error {
	return o.store.RefreshStatus(ctx)
}

// StatusOf returns the status of a sample, or a status with
// labware.StatusUnknown and false when the backend has not reported it.
func (o *Overlay) StatusOf(id string) (labware.SampleStatus, bool) {
	status, ok := o.store.Status()[id]
	if !ok {
		return labware.SampleStatus{Status: labware.StatusUnknown}, false
	}
	if status.Status == "" {
		status.Status = labware.StatusUnknown
	}
	return status, true
}

// Join pairs each sample with its status entry. Samples without an entry
// show as unknown.
func (o *Overlay) Join(samples []labware.Sample) []SampleView {
	status := o.store.Status()
	views := make([]SampleView, 0, len(samples))
	for _, sample := range samples {
		entry, ok := status[sample.ID]
		views = append(views, join(sample, entry, ok))
	}
	return views
}

// View joins the store's current samples.
func (o *Overlay) View() []SampleView {
	return o.Join(o.store.Samples())
}

// Stale returns the ids in the status map that match none of samples,
// sorted.
func (o *Overlay) Stale(samples []labware.Sample) []string {
	local := make(map[string]struct{}, len(samples))
	for _, sample := range samples {
		local[sample.ID] = struct{}{}
	}

	var stale []string
	for id := range o.store.Status() {
		if _, ok := local[id]; !ok {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	return stale
}

func join(sample labware.Sample, entry labware.SampleStatus, known bool) SampleView {
	view := SampleView{
		ID:      sample.ID,
		Name:    sample.Name,
		Channel: sample.Channel,
		Status:  labware.StatusUnknown,
		Known:   known,
	}
	if known && entry.Status != "" {
		view.Status = entry.Status
	}

	for _, name := range labware.Stages() {
		sv := StageView{Stage: name, Status: labware.StatusUnknown}
		if ml := sample.Stages[name]; ml != nil {
			sv.Methods = len(ml.Methods)
			sv.Active = len(ml.Active)
		}
		if st, ok := entry.Stages[name]; known && ok {
			if st.Status != "" {
				sv.Status = st.Status
			}
			sv.MethodsComplete = append([]bool(nil), st.MethodsComplete...)
		}
		view.Stages = append(view.Stages, sv)
	}
	return view
}
