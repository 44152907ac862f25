package labware

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tiendc/go-deepcopy"
)

// Sample is the full document for one sample. Stages always holds exactly
// the prep and inject keys once decoded or constructed with NewSample.
type Sample struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	Description     string                    `json:"description"`
	Channel         int                       `json:"channel"`
	Stages          map[StageName]*MethodList `json:"stages"`
	NICEUUID        *string                   `json:"NICE_uuid"`
	NICESlotID      *int                      `json:"NICE_slotID"`
	CurrentContents string                    `json:"current_contents"`
}

// NewSample creates a sample with both stages present and empty.
func NewSample(id, name string) Sample {
	s := Sample{ID: id, Name: name}
	s.ensureStages()
	return s
}

func (s *Sample) ensureStages() {
	if s.Stages == nil {
		s.Stages = make(map[StageName]*MethodList, 2)
	}
	for _, name := range Stages() {
		if s.Stages[name] == nil {
			s.Stages[name] = &MethodList{Methods: []Method{}, Active: []Method{}}
		}
	}
}

// Stage returns the named stage for in-place editing.
func (s *Sample) Stage(name StageName) (*MethodList, error) {
	if _, err := ParseStage(string(name)); err != nil {
		return nil, err
	}
	stage, ok := s.Stages[name]
	if !ok || stage == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrMissingStage, s.ID, name)
	}
	return stage, nil
}

// Clone returns a deep, independent copy of the sample.
func (s Sample) Clone() (Sample, error) {
	var out Sample
	if err := deepcopy.Copy(&out, &s); err != nil {
		return Sample{}, fmt.Errorf("clone sample %s: %w", s.ID, err)
	}
	return out, nil
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	type plain Sample
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = Sample(decoded)
	s.ensureStages()
	return nil
}

// SampleList is the backend's sample collection as returned by a fetch.
type SampleList struct {
	Samples   []Sample `json:"samples"`
	NChannels int      `json:"n_channels"`
}
