package labware

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"
)

// StageStatus is the backend-derived status of one stage.
type StageStatus struct {
	Status          Status `json:"status,omitempty"`
	MethodsComplete []bool `json:"methods_complete,omitempty"`
}

// SampleStatus is the backend-derived status of one sample.
type SampleStatus struct {
	Status Status                    `json:"status"`
	Stages map[StageName]StageStatus `json:"stages"`
}

// SampleStatusMap is the status overlay keyed by sample id. It is owned by
// the backend and always replaced wholesale.
type SampleStatusMap map[string]SampleStatus

// Clone returns a deep copy of the map.
func (m SampleStatusMap) Clone() (SampleStatusMap, error) {
	if m == nil {
		return SampleStatusMap{}, nil
	}
	out := make(SampleStatusMap, len(m))
	if err := deepcopy.Copy(&out, &m); err != nil {
		return nil, fmt.Errorf("clone status map: %w", err)
	}
	return out, nil
}
