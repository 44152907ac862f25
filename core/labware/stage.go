package labware

import "fmt"

// StageName identifies one of the two fixed pipeline phases of a sample.
type StageName string

const (
	StagePrep   StageName = "prep"
	StageInject StageName = "inject"
)

// Stages returns both stage names in execution order.
func Stages() []StageName {
	return []StageName{StagePrep, StageInject}
}

// ParseStage validates a stage name.
func ParseStage(name string) (StageName, error) {
	switch StageName(name) {
	case StagePrep, StageInject:
		return StageName(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
}

// Status is the backend's execution status vocabulary for samples, stages,
// methods and tasks.
type Status string

const (
	StatusInactive  Status = "inactive"
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusError     Status = "error"
	StatusPartial   Status = "partially complete"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

// Known reports whether s belongs to the status vocabulary.
func (s Status) Known() bool {
	switch s {
	case StatusInactive, StatusPending, StatusActive, StatusError, StatusPartial,
		StatusFailed, StatusCompleted, StatusCancelled, StatusUnknown:
		return true
	}
	return false
}

// Incomplete reports whether a task in this status may be resubmitted.
func (s Status) Incomplete() bool {
	return s == StatusPending || s == StatusError
}
