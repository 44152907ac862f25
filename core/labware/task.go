package labware

import "github.com/goccy/go-json"

// TaskContainer is a backend-owned execution record attached to a submitted
// method. The client reads it to display, resubmit or cancel, and never
// synthesizes one. Task is the opaque execution payload sent back verbatim.
type TaskContainer struct {
	ID       string          `json:"id"`
	Status   Status          `json:"status"`
	Task     json.RawMessage `json:"task"`
	Subtasks json.RawMessage `json:"subtasks,omitempty"`
}
