package editor

import (
	"errors"
	"fmt"

	"github.com/lh-manager/workbench/core/labware"
)

var (
	ErrNotFound           = errors.New("sample not found")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrPathNotFound       = errors.New("path not found")
	ErrReadOnlyField      = errors.New("field is read-only")
	ErrNotWellField       = errors.New("field is not a well location field")
	ErrMethodNotSubmitted = errors.New("method has no backend id")
)

// EditError reports a local validation failure of an editor operation.
// Index is -1 when the operation does not address a method.
type EditError struct {
	Op       string
	SampleID string
	Stage    labware.StageName
	Index    int
	Err      error
}

func (e *EditError) Error() string {
	switch {
	case e.Stage != "" && e.Index >= 0:
		return fmt.Sprintf("%s %s/%s[%d]: %v", e.Op, e.SampleID, e.Stage, e.Index, e.Err)
	case e.Stage != "":
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.SampleID, e.Stage, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, e.SampleID, e.Err)
	}
}

// Unwrap enables errors.Is and errors.As on the cause.
func (e *EditError) Unwrap() error {
	return e.Err
}
