package labware

import "errors"

// Sentinel errors for document access.
var (
	ErrUnknownStage = errors.New("unknown stage")
	ErrMissingStage = errors.New("sample is missing stage")
)
