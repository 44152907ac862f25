package picking

import "errors"

var (
	ErrNoActiveField = errors.New("no field is awaiting a pick")
	ErrFieldMissing  = errors.New("armed field no longer exists")
	ErrInvalidTarget = errors.New("invalid pick target")
)
