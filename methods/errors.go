package methods

import "errors"

// Sentinel errors for method-definition lookups and field validation.
var (
	ErrUnknownMethod = errors.New("unknown method")
	ErrUnknownField  = errors.New("unknown field")
	ErrInvalidValue  = errors.New("invalid field value")
	ErrEmptyName     = errors.New("method name is empty")
	ErrInvalidSchema = errors.New("invalid method schema")
)
