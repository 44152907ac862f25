package backend

import "errors"

var (
	ErrUnavailable = errors.New("backend unavailable")
	ErrRejected    = errors.New("backend rejected request")
	ErrInvalidURL  = errors.New("invalid backend url")
)
