package protocol

import "errors"

var (
	ErrIncomplete = errors.New("protocol: incomplete frame")
	ErrMalformed  = errors.New("protocol: malformed frame")
)
