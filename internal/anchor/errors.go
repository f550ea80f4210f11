package anchor

import "errors"

var (
	ErrAlreadyInProgress   = errors.New("anchor operation already in progress")
	ErrNilHandle           = errors.New("nil anchor handle")
	ErrAllocationExhausted = errors.New("short code allocation kept failing")
)
