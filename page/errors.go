package page

import "errors"

// Sentinel errors: plain errors.New values, wrapped with a typed
// *PageError carrying the failing operation for callers that want
// errors.Is/errors.As behavior.
var (
	ErrFull            = errors.New("page: full")
	ErrSlotNotFound    = errors.New("page: slot not found")
	ErrSlotNotNormal   = errors.New("page: slot is not in NORMAL state")
	ErrPageCorrupted   = errors.New("page: corrupted page content")
	ErrInvalidPageSize = errors.New("page: invalid serialized page size")
)

// PageError wraps a sentinel with the operation that produced it.
type PageError struct {
	Op  string
	Err error
}

func (e *PageError) Error() string { return "page: " + e.Op + ": " + e.Err.Error() }
func (e *PageError) Unwrap() error { return e.Err }

func newErr(op string, err error) error {
	return &PageError{Op: op, Err: err}
}
