package buffer

import "errors"

var (
	ErrNoSpace   = errors.New("buffer: no unpinned page available to evict")
	ErrNotFound  = errors.New("buffer: page not in pool")
	ErrNotPinned = errors.New("buffer: unpin called on a page with no pins")
)

// PoolError wraps a sentinel with the operation that produced it.
type PoolError struct {
	Op  string
	Err error
}

func (e *PoolError) Error() string { return "buffer: " + e.Op + ": " + e.Err.Error() }
func (e *PoolError) Unwrap() error { return e.Err }

func newErr(op string, err error) error { return &PoolError{Op: op, Err: err} }
