package heap

import "errors"

var (
	// ErrNotFound is returned by GetOne/UpdateOne/DeleteOne for a
	// location whose slot is tombstoned or out of range.
	ErrNotFound = errors.New("heap: location not found")
)
