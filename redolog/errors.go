package redolog

import "errors"

var (
	ErrTruncatedTail = errors.New("redolog: truncated tail record at EOF")
)
