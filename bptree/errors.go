package bptree

import "errors"

var (
	// ErrUnloadable is returned when descent reaches an unloaded child
	// placeholder on a tree with no Loader attached.
	ErrUnloadable = errors.New("bptree: node has no loader")
)
