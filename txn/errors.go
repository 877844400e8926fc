package txn

import "errors"

var (
	// ErrUnknownXid is returned by Commit/Abort/PerformUndo for an xid that
	// was never started (or has already completed) in this manager.
	ErrUnknownXid = errors.New("txn: unknown xid")
)
