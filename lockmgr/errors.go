package lockmgr

import "errors"

// ErrLockConflict is returned when a lock is still not grantable after one
// wait and one retry. Deliberately no deadlock detection: two attempts
// separated by one wait is the entire retry policy.
var ErrLockConflict = errors.New("lockmgr: lock conflict")
