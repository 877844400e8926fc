// Package lockmgr implements the resource lock table: S/X locks over an
// opaque resource identifier, a fixed grant matrix, and a deliberately
// simple wait-once-retry-once-then-fail policy with no deadlock detection.
package lockmgr

import (
	"sync"
	"time"

	"github.com/zhukovaskychina/reldb-core/logger"
)

// Mode is the lock type requested or held.
type Mode int

const (
	ShareLock Mode = iota
	ExclusiveLock
)

// holder is one granted lock entry.
type holder struct {
	xid  int64
	mode Mode
}

// Manager is the global lock table, guarded by one mutex covering every
// grant/release decision.
type Manager struct {
	mu      sync.Mutex
	cond    *sync.Cond
	holders map[string][]holder

	// WaitTimeout is the fixed sleep between the first failed attempt
	// and its single retry.
	WaitTimeout time.Duration
}

func New(waitTimeout time.Duration) *Manager {
	m := &Manager{
		holders:     make(map[string][]holder),
		WaitTimeout: waitTimeout,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// canGrantLocked implements the grant matrix:
//
//	held \ requested |  S                                   |  X
//	(free)            |  grant                               |  grant
//	S                 |  grant                                |  grant only if requester is the sole holder (upgrade)
//	X                 |  grant only if requester is the sole holder | deny
func (m *Manager) canGrantLocked(resource string, xid int64, mode Mode) bool {
	hs := m.holders[resource]
	if len(hs) == 0 {
		return true
	}
	// Re-entrant same-xid acquisition: if the only holders are this xid,
	// any request is an upgrade/no-op and is granted.
	soleRequester := true
	for _, h := range hs {
		if h.xid != xid {
			soleRequester = false
			break
		}
	}
	if soleRequester {
		return true
	}
	if mode == ExclusiveLock {
		return false // some other xid holds it; X is exclusive
	}
	// requesting S: grant only if no other holder holds X
	for _, h := range hs {
		if h.xid != xid && h.mode == ExclusiveLock {
			return false
		}
	}
	return true
}

// Acquire attempts to grant mode on resource to xid. On contention it
// sleeps WaitTimeout and retries exactly once; a second failure returns
// ErrLockConflict.
func (m *Manager) Acquire(resource string, xid int64, mode Mode) error {
	m.mu.Lock()
	if m.tryGrantLocked(resource, xid, mode) {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	time.Sleep(m.WaitTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tryGrantLocked(resource, xid, mode) {
		return nil
	}
	logger.Debugf("lockmgr: xid %d conflict on %s (mode %v)", xid, resource, mode)
	return ErrLockConflict
}

// tryGrantLocked appends one new holder entry per granted acquisition —
// holders is a multiset, so the same xid can appear more than once when
// it acquires the same resource repeatedly (e.g. an upgrade from S to
// X), and each acquisition must be balanced by its own Release.
func (m *Manager) tryGrantLocked(resource string, xid int64, mode Mode) bool {
	if !m.canGrantLocked(resource, xid, mode) {
		return false
	}
	m.holders[resource] = append(m.holders[resource], holder{xid: xid, mode: mode})
	return true
}

// Release removes one holder entry belonging to xid on resource —
// nested acquisitions require one Release per Acquire. When no entries
// remain the resource entry is removed entirely.
func (m *Manager) Release(resource string, xid int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hs := m.holders[resource]
	for i, h := range hs {
		if h.xid == xid {
			hs = append(hs[:i], hs[i+1:]...)
			break
		}
	}
	if len(hs) == 0 {
		delete(m.holders, resource)
	} else {
		m.holders[resource] = hs
	}
}

// ReleaseAll drops every lock held by xid — used on commit/abort.
func (m *Manager) ReleaseAll(xid int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for resource, hs := range m.holders {
		out := hs[:0]
		for _, h := range hs {
			if h.xid != xid {
				out = append(out, h)
			}
		}
		if len(out) == 0 {
			delete(m.holders, resource)
		} else {
			m.holders[resource] = out
		}
	}
}

// Holds reports whether xid currently holds mode (or stronger) on resource.
func (m *Manager) Holds(resource string, xid int64, mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.holders[resource] {
		if h.xid == xid && (h.mode == mode || h.mode == ExclusiveLock) {
			return true
		}
	}
	return false
}
