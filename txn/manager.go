// Package txn implements the transaction manager: xid allocation,
// begin/commit/abort, the WAL recovery protocol, and checkpointing. It
// is also the shared page-access hub that heap mutates through, since
// every heap mutation must produce exactly one undo and one redo record
// alongside its page write.
package txn

import (
	"sync"
	"time"

	"github.com/zhukovaskychina/reldb-core/buffer"
	"github.com/zhukovaskychina/reldb-core/lockmgr"
	"github.com/zhukovaskychina/reldb-core/logger"
	"github.com/zhukovaskychina/reldb-core/page"
	"github.com/zhukovaskychina/reldb-core/redolog"
	"github.com/zhukovaskychina/reldb-core/storage"
	"github.com/zhukovaskychina/reldb-core/undolog"
)

// InvalidXid is the sentinel for "no current transaction". Callers here pass xid explicitly instead of relying
// on a goroutine-local slot.
const InvalidXid int64 = -1

// Manager owns every shared resource a transaction touches: the buffer
// pool, the redo stream, per-xid undo streams, the lock table, and the
// on-disk relation files.
type Manager struct {
	mu      sync.Mutex // serializes xid allocation
	nextXid int64
	open    map[int64]*undolog.Log

	ckptMu sync.Mutex // serializes checkpoints with each other; mutations do not take it

	Pool  *buffer.Pool
	Redo  *redolog.Log
	Undo  *undolog.Store
	Locks *lockmgr.Manager
	Files *storage.Store

	UseCRC bool
}

// Config bundles Manager construction parameters.
type Config struct {
	DataDir         string
	BufferPoolPages int
	LockWaitTimeout time.Duration
	PageChecksums   bool
}

// Open brings up a Manager against dataDir, running the
// recovery protocol before returning.
func Open(cfg Config) (*Manager, error) {
	redo, err := redolog.Open(cfg.DataDir + "/redo.log")
	if err != nil {
		return nil, err
	}
	undoStore, err := undolog.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		open:   make(map[int64]*undolog.Log),
		Pool:   buffer.NewPool(cfg.BufferPoolPages),
		Redo:   redo,
		Undo:   undoStore,
		Locks:  lockmgr.New(cfg.LockWaitTimeout),
		Files:  storage.NewStore(cfg.DataDir),
		UseCRC: cfg.PageChecksums,
	}
	if err := m.recover(); err != nil {
		return nil, err
	}
	return m, nil
}

// Start assigns a new monotonically increasing xid, guarded by a global
// mutex, and writes BEGIN to both logs.
func (m *Manager) Start() (int64, error) {
	m.mu.Lock()
	m.nextXid++
	xid := m.nextXid
	m.mu.Unlock()

	ul, err := m.Undo.Open(xid)
	if err != nil {
		return 0, err
	}
	if err := ul.Write(undolog.BeginSentinel(xid)); err != nil {
		return 0, err
	}
	if _, err := m.Redo.Write(redolog.Record{Xid: xid, Action: redolog.ActionBegin}); err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.open[xid] = ul
	m.mu.Unlock()
	return xid, nil
}

// Commit appends a COMMIT sentinel to xid's undo log and flushes it,
// writes COMMIT to redo (which forces a redo flush), then discards the
// now-unneeded undo file and releases xid's locks.
func (m *Manager) Commit(xid int64) error {
	m.mu.Lock()
	ul, ok := m.open[xid]
	delete(m.open, xid)
	m.mu.Unlock()
	if !ok {
		return ErrUnknownXid
	}

	if err := ul.Write(undolog.CommitSentinel(xid)); err != nil {
		return err
	}
	if err := ul.Flush(); err != nil {
		return err
	}
	if _, err := m.Redo.Write(redolog.Record{Xid: xid, Action: redolog.ActionCommit}); err != nil {
		return err
	}
	if err := m.Undo.Forget(xid); err != nil {
		return err
	}
	m.Locks.ReleaseAll(xid)
	return nil
}

// Abort appends an ABORT sentinel to xid's undo log, writes ABORT to
// redo, replays xid's undo chain in reverse, then discards the undo file
// and releases locks.
func (m *Manager) Abort(xid int64) error {
	m.mu.Lock()
	ul, ok := m.open[xid]
	delete(m.open, xid)
	m.mu.Unlock()
	if !ok {
		return ErrUnknownXid
	}

	if err := ul.Write(undolog.AbortSentinel(xid)); err != nil {
		return err
	}

	lsn, err := m.Redo.Write(redolog.Record{Xid: xid, Action: redolog.ActionAbort})
	if err != nil {
		return err
	}
	if err := m.PerformUndo(xid, lsn); err != nil {
		return err
	}
	if err := m.Undo.Forget(xid); err != nil {
		return err
	}
	m.Locks.ReleaseAll(xid)
	return nil
}

// UndoLogFor returns xid's undo log for callers (heap) writing
// one undo record per mutation.
func (m *Manager) UndoLogFor(xid int64) (*undolog.Log, error) {
	m.mu.Lock()
	ul, ok := m.open[xid]
	m.mu.Unlock()
	if ok {
		return ul, nil
	}
	return m.Undo.Open(xid) // recovery path: xid not tracked in m.open
}

// PerformUndo replays xid's undo records in reverse, mutating pages in
// the buffer pool, stamping each touched page with lsn and marking it
// dirty.
func (m *Manager) PerformUndo(xid int64, lsn uint64) error {
	ul, err := m.Undo.Open(xid)
	if err != nil {
		return err
	}
	recs, err := ul.ReadReverse()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		switch rec.Action {
		case redolog.ActionBegin, redolog.ActionCommit, redolog.ActionAbort:
			continue
		}
		pg, err := m.FetchPage(rec.Relation, rec.Location.PageNo)
		if err != nil {
			return err
		}
		if err := ApplyMutation(pg, rec.Action, rec.Location, rec.Data); err != nil {
			return err
		}
		pg.SetHeader(lsn, pg.Flags())
		m.Pool.MarkDirty(buffer.Key{Relation: rec.Relation, PageNo: rec.Location.PageNo})
	}
	return nil
}

// ApplyMutation applies the effect of one redo/undo action directly to an
// already-loaded page at its recorded slot. It is shared by recovery
// replay and PerformUndo, since both need the same idempotent
// slot-level operation regardless of whether data is a post-image
// (redo) or inverse payload (undo).
func ApplyMutation(pg *page.Page, action redolog.Action, loc *redolog.Location, data []byte) error {
	switch action {
	case redolog.ActionTableInsert, redolog.ActionIndexInsert:
		// Undoing a DELETE replays as an INSERT against the delete's own
		// location: the slot already exists, tombstoned but with its
		// bytes intact, so restore it rather than appending a new one.
		// A genuine forward redo of an original INSERT targets a slot
		// that does not exist yet and falls through to a real Insert.
		if int(loc.Sid) < pg.SlotCount() && pg.IsDead(int(loc.Sid)) {
			return pg.Undelete(int(loc.Sid))
		}
		_, err := pg.Insert(data)
		return err
	case redolog.ActionTableDelete, redolog.ActionIndexDelete:
		return pg.Delete(int(loc.Sid))
	case redolog.ActionTableUpdate, redolog.ActionIndexUpdate:
		_, err := pg.Update(int(loc.Sid), data)
		return err
	}
	return nil
}

// FetchPage returns relation's pageno, loading it from disk through the
// buffer pool on a miss. A pageno that AllocatePage handed out but that
// was never flushed to disk (the ordinary case for any page touched
// since the last checkpoint) has no bytes on disk yet; FetchPage
// materializes a blank page for it rather than treating the short read
// as an error, mirroring what AllocatePage itself does for a brand new
// page.
func (m *Manager) FetchPage(relation string, pageno uint32) (*page.Page, error) {
	key := buffer.Key{Relation: relation, PageNo: pageno}
	if pg, ok := m.Pool.Get(key); ok {
		return pg, nil
	}
	f, err := m.Files.File(relation)
	if err != nil {
		return nil, err
	}
	diskPages, err := f.PageCount()
	if err != nil {
		return nil, err
	}
	if int(pageno) >= diskPages {
		pg := page.New(m.UseCRC)
		if err := m.Pool.Put(key, pg); err != nil {
			return nil, err
		}
		return pg, nil
	}
	raw, err := f.ReadPage(pageno)
	if err != nil {
		return nil, err
	}
	pg, err := page.Deserialize(raw, m.UseCRC)
	if err != nil {
		return nil, err
	}
	if err := m.Pool.Put(key, pg); err != nil {
		return nil, err
	}
	return pg, nil
}

// AllocatePage appends a brand new page for relation and caches it as
// dirty, returning its pageno.
func (m *Manager) AllocatePage(relation string, flags uint32) (uint32, *page.Page, error) {
	count, err := m.PageCount(relation)
	if err != nil {
		return 0, nil, err
	}
	pageno := uint32(count)
	pg := page.New(m.UseCRC)
	pg.SetHeader(0, flags)
	key := buffer.Key{Relation: relation, PageNo: pageno}
	if err := m.Pool.Put(key, pg); err != nil {
		return 0, nil, err
	}
	m.Pool.MarkDirty(key)
	return pageno, pg, nil
}

// PageCount returns max(disk_pages, 1+max_dirty_pageno) for relation —
// pages only AllocatePage has touched so far still count even before
// they are flushed.
func (m *Manager) PageCount(relation string) (int, error) {
	f, err := m.Files.File(relation)
	if err != nil {
		return 0, err
	}
	diskPages, err := f.PageCount()
	if err != nil {
		return 0, err
	}
	if maxDirty := m.Pool.FindMaxPageno(relation); maxDirty+1 > diskPages {
		return maxDirty + 1, nil
	}
	return diskPages, nil
}

// Checkpoint writes a CHECKPOINT redo record, flushes every dirty page to
// its table file, fsyncs, and unmarks each from the dirty set. ckptMu
// serializes concurrent checkpoints with each other only; ordinary
// mutations do not take it, so a checkpoint is not isolated from them.
func (m *Manager) Checkpoint() error {
	m.ckptMu.Lock()
	defer m.ckptMu.Unlock()

	if _, err := m.Redo.Write(redolog.Record{Xid: InvalidXid, Action: redolog.ActionCheckpoint}); err != nil {
		return err
	}
	flushed := 0
	for _, key := range m.Pool.IterDirty() {
		pg, ok := m.Pool.PageFor(key)
		if !ok {
			continue
		}
		f, err := m.Files.File(key.Relation)
		if err != nil {
			return err
		}
		if err := f.WritePage(key.PageNo, pg.Serialize()); err != nil {
			return err
		}
		m.Pool.UnmarkDirty(key)
		flushed++
	}
	logger.Debugf("txn: checkpoint flushed %d dirty pages", flushed)
	return nil
}

func (m *Manager) Close() error {
	if err := m.Redo.Close(); err != nil {
		return err
	}
	return m.Files.Close()
}
