// Package heap implements table tuple operations over the page/buffer
// layers: scanning, point lookup, insert, update, delete.
// Every mutation writes one undo and one redo record through the
// transaction manager before returning, and stamps the touched page's
// header lsn with the returned redo lsn.
package heap

import (
	"github.com/zhukovaskychina/reldb-core/buffer"
	"github.com/zhukovaskychina/reldb-core/page"
	"github.com/zhukovaskychina/reldb-core/redolog"
	"github.com/zhukovaskychina/reldb-core/txn"
	"github.com/zhukovaskychina/reldb-core/undolog"
)

// Location is a table TID: (pageno, sid).
type Location = redolog.Location

// Table is a heap-organized relation backed by the relation file name.
type Table struct {
	mgr  *txn.Manager
	name string
}

func Open(mgr *txn.Manager, name string) *Table {
	return &Table{mgr: mgr, name: name}
}

// pageCount is max(disk_pages, 1+max_dirty_pageno).
func (t *Table) pageCount() (int, error) {
	return t.mgr.PageCount(t.name)
}

func (t *Table) GetPageTupleCount(pageno uint32) (int, error) {
	pg, err := t.mgr.FetchPage(t.name, pageno)
	if err != nil {
		return 0, err
	}
	return pg.SlotCount(), nil
}

func (t *Table) IsDead(loc Location) (bool, error) {
	pg, err := t.mgr.FetchPage(t.name, loc.PageNo)
	if err != nil {
		return false, err
	}
	return pg.IsDead(int(loc.Sid)), nil
}

// GetAllLocations enumerates pageno ∈ [0, page_count) and sid ∈
// [0, slot_count(page)), skipping tombstones, and invokes visit for each
// live location. Returning an error from visit stops the
// scan and propagates that error.
func (t *Table) GetAllLocations(visit func(Location) error) error {
	n, err := t.pageCount()
	if err != nil {
		return err
	}
	for pageno := 0; pageno < n; pageno++ {
		pg, err := t.mgr.FetchPage(t.name, uint32(pageno))
		if err != nil {
			return err
		}
		for sid := 0; sid < pg.SlotCount(); sid++ {
			if pg.IsDead(sid) {
				continue
			}
			if err := visit(Location{PageNo: uint32(pageno), Sid: uint32(sid)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table) GetOne(loc Location) ([]byte, error) {
	pg, err := t.mgr.FetchPage(t.name, loc.PageNo)
	if err != nil {
		return nil, err
	}
	rec := pg.Select(int(loc.Sid))
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// InsertOne chooses the last page; if it is Full, allocates a new page
// and retries. Writes one undo (TABLE_DELETE, the inverse
// of insert) and one redo (TABLE_INSERT) record.
func (t *Table) InsertOne(xid int64, record []byte) (Location, error) {
	n, err := t.pageCount()
	if err != nil {
		return Location{}, err
	}
	var pageno uint32
	var pg *page.Page
	if n == 0 {
		pageno, pg, err = t.mgr.AllocatePage(t.name, 0)
		if err != nil {
			return Location{}, err
		}
	} else {
		pageno = uint32(n - 1)
		pg, err = t.mgr.FetchPage(t.name, pageno)
		if err != nil {
			return Location{}, err
		}
	}

	sid, err := pg.Insert(record)
	if err != nil {
		pageno, pg, err = t.mgr.AllocatePage(t.name, 0)
		if err != nil {
			return Location{}, err
		}
		sid, err = pg.Insert(record)
		if err != nil {
			return Location{}, err
		}
	}

	loc := Location{PageNo: pageno, Sid: uint32(sid)}
	lsn, err := t.logMutation(xid, redolog.ActionTableInsert, redolog.ActionTableDelete, loc, record, nil)
	if err != nil {
		return Location{}, err
	}
	pg.SetHeader(lsn, pg.Flags())
	t.mgr.Pool.MarkDirty(buffer.Key{Relation: t.name, PageNo: pageno})
	return loc, nil
}

// UpdateOne attempts in-place update; if the page returns Full, the row
// is demoted to delete-then-insert and a new TID is returned. On the
// page-local path the undo record carries the pre-image bytes; the
// demoted path logs through DeleteOne and InsertOne.
func (t *Table) UpdateOne(xid int64, loc Location, record []byte) (Location, error) {
	pg, err := t.mgr.FetchPage(t.name, loc.PageNo)
	if err != nil {
		return Location{}, err
	}
	preimage := pg.Select(int(loc.Sid))
	if preimage == nil {
		return Location{}, ErrNotFound
	}

	newSid, err := pg.Update(int(loc.Sid), record)
	if pe, ok := err.(*page.PageError); ok && pe.Err == page.ErrFull {
		if err := t.DeleteOne(xid, loc); err != nil {
			return Location{}, err
		}
		return t.InsertOne(xid, record)
	}
	if err != nil {
		return Location{}, err
	}
	newLoc := Location{PageNo: loc.PageNo, Sid: uint32(newSid)}

	lsn, err := t.logMutation(xid, redolog.ActionTableUpdate, redolog.ActionTableUpdate, newLoc, record, preimage)
	if err != nil {
		return Location{}, err
	}
	pg.SetHeader(lsn, pg.Flags())
	t.mgr.Pool.MarkDirty(buffer.Key{Relation: t.name, PageNo: loc.PageNo})
	return newLoc, nil
}

// DeleteOne tombstones loc. The undo record carries the original bytes
// so rollback can re-insert them (TABLE_INSERT).
func (t *Table) DeleteOne(xid int64, loc Location) error {
	pg, err := t.mgr.FetchPage(t.name, loc.PageNo)
	if err != nil {
		return err
	}
	original := pg.Select(int(loc.Sid))
	if original == nil {
		return ErrNotFound
	}
	if err := pg.Delete(int(loc.Sid)); err != nil {
		return err
	}

	lsn, err := t.logMutation(xid, redolog.ActionTableDelete, redolog.ActionTableInsert, loc, nil, original)
	if err != nil {
		return err
	}
	pg.SetHeader(lsn, pg.Flags())
	t.mgr.Pool.MarkDirty(buffer.Key{Relation: t.name, PageNo: loc.PageNo})
	return nil
}

func (t *Table) DeleteMultiple(xid int64, locs []Location) error {
	for _, loc := range locs {
		if err := t.DeleteOne(xid, loc); err != nil {
			return err
		}
	}
	return nil
}

// logMutation writes one undo record (carrying undoData, the inverse
// payload) and one redo record (carrying redoData, the post-image),
// returning the redo lsn the caller must stamp onto the page header.
func (t *Table) logMutation(xid int64, redoAction, undoAction redolog.Action, loc Location, redoData, undoData []byte) (uint64, error) {
	ul, err := t.mgr.UndoLogFor(xid)
	if err != nil {
		return 0, err
	}
	if err := ul.Write(undolog.Record{
		Xid: xid, Action: undoAction, Relation: t.name,
		Location: &loc, Data: undoData,
	}); err != nil {
		return 0, err
	}
	return t.mgr.Redo.Write(redolog.Record{
		Xid: xid, Action: redoAction, Relation: t.name,
		Location: &loc, Data: redoData,
	})
}
