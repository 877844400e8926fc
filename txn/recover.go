package txn

import (
	"github.com/zhukovaskychina/reldb-core/buffer"
	"github.com/zhukovaskychina/reldb-core/logger"
	"github.com/zhukovaskychina/reldb-core/redolog"
)

// recover implements the recovery protocol run once at Open:
//
//  1. write_lsn/flush_lsn already initialized to file_size(redo) by
//     redolog.Open.
//  2. Scan forward to locate the last CHECKPOINT record; remember the lsn
//     immediately after it.
//  3. Scan again from that lsn, applying idempotent redo and tracking
//     in-flight transactions.
//  4. Any xid still in flight at EOF is synthesized an ABORT and rolled
//     back.
func (m *Manager) recover() error {
	checkpointLSN, err := m.findLastCheckpoint()
	if err != nil {
		return err
	}

	inFlight := make(map[int64]bool)
	err = m.Redo.Replay(checkpointLSN, func(rec redolog.Record, lsn uint64) error {
		switch rec.Action {
		case redolog.ActionBegin:
			inFlight[rec.Xid] = true
		case redolog.ActionTableInsert, redolog.ActionTableDelete, redolog.ActionTableUpdate,
			redolog.ActionIndexInsert, redolog.ActionIndexDelete, redolog.ActionIndexUpdate:
			if err := m.applyRedoIdempotent(rec, lsn); err != nil {
				return err
			}
		case redolog.ActionAbort:
			if err := m.PerformUndo(rec.Xid, lsn); err != nil {
				return err
			}
			delete(inFlight, rec.Xid)
		case redolog.ActionCommit:
			delete(inFlight, rec.Xid)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for xid := range inFlight {
		lsn, err := m.Redo.Write(redolog.Record{Xid: xid, Action: redolog.ActionAbort})
		if err != nil {
			return err
		}
		logger.Debugf("txn: recovery synthesizing ABORT for in-flight xid %d", xid)
		if err := m.PerformUndo(xid, lsn); err != nil {
			return err
		}
	}
	return nil
}

// findLastCheckpoint scans the whole redo stream forward and returns the
// lsn immediately after the last CHECKPOINT record, or 0 if none exists.
func (m *Manager) findLastCheckpoint() (uint64, error) {
	var lastCheckpointLSN uint64
	err := m.Redo.Replay(0, func(rec redolog.Record, lsn uint64) error {
		if rec.Action == redolog.ActionCheckpoint {
			lastCheckpointLSN = lsn
		}
		return nil
	})
	return lastCheckpointLSN, err
}

// applyRedoIdempotent applies rec to its recorded page only if the page's
// stamped lsn is still behind replayLSN.
func (m *Manager) applyRedoIdempotent(rec redolog.Record, replayLSN uint64) error {
	if rec.Location == nil {
		return nil
	}
	pg, err := m.FetchPage(rec.Relation, rec.Location.PageNo)
	if err != nil {
		return err
	}
	if pg.LSN() >= replayLSN {
		return nil // already durable; redo is idempotent
	}
	if err := ApplyMutation(pg, rec.Action, rec.Location, rec.Data); err != nil {
		return err
	}
	pg.SetHeader(replayLSN, pg.Flags())
	m.Pool.MarkDirty(buffer.Key{Relation: rec.Relation, PageNo: rec.Location.PageNo})
	return nil
}
