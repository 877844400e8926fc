// Package undolog implements the per-transaction undo stream: one
// append-only file per xid, buffered in memory and flushed with fsync on
// commit/abort, read back in reverse order to drive rollback.
package undolog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/reldb-core/redolog"
)

// Log is xid's undo stream.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
	buf  []byte
}

// Store manages one undo Log per open transaction under dir/undo/.
type Store struct {
	mu   sync.Mutex
	dir  string
	logs map[int64]*Log
}

func NewStore(dir string) (*Store, error) {
	undoDir := filepath.Join(dir, "undo")
	if err := os.MkdirAll(undoDir, 0755); err != nil {
		return nil, errors.Wrap(err, "undolog: mkdir")
	}
	return &Store{dir: undoDir, logs: make(map[int64]*Log)}, nil
}

// Open returns xid's undo log, creating its file if this is the first
// record written for that transaction.
func (s *Store) Open(xid int64) (*Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.logs[xid]; ok {
		return l, nil
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%d", xid))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "undolog: open")
	}
	l := &Log{path: path, file: f}
	s.logs[xid] = l
	return l, nil
}

// Forget closes and removes xid's undo file — called once the
// transaction's commit (or abort) is fully durable and the undo log no
// longer serves any purpose.
func (s *Store) Forget(xid int64) error {
	s.mu.Lock()
	l, ok := s.logs[xid]
	delete(s.logs, xid)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	l.file.Close()
	return os.Remove(l.path)
}

// Write buffers one undo record. It is not durable until Flush.
func (l *Log) Write(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, rec.encode()...)
	return nil
}

// Flush persists every buffered record with fsync.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) == 0 {
		return nil
	}
	if _, err := l.file.Write(l.buf); err != nil {
		return errors.Wrap(err, "undolog: write")
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "undolog: fsync")
	}
	l.buf = l.buf[:0]
	return nil
}

// ReadReverse parses the whole file and returns its records in reverse
// order — the order rollback must apply them in.
func (l *Log) ReadReverse() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.flushLockedNoLock(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errors.Wrap(err, "undolog: read")
	}
	var recs []Record
	for len(data) > 0 {
		rec, n, err := decodeRecord(data)
		if err != nil {
			break // truncated tail: stop, same tolerance as redolog.Replay
		}
		recs = append(recs, rec)
		data = data[n:]
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func (l *Log) flushLockedNoLock() error {
	if len(l.buf) == 0 {
		return nil
	}
	if _, err := l.file.Write(l.buf); err != nil {
		return errors.Wrap(err, "undolog: write")
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "undolog: fsync")
	}
	l.buf = l.buf[:0]
	return nil
}

// BeginSentinel, CommitSentinel and AbortSentinel build the start/commit/
// abort marker records each transaction brackets its undo stream with.
func BeginSentinel(xid int64) Record  { return Record{Xid: xid, Action: redolog.ActionBegin} }
func CommitSentinel(xid int64) Record { return Record{Xid: xid, Action: redolog.ActionCommit} }
func AbortSentinel(xid int64) Record  { return Record{Xid: xid, Action: redolog.ActionAbort} }
