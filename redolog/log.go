// Package redolog implements the write-ahead redo log: a single
// append-only framed record stream shared by every transaction, used both
// to replay committed work forward during recovery and to drive undo
// application on abort.
package redolog

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/reldb-core/logger"
)

// defaultFlushThreshold bounds how many buffered bytes accumulate before
// an automatic flush, independent of the "always flush on COMMIT" rule.
const defaultFlushThreshold = 64 * 1024

// Log is the append-only redo stream over one file.
type Log struct {
	mu            sync.Mutex
	file          *os.File
	buf           []byte
	flushThreshold int
	writeLSN      uint64 // one past the last buffered (flushed or not) record
	flushLSN      uint64 // one past the last durable record
}

// Open opens (creating if needed) the redo log at path. write_lsn and
// flush_lsn both start at the file's current size.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "redolog: open")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "redolog: stat")
	}
	size := uint64(info.Size())
	return &Log{
		file:           f,
		flushThreshold: defaultFlushThreshold,
		writeLSN:       size,
		flushLSN:       size,
	}, nil
}

// WriteLSN returns the current write_lsn.
func (l *Log) WriteLSN() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeLSN
}

// FlushLSN returns the current flush_lsn.
func (l *Log) FlushLSN() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLSN
}

// Write appends record to the in-memory buffer, advances write_lsn, and
// returns the record's lsn (one past its own last byte) — the value
// callers stamp onto the page they just mutated. A COMMIT record, or a
// buffer past the flush threshold, triggers an immediate Flush.
func (l *Log) Write(rec Record) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	framed := frame(rec.encode())
	l.buf = append(l.buf, framed...)
	l.writeLSN += uint64(len(framed))
	lsn := l.writeLSN

	if len(l.buf) >= l.flushThreshold || rec.Action == ActionCommit {
		if err := l.flushLocked(); err != nil {
			return 0, err
		}
	}
	return lsn, nil
}

// Flush durably persists every buffered record.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *Log) flushLocked() error {
	if len(l.buf) == 0 {
		return nil
	}
	if _, err := l.file.WriteAt(l.buf, int64(l.flushLSN)); err != nil {
		return errors.Wrap(err, "redolog: write")
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "redolog: fsync")
	}
	logger.Debugf("redolog: flushed %d bytes, flush_lsn %d -> %d", len(l.buf), l.flushLSN, l.writeLSN)
	l.flushLSN = l.writeLSN
	l.buf = l.buf[:0]
	return nil
}

func (l *Log) Close() error {
	if err := l.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

func frame(payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint64(out[0:8], uint64(len(out)))
	copy(out[8:], payload)
	return out
}

// Replay yields every durable record from startLSN to EOF, in order, via
// fn. fn receives the record and the lsn immediately after it (the value
// that would have been stamped on a page mutated by that record). A
// truncated trailing record — less than 8 bytes of size prefix, or a
// content_size that overruns EOF — stops the scan there rather than
// erroring, so recovery proceeds past a truncated tail by stopping at EOF.
func (l *Log) Replay(startLSN uint64, fn func(rec Record, lsn uint64) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}

	if _, err := l.file.Seek(int64(startLSN), io.SeekStart); err != nil {
		return errors.Wrap(err, "redolog: seek")
	}

	cursor := startLSN
	sizeBuf := make([]byte, 8)
	for {
		if _, err := io.ReadFull(l.file, sizeBuf); err != nil {
			if err == io.EOF {
				return nil
			}
			return nil // truncated size prefix: stop at EOF, don't error
		}
		contentSize := binary.LittleEndian.Uint64(sizeBuf)
		if contentSize < 8 {
			return nil
		}
		payload := make([]byte, contentSize-8)
		if _, err := io.ReadFull(l.file, payload); err != nil {
			return nil // truncated payload: stop at EOF
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil // corrupt tail record: stop rather than fail recovery
		}
		cursor += contentSize
		if err := fn(rec, cursor); err != nil {
			return err
		}
	}
}
