// Package storage is the lowest layer: direct page-addressed file I/O for
// a relation's on-disk pages. It does not interpret page contents — txn
// deserializes what it reads here into page.Page and caches it in
// buffer.Pool on behalf of heap; bptree reads its index files itself.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/reldb-core/page"
)

// File is one relation's backing file, addressed by fixed page.PageSize
// slots at offset pageno*PageSize.
type File struct {
	mu   sync.RWMutex
	f    *os.File
	path string
}

// Open opens (creating if needed) the file for relation under dir.
func Open(dir, relation string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "storage: mkdir")
	}
	path := filepath.Join(dir, relation+".tbl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "storage: open")
	}
	return &File{f: f, path: path}, nil
}

// PageCount returns how many whole pages are currently on disk.
func (sf *File) PageCount() (int, error) {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	info, err := sf.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "storage: stat")
	}
	return int(info.Size() / page.PageSize), nil
}

// ReadPage reads the raw bytes of page pageno.
func (sf *File) ReadPage(pageno uint32) ([]byte, error) {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	buf := make([]byte, page.PageSize)
	off := int64(pageno) * page.PageSize
	n, err := sf.f.ReadAt(buf, off)
	if n != page.PageSize {
		return nil, fmt.Errorf("storage: short read of page %d: %d bytes (%v)", pageno, n, err)
	}
	return buf, nil
}

// WritePage writes the raw bytes of page pageno and fsyncs.
func (sf *File) WritePage(pageno uint32, data []byte) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if len(data) != page.PageSize {
		return fmt.Errorf("storage: invalid page size %d", len(data))
	}
	off := int64(pageno) * page.PageSize
	n, err := sf.f.WriteAt(data, off)
	if err != nil {
		return errors.Wrap(err, "storage: write")
	}
	if n != page.PageSize {
		return fmt.Errorf("storage: short write of page %d: %d bytes", pageno, n)
	}
	return sf.f.Sync()
}

func (sf *File) Close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.f.Close()
}

// Store opens relation files on demand and keeps them open, one per
// relation, under a common data directory.
type Store struct {
	mu    sync.Mutex
	dir   string
	files map[string]*File
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, files: make(map[string]*File)}
}

// Dir returns the data directory relation files are opened under, for
// callers (e.g. engine.Handle) that need to place sibling files there.
func (s *Store) Dir() string { return s.dir }

func (s *Store) File(relation string) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[relation]; ok {
		return f, nil
	}
	f, err := Open(s.dir, relation)
	if err != nil {
		return nil, err
	}
	s.files[relation] = f
	return f, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
