package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/zhukovaskychina/reldb-core/ast"
	"github.com/zhukovaskychina/reldb-core/bptree"
	"github.com/zhukovaskychina/reldb-core/catalog"
	"github.com/zhukovaskychina/reldb-core/heap"
	"github.com/zhukovaskychina/reldb-core/logger"
	"github.com/zhukovaskychina/reldb-core/plan"
	"github.com/zhukovaskychina/reldb-core/txn"
)

// Handle is the single database handle: it owns the transaction manager
// (which in turn owns the buffer pool, redo log, undo store, lock
// manager and relation files), the catalog, the planner, and the
// lazily-opened table/index handles built on top of them.
type Handle struct {
	Txn     *txn.Manager
	Catalog *catalog.Catalog
	Builder *plan.Builder

	mu      sync.Mutex
	tables  map[string]*heap.Table
	indexes map[string]*bptree.Tree
}

// Open brings up a Handle against cfg, running WAL recovery before
// returning (txn.Open's contract).
func Open(cfg Config, cat *catalog.Catalog) (*Handle, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}
	mgr, err := txn.Open(txn.Config{
		DataDir:         cfg.DataDir,
		BufferPoolPages: cfg.BufferPoolPages,
		LockWaitTimeout: cfg.LockWaitTimeout,
		PageChecksums:   cfg.PageChecksums,
	})
	if err != nil {
		return nil, err
	}
	return &Handle{
		Txn:     mgr,
		Catalog: cat,
		Builder: plan.NewBuilder(cat),
		tables:  make(map[string]*heap.Table),
		indexes: make(map[string]*bptree.Tree),
	}, nil
}

// Table returns (opening if necessary) the heap table named name.
func (h *Handle) Table(name string) *heap.Table {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.tables[name]; ok {
		return t
	}
	t := heap.Open(h.Txn, name)
	h.tables[name] = t
	return t
}

// Index returns (opening or creating if necessary) the B+ tree named
// name, deserializing it from <name>.idx if present on disk.
func (h *Handle) Index(name string) (*bptree.Tree, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ix, ok := h.indexes[name]; ok {
		return ix, nil
	}

	path := h.indexPath(name)
	if _, err := os.Stat(path); err == nil {
		ix, err := bptree.Deserialize(path, h.Txn.UseCRC)
		if err != nil {
			return nil, err
		}
		h.indexes[name] = ix
		return ix, nil
	}

	ix := bptree.New()
	h.indexes[name] = ix
	return ix, nil
}

func (h *Handle) indexPath(name string) string {
	return filepath.Join(h.Txn.Files.Dir(), name+".idx")
}

// FlushIndex serializes the in-memory index named name back to disk.
func (h *Handle) FlushIndex(name string) error {
	h.mu.Lock()
	ix, ok := h.indexes[name]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return ix.Serialize(h.indexPath(name), h.Txn.UseCRC)
}

// Plan builds a physical plan for sel, running logical construction,
// rewrite, and access-path selection.
func (h *Handle) Plan(sel *ast.Select) (plan.PhysicalPlan, error) {
	logical, err := h.Builder.BuildSelect(sel)
	if err != nil {
		return nil, err
	}
	return h.Builder.Physical(logical, len(sel.Projection))
}

// Begin starts a new transaction.
func (h *Handle) Begin() (int64, error) { return h.Txn.Start() }

// Commit commits xid.
func (h *Handle) Commit(xid int64) error { return h.Txn.Commit(xid) }

// Abort aborts xid, rolling back its mutations.
func (h *Handle) Abort(xid int64) error { return h.Txn.Abort(xid) }

// Checkpoint flushes every dirty page and every open index to disk.
func (h *Handle) Checkpoint() error {
	h.mu.Lock()
	names := make([]string, 0, len(h.indexes))
	for name := range h.indexes {
		names = append(names, name)
	}
	h.mu.Unlock()
	for _, name := range names {
		if err := h.FlushIndex(name); err != nil {
			return err
		}
	}
	if err := h.Txn.Checkpoint(); err != nil {
		return err
	}
	logger.Debugf("engine: checkpoint complete, %d indexes flushed", len(names))
	return nil
}

// Close flushes every open index and closes the transaction manager.
func (h *Handle) Close() error {
	if err := h.Checkpoint(); err != nil {
		return err
	}
	return h.Txn.Close()
}
