// Package buffer implements the size-bounded, LRU-evicting page cache that
// sits between the heap/bptree layers and disk. Pages are
// cached under a (relation, pageno) key; pinning protects a page from
// eviction while a caller holds a reference to it, and dirty tracking
// feeds the transaction manager's checkpointer.
package buffer

import (
	"container/list"
	"sync"

	"github.com/zhukovaskychina/reldb-core/logger"
	"github.com/zhukovaskychina/reldb-core/page"
)

// Key identifies a cached page.
type Key struct {
	Relation string
	PageNo   uint32
}

type entry struct {
	key      Key
	pg       *page.Page
	pinCount int
}

// Pool is a classic LRU cache: a doubly-linked list ordered MRU-to-LRU plus
// a hash map for O(1) lookup. Access moves an entry to the MRU end;
// eviction walks from the LRU end, skipping pinned entries.
type Pool struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = MRU, back = LRU
	items    map[Key]*list.Element

	dirty   map[Key]bool
	evicted map[Key]*entry // dirty pages evicted before the checkpointer flushed them

	hits, misses, reads, writes uint64
}

// NewPool creates a pool holding at most capacity pages.
func NewPool(capacity int) *Pool {
	return &Pool{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[Key]*list.Element),
		dirty:    make(map[Key]bool),
		evicted:  make(map[Key]*entry),
	}
}

// Get returns the cached page for key, promoting it to MRU, or (nil, false)
// on a cache miss.
func (p *Pool) Get(key Key) (*page.Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	el, ok := p.items[key]
	if !ok {
		p.misses++
		p.reads++
		return nil, false
	}
	p.order.MoveToFront(el)
	p.hits++
	p.reads++
	return el.Value.(*entry).pg, true
}

// Put inserts or replaces the cached page for key as the new MRU entry. If
// the pool is at capacity and every entry is pinned, Put rolls back and
// returns ErrNoSpace.
func (p *Pool) Put(key Key, pg *page.Page) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.items[key]; ok {
		el.Value.(*entry).pg = pg
		p.order.MoveToFront(el)
		p.writes++
		return nil
	}

	if p.order.Len() >= p.capacity {
		if !p.evictLocked() {
			return newErr("put", ErrNoSpace)
		}
	}

	el := p.order.PushFront(&entry{key: key, pg: pg})
	p.items[key] = el
	p.writes++
	return nil
}

// evictLocked removes the first unpinned entry found walking from the LRU
// end toward MRU. Returns false if every entry is pinned.
func (p *Pool) evictLocked() bool {
	for el := p.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.pinCount > 0 {
			continue
		}
		p.order.Remove(el)
		delete(p.items, e.key)
		if p.dirty[e.key] {
			// The checkpointer may still need to flush this page's
			// content even though it no longer lives in the hot set.
			p.evicted[e.key] = e
		}
		logger.Debugf("buffer: evicted %+v (dirty=%v)", e.key, p.dirty[e.key])
		return true
	}
	return false
}

// Pin protects key from eviction. A no-op if key is not cached.
func (p *Pool) Pin(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.items[key]; ok {
		el.Value.(*entry).pinCount++
	}
}

// Unpin releases one pin on key. Returns ErrNotPinned if key has no
// outstanding pins (including if it is not cached).
func (p *Pool) Unpin(key Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.items[key]
	if !ok || el.Value.(*entry).pinCount <= 0 {
		return newErr("unpin", ErrNotPinned)
	}
	el.Value.(*entry).pinCount--
	return nil
}

// MarkDirty flags key as needing a flush before its buffer can be reused.
func (p *Pool) MarkDirty(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty[key] = true
}

// UnmarkDirty clears key's dirty flag, e.g. after the checkpointer has
// flushed it to disk.
func (p *Pool) UnmarkDirty(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.dirty, key)
	delete(p.evicted, key)
}

// IterDirty returns every dirty key, whether still resident or evicted but
// not yet flushed.
func (p *Pool) IterDirty() []Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Key, 0, len(p.dirty))
	for k := range p.dirty {
		out = append(out, k)
	}
	return out
}

// PageFor returns the current in-memory content for a dirty key, whether
// it is still resident in the hot set or was evicted before being
// flushed. Used by the checkpointer.
func (p *Pool) PageFor(key Key) (*page.Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.items[key]; ok {
		return el.Value.(*entry).pg, true
	}
	if e, ok := p.evicted[key]; ok {
		return e.pg, true
	}
	return nil, false
}

// FindMaxPageno returns the largest pageno currently dirty for relation,
// or -1 if none — used to size a table when memory holds pages not yet on
// disk.
func (p *Pool) FindMaxPageno(relation string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	max := -1
	for k := range p.dirty {
		if k.Relation == relation && int(k.PageNo) > max {
			max = int(k.PageNo)
		}
	}
	return max
}

// Stats reports cache performance counters.
type Stats struct {
	Hits, Misses, Reads, Writes uint64
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Hits: p.hits, Misses: p.misses, Reads: p.reads, Writes: p.writes}
}

func (s Stats) HitRatio() float64 {
	if s.Reads == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Reads)
}
