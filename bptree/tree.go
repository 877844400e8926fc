package bptree

import "github.com/zhukovaskychina/reldb-core/dbtype"

// Loader materializes an unloaded node by pageno — the hook load_node
// represents. A freshly-built in-memory tree has no loader;
// one deserialized from disk does.
type Loader func(pageno uint32) (*node, error)

// Tree is an order-M B+ tree keyed by dbtype.Key.
type Tree struct {
	root   *node
	loader Loader

	leafCache map[uint32]*node // resolved next_leaf pointers, keyed by pageno
}

// New returns an empty, purely in-memory tree.
func New() *Tree {
	return &Tree{root: newLeaf(), leafCache: make(map[uint32]*node)}
}

func (t *Tree) resolve(c *childRef) (*node, error) {
	if c.node != nil {
		return c.node, nil
	}
	if t.loader == nil {
		return nil, ErrUnloadable
	}
	n, err := t.loader(c.pageno)
	if err != nil {
		return nil, err
	}
	c.node = n
	if n.isLeaf {
		t.leafCache[n.pageno] = n
	}
	return n, nil
}

func (t *Tree) resolveNextLeaf(n *node) (*node, error) {
	if n.nextLeafNode != nil {
		return n.nextLeafNode, nil
	}
	if n.nextLeaf == NextLeafNone {
		return nil, nil
	}
	if cached, ok := t.leafCache[n.nextLeaf]; ok {
		return cached, nil
	}
	if t.loader == nil {
		return nil, ErrUnloadable
	}
	next, err := t.loader(n.nextLeaf)
	if err != nil {
		return nil, err
	}
	t.leafCache[next.pageno] = next
	return next, nil
}

// findLeaf descends from root choosing, at each internal node, the
// leftmost key-index i with key ≤ keys[i] (or the last child if none),
// then advances rightward across the leaf level while the current
// leaf's maximum key is still < key and a next_leaf exists — needed
// because duplicate keys can span leaves.
func (t *Tree) findLeaf(key dbtype.Key) (*node, error) {
	n := t.root
	for !n.isLeaf {
		i := 0
		for i < len(n.keys) && n.keys[i].Less(key) {
			i++
		}
		var c *childRef
		if i < len(n.keys) {
			c = n.children[i]
		} else {
			c = n.children[len(n.children)-1]
		}
		child, err := t.resolve(c)
		if err != nil {
			return nil, err
		}
		n = child
	}
	for len(n.keys) > 0 && n.keys[len(n.keys)-1].Less(key) && n.hasNextLeaf() {
		next, err := t.resolveNextLeaf(n)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		n = next
	}
	return n, nil
}

// Find returns every value stored under key, walking forward across
// leaves while duplicates remain.
func (t *Tree) Find(key dbtype.Key) ([][]byte, error) {
	n, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for {
		advanced := false
		for i, k := range n.keys {
			if k.Equal(key) {
				out = append(out, n.values[i])
			} else if key.Less(k) {
				return out, nil
			}
		}
		if len(n.keys) > 0 && n.keys[len(n.keys)-1].Equal(key) && n.hasNextLeaf() {
			next, err := t.resolveNextLeaf(n)
			if err != nil {
				return nil, err
			}
			if next != nil {
				n = next
				advanced = true
			}
		}
		if !advanced {
			return out, nil
		}
	}
}

// FindRange returns every (key, value) pair in the half-open range
// (start, end) — strict on both sides; callers add the equal case
// explicitly when they want start or end included.
func (t *Tree) FindRange(start, end dbtype.Key) ([]dbtype.Key, [][]byte, error) {
	n, err := t.findLeaf(start)
	if err != nil {
		return nil, nil, err
	}
	var keys []dbtype.Key
	var vals [][]byte
	for n != nil {
		stop := false
		for i, k := range n.keys {
			if !k.Less(end) {
				stop = true
				break
			}
			if start.Less(k) {
				keys = append(keys, k)
				vals = append(vals, n.values[i])
			}
		}
		if stop {
			break
		}
		if !n.hasNextLeaf() {
			break
		}
		n, err = t.resolveNextLeaf(n)
		if err != nil {
			return nil, nil, err
		}
	}
	return keys, vals, nil
}
