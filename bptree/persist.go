package bptree

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/reldb-core/dbtype"
	"github.com/zhukovaskychina/reldb-core/page"
)

// rootPrefixSize is the width of the root-pageno prefix that precedes
// the first node page on disk.
const rootPrefixSize = 8

func pageOffset(pageno uint32) int64 {
	return rootPrefixSize + int64(pageno)*page.PageSize
}

// Serialize does a BFS over every loaded node, assigning consecutive
// pagenos, then writes the root-pageno prefix followed by each node as a
// slotted page to path. The whole tree must be resident —
// Serialize does not resolve lazy placeholders.
func (t *Tree) Serialize(path string, useCRC bool) error {
	order := t.bfsOrder()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return errors.Wrap(err, "bptree: create")
	}
	defer f.Close()

	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], 0) // root is always BFS index 0
	if _, err := f.WriteAt(prefix[:], 0); err != nil {
		return errors.Wrap(err, "bptree: write root prefix")
	}

	for _, n := range order {
		pg, err := encodeNode(n, useCRC)
		if err != nil {
			return err
		}
		if _, err := f.WriteAt(pg.Serialize(), pageOffset(n.pageno)); err != nil {
			return errors.Wrap(err, "bptree: write node page")
		}
	}
	return f.Sync()
}

// bfsOrder assigns consecutive pagenos over every resident node in BFS
// order and returns them in that order.
func (t *Tree) bfsOrder() []*node {
	var order []*node
	queue := []*node{t.root}
	next := uint32(0)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		n.pageno = next
		next++
		order = append(order, n)
		if !n.isLeaf {
			for _, c := range n.children {
				if c.node != nil {
					queue = append(queue, c.node)
				}
			}
		}
	}
	// Re-thread next_leaf pagenos now that every leaf has its final pageno.
	for _, n := range order {
		if n.isLeaf && n.nextLeafNode != nil {
			n.nextLeaf = n.nextLeafNode.pageno
		}
	}
	return order
}

func encodeNode(n *node, useCRC bool) (*page.Page, error) {
	pg := page.New(useCRC)
	flags := uint32(0)
	if n.isLeaf {
		flags = page.FlagLeaf
	}
	pg.SetHeader(0, flags)

	if n.isLeaf {
		pg.SetNextLeaf(n.nextLeaf)
		for i, k := range n.keys {
			rec := encodeLeafEntry(k, n.values[i])
			if _, err := pg.Insert(rec); err != nil {
				return nil, err
			}
		}
		return pg, nil
	}

	for i, k := range n.keys {
		rec := encodeInternalEntry(k, n.children[i].node.pageno)
		if _, err := pg.Insert(rec); err != nil {
			return nil, err
		}
	}
	// Terminal slot: (null key, rightmost child).
	rec := encodeInternalEntry(dbtype.Key{}, n.children[len(n.children)-1].node.pageno)
	if _, err := pg.Insert(rec); err != nil {
		return nil, err
	}
	return pg, nil
}

func encodeLeafEntry(k dbtype.Key, value []byte) []byte {
	keyBytes := dbtype.EncodeTuple(k.Tuple())
	out := make([]byte, 4+len(keyBytes)+len(value))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(keyBytes)))
	copy(out[4:], keyBytes)
	copy(out[4+len(keyBytes):], value)
	return out
}

func decodeLeafEntry(rec []byte) (dbtype.Key, []byte, error) {
	if len(rec) < 4 {
		return dbtype.Key{}, nil, errors.New("bptree: truncated leaf entry")
	}
	n := int(binary.LittleEndian.Uint32(rec[0:4]))
	rec = rec[4:]
	if len(rec) < n {
		return dbtype.Key{}, nil, errors.New("bptree: truncated leaf key")
	}
	tuple, err := dbtype.DecodeTuple(rec[:n])
	if err != nil {
		return dbtype.Key{}, nil, err
	}
	value := append([]byte(nil), rec[n:]...)
	return dbtype.KeyFromTuple(tuple), value, nil
}

func encodeInternalEntry(k dbtype.Key, childPageno uint32) []byte {
	var keyBytes []byte
	if len(k.Tuple()) > 0 {
		keyBytes = dbtype.EncodeTuple(k.Tuple())
	}
	out := make([]byte, 4+len(keyBytes)+4)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(keyBytes)))
	copy(out[4:4+len(keyBytes)], keyBytes)
	binary.LittleEndian.PutUint32(out[4+len(keyBytes):], childPageno)
	return out
}

func decodeInternalEntry(rec []byte) (dbtype.Key, uint32, bool, error) {
	if len(rec) < 4 {
		return dbtype.Key{}, 0, false, errors.New("bptree: truncated internal entry")
	}
	n := int(binary.LittleEndian.Uint32(rec[0:4]))
	rec = rec[4:]
	isTerminal := n == 0
	if len(rec) < n+4 {
		return dbtype.Key{}, 0, false, errors.New("bptree: truncated internal key/child")
	}
	var key dbtype.Key
	if !isTerminal {
		tuple, err := dbtype.DecodeTuple(rec[:n])
		if err != nil {
			return dbtype.Key{}, 0, false, err
		}
		key = dbtype.KeyFromTuple(tuple)
	}
	child := binary.LittleEndian.Uint32(rec[n : n+4])
	return key, child, isTerminal, nil
}

// Deserialize reads the root pageno, loads just the root page, and
// returns a tree whose children (and leaf siblings) resolve lazily
// through reads of path.
func Deserialize(path string, useCRC bool) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "bptree: open")
	}

	var prefix [8]byte
	if _, err := f.ReadAt(prefix[:], 0); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "bptree: read root prefix")
	}
	rootPageno := uint32(binary.LittleEndian.Uint64(prefix[:]))

	t := &Tree{leafCache: make(map[uint32]*node)}
	t.loader = func(pageno uint32) (*node, error) {
		buf := make([]byte, page.PageSize)
		if _, err := f.ReadAt(buf, pageOffset(pageno)); err != nil {
			return nil, errors.Wrapf(err, "bptree: read page %d", pageno)
		}
		pg, err := page.Deserialize(buf, useCRC)
		if err != nil {
			return nil, err
		}
		return decodeNode(pg, pageno)
	}

	root, err := t.loader(rootPageno)
	if err != nil {
		f.Close()
		return nil, err
	}
	t.root = root
	return t, nil
}

func decodeNode(pg *page.Page, pageno uint32) (*node, error) {
	if pg.IsLeaf() {
		n := newLeaf()
		n.pageno = pageno
		n.nextLeaf = pg.NextLeaf()
		for sid := 0; sid < pg.SlotCount(); sid++ {
			rec := pg.Select(sid)
			if rec == nil {
				continue
			}
			k, v, err := decodeLeafEntry(rec)
			if err != nil {
				return nil, err
			}
			n.keys = append(n.keys, k)
			n.values = append(n.values, v)
		}
		return n, nil
	}

	n := newInternal()
	n.pageno = pageno
	for sid := 0; sid < pg.SlotCount(); sid++ {
		rec := pg.Select(sid)
		if rec == nil {
			continue
		}
		k, child, terminal, err := decodeInternalEntry(rec)
		if err != nil {
			return nil, err
		}
		if !terminal {
			n.keys = append(n.keys, k)
		}
		n.children = append(n.children, &childRef{pageno: child})
	}
	return n, nil
}
