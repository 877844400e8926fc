package bptree

import "github.com/zhukovaskychina/reldb-core/dbtype"

// Insert descends to the leaf for key and inserts (key, value) at the
// rightmost position whose key is ≤ key, stable for duplicates. Overflowing nodes split recursively up to the root.
func (t *Tree) Insert(key dbtype.Key, value []byte) error {
	splitKey, right, err := t.insert(t.root, key, value)
	if err != nil {
		return err
	}
	if right != nil {
		newRoot := newInternal()
		newRoot.keys = []dbtype.Key{splitKey}
		left := t.root
		newRoot.children = []*childRef{{node: left}, {node: right}}
		t.root = newRoot
	}
	return nil
}

// insert returns (separatorKey, newRightSibling, err) when n split,
// otherwise (_, nil, err).
func (t *Tree) insert(n *node, key dbtype.Key, value []byte) (dbtype.Key, *node, error) {
	if n.isLeaf {
		i := 0
		for i < len(n.keys) && !key.Less(n.keys[i]) {
			i++
		}
		n.keys = insertKeyAt(n.keys, i, key)
		n.values = insertValueAt(n.values, i, value)

		if len(n.keys) <= Order {
			return dbtype.Key{}, nil, nil
		}
		return t.splitLeaf(n)
	}

	i := 0
	for i < len(n.keys) && n.keys[i].Less(key) {
		i++
	}
	var childIdx int
	if i < len(n.keys) {
		childIdx = i
	} else {
		childIdx = len(n.children) - 1
	}
	child, err := t.resolve(n.children[childIdx])
	if err != nil {
		return dbtype.Key{}, nil, err
	}

	sepKey, rightChild, err := t.insert(child, key, value)
	if err != nil {
		return dbtype.Key{}, nil, err
	}
	if rightChild == nil {
		return dbtype.Key{}, nil, nil
	}

	n.keys = insertKeyAt(n.keys, childIdx, sepKey)
	n.children = insertChildAt(n.children, childIdx+1, &childRef{node: rightChild})

	if len(n.keys) <= Order {
		return dbtype.Key{}, nil, nil
	}
	return t.splitInternal(n)
}

func (t *Tree) splitLeaf(n *node) (dbtype.Key, *node, error) {
	mid := len(n.keys) / 2
	right := newLeaf()
	right.keys = append([]dbtype.Key(nil), n.keys[mid:]...)
	right.values = append([][]byte(nil), n.values[mid:]...)
	n.keys = n.keys[:mid]
	n.values = n.values[:mid]

	right.nextLeaf = n.nextLeaf
	right.nextLeafNode = n.nextLeafNode
	n.nextLeaf = NextLeafNone
	n.nextLeafNode = right

	return right.keys[0], right, nil
}

// splitInternal splits an overflowing internal node at its middle key,
// promoting that key to the parent and removing it from both children's
// key lists (standard B+ tree internal split). The reference
// implementation this is modeled on has a documented bug where the
// promoted separator is left behind in the left sibling's key list; that
// is not reproduced here because it corrupts the keys/children
// cardinality invariant (children must stay keys+1) rather than merely
// duplicating a key, which would misdirect every later descent through
// the affected node — see the design notes for this decision.
func (t *Tree) splitInternal(n *node) (dbtype.Key, *node, error) {
	mid := len(n.keys) / 2
	sep := n.keys[mid]

	right := newInternal()
	right.keys = append([]dbtype.Key(nil), n.keys[mid+1:]...)
	right.children = append([]*childRef(nil), n.children[mid+1:]...)

	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]

	return sep, right, nil
}

func insertKeyAt(keys []dbtype.Key, i int, k dbtype.Key) []dbtype.Key {
	keys = append(keys, dbtype.Key{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	return keys
}

func insertValueAt(values [][]byte, i int, v []byte) [][]byte {
	values = append(values, nil)
	copy(values[i+1:], values[i:])
	values[i] = v
	return values
}

func insertChildAt(children []*childRef, i int, c *childRef) []*childRef {
	children = append(children, nil)
	copy(children[i+1:], children[i:])
	children[i] = c
	return children
}
