// Package bptree implements the order-M B+ tree index over dbtype.Key
// values: lazily-loaded nodes, leaf/internal split with
// next_leaf re-threading, and BFS bulk serialization to slotted pages.
package bptree

import "github.com/zhukovaskychina/reldb-core/dbtype"

// Order is the split threshold M: a node
// splits once it holds more than Order keys.
const Order = 10

// NextLeafNone marks a leaf with no right sibling.
const NextLeafNone uint32 = 0xFFFFFFFF

// childRef is a child pointer that may still be an unloaded placeholder:
// only pageno is known until load_node materializes node.
type childRef struct {
	pageno uint32
	node   *node
}

// node is one B+ tree node, in-memory. Persistence (node ↔ slotted page)
// lives entirely in persist.go; mutation logic here never touches
// page.Page directly.
type node struct {
	pageno uint32
	isLeaf bool

	keys []dbtype.Key

	// Leaf fields.
	values       [][]byte // parallel to keys
	nextLeaf     uint32   // NextLeafNone if none; valid once persisted
	nextLeafNode *node    // resident sibling, when known without a disk round-trip

	// Internal fields: len(children) == len(keys)+1.
	children []*childRef
}

func (n *node) hasNextLeaf() bool {
	return n.nextLeafNode != nil || n.nextLeaf != NextLeafNone
}

func newLeaf() *node {
	return &node{isLeaf: true, nextLeaf: NextLeafNone}
}

func newInternal() *node {
	return &node{isLeaf: false}
}
