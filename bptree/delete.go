package bptree

import (
	"bytes"

	"github.com/zhukovaskychina/reldb-core/dbtype"
)

// Delete drops every (key, value) entry matching key across the starting
// leaf and any successive leaves duplicates could span. If value is
// non-nil, only the pair matching both key and value is dropped.
// Underflow is never handled: sub-half-full leaves are left as-is.
func (t *Tree) Delete(key dbtype.Key, value []byte) error {
	n, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	for n != nil {
		lastWasMatch := len(n.keys) > 0 && n.keys[len(n.keys)-1].Equal(key)
		continueScan := lastWasMatch && n.hasNextLeaf()

		keys := n.keys[:0]
		values := n.values[:0]
		exceeded := false
		for i, k := range n.keys {
			if k.Equal(key) {
				if value != nil && !bytes.Equal(n.values[i], value) {
					keys = append(keys, k)
					values = append(values, n.values[i])
				}
				continue
			}
			if key.Less(k) {
				exceeded = true
			}
			keys = append(keys, k)
			values = append(values, n.values[i])
		}
		n.keys = keys
		n.values = values

		if exceeded || !continueScan {
			break
		}
		n, err = t.resolveNextLeaf(n)
		if err != nil {
			return err
		}
	}
	return nil
}
