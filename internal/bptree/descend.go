package bptree

import (
	"bytes"
	"fmt"
)

// opKind parameterizes the single descent routine shared by Lookup and
// Update (component D), mirroring the source implementation's one
// LookupOrUpdateInternal function for both intents.
type opKind int

const (
	opLookup opKind = iota
	opUpdate
)

// childIndex returns the slot i such that key belongs in subtree Pi:
// the first i with key < keys[i], or len(keys) if no such key exists.
// This is the one separator rule shared by descent and insert.
func childIndex(keys [][]byte, key []byte) int {
	for i, k := range keys {
		if bytes.Compare(key, k) < 0 {
			return i
		}
	}
	return len(keys)
}

// descend walks from node down to a leaf looking for key, performing
// op once it arrives. For opLookup it returns the stored value; for
// opUpdate it overwrites the value in place and persists the leaf.
func (idx *Index) descend(node int64, op opKind, key, newValue []byte) ([]byte, error) {
	n, err := idx.alloc.readNode(node)
	if err != nil {
		return nil, err
	}

	switch n.Kind {
	case KindInterior, KindRoot:
		if n.NumKeys == 0 {
			return nil, ErrNotFound
		}
		keys, _ := n.interiorEntries()
		i := childIndex(keys, key)
		ptr, err := n.getPtr(i)
		if err != nil {
			return nil, err
		}
		return idx.descend(ptr, op, key, newValue)

	case KindLeaf:
		for i := 0; i < n.NumKeys; i++ {
			k, err := n.getKey(i)
			if err != nil {
				return nil, err
			}
			if bytes.Equal(k, key) {
				switch op {
				case opLookup:
					return n.getVal(i)
				case opUpdate:
					if err := n.setVal(i, newValue); err != nil {
						return nil, err
					}
					if err := idx.alloc.writeNode(node, n); err != nil {
						return nil, err
					}
					return nil, nil
				}
			}
		}
		return nil, ErrNotFound

	default:
		return nil, fmt.Errorf("%w: descent reached non-tree block (kind=%s)", ErrInsane, n.Kind)
	}
}
