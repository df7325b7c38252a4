package bptree

import "fmt"

// Insert adds (key, value) to the tree. It fails with ErrConflict if
// key is already present; no-overwrite is the contract (component E).
func (idx *Index) Insert(key, value []byte) error {
	if err := idx.checkKeyValue(key, value); err != nil {
		return err
	}

	_, err := idx.descend(idx.alloc.RootBlock(), opLookup, key, nil)
	switch err {
	case nil:
		return ErrConflict
	case ErrNotFound:
		// expected: proceed with the insert
	default:
		return err
	}

	newNode, newKey, err := idx.insertInternal(idx.alloc.RootBlock(), key, value)
	if err != nil {
		return err
	}

	if newNode == 0 {
		return nil
	}

	// The root itself split: grow the tree by one level. The new root
	// is initialized fresh with exactly one key and two child
	// pointers — it never copies the old root's contents (§9).
	newRootID, err := idx.alloc.Allocate()
	if err != nil {
		return err
	}
	newRoot := NewNode(KindRoot, idx.blockSize, idx.keysize, idx.valuesize)
	newRoot.NumKeys = 1
	if err := newRoot.setKey(0, newKey); err != nil {
		return err
	}
	if err := newRoot.setPtr(0, idx.alloc.RootBlock()); err != nil {
		return err
	}
	if err := newRoot.setPtr(1, newNode); err != nil {
		return err
	}
	if err := idx.alloc.writeNode(newRootID, newRoot); err != nil {
		return err
	}

	return idx.alloc.SetRootBlock(newRootID)
}

// insertInternal recurses from nodeIdx (an interior or root block)
// down to the leaf that should hold key, inserting along the way and
// propagating a (separator key, new sibling block) pair upward when a
// child splits. newNode == 0 means nothing propagated.
func (idx *Index) insertInternal(nodeIdx int64, key, value []byte) (newNode int64, newKey []byte, err error) {
	node, err := idx.alloc.readNode(nodeIdx)
	if err != nil {
		return 0, nil, err
	}
	if node.Kind != KindInterior && node.Kind != KindRoot {
		return 0, nil, fmt.Errorf("%w: expected interior/root at block %d, got %s", ErrInsane, nodeIdx, node.Kind)
	}

	if node.NumKeys == 0 {
		// Only possible at a freshly created empty root: materialize
		// two empty leaf children and install key as the sole
		// separator between them (§4.E.2).
		leftID, err := idx.alloc.Allocate()
		if err != nil {
			return 0, nil, err
		}
		leftLeaf := NewNode(KindLeaf, idx.blockSize, idx.keysize, idx.valuesize)
		if err := idx.alloc.writeNode(leftID, leftLeaf); err != nil {
			return 0, nil, err
		}

		rightID, err := idx.alloc.Allocate()
		if err != nil {
			return 0, nil, err
		}
		rightLeaf := NewNode(KindLeaf, idx.blockSize, idx.keysize, idx.valuesize)
		if err := idx.alloc.writeNode(rightID, rightLeaf); err != nil {
			return 0, nil, err
		}

		node.NumKeys = 1
		if err := node.setKey(0, key); err != nil {
			return 0, nil, err
		}
		if err := node.setPtr(0, leftID); err != nil {
			return 0, nil, err
		}
		if err := node.setPtr(1, rightID); err != nil {
			return 0, nil, err
		}
		if err := idx.alloc.writeNode(nodeIdx, node); err != nil {
			return 0, nil, err
		}
	}

	keys, _ := node.interiorEntries()
	childAt := childIndex(keys, key)
	childPtr, err := node.getPtr(childAt)
	if err != nil {
		return 0, nil, err
	}

	child, err := idx.alloc.readNode(childPtr)
	if err != nil {
		return 0, nil, err
	}

	switch child.Kind {
	case KindLeaf:
		if child.NumKeys < child.slotsLeaf() {
			if err := insertLeafSlot(child, key, value); err != nil {
				return 0, nil, err
			}
			if err := idx.alloc.writeNode(childPtr, child); err != nil {
				return 0, nil, err
			}
			return 0, nil, nil
		}

		sepKey, rightID, err := idx.splitLeafAndReport(childPtr, child, key, value)
		if err != nil {
			return 0, nil, err
		}
		return idx.insertSeparator(nodeIdx, node, childAt, sepKey, rightID)

	case KindInterior:
		childNew, childSep, err := idx.insertInternal(childPtr, key, value)
		if err != nil {
			return 0, nil, err
		}
		if childNew == 0 {
			return 0, nil, nil
		}
		return idx.insertSeparator(nodeIdx, node, childAt, childSep, childNew)

	default:
		return 0, nil, fmt.Errorf("%w: child at block %d has unexpected kind %s", ErrInsane, childPtr, child.Kind)
	}
}

// splitLeafAndReport is a thin wrapper that reorders splitLeaf's
// return values to (sepKey, rightID) for readability at call sites.
func (idx *Index) splitLeafAndReport(leafIdx int64, leaf *Node, key, value []byte) (sepKey []byte, rightID int64, err error) {
	rightID, sepKey, err = idx.splitLeaf(leafIdx, leaf, key, value)
	return sepKey, rightID, err
}

// insertLeafSlot inserts (key, value) into a leaf that has a free
// slot, preserving ascending key order.
func insertLeafSlot(leaf *Node, key, value []byte) error {
	keys, vals := leaf.leafEntries()
	pos := childIndex(keys, key)

	keys = append(keys[:pos:pos], append([][]byte{key}, keys[pos:]...)...)
	vals = append(vals[:pos:pos], append([][]byte{value}, vals[pos:]...)...)
	leaf.setLeafEntries(keys, vals)
	return nil
}

// insertSeparator installs (sepKey, rightChild) into node just to the
// right of its childAt'th pointer — key at childAt, pointer at
// childAt+1 (§9, resolved open question) — splitting node if it has
// no free slot.
func (idx *Index) insertSeparator(nodeIdx int64, node *Node, childAt int, sepKey []byte, rightChild int64) (newNode int64, newKey []byte, err error) {
	keys, ptrs := node.interiorEntries()

	mergedKeys := make([][]byte, 0, len(keys)+1)
	mergedKeys = append(mergedKeys, keys[:childAt]...)
	mergedKeys = append(mergedKeys, sepKey)
	mergedKeys = append(mergedKeys, keys[childAt:]...)

	mergedPtrs := make([]int64, 0, len(ptrs)+1)
	mergedPtrs = append(mergedPtrs, ptrs[:childAt+1]...)
	mergedPtrs = append(mergedPtrs, rightChild)
	mergedPtrs = append(mergedPtrs, ptrs[childAt+1:]...)

	if len(mergedKeys) <= node.slotsInterior() {
		node.setInteriorEntries(mergedKeys, mergedPtrs)
		if err := idx.alloc.writeNode(nodeIdx, node); err != nil {
			return 0, nil, err
		}
		return 0, nil, nil
	}

	return idx.splitInterior(nodeIdx, node, mergedKeys, mergedPtrs)
}
