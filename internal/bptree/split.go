package bptree

import "bytes"

// This file implements the split engine (component F): dividing an
// overfull leaf or interior node into two, producing the separator key
// to hand to the parent. Both cases form the "virtual merged array"
// called for in §9's re-architecture notes as a pre-sized buffer
// (here, a plain slice) rather than a variable-length stack array.

// splitLeaf splits an overfull leaf, merging in the new (key, value)
// first. It allocates the new right sibling lazily, at the moment the
// split is known to be necessary (see SPEC_FULL.md §9, resolved open
// question on pre-allocation).
func (idx *Index) splitLeaf(leafIdx int64, leaf *Node, key, value []byte) (newNode int64, newKey []byte, err error) {
	keys, vals := leaf.leafEntries()

	pos := 0
	for pos < len(keys) && bytes.Compare(key, keys[pos]) >= 0 {
		pos++
	}
	keys = append(keys[:pos:pos], append([][]byte{key}, keys[pos:]...)...)
	vals = append(vals[:pos:pos], append([][]byte{value}, vals[pos:]...)...)

	total := len(keys) // n+1
	leftCount := (total + 1) / 2
	leftKeys, leftVals := keys[:leftCount], vals[:leftCount]
	rightKeys, rightVals := keys[leftCount:], vals[leftCount:]

	rightID, err := idx.alloc.Allocate()
	if err != nil {
		return 0, nil, err
	}

	right := NewNode(KindLeaf, idx.blockSize, idx.keysize, idx.valuesize)
	right.setLeafEntries(rightKeys, rightVals)
	if err := idx.alloc.writeNode(rightID, right); err != nil {
		return 0, nil, err
	}

	leaf.setLeafEntries(leftKeys, leftVals)
	if err := idx.alloc.writeNode(leafIdx, leaf); err != nil {
		return 0, nil, err
	}

	// Leaf semantics: the separator is also retained in the right leaf
	// (it is not promoted away, unlike the interior case below).
	return rightID, rightKeys[0], nil
}

// splitInterior splits an overfull interior/root node given the
// already-merged (n+1 keys, n+2 pointers) virtual sequence. The
// promoted key is discarded from both children; its right-hand
// pointer survives as the right sibling's P0.
func (idx *Index) splitInterior(nodeIdx int64, node *Node, mergedKeys [][]byte, mergedPtrs []int64) (newNode int64, newKey []byte, err error) {
	n := len(mergedKeys) - 1 // original numKeys before this insert
	leftCount := (n + 1) / 2

	leftKeys := mergedKeys[:leftCount]
	leftPtrs := mergedPtrs[:leftCount+1]
	promote := mergedKeys[leftCount]
	rightKeys := mergedKeys[leftCount+1:]
	rightPtrs := mergedPtrs[leftCount+1:]

	rightID, err := idx.alloc.Allocate()
	if err != nil {
		return 0, nil, err
	}

	right := NewNode(KindInterior, idx.blockSize, idx.keysize, idx.valuesize)
	right.setInteriorEntries(rightKeys, rightPtrs)
	if err := idx.alloc.writeNode(rightID, right); err != nil {
		return 0, nil, err
	}

	// A splitting root is relabeled Interior; the new root above it is
	// allocated by the caller (Insert), never by Split itself.
	if node.Kind == KindRoot {
		node.Kind = KindInterior
	}
	node.setInteriorEntries(leftKeys, leftPtrs)
	if err := idx.alloc.writeNode(nodeIdx, node); err != nil {
		return 0, nil, err
	}

	return rightID, promote, nil
}
