package bptree

import "encoding/binary"

// This file implements the node accessor (component B): typed get/set
// of the k-th key, value, or child-pointer slot within a decoded node,
// plus the capacity queries that the insert engine relies on. Every method operates directly on the node's raw backing bytes;
// out-of-range indices return ErrOutOfBounds rather than being clamped.

// slotsLeaf returns the maximum num_keys a leaf can hold given this
// node's block size and key/value size.
func (n *Node) slotsLeaf() int {
	avail := n.blockSize() - headerSize - leafExtra
	if avail <= 0 {
		return 0
	}
	return avail / (n.KeySize + n.ValueSize)
}

// slotsInterior returns the maximum num_keys an interior/root node can
// hold given this node's block size and key size.
func (n *Node) slotsInterior() int {
	avail := n.blockSize() - headerSize - interiorExtra
	if avail <= 0 {
		return 0
	}
	return avail / (n.KeySize + 4)
}

func (n *Node) leafKeyOffset(i int) int {
	return headerSize + leafExtra + i*(n.KeySize+n.ValueSize)
}

func (n *Node) leafValOffset(i int) int {
	return n.leafKeyOffset(i) + n.KeySize
}

func (n *Node) interiorKeyOffset(i int) int {
	return headerSize + interiorExtra + i*(n.KeySize+4)
}

func (n *Node) interiorPtrOffset(i int) int {
	if i == 0 {
		return headerSize
	}
	return n.interiorKeyOffset(i-1) + n.KeySize
}

// getKey returns a copy of the key at slot i, valid for i in [0, NumKeys).
func (n *Node) getKey(i int) ([]byte, error) {
	if i < 0 || i >= n.NumKeys {
		return nil, ErrOutOfBounds
	}
	var off int
	switch n.Kind {
	case KindLeaf:
		off = n.leafKeyOffset(i)
	case KindInterior, KindRoot:
		off = n.interiorKeyOffset(i)
	default:
		return nil, ErrInsane
	}
	out := make([]byte, n.KeySize)
	copy(out, n.raw[off:off+n.KeySize])
	return out, nil
}

// setKey writes key into slot i, valid for i in [0, NumKeys).
func (n *Node) setKey(i int, key []byte) error {
	if i < 0 || i >= n.NumKeys {
		return ErrOutOfBounds
	}
	var off int
	switch n.Kind {
	case KindLeaf:
		off = n.leafKeyOffset(i)
	case KindInterior, KindRoot:
		off = n.interiorKeyOffset(i)
	default:
		return ErrInsane
	}
	copy(n.raw[off:off+n.KeySize], key)
	return nil
}

// getVal returns a copy of the value at leaf slot i, valid for i in
// [0, NumKeys).
func (n *Node) getVal(i int) ([]byte, error) {
	if n.Kind != KindLeaf {
		return nil, ErrInsane
	}
	if i < 0 || i >= n.NumKeys {
		return nil, ErrOutOfBounds
	}
	off := n.leafValOffset(i)
	out := make([]byte, n.ValueSize)
	copy(out, n.raw[off:off+n.ValueSize])
	return out, nil
}

// setVal writes val into leaf slot i, valid for i in [0, NumKeys).
func (n *Node) setVal(i int, val []byte) error {
	if n.Kind != KindLeaf {
		return ErrInsane
	}
	if i < 0 || i >= n.NumKeys {
		return ErrOutOfBounds
	}
	off := n.leafValOffset(i)
	copy(n.raw[off:off+n.ValueSize], val)
	return nil
}

// getPtr returns the child block index at interior/root slot i, valid
// for i in [0, NumKeys].
func (n *Node) getPtr(i int) (int64, error) {
	if n.Kind != KindInterior && n.Kind != KindRoot {
		return 0, ErrInsane
	}
	if i < 0 || i > n.NumKeys {
		return 0, ErrOutOfBounds
	}
	off := n.interiorPtrOffset(i)
	return int64(binary.LittleEndian.Uint32(n.raw[off : off+4])), nil
}

// setPtr writes the child block index at interior/root slot i, valid
// for i in [0, NumKeys].
func (n *Node) setPtr(i int, ptr int64) error {
	if n.Kind != KindInterior && n.Kind != KindRoot {
		return ErrInsane
	}
	if i < 0 || i > n.NumKeys {
		return ErrOutOfBounds
	}
	off := n.interiorPtrOffset(i)
	binary.LittleEndian.PutUint32(n.raw[off:off+4], uint32(ptr))
	return nil
}

// setLink writes the leaf's reserved slot-0 link pointer. It is never
// read back by this implementation (see SPEC_FULL.md §9).
func (n *Node) setLink(ptr int64) {
	binary.LittleEndian.PutUint32(n.raw[headerSize:headerSize+4], uint32(ptr))
}

// leafEntries returns copies of all (key, value) pairs currently
// occupying the leaf, in slot order. Used by the insert and split
// engines, which operate on the whole slot array rather than shifting
// bytes in place.
func (n *Node) leafEntries() (keys, vals [][]byte) {
	keys = make([][]byte, n.NumKeys)
	vals = make([][]byte, n.NumKeys)
	for i := 0; i < n.NumKeys; i++ {
		keys[i], _ = n.getKey(i)
		vals[i], _ = n.getVal(i)
	}
	return keys, vals
}

// setLeafEntries resizes the leaf to len(keys) slots and writes keys
// and vals into them. Capacity is the caller's responsibility.
func (n *Node) setLeafEntries(keys, vals [][]byte) {
	n.NumKeys = len(keys)
	for i := range keys {
		_ = n.setKey(i, keys[i])
		_ = n.setVal(i, vals[i])
	}
}

// interiorEntries returns copies of all keys and child pointers
// currently occupying the interior/root node, in slot order. There is
// always exactly one more pointer than key.
func (n *Node) interiorEntries() (keys [][]byte, ptrs []int64) {
	keys = make([][]byte, n.NumKeys)
	ptrs = make([]int64, n.NumKeys+1)
	for i := 0; i < n.NumKeys; i++ {
		keys[i], _ = n.getKey(i)
	}
	for i := 0; i <= n.NumKeys; i++ {
		ptrs[i], _ = n.getPtr(i)
	}
	return keys, ptrs
}

// setInteriorEntries resizes the node to len(keys) keys and
// len(keys)+1 pointers and writes them. Capacity is the caller's
// responsibility.
func (n *Node) setInteriorEntries(keys [][]byte, ptrs []int64) {
	n.NumKeys = len(keys)
	for i := range keys {
		_ = n.setKey(i, keys[i])
	}
	for i := range ptrs {
		_ = n.setPtr(i, ptrs[i])
	}
}
