// Package bptree implements a disk-backed B+-tree index over a
// blockdev.BlockDevice: fixed-width binary keys mapped to fixed-width
// binary values, with point lookup, no-overwrite insertion, in-place
// update, and a debug traversal renderer. Deletion, concurrency
// control, and crash recovery are out of scope (see SPEC_FULL.md).
package bptree

import (
	"fmt"

	"blockindex/internal/blockdev"
)

// Index is the public handle to an attached tree.
type Index struct {
	dev       blockdev.BlockDevice
	alloc     *Allocator
	blockSize int
	keysize   int
	valuesize int
}

// Attach mounts an index on dev. initBlock is nominally generic but
// only 0 is supported — kept as an explicit contract rather than an
// implicit assumption (§9). When create is true, a fresh superblock,
// root, and free list are built first; otherwise the existing
// superblock at block 0 is loaded and keysize/valuesize are read back
// from it.
func Attach(dev blockdev.BlockDevice, initBlock int64, keysize, valuesize int, create bool) (*Index, error) {
	if initBlock != 0 {
		return nil, fmt.Errorf("%w: initBlock must be 0, got %d", ErrInsane, initBlock)
	}

	alloc, err := attach(dev, keysize, valuesize, create)
	if err != nil {
		return nil, err
	}

	return &Index{
		dev:       dev,
		alloc:     alloc,
		blockSize: dev.GetBlockSize(),
		keysize:   alloc.keysize(),
		valuesize: alloc.valuesize(),
	}, nil
}

// Detach persists the superblock and flushes the underlying device.
func (idx *Index) Detach() error {
	if err := idx.alloc.writeSuper(); err != nil {
		return err
	}
	return idx.dev.Sync()
}

// Lookup returns the value stored for key, or ErrNotFound.
func (idx *Index) Lookup(key []byte) ([]byte, error) {
	if err := idx.checkKey(key); err != nil {
		return nil, err
	}
	return idx.descend(idx.alloc.RootBlock(), opLookup, key, nil)
}

// Update overwrites the value stored for an existing key, or returns
// ErrNotFound.
func (idx *Index) Update(key, value []byte) error {
	if err := idx.checkKeyValue(key, value); err != nil {
		return err
	}
	_, err := idx.descend(idx.alloc.RootBlock(), opUpdate, key, value)
	return err
}

// Delete is unimplemented (§1 Non-goals).
func (idx *Index) Delete(key []byte) error {
	return ErrUnimplemented
}

func (idx *Index) checkKey(key []byte) error {
	if len(key) != idx.keysize {
		return fmt.Errorf("bptree: key must be exactly %d bytes, got %d", idx.keysize, len(key))
	}
	return nil
}

func (idx *Index) checkKeyValue(key, value []byte) error {
	if err := idx.checkKey(key); err != nil {
		return err
	}
	if len(value) != idx.valuesize {
		return fmt.Errorf("bptree: value must be exactly %d bytes, got %d", idx.valuesize, len(value))
	}
	return nil
}
