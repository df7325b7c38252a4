package bptree

import (
	"fmt"

	"blockindex/internal/blockdev"
)

// Allocator owns the superblock and the free-list-based block
// allocator (component C): Allocate pops a block off the on-disk free
// list rooted in the superblock, Deallocate pushes one back on. The
// in-memory superblock copy is authoritative between calls and is
// rewritten to its backing block immediately after every mutation
// (§5), so the device's notify hooks can trust it.
type Allocator struct {
	dev   blockdev.BlockDevice
	super *Node
}

const superblockIndex = 0

func (a *Allocator) readNode(idx int64) (*Node, error) {
	data, err := a.dev.ReadBlock(idx)
	if err != nil {
		return nil, fmt.Errorf("bptree: read block %d: %w", idx, err)
	}
	return DecodeBlock(data)
}

func (a *Allocator) writeNode(idx int64, n *Node) error {
	if err := a.dev.WriteBlock(idx, n.Encode()); err != nil {
		return fmt.Errorf("bptree: write block %d: %w", idx, err)
	}
	return nil
}

func (a *Allocator) writeSuper() error {
	return a.writeNode(superblockIndex, a.super)
}

// RootBlock returns the current root's block index, per the in-memory
// superblock.
func (a *Allocator) RootBlock() int64 { return a.super.RootBlock }

// SetRootBlock installs a new root block index and persists the
// superblock immediately (§5: the root installation must be durable
// before Insert returns).
func (a *Allocator) SetRootBlock(idx int64) error {
	a.super.RootBlock = idx
	return a.writeSuper()
}

func (a *Allocator) keysize() int   { return a.super.KeySize }
func (a *Allocator) valuesize() int { return a.super.ValueSize }

// Allocate pops a block off the free list. Returns ErrOutOfSpace when
// the free list is empty.
func (a *Allocator) Allocate() (int64, error) {
	n := a.super.FreelistHead
	if n == 0 {
		return 0, ErrOutOfSpace
	}

	popped, err := a.readNode(n)
	if err != nil {
		return 0, err
	}
	if popped.Kind != KindFree {
		return 0, fmt.Errorf("%w: block %d popped off free list is not Free (kind=%s)", ErrInsane, n, popped.Kind)
	}

	a.super.FreelistHead = popped.FreelistHead
	if err := a.writeSuper(); err != nil {
		return 0, err
	}

	a.dev.NotifyAllocateBlock(n)

	return n, nil
}

// Deallocate rewrites b as Free, threading it onto the head of the
// free list, and updates the superblock head. b must not already be
// Free.
func (a *Allocator) Deallocate(b int64) error {
	node, err := a.readNode(b)
	if err != nil {
		return err
	}
	if node.Kind == KindFree {
		return fmt.Errorf("%w: block %d is already free", ErrInsane, b)
	}

	node.Kind = KindFree
	node.FreelistHead = a.super.FreelistHead
	if err := a.writeNode(b, node); err != nil {
		return err
	}

	a.super.FreelistHead = b
	if err := a.writeSuper(); err != nil {
		return err
	}

	a.dev.NotifyDeallocateBlock(b)

	return nil
}

// attach either builds a fresh superblock/root/free-list (create=true)
// or loads the existing superblock at block 0 (create=false).
func attach(dev blockdev.BlockDevice, keysize, valuesize int, create bool) (*Allocator, error) {
	if dev.GetNumBlocks() < 3 {
		return nil, fmt.Errorf("bptree: device must hold at least 3 blocks (superblock + root + 1 free), got %d", dev.GetNumBlocks())
	}

	a := &Allocator{dev: dev}

	if !create {
		data, err := dev.ReadBlock(superblockIndex)
		if err != nil {
			return nil, err
		}
		super, err := DecodeBlock(data)
		if err != nil {
			return nil, err
		}
		if super.Kind != KindSuper {
			return nil, fmt.Errorf("%w: block 0 is not a superblock (kind=%s)", ErrInsane, super.Kind)
		}
		a.super = super
		return a, nil
	}

	blockSize := dev.GetBlockSize()
	numBlocks := dev.GetNumBlocks()

	super := NewNode(KindSuper, blockSize, keysize, valuesize)
	super.RootBlock = 1
	super.FreelistHead = 2
	dev.NotifyAllocateBlock(superblockIndex)
	if err := a.writeNode(superblockIndex, super); err != nil {
		return nil, err
	}
	a.super = super

	root := NewNode(KindRoot, blockSize, keysize, valuesize)
	root.RootBlock = 1
	root.NumKeys = 0
	dev.NotifyAllocateBlock(1)
	if err := a.writeNode(1, root); err != nil {
		return nil, err
	}

	for i := int64(2); i < numBlocks; i++ {
		free := NewNode(KindFree, blockSize, keysize, valuesize)
		free.RootBlock = 1
		if i+1 == numBlocks {
			free.FreelistHead = 0
		} else {
			free.FreelistHead = i + 1
		}
		if err := a.writeNode(i, free); err != nil {
			return nil, err
		}
	}

	return a, nil
}
