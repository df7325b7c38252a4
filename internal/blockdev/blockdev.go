// Package blockdev provides the fixed-capacity, fixed-block-size file
// backing store and read cache that the bptree package treats as an
// external collaborator: it never sees a file, only a BlockDevice.
package blockdev

import (
	"fmt"
	"os"
	"sync"
)

// BlockDevice is the contract the B+ tree core consumes: a fixed number
// of fixed-size blocks, addressable by index, plus advisory hooks the
// cache uses to track block liveness.
type BlockDevice interface {
	GetBlockSize() int
	GetNumBlocks() int64
	ReadBlock(idx int64) ([]byte, error)
	WriteBlock(idx int64, data []byte) error
	NotifyAllocateBlock(idx int64)
	NotifyDeallocateBlock(idx int64)
	Sync() error
	Close() error
}

// FileDevice is a BlockDevice backed by a single regular file, pre-sized
// to numBlocks*blockSize bytes so GetNumBlocks is constant for the
// device's lifetime.
type FileDevice struct {
	file      *os.File
	blockSize int
	numBlocks int64
	mu        sync.RWMutex
}

// Create opens (creating if necessary) path and truncates it to hold
// exactly numBlocks blocks of blockSize bytes each.
func Create(path string, blockSize int, numBlocks int64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}
	if err := f.Truncate(int64(blockSize) * numBlocks); err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: truncate %s: %w", path, err)
	}
	return &FileDevice{file: f, blockSize: blockSize, numBlocks: numBlocks}, nil
}

// Open opens an existing file as a block device. blockSize is required
// since it cannot be derived from file size alone; numBlocks is derived
// from the file size.
func Open(path string, blockSize int) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: stat %s: %w", path, err)
	}
	numBlocks := stat.Size() / int64(blockSize)
	return &FileDevice{file: f, blockSize: blockSize, numBlocks: numBlocks}, nil
}

func (d *FileDevice) GetBlockSize() int     { return d.blockSize }
func (d *FileDevice) GetNumBlocks() int64   { return d.numBlocks }
func (d *FileDevice) NotifyAllocateBlock(idx int64)   {}
func (d *FileDevice) NotifyDeallocateBlock(idx int64) {}

func (d *FileDevice) ReadBlock(idx int64) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if idx < 0 || idx >= d.numBlocks {
		return nil, fmt.Errorf("blockdev: block %d out of range [0,%d)", idx, d.numBlocks)
	}

	block := make([]byte, d.blockSize)
	offset := idx * int64(d.blockSize)
	n, err := d.file.ReadAt(block, offset)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("blockdev: read block %d: %w", idx, err)
	}
	return block, nil
}

func (d *FileDevice) WriteBlock(idx int64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if idx < 0 || idx >= d.numBlocks {
		return fmt.Errorf("blockdev: block %d out of range [0,%d)", idx, d.numBlocks)
	}
	if len(data) != d.blockSize {
		return fmt.Errorf("blockdev: data size %d does not match block size %d", len(data), d.blockSize)
	}

	offset := idx * int64(d.blockSize)
	if _, err := d.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("blockdev: write block %d: %w", idx, err)
	}
	return nil
}

func (d *FileDevice) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	return d.file.Sync()
}

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	if err := d.file.Sync(); err != nil {
		d.file.Close()
		d.file = nil
		return fmt.Errorf("blockdev: sync before close: %w", err)
	}
	err := d.file.Close()
	d.file = nil
	return err
}
