package blockdev

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// CachedDevice decorates a BlockDevice with a read-through cache keyed by
// block index. Writes are write-through: the underlying device is
// updated first, then the cache entry, so nothing is ever observably
// cached before it is durable.
type CachedDevice struct {
	dev   BlockDevice
	cache *ristretto.Cache[int64, []byte]
}

// NewCachedDevice wraps dev with a ristretto-backed cache sized to hold
// roughly capacityBlocks blocks (cost is measured in bytes per block).
func NewCachedDevice(dev BlockDevice, capacityBlocks int64) (*CachedDevice, error) {
	blockSize := int64(dev.GetBlockSize())
	maxCost := capacityBlocks * blockSize
	if maxCost <= 0 {
		maxCost = 1 << 20
	}

	cache, err := ristretto.NewCache(&ristretto.Config[int64, []byte]{
		NumCounters: capacityBlocks * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("blockdev: create cache: %w", err)
	}
	return &CachedDevice{dev: dev, cache: cache}, nil
}

func (c *CachedDevice) GetBlockSize() int   { return c.dev.GetBlockSize() }
func (c *CachedDevice) GetNumBlocks() int64 { return c.dev.GetNumBlocks() }

func (c *CachedDevice) ReadBlock(idx int64) ([]byte, error) {
	if cached, ok := c.cache.Get(idx); ok {
		out := make([]byte, len(cached))
		copy(out, cached)
		return out, nil
	}

	block, err := c.dev.ReadBlock(idx)
	if err != nil {
		return nil, err
	}

	cacheCopy := make([]byte, len(block))
	copy(cacheCopy, block)
	c.cache.Set(idx, cacheCopy, int64(len(cacheCopy)))
	c.cache.Wait()

	return block, nil
}

func (c *CachedDevice) WriteBlock(idx int64, data []byte) error {
	if err := c.dev.WriteBlock(idx, data); err != nil {
		return err
	}

	cacheCopy := make([]byte, len(data))
	copy(cacheCopy, data)
	c.cache.Set(idx, cacheCopy, int64(len(cacheCopy)))
	c.cache.Wait()

	return nil
}

// NotifyAllocateBlock leaves the cache untouched and only forwards to the
// wrapped device: the block's freshly-written contents populate the cache
// on the next WriteBlock.
func (c *CachedDevice) NotifyAllocateBlock(idx int64) {
	c.dev.NotifyAllocateBlock(idx)
}

// NotifyDeallocateBlock drops the cache entry: a freed block's old
// contents are no longer meaningful to a reader.
func (c *CachedDevice) NotifyDeallocateBlock(idx int64) {
	c.cache.Del(idx)
	c.dev.NotifyDeallocateBlock(idx)
}

func (c *CachedDevice) Sync() error { return c.dev.Sync() }

func (c *CachedDevice) Close() error {
	c.cache.Close()
	return c.dev.Close()
}
