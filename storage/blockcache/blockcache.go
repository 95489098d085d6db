/*
Package blockcache implements a bounded in-memory block engine on freecache.
Blocks evicted to stay within the size limit simply become absent, so the
engine is meant to sit above a durable layer in a chain.
*/
package blockcache

import (
	"context"
	"fmt"

	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

// DefaultSize is the cache size used when no "size" setting is given.
const DefaultSize = 1 << 30

func init() {
	storage.RegisterEngineType(Engine{
		storage.NewEngineInfo("blockcache", "Bounded in-memory block cache", "0.1.0"),
	})
}

type Engine struct {
	storage.EngineInfo
}

// NewEngine returns a block cache sized by the "size" setting, e.g., "2 GB", with
// optional "blocksize", "compression" and "ttl" (seconds) settings.  Freecache
// rejects entries larger than about 1/1024 of the cache size.
func (e Engine) NewEngine(config dvid.StoreConfig) (storage.Engine, error) {
	size, found, err := config.GetBytes("size")
	if err != nil {
		return nil, err
	}
	if !found {
		size = DefaultSize
	}
	blockSize, err := config.BlockSize()
	if err != nil {
		return nil, err
	}
	name, _, err := config.GetString("compression")
	if err != nil {
		return nil, err
	}
	compress, err := dvid.ParseCompression(name)
	if err != nil {
		return nil, err
	}
	ttl, _, err := config.GetInt("ttl")
	if err != nil {
		return nil, err
	}
	return New(int(size), blockSize, compress, ttl)
}

// Cache is a block engine over a freecache.
type Cache struct {
	*storage.BlockEngine
	blocks *cachedBlocks
}

// New returns a block cache of the given size in bytes.  Entries expire after
// ttl seconds if ttl is positive.
func New(size int, blockSize dvid.Point3d, compress dvid.Compression, ttl int) (*Cache, error) {
	blocks := &cachedBlocks{
		cache:    freecache.NewCache(size),
		size:     size,
		compress: compress,
		ttl:      ttl,
	}
	engine, err := storage.NewBlockEngine(blocks, blockSize)
	if err != nil {
		return nil, err
	}
	dvid.Infof("Created freecache of %s for blocks of size %s.\n", humanize.Bytes(uint64(size)), blockSize)
	return &Cache{BlockEngine: engine, blocks: blocks}, nil
}

// EntryCount returns the number of cached blocks.
func (c *Cache) EntryCount() int64 {
	return c.blocks.cache.EntryCount()
}

// EvacuateCount returns the number of blocks evicted to make room.
func (c *Cache) EvacuateCount() int64 {
	return c.blocks.cache.EvacuateCount()
}

// Clear removes all cached blocks.
func (c *Cache) Clear() {
	c.blocks.cache.Clear()
}

// ---- BlockStore interface ------

type cachedBlocks struct {
	cache    *freecache.Cache
	size     int
	compress dvid.Compression
	ttl      int
}

func (cb *cachedBlocks) String() string {
	return fmt.Sprintf("block cache of %s", humanize.Bytes(uint64(cb.size)))
}

func cacheKey(k dvid.BlockKey) []byte {
	return []byte(k.String())
}

func (cb *cachedBlocks) ReadBlock(ctx context.Context, k dvid.BlockKey) (*storage.Block, error) {
	value, err := cb.cache.Get(cacheKey(k))
	if err == freecache.ErrNotFound {
		return nil, dvid.NotFoundf("block %s not cached", k)
	}
	if err != nil {
		return nil, dvid.IOFailure(err, "reading block %s from %s", k, cb)
	}
	block, err := storage.DecodeBlock(value)
	if err != nil {
		return nil, dvid.IOFailure(err, "decoding cached block %s", k)
	}
	return block, nil
}

func (cb *cachedBlocks) WriteBlock(ctx context.Context, k dvid.BlockKey, b *storage.Block) error {
	value, err := storage.EncodeBlock(b, cb.compress)
	if err != nil {
		return dvid.IOFailure(err, "encoding block %s", k)
	}
	if err := cb.cache.Set(cacheKey(k), value, cb.ttl); err != nil {
		return dvid.IOFailure(err, "caching block %s (%s)", k, humanize.Bytes(uint64(len(value))))
	}
	return nil
}

func (cb *cachedBlocks) HasBlock(ctx context.Context, k dvid.BlockKey, local dvid.Box) (bool, error) {
	block, err := cb.ReadBlock(ctx, k)
	if dvid.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return block.Covers(local), nil
}
