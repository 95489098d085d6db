package blockcache

import (
	"context"
	"testing"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

func TestCacheBlocks(t *testing.T) {
	ctx := context.Background()
	cache, err := New(4<<20, dvid.Point3d{4, 4, 4}, dvid.Snappy, 0)
	if err != nil {
		t.Fatalf("unable to create cache: %v", err)
	}

	coord, _ := dvid.ParseCutoutPath("col/exp/chan/0/1:7/0:3/2:9")
	found, err := cache.Has(ctx, coord)
	if err != nil || found {
		t.Fatalf("expected empty cache, got %t, %v", found, err)
	}
	v := dvid.NewVolume(coord.Size())
	v.Fill(5)
	if err := cache.Put(ctx, coord, v); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if n := cache.EntryCount(); n != 6 {
		t.Errorf("expected 6 cached blocks, got %d", n)
	}
	out, err := cache.Get(ctx, coord)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !out.Equal(v) {
		t.Fatalf("cached cutout differs from the one written")
	}

	partial := coord.WithBox(dvid.Box{{Start: 0, Stop: 2}, {Start: 0, Stop: 3}, {Start: 2, Stop: 4}})
	if _, err := cache.Get(ctx, partial); !dvid.IsNotFound(err) {
		t.Errorf("expected not found for partially cached cutout, got %v", err)
	}

	cache.Clear()
	if _, err := cache.Get(ctx, coord); !dvid.IsNotFound(err) {
		t.Errorf("expected not found after clear, got %v", err)
	}
}

func TestEviction(t *testing.T) {
	ctx := context.Background()
	cache, err := New(512*1024, dvid.Point3d{4, 4, 4}, dvid.Uncompressed, 0)
	if err != nil {
		t.Fatalf("unable to create cache: %v", err)
	}
	// 16384 small blocks cannot all fit in the cache.
	coord, _ := dvid.ParseCutoutPath("col/exp/chan/0/0:4/0:4/0:65536")
	if err := cache.Put(ctx, coord, dvid.NewVolume(coord.Size())); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if n := cache.EntryCount(); n >= 16384 {
		t.Errorf("expected eviction, have %d entries", n)
	}
	if _, err := cache.Get(ctx, coord); !dvid.IsNotFound(err) {
		t.Errorf("expected evicted cutout to be absent, got %v", err)
	}
}

func TestLargeEntry(t *testing.T) {
	ctx := context.Background()
	cache, err := New(512*1024, dvid.Point3d{16, 16, 16}, dvid.Uncompressed, 0)
	if err != nil {
		t.Fatalf("unable to create cache: %v", err)
	}
	coord, _ := dvid.ParseCutoutPath("col/exp/chan/0/0:16/0:16/0:16")
	if err := cache.Put(ctx, coord, dvid.NewVolume(coord.Size())); !dvid.IsIOFailure(err) {
		t.Errorf("expected I/O failure for block larger than cache entry limit, got %v", err)
	}
}

func TestNewEngine(t *testing.T) {
	config := dvid.StoreConfig{
		Config: dvid.NewConfig(map[string]interface{}{"size": "8 MB", "blocksize": "32,32,32", "compression": "zstd", "ttl": int64(60)}),
		Engine: "blockcache",
	}
	engine, err := Engine{}.NewEngine(config)
	if err != nil {
		t.Fatalf("unable to create engine: %v", err)
	}
	if got := engine.(*Cache).BlockSize(); got != (dvid.Point3d{32, 32, 32}) {
		t.Errorf("expected block size (32,32,32), got %s", got)
	}
	bad := dvid.StoreConfig{Config: dvid.NewConfig(map[string]interface{}{"compression": "lzma"}), Engine: "blockcache"}
	if _, err := (Engine{}).NewEngine(bad); err == nil {
		t.Errorf("expected error for unknown compression")
	}
}
