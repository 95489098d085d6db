package storage

import (
	"context"
	"fmt"
	"sync"

	. "github.com/janelia-flyem/go/gocheck"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

// mapBlocks is a BlockStore holding encoded blocks in a map.
type mapBlocks struct {
	sync.Mutex
	blocks map[dvid.BlockKey][]byte
	reads  int
	writes int
}

func newMapBlocks() *mapBlocks {
	return &mapBlocks{blocks: make(map[dvid.BlockKey][]byte)}
}

func (mb *mapBlocks) String() string { return "map blocks" }

func (mb *mapBlocks) ReadBlock(ctx context.Context, k dvid.BlockKey) (*Block, error) {
	mb.Lock()
	defer mb.Unlock()
	mb.reads++
	buf, found := mb.blocks[k]
	if !found {
		return nil, dvid.NotFoundf("block %s", k)
	}
	return DecodeBlock(buf)
}

func (mb *mapBlocks) WriteBlock(ctx context.Context, k dvid.BlockKey, b *Block) error {
	buf, err := EncodeBlock(b, dvid.Snappy)
	if err != nil {
		return err
	}
	mb.Lock()
	defer mb.Unlock()
	mb.writes++
	mb.blocks[k] = buf
	return nil
}

func (mb *mapBlocks) HasBlock(ctx context.Context, k dvid.BlockKey, local dvid.Box) (bool, error) {
	block, err := mb.ReadBlock(ctx, k)
	if dvid.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return block.Covers(local), nil
}

func (s *DataSuite) TestBlockRecord(c *C) {
	b := NewBlock(dvid.Point3d{4, 5, 6})
	b.Data.Set(3, 4, 5, 200)
	b.Mask.SetBox(dvid.Box{{Start: 0, Stop: 2}, {Start: 0, Stop: 5}, {Start: 0, Stop: 6}})
	for _, compress := range []dvid.Compression{dvid.Uncompressed, dvid.Snappy, dvid.Zstd} {
		buf, err := EncodeBlock(b, compress)
		c.Assert(err, IsNil)
		out, err := DecodeBlock(buf)
		c.Assert(err, IsNil)
		c.Assert(out.Data.Equal(b.Data), Equals, true)
		c.Assert(out.Mask, NotNil)
		c.Assert(out.Covers(dvid.Box{{Start: 0, Stop: 2}, {Start: 0, Stop: 5}, {Start: 0, Stop: 6}}), Equals, true)
		c.Assert(out.Covers(dvid.Box{{Start: 0, Stop: 3}, {Start: 0, Stop: 5}, {Start: 0, Stop: 6}}), Equals, false)
	}

	full := &Block{Data: b.Data}
	buf, err := EncodeBlock(full, dvid.Snappy)
	c.Assert(err, IsNil)
	out, err := DecodeBlock(buf)
	c.Assert(err, IsNil)
	c.Assert(out.Mask, IsNil)
	c.Assert(out.Covers(dvid.Box{{Start: 0, Stop: 4}, {Start: 0, Stop: 5}, {Start: 0, Stop: 6}}), Equals, true)

	_, err = DecodeBlock(buf[:len(buf)-3])
	c.Assert(err, NotNil)
}

func (s *DataSuite) TestBlockEngineStraddle(c *C) {
	ctx := context.Background()
	store := newMapBlocks()
	e, err := NewBlockEngine(store, dvid.Point3d{4, 4, 4})
	c.Assert(err, IsNil)

	coord := cutout(c, "col/exp/chan/0/1:7/0:3/2:9")
	_, err = e.Get(ctx, coord)
	c.Assert(dvid.IsNotFound(err), Equals, true)

	v := dvid.NewVolume(coord.Size())
	data := v.Bytes()
	for i := range data {
		data[i] = byte(i % 251)
	}
	c.Assert(e.Put(ctx, coord, v), IsNil)
	c.Assert(store.blocks, HasLen, 6)

	out, err := e.Get(ctx, coord)
	c.Assert(err, IsNil)
	c.Assert(out.Equal(v), Equals, true)

	found, err := e.Has(ctx, coord)
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)

	// A sub-cutout within the written region is served from the same blocks.
	sub := coord.WithBox(dvid.Box{{Start: 3, Stop: 5}, {Start: 1, Stop: 2}, {Start: 3, Stop: 8}})
	out, err = e.Get(ctx, sub)
	c.Assert(err, IsNil)
	expected, err := v.SubVolume(dvid.Box{{Start: 2, Stop: 4}, {Start: 1, Stop: 2}, {Start: 1, Stop: 6}})
	c.Assert(err, IsNil)
	c.Assert(out.Equal(expected), Equals, true)

	// Voxels of touched blocks outside the written region were never written.
	outside := coord.WithBox(dvid.Box{{Start: 0, Stop: 2}, {Start: 0, Stop: 1}, {Start: 2, Stop: 3}})
	_, err = e.Get(ctx, outside)
	c.Assert(dvid.IsNotFound(err), Equals, true)
	found, err = e.Has(ctx, outside)
	c.Assert(err, IsNil)
	c.Assert(found, Equals, false)

	// Another dataset has no blocks.
	other := coord
	other.Channel = "other"
	found, err = e.Has(ctx, other)
	c.Assert(err, IsNil)
	c.Assert(found, Equals, false)
}

func (s *DataSuite) TestBlockEngineOverwrite(c *C) {
	ctx := context.Background()
	e, err := NewBlockEngine(newMapBlocks(), dvid.Point3d{4, 4, 4})
	c.Assert(err, IsNil)

	whole := cutout(c, "col/exp/chan/0/0:8/0:4/0:4")
	c.Assert(e.Put(ctx, whole, filled(whole.Size(), 1)), IsNil)
	part := cutout(c, "col/exp/chan/0/3:5/1:2/0:4")
	c.Assert(e.Put(ctx, part, filled(part.Size(), 9)), IsNil)

	out, err := e.Get(ctx, whole)
	c.Assert(err, IsNil)
	for x := int32(0); x < 8; x++ {
		for y := int32(0); y < 4; y++ {
			for z := int32(0); z < 4; z++ {
				expected := byte(1)
				if x >= 3 && x < 5 && y == 1 {
					expected = 9
				}
				c.Assert(out.At(x, y, z), Equals, expected, Commentf("voxel (%d,%d,%d)", x, y, z))
			}
		}
	}

	err = e.Put(ctx, whole, filled(dvid.Point3d{1, 1, 1}, 0))
	c.Assert(dvid.IsInvalidRequest(err), Equals, true)

	_, err = NewBlockEngine(newMapBlocks(), dvid.Point3d{4, 0, 4})
	c.Assert(dvid.IsInvalidRequest(err), Equals, true)
}

func (s *DataSuite) TestBlockEngineIdempotentPut(c *C) {
	ctx := context.Background()
	mb := newMapBlocks()
	e, err := NewBlockEngine(mb, dvid.Point3d{4, 4, 4})
	c.Assert(err, IsNil)

	coord := cutout(c, "col/exp/chan/0/2:7/1:6/3:5")
	v := dvid.NewVolume(coord.Size())
	for i := range v.Bytes() {
		v.Bytes()[i] = byte(i % 251)
	}
	c.Assert(e.Put(ctx, coord, v), IsNil)
	once := make(map[dvid.BlockKey]string, len(mb.blocks))
	for k, buf := range mb.blocks {
		once[k] = string(buf)
	}

	c.Assert(e.Put(ctx, coord, v), IsNil)
	c.Assert(mb.blocks, HasLen, len(once))
	for k, buf := range mb.blocks {
		c.Assert(string(buf), Equals, once[k], Commentf("block %s", k))
	}
	out, err := e.Get(ctx, coord)
	c.Assert(err, IsNil)
	c.Assert(out.Equal(v), Equals, true)
}

func (s *DataSuite) TestBlockEngineMaxCoordinate(c *C) {
	ctx := context.Background()
	e, err := NewBlockEngine(newMapBlocks(), dvid.Point3d{256, 256, 16})
	c.Assert(err, IsNil)

	coord := cutout(c, "col/exp/chan/0/0:1/0:1/2147483600:2147483647")
	_, err = e.Get(ctx, coord)
	c.Assert(dvid.IsInvalidRequest(err), Equals, true)
	_, err = e.Has(ctx, coord)
	c.Assert(dvid.IsInvalidRequest(err), Equals, true)
	err = e.Put(ctx, coord, filled(coord.Size(), 1))
	c.Assert(dvid.IsInvalidRequest(err), Equals, true)

	// Blocks that end below the maximum coordinate are still usable.
	edge := cutout(c, "col/exp/chan/0/0:1/0:1/2147483600:2147483616")
	c.Assert(e.Put(ctx, edge, filled(edge.Size(), 5)), IsNil)
	out, err := e.Get(ctx, edge)
	c.Assert(err, IsNil)
	c.Assert(out.At(0, 0, 15), Equals, byte(5))
}

func (s *DataSuite) TestBlockEngineWrongSize(c *C) {
	ctx := context.Background()
	store := newMapBlocks()
	small, err := NewBlockEngine(store, dvid.Point3d{2, 2, 2})
	c.Assert(err, IsNil)
	coord := cutout(c, "col/exp/chan/0/0:2/0:2/0:2")
	c.Assert(small.Put(ctx, coord, filled(coord.Size(), 1)), IsNil)

	// Same store read with a different block size is corrupt, not missing.
	big, err := NewBlockEngine(store, dvid.Point3d{4, 4, 4})
	c.Assert(err, IsNil)
	_, err = big.Get(ctx, coord)
	c.Assert(dvid.IsIOFailure(err), Equals, true)
}

func (s *DataSuite) TestBlockEngineCanceled(c *C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e, err := NewBlockEngine(newMapBlocks(), dvid.Point3d{4, 4, 4})
	c.Assert(err, IsNil)
	coord := cutout(c, "col/exp/chan/0/0:4/0:4/0:4")
	_, err = e.Get(ctx, coord)
	c.Assert(err, Equals, context.Canceled)
	c.Assert(e.Put(ctx, coord, filled(coord.Size(), 1)), Equals, context.Canceled)
}

// Concurrent puts to disjoint parts of the same block must all survive the
// read-modify-write cycles.
func (s *DataSuite) TestBlockEngineConcurrentPuts(c *C) {
	ctx := context.Background()
	store := newMapBlocks()
	e, err := NewBlockEngine(store, dvid.Point3d{8, 8, 8})
	c.Assert(err, IsNil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for x := 0; x < 8; x++ {
		wg.Add(1)
		go func(x int) {
			defer wg.Done()
			coord, err := dvid.ParseCutoutPath(fmt.Sprintf("col/exp/chan/0/%d:%d/0:8/0:8", x, x+1))
			if err == nil {
				err = e.Put(ctx, coord, filled(coord.Size(), byte(x+1)))
			}
			errs <- err
		}(x)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		c.Assert(err, IsNil)
	}
	c.Assert(e.locks.Len(), Equals, 0)

	out, err := e.Get(ctx, cutout(c, "col/exp/chan/0/0:8/0:8/0:8"))
	c.Assert(err, IsNil)
	for x := int32(0); x < 8; x++ {
		c.Assert(out.At(x, 7, 7), Equals, byte(x+1))
	}
	c.Assert(store.blocks, HasLen, 1)
}

func (s *DataSuite) TestKeyLocker(c *C) {
	var kl KeyLocker
	k1 := dvid.BlockKey{Collection: "col", Experiment: "exp", Channel: "chan"}
	k2 := k1
	k2.Origin = dvid.Point3d{4, 0, 0}

	kl.Lock(k1)
	kl.Lock(k2)
	c.Assert(kl.Len(), Equals, 2)

	acquired := make(chan struct{})
	go func() {
		kl.Lock(k1)
		close(acquired)
		kl.Unlock(k1)
	}()
	kl.Unlock(k2)
	kl.Unlock(k1)
	<-acquired
	c.Assert(func() { kl.Unlock(k2) }, PanicMatches, "KeyLocker.Unlock of unlocked block.*")
}
