package storage

import (
	"context"
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

// Block is the unit persisted by a BlockStore: the full voxel array of one grid
// block and, for stores that track partial presence, a mask of the voxels that
// have been written.  A nil Mask means every voxel is present.
type Block struct {
	Data *dvid.Volume
	Mask *dvid.Mask
}

// NewBlock returns a zeroed block with an empty presence mask.
func NewBlock(size dvid.Point3d) *Block {
	return &Block{Data: dvid.NewVolume(size), Mask: dvid.NewMask(size)}
}

// Covers returns true if every voxel within the local box is present.
func (b *Block) Covers(local dvid.Box) bool {
	return b.Mask == nil || b.Mask.Covers(local)
}

// BlockStore persists whole blocks.  Implementations translate medium errors:
// an absent block is dvid.ErrNotFound and any other failure dvid.ErrIOFailure.
type BlockStore interface {
	fmt.Stringer

	// ReadBlock returns the stored block for the key.
	ReadBlock(ctx context.Context, k dvid.BlockKey) (*Block, error)

	// WriteBlock replaces the stored block for the key.
	WriteBlock(ctx context.Context, k dvid.BlockKey, b *Block) error

	// HasBlock returns true if the voxels within the local box of the block are present.
	HasBlock(ctx context.Context, k dvid.BlockKey, local dvid.Box) (bool, error)
}

// EncodeBlock serializes a block as a MessagePack array of
// [block size (12 bytes), mask bytes or nil, serialized voxel data].
func EncodeBlock(b *Block, compress dvid.Compression) ([]byte, error) {
	data, err := dvid.SerializeData(b.Data.Bytes(), compress, dvid.CRC32)
	if err != nil {
		return nil, err
	}
	size := b.Data.Size()
	out := msgp.Require(nil, 3+dvid.Point3dSize+len(data)+int(size.Prod()/8)+32)
	out = msgp.AppendArrayHeader(out, 3)
	out = msgp.AppendBytes(out, size.Bytes())
	if b.Mask == nil {
		out = msgp.AppendNil(out)
	} else {
		out = msgp.AppendBytes(out, b.Mask.Bytes())
	}
	out = msgp.AppendBytes(out, data)
	return out, nil
}

// DecodeBlock deserializes a block written by EncodeBlock.
func DecodeBlock(buf []byte) (*Block, error) {
	sz, buf, err := msgp.ReadArrayHeaderBytes(buf)
	if err != nil {
		return nil, err
	}
	if sz != 3 {
		return nil, fmt.Errorf("bad block record: %d fields", sz)
	}
	var sizeBytes, maskBytes, data []byte
	if sizeBytes, buf, err = msgp.ReadBytesZC(buf); err != nil {
		return nil, err
	}
	size, err := dvid.PointFromBytes(sizeBytes)
	if err != nil {
		return nil, err
	}
	var mask *dvid.Mask
	if msgp.IsNil(buf) {
		if buf, err = msgp.ReadNilBytes(buf); err != nil {
			return nil, err
		}
	} else {
		if maskBytes, buf, err = msgp.ReadBytesZC(buf); err != nil {
			return nil, err
		}
		if mask, err = dvid.MaskFromBytes(size, maskBytes); err != nil {
			return nil, err
		}
	}
	if data, _, err = msgp.ReadBytesZC(buf); err != nil {
		return nil, err
	}
	voxels, err := dvid.DeserializeData(data)
	if err != nil {
		return nil, err
	}
	vol, err := dvid.NewVolumeFromBytes(size, voxels)
	if err != nil {
		return nil, err
	}
	return &Block{Data: vol, Mask: mask}, nil
}

// BlockEngine implements Engine on top of a BlockStore by partitioning each
// cutout into grid blocks.  Puts are block-granular read-modify-write cycles
// clipped to the request, serialized per block key.
type BlockEngine struct {
	store     BlockStore
	blockSize dvid.Point3d
	locks     KeyLocker
}

// NewBlockEngine returns an engine over the block store with the given block size.
func NewBlockEngine(store BlockStore, blockSize dvid.Point3d) (*BlockEngine, error) {
	if err := dvid.ValidBlockSize(blockSize); err != nil {
		return nil, err
	}
	return &BlockEngine{store: store, blockSize: blockSize}, nil
}

// BlockSize returns the block size used to partition cutouts.
func (e *BlockEngine) BlockSize() dvid.Point3d {
	return e.blockSize
}

// Store returns the underlying block store.
func (e *BlockEngine) Store() BlockStore {
	return e.store
}

func (e *BlockEngine) String() string {
	return fmt.Sprintf("%s, block size %s", e.store, e.blockSize)
}

// Close closes the block store if it holds resources.
func (e *BlockEngine) Close() error {
	if closer, ok := e.store.(Closer); ok {
		return closer.Close()
	}
	return nil
}

// partition validates the frame and splits it into block spans.
func (e *BlockEngine) partition(c dvid.CoordinateFrame) ([]dvid.BlockSpan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := dvid.CheckGridBounds(c.Box(), e.blockSize); err != nil {
		return nil, err
	}
	return dvid.Partition(c, e.blockSize), nil
}

// Get assembles the cutout from its blocks, failing with ErrNotFound at the
// first block (or voxel, for mask-tracking stores) that is absent.
func (e *BlockEngine) Get(ctx context.Context, c dvid.CoordinateFrame) (*dvid.Volume, error) {
	spans, err := e.partition(c)
	if err != nil {
		return nil, err
	}
	offset := c.Offset()
	payload := dvid.NewVolume(c.Size())
	for _, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block, err := e.store.ReadBlock(ctx, span.Key)
		if err != nil {
			return nil, err
		}
		if block.Data.Size() != e.blockSize {
			return nil, dvid.IOFailure(nil, "block %s has size %s, expected %s", span.Key, block.Data.Size(), e.blockSize)
		}
		if !block.Covers(span.Local) {
			return nil, dvid.NotFoundf("block %s only partially written within %s", span.Key, span.Local)
		}
		if err := payload.CopyBox(span.PayloadOffset(offset), block.Data, span.Local); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// Has returns true only if every block required by the cutout is present.
func (e *BlockEngine) Has(ctx context.Context, c dvid.CoordinateFrame) (bool, error) {
	spans, err := e.partition(c)
	if err != nil {
		return false, err
	}
	for _, span := range spans {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		found, err := e.store.HasBlock(ctx, span.Key, span.Local)
		if err != nil || !found {
			return false, err
		}
	}
	return true, nil
}

// Put writes the payload block by block.  For each touched block, the existing
// block is read (or zero-initialized if absent), the clipped region overwritten,
// and the whole block written back.  A failure part way leaves earlier blocks written.
func (e *BlockEngine) Put(ctx context.Context, c dvid.CoordinateFrame, v *dvid.Volume) error {
	if err := CheckPut(c, v); err != nil {
		return err
	}
	spans, err := e.partition(c)
	if err != nil {
		return err
	}
	offset := c.Offset()
	for _, span := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.putBlock(ctx, span, offset, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *BlockEngine) putBlock(ctx context.Context, span dvid.BlockSpan, offset dvid.Point3d, v *dvid.Volume) error {
	e.locks.Lock(span.Key)
	defer e.locks.Unlock(span.Key)

	block, err := e.store.ReadBlock(ctx, span.Key)
	switch {
	case dvid.IsNotFound(err):
		block = NewBlock(e.blockSize)
	case err != nil:
		return err
	case block.Data.Size() != e.blockSize:
		return dvid.IOFailure(nil, "block %s has size %s, expected %s", span.Key, block.Data.Size(), e.blockSize)
	}

	src := span.Clipped.Sub(offset)
	if err := block.Data.CopyBox(span.Local.Offset(), v, src); err != nil {
		return err
	}
	if block.Mask != nil {
		block.Mask.SetBox(span.Local)
	}
	return e.store.WriteBlock(ctx, span.Key, block)
}
