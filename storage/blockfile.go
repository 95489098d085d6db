package storage

import (
	"fmt"
	"path"
	"regexp"
	"strconv"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

// BlockFormat is the on-medium encoding of a block file.
type BlockFormat uint8

const (
	// NpyFormat stores the full block as a numpy array with no presence mask.
	NpyFormat BlockFormat = iota

	// DVIDFormat stores a compressed, checksummed block record with a presence mask.
	DVIDFormat
)

// ParseBlockFormat returns the format given its name or file extension.
func ParseBlockFormat(name string) (BlockFormat, error) {
	switch name {
	case "", "npy":
		return NpyFormat, nil
	case "dvid":
		return DVIDFormat, nil
	default:
		return NpyFormat, fmt.Errorf("unknown block file format %q", name)
	}
}

// Ext returns the file extension for the format.
func (f BlockFormat) Ext() string {
	switch f {
	case DVIDFormat:
		return "dvid"
	default:
		return "npy"
	}
}

func (f BlockFormat) String() string {
	return f.Ext()
}

// BlockCodec converts blocks to and from block file contents.
type BlockCodec struct {
	Format   BlockFormat
	Compress dvid.Compression
}

// NewBlockCodec returns the codec described by the "format" and "compression"
// settings of a store configuration.
func NewBlockCodec(config dvid.StoreConfig) (BlockCodec, error) {
	var codec BlockCodec
	name, _, err := config.GetString("format")
	if err != nil {
		return codec, err
	}
	if codec.Format, err = ParseBlockFormat(name); err != nil {
		return codec, err
	}
	name, found, err := config.GetString("compression")
	if err != nil {
		return codec, err
	}
	if !found {
		name = "snappy"
	}
	if codec.Compress, err = dvid.ParseCompression(name); err != nil {
		return codec, err
	}
	return codec, nil
}

func (c BlockCodec) String() string {
	if c.Format == NpyFormat {
		return c.Format.String()
	}
	return fmt.Sprintf("%s/%s", c.Format, c.Compress)
}

// Encode returns the file contents for the block.  Npy files have no mask, so
// a block stored in that format is treated as fully present once written.
func (c BlockCodec) Encode(b *Block) ([]byte, error) {
	if c.Format == NpyFormat {
		return EncodeNpy(b.Data), nil
	}
	return EncodeBlock(b, c.Compress)
}

// Decode parses file contents written by Encode.
func (c BlockCodec) Decode(buf []byte) (*Block, error) {
	if c.Format == NpyFormat {
		v, err := DecodeNpy(buf)
		if err != nil {
			return nil, err
		}
		return &Block{Data: v}, nil
	}
	return DecodeBlock(buf)
}

// BlockFilename returns the file name for a block, encoding the resolution and
// the full extent of the block along each axis, e.g., "0-(0, 256)-(256, 512)-(0, 16).npy".
func BlockFilename(k dvid.BlockKey, blockSize dvid.Point3d, format BlockFormat) string {
	b := k.Box(blockSize)
	return fmt.Sprintf("%d-(%d, %d)-(%d, %d)-(%d, %d).%s", k.Resolution,
		b[0].Start, b[0].Stop, b[1].Start, b[1].Stop, b[2].Start, b[2].Stop, format.Ext())
}

// BlockDir returns the slash-separated directory holding a dataset's blocks.
func BlockDir(collection, experiment, channel string) string {
	return path.Join(collection, experiment, channel)
}

// CheckBlockDir returns an ErrInvalidRequest error if the names cannot form a
// directory beneath a store root.
func CheckBlockDir(collection, experiment, channel string) error {
	for _, n := range [3][2]string{{"collection", collection}, {"experiment", experiment}, {"channel", channel}} {
		if err := dvid.ValidDataName(n[0], n[1]); err != nil {
			return err
		}
	}
	return nil
}

// BlockPath returns the slash-separated path of a block file relative to a store root.
func BlockPath(k dvid.BlockKey, blockSize dvid.Point3d, format BlockFormat) string {
	return path.Join(BlockDir(k.Collection, k.Experiment, k.Channel), BlockFilename(k, blockSize, format))
}

var blockFilenameRE = regexp.MustCompile(`^(\d+)-\((\d+), (\d+)\)-\((\d+), (\d+)\)-\((\d+), (\d+)\)\.(\w+)$`)

// ParseBlockFilename recovers the resolution, block extent and format from a
// block file name without consulting any index.
func ParseBlockFilename(name string) (resolution int, box dvid.Box, format BlockFormat, err error) {
	m := blockFilenameRE.FindStringSubmatch(name)
	if m == nil {
		err = fmt.Errorf("%q is not a block file name", name)
		return
	}
	if resolution, err = strconv.Atoi(m[1]); err != nil {
		return
	}
	for dim := 0; dim < 3; dim++ {
		var start, stop int64
		if start, err = strconv.ParseInt(m[2+2*dim], 10, 32); err != nil {
			return
		}
		if stop, err = strconv.ParseInt(m[3+2*dim], 10, 32); err != nil {
			return
		}
		box[dim] = dvid.Extent{Start: int32(start), Stop: int32(stop)}
	}
	format, err = ParseBlockFormat(m[8])
	return
}

// BlockKeyFromFilename returns the key of a block file within a dataset
// directory, checking that its extent matches the block size.
func BlockKeyFromFilename(collection, experiment, channel, name string, blockSize dvid.Point3d) (dvid.BlockKey, error) {
	res, box, _, err := ParseBlockFilename(name)
	if err != nil {
		return dvid.BlockKey{}, err
	}
	if box.Size() != blockSize {
		return dvid.BlockKey{}, fmt.Errorf("block file %q has size %s, expected %s", name, box.Size(), blockSize)
	}
	origin := box.Offset()
	if !dvid.ValidOrigin(origin, blockSize) {
		return dvid.BlockKey{}, fmt.Errorf("block file %q is not grid aligned", name)
	}
	return dvid.BlockKey{
		Collection: collection,
		Experiment: experiment,
		Channel:    channel,
		Resolution: res,
		Origin:     origin,
	}, nil
}
