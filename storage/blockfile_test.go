package storage

import (
	. "github.com/janelia-flyem/go/gocheck"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

func (s *DataSuite) TestNpy(c *C) {
	v := dvid.NewVolume(dvid.Point3d{3, 4, 5})
	v.Set(2, 3, 4, 77)
	v.Set(0, 0, 1, 3)
	buf := EncodeNpy(v)
	c.Assert(string(buf[:6]), Equals, "\x93NUMPY")
	c.Assert((len(buf)-len(v.Bytes()))%64, Equals, 0)

	out, err := DecodeNpy(buf)
	c.Assert(err, IsNil)
	c.Assert(out.Equal(v), Equals, true)

	_, err = DecodeNpy([]byte("not numpy at all"))
	c.Assert(err, NotNil)
	_, err = DecodeNpy(buf[:len(buf)-1])
	c.Assert(dvid.IsInvalidRequest(err), Equals, true)
}

func (s *DataSuite) TestNpyHeaders(c *C) {
	header := func(dict string) []byte {
		b := []byte("\x93NUMPY\x01\x00")
		b = append(b, byte(len(dict)), 0)
		return append(b, dict...)
	}
	out, err := DecodeNpy(append(header("{'descr': '<u1', 'fortran_order': False, 'shape': (1, 2, 1), }\n"), 5, 6))
	c.Assert(err, IsNil)
	c.Assert(out.Size(), Equals, dvid.Point3d{1, 2, 1})
	c.Assert(out.At(0, 1, 0), Equals, byte(6))

	_, err = DecodeNpy(append(header("{'descr': '<u2', 'fortran_order': False, 'shape': (1, 1, 1), }\n"), 0, 0))
	c.Assert(err, ErrorMatches, ".*not uint8.*")
	_, err = DecodeNpy(append(header("{'descr': '|u1', 'fortran_order': True, 'shape': (1, 1, 1), }\n"), 0))
	c.Assert(err, ErrorMatches, ".*fortran.*")
	_, err = DecodeNpy(append(header("{'descr': '|u1', 'fortran_order': False, 'shape': (2, 2), }\n"), 0, 0, 0, 0))
	c.Assert(err, ErrorMatches, ".*2 dimensions.*")
}

func (s *DataSuite) TestBlockFilename(c *C) {
	blockSize := dvid.Point3d{256, 256, 16}
	k := dvid.BlockKey{Collection: "col", Experiment: "exp", Channel: "chan", Resolution: 0, Origin: dvid.Point3d{0, 256, 16}}
	name := BlockFilename(k, blockSize, NpyFormat)
	c.Assert(name, Equals, "0-(0, 256)-(256, 512)-(16, 32).npy")
	c.Assert(BlockPath(k, blockSize, DVIDFormat), Equals, "col/exp/chan/0-(0, 256)-(256, 512)-(16, 32).dvid")

	res, box, format, err := ParseBlockFilename(name)
	c.Assert(err, IsNil)
	c.Assert(res, Equals, 0)
	c.Assert(box, Equals, k.Box(blockSize))
	c.Assert(format, Equals, NpyFormat)

	k2, err := BlockKeyFromFilename("col", "exp", "chan", name, blockSize)
	c.Assert(err, IsNil)
	c.Assert(k2, Equals, k)

	_, err = BlockKeyFromFilename("col", "exp", "chan", name, dvid.Point3d{128, 128, 16})
	c.Assert(err, NotNil)
	_, err = BlockKeyFromFilename("col", "exp", "chan", "0-(1, 257)-(256, 512)-(16, 32).npy", blockSize)
	c.Assert(err, ErrorMatches, ".*not grid aligned.*")
	_, _, _, err = ParseBlockFilename("notes.txt")
	c.Assert(err, NotNil)
	_, _, _, err = ParseBlockFilename("0-(0, 256)-(256, 512)-(16, 32).tif")
	c.Assert(err, NotNil)
}

func (s *DataSuite) TestBlockCodec(c *C) {
	codec, err := NewBlockCodec(dvid.StoreConfig{Config: dvid.NewConfig(nil), Engine: "filestore"})
	c.Assert(err, IsNil)
	c.Assert(codec.Format, Equals, NpyFormat)
	c.Assert(codec.Compress, Equals, dvid.Snappy)
	c.Assert(codec.String(), Equals, "npy")

	config := dvid.StoreConfig{
		Config: dvid.NewConfig(map[string]interface{}{"format": "dvid", "compression": "zstd"}),
		Engine: "filestore",
	}
	codec, err = NewBlockCodec(config)
	c.Assert(err, IsNil)
	c.Assert(codec.String(), Equals, "dvid/zstd")

	b := NewBlock(dvid.Point3d{2, 2, 2})
	b.Data.Set(1, 1, 1, 8)
	b.Mask.SetBox(dvid.Box{{Start: 1, Stop: 2}, {Start: 1, Stop: 2}, {Start: 1, Stop: 2}})
	buf, err := codec.Encode(b)
	c.Assert(err, IsNil)
	out, err := codec.Decode(buf)
	c.Assert(err, IsNil)
	c.Assert(out.Covers(dvid.Box{{Start: 0, Stop: 2}, {Start: 0, Stop: 2}, {Start: 0, Stop: 2}}), Equals, false)

	// Npy blocks carry no mask, so they decode as fully present.
	npy := BlockCodec{Format: NpyFormat}
	buf, err = npy.Encode(b)
	c.Assert(err, IsNil)
	out, err = npy.Decode(buf)
	c.Assert(err, IsNil)
	c.Assert(out.Mask, IsNil)
	c.Assert(out.Data.At(1, 1, 1), Equals, byte(8))

	bad := dvid.StoreConfig{Config: dvid.NewConfig(map[string]interface{}{"format": "tiff"}), Engine: "filestore"}
	_, err = NewBlockCodec(bad)
	c.Assert(err, NotNil)
}
