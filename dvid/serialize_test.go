package dvid

import (
	"bytes"

	. "github.com/janelia-flyem/go/gocheck"
)

func (s *DataSuite) TestSerialization(c *C) {
	data := bytes.Repeat([]byte("voxels and more voxels "), 200)
	for _, compress := range []Compression{Uncompressed, Snappy, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			ser, err := SerializeData(data, compress, checksum)
			c.Assert(err, IsNil)
			gotCompress, gotChecksum := DecodeSerializationFormat(SerializationFormat(ser[0]))
			c.Assert(gotCompress, Equals, compress)
			c.Assert(gotChecksum, Equals, checksum)

			out, err := DeserializeData(ser)
			c.Assert(err, IsNil, Commentf("%s with %s", compress, checksum))
			c.Assert(bytes.Equal(out, data), Equals, true)
		}
	}
}

func (s *DataSuite) TestChecksumMismatch(c *C) {
	data := []byte("a block of voxel data")
	ser, err := SerializeData(data, Uncompressed, CRC32)
	c.Assert(err, IsNil)
	ser[len(ser)-1] ^= 0x01
	_, err = DeserializeData(ser)
	c.Assert(err, ErrorMatches, "bad checksum.*")

	_, err = DeserializeData(nil)
	c.Assert(err, NotNil)
}

func (s *DataSuite) TestParseCompression(c *C) {
	for name, expected := range map[string]Compression{"": Uncompressed, "none": Uncompressed, "Snappy": Snappy, "zstd": Zstd} {
		compress, err := ParseCompression(name)
		c.Assert(err, IsNil)
		c.Assert(compress, Equals, expected)
	}
	_, err := ParseCompression("lz4")
	c.Assert(err, NotNil)
}
