package dvid

import (
	"fmt"
	"testing"

	. "github.com/janelia-flyem/go/gocheck"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type DataSuite struct{}

var _ = Suite(&DataSuite{})

func (s *DataSuite) TestPoint3d(c *C) {
	a := Point3d{10, 21, 837821}
	b := Point3d{78312, -200, 40123}
	result := a.Add(b)
	c.Assert(result.Value(0), Equals, a[0]+b[0])
	c.Assert(result.Value(1), Equals, a[1]+b[1])
	c.Assert(result.Value(2), Equals, a[2]+b[2])

	result = a.Sub(b)
	c.Assert(result.Value(0), Equals, a[0]-b[0])
	c.Assert(result.Value(1), Equals, a[1]-b[1])
	c.Assert(result.Value(2), Equals, a[2]-b[2])

	c.Assert(a.String(), Equals, "(10,21,837821)")
	c.Assert(Point3d{2, 3, 4}.Prod(), Equals, int64(24))
	c.Assert(Point3d{2, 0, 4}.Positive(), Equals, false)

	p, err := PointFromBytes(a.Bytes())
	c.Assert(err, IsNil)
	c.Assert(p, Equals, a)
	_, err = PointFromBytes([]byte{1, 2, 3})
	c.Assert(err, NotNil)

	p, err = StringToPoint3d("256, 256,16", ",")
	c.Assert(err, IsNil)
	c.Assert(p, Equals, Point3d{256, 256, 16})
	_, err = StringToPoint3d("256,256", ",")
	c.Assert(err, NotNil)
}

func (s *DataSuite) TestChunk(c *C) {
	d := Point3d{111, 213, 678}
	blockSize := Point3d{20, 30, 40}
	g := d.Chunk(blockSize)
	c.Assert(g, Equals, ChunkPoint3d{5, 7, 16})
	c.Assert(g.MinPoint(blockSize), Equals, Point3d{100, 210, 640})

	d = Point3d{111, 213, 680}
	g = d.Chunk(blockSize)
	c.Assert(g, Equals, ChunkPoint3d{5, 7, 17})

	d = Point3d{-1, 0, -40}
	g = d.Chunk(blockSize)
	c.Assert(g, Equals, ChunkPoint3d{-1, 0, -1})
}

func (s *DataSuite) TestErrorTaxonomy(c *C) {
	err := NotFoundf("block %d", 3)
	c.Assert(IsNotFound(err), Equals, true)
	c.Assert(IsIOFailure(err), Equals, false)

	cause := IOFailure(nil, "disk on fire")
	c.Assert(IsIOFailure(cause), Equals, true)
	c.Assert(IsNotFound(cause), Equals, false)

	// Classified causes keep their classification.
	wrapped := IOFailure(NotFoundf("missing"), "reading block")
	c.Assert(IsNotFound(wrapped), Equals, true)
	c.Assert(IsIOFailure(wrapped), Equals, false)

	c.Assert(IsNotSupported(NotSupportedf("read-only")), Equals, true)
	c.Assert(IsInvalidRequest(InvalidRequestf("bad")), Equals, true)
	c.Assert(Classified(fmt.Errorf("plain")), Equals, false)
}

func (s *DataSuite) TestConfig(c *C) {
	config := NewConfig(map[string]interface{}{
		"Path":      "/tmp/blocks",
		"blocksize": []interface{}{int64(64), int64(64), int64(32)},
		"size":      "2 MB",
		"count":     int64(7),
		"testing":   true,
	})
	path, found, err := config.GetString("path")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)
	c.Assert(path, Equals, "/tmp/blocks")

	p, found, err := config.GetPoint3d("BlockSize")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)
	c.Assert(p, Equals, Point3d{64, 64, 32})

	n, found, err := config.GetBytes("size")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)
	c.Assert(n, Equals, uint64(2000000))

	i, _, err := config.GetInt("count")
	c.Assert(err, IsNil)
	c.Assert(i, Equals, 7)

	b, _, err := config.GetBool("testing")
	c.Assert(err, IsNil)
	c.Assert(b, Equals, true)

	_, found, err = config.GetString("missing")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, false)

	_, _, err = config.GetInt("path")
	c.Assert(err, NotNil)

	sc := StoreConfig{Config: config, Engine: "filestore"}
	size, err := sc.BlockSize()
	c.Assert(err, IsNil)
	c.Assert(size, Equals, Point3d{64, 64, 32})

	sc = StoreConfig{Config: NewConfig(nil), Engine: "filestore"}
	size, err = sc.BlockSize()
	c.Assert(err, IsNil)
	c.Assert(size, Equals, DefaultBlockSize())
	_, err = sc.Path()
	c.Assert(err, NotNil)
}
