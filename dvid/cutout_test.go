package dvid

import (
	. "github.com/janelia-flyem/go/gocheck"
)

func (s *DataSuite) TestParseCutoutPath(c *C) {
	coord, err := ParseCutoutPath("/my_col/my_exp/my_chan/0/0:512/0:512/0:16/")
	c.Assert(err, IsNil)
	c.Assert(coord.Collection, Equals, "my_col")
	c.Assert(coord.Experiment, Equals, "my_exp")
	c.Assert(coord.Channel, Equals, "my_chan")
	c.Assert(coord.Resolution, Equals, 0)
	c.Assert(coord.Box(), Equals, Box{{0, 512}, {0, 512}, {0, 16}})
	c.Assert(coord.Size(), Equals, Point3d{512, 512, 16})
	c.Assert(coord.String(), Equals, "my_col/my_exp/my_chan/0/0:512/0:512/0:16")

	again, err := ParseCutoutPath(coord.String())
	c.Assert(err, IsNil)
	c.Assert(again, Equals, coord)

	bad := []string{
		"col/exp/chan/0/0:4/0:4",
		"col/exp/chan/zero/0:4/0:4/0:4",
		"col/exp/chan/0/0-4/0:4/0:4",
		"col/exp/chan/0/0:a/0:4/0:4",
		"col/exp/chan/-1/0:4/0:4/0:4",
		"col/exp/chan/0/4:4/0:4/0:4",
		"col/exp/chan/0/0:4/5:2/0:4",
		"col/exp/chan/0/0:4/0:4/-2:4",
		"col//chan/0/0:4/0:4/0:4",
		"../../escaped/0/0:4/0:4/0:4",
		"col/./chan/0/0:4/0:4/0:4",
		"col/exp/../0/0:4/0:4/0:4",
	}
	for _, path := range bad {
		_, err := ParseCutoutPath(path)
		c.Assert(err, NotNil, Commentf("path %q", path))
		c.Assert(IsInvalidRequest(err), Equals, true, Commentf("path %q", path))
	}
}

func (s *DataSuite) TestDataNames(c *C) {
	for _, name := range []string{"my_col", "exp.v2", "chan-1", "..."} {
		c.Assert(ValidDataName("channel", name), IsNil, Commentf("name %q", name))
	}
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "a\x00b"} {
		err := ValidDataName("channel", name)
		c.Assert(IsInvalidRequest(err), Equals, true, Commentf("name %q", name))
	}

	box := Box{{0, 4}, {0, 4}, {0, 4}}
	_, err := NewCoordinateFrame("col", "..", "chan", 0, box[0], box[1], box[2])
	c.Assert(err, ErrorMatches, `.*experiment name "\.\." is not allowed.*`)
	_, err = NewCoordinateFrame("col", "exp", "ch/an", 0, box[0], box[1], box[2])
	c.Assert(err, ErrorMatches, `.*channel name "ch/an" contains a path separator.*`)
}

func (s *DataSuite) TestBoxNumVoxelsLimit(c *C) {
	b := Box{{0, 8}, {0, 8}, {0, 16}}
	c.Assert(b.CheckNumVoxels(1024), IsNil)
	c.Assert(IsInvalidRequest(b.CheckNumVoxels(1023)), Equals, true)

	// The product of these extents overflows int64.
	huge := Box{{0, 2147483647}, {0, 2147483647}, {0, 2147483647}}
	err := huge.CheckNumVoxels(1 << 62)
	c.Assert(IsInvalidRequest(err), Equals, true)
	c.Assert(err, ErrorMatches, ".*exceeds the maximum cutout.*")

	c.Assert(IsInvalidRequest(Box{{0, 4}, {2, 2}, {0, 4}}.CheckNumVoxels(1024)), Equals, true)
}

func (s *DataSuite) TestCoordinateFrame(c *C) {
	coord, err := NewCoordinateFrame("col", "exp", "chan", 1, Extent{10, 20}, Extent{0, 5}, Extent{3, 4})
	c.Assert(err, IsNil)
	c.Assert(coord.Offset(), Equals, Point3d{10, 0, 3})
	c.Assert(coord.DataName(), Equals, "col/exp/chan")

	sub := coord.WithBox(Box{{12, 14}, {1, 2}, {3, 4}})
	c.Assert(sub.DataName(), Equals, coord.DataName())
	c.Assert(sub.Resolution, Equals, 1)
	c.Assert(sub.Size(), Equals, Point3d{2, 1, 1})

	k := coord.BlockKey(Point3d{0, 0, 0})
	c.Assert(k.Box(Point3d{16, 16, 16}), Equals, Box{{0, 16}, {0, 16}, {0, 16}})
	c.Assert(k.String(), Equals, "col/exp/chan/1@(0,0,0)")

	_, err = NewCoordinateFrame("", "exp", "chan", 0, Extent{0, 1}, Extent{0, 1}, Extent{0, 1})
	c.Assert(IsInvalidRequest(err), Equals, true)
}
