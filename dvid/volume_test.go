package dvid

import (
	. "github.com/janelia-flyem/go/gocheck"
)

// rampVolume returns a volume where each voxel holds a value derived from its position.
func rampVolume(size Point3d) *Volume {
	v := NewVolume(size)
	for x := int32(0); x < size[0]; x++ {
		for y := int32(0); y < size[1]; y++ {
			for z := int32(0); z < size[2]; z++ {
				v.Set(x, y, z, byte(x*31+y*7+z))
			}
		}
	}
	return v
}

func (s *DataSuite) TestVolumeLayout(c *C) {
	v := NewVolume(Point3d{2, 3, 4})
	c.Assert(v.NumVoxels(), Equals, int64(24))
	v.Set(1, 2, 3, 9)
	v.Set(0, 0, 1, 5)
	// Z varies fastest.
	c.Assert(v.Bytes()[1], Equals, byte(5))
	c.Assert(v.Bytes()[23], Equals, byte(9))

	_, err := NewVolumeFromBytes(Point3d{2, 2, 2}, make([]byte, 7))
	c.Assert(IsInvalidRequest(err), Equals, true)
	w, err := NewVolumeFromBytes(Point3d{2, 3, 4}, v.Clone().Bytes())
	c.Assert(err, IsNil)
	c.Assert(w.Equal(v), Equals, true)
	w.Set(0, 0, 0, 1)
	c.Assert(w.Equal(v), Equals, false)
}

func (s *DataSuite) TestVolumeCopyBox(c *C) {
	src := rampVolume(Point3d{6, 5, 4})
	dst := NewVolume(Point3d{4, 4, 4})

	srcBox := Box{{2, 5}, {1, 3}, {0, 4}}
	c.Assert(dst.CopyBox(Point3d{1, 2, 0}, src, srcBox), IsNil)
	for x := int32(0); x < 4; x++ {
		for y := int32(0); y < 4; y++ {
			for z := int32(0); z < 4; z++ {
				var expected byte
				if x >= 1 && y >= 2 {
					expected = src.At(x+1, y-1, z)
				}
				c.Assert(dst.At(x, y, z), Equals, expected)
			}
		}
	}

	err := dst.CopyBox(Point3d{2, 0, 0}, src, srcBox)
	c.Assert(IsInvalidRequest(err), Equals, true)
	err = dst.CopyBox(Point3d{}, src, Box{{5, 7}, {0, 1}, {0, 1}})
	c.Assert(IsInvalidRequest(err), Equals, true)

	sub, err := src.SubVolume(Box{{1, 3}, {4, 5}, {2, 4}})
	c.Assert(err, IsNil)
	c.Assert(sub.Size(), Equals, Point3d{2, 1, 2})
	c.Assert(sub.At(1, 0, 1), Equals, src.At(2, 4, 3))
}

func (s *DataSuite) TestVolumeTranspose(c *C) {
	v := rampVolume(Point3d{3, 4, 5})
	t := v.Transpose()
	c.Assert(t.Size(), Equals, Point3d{5, 4, 3})
	c.Assert(t.At(4, 1, 2), Equals, v.At(2, 1, 4))
	// X varies fastest in the transposed bytes.
	c.Assert(t.Bytes()[1], Equals, v.At(1, 0, 0))
	c.Assert(t.Transpose().Equal(v), Equals, true)
}

func (s *DataSuite) TestMask(c *C) {
	size := Point3d{4, 4, 4}
	m := NewMask(size)
	c.Assert(m.Covers(Box{{0, 1}, {0, 1}, {0, 1}}), Equals, false)

	m.SetBox(Box{{1, 3}, {0, 4}, {2, 4}})
	c.Assert(m.Covers(Box{{1, 3}, {0, 4}, {2, 4}}), Equals, true)
	c.Assert(m.Covers(Box{{2, 3}, {1, 2}, {3, 4}}), Equals, true)
	c.Assert(m.Covers(Box{{1, 3}, {0, 4}, {1, 4}}), Equals, false)
	c.Assert(m.Full(), Equals, false)

	m2, err := MaskFromBytes(size, m.Bytes())
	c.Assert(err, IsNil)
	c.Assert(m2.Covers(Box{{1, 3}, {0, 4}, {2, 4}}), Equals, true)
	c.Assert(m2.Covers(Box{{0, 1}, {0, 4}, {2, 4}}), Equals, false)
	_, err = MaskFromBytes(size, []byte{1, 2})
	c.Assert(err, NotNil)

	c.Assert(NewFullMask(Point3d{3, 5, 7}).Full(), Equals, true)
}
