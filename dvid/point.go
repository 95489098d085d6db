package dvid

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Point3d is an ordered list of three 32-bit signed integers in X, Y, Z order.
type Point3d [3]int32

// Point3dSize is the number of bytes in the binary encoding of a Point3d.
const Point3dSize = 12

// Bytes returns a byte representation of the Point3d in big endian format so
// that byte ordering of encoded points matches X, then Y, then Z ordering for
// non-negative coordinates.
func (p Point3d) Bytes() []byte {
	buf := make([]byte, Point3dSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(p[0]))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p[1]))
	binary.BigEndian.PutUint32(buf[8:12], uint32(p[2]))
	return buf
}

// PointFromBytes returns a Point3d from bytes written by Bytes().
func PointFromBytes(b []byte) (p Point3d, err error) {
	if len(b) != Point3dSize {
		err = fmt.Errorf("cannot decode %d bytes into a 3d point", len(b))
		return
	}
	p[0] = int32(binary.BigEndian.Uint32(b[0:4]))
	p[1] = int32(binary.BigEndian.Uint32(b[4:8]))
	p[2] = int32(binary.BigEndian.Uint32(b[8:12]))
	return
}

// Value returns the point's value for the specified dimension without checking dim bounds.
func (p Point3d) Value(dim uint8) int32 {
	return p[dim]
}

// Add returns the addition of two points.
func (p Point3d) Add(p2 Point3d) Point3d {
	return Point3d{
		p[0] + p2[0],
		p[1] + p2[1],
		p[2] + p2[2],
	}
}

// Sub returns the subtraction of the passed point from the receiver.
func (p Point3d) Sub(p2 Point3d) Point3d {
	return Point3d{
		p[0] - p2[0],
		p[1] - p2[1],
		p[2] - p2[2],
	}
}

// Prod returns the product of the point elements.
func (p Point3d) Prod() int64 {
	return int64(p[0]) * int64(p[1]) * int64(p[2])
}

// Positive returns true if every element is greater than zero.
func (p Point3d) Positive() bool {
	return p[0] > 0 && p[1] > 0 && p[2] > 0
}

func (p Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// Chunk returns the chunk space coordinate of the chunk containing the point.
func (p Point3d) Chunk(size Point3d) ChunkPoint3d {
	var c ChunkPoint3d
	for dim := 0; dim < 3; dim++ {
		if p[dim] < 0 {
			c[dim] = (p[dim] - size[dim] + 1) / size[dim]
		} else {
			c[dim] = p[dim] / size[dim]
		}
	}
	return c
}

// ChunkPoint3d handles 3d signed chunk coordinates.
type ChunkPoint3d [3]int32

func (c ChunkPoint3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c[0], c[1], c[2])
}

// MinPoint returns the smallest voxel coordinate of the given 3d chunk.
func (c ChunkPoint3d) MinPoint(size Point3d) Point3d {
	return Point3d{
		c[0] * size[0],
		c[1] * size[1],
		c[2] * size[2],
	}
}

// StringToPoint3d parses a string of the format "%d<sep>%d<sep>%d", e.g. "256,256,16".
func StringToPoint3d(str, separator string) (p Point3d, err error) {
	elems := strings.Split(str, separator)
	if len(elems) != 3 {
		err = fmt.Errorf("cannot convert %q into a 3d point", str)
		return
	}
	for i, elem := range elems {
		var v int64
		v, err = strconv.ParseInt(strings.TrimSpace(elem), 10, 32)
		if err != nil {
			return
		}
		p[i] = int32(v)
	}
	return
}
