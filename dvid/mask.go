package dvid

import (
	"encoding/binary"
	"fmt"
)

// Mask records which voxels of a block have ever been written.  Bits follow the
// same (X, Y, Z) C ordering as Volume.
type Mask struct {
	size Point3d
	bits []uint64
}

// NewMask returns an empty mask for a block of the given size.
func NewMask(size Point3d) *Mask {
	return &Mask{size: size, bits: make([]uint64, (size.Prod()+63)/64)}
}

// NewFullMask returns a mask with every voxel marked present.
func NewFullMask(size Point3d) *Mask {
	m := NewMask(size)
	m.SetBox(Box{{0, size[0]}, {0, size[1]}, {0, size[2]}})
	return m
}

// Size returns the shape of the masked block.
func (m *Mask) Size() Point3d {
	return m.size
}

func (m *Mask) index(x, y, z int32) int64 {
	return (int64(x)*int64(m.size[1])+int64(y))*int64(m.size[2]) + int64(z)
}

// SetBox marks every voxel within the box as present.
func (m *Mask) SetBox(b Box) {
	for x := b[0].Start; x < b[0].Stop; x++ {
		for y := b[1].Start; y < b[1].Stop; y++ {
			for i := m.index(x, y, b[2].Start); i < m.index(x, y, b[2].Stop-1)+1; i++ {
				m.bits[i>>6] |= 1 << uint(i&63)
			}
		}
	}
}

// Covers returns true if every voxel within the box is present.
func (m *Mask) Covers(b Box) bool {
	for x := b[0].Start; x < b[0].Stop; x++ {
		for y := b[1].Start; y < b[1].Stop; y++ {
			for i := m.index(x, y, b[2].Start); i < m.index(x, y, b[2].Stop-1)+1; i++ {
				if m.bits[i>>6]&(1<<uint(i&63)) == 0 {
					return false
				}
			}
		}
	}
	return true
}

// Full returns true if every voxel of the block is present.
func (m *Mask) Full() bool {
	return m.Covers(Box{{0, m.size[0]}, {0, m.size[1]}, {0, m.size[2]}})
}

// Bytes returns a little endian encoding of the mask bits.
func (m *Mask) Bytes() []byte {
	buf := make([]byte, 8*len(m.bits))
	for i, w := range m.bits {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	return buf
}

// MaskFromBytes decodes a mask written by Bytes() for a block of the given size.
func MaskFromBytes(size Point3d, b []byte) (*Mask, error) {
	m := NewMask(size)
	if len(b) != 8*len(m.bits) {
		return nil, fmt.Errorf("mask for block size %s needs %d bytes, got %d", size, 8*len(m.bits), len(b))
	}
	for i := range m.bits {
		m.bits[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return m, nil
}
