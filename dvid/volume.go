package dvid

import (
	"bytes"
	"fmt"
)

// Volume is a dense 3d array of 8-bit voxels.  Data are stored in C order over
// (X, Y, Z), so Z varies fastest.  This is the layout of a numpy array of shape
// (nx, ny, nz) and of cutout payloads on the wire.
type Volume struct {
	size Point3d
	data []byte
}

// NewVolume returns a zeroed volume of the given size.
func NewVolume(size Point3d) *Volume {
	if size[0] < 0 || size[1] < 0 || size[2] < 0 {
		panic(fmt.Sprintf("NewVolume passed negative size %s", size))
	}
	return &Volume{size: size, data: make([]byte, size.Prod())}
}

// NewVolumeFromBytes wraps the given data, which must hold exactly size.Prod() voxels.
// The volume takes ownership of the slice.
func NewVolumeFromBytes(size Point3d, data []byte) (*Volume, error) {
	if size[0] < 0 || size[1] < 0 || size[2] < 0 {
		return nil, InvalidRequestf("volume size %s is negative", size)
	}
	if int64(len(data)) != size.Prod() {
		return nil, InvalidRequestf("got %d bytes for a volume of size %s (%d voxels)", len(data), size, size.Prod())
	}
	return &Volume{size: size, data: data}, nil
}

// Size returns the shape of the volume.
func (v *Volume) Size() Point3d {
	return v.size
}

// Bytes returns the underlying voxel data.
func (v *Volume) Bytes() []byte {
	return v.data
}

// NumVoxels returns the number of voxels in the volume.
func (v *Volume) NumVoxels() int64 {
	return v.size.Prod()
}

func (v *Volume) index(x, y, z int32) int64 {
	return (int64(x)*int64(v.size[1])+int64(y))*int64(v.size[2]) + int64(z)
}

// At returns the voxel value at (x, y, z).
func (v *Volume) At(x, y, z int32) byte {
	return v.data[v.index(x, y, z)]
}

// Set sets the voxel value at (x, y, z).
func (v *Volume) Set(x, y, z int32, value byte) {
	v.data[v.index(x, y, z)] = value
}

// Fill sets every voxel to the given value.
func (v *Volume) Fill(value byte) {
	for i := range v.data {
		v.data[i] = value
	}
}

// Equal returns true if both volumes have the same shape and voxels.
func (v *Volume) Equal(v2 *Volume) bool {
	if v == nil || v2 == nil {
		return v == v2
	}
	return v.size == v2.size && bytes.Equal(v.data, v2.data)
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	data := make([]byte, len(v.data))
	copy(data, v.data)
	return &Volume{size: v.size, data: data}
}

// Contains returns true if the box lies within the volume's own coordinate space.
func (v *Volume) Contains(b Box) bool {
	for dim := 0; dim < 3; dim++ {
		if b[dim].Start < 0 || b[dim].Stop > v.size[dim] || b[dim].Start > b[dim].Stop {
			return false
		}
	}
	return true
}

// CopyBox copies the voxels within srcBox of src into the receiver, placing the
// minimum corner of srcBox at dstOffset.  Rows along Z are copied contiguously.
func (v *Volume) CopyBox(dstOffset Point3d, src *Volume, srcBox Box) error {
	size := srcBox.Size()
	dstBox := Box{
		{dstOffset[0], dstOffset[0] + size[0]},
		{dstOffset[1], dstOffset[1] + size[1]},
		{dstOffset[2], dstOffset[2] + size[2]},
	}
	if !src.Contains(srcBox) {
		return InvalidRequestf("source box %s outside volume of size %s", srcBox, src.size)
	}
	if !v.Contains(dstBox) {
		return InvalidRequestf("destination box %s outside volume of size %s", dstBox, v.size)
	}
	rowLen := int64(size[2])
	for x := int32(0); x < size[0]; x++ {
		for y := int32(0); y < size[1]; y++ {
			si := src.index(srcBox[0].Start+x, srcBox[1].Start+y, srcBox[2].Start)
			di := v.index(dstOffset[0]+x, dstOffset[1]+y, dstOffset[2])
			copy(v.data[di:di+rowLen], src.data[si:si+rowLen])
		}
	}
	return nil
}

// SubVolume returns a copy of the voxels within the box.
func (v *Volume) SubVolume(b Box) (*Volume, error) {
	sub := NewVolume(b.Size())
	if err := sub.CopyBox(Point3d{}, v, b); err != nil {
		return nil, err
	}
	return sub, nil
}

// Transpose returns a new volume with the axis order reversed, so voxel (x,y,z)
// of the receiver is voxel (z,y,x) of the result.  The result's bytes are in the
// X-fastest (Z, Y, X) layout.  Transposing twice restores the original.
func (v *Volume) Transpose() *Volume {
	out := NewVolume(Point3d{v.size[2], v.size[1], v.size[0]})
	for x := int32(0); x < v.size[0]; x++ {
		for y := int32(0); y < v.size[1]; y++ {
			for z := int32(0); z < v.size[2]; z++ {
				out.data[out.index(z, y, x)] = v.data[v.index(x, y, z)]
			}
		}
	}
	return out
}

func (v *Volume) String() string {
	return fmt.Sprintf("uint8 volume %s", v.size)
}
