package dvid

import "math"

// The partitioning functions below map a query box onto the fixed grid of
// blocks anchored at voxel 0.  All lists are produced in the same order:
// X outermost, then Y, then Z innermost, so element i of every list refers to
// the same block.

// ValidBlockSize returns an error if any block dimension is not positive.
func ValidBlockSize(blockSize Point3d) error {
	if !blockSize.Positive() {
		return InvalidRequestf("block size %s must be positive along every axis", blockSize)
	}
	return nil
}

// ValidOrigin returns true if the point is a non-negative block-aligned origin.
func ValidOrigin(origin, blockSize Point3d) bool {
	if origin[0] < 0 || origin[1] < 0 || origin[2] < 0 {
		return false
	}
	return origin.Chunk(blockSize).MinPoint(blockSize) == origin
}

// blockOrigins returns every multiple o of size with o > start-size and o < stop,
// i.e., the origins of all blocks whose extent intersects [start, stop).  The
// stepping is done in int64 so extents ending near MaxInt32 cannot wrap.
func blockOrigins(e Extent, size int32) []int32 {
	if e.Stop <= e.Start || size <= 0 {
		return nil
	}
	step := int64(size)
	first := (int64(e.Start) / step) * step
	if first < 0 {
		first = 0
	}
	stop := int64(e.Stop)
	origins := make([]int32, 0, (stop-first+step-1)/step)
	for o := first; o < stop; o += step {
		origins = append(origins, int32(o))
	}
	return origins
}

// clip returns the intersection of [o, o+size) with the extent.
func clip(o, size int32, e Extent) Extent {
	clipped := Extent{o, e.Stop}
	if int64(o)+int64(size) < int64(e.Stop) {
		clipped.Stop = o + size
	}
	if clipped.Start < e.Start {
		clipped.Start = e.Start
	}
	return clipped
}

// CheckGridBounds returns an ErrInvalidRequest error if any block touched by
// the box would end past MaxInt32, where its extent is no longer representable.
func CheckGridBounds(b Box, blockSize Point3d) error {
	if err := ValidBlockSize(blockSize); err != nil {
		return err
	}
	for dim, e := range b {
		size := int64(blockSize[dim])
		lastOrigin := ((int64(e.Stop) - 1) / size) * size
		if lastOrigin+size > math.MaxInt32 {
			return InvalidRequestf("%s range %s reaches a block beyond the maximum coordinate %d", axisName[dim], e, int32(math.MaxInt32))
		}
	}
	return nil
}

// ComputeFileOrigins returns the origins of the blocks touched by the query box.
func ComputeFileOrigins(x, y, z Extent, blockSize Point3d) []Point3d {
	xs := blockOrigins(x, blockSize[0])
	ys := blockOrigins(y, blockSize[1])
	zs := blockOrigins(z, blockSize[2])

	origins := make([]Point3d, 0, len(xs)*len(ys)*len(zs))
	for _, ox := range xs {
		for _, oy := range ys {
			for _, oz := range zs {
				origins = append(origins, Point3d{ox, oy, oz})
			}
		}
	}
	return origins
}

// ComputeClippedExtents returns, for each touched block, the part of the block
// that lies within the query box, in global voxel coordinates.
func ComputeClippedExtents(x, y, z Extent, blockSize Point3d) []Box {
	var clipped [3][]Extent
	for dim, e := range [3]Extent{x, y, z} {
		for _, o := range blockOrigins(e, blockSize[dim]) {
			clipped[dim] = append(clipped[dim], clip(o, blockSize[dim], e))
		}
	}

	boxes := make([]Box, 0, len(clipped[0])*len(clipped[1])*len(clipped[2]))
	for _, cx := range clipped[0] {
		for _, cy := range clipped[1] {
			for _, cz := range clipped[2] {
				boxes = append(boxes, Box{cx, cy, cz})
			}
		}
	}
	return boxes
}

// ComputeLocalIndices translates each clipped box into the local coordinate
// space of its block, i.e., the slice to read or write within the block.
// The two lists must be paired positionally and have equal length.
func ComputeLocalIndices(clipped []Box, origins []Point3d) []Box {
	if len(clipped) != len(origins) {
		panic("ComputeLocalIndices passed mismatched clipped extents and block origins")
	}
	local := make([]Box, len(clipped))
	for i, b := range clipped {
		local[i] = b.Sub(origins[i])
	}
	return local
}

// BlockSpan packages everything an engine needs to move voxels between one
// block and a cutout payload.
type BlockSpan struct {
	Key     BlockKey
	Origin  Point3d
	Clipped Box // global coordinates of the voxels needed from this block
	Local   Box // same voxels in block coordinates
}

// PayloadOffset returns where the clipped voxels sit within a payload whose
// minimum corner is the given offset.
func (s BlockSpan) PayloadOffset(offset Point3d) Point3d {
	return s.Clipped.Offset().Sub(offset)
}

// Partition returns the block spans for a coordinate frame in grid order.
func Partition(c CoordinateFrame, blockSize Point3d) []BlockSpan {
	origins := ComputeFileOrigins(c.X, c.Y, c.Z, blockSize)
	clipped := ComputeClippedExtents(c.X, c.Y, c.Z, blockSize)
	local := ComputeLocalIndices(clipped, origins)

	spans := make([]BlockSpan, len(origins))
	for i, origin := range origins {
		spans[i] = BlockSpan{
			Key:     c.BlockKey(origin),
			Origin:  origin,
			Clipped: clipped[i],
			Local:   local[i],
		}
	}
	return spans
}
