package dvid

import (
	"fmt"
	"strconv"
	"strings"
)

// Extent is a half-open range [Start, Stop) along one axis.
type Extent struct {
	Start int32
	Stop  int32
}

// Len returns the number of voxels in the extent.
func (e Extent) Len() int32 {
	return e.Stop - e.Start
}

// String returns the "start:stop" form used in cutout paths.
func (e Extent) String() string {
	return fmt.Sprintf("%d:%d", e.Start, e.Stop)
}

// ParseExtent parses a "start:stop" string.
func ParseExtent(s string) (Extent, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Extent{}, InvalidRequestf("bad range %q, expected start:stop", s)
	}
	start, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return Extent{}, InvalidRequestf("bad range start in %q", s)
	}
	stop, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return Extent{}, InvalidRequestf("bad range stop in %q", s)
	}
	return Extent{int32(start), int32(stop)}, nil
}

// Box is an axis-aligned box given as half-open extents in X, Y, Z order.
type Box [3]Extent

// Size returns the number of voxels along each axis.
func (b Box) Size() Point3d {
	return Point3d{b[0].Len(), b[1].Len(), b[2].Len()}
}

// Offset returns the minimum corner of the box.
func (b Box) Offset() Point3d {
	return Point3d{b[0].Start, b[1].Start, b[2].Start}
}

// NumVoxels returns the number of voxels within the box.
func (b Box) NumVoxels() int64 {
	return b.Size().Prod()
}

// CheckNumVoxels returns ErrInvalidRequest if the box holds more than limit voxels.
// The count is bounded as it is formed so huge extents cannot overflow.
func (b Box) CheckNumVoxels(limit int64) error {
	n := int64(1)
	for _, e := range b {
		size := int64(e.Stop) - int64(e.Start)
		if size <= 0 {
			return InvalidRequestf("box %s is empty", b)
		}
		if n > limit/size {
			return InvalidRequestf("box %s exceeds the maximum cutout of %d voxels", b, limit)
		}
		n *= size
	}
	return nil
}

// Sub translates the box by subtracting the given point.
func (b Box) Sub(p Point3d) Box {
	var out Box
	for dim := 0; dim < 3; dim++ {
		out[dim] = Extent{b[dim].Start - p[dim], b[dim].Stop - p[dim]}
	}
	return out
}

func (b Box) String() string {
	return fmt.Sprintf("%s/%s/%s", b[0], b[1], b[2])
}

// CoordinateFrame describes a single cutout: the dataset location plus the
// query volume.  It is a value type and should not be modified once created.
type CoordinateFrame struct {
	Collection string
	Experiment string
	Channel    string
	Resolution int
	X, Y, Z    Extent
}

// NewCoordinateFrame returns a validated coordinate frame.
func NewCoordinateFrame(collection, experiment, channel string, resolution int, x, y, z Extent) (CoordinateFrame, error) {
	c := CoordinateFrame{
		Collection: collection,
		Experiment: experiment,
		Channel:    channel,
		Resolution: resolution,
		X:          x,
		Y:          y,
		Z:          z,
	}
	if err := c.Validate(); err != nil {
		return CoordinateFrame{}, err
	}
	return c, nil
}

// Validate returns an ErrInvalidRequest error if the frame is malformed.
func (c CoordinateFrame) Validate() error {
	for _, n := range [3]struct{ kind, name string }{
		{"collection", c.Collection},
		{"experiment", c.Experiment},
		{"channel", c.Channel},
	} {
		if err := ValidDataName(n.kind, n.name); err != nil {
			return err
		}
	}
	if c.Resolution < 0 {
		return InvalidRequestf("resolution %d must be non-negative", c.Resolution)
	}
	for dim, e := range c.Box() {
		if e.Start < 0 || e.Stop < 0 {
			return InvalidRequestf("%s range %s has a negative bound", axisName[dim], e)
		}
		if e.Start >= e.Stop {
			return InvalidRequestf("%s range %s is empty", axisName[dim], e)
		}
	}
	return nil
}

var axisName = [3]string{"x", "y", "z"}

// ValidDataName returns an ErrInvalidRequest error if a collection, experiment
// or channel name is empty or could not be used as a single path segment.
// The kind, e.g. "channel", is used in the error message.
func ValidDataName(kind, name string) error {
	switch {
	case name == "":
		return InvalidRequestf("cutout requires a %s name", kind)
	case name == "." || name == "..":
		return InvalidRequestf("%s name %q is not allowed", kind, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return InvalidRequestf("%s name %q contains a path separator or NUL", kind, name)
	}
	return nil
}

// Box returns the query volume of the frame.
func (c CoordinateFrame) Box() Box {
	return Box{c.X, c.Y, c.Z}
}

// Size returns the shape of the payload for this frame.
func (c CoordinateFrame) Size() Point3d {
	return c.Box().Size()
}

// Offset returns the minimum voxel coordinate of the query volume.
func (c CoordinateFrame) Offset() Point3d {
	return c.Box().Offset()
}

// WithBox returns a frame with the same dataset identity but a different query volume.
func (c CoordinateFrame) WithBox(b Box) CoordinateFrame {
	c.X, c.Y, c.Z = b[0], b[1], b[2]
	return c
}

// DataName returns the collection/experiment/channel triple.
func (c CoordinateFrame) DataName() string {
	return c.Collection + "/" + c.Experiment + "/" + c.Channel
}

// String returns the cutout path form collection/experiment/channel/res/x0:x1/y0:y1/z0:z1.
func (c CoordinateFrame) String() string {
	return fmt.Sprintf("%s/%d/%s/%s/%s", c.DataName(), c.Resolution, c.X, c.Y, c.Z)
}

// BlockKey returns the key of the block with the given origin for this frame's dataset.
func (c CoordinateFrame) BlockKey(origin Point3d) BlockKey {
	return BlockKey{
		Collection: c.Collection,
		Experiment: c.Experiment,
		Channel:    c.Channel,
		Resolution: c.Resolution,
		Origin:     origin,
	}
}

// ParseCutoutPath parses a path of the form
// collection/experiment/channel/resolution/x0:x1/y0:y1/z0:z1 with optional
// leading and trailing slashes.
func ParseCutoutPath(path string) (CoordinateFrame, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 7 {
		return CoordinateFrame{}, InvalidRequestf("cutout path %q needs 7 parts, got %d", path, len(parts))
	}
	res, err := strconv.Atoi(parts[3])
	if err != nil {
		return CoordinateFrame{}, InvalidRequestf("bad resolution %q", parts[3])
	}
	var exts [3]Extent
	for dim := 0; dim < 3; dim++ {
		if exts[dim], err = ParseExtent(parts[4+dim]); err != nil {
			return CoordinateFrame{}, err
		}
	}
	return NewCoordinateFrame(parts[0], parts[1], parts[2], res, exts[0], exts[1], exts[2])
}

// BlockKey identifies one stored block.  Each component of Origin is a
// non-negative multiple of the block size along that axis.
type BlockKey struct {
	Collection string
	Experiment string
	Channel    string
	Resolution int
	Origin     Point3d
}

// Box returns the full extent [origin, origin+blockSize) of the block.
func (k BlockKey) Box(blockSize Point3d) Box {
	var b Box
	for dim := 0; dim < 3; dim++ {
		b[dim] = Extent{k.Origin[dim], k.Origin[dim] + blockSize[dim]}
	}
	return b
}

// DataName returns the collection/experiment/channel triple.
func (k BlockKey) DataName() string {
	return k.Collection + "/" + k.Experiment + "/" + k.Channel
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s/%d@%s", k.DataName(), k.Resolution, k.Origin)
}
