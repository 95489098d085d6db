package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

func init() {
	RegisterEngineType(memoryType{
		NewEngineInfo("memory", "Dense in-memory volume of fixed size", "0.2.0"),
	})
}

type memoryType struct {
	EngineInfo
}

// NewEngine returns a memory engine sized by the required "size" setting, e.g., "512,512,64".
func (t memoryType) NewEngine(config dvid.StoreConfig) (Engine, error) {
	size, found, err := config.GetPoint3d("size")
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("memory engine requires a %q setting", "size")
	}
	return NewMemory(size)
}

// Memory is an engine backed by a single dense volume anchored at voxel 0.
// Dataset identity is ignored; every channel maps onto the same array.
type Memory struct {
	sync.RWMutex
	vol *dvid.Volume
}

// NewMemory returns a zero-filled memory engine of the given shape.
func NewMemory(size dvid.Point3d) (*Memory, error) {
	if !size.Positive() {
		return nil, fmt.Errorf("memory engine size %s must be positive along every axis", size)
	}
	return &Memory{vol: dvid.NewVolume(size)}, nil
}

// Size returns the shape of the backing volume.
func (m *Memory) Size() dvid.Point3d {
	return m.vol.Size()
}

func (m *Memory) String() string {
	return fmt.Sprintf("memory %s", m.vol.Size())
}

func (m *Memory) Get(ctx context.Context, c dvid.CoordinateFrame) (*dvid.Volume, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	m.RLock()
	defer m.RUnlock()
	if !m.vol.Contains(c.Box()) {
		return nil, dvid.NotFoundf("cutout %s outside memory volume %s", c, m.vol.Size())
	}
	return m.vol.SubVolume(c.Box())
}

func (m *Memory) Has(ctx context.Context, c dvid.CoordinateFrame) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	return m.vol.Contains(c.Box()), nil
}

func (m *Memory) Put(ctx context.Context, c dvid.CoordinateFrame, v *dvid.Volume) error {
	if err := CheckPut(c, v); err != nil {
		return err
	}
	if !m.vol.Contains(c.Box()) {
		return dvid.InvalidRequestf("cutout %s outside memory volume %s", c, m.vol.Size())
	}
	m.Lock()
	defer m.Unlock()
	return m.vol.CopyBox(c.Offset(), v, dvid.Box{
		{Start: 0, Stop: c.X.Len()}, {Start: 0, Stop: c.Y.Len()}, {Start: 0, Stop: c.Z.Len()},
	})
}
