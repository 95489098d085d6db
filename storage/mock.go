package storage

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

func init() {
	RegisterEngineType(mockType{
		NewEngineInfo("mock", "Read-only engine synthesizing voxels from the channel name", "0.1.0"),
	})
	RegisterEngineType(nullType{
		NewEngineInfo("null", "Engine that never has data and rejects writes", "0.1.0"),
	})
}

type mockType struct {
	EngineInfo
}

func (t mockType) NewEngine(config dvid.StoreConfig) (Engine, error) {
	return Mock{}, nil
}

type nullType struct {
	EngineInfo
}

func (t nullType) NewEngine(config dvid.StoreConfig) (Engine, error) {
	return Null{}, nil
}

// NoDataExperiment is the experiment name for which the mock engine reports no data.
const NoDataExperiment = "nodata"

// Mock is a read-only engine that synthesizes cutouts.  If the channel name is
// an integer in [0, 255] every voxel has that value, otherwise voxels are random.
type Mock struct{}

func (Mock) String() string { return "mock" }

func (Mock) Get(ctx context.Context, c dvid.CoordinateFrame) (*dvid.Volume, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Experiment == NoDataExperiment {
		return nil, dvid.NotFoundf("mock has no data for %s", c)
	}
	v := dvid.NewVolume(c.Size())
	if value, err := strconv.ParseUint(c.Channel, 10, 8); err == nil {
		v.Fill(byte(value))
		return v, nil
	}
	data := v.Bytes()
	for i := range data {
		data[i] = byte(rand.Intn(256))
	}
	return v, nil
}

func (Mock) Has(ctx context.Context, c dvid.CoordinateFrame) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	return c.Experiment != NoDataExperiment, nil
}

func (Mock) Put(ctx context.Context, c dvid.CoordinateFrame, v *dvid.Volume) error {
	return dvid.NotSupportedf("cannot put %s into mock engine", c)
}

// Null is an engine that never has data and rejects writes.
type Null struct{}

func (Null) String() string { return "null" }

func (Null) Get(ctx context.Context, c dvid.CoordinateFrame) (*dvid.Volume, error) {
	return nil, dvid.NotFoundf("null engine has no data for %s", c)
}

func (Null) Has(ctx context.Context, c dvid.CoordinateFrame) (bool, error) {
	return false, nil
}

func (Null) Put(ctx context.Context, c dvid.CoordinateFrame, v *dvid.Volume) error {
	return dvid.NotSupportedf("cannot put %s into null engine", c)
}

// ReadOnly wraps an engine so that reads pass through and writes fail with
// dvid.ErrNotSupported.
type ReadOnly struct {
	Engine
}

// NewReadOnly returns a read-only view of the engine.
func NewReadOnly(e Engine) ReadOnly {
	return ReadOnly{e}
}

func (r ReadOnly) String() string {
	return fmt.Sprintf("read-only %s", r.Engine)
}

func (r ReadOnly) Put(ctx context.Context, c dvid.CoordinateFrame, v *dvid.Volume) error {
	return dvid.NotSupportedf("cannot put %s into %s", c, r)
}

// Close closes the wrapped engine.
func (r ReadOnly) Close() error {
	return Close(r.Engine)
}
