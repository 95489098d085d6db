/*
Package storage provides a unified interface to a number of storage engines that
hold 3d cutout data.  Since each storage engine has a different medium (memory,
block files on disk, an embedded database, a cloud bucket, a remote service), this
package defines the Engine interface that every engine fulfills and a registry
through which engines are created from store configurations.

Engines report absence of data with dvid.ErrNotFound.  This is the only error
that a layered store will treat as a miss; any other error is propagated.
*/
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/blang/semver"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

// Engine is a store of cutout data.
type Engine interface {
	fmt.Stringer

	// Get returns the voxels for the coordinate frame or an ErrNotFound error if
	// any required data is absent.  Absent data is never replaced with zeros.
	Get(ctx context.Context, c dvid.CoordinateFrame) (*dvid.Volume, error)

	// Has returns true only if the engine can provide the full cutout.  A medium
	// failure is returned as an error rather than false.
	Has(ctx context.Context, c dvid.CoordinateFrame) (bool, error)

	// Put stores the volume, which must have exactly the size of the coordinate frame.
	Put(ctx context.Context, c dvid.CoordinateFrame, v *dvid.Volume) error
}

// Closer is implemented by engines that hold resources.
type Closer interface {
	Close() error
}

// Close closes the engine if it holds resources.
func Close(e Engine) error {
	if closer, ok := e.(Closer); ok {
		return closer.Close()
	}
	return nil
}

// BlockLister is implemented by block engines that can enumerate the stored
// blocks of a channel without any index.
type BlockLister interface {
	ListBlocks(ctx context.Context, collection, experiment, channel string) ([]dvid.BlockKey, error)
}

// EngineType describes a kind of engine that can be created from a store configuration.
type EngineType interface {
	fmt.Stringer

	GetName() string
	GetDescription() string
	GetSemVer() semver.Version

	// NewEngine returns an engine built from the store configuration.
	NewEngine(config dvid.StoreConfig) (Engine, error)
}

var (
	engineTypesMu sync.RWMutex
	engineTypes   = make(map[string]EngineType)
)

// RegisterEngineType registers an engine type under its name.  It is meant to be
// called from the init() of engine packages.
func RegisterEngineType(e EngineType) {
	engineTypesMu.Lock()
	defer engineTypesMu.Unlock()
	if _, found := engineTypes[e.GetName()]; found {
		dvid.Errorf("engine type %q already registered, replacing with %s\n", e.GetName(), e)
	}
	engineTypes[e.GetName()] = e
}

// GetEngineType returns the registered engine type with the given name.
func GetEngineType(name string) (EngineType, bool) {
	engineTypesMu.RLock()
	defer engineTypesMu.RUnlock()
	e, found := engineTypes[name]
	return e, found
}

// EngineTypes returns the registered engine types sorted by name.
func EngineTypes() []EngineType {
	engineTypesMu.RLock()
	defer engineTypesMu.RUnlock()
	types := make([]EngineType, 0, len(engineTypes))
	for _, e := range engineTypes {
		types = append(types, e)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].GetName() < types[j].GetName() })
	return types
}

// NewEngine creates an engine from a store configuration using the registered engine type.
func NewEngine(config dvid.StoreConfig) (Engine, error) {
	e, found := GetEngineType(config.Engine)
	if !found {
		return nil, fmt.Errorf("no storage engine %q registered", config.Engine)
	}
	engine, err := e.NewEngine(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s engine: %v", config.Engine, err)
	}
	dvid.Infof("Created %s engine: %s\n", e, engine)
	return engine, nil
}

// EngineInfo is a simple EngineType implementation that engine packages embed.
type EngineInfo struct {
	Name        string
	Description string
	Version     semver.Version
}

// NewEngineInfo returns engine info with a parsed semantic version.
func NewEngineInfo(name, desc, version string) EngineInfo {
	ver, err := semver.Make(version)
	if err != nil {
		dvid.Errorf("Unable to make semver for engine %q: %v\n", name, err)
	}
	return EngineInfo{Name: name, Description: desc, Version: ver}
}

func (e EngineInfo) GetName() string           { return e.Name }
func (e EngineInfo) GetDescription() string    { return e.Description }
func (e EngineInfo) GetSemVer() semver.Version { return e.Version }

func (e EngineInfo) String() string {
	return fmt.Sprintf("%s [%s]", e.Name, e.Version)
}

// CheckPut returns an ErrInvalidRequest error if the frame is malformed or the
// payload's shape does not match the frame.  Engines call it before any I/O.
func CheckPut(c dvid.CoordinateFrame, v *dvid.Volume) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if v == nil {
		return dvid.InvalidRequestf("no payload given for cutout %s", c)
	}
	if v.Size() != c.Size() {
		return dvid.InvalidRequestf("payload of size %s does not match cutout %s of size %s", v.Size(), c, c.Size())
	}
	return nil
}
