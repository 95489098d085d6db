package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

// Broadcast treats an ordered list of engines as one store: reads come from
// the first engine that has the data and writes go to all of them.
type Broadcast struct {
	name    string
	names   []string
	engines []storage.Engine
}

// NewBroadcast returns a flat store over the engines, which are consulted in order.
func NewBroadcast(name string, engines ...storage.Engine) *Broadcast {
	names := make([]string, len(engines))
	for i, e := range engines {
		names[i] = e.String()
	}
	return newBroadcast(name, names, engines)
}

func newBroadcast(name string, names []string, engines []storage.Engine) *Broadcast {
	if name == "" {
		name = "broadcast"
	}
	return &Broadcast{name: name, names: names, engines: engines}
}

func (b *Broadcast) String() string {
	return fmt.Sprintf("%s [%s]", b.name, strings.Join(b.names, ", "))
}

// Stack returns the names of the engines in order.
func (b *Broadcast) Stack() []string {
	return append([]string(nil), b.names...)
}

// Close closes every engine, returning the joined errors.
func (b *Broadcast) Close() error {
	var errs []error
	for _, e := range b.engines {
		if err := storage.Close(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Get returns the cutout from the first engine that has it.  An error from any
// Has check is returned immediately.
func (b *Broadcast) Get(ctx context.Context, coord dvid.CoordinateFrame) (*dvid.Volume, error) {
	for i, e := range b.engines {
		found, err := e.Has(ctx, coord)
		mRequests.WithLabelValues(b.names[i], "has", hasResult(found, err)).Inc()
		if err != nil {
			return nil, err
		}
		if found {
			v, err := e.Get(ctx, coord)
			mRequests.WithLabelValues(b.names[i], "get", result(err)).Inc()
			return v, err
		}
	}
	return nil, dvid.NotFoundf("no engine in %s has %s", b.name, coord)
}

// Has returns true as soon as any engine has the cutout.
func (b *Broadcast) Has(ctx context.Context, coord dvid.CoordinateFrame) (bool, error) {
	for i, e := range b.engines {
		found, err := e.Has(ctx, coord)
		mRequests.WithLabelValues(b.names[i], "has", hasResult(found, err)).Inc()
		if err != nil || found {
			return found, err
		}
	}
	return false, nil
}

// Put writes the cutout to every engine, even after a failure.  The returned
// error joins each engine's failure, so engines that succeeded keep the data.
func (b *Broadcast) Put(ctx context.Context, coord dvid.CoordinateFrame, v *dvid.Volume) error {
	var errs []error
	for i, e := range b.engines {
		err := e.Put(ctx, coord, v)
		mRequests.WithLabelValues(b.names[i], "put", result(err)).Inc()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.names[i], err))
		}
	}
	return errors.Join(errs...)
}
