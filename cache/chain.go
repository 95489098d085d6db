/*
Package cache composes storage engines into layered stores.  A Chain tries
its own engine first and falls back to the next layer only when data is absent
(dvid.ErrNotFound), optionally filling itself with what the next layer
returned.  A Broadcast treats a flat list of engines as one store.  Both
satisfy storage.Engine, so layers nest.
*/
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

// DefaultFetchTimeout bounds a fetch from the next layer when no timeout is set.
const DefaultFetchTimeout = 60 * time.Second

// PutPolicy determines where a Chain writes a put.
type PutPolicy uint8

const (
	// PutLocal writes only to the chain's own engine.
	PutLocal PutPolicy = iota

	// PutFallthrough writes to the own engine, or to the next layer if the own
	// engine does not support puts.
	PutFallthrough

	// PutWriteThrough writes to the own engine and then to the next layer.
	PutWriteThrough
)

func (p PutPolicy) String() string {
	switch p {
	case PutLocal:
		return "local"
	case PutFallthrough:
		return "fallthrough"
	case PutWriteThrough:
		return "writethrough"
	default:
		return "unknown"
	}
}

// ParsePutPolicy returns the policy given its name.
func ParsePutPolicy(s string) (PutPolicy, error) {
	switch strings.ToLower(s) {
	case "", "local":
		return PutLocal, nil
	case "fallthrough":
		return PutFallthrough, nil
	case "writethrough", "write-through":
		return PutWriteThrough, nil
	default:
		return PutLocal, fmt.Errorf("unknown put policy %q", s)
	}
}

// Stacker is implemented by layered stores that can name their layers.
type Stacker interface {
	Stack() []string
}

// Option configures a Chain.
type Option func(*Chain)

// WithCacheFill sets whether data served by the next layer is put into the chain's own engine.
func WithCacheFill(fill bool) Option {
	return func(c *Chain) { c.cacheFill = fill }
}

// WithPutPolicy sets where puts are written.
func WithPutPolicy(p PutPolicy) Option {
	return func(c *Chain) { c.putPolicy = p }
}

// WithFetchTimeout bounds each fetch from the next layer, which runs apart
// from the cancellation of the requests waiting on it.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithName sets the layer name used in logs, metrics and Stack().
func WithName(name string) Option {
	return func(c *Chain) { c.name = name }
}

// Chain is one layer of a read-through stack: an engine plus an optional next
// layer.  A nil next layer makes the chain terminal.
type Chain struct {
	name      string
	local     storage.Engine
	next      storage.Engine
	cacheFill bool
	putPolicy PutPolicy

	fetchTimeout time.Duration

	fetches singleflight.Group
}

// NewChain returns a layer over the local engine that falls back to next.
func NewChain(local, next storage.Engine, opts ...Option) *Chain {
	c := &Chain{local: local, next: next, fetchTimeout: DefaultFetchTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" {
		c.name = local.String()
	}
	return c
}

// Name returns the layer name.
func (c *Chain) Name() string {
	return c.name
}

// Next returns the next layer or nil if the chain is terminal.
func (c *Chain) Next() storage.Engine {
	return c.next
}

func (c *Chain) String() string {
	if c.next == nil {
		return c.name
	}
	return c.name + " -> " + c.next.String()
}

// Stack returns the names of this layer and every layer below it.
func (c *Chain) Stack() []string {
	names := []string{c.name}
	switch next := c.next.(type) {
	case nil:
	case Stacker:
		names = append(names, next.Stack()...)
	default:
		names = append(names, next.String())
	}
	return names
}

// Close closes the local engine and then the rest of the chain.
func (c *Chain) Close() error {
	err := storage.Close(c.local)
	if c.next != nil {
		if nextErr := storage.Close(c.next); err == nil {
			err = nextErr
		}
	}
	return err
}

// Get returns the cutout from the local engine, or on ErrNotFound from the next
// layer.  Any other local error is returned without consulting the next layer.
// Concurrent misses for the same cutout share a single fetch from the next layer.
// The shared fetch is detached from any one caller's cancellation and bounded by
// the chain's fetch timeout; each caller stops waiting when its own context ends.
func (c *Chain) Get(ctx context.Context, coord dvid.CoordinateFrame) (*dvid.Volume, error) {
	v, err := c.local.Get(ctx, coord)
	mRequests.WithLabelValues(c.name, "get", result(err)).Inc()
	if err == nil || !dvid.IsNotFound(err) || c.next == nil {
		return v, err
	}
	dvid.Debugf("Layer %s missing %s, trying next layer\n", c.name, coord)

	ch := c.fetches.DoChan(coord.String(), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		v, err := c.next.Get(fetchCtx, coord)
		if err != nil {
			return nil, err
		}
		if c.cacheFill {
			c.fill(fetchCtx, coord, v)
		}
		return v, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		v = res.Val.(*dvid.Volume)
		if res.Shared {
			v = v.Clone()
		}
		return v, nil
	}
}

// fill puts data from the next layer into the local engine.  Failures are
// logged and counted but never fail the get.
func (c *Chain) fill(ctx context.Context, coord dvid.CoordinateFrame, v *dvid.Volume) {
	err := c.local.Put(ctx, coord, v)
	mFills.WithLabelValues(c.name, result(err)).Inc()
	if err != nil {
		dvid.Warningf("Unable to fill layer %s with %s: %v\n", c.name, coord, err)
	}
}

// Has returns true if the local engine or any layer below has the cutout.
func (c *Chain) Has(ctx context.Context, coord dvid.CoordinateFrame) (bool, error) {
	found, err := c.local.Has(ctx, coord)
	mRequests.WithLabelValues(c.name, "has", hasResult(found, err)).Inc()
	if err != nil || found || c.next == nil {
		return found, err
	}
	return c.next.Has(ctx, coord)
}

// Put writes the cutout according to the chain's put policy.
func (c *Chain) Put(ctx context.Context, coord dvid.CoordinateFrame, v *dvid.Volume) error {
	err := c.local.Put(ctx, coord, v)
	mRequests.WithLabelValues(c.name, "put", result(err)).Inc()
	if c.next == nil {
		return err
	}
	switch c.putPolicy {
	case PutFallthrough:
		if dvid.IsNotSupported(err) {
			dvid.Debugf("Layer %s does not support put of %s, writing to next layer\n", c.name, coord)
			return c.next.Put(ctx, coord, v)
		}
	case PutWriteThrough:
		if err == nil || dvid.IsNotSupported(err) {
			return c.next.Put(ctx, coord, v)
		}
	}
	return err
}
