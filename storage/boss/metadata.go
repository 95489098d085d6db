package boss

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

// CoordFrame is the spatial extent of an experiment as described upstream.
type CoordFrame struct {
	Name   string `json:"name"`
	XStart int32  `json:"x_start"`
	XStop  int32  `json:"x_stop"`
	YStart int32  `json:"y_start"`
	YStop  int32  `json:"y_stop"`
	ZStart int32  `json:"z_start"`
	ZStop  int32  `json:"z_stop"`
}

// Box returns the extent of the coordinate frame.
func (f CoordFrame) Box() dvid.Box {
	return dvid.Box{{Start: f.XStart, Stop: f.XStop}, {Start: f.YStart, Stop: f.YStop}, {Start: f.ZStart, Stop: f.ZStop}}
}

// Contains returns true if the box lies within the coordinate frame.
func (f CoordFrame) Contains(b dvid.Box) bool {
	frame := f.Box()
	for dim := 0; dim < 3; dim++ {
		if b[dim].Start < frame[dim].Start || b[dim].Stop > frame[dim].Stop {
			return false
		}
	}
	return true
}

type experimentInfo struct {
	Name       string `json:"name"`
	CoordFrame string `json:"coord_frame"`
}

type channelKey struct {
	collection, experiment, channel string
}

type experimentKey struct {
	collection, experiment string
}

// metadataCache remembers channels known to exist and experiment coordinate
// frames.  Absence is not cached so newly created channels are seen.
type metadataCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func newMetadataCache(maxEntries int) *metadataCache {
	return &metadataCache{lru: lru.New(maxEntries)}
}

func (mc *metadataCache) get(key lru.Key) (interface{}, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lru.Get(key)
}

func (mc *metadataCache) add(key lru.Key, value interface{}) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.lru.Add(key, value)
}

func (r *Remote) channelExists(ctx context.Context, collection, experiment, channel string) (bool, error) {
	key := channelKey{collection, experiment, channel}
	if _, found := r.meta.get(key); found {
		return true, nil
	}
	var info map[string]interface{}
	err := r.getJSON(ctx, r.channelURL(collection, experiment, channel), &info)
	if dvid.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	r.meta.add(key, true)
	return true, nil
}

func (r *Remote) experimentFrame(ctx context.Context, collection, experiment string) (CoordFrame, bool, error) {
	key := experimentKey{collection, experiment}
	if v, found := r.meta.get(key); found {
		return v.(CoordFrame), true, nil
	}
	var exp experimentInfo
	err := r.getJSON(ctx, r.experimentURL(collection, experiment), &exp)
	if dvid.IsNotFound(err) {
		return CoordFrame{}, false, nil
	}
	if err != nil {
		return CoordFrame{}, false, err
	}
	if exp.CoordFrame == "" {
		return CoordFrame{}, false, dvid.IOFailure(nil, "experiment %s/%s has no coordinate frame upstream", collection, experiment)
	}
	var frame CoordFrame
	err = r.getJSON(ctx, r.coordFrameURL(exp.CoordFrame), &frame)
	if dvid.IsNotFound(err) {
		return CoordFrame{}, false, nil
	}
	if err != nil {
		return CoordFrame{}, false, err
	}
	r.meta.add(key, frame)
	return frame, true, nil
}
