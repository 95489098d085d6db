package cache

import (
	"fmt"
	"strings"

	"github.com/janelia-flyem/dvidproxy/storage"
)

// Mode is the composition of a stack of layers.
type Mode string

const (
	ChainMode     Mode = "chain"
	BroadcastMode Mode = "broadcast"
)

// ParseMode returns the mode given its name.  An empty name is chain mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ChainMode:
		return ChainMode, nil
	case BroadcastMode:
		return BroadcastMode, nil
	default:
		return "", fmt.Errorf("unknown stack mode %q", s)
	}
}

// Layer is a named engine within a stack.
type Layer struct {
	Name   string
	Engine storage.Engine
}

// NewStack composes the layers, given top (fastest) to bottom, into one engine.
// In chain mode each layer falls back to the one below it and the options apply
// to every layer.  Options are ignored in broadcast mode.
func NewStack(mode Mode, layers []Layer, opts ...Option) (storage.Engine, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("a %s stack needs at least one layer", mode)
	}
	switch mode {
	case ChainMode:
		var next storage.Engine
		for i := len(layers) - 1; i >= 0; i-- {
			layerOpts := append(append([]Option(nil), opts...), WithName(layers[i].Name))
			next = NewChain(layers[i].Engine, next, layerOpts...)
		}
		return next, nil
	case BroadcastMode:
		names := make([]string, len(layers))
		engines := make([]storage.Engine, len(layers))
		for i, layer := range layers {
			names[i] = layer.Name
			if names[i] == "" {
				names[i] = layer.Engine.String()
			}
			engines[i] = layer.Engine
		}
		return newBroadcast("", names, engines), nil
	default:
		return nil, fmt.Errorf("unknown stack mode %q", mode)
	}
}
