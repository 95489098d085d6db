package server

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/dvidproxy/cache"
	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

const (
	// DefaultWebAddress is the default address of the proxy web server.
	DefaultWebAddress = "localhost:8000"

	// DefaultTimeout is the default deadline in seconds for each request.
	DefaultTimeout = 60

	// DefaultShutdownDelay is the default seconds allowed for in-flight requests on shutdown.
	DefaultShutdownDelay = 5

	// DefaultMaxCutoutSize is the default limit on the bytes of a single cutout.
	DefaultMaxCutoutSize = "1 GiB"
)

// Config is the parsed TOML server configuration.
type Config struct {
	Server  ServerConfig
	Logging dvid.LogConfig
	Store   map[string]storeConfig
	Stack   StackConfig

	location string
}

// ServerConfig is the [server] section.
type ServerConfig struct {
	HTTPAddress   string   `toml:"httpAddress"`
	Timeout       int      `toml:"timeout"`       // seconds
	ShutdownDelay int      `toml:"shutdownDelay"` // seconds
	CorsDomains   []string `toml:"corsDomains"`
	MaxCutoutSize string   `toml:"maxCutoutSize"` // e.g. "512 MB"
}

// CutoutLimit returns the maximum bytes, one per voxel, of a cutout that may
// be read or written.
func (c ServerConfig) CutoutLimit() (int64, error) {
	s := c.MaxCutoutSize
	if s == "" {
		s = DefaultMaxCutoutSize
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("bad [server] maxCutoutSize %q: %v", c.MaxCutoutSize, err)
	}
	if n == 0 || n > math.MaxInt64 {
		return 0, fmt.Errorf("[server] maxCutoutSize %q out of range", c.MaxCutoutSize)
	}
	return int64(n), nil
}

// RequestTimeout returns the deadline applied to each request.
func (c ServerConfig) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// StackConfig is the [stack] section describing how stores are layered.
type StackConfig struct {
	Mode      string   `toml:"mode"`
	Layers    []string `toml:"layers"`
	CacheFill bool     `toml:"cachefill"`
	Put       string   `toml:"put"`
}

// storeConfig is a [store.<alias>] section.  The "engine" setting names the
// engine type and the rest are engine-specific.
type storeConfig map[string]interface{}

// DefaultConfig returns a configuration with defaults for every [server] setting.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddress:   DefaultWebAddress,
			Timeout:       DefaultTimeout,
			ShutdownDelay: DefaultShutdownDelay,
			MaxCutoutSize: DefaultMaxCutoutSize,
		},
	}
}

// LoadConfig loads server configuration from a TOML file.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no server TOML configuration file provided")
	}
	c := DefaultConfig()
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	c.location = filename
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseConfig parses TOML server configuration.  Relative paths are left as given.
func ParseConfig(contents string) (*Config, error) {
	c := DefaultConfig()
	if _, err := toml.Decode(contents, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	_, err := c.Server.CutoutLimit()
	return err
}

// Location returns the file the configuration was loaded from, if any.
func (c *Config) Location() string {
	return c.location
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error

	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = dvid.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
	}

	// [store.foobar].path
	for alias, sc := range c.Store {
		p, ok := sc["path"]
		if !ok {
			continue
		}
		path, ok := p.(string)
		if !ok {
			return fmt.Errorf("don't understand path setting for store %q", alias)
		}
		absPath, err := dvid.ConvertToAbsolute(path, configDir)
		if err != nil {
			return fmt.Errorf("error converting store.%s.path to absolute path: %q", alias, path)
		}
		sc["path"] = absPath
	}
	return nil
}

// StoreConfig returns the engine configuration for a store alias.
func (c *Config) StoreConfig(alias string) (dvid.StoreConfig, error) {
	sc, found := c.Store[alias]
	if !found {
		return dvid.StoreConfig{}, fmt.Errorf("no [store.%s] section in configuration", alias)
	}
	config := dvid.NewConfig(sc)
	engine, found, err := config.GetString("engine")
	if err != nil {
		return dvid.StoreConfig{}, fmt.Errorf("store %q: %v", alias, err)
	}
	if !found || engine == "" {
		return dvid.StoreConfig{}, fmt.Errorf("store %q must specify an engine", alias)
	}
	return dvid.StoreConfig{Config: config, Engine: engine}, nil
}

// layerAliases returns the configured layer order, or the single store if only
// one is configured and no stack is given.
func (c *Config) layerAliases() ([]string, error) {
	if len(c.Stack.Layers) != 0 {
		return c.Stack.Layers, nil
	}
	if len(c.Store) == 1 {
		for alias := range c.Store {
			return []string{alias}, nil
		}
	}
	aliases := make([]string, 0, len(c.Store))
	for alias := range c.Store {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return nil, fmt.Errorf("[stack] layers must order the configured stores %v", aliases)
}

// NewStack creates the engines of every layer and composes them per the [stack] section.
func (c *Config) NewStack() (storage.Engine, error) {
	mode, err := cache.ParseMode(c.Stack.Mode)
	if err != nil {
		return nil, err
	}
	policy, err := cache.ParsePutPolicy(c.Stack.Put)
	if err != nil {
		return nil, err
	}
	aliases, err := c.layerAliases()
	if err != nil {
		return nil, err
	}

	var layers []cache.Layer
	closeLayers := func() {
		for _, layer := range layers {
			if err := storage.Close(layer.Engine); err != nil {
				dvid.Errorf("Error closing store %q: %v\n", layer.Name, err)
			}
		}
	}
	for _, alias := range aliases {
		sc, err := c.StoreConfig(alias)
		if err != nil {
			closeLayers()
			return nil, err
		}
		engine, err := storage.NewEngine(sc)
		if err != nil {
			closeLayers()
			return nil, fmt.Errorf("store %q: %v", alias, err)
		}
		layers = append(layers, cache.Layer{Name: alias, Engine: engine})
	}
	stack, err := cache.NewStack(mode, layers,
		cache.WithCacheFill(c.Stack.CacheFill),
		cache.WithPutPolicy(policy),
		cache.WithFetchTimeout(c.Server.RequestTimeout()))
	if err != nil {
		closeLayers()
		return nil, err
	}
	dvid.Infof("Serving %s stack: %s\n", mode, stack)
	return stack, nil
}
