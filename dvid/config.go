package dvid

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Config is a map of keyword to arbitrary data to specify configurations via keyword.
// Keys are case-insensitive.
type Config map[string]interface{}

// NewConfig returns a Config with lowercased keys from the given settings.
func NewConfig(settings map[string]interface{}) Config {
	c := make(Config, len(settings))
	for k, v := range settings {
		c[strings.ToLower(k)] = v
	}
	return c
}

// Set sets a keyword to a value.
func (c Config) Set(key string, value interface{}) {
	c[strings.ToLower(key)] = value
}

func (c Config) get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	v, found := c[strings.ToLower(key)]
	return v, found
}

// GetString returns a string value for the given key.
func (c Config) GetString(key string) (s string, found bool, err error) {
	v, found := c.get(key)
	if !found {
		return
	}
	var ok bool
	if s, ok = v.(string); !ok {
		err = fmt.Errorf("setting %q must be a string (%v)", key, v)
	}
	return
}

// GetInt returns an int value for the given key.  TOML integers decode as int64.
func (c Config) GetInt(key string) (i int, found bool, err error) {
	v, found := c.get(key)
	if !found {
		return
	}
	switch n := v.(type) {
	case int:
		i = n
	case int64:
		i = int(n)
	case int32:
		i = int(n)
	case float64:
		i = int(n)
	default:
		err = fmt.Errorf("setting %q must be an integer (%v)", key, v)
	}
	return
}

// GetBool returns a bool value for the given key.
func (c Config) GetBool(key string) (b bool, found bool, err error) {
	v, found := c.get(key)
	if !found {
		return
	}
	var ok bool
	if b, ok = v.(bool); !ok {
		err = fmt.Errorf("setting %q must be a bool (%v)", key, v)
	}
	return
}

// GetPoint3d returns a 3d point given either as a 3-element array or a
// comma-separated string, e.g., "256,256,16".
func (c Config) GetPoint3d(key string) (p Point3d, found bool, err error) {
	v, found := c.get(key)
	if !found {
		return
	}
	switch t := v.(type) {
	case Point3d:
		p = t
	case string:
		p, err = StringToPoint3d(t, ",")
	case []interface{}:
		if len(t) != 3 {
			err = fmt.Errorf("setting %q must have 3 elements (%v)", key, v)
			return
		}
		for i, elem := range t {
			sub := Config{"elem": elem}
			var n int
			if n, _, err = sub.GetInt("elem"); err != nil {
				err = fmt.Errorf("setting %q has non-integer element (%v)", key, v)
				return
			}
			p[i] = int32(n)
		}
	case []int64:
		if len(t) != 3 {
			err = fmt.Errorf("setting %q must have 3 elements (%v)", key, v)
			return
		}
		p = Point3d{int32(t[0]), int32(t[1]), int32(t[2])}
	default:
		err = fmt.Errorf("setting %q must be a 3d point (%v)", key, v)
	}
	return
}

// GetBytes returns a byte count given either as an integer or a human-readable
// string like "512 MB" or "2GiB".
func (c Config) GetBytes(key string) (n uint64, found bool, err error) {
	v, found := c.get(key)
	if !found {
		return
	}
	if s, ok := v.(string); ok {
		n, err = humanize.ParseBytes(s)
		return
	}
	var i int
	if i, _, err = c.GetInt(key); err == nil {
		if i < 0 {
			err = fmt.Errorf("setting %q must be non-negative (%v)", key, v)
			return
		}
		n = uint64(i)
	}
	return
}

// ConvertToAbsolute converts a possibly relative path into an absolute path
// relative to the given directory.
func ConvertToAbsolute(path, relativeDir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(filepath.Join(relativeDir, path))
}
