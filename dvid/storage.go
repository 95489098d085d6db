package dvid

import "fmt"

// DefaultBlockSize returns the block size used by block engines that aren't
// configured with an explicit "blocksize" setting.
func DefaultBlockSize() Point3d {
	return Point3d{256, 256, 16}
}

// StoreConfig is a store-specific configuration where each store implementation
// defines the types of parameters it accepts.
type StoreConfig struct {
	Config

	// Engine is a simple name describing the engine, e.g., "filestore"
	Engine string
}

// BlockSize returns the configured "blocksize" setting or the default block size.
func (c StoreConfig) BlockSize() (Point3d, error) {
	size, found, err := c.GetPoint3d("blocksize")
	if err != nil {
		return Point3d{}, err
	}
	if !found {
		return DefaultBlockSize(), nil
	}
	if err := ValidBlockSize(size); err != nil {
		return Point3d{}, err
	}
	return size, nil
}

// Path returns the required "path" setting.
func (c StoreConfig) Path() (string, error) {
	path, found, err := c.GetString("path")
	if err != nil {
		return "", err
	}
	if !found || path == "" {
		return "", fmt.Errorf("%q must be specified for %s configuration", "path", c.Engine)
	}
	return path, nil
}

func (c StoreConfig) String() string {
	return fmt.Sprintf("%s store %v", c.Engine, c.Config)
}
