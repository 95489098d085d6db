/*
Package filestore implements a block-file engine that stores each block of a
channel as one file under root/collection/experiment/channel/.  File names
encode the resolution and block extent so the directory can be read without
any index.
*/
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/twinj/uuid"

	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

func init() {
	storage.RegisterEngineType(Engine{
		storage.NewEngineInfo("filestore", "Block files on local disk", "0.2.0"),
	})
}

// --- Engine Implementation ------

type Engine struct {
	storage.EngineInfo
}

// NewEngine returns a block-file store. The passed Config must contain a "path"
// setting and may set "blocksize", "format" (npy or dvid) and "compression".
func (e Engine) NewEngine(config dvid.StoreConfig) (storage.Engine, error) {
	path, err := config.Path()
	if err != nil {
		return nil, err
	}
	blockSize, err := config.BlockSize()
	if err != nil {
		return nil, err
	}
	codec, err := storage.NewBlockCodec(config)
	if err != nil {
		return nil, err
	}
	return Open(path, blockSize, codec)
}

var _ storage.BlockLister = (*Store)(nil)

// Store is a block-file engine rooted at a directory.
type Store struct {
	*storage.BlockEngine
	files *blockFiles
}

// Open returns a block-file engine, insuring a directory at the path.
func Open(path string, blockSize dvid.Point3d, codec storage.BlockCodec) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		dvid.Infof("File store not already at path (%s). Creating ...\n", path)
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, err
		}
	} else {
		dvid.Infof("Found file store at %s (err = %v)\n", path, err)
	}
	files := &blockFiles{path: path, blockSize: blockSize, codec: codec}
	engine, err := storage.NewBlockEngine(files, blockSize)
	if err != nil {
		return nil, err
	}
	return &Store{BlockEngine: engine, files: files}, nil
}

// Path returns the root directory of the store.
func (s *Store) Path() string {
	return s.files.path
}

// ListBlocks returns the keys of every block file stored for a channel, in
// directory order.  Files whose names aren't block names are skipped.
func (s *Store) ListBlocks(ctx context.Context, collection, experiment, channel string) ([]dvid.BlockKey, error) {
	if err := storage.CheckBlockDir(collection, experiment, channel); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.files.path, filepath.FromSlash(storage.BlockDir(collection, experiment, channel)))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, dvid.IOFailure(err, "listing blocks in %s", dir)
	}
	var keys []dvid.BlockKey
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		k, err := storage.BlockKeyFromFilename(collection, experiment, channel, entry.Name(), s.files.blockSize)
		if err != nil {
			dvid.Debugf("Skipping %s: %v\n", entry.Name(), err)
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// ---- BlockStore interface ------

type blockFiles struct {
	path      string
	blockSize dvid.Point3d
	codec     storage.BlockCodec
}

func (bf *blockFiles) String() string {
	return fmt.Sprintf("file store @ %s (%s)", bf.path, bf.codec)
}

func (bf *blockFiles) blockPath(k dvid.BlockKey) string {
	return filepath.Join(bf.path, filepath.FromSlash(storage.BlockPath(k, bf.blockSize, bf.codec.Format)))
}

func (bf *blockFiles) ReadBlock(ctx context.Context, k dvid.BlockKey) (*storage.Block, error) {
	fpath := bf.blockPath(k)
	data, err := os.ReadFile(fpath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, dvid.NotFoundf("block file %s", fpath)
	}
	if err != nil {
		return nil, dvid.IOFailure(err, "reading block file %s", fpath)
	}
	block, err := bf.codec.Decode(data)
	if err != nil {
		return nil, dvid.IOFailure(err, "decoding block file %s", fpath)
	}
	return block, nil
}

// WriteBlock writes the block to a temporary file and renames it into place so
// readers never see a partially written block.
func (bf *blockFiles) WriteBlock(ctx context.Context, k dvid.BlockKey, b *storage.Block) error {
	data, err := bf.codec.Encode(b)
	if err != nil {
		return dvid.IOFailure(err, "encoding block %s", k)
	}
	fpath := bf.blockPath(k)
	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return dvid.IOFailure(err, "creating block directory for %s", k)
	}
	tmpPath := fmt.Sprintf("%s.tmp-%x", fpath, uuid.NewV4().Bytes())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		os.Remove(tmpPath)
		return dvid.IOFailure(err, "writing block file %s", tmpPath)
	}
	if err := os.Rename(tmpPath, fpath); err != nil {
		os.Remove(tmpPath)
		return dvid.IOFailure(err, "renaming block file %s", fpath)
	}
	return nil
}

// HasBlock checks file existence for npy blocks and reads the presence mask
// for dvid blocks.
func (bf *blockFiles) HasBlock(ctx context.Context, k dvid.BlockKey, local dvid.Box) (bool, error) {
	if bf.codec.Format == storage.NpyFormat {
		fpath := bf.blockPath(k)
		_, err := os.Stat(fpath)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, dvid.IOFailure(err, "checking block file %s", fpath)
		}
		return true, nil
	}
	block, err := bf.ReadBlock(ctx, k)
	if dvid.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return block.Covers(local), nil
}
