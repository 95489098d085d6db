/*
Package bucket implements a block-file engine on a gocloud.dev blob bucket.
Objects use the same names and encodings as the filestore engine, so a
directory written by one can be served by the other through a file:// URL.
*/
package bucket

import (
	"context"
	"fmt"
	"io"
	"path"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// Drivers for the bucket URL schemes.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

func init() {
	storage.RegisterEngineType(Engine{
		storage.NewEngineInfo("bucket", "Block files in a cloud bucket", "0.1.0"),
	})
}

type Engine struct {
	storage.EngineInfo
}

// NewEngine opens the bucket at the required "url" setting, e.g.,
// "gs://my-bucket" or "file:///data/blocks", with optional "prefix",
// "blocksize", "format" and "compression" settings.
func (e Engine) NewEngine(config dvid.StoreConfig) (storage.Engine, error) {
	url, found, err := config.GetString("url")
	if err != nil {
		return nil, err
	}
	if !found || url == "" {
		return nil, fmt.Errorf("%q must be specified for bucket configuration", "url")
	}
	prefix, _, err := config.GetString("prefix")
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
	b, err := blob.OpenBucket(context.Background(), url)
	if err != nil {
		return nil, fmt.Errorf("unable to open bucket %q: %v", url, err)
	}
	if prefix != "" {
		b = blob.PrefixedBucket(b, prefix)
	}
	return New(b, url, blockSize, codec)
}

var _ storage.BlockLister = (*Store)(nil)

// Store is a block engine over a blob bucket.
type Store struct {
	*storage.BlockEngine
	objects *blockObjects
}

// New returns an engine that owns the opened bucket and closes it on Close.
func New(b *blob.Bucket, name string, blockSize dvid.Point3d, codec storage.BlockCodec) (*Store, error) {
	objects := &blockObjects{bucket: b, name: name, blockSize: blockSize, codec: codec}
	engine, err := storage.NewBlockEngine(objects, blockSize)
	if err != nil {
		return nil, err
	}
	return &Store{BlockEngine: engine, objects: objects}, nil
}

// ListBlocks returns the keys of every block object stored for a channel.
func (s *Store) ListBlocks(ctx context.Context, collection, experiment, channel string) ([]dvid.BlockKey, error) {
	if err := storage.CheckBlockDir(collection, experiment, channel); err != nil {
		return nil, err
	}
	prefix := storage.BlockDir(collection, experiment, channel) + "/"
	it := s.objects.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var keys []dvid.BlockKey
	for {
		obj, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, dvid.IOFailure(err, "listing %s in %s", prefix, s.objects)
		}
		if obj.IsDir {
			continue
		}
		k, err := storage.BlockKeyFromFilename(collection, experiment, channel, path.Base(obj.Key), s.objects.blockSize)
		if err != nil {
			dvid.Debugf("Skipping %s: %v\n", obj.Key, err)
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// ---- BlockStore interface ------

type blockObjects struct {
	bucket    *blob.Bucket
	name      string
	blockSize dvid.Point3d
	codec     storage.BlockCodec
}

func (bo *blockObjects) String() string {
	return fmt.Sprintf("bucket %s (%s)", bo.name, bo.codec)
}

func (bo *blockObjects) Close() error {
	return bo.bucket.Close()
}

func (bo *blockObjects) objectKey(k dvid.BlockKey) string {
	return storage.BlockPath(k, bo.blockSize, bo.codec.Format)
}

func (bo *blockObjects) ReadBlock(ctx context.Context, k dvid.BlockKey) (*storage.Block, error) {
	key := bo.objectKey(k)
	data, err := bo.bucket.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, dvid.NotFoundf("object %s in %s", key, bo)
	}
	if err != nil {
		return nil, dvid.IOFailure(err, "reading object %s in %s", key, bo)
	}
	block, err := bo.codec.Decode(data)
	if err != nil {
		return nil, dvid.IOFailure(err, "decoding object %s in %s", key, bo)
	}
	return block, nil
}

// WriteBlock uploads the whole object.  Bucket writes become visible only on
// successful completion, so readers never see a partial block.
func (bo *blockObjects) WriteBlock(ctx context.Context, k dvid.BlockKey, b *storage.Block) error {
	data, err := bo.codec.Encode(b)
	if err != nil {
		return dvid.IOFailure(err, "encoding block %s", k)
	}
	key := bo.objectKey(k)
	opts := &blob.WriterOptions{ContentType: "application/octet-stream"}
	if err := bo.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return dvid.IOFailure(err, "writing object %s in %s", key, bo)
	}
	return nil
}

func (bo *blockObjects) HasBlock(ctx context.Context, k dvid.BlockKey, local dvid.Box) (bool, error) {
	if bo.codec.Format == storage.NpyFormat {
		key := bo.objectKey(k)
		exists, err := bo.bucket.Exists(ctx, key)
		if err != nil {
			return false, dvid.IOFailure(err, "checking object %s in %s", key, bo)
		}
		return exists, nil
	}
	block, err := bo.ReadBlock(ctx, k)
	if dvid.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return block.Covers(local), nil
}
