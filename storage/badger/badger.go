/*
Package badger implements a structured block store on BadgerDB.  A single
database holds every channel and resolution level.  Each block record carries
a presence mask of the voxels ever written, so Has reports true voxel coverage
rather than mere block existence.
*/
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

const (
	// DefaultVersionsToKeep is the number of versions to keep per key.
	DefaultVersionsToKeep = 1

	// DefaultSyncWrites is true if all writes are synced to disk, thereby making db resilient
	// at cost of speed.
	DefaultSyncWrites = false

	syncInterval = 30 * time.Second
)

func init() {
	storage.RegisterEngineType(Engine{
		storage.NewEngineInfo("badger", "BadgerDB blocks with presence masks", "0.2.0"),
	})
}

// --- Engine Implementation ------

type Engine struct {
	storage.EngineInfo
}

// NewEngine returns a badger-backed engine. The passed Config must contain a "path"
// setting unless "inmemory" is true, and may set "blocksize" and "compression".
func (e Engine) NewEngine(config dvid.StoreConfig) (storage.Engine, error) {
	var path string
	inMemory, _, err := config.GetBool("inmemory")
	if err != nil {
		return nil, err
	}
	if !inMemory {
		if path, err = config.Path(); err != nil {
			return nil, err
		}
	}
	blockSize, err := config.BlockSize()
	if err != nil {
		return nil, err
	}
	name, found, err := config.GetString("compression")
	if err != nil {
		return nil, err
	}
	if !found {
		name = "snappy"
	}
	compress, err := dvid.ParseCompression(name)
	if err != nil {
		return nil, err
	}
	opts, err := getOptions(path, config.Config)
	if err != nil {
		return nil, err
	}
	return Open(opts, blockSize, compress)
}

var _ storage.BlockLister = (*Store)(nil)

// Store is a block engine over a BadgerDB.
type Store struct {
	*storage.BlockEngine
	db *BadgerDB
}

// Open returns a badger engine, creating the database directory if needed.
func Open(opts badger.Options, blockSize dvid.Point3d, compress dvid.Compression) (*Store, error) {
	db, err := openDB(opts, compress)
	if err != nil {
		return nil, err
	}
	engine, err := storage.NewBlockEngine(db, blockSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{BlockEngine: engine, db: db}, nil
}

// ListBlocks returns the keys of all blocks stored for a channel in key order.
func (s *Store) ListBlocks(ctx context.Context, collection, experiment, channel string) ([]dvid.BlockKey, error) {
	return s.db.listBlocks(collection, experiment, channel)
}

// BadgerDB is the BlockStore for one badger database.
type BadgerDB struct {
	directory string
	compress  dvid.Compression
	bdp       *badger.DB

	// stopSyncCh is used to signal the sync goroutine to stop.
	stopSyncCh chan struct{}
	syncDone   chan struct{}
}

func openDB(opts badger.Options, compress dvid.Compression) (*BadgerDB, error) {
	if !opts.InMemory {
		if _, err := os.Stat(opts.Dir); os.IsNotExist(err) {
			dvid.Infof("Database not already at path (%s). Creating directory...\n", opts.Dir)
			if err := os.MkdirAll(opts.Dir, 0744); err != nil {
				return nil, fmt.Errorf("can't make directory at %s: %v", opts.Dir, err)
			}
		} else {
			dvid.Infof("Found directory at %s (err = %v)\n", opts.Dir, err)
		}
	}

	tlog := dvid.NewTimeLog()
	bdp, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	db := &BadgerDB{
		directory:  opts.Dir,
		compress:   compress,
		bdp:        bdp,
		stopSyncCh: make(chan struct{}),
		syncDone:   make(chan struct{}),
	}
	tlog.Infof("Opened %s\n", db)
	go db.syncPeriodically()
	return db, nil
}

// Periodically sync to prevent too many writes from being buffered
// if server crashes.
func (db *BadgerDB) syncPeriodically() {
	defer close(db.syncDone)
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopSyncCh:
			dvid.Debugf("Stopping sync goroutine for %s\n", db)
			return
		case <-ticker.C:
			if err := db.bdp.Sync(); err != nil {
				dvid.Errorf("Unable to sync %s: %v\n", db, err)
			}
		}
	}
}

func (db *BadgerDB) String() string {
	if db.directory == "" {
		return "in-memory badger"
	}
	return fmt.Sprintf("badger @ %s", db.directory)
}

// Close stops the sync goroutine and closes the database.
func (db *BadgerDB) Close() error {
	if db == nil || db.bdp == nil {
		return nil
	}
	close(db.stopSyncCh)
	<-db.syncDone
	err := db.bdp.Close()
	db.bdp = nil
	dvid.Infof("Closed %s\n", db)
	return err
}

// Keys are the data name, a zero byte, the big-endian resolution, then the
// block origin, so a channel's blocks are contiguous and ordered by origin.
func dataPrefix(collection, experiment, channel string) []byte {
	prefix := make([]byte, 0, len(collection)+len(experiment)+len(channel)+3)
	prefix = append(prefix, collection...)
	prefix = append(prefix, '/')
	prefix = append(prefix, experiment...)
	prefix = append(prefix, '/')
	prefix = append(prefix, channel...)
	return append(prefix, 0)
}

func encodeKey(k dvid.BlockKey) []byte {
	key := dataPrefix(k.Collection, k.Experiment, k.Channel)
	key = binary.BigEndian.AppendUint32(key, uint32(k.Resolution))
	return append(key, k.Origin.Bytes()...)
}

func decodeKey(collection, experiment, channel string, key []byte) (dvid.BlockKey, error) {
	prefix := dataPrefix(collection, experiment, channel)
	if !bytes.HasPrefix(key, prefix) || len(key) != len(prefix)+4+dvid.Point3dSize {
		return dvid.BlockKey{}, fmt.Errorf("bad block key %x", key)
	}
	key = key[len(prefix):]
	origin, err := dvid.PointFromBytes(key[4:])
	if err != nil {
		return dvid.BlockKey{}, err
	}
	return dvid.BlockKey{
		Collection: collection,
		Experiment: experiment,
		Channel:    channel,
		Resolution: int(binary.BigEndian.Uint32(key[:4])),
		Origin:     origin,
	}, nil
}

// ---- BlockStore interface ------

func (db *BadgerDB) ReadBlock(ctx context.Context, k dvid.BlockKey) (*storage.Block, error) {
	var value []byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(k))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, dvid.IOFailure(err, "reading block %s from %s", k, db)
	}
	if value == nil {
		return nil, dvid.NotFoundf("block %s in %s", k, db)
	}
	block, err := storage.DecodeBlock(value)
	if err != nil {
		return nil, dvid.IOFailure(err, "decoding block %s from %s", k, db)
	}
	return block, nil
}

func (db *BadgerDB) WriteBlock(ctx context.Context, k dvid.BlockKey, b *storage.Block) error {
	if b.Mask == nil {
		b = &storage.Block{Data: b.Data, Mask: dvid.NewFullMask(b.Data.Size())}
	}
	value, err := storage.EncodeBlock(b, db.compress)
	if err != nil {
		return dvid.IOFailure(err, "encoding block %s", k)
	}
	err = db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(k), value)
	})
	if err != nil {
		return dvid.IOFailure(err, "writing block %s to %s", k, db)
	}
	return nil
}

func (db *BadgerDB) HasBlock(ctx context.Context, k dvid.BlockKey, local dvid.Box) (bool, error) {
	block, err := db.ReadBlock(ctx, k)
	if dvid.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return block.Covers(local), nil
}

func (db *BadgerDB) listBlocks(collection, experiment, channel string) ([]dvid.BlockKey, error) {
	prefix := dataPrefix(collection, experiment, channel)
	var keys []dvid.BlockKey
	err := db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k, err := decodeKey(collection, experiment, channel, it.Item().Key())
			if err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return nil, dvid.IOFailure(err, "listing blocks of %s/%s/%s in %s", collection, experiment, channel, db)
	}
	return keys, nil
}
