package storage

import (
	"sync"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

// KeyLocker provides mutual exclusion per block key so that concurrent
// read-modify-write cycles on the same block are serialized.  Entries are
// reference counted and removed once no goroutine holds or waits on them.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[dvid.BlockKey]*keyLock
}

type keyLock struct {
	sync.Mutex
	ref int
}

// Lock blocks until the caller holds the lock for the key.
func (kl *KeyLocker) Lock(k dvid.BlockKey) {
	kl.mu.Lock()
	if kl.locks == nil {
		kl.locks = make(map[dvid.BlockKey]*keyLock)
	}
	l, found := kl.locks[k]
	if !found {
		l = new(keyLock)
		kl.locks[k] = l
	}
	l.ref++
	kl.mu.Unlock()

	l.Lock()
}

// Unlock releases the lock for the key.
func (kl *KeyLocker) Unlock(k dvid.BlockKey) {
	kl.mu.Lock()
	l, found := kl.locks[k]
	if !found {
		kl.mu.Unlock()
		panic("KeyLocker.Unlock of unlocked block " + k.String())
	}
	l.ref--
	if l.ref == 0 {
		delete(kl.locks, k)
	}
	kl.mu.Unlock()

	l.Unlock()
}

// Len returns the number of keys currently held or waited on.
func (kl *KeyLocker) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
