package storage

import (
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// itemsBucket holds every item of a BoltStore.
var itemsBucket = []byte("items")

// BoltStore persists items to a bbolt file.
// bbolt takes an exclusive file lock, so one process owns the file at a time.
type BoltStore struct {
	db     *bolt.DB
	mu     sync.RWMutex
	closed bool
}

// NewBoltStore opens (or creates) the bbolt file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(itemsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// IsInitialized implements Store.
func (b *BoltStore) IsInitialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// GetItem implements Store.
func (b *BoltStore) GetItem(key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return "", ErrStoreClosed
	}

	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		// The slice is only valid inside the transaction.
		if v := tx.Bucket(itemsBucket).Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("get item: %w", err)
	}
	if !found {
		return "", ErrNotFound
	}
	return value, nil
}

// SetItem implements Store.
func (b *BoltStore) SetItem(key, value string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrStoreClosed
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(itemsBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set item: %w", err)
	}
	return nil
}

// RemoveItem implements Store.
func (b *BoltStore) RemoveItem(key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrStoreClosed
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(itemsBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	return nil
}

// Close implements Store.
func (b *BoltStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.db.Close()
}
