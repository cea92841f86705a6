package backingstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"syscall"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("lsmkv")

// BoltStore implements Store on top of a bbolt file, the host-native
// persistent backing store.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a bbolt database under
// dataDir and prepares the single bucket every key lives in.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "lsmkv.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("backingstore: open bbolt: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("backingstore: create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close releases the underlying file handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(key string) (string, error) {
	var value string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		value = string(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *BoltStore) Put(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		if isQuotaErr(err) {
			return ErrStorageFull
		}
		return fmt.Errorf("backingstore: put: %w", err)
	}
	return nil
}

func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) KeyAt(index int) (string, error) {
	var found string
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		i := 0
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if i == index {
				found = string(k)
				ok = true
				return nil
			}
			i++
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	return found, nil
}

func (s *BoltStore) Size() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

// isQuotaErr reports whether bbolt's error indicates the write was
// rejected for lack of space rather than some other failure.
func isQuotaErr(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
