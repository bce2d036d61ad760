// Package durable is the durable-storage bridge: it makes the embedded
// engine's state survive a process restart.
//
// The engine itself only ever sees a working file; durability lives here, in
// a single bbolt file with two buckets:
//
//	image  — key "db" → the full SQLite byte image (overwritten on every save)
//	prefs  — small key-value slot for the storage configuration
//
// bbolt's Update() is atomic and fsynced before it returns, so once
// SaveImage resolves the image is guaranteed retrievable by a subsequent
// LoadImage.
package durable

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketImage = "image" // key: "db" -> SQLite byte image
	bucketPrefs = "prefs" // key: preference name -> raw value
)

const imageKey = "db"

// Store is the sole writer of the on-disk byte image. It is safe for
// concurrent use, but callers keep single-writer discipline for the image:
// only the persistence middleware and the migration service save it.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the durable store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("durable: opening store: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketImage)); err != nil {
			return err
		}

		if _, err := tx.CreateBucketIfNotExists([]byte(bucketPrefs)); err != nil {
			return err
		}

		return nil
	}); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("durable: creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadImage returns the stored byte image, or (nil, nil) if none has ever
// been saved. Idempotent.
func (s *Store) LoadImage() ([]byte, error) {
	var out []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketImage)).Get([]byte(imageKey))
		if v == nil {
			return nil
		}

		// bbolt's value is only valid inside the transaction — copy it out.
		out = make([]byte, len(v))
		copy(out, v)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("durable: loading image: %w", err)
	}

	return out, nil
}

// SaveImage fully overwrites the stored byte image. This is the unit of
// durability: once it returns nil the image is retrievable by LoadImage.
func (s *Store) SaveImage(image []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketImage)).Put([]byte(imageKey), image)
	})
	if err != nil {
		return fmt.Errorf("durable: saving image: %w", err)
	}

	return nil
}

// ImageSize reports the size in bytes of the stored image, 0 if absent.
func (s *Store) ImageSize() (int64, error) {
	var size int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketImage)).Get([]byte(imageKey))
		size = int64(len(v))

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("durable: sizing image: %w", err)
	}

	return size, nil
}

// GetPref returns the raw value stored under key, or (nil, nil) if unset.
func (s *Store) GetPref(key string) ([]byte, error) {
	var out []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketPrefs)).Get([]byte(key))
		if v == nil {
			return nil
		}

		out = make([]byte, len(v))
		copy(out, v)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("durable: reading pref %s: %w", key, err)
	}

	return out, nil
}

// PutPref stores val under key, overwriting any previous value.
func (s *Store) PutPref(key string, val []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketPrefs)).Put([]byte(key), val)
	})
	if err != nil {
		return fmt.Errorf("durable: writing pref %s: %w", key, err)
	}

	return nil
}
