package store

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

func bucketName(id RegionID) []byte {
	r, ok := registry[id]
	if !ok {
		return []byte(fmt.Sprintf("region-%d", id))
	}
	return []byte(fmt.Sprintf("%d.%s", r.id, r.name))
}

// Store is a BoltDB-backed Stable Store: one bucket per registered region,
// single-writer per region by construction (the owning unit opens its own
// Store).
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the store file at dataDir/canic.db and
// ensures every registered region has a backing bucket.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "canic.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for id := range registry {
			if _, err := tx.CreateBucketIfNotExists(bucketName(id)); err != nil {
				return fmt.Errorf("store: create bucket for region %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes value under key in the given region.
func (s *Store) Put(region RegionID, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(region))
		if b == nil {
			return fmt.Errorf("store: unregistered region %d", region)
		}
		return b.Put(key, value)
	})
}

// Get reads the value under key in the given region. It returns (nil, nil)
// when the key is absent.
func (s *Store) Get(region RegionID, key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(region))
		if b == nil {
			return fmt.Errorf("store: unregistered region %d", region)
		}
		if v := b.Get(key); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Delete removes key from the given region.
func (s *Store) Delete(region RegionID, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(region))
		if b == nil {
			return fmt.Errorf("store: unregistered region %d", region)
		}
		return b.Delete(key)
	})
}

// ForEach iterates every key/value pair in the given region in key order.
func (s *Store) ForEach(region RegionID, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(region))
		if b == nil {
			return fmt.Errorf("store: unregistered region %d", region)
		}
		return b.ForEach(fn)
	})
}

// Export returns a byte-for-byte snapshot of every key/value pair in a
// region, in key order, for the export-then-import round-trip property.
func (s *Store) Export(region RegionID) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := s.ForEach(region, func(k, v []byte) error {
		out[string(k)] = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Import replaces the contents of a region with the given snapshot.
// Export followed by Import on another Store yields a byte-equivalent
// region.
func (s *Store) Import(region RegionID, snapshot map[string][]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		name := bucketName(region)
		if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		for k, v := range snapshot {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}
