package metadata

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

var documentsBucket = []byte("documents")

// Cache persists fetched documents keyed by URI. Pinned IPFS content never
// changes, so entries are never invalidated.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (or creates) the bbolt file at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open metadata cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached document for uri, or nil when absent.
func (c *Cache) Get(uri string) (*Metadata, error) {
	var m *Metadata
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(documentsBucket).Get([]byte(uri))
		if data == nil {
			return nil
		}
		m = &Metadata{}
		return cbor.Unmarshal(data, m)
	})
	if err != nil {
		return nil, fmt.Errorf("read cached %s: %w", uri, err)
	}
	return m, nil
}

// Put stores m under uri.
func (c *Cache) Put(uri string, m *Metadata) error {
	data, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", uri, err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).Put([]byte(uri), data)
	})
}

// Close releases the database file.
func (c *Cache) Close() error {
	return c.db.Close()
}
