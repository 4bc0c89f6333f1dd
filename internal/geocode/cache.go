// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package geocode

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/lexsegment/internal/logging"
)

// keyPrefix namespaces coordinate entries.
const keyPrefix = "regeo:"

// Cache stores resolved addresses in BadgerDB keyed by rounded coordinate.
type Cache struct {
	db *badger.DB
}

// OpenCache opens or creates the cache at path.
func OpenCache(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	logging.Debug().Str("path", path).Msg("Geocode cache opened")
	return &Cache{db: db}, nil
}

// OpenInMemoryCache opens a cache that is discarded on Close.
func OpenInMemoryCache() (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return &Cache{db: db}, nil
}

func cacheKey(c Coordinate) []byte {
	return []byte(keyPrefix + c.String())
}

// Get returns the cached address of c.
func (c *Cache) Get(co Coordinate) (Address, bool, error) {
	var (
		addr  Address
		found bool
	)
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(co))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get cache entry: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &addr)
		})
	})
	if err != nil {
		return Address{}, false, err
	}
	return addr, found, nil
}

// Put stores the addresses of a resolved batch in one transaction.
func (c *Cache) Put(coords []Coordinate, addrs []Address) error {
	if len(coords) != len(addrs) {
		return fmt.Errorf("%w: %d coordinates, %d addresses", ErrBatchMismatch, len(coords), len(addrs))
	}
	return c.db.Update(func(txn *badger.Txn) error {
		for i, co := range coords {
			data, err := json.Marshal(addrs[i])
			if err != nil {
				return fmt.Errorf("marshal address: %w", err)
			}
			if err := txn.SetEntry(badger.NewEntry(cacheKey(co), data)); err != nil {
				return fmt.Errorf("write to BadgerDB: %w", err)
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
