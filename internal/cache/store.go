/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package cache keeps catalog detail lookups across restarts. Values are
// stored as JSON in a bbolt bucket and promoted into memory on first read.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketDetails = []byte("details")

// Store is safe for concurrent use.
type Store struct {
	db *bolt.DB

	mu     sync.RWMutex
	memory map[string][]byte
}

// Open returns a store backed by the bbolt file at path. An empty path gives
// a memory-only store.
func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{memory: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDetails)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, memory: make(map[string][]byte)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Persistent reports whether values survive a restart.
func (s *Store) Persistent() bool {
	return s.db != nil
}

// Get decodes the value stored under key into dest.
func (s *Store) Get(key string, dest any) bool {
	s.mu.RLock()
	if data, ok := s.memory[key]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDetails)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	s.mu.Lock()
	s.memory[key] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

// Set stores value under key as JSON.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.memory[key] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDetails).Put([]byte(key), data)
	})
}

// Len returns the number of entries, counting the persisted bucket when there
// is one.
func (s *Store) Len() int {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.memory)
	}

	n := 0
	s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketDetails).Stats().KeyN
		return nil
	})

	return n
}
