package cache

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var bucketPages = []byte("pages")

// BoltStore persists cached responses across process runs using bbolt.
type BoltStore struct {
	db     *bolt.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewBoltStore opens (or creates) the cache database at path.
func NewBoltStore(path string, logger *zap.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists(bucketPages)
		return berr
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache bucket: %w", err)
	}
	return &BoltStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Get returns a live entry for key, treating expired or unreadable entries
// as misses.
func (s *BoltStore) Get(key string) (Entry, bool) {
	var entry Entry
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPages).Get([]byte(key))
		if raw == nil {
			return nil
		}
		if jerr := json.Unmarshal(raw, &entry); jerr != nil {
			s.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(jerr))
			return nil
		}
		found = true
		return nil
	})
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return Entry{}, false
	}
	if !found || entry.Expired(s.now()) {
		return Entry{}, false
	}
	return entry, true
}

// Put stores entry under key, overwriting any previous value.
func (s *BoltStore) Put(key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPages).Put([]byte(key), raw)
	}); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close cache db: %w", err)
	}
	return nil
}
