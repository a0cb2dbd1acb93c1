package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketWindowCache = []byte("window_cache")

// Entry is the cached render of one window.
type Entry struct {
	WindowID  int       `json:"window_id"`
	Signature string    `json:"signature"`
	Markup    string    `json:"markup"`
	TabCount  int       `json:"tab_count"`
	SavedAt   time.Time `json:"saved_at"`
}

// Store persists cached window renders.
type Store interface {
	Load(ctx context.Context, windowID int) (Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, windowID int) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// BoltStore keeps entries in a bbolt database, one key per window.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if needed) the cache database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("cache store: db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("cache store: mkdir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache store: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketWindowCache)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache store: init schema: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func windowKey(windowID int) []byte {
	return []byte(strconv.Itoa(windowID))
}

func (s *BoltStore) Load(ctx context.Context, windowID int) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	var entry Entry
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketWindowCache).Get(windowKey(windowID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache store: load window %d: %w", windowID, err)
	}
	return entry, found, nil
}

func (s *BoltStore) Save(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.SavedAt.IsZero() {
		entry.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache store: marshal entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWindowCache).Put(windowKey(entry.WindowID), data)
	})
}

func (s *BoltStore) Delete(ctx context.Context, windowID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWindowCache).Delete(windowKey(windowID))
	})
}

// List returns all entries ordered by window id.
func (s *BoltStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWindowCache).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("entry %s: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("cache store: list: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].WindowID < entries[j].WindowID
	})
	return entries, nil
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
