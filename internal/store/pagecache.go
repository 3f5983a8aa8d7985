package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Mohsinsiddi/alchscan/internal/logging"
	"github.com/Mohsinsiddi/alchscan/internal/providers"
	bolt "go.etcd.io/bbolt"
)

var bucketPages = []byte("pages")

// PageCache stores fetched pages in BoltDB keyed by query and cursor.
// It wraps a PageFetcher so repeated runs can skip pages already seen.
type PageCache struct {
	db      *bolt.DB
	network string
	next    providers.PageFetcher
	logger  *slog.Logger
}

// OpenPageCache opens (or creates) the cache database at path.
// next may be nil when the cache is only opened for maintenance.
func OpenPageCache(path, network string, next providers.PageFetcher, logger *slog.Logger) (*PageCache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open page cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPages)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if logger == nil {
		logger = logging.Discard()
	}
	return &PageCache{db: db, network: network, next: next, logger: logger}, nil
}

// Close releases the database.
func (c *PageCache) Close() error {
	return c.db.Close()
}

func (c *PageCache) Name() string {
	if c.next == nil {
		return "cache"
	}
	return "cache+" + c.next.Name()
}

func (c *PageCache) key(q providers.Query, cursor string) []byte {
	return []byte(c.network + "|" + q.Key() + "|" + cursor)
}

// FetchPage serves the page from the cache when present; otherwise it asks
// the wrapped fetcher and stores well-formed results.
func (c *PageCache) FetchPage(ctx context.Context, q providers.Query, cursor string) (*providers.Page, error) {
	key := c.key(q, cursor)

	var cached []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketPages).Get(key); v != nil {
			cached = append([]byte(nil), v...)
		}
		return nil
	})
	if cached != nil {
		var page providers.Page
		if err := json.Unmarshal(cached, &page); err == nil {
			c.logger.Debug("page cache hit", slog.String("stream", q.Key()), slog.Bool("cursor", cursor != ""))
			return &page, nil
		}
		c.logger.Warn("discarding unreadable cache entry", slog.String("stream", q.Key()))
	}

	if c.next == nil {
		return nil, errors.New("page cache: no upstream fetcher")
	}
	page, err := c.next.FetchPage(ctx, q, cursor)
	if err != nil {
		return page, err
	}

	data, err := json.Marshal(page)
	if err != nil {
		return page, nil
	}
	if err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPages).Put(key, data)
	}); err != nil {
		c.logger.Warn("page cache write failed", slog.Any("err", err))
	}
	return page, nil
}

// Len returns the number of cached pages.
func (c *PageCache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketPages).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear removes every cached page.
func (c *PageCache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketPages); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketPages)
		return err
	})
}
