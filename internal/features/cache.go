package features

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS activations (
	key         TEXT PRIMARY KEY,
	model       TEXT NOT NULL,
	activations TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
`

// Cache stores example activations so repeated generation and training runs
// do not re-query the service. Analyzed samples never pass through it.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the sqlite cache at path.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// Extraction fans out; sqlite wants a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns cached activations, reporting whether the key was present.
func (c *Cache) Get(ctx context.Context, key string) ([]Activation, bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, "SELECT activations FROM activations WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	var acts []Activation
	if err := json.Unmarshal([]byte(raw), &acts); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return acts, true, nil
}

// Put stores activations under key, replacing any earlier entry.
func (c *Cache) Put(ctx context.Context, key, model string, acts []Activation) error {
	raw, err := json.Marshal(acts)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO activations (key, model, activations, created_at) VALUES (?, ?, ?, ?)",
		key, model, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// Len reports how many entries the cache holds.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activations").Scan(&n)
	return n, err
}

// CacheKey identifies a request by model, text and requested feature set.
func CacheKey(model, text string, ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// CachedExtractor consults the cache before delegating to Next.
type CachedExtractor struct {
	Next  Extractor
	Cache *Cache
	Model string

	hits, misses atomic.Int64
}

func (e *CachedExtractor) Extract(ctx context.Context, text string, ids []string) ([]Activation, error) {
	key := CacheKey(e.Model, text, ids)
	if acts, ok, err := e.Cache.Get(ctx, key); err == nil && ok {
		e.hits.Add(1)
		return acts, nil
	}
	e.misses.Add(1)

	acts, err := e.Next.Extract(ctx, text, ids)
	if err != nil {
		return nil, err
	}
	if err := e.Cache.Put(ctx, key, e.Model, acts); err != nil {
		slog.WarnContext(ctx, "activation cache write failed", "error", err)
	}
	return acts, nil
}

// Stats reports cache hits and misses seen so far.
func (e *CachedExtractor) Stats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}
