// Package convcache is a path-addressed store of prior conversion results.
//
// Keys are derived from the canonical absolute source path, never from the
// file content: two identical files at different paths occupy independent
// slots, and invalidating one never evicts the other. The content hash is
// advisory staleness metadata only — a mismatch is a miss, not a delete.
//
// Both cache entries and the shared index are written with a temp-file +
// atomic-rename discipline so a reader never observes a torn file. Index
// persistence failures are swallowed: the previously committed index stays
// authoritative and the conversion pipeline never sees a cache error.
package convcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Entry is the index metadata for one cached conversion.
type Entry struct {
	SourcePath  string    `json:"source_path"`
	ContentHash string    `json:"content_hash"`
	Tool        string    `json:"tool"`
	Score       int       `json:"score"`
	CachedAt    time.Time `json:"cached_at"`
}

// Stats summarizes cache occupancy.
type Stats struct {
	Entries        int    `json:"entries"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	Dir            string `json:"dir"`
}

// Cache is safe for concurrent use: reads proceed under a shared lock,
// index mutation is single-writer.
type Cache struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	index map[string]Entry
}

const indexFile = "index.json"

// New opens (or creates) a cache directory. An unreadable or corrupt index
// degrades to an empty cache, never a hard failure.
func New(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		dir:    dir,
		logger: logger,
		index:  make(map[string]Entry),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Warn("cache dir unavailable, running cold", "dir", dir, "error", err)
		return c
	}
	c.loadIndex()
	return c
}

func (c *Cache) loadIndex() {
	data, err := os.ReadFile(filepath.Join(c.dir, indexFile))
	if err != nil {
		return // cold start
	}
	var index map[string]Entry
	if err := json.Unmarshal(data, &index); err != nil {
		c.logger.Warn("cache index corrupt, running cold", "error", err)
		return
	}
	c.index = index
}

// Key derives the cache key: hash of the canonical absolute source path.
func Key(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(abs))
}

// HashFile returns the content hash of a file, used only to detect
// staleness.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:32], nil
}

// Get returns the cached content for a source path. It recomputes the
// source's content hash: a mismatch means the file changed since caching
// and is reported as a miss, leaving the stale entry in place.
func (c *Cache) Get(path string) (string, *Entry, bool) {
	hash, err := HashFile(path)
	if err != nil {
		return "", nil, false
	}
	key := Key(path)

	c.mu.RLock()
	entry, ok := c.index[key]
	c.mu.RUnlock()
	if !ok || entry.ContentHash != hash {
		return "", nil, false
	}

	data, err := os.ReadFile(c.contentPath(key))
	if err != nil {
		return "", nil, false
	}
	e := entry
	return string(data), &e, true
}

// Put stores converted content for a source path, overwriting any previous
// entry for that path. All failures are logged and swallowed — a cache
// write error never fails a conversion.
func (c *Cache) Put(path, content, tool string, score int) {
	hash, err := HashFile(path)
	if err != nil {
		c.logger.Warn("cache put: hash source", "path", path, "error", err)
		return
	}
	key := Key(path)

	if err := c.writeAtomic(c.contentPath(key), []byte(content)); err != nil {
		c.logger.Warn("cache put: write content", "path", path, "error", err)
		return
	}

	abs, _ := filepath.Abs(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index[key] = Entry{
		SourcePath:  abs,
		ContentHash: hash,
		Tool:        tool,
		Score:       score,
		CachedAt:    time.Now().UTC(),
	}
	c.saveIndexLocked()
}

// Invalidate removes the entry for one source path. Reports whether an
// entry existed.
func (c *Cache) Invalidate(path string) bool {
	key := Key(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[key]; !ok {
		return false
	}
	delete(c.index, key)
	os.Remove(c.contentPath(key))
	c.saveIndexLocked()
	return true
}

// Clear removes every cached entry and returns how many were dropped.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.index)
	for key := range c.index {
		os.Remove(c.contentPath(key))
	}
	c.index = make(map[string]Entry)
	c.saveIndexLocked()
	return count
}

// Stats reports entry count and total content size.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{Entries: len(c.index), Dir: c.dir}
	for key := range c.index {
		if info, err := os.Stat(c.contentPath(key)); err == nil {
			s.TotalSizeBytes += info.Size()
		}
	}
	return s
}

func (c *Cache) contentPath(key string) string {
	return filepath.Join(c.dir, key+".md")
}

// saveIndexLocked rewrites the index with the temp-write-then-rename
// discipline. On failure the temp artifact is discarded and the previously
// committed index on disk remains authoritative.
func (c *Cache) saveIndexLocked() {
	data, err := json.Marshal(c.index)
	if err != nil {
		c.logger.Warn("cache index: marshal", "error", err)
		return
	}
	if err := c.writeAtomic(filepath.Join(c.dir, indexFile), data); err != nil {
		c.logger.Warn("cache index: persist", "error", err)
	}
}

// writeAtomic writes to a temp file in the same directory, then renames it
// over the target. The temp file is removed if the rename fails.
func (c *Cache) writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, filepath.Base(target)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
