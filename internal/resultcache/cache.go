// Package resultcache persists expensive provider results between jobs.
//
// Entries are JSON files grouped by category under the cache directory and
// keyed by a fingerprint of the request parameters. Entries are write-once:
// a key that already exists is never overwritten, and any read failure is
// treated as a miss so a corrupt entry costs a recompute, not a failed job.
package resultcache

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"autodub/internal/logging"
)

// Category names a class of cached results.
type Category string

const (
	// CategoryTranscript stores diarized transcription results keyed by
	// source identity and language.
	CategoryTranscript Category = "transcripts"
	// CategoryTranslation stores translated utterance text keyed by the
	// source text and language pair.
	CategoryTranslation Category = "translations"
	// CategoryVoice stores cloned voice identifiers keyed by the speaker
	// sample fingerprint.
	CategoryVoice Category = "voices"
)

// Categories lists every cache category in display order.
func Categories() []Category {
	return []Category{CategoryTranscript, CategoryTranslation, CategoryVoice}
}

// Cache is a write-once, category-partitioned store of provider results.
type Cache struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

// New creates a cache rooted at dir. The directory is created lazily on
// first write.
func New(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{dir: dir, logger: logging.NewComponentLogger(logger, "resultcache")}
}

// Get looks up a cached entry and decodes it into dest. It returns false on
// a miss; unreadable or undecodable entries also count as misses.
func (c *Cache) Get(category Category, key string, dest any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(category, key)
	payload, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("discarding unreadable cache entry",
			logging.String("category", string(category)),
			logging.String("key", key),
			logging.Error(err))
		return false
	}
	return true
}

// Put stores a value under key. If the key already exists the existing entry
// is kept and Put returns without error.
func (c *Cache) Put(category Category, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(category, key)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish cache entry: %w", err)
	}
	return nil
}

// CategoryStats summarizes one category's disk usage.
type CategoryStats struct {
	Category Category
	Entries  int
	Bytes    int64
}

// Stats walks the cache and reports per-category entry counts and sizes.
func (c *Cache) Stats() ([]CategoryStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := make([]CategoryStats, 0, len(Categories()))
	for _, category := range Categories() {
		entry := CategoryStats{Category: category}
		dir := filepath.Join(c.dir, string(category))
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			entry.Entries++
			entry.Bytes += info.Size()
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("walk cache category %s: %w", category, err)
		}
		stats = append(stats, entry)
	}
	return stats, nil
}

// Clear removes every entry in the given category.
func (c *Cache) Clear(category Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Join(c.dir, string(category))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear cache category %s: %w", category, err)
	}
	return nil
}

// ClearAll removes every entry in every category.
func (c *Cache) ClearAll() error {
	for _, category := range Categories() {
		if err := c.Clear(category); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) entryPath(category Category, key string) string {
	return filepath.Join(c.dir, string(category), key+".json")
}
