// Package cache stores judge evaluations keyed by transcript content, so
// re-running a suite does not re-score identical conversations.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dialcheck/dialcheck/internal/judge"
	"github.com/dialcheck/dialcheck/internal/models"
)

// Cache provides disk caching for judge evaluations.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a cache instance with the specified directory.
// An empty dir disables the cache: Get always misses and Put is a no-op.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key generates a unique cache key for an evaluation.
// The key covers the test case definition, the judge model, the knowledge
// base, and every transcript turn, so any change in conversation or
// configuration misses. The knowledge base is hashed because it is rendered
// into the judge prompt; editing it must invalidate old evaluations.
func Key(tc *models.TestCase, judgeModel string, kb *models.KnowledgeBase, turns []models.ConversationTurn) (string, error) {
	h := sha256.New()

	if err := writeString(h, judgeModel); err != nil {
		return "", err
	}

	tcJSON, err := json.Marshal(tc)
	if err != nil {
		return "", fmt.Errorf("marshaling test case: %w", err)
	}
	if _, err := h.Write(tcJSON); err != nil {
		return "", err
	}

	if kb != nil {
		kbJSON, err := json.Marshal(kb)
		if err != nil {
			return "", fmt.Errorf("marshaling knowledge base: %w", err)
		}
		if _, err := h.Write(kbJSON); err != nil {
			return "", err
		}
	}

	for _, turn := range turns {
		if err := writeString(h, string(turn.Speaker)); err != nil {
			return "", err
		}
		if err := writeString(h, turn.Text); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached evaluation if it exists.
func (c *Cache) Get(key string) (*judge.Evaluation, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		// Cache miss
		return nil, false
	}

	var eval judge.Evaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}

	return &eval, true
}

// Put stores an evaluation in the cache.
func (c *Cache) Put(key string, eval *judge.Evaluation) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(eval, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling evaluation: %w", err)
	}

	if err := os.WriteFile(c.cachePath(key), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Stats reports the number of entries and total size of the cache.
func (c *Cache) Stats() (entries int, bytes int64, err error) {
	if c.dir == "" {
		return 0, 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading cache directory: %w", err)
	}
	for _, e := range dirEntries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		entries++
		bytes += info.Size()
	}
	return entries, bytes, nil
}

// Clear removes all cached evaluations.
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Safety check: only delete directories that look like our cache.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	if len(entries) > 0 {
		hasValidCache := false
		for _, entry := range entries {
			if entry.IsDir() {
				return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
			}
			if filepath.Ext(entry.Name()) == ".json" {
				hasValidCache = true
			} else {
				return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
			}
		}
		if !hasValidCache {
			return fmt.Errorf("no valid cache files found in directory - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

// cachePath returns the file path for a cache key.
func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func writeString(w io.Writer, s string) error {
	// Null byte delimiter prevents hash collisions between adjacent fields.
	_, err := w.Write([]byte(s + "\x00"))
	return err
}
