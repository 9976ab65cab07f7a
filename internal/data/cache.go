package data

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"market-clearing/internal/model"
)

type cacheEntry struct {
	file      *model.IntervalFile
	expiresAt time.Time
}

// DatasetCache keeps decoded interval datasets in memory. Entries are keyed
// by path, size and modification time, so an edited file is re-read.
type DatasetCache struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewDatasetCache(ttl time.Duration) *DatasetCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DatasetCache{store: map[string]*cacheEntry{}, ttl: ttl, now: time.Now}
}

// Load returns the dataset at path, reading it on a miss. A nil cache always
// reads the file.
func (c *DatasetCache) Load(path string) (*model.IntervalFile, error) {
	if c == nil {
		return LoadIntervalsJSON(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := GenerateCacheKey(path, info.Size(), info.ModTime())
	if file, ok := c.Get(key); ok {
		return file, nil
	}
	file, err := LoadIntervalsJSON(path)
	if err != nil {
		return nil, err
	}
	c.Set(key, file)
	return file, nil
}

// Get retrieves a cached dataset if available and not expired.
func (c *DatasetCache) Get(key string) (*model.IntervalFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[key]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.file, true
}

// Set stores a dataset and drops expired entries.
func (c *DatasetCache) Set(key string, file *model.IntervalFile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.store {
		if now.After(e.expiresAt) {
			delete(c.store, k)
		}
	}
	c.store[key] = &cacheEntry{file: file, expiresAt: now.Add(c.ttl)}
}

func (c *DatasetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *DatasetCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = map[string]*cacheEntry{}
}

func GenerateCacheKey(path string, size int64, modTime time.Time) string {
	keyStr := fmt.Sprintf("%s:%d:%d", path, size, modTime.UnixNano())
	hash := sha256.Sum256([]byte(keyStr))
	return hex.EncodeToString(hash[:])
}
