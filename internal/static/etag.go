package static

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sipweb/devserve/internal/storage"
	"github.com/zeebo/blake3"
)

type etagEntry struct {
	size    int64
	modTime time.Time
	tag     string
}

// ETagCache holds content-hash ETags keyed by storage-relative name. An
// entry is reused only while the file's size and mtime are unchanged.
type ETagCache struct {
	storage storage.Storage
	mu      sync.RWMutex
	entries map[string]etagEntry
}

func NewETagCache(store storage.Storage) *ETagCache {
	return &ETagCache{
		storage: store,
		entries: make(map[string]etagEntry),
	}
}

func (c *ETagCache) Get(name string, info os.FileInfo) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()

	if ok && entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
		return entry.tag, nil
	}

	tag, err := c.hash(name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[name] = etagEntry{size: info.Size(), modTime: info.ModTime(), tag: tag}
	c.mu.Unlock()

	return tag, nil
}

func (c *ETagCache) hash(name string) (string, error) {
	rc, err := c.storage.Retrieve(name)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := blake3.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", name, err)
	}
	return `"` + hex.EncodeToString(h.Sum(nil)[:16]) + `"`, nil
}

func (c *ETagCache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

func (c *ETagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
