package medialib

import (
	"fmt"
	"sync"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/wavcodec"
)

// ReaderCache opens each referenced media file at most once per render
// call. It lives for exactly one RenderEdlWindow call and is dropped at
// the end via Close.
type ReaderCache struct {
	mu      sync.Mutex
	readers map[string]*wavcodec.Reader
}

// NewReaderCache returns an empty cache.
func NewReaderCache() *ReaderCache {
	return &ReaderCache{readers: make(map[string]*wavcodec.Reader)}
}

// Get returns the reader for path, opening it on first access. Concurrent
// callers racing to open the same path serialize on the cache mutex; the
// loser gets the winner's reader rather than opening the file twice.
func (c *ReaderCache) Get(path string) (*wavcodec.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.readers[path]; ok {
		return r, nil
	}
	r, err := wavcodec.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("medialib: reader unavailable for %s: %w", path, err)
	}
	c.readers[path] = r
	return r, nil
}

// Close releases every opened reader. Safe to call once at the end of a
// render call; the cache must not be reused afterward.
func (c *ReaderCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.readers {
		_ = r.Close()
	}
	c.readers = nil
}
