package reader

import "sync"

// ChapterKey identifies a cached chapter.
type ChapterKey struct {
	Project string
	Book    int
	Chapter int
}

// ChapterCache memoizes loaded chapters. Entries live until Clear; nothing
// on disk invalidates them.
type ChapterCache struct {
	mu      sync.Mutex
	entries map[ChapterKey]*ChapterView
	hits    int
	misses  int
}

// NewChapterCache returns an empty cache.
func NewChapterCache() *ChapterCache {
	return &ChapterCache{entries: make(map[ChapterKey]*ChapterView)}
}

// Get returns the cached chapter for key or stores the result of load.
// Failed loads are not cached.
func (c *ChapterCache) Get(key ChapterKey, load func() (*ChapterView, error)) (*ChapterView, error) {
	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return v, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have loaded the same chapter meanwhile; keep the
	// first so every caller sees one value.
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = v
	return v, nil
}

// Clear drops every entry.
func (c *ChapterCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[ChapterKey]*ChapterView)
}

// Len is the number of cached chapters.
func (c *ChapterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts since creation.
func (c *ChapterCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
