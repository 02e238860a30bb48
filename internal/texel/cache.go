package texel

import "sync"

// Cache is a concurrency-safe store of decoded textures keyed by texture
// name. Decoding happens at most once per name.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
	order []string
}

type cacheEntry struct {
	img *Image
	err error
}

// NewCache creates an empty texture cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]*cacheEntry)}
}

// Resolve returns the cached texture for name, calling decode on a miss.
// The error from the first decode is returned on every hit.
func (c *Cache) Resolve(name string, decode func() (*Image, error)) (*Image, error) {
	// Fast path: read lock
	c.mu.RLock()
	if entry, exists := c.items[name]; exists {
		c.mu.RUnlock()
		return entry.img, entry.err
	}
	c.mu.RUnlock()

	img, err := decode()
	if img != nil {
		img.Name = name
	}

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, exists := c.items[name]; exists {
		return entry.img, entry.err
	}
	c.items[name] = &cacheEntry{img: img, err: err}
	c.order = append(c.order, name)
	return img, err
}

// Images returns every cached texture in first-decoded order.
func (c *Cache) Images() []*Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Image, 0, len(c.order))
	for _, name := range c.order {
		if img := c.items[name].img; img != nil {
			out = append(out, img)
		}
	}
	return out
}

// Len returns the number of cached textures.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
