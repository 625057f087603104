package dataloader

import (
	"container/list"
	"fmt"
	"sync"
)

// cacheEntry is one preprocessed image held by the cache
type cacheEntry struct {
	path string
	data []float32
}

// CacheManager is an LRU cache of preprocessed images keyed by file path.
// It is safe for concurrent use and can be shared between DataLoaders.
type CacheManager struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front is most recently used
	maxSize  int
	itemSize int // values per image, 0 accepts any size

	hits   int64
	misses int64
}

// NewCacheManager creates a cache holding at most maxSize images of itemSize values
func NewCacheManager(maxSize int, itemSize int) *CacheManager {
	return &CacheManager{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		maxSize:  maxSize,
		itemSize: itemSize,
	}
}

// Get returns the cached image for path
func (cm *CacheManager) Get(path string) ([]float32, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	elem, ok := cm.entries[path]
	if !ok {
		cm.misses++
		return nil, false
	}

	cm.order.MoveToFront(elem)
	cm.hits++
	return elem.Value.(*cacheEntry).data, true
}

// Put stores an image, evicting the least recently used ones beyond maxSize.
// Data of the wrong size is not cached.
func (cm *CacheManager) Put(path string, data []float32) {
	if cm.itemSize > 0 && len(data) != cm.itemSize {
		return
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if elem, ok := cm.entries[path]; ok {
		cm.order.MoveToFront(elem)
		return
	}

	cm.entries[path] = cm.order.PushFront(&cacheEntry{path: path, data: data})

	for cm.order.Len() > cm.maxSize {
		oldest := cm.order.Back()
		cm.order.Remove(oldest)
		delete(cm.entries, oldest.Value.(*cacheEntry).path)
	}
}

// Len returns the number of cached images
func (cm *CacheManager) Len() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.order.Len()
}

// Stats returns cache statistics
func (cm *CacheManager) Stats() CacheStats {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	stats := CacheStats{
		Size:    cm.order.Len(),
		MaxSize: cm.maxSize,
		Hits:    cm.hits,
		Misses:  cm.misses,
	}
	if total := cm.hits + cm.misses; total > 0 {
		stats.HitRate = float64(cm.hits) / float64(total) * 100
	}
	return stats
}

// Clear drops every cached image. Statistics are cumulative and survive.
func (cm *CacheManager) Clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.entries = make(map[string]*list.Element)
	cm.order.Init()
}

// ResetStats resets the hit and miss counters
func (cm *CacheManager) ResetStats() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.hits = 0
	cm.misses = 0
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

// String returns a string representation of cache stats
func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d items, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}
