package dataloader

import (
	"fmt"
	"sync"
	"testing"
)

func TestCacheManagerBasicOperations(t *testing.T) {
	cm := NewCacheManager(5, 0)

	if data, exists := cm.Get("missing"); exists || data != nil {
		t.Error("Get should return false and nil for a missing key")
	}

	testData := []float32{1, 2, 3}
	cm.Put("cat.jpg", testData)

	got, exists := cm.Get("cat.jpg")
	if !exists {
		t.Fatal("Expected cached entry")
	}
	for i := range testData {
		if got[i] != testData[i] {
			t.Errorf("Data mismatch at %d: expected %f, got %f", i, testData[i], got[i])
		}
	}

	stats := cm.Stats()
	if stats.Size != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.HitRate != 50 {
		t.Errorf("Expected 50%% hit rate, got %.1f", stats.HitRate)
	}
}

func TestCacheManagerLRUEviction(t *testing.T) {
	cm := NewCacheManager(3, 0)

	cm.Put("a", []float32{1})
	cm.Put("b", []float32{2})
	cm.Put("c", []float32{3})

	// Touch a so b becomes the oldest
	cm.Get("a")
	cm.Put("d", []float32{4})

	if cm.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", cm.Len())
	}
	if _, ok := cm.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := cm.Get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
}

func TestCacheManagerPutExisting(t *testing.T) {
	cm := NewCacheManager(2, 0)

	cm.Put("a", []float32{1})
	cm.Put("b", []float32{2})
	cm.Put("a", []float32{9})
	cm.Put("c", []float32{3})

	data, ok := cm.Get("a")
	if !ok {
		t.Fatal("Re-put entry should be most recent and survive eviction")
	}
	if data[0] != 1 {
		t.Errorf("Existing entry should keep its data, got %f", data[0])
	}
	if _, ok := cm.Get("b"); ok {
		t.Error("b should have been evicted")
	}
}

func TestCacheManagerItemSize(t *testing.T) {
	cm := NewCacheManager(10, 4)

	cm.Put("short", []float32{1, 2})
	cm.Put("exact", []float32{1, 2, 3, 4})

	if _, ok := cm.Get("short"); ok {
		t.Error("Wrongly sized data must not be cached")
	}
	if _, ok := cm.Get("exact"); !ok {
		t.Error("Correctly sized data should be cached")
	}
}

func TestCacheManagerClearAndResetStats(t *testing.T) {
	cm := NewCacheManager(10, 0)
	cm.Put("a", []float32{1})
	cm.Get("a")
	cm.Get("missing")

	cm.Clear()
	stats := cm.Stats()
	if stats.Size != 0 {
		t.Errorf("Expected empty cache, got %d", stats.Size)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Clear should keep statistics, got %+v", stats)
	}

	cm.Put("b", []float32{2})
	if _, ok := cm.Get("b"); !ok {
		t.Error("Cache should be usable after Clear")
	}

	cm.ResetStats()
	stats = cm.Stats()
	if stats.Hits != 0 || stats.Misses != 0 || stats.HitRate != 0 {
		t.Errorf("Expected zeroed statistics, got %+v", stats)
	}
}

func TestCacheManagerConcurrency(t *testing.T) {
	cm := NewCacheManager(50, 0)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("img_%d", (g*100+i)%80)
				cm.Put(key, []float32{float32(i)})
				cm.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if cm.Len() > 50 {
		t.Errorf("Cache exceeded its maximum: %d", cm.Len())
	}
	stats := cm.Stats()
	if stats.Hits+stats.Misses != 800 {
		t.Errorf("Expected 800 lookups, got %d", stats.Hits+stats.Misses)
	}
}

func TestCacheStatsString(t *testing.T) {
	stats := CacheStats{Size: 3, MaxSize: 10, Hits: 6, Misses: 2, HitRate: 75}
	expected := "Cache: 3/10 items, Hits: 6, Misses: 2, Hit Rate: 75.0%"
	if stats.String() != expected {
		t.Errorf("Expected %q, got %q", expected, stats.String())
	}
}
