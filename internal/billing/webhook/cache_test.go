package webhook

import (
	"fmt"
	"testing"
)

func TestEventCacheEvictsOldestFirst(t *testing.T) {
	cache := NewEventCache(3)

	for i := 0; i < 4; i++ {
		cache.Add(fmt.Sprintf("evt_%d", i))
	}

	if cache.Contains("evt_0") {
		t.Fatal("expected oldest entry evicted")
	}
	for i := 1; i < 4; i++ {
		if !cache.Contains(fmt.Sprintf("evt_%d", i)) {
			t.Fatalf("expected evt_%d retained", i)
		}
	}
	if cache.Len() != 3 {
		t.Fatalf("expected len 3, got %d", cache.Len())
	}
}

func TestEventCacheIgnoresDuplicateAdds(t *testing.T) {
	cache := NewEventCache(2)
	cache.Add("evt_1")
	cache.Add("evt_1")
	cache.Add("evt_2")

	if cache.Len() != 2 {
		t.Fatalf("expected len 2, got %d", cache.Len())
	}
	if !cache.Contains("evt_1") || !cache.Contains("evt_2") {
		t.Fatal("expected both entries present")
	}
}
