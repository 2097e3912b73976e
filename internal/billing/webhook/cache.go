package webhook

import "sync"

// EventCache remembers recently processed event IDs so replays can be
// acknowledged without touching the database. Oldest entries are evicted
// first once the capacity is reached.
type EventCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]struct{}
}

const defaultEventCacheCapacity = 1000

func NewEventCache(capacity int) *EventCache {
	if capacity <= 0 {
		capacity = defaultEventCacheCapacity
	}
	return &EventCache{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

func (c *EventCache) Contains(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[eventID]
	return ok
}

func (c *EventCache) Add(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[eventID]; ok {
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	c.order = append(c.order, eventID)
	c.seen[eventID] = struct{}{}
}

func (c *EventCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
