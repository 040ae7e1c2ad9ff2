package cache

import (
	"container/list"
	"context"
	"path"
	"sync"
	"time"
)

// noExpiry bounds entries written with a non-positive TTL.
const noExpiry = 7 * 24 * time.Hour

type memEntry struct {
	key      string
	value    []byte
	deadline time.Time
}

func (e *memEntry) live(now time.Time) bool { return now.Before(e.deadline) }

// MemoryCache is a process-local Service bounded by entry count. The least
// recently read or written entry is evicted first; a janitor goroutine drops
// expired entries between reads.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recent
	limit   int

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	mc := &MemoryCache{
		entries: make(map[string]*list.Element, cfg.MaxSize),
		lru:     list.New(),
		limit:   cfg.MaxSize,
		stop:    make(chan struct{}),
	}
	go mc.janitor(cfg.CleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = noExpiry
	}
	mc.mu.Lock()
	mc.put(key, data, time.Now().Add(expiration))
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	el, ok := mc.entries[key]
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	e := el.Value.(*memEntry)
	if !e.live(time.Now()) {
		mc.remove(el)
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.lru.MoveToFront(el)
	data := e.value
	mc.mu.Unlock()
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.entries[k]; ok {
			mc.remove(el)
		}
	}
	return nil
}

// DeleteByPattern drops every key matching a path.Match glob such as
// "snapshot:*".
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for k, el := range mc.entries {
		if ok, _ := path.Match(pattern, k); ok {
			mc.remove(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	now := time.Now()
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.entries[k]; ok && el.Value.(*memEntry).live(now) {
			return true, nil
		}
	}
	return false, nil
}

// TryLock claims key for ttl unless a live entry already holds it.
func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if el, ok := mc.entries[key]; ok && el.Value.(*memEntry).live(now) {
		return false, nil
	}
	mc.put(key, []byte("1"), now.Add(ttl))
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Len counts stored entries, including expired ones the janitor has not
// reached yet.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lru.Len()
}

func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	return nil
}

// put requires mc.mu.
func (mc *MemoryCache) put(key string, data []byte, deadline time.Time) {
	if el, ok := mc.entries[key]; ok {
		e := el.Value.(*memEntry)
		e.value, e.deadline = data, deadline
		mc.lru.MoveToFront(el)
		return
	}
	if mc.lru.Len() >= mc.limit {
		if oldest := mc.lru.Back(); oldest != nil {
			mc.remove(oldest)
		}
	}
	mc.entries[key] = mc.lru.PushFront(&memEntry{key: key, value: data, deadline: deadline})
}

// remove requires mc.mu.
func (mc *MemoryCache) remove(el *list.Element) {
	mc.lru.Remove(el)
	delete(mc.entries, el.Value.(*memEntry).key)
}

func (mc *MemoryCache) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case now := <-t.C:
			mc.mu.Lock()
			for el := mc.lru.Back(); el != nil; {
				prev := el.Prev()
				if !el.Value.(*memEntry).live(now) {
					mc.remove(el)
				}
				el = prev
			}
			mc.mu.Unlock()
		}
	}
}
