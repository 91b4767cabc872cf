// Package cache holds the last observed payload for every key, shared by all
// views. Writes are last-write-wins by arrival order: whichever Put lands
// last is what Get returns, no matter which view issued it or what logical
// time the payload carries.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Entry is one cached value.
type Entry struct {
	Key       string
	Value     any
	WrittenAt time.Time
	Seq       uint64 // arrival sequence, strictly increasing per cache
}

// Cache is a process-wide key/value store of last-observed payloads.
//
// Writers are confined to the event loop; the lock exists because the
// headless API reads snapshots from its own goroutines.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	seq     uint64
	clock   clockwork.Clock
}

// New creates an empty cache. A nil clock uses the real clock.
func New(clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		entries: make(map[string]Entry),
		clock:   clock,
	}
}

// Put stores value under key, replacing whatever was there.
func (c *Cache) Put(key string, value any) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	e := Entry{
		Key:       key,
		Value:     value,
		WrittenAt: c.clock.Now(),
		Seq:       c.seq,
	}
	c.entries[key] = e
	return e
}

// Get returns the most recent entry for key. It never triggers a fetch.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return e, ok
}

// Delete removes key. It reports whether the key was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns all keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of every entry, ordered by key.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
