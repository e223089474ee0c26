package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the entry lifetime used when no per-key TTL is given.
const DefaultTTL = 8 * time.Hour

const janitorInterval = time.Minute

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Store is a process-wide key/value cache with per-entry TTL and explicit
// key/prefix invalidation. It is safe for concurrent use; there is no
// capacity bound beyond expiry. One Store is constructed at startup and
// handed to every component that reads or writes through it.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Store with the given default TTL (DefaultTTL if zero or
// negative) and starts a background janitor that reaps expired entries.
func New(defaultTTL time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	s := &Store{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Get returns the value for key. Expired entries act as a miss.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := s.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (s *Store) Set(key string, value interface{}) {
	s.SetTTL(key, value, s.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL.
func (s *Store) SetTTL(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// Delete removes key. Removing an absent key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// DeleteByPrefix removes every key starting with prefix.
func (s *Store) DeleteByPrefix(prefix string) {
	s.mu.Lock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

// Keys returns the keys of all live (unexpired) entries.
func (s *Store) Keys() []string {
	now := time.Now()
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if now.Before(e.expiresAt) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	return keys
}

// Close stops the background janitor. The store remains usable.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for k, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Key builds a cache key from a domain name plus identifying fields,
// serialized deterministically. Using one builder across call sites keeps
// key formats from drifting.
func Key(parts ...interface{}) string {
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, fmt.Sprint(p))
	}
	return strings.Join(segs, "_")
}
