package lockout

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// Entry is the per-identity failure record.
type Entry struct {
	FailedCount int        `json:"failed_count"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// UpdateFunc receives the current entry (ok is false if none exists) and
// returns the entry to store. Returning keep=false removes the key.
type UpdateFunc func(cur Entry, ok bool) (next Entry, keep bool)

// Store is a key-value store with atomic per-key read-modify-write.
// Implementations must serialize Update calls for the same key and must not
// serialize calls for different keys behind a single lock.
type Store interface {
	Update(ctx context.Context, key string, fn UpdateFunc) (Entry, bool, error)
	Delete(ctx context.Context, key string) error
}

const defaultShards = 64

type shard struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// MemoryStore is a process-local sharded map. State is lost on restart.
type MemoryStore struct {
	shards []*shard
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{shards: make([]*shard, defaultShards)}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cur, ok := sh.entries[key]
	next, keep := fn(cur, ok)
	if !keep {
		delete(sh.entries, key)
		return Entry{}, false, nil
	}
	sh.entries[key] = next
	return next, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
