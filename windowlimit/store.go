/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package windowlimit

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"

	"github.com/windowlimit/go-windowlimit/lrucache"
)

// DefaultShardsNum is the default number of shards in the key store.
const DefaultShardsNum = 32

// keyState holds admission timestamps of a single key in chronological order.
// All fields are guarded by mu.
type keyState struct {
	mu      sync.Mutex
	stamps  timestampRing
	removed bool // set when the state is dropped from the store, holders must look the key up again
}

// keyStore maps keys to their states.
// Lock order: a store lock may be held while acquiring keyState.mu, never the other way around.
type keyStore interface {
	getOrAdd(key string) (st *keyState, created bool)
	get(key string) (*keyState, bool)
	// removeFunc drops all states for which pred returns true. pred is called under the store lock.
	removeFunc(pred func(st *keyState) bool) int
	len() int
}

type storeShard struct {
	mu     sync.RWMutex
	states map[string]*keyState
}

// shardedStore splits keys between independently locked maps.
type shardedStore struct {
	shards []storeShard
	keys   atomic.Int64
}

func newShardedStore(shardsNum int) *shardedStore {
	s := &shardedStore{shards: make([]storeShard, shardsNum)}
	for i := range s.shards {
		s.shards[i].states = make(map[string]*keyState)
	}
	return s
}

func (s *shardedStore) shard(key string) *storeShard {
	return &s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

func (s *shardedStore) getOrAdd(key string) (*keyState, bool) {
	sh := s.shard(key)

	sh.mu.RLock()
	st, ok := sh.states[key]
	sh.mu.RUnlock()
	if ok {
		return st, false
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if st, ok = sh.states[key]; ok {
		return st, false
	}
	st = &keyState{}
	sh.states[key] = st
	s.keys.Inc()
	return st, true
}

func (s *shardedStore) get(key string) (*keyState, bool) {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.states[key]
	return st, ok
}

func (s *shardedStore) removeFunc(pred func(st *keyState) bool) int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, st := range sh.states {
			if pred(st) {
				delete(sh.states, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	s.keys.Sub(int64(removed))
	return removed
}

func (s *shardedStore) len() int {
	return int(s.keys.Load())
}

// lruStore keeps at most maxKeys keys, the least recently used key is forgotten when the bound is exceeded.
type lruStore struct {
	cache *lrucache.LRUCache[string, *keyState]
}

func newLRUStore(maxKeys int, metricsCollector lrucache.MetricsCollector) (*lruStore, error) {
	cache, err := lrucache.NewWithOpts[string, *keyState](maxKeys, metricsCollector, lrucache.Options[string, *keyState]{
		OnEvict: func(_ string, st *keyState) {
			st.mu.Lock()
			st.removed = true
			st.mu.Unlock()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	return &lruStore{cache: cache}, nil
}

func (s *lruStore) getOrAdd(key string) (*keyState, bool) {
	st, exists := s.cache.GetOrAdd(key, func() *keyState { return &keyState{} })
	return st, !exists
}

func (s *lruStore) get(key string) (*keyState, bool) {
	return s.cache.Get(key)
}

func (s *lruStore) removeFunc(pred func(st *keyState) bool) int {
	return s.cache.RemoveFunc(func(_ string, st *keyState) bool {
		return pred(st)
	})
}

func (s *lruStore) len() int {
	return s.cache.Len()
}
