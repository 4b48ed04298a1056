/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package graphcache provides a TTL-bounded cache of computed permission
// closures (§4.H): both individual check results and get_all_permissions
// closures, invalidated synchronously by relstore.Invalidator whenever a
// mutation names a cached subject.
package graphcache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"time"

	"github.com/altairalabs/vaultkeep/internal/permcheck"
)

// DefaultTTL is the default cache entry lifetime named in §4.H.
const DefaultTTL = 60 * time.Second

// DefaultMaxEntries bounds the cache by entry count; eviction is LRU.
const DefaultMaxEntries = 100_000

// shardCount governs the fine-grained per-key locking named in §5: every
// subject's entries live in exactly one shard, so concurrent reads/writes
// for unrelated subjects never contend, while InvalidateSubject only ever
// locks the one shard that owns that subject.
const shardCount = 32

type checkKey struct {
	subject  string
	relation string
	object   string
}

type entry struct {
	key       any // checkKey or string (closure key)
	value     any
	expiresAt time.Time
	elem      *list.Element
}

type shard struct {
	mu        sync.Mutex
	order     *list.List
	checks    map[checkKey]*entry
	closures  map[string]*entry
	bySubject map[string]map[any]struct{}
}

func newShard() *shard {
	return &shard{
		order:     list.New(),
		checks:    make(map[checkKey]*entry),
		closures:  make(map[string]*entry),
		bySubject: make(map[string]map[any]struct{}),
	}
}

// Cache is a sharded LRU+TTL cache of check results and permission
// closures, with per-subject invalidation. It satisfies
// relstore.Invalidator so a relationship store can call InvalidateSubject
// directly on its mutation code path.
type Cache struct {
	ttl         time.Duration
	maxPerShard int
	shards      [shardCount]*shard
	now         func() time.Time
	remote      *RemoteStore
}

// New creates a Cache with the given TTL and total entry-count bound. A
// non-positive ttl uses DefaultTTL; a non-positive maxEntries uses
// DefaultMaxEntries. The bound is distributed evenly across shards.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache{ttl: ttl, maxPerShard: max(1, maxEntries/shardCount), now: time.Now}
	for i := range c.shards {
		c.shards[i] = newShard()
	}
	return c
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (c *Cache) shardFor(subject string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subject))
	return c.shards[h.Sum32()%shardCount]
}

func (s *shard) track(subject string, key any) {
	set, ok := s.bySubject[subject]
	if !ok {
		set = make(map[any]struct{})
		s.bySubject[subject] = set
	}
	set[key] = struct{}{}
}

func (s *shard) evictIfFull(maxEntries int) {
	for len(s.checks)+len(s.closures) > maxEntries {
		back := s.order.Back()
		if back == nil {
			return
		}
		e := back.Value.(*entry)
		s.order.Remove(back)
		switch k := e.key.(type) {
		case checkKey:
			delete(s.checks, k)
		case string:
			delete(s.closures, k)
		}
	}
}

func (s *shard) removeEntry(e *entry) {
	s.order.Remove(e.elem)
	switch k := e.key.(type) {
	case checkKey:
		delete(s.checks, k)
	case string:
		delete(s.closures, k)
	}
}

// GetCheck returns a cached check result for (subject, relation, object)
// if present and not expired. The hit return is false on either a miss or
// an expired entry — an expired entry is never returned, per §4.H's "MUST
// NOT cache negative results past their TTL" requirement.
func (c *Cache) GetCheck(subject, relation, object string) (result, hit bool) {
	s := c.shardFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()

	k := checkKey{subject, relation, object}
	e, ok := s.checks[k]
	if !ok {
		return false, false
	}
	if c.now().After(e.expiresAt) {
		s.removeEntry(e)
		return false, false
	}
	s.order.MoveToFront(e.elem)
	return e.value.(bool), true
}

// SetCheck stores a check result.
func (c *Cache) SetCheck(subject, relation, object string, result bool) {
	s := c.shardFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()

	k := checkKey{subject, relation, object}
	if e, ok := s.checks[k]; ok {
		e.value = result
		e.expiresAt = c.now().Add(c.ttl)
		s.order.MoveToFront(e.elem)
		return
	}
	e := &entry{key: k, value: result, expiresAt: c.now().Add(c.ttl)}
	e.elem = s.order.PushFront(e)
	s.checks[k] = e
	s.track(subject, k)
	s.evictIfFull(c.maxPerShard)
}

// GetClosure returns a cached get_all_permissions closure for subject.
func (c *Cache) GetClosure(subject string) ([]permcheck.RelationPair, bool) {
	s := c.shardFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.closures[subject]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		s.removeEntry(e)
		return nil, false
	}
	s.order.MoveToFront(e.elem)
	return e.value.([]permcheck.RelationPair), true
}

// SetClosure stores a get_all_permissions closure for subject.
func (c *Cache) SetClosure(subject string, pairs []permcheck.RelationPair) {
	s := c.shardFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.closures[subject]; ok {
		e.value = pairs
		e.expiresAt = c.now().Add(c.ttl)
		s.order.MoveToFront(e.elem)
		return
	}
	e := &entry{key: subject, value: pairs, expiresAt: c.now().Add(c.ttl)}
	e.elem = s.order.PushFront(e)
	s.closures[subject] = e
	s.track(subject, subject)
	s.evictIfFull(c.maxPerShard)
}

// InvalidateSubject drops every cached entry — check results and
// closures — associated with subject. Only the one shard owning subject
// is locked, exclusively, for the duration of the drop.
func (c *Cache) InvalidateSubject(subject string) {
	s := c.shardFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.bySubject[subject]
	if !ok {
		return
	}
	for key := range set {
		switch k := key.(type) {
		case checkKey:
			if e, ok := s.checks[k]; ok {
				s.order.Remove(e.elem)
				delete(s.checks, k)
			}
		case string:
			if e, ok := s.closures[k]; ok {
				s.order.Remove(e.elem)
				delete(s.closures, k)
			}
		}
	}
	delete(s.bySubject, subject)
}

// InvalidateAll clears every shard, acquiring each shard's lock in turn.
// Used for administrative cache resets and tests.
func (c *Cache) InvalidateAll() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.order = list.New()
		s.checks = make(map[checkKey]*entry)
		s.closures = make(map[string]*entry)
		s.bySubject = make(map[string]map[any]struct{})
		s.mu.Unlock()
	}
}

// Len returns the total number of live (not-yet-evicted) entries, for
// tests and metrics.
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += len(s.checks) + len(s.closures)
		s.mu.Unlock()
	}
	return total
}
