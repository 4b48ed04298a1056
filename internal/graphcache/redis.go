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

package graphcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/altairalabs/vaultkeep/internal/permcheck"
)

const (
	checkKeyPrefix   = "permcheck:"
	closureKeyPrefix = "permclosure:"
)

// RemoteConfig configures the Redis tier backing a distributed deployment's
// graph cache, so every process observes the same invalidations instead of
// each holding its own stale in-process copy.
type RemoteConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RemoteStore is a Redis-backed second tier for Cache: the in-process
// shards of Cache absorb most reads, and RemoteStore is consulted on a
// local miss so that a cold process (or one that just lost an in-process
// entry to eviction) still benefits from another process's warm cache.
type RemoteStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRemoteStore dials a Redis server. The connection is verified with a
// Ping before returning, matching the teacher's NewRedisStore.
func NewRemoteStore(ctx context.Context, cfg RemoteConfig, ttl time.Duration) (*RemoteStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("graphcache: connect redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RemoteStore{client: client, keyPrefix: cfg.KeyPrefix, ttl: ttl}, nil
}

// NewRemoteStoreFromClient wraps an already-constructed client, for tests
// that point at a miniredis instance.
func NewRemoteStoreFromClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RemoteStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RemoteStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RemoteStore) checkKey(subject, relation, object string) string {
	return r.keyPrefix + checkKeyPrefix + subject + "|" + relation + "|" + object
}

func (r *RemoteStore) closureKey(subject string) string {
	return r.keyPrefix + closureKeyPrefix + subject
}

// GetCheck looks up a cached check result in Redis.
func (r *RemoteStore) GetCheck(ctx context.Context, subject, relation, object string) (result, hit bool, err error) {
	v, err := r.client.Get(ctx, r.checkKey(subject, relation, object)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("graphcache: get check: %w", err)
	}
	return v == "1", true, nil
}

// SetCheck stores a check result in Redis with the store's configured TTL.
func (r *RemoteStore) SetCheck(ctx context.Context, subject, relation, object string, result bool) error {
	v := "0"
	if result {
		v = "1"
	}
	if err := r.client.Set(ctx, r.checkKey(subject, relation, object), v, r.ttl).Err(); err != nil {
		return fmt.Errorf("graphcache: set check: %w", err)
	}
	return nil
}

// GetClosure looks up a cached get_all_permissions closure in Redis.
func (r *RemoteStore) GetClosure(ctx context.Context, subject string) ([]permcheck.RelationPair, bool, error) {
	data, err := r.client.Get(ctx, r.closureKey(subject)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("graphcache: get closure: %w", err)
	}
	var pairs []permcheck.RelationPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, false, fmt.Errorf("graphcache: unmarshal closure: %w", err)
	}
	return pairs, true, nil
}

// SetClosure stores a closure in Redis with the store's configured TTL.
func (r *RemoteStore) SetClosure(ctx context.Context, subject string, pairs []permcheck.RelationPair) error {
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("graphcache: marshal closure: %w", err)
	}
	if err := r.client.Set(ctx, r.closureKey(subject), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("graphcache: set closure: %w", err)
	}
	return nil
}

// InvalidateSubject removes every key for subject across both key
// families. Redis SCAN is avoided by keying off the same subject string
// used in-process; callers invalidate the exact (relation, object) pairs
// they know about plus the closure key, mirroring Cache.InvalidateSubject's
// bySubject tracking but without needing a server-side index.
func (r *RemoteStore) InvalidateSubject(ctx context.Context, subject string, pairs []checkKey) error {
	keys := make([]string, 0, len(pairs)+1)
	keys = append(keys, r.closureKey(subject))
	for _, p := range pairs {
		keys = append(keys, r.checkKey(p.subject, p.relation, p.object))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("graphcache: invalidate subject: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (r *RemoteStore) Close() error {
	return r.client.Close()
}

// SetRemote attaches a Redis tier to Cache. Once set, GetCheckRemote /
// SetCheckRemote / GetClosureRemote / SetClosureRemote consult it on a
// local miss (or populate it on a local write) so that multiple vaultkeepd
// processes share one warm cache instead of each starting cold. A nil
// remote (the zero value) keeps Cache purely in-process, which is how the
// existing local-only Get/Set methods always behave.
func (c *Cache) SetRemote(remote *RemoteStore) {
	c.remote = remote
}

// GetCheckRemote behaves like GetCheck, falling through to the Redis tier
// on a local miss and back-filling the in-process shard on a remote hit.
func (c *Cache) GetCheckRemote(ctx context.Context, subject, relation, object string) (bool, bool) {
	if result, hit := c.GetCheck(subject, relation, object); hit {
		return result, true
	}
	if c.remote == nil {
		return false, false
	}
	result, hit, err := c.remote.GetCheck(ctx, subject, relation, object)
	if err != nil || !hit {
		return false, false
	}
	c.SetCheck(subject, relation, object, result)
	return result, true
}

// SetCheckRemote stores a check result locally and, if a remote tier is
// attached, in Redis as well.
func (c *Cache) SetCheckRemote(ctx context.Context, subject, relation, object string, result bool) {
	c.SetCheck(subject, relation, object, result)
	if c.remote != nil {
		_ = c.remote.SetCheck(ctx, subject, relation, object, result)
	}
}

// GetClosureRemote behaves like GetClosure, falling through to Redis.
func (c *Cache) GetClosureRemote(ctx context.Context, subject string) ([]permcheck.RelationPair, bool) {
	if pairs, hit := c.GetClosure(subject); hit {
		return pairs, true
	}
	if c.remote == nil {
		return nil, false
	}
	pairs, hit, err := c.remote.GetClosure(ctx, subject)
	if err != nil || !hit {
		return nil, false
	}
	c.SetClosure(subject, pairs)
	return pairs, true
}

// SetClosureRemote stores a closure locally and, if attached, in Redis.
func (c *Cache) SetClosureRemote(ctx context.Context, subject string, pairs []permcheck.RelationPair) {
	c.SetClosure(subject, pairs)
	if c.remote != nil {
		_ = c.remote.SetClosure(ctx, subject, pairs)
	}
}

// InvalidateSubjectRemote invalidates the in-process shard and, if a
// remote tier is attached, the corresponding Redis keys.
func (c *Cache) InvalidateSubjectRemote(ctx context.Context, subject string) {
	s := c.shardFor(subject)
	s.mu.Lock()
	var keys []checkKey
	for key := range s.bySubject[subject] {
		if k, ok := key.(checkKey); ok {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()

	c.InvalidateSubject(subject)
	if c.remote != nil {
		_ = c.remote.InvalidateSubject(ctx, subject, keys)
	}
}
