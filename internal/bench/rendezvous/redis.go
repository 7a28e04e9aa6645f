// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// defaultKeyTTL keeps abandoned rendezvous keys from accumulating in a
// shared Redis when a run dies before finishing.
const defaultKeyTTL = 24 * time.Hour

// RedisStore implements Store on a Redis instance reachable by every
// group member. It uses github.com/redis/go-redis/v9 under the hood.
type RedisStore struct {
	client       *redis.Client
	keyTTL       time.Duration
	pollInterval time.Duration
}

// NewRedisStore connects to addr ("host:port"). The connection is lazy;
// the first Set or Wait surfaces reachability errors.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client:       redis.NewClient(&redis.Options{Addr: addr}),
		keyTTL:       defaultKeyTTL,
		pollInterval: 50 * time.Millisecond,
	}
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("rendezvous: redis set %s: %w", key, err)
	}
	return nil
}

// Wait polls GET until the key exists. Peers publish keys independently,
// so there is no ordering to subscribe on; polling keeps the store
// contract to plain GET/SET.
func (r *RedisStore) Wait(ctx context.Context, key string) ([]byte, error) {
	for {
		value, err := r.client.Get(ctx, key).Bytes()
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("rendezvous: redis get %s: %w", key, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rendezvous: waiting for %s: %w", key, ctx.Err())
		case <-time.After(r.pollInterval):
		}
	}
}

func (r *RedisStore) Close() error { return r.client.Close() }
