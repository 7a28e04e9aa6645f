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

// Package rendezvous establishes process-group membership: every rank
// publishes its transport addresses through a shared key-value store and
// connects a full mesh of point-to-point pairs before any measurement
// begins.
package rendezvous

import "context"

// Store is the key-value surface used for address exchange. Writes are
// one-shot (a key is published exactly once per run); reads block until
// the key appears.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	// Wait blocks (or polls) until key exists and returns its value.
	Wait(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// PrefixStore namespaces every key of an underlying store, so multiple
// runs can share one backing store without colliding.
type PrefixStore struct {
	prefix string
	store  Store
}

func NewPrefixStore(prefix string, store Store) *PrefixStore {
	return &PrefixStore{prefix: prefix, store: store}
}

func (p *PrefixStore) key(k string) string { return p.prefix + "/" + k }

func (p *PrefixStore) Set(ctx context.Context, key string, value []byte) error {
	return p.store.Set(ctx, p.key(key), value)
}

func (p *PrefixStore) Wait(ctx context.Context, key string) ([]byte, error) {
	return p.store.Wait(ctx, p.key(key))
}

func (p *PrefixStore) Close() error { return p.store.Close() }
