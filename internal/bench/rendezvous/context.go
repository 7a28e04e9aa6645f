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
	"fmt"
	"sync"

	"collbench/internal/bench/transport"
)

// Context owns one full mesh of connected pairs for a single worker (or
// collective primitive). Every process in the group observes the same
// Size and a unique Rank in [0, Size).
type Context struct {
	Rank int
	Size int

	pairs []transport.Pair // indexed by peer rank; self entry nil

	closeOnce sync.Once
	onClose   func()
}

// Pair returns the connected pair to the given peer rank, nil for the
// context's own rank.
func (c *Context) Pair(rank int) transport.Pair {
	return c.pairs[rank]
}

// Close releases every pair. Idempotent. Must happen before the backing
// rendezvous store is finalized.
func (c *Context) Close() error {
	var firstErr error
	c.closeOnce.Do(func() {
		for _, p := range c.pairs {
			if p == nil {
				continue
			}
			if err := p.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if c.onClose != nil {
			c.onClose()
		}
	})
	return firstErr
}

// connectFullMesh builds one pair per peer. Each rank publishes the
// listening address of every pair it will accept on; for a given (i, j)
// the lower rank dials the higher rank's published address while the
// higher rank accepts. seq isolates the key space of independent meshes
// built from the same store prefix.
func connectFullMesh(ctx context.Context, store Store, device transport.Device, rank, size, seq int) ([]transport.Pair, error) {
	pairs := make([]transport.Pair, size)
	cleanup := func() {
		for _, p := range pairs {
			if p != nil {
				_ = p.Close()
			}
		}
	}

	for peer := 0; peer < size; peer++ {
		if peer == rank {
			continue
		}
		pair, err := device.NewPair()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("rendezvous: pair for peer %d: %w", peer, err)
		}
		pairs[peer] = pair

		// Only the accepting (higher) side needs its address known.
		if rank > peer {
			key := meshKey(seq, rank, peer)
			if err := store.Set(ctx, key, []byte(pair.Addr())); err != nil {
				cleanup()
				return nil, err
			}
		}
	}

	for peer := 0; peer < size; peer++ {
		if peer == rank {
			continue
		}
		if rank < peer {
			addr, err := store.Wait(ctx, meshKey(seq, peer, rank))
			if err != nil {
				cleanup()
				return nil, err
			}
			if err := pairs[peer].Dial(ctx, string(addr)); err != nil {
				cleanup()
				return nil, fmt.Errorf("rendezvous: dial peer %d: %w", peer, err)
			}
		} else {
			if err := pairs[peer].Accept(ctx); err != nil {
				cleanup()
				return nil, fmt.Errorf("rendezvous: accept peer %d: %w", peer, err)
			}
		}
	}
	return pairs, nil
}

func meshKey(seq, acceptor, dialer int) string {
	return fmt.Sprintf("mesh/%d/addr/%d/%d", seq, acceptor, dialer)
}
