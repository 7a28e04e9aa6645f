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

package collective

import (
	"context"
	"encoding/binary"
	"fmt"

	"collbench/internal/bench/rendezvous"
)

// rootRank holds the authoritative value for a broadcast.
const rootRank = 0

// Broadcast distributes one int64 from the root rank to every member.
// Used to agree on the warmup median so all ranks compute an identical
// iteration count.
type Broadcast struct {
	c *rendezvous.Context
}

// NewBroadcast wraps a dedicated context. The Broadcast owns it; Close
// releases it.
func NewBroadcast(c *rendezvous.Context) *Broadcast {
	return &Broadcast{c: c}
}

// Run broadcasts value from the root rank. Every rank returns the root's
// value; non-root callers' value argument is ignored.
func (b *Broadcast) Run(ctx context.Context, value int64) (int64, error) {
	if b.c.Size == 1 {
		return value, nil
	}
	if b.c.Rank == rootRank {
		var frame [8]byte
		binary.BigEndian.PutUint64(frame[:], uint64(value))
		for rank := 0; rank < b.c.Size; rank++ {
			if rank == rootRank {
				continue
			}
			if err := b.c.Pair(rank).Send(ctx, frame[:]); err != nil {
				return 0, fmt.Errorf("broadcast: to rank %d: %w", rank, err)
			}
		}
		return value, nil
	}

	frame, err := b.c.Pair(rootRank).Recv(ctx)
	if err != nil {
		return 0, fmt.Errorf("broadcast: from root: %w", err)
	}
	if len(frame) != 8 {
		return 0, fmt.Errorf("broadcast: unexpected frame length %d", len(frame))
	}
	return int64(binary.BigEndian.Uint64(frame)), nil
}

// Close releases the broadcast's context.
func (b *Broadcast) Close() error { return b.c.Close() }
