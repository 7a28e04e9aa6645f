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

// Package collective implements the two tiny collective algorithms the
// harness needs for cross-process agreement: an all-to-one barrier and a
// one-to-all broadcast. Each owns a dedicated full-mesh context.
//
// Neither primitive carries a timeout: a non-responsive peer stalls the
// whole group. That is acceptable for a benchmarking tool, and the only
// escape hatch is cancelling the passed context.
package collective

import (
	"context"
	"fmt"
	"time"

	"collbench/internal/bench/rendezvous"
	"collbench/internal/bench/telemetry"
)

// coordinatorRank collects arrivals and issues releases.
const coordinatorRank = 0

const (
	frameArrive  = byte(0x01)
	frameRelease = byte(0x02)
)

// Barrier aligns all group members at a point: every rank signals arrival
// to the coordinator and blocks until the coordinator has seen every
// rank, then all proceed.
type Barrier struct {
	c *rendezvous.Context
}

// NewBarrier wraps a dedicated context. The Barrier owns it; Close
// releases it.
func NewBarrier(c *rendezvous.Context) *Barrier {
	return &Barrier{c: c}
}

// Run executes one barrier round.
func (b *Barrier) Run(ctx context.Context) error {
	start := time.Now()
	defer func() { telemetry.ObserveBarrierWait(time.Since(start)) }()

	if b.c.Size == 1 {
		return nil
	}
	if b.c.Rank == coordinatorRank {
		for rank := 0; rank < b.c.Size; rank++ {
			if rank == coordinatorRank {
				continue
			}
			frame, err := b.c.Pair(rank).Recv(ctx)
			if err != nil {
				return fmt.Errorf("barrier: arrival from rank %d: %w", rank, err)
			}
			if len(frame) != 1 || frame[0] != frameArrive {
				return fmt.Errorf("barrier: unexpected frame %x from rank %d", frame, rank)
			}
		}
		for rank := 0; rank < b.c.Size; rank++ {
			if rank == coordinatorRank {
				continue
			}
			if err := b.c.Pair(rank).Send(ctx, []byte{frameRelease}); err != nil {
				return fmt.Errorf("barrier: release to rank %d: %w", rank, err)
			}
		}
		return nil
	}

	pair := b.c.Pair(coordinatorRank)
	if err := pair.Send(ctx, []byte{frameArrive}); err != nil {
		return fmt.Errorf("barrier: arrival: %w", err)
	}
	frame, err := pair.Recv(ctx)
	if err != nil {
		return fmt.Errorf("barrier: awaiting release: %w", err)
	}
	if len(frame) != 1 || frame[0] != frameRelease {
		return fmt.Errorf("barrier: unexpected release frame %x", frame)
	}
	return nil
}

// Close releases the barrier's context.
func (b *Barrier) Close() error { return b.c.Close() }
