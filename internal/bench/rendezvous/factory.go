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
	"sync/atomic"

	"collbench/internal/bench/transport"
)

// ContextFactory produces independent full-mesh Contexts sharing one
// group membership. Every Context must be closed before Finalize; the
// backing store (and, for MPI-style launchers, the process-group handle
// it stands for) must outlive every context referencing it.
type ContextFactory struct {
	store  Store
	device transport.Device
	rank   int
	size   int

	seq       atomic.Int64
	live      atomic.Int64
	finalized atomic.Bool
}

func NewContextFactory(store Store, device transport.Device, rank, size int) (*ContextFactory, error) {
	if size < 1 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("rendezvous: invalid rank/size %d/%d", rank, size)
	}
	return &ContextFactory{store: store, device: device, rank: rank, size: size}, nil
}

func (f *ContextFactory) Rank() int { return f.rank }
func (f *ContextFactory) Size() int { return f.size }

// Live reports how many contexts produced by this factory are still open.
func (f *ContextFactory) Live() int { return int(f.live.Load()) }

// MakeContext connects a fresh full mesh. Called once per local worker
// plus once per collective primitive. All ranks must call MakeContext the
// same number of times in the same order; the monotonic sequence number
// keys each mesh's address exchange.
func (f *ContextFactory) MakeContext(ctx context.Context) (*Context, error) {
	if f.finalized.Load() {
		return nil, fmt.Errorf("rendezvous: factory already finalized")
	}
	seq := int(f.seq.Add(1))
	pairs, err := connectFullMesh(ctx, f.store, f.device, f.rank, f.size, seq)
	if err != nil {
		return nil, err
	}
	f.live.Add(1)
	return &Context{
		Rank:    f.rank,
		Size:    f.size,
		pairs:   pairs,
		onClose: func() { f.live.Add(-1) },
	}, nil
}

// Finalize closes the backing store. It is an error to finalize while any
// context produced by this factory is still open; the caller's teardown
// order (contexts, then factory) is a correctness requirement, not a
// convention.
func (f *ContextFactory) Finalize() error {
	if !f.finalized.CompareAndSwap(false, true) {
		return nil
	}
	if n := f.live.Load(); n != 0 {
		return fmt.Errorf("rendezvous: %d contexts still open at finalize", n)
	}
	return f.store.Close()
}
