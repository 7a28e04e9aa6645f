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

package suite

import (
	"context"
	"fmt"

	"collbench/internal/bench/rendezvous"
	"collbench/internal/bench/runner"
)

// ringBenchmark shifts a buffer of n elements one step around the ring:
// every rank sends to (rank+1) mod size and receives from (rank-1+size)
// mod size. At size 1 the operation is a no-op.
type ringBenchmark struct {
	c           *rendezvous.Context
	elementSize int
	sendBuf     []byte
	recvBuf     []byte
}

func newRingFactory(elementSize int) runner.Factory {
	return func(c *rendezvous.Context) (runner.Benchmark, error) {
		return &ringBenchmark{c: c, elementSize: elementSize}, nil
	}
}

func (r *ringBenchmark) Initialize(n int) error {
	size := n * r.elementSize
	r.sendBuf = make([]byte, size)
	r.recvBuf = make([]byte, size)
	fillPattern(r.sendBuf, r.c.Rank)
	return nil
}

func (r *ringBenchmark) Run() error {
	if r.c.Size == 1 {
		return nil
	}
	next := (r.c.Rank + 1) % r.c.Size
	prev := (r.c.Rank - 1 + r.c.Size) % r.c.Size
	ctx := context.Background()

	// Send concurrently with the receive: with blocking pairs, all ranks
	// sending first would deadlock once buffers fill.
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- r.c.Pair(next).Send(ctx, r.sendBuf)
	}()
	got, err := r.c.Pair(prev).Recv(ctx)
	if err != nil {
		<-sendErr
		return fmt.Errorf("ring recv from %d: %w", prev, err)
	}
	if len(got) != len(r.recvBuf) {
		<-sendErr
		return fmt.Errorf("ring recv: got %d bytes, want %d", len(got), len(r.recvBuf))
	}
	copy(r.recvBuf, got)
	if err := <-sendErr; err != nil {
		return fmt.Errorf("ring send to %d: %w", next, err)
	}
	return nil
}

func (r *ringBenchmark) Verify() error {
	if r.c.Size == 1 {
		return nil
	}
	prev := (r.c.Rank - 1 + r.c.Size) % r.c.Size
	for i, b := range r.recvBuf {
		if want := patternByte(prev, i); b != want {
			return fmt.Errorf("ring verify: byte %d is 0x%02x, want 0x%02x from rank %d", i, b, want, prev)
		}
	}
	return nil
}

// fillPattern writes a rank-tagged byte sequence so a receiver can prove
// where a buffer came from.
func fillPattern(buf []byte, rank int) {
	for i := range buf {
		buf[i] = patternByte(rank, i)
	}
}

func patternByte(rank, i int) byte {
	return byte((rank*31 + i) % 251)
}
