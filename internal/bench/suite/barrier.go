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

	"collbench/internal/bench/collective"
	"collbench/internal/bench/rendezvous"
	"collbench/internal/bench/runner"
)

// barrierBenchmark times one all-to-one barrier round per iteration over
// the worker's own context. Element count is irrelevant to the operation;
// it only scales the reported bandwidth denominator.
type barrierBenchmark struct {
	barrier *collective.Barrier
}

func newBarrierFactory() runner.Factory {
	return func(c *rendezvous.Context) (runner.Benchmark, error) {
		return &barrierBenchmark{barrier: collective.NewBarrier(c)}, nil
	}
}

func (b *barrierBenchmark) Initialize(int) error { return nil }

func (b *barrierBenchmark) Run() error {
	return b.barrier.Run(context.Background())
}

func (b *barrierBenchmark) Verify() error { return nil }
