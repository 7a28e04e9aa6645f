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

package runner

import (
	"errors"
	"time"

	"collbench/internal/bench/rendezvous"
)

// Options is the configuration snapshot for one Runner. Read-only for the
// Runner's lifetime.
type Options struct {
	// Benchmark names the timed operation, for reporting.
	Benchmark string
	// Transport selects the device kind ("tcp", "unix").
	Transport string

	// Threads is the local worker count; one OS thread each.
	Threads int
	// Elements fixes the element count; 0 runs the geometric sweep.
	Elements int
	// ElementSize is the per-element byte size used for bandwidth.
	ElementSize int

	// IterationCount fixes the measurement iterations; 0 switches to
	// time-based negotiation against IterationTime.
	IterationCount int
	// IterationTime is the per-point target duration for time-based runs.
	IterationTime time.Duration
	// WarmupIterationCount sizes the warmup pass that feeds negotiation.
	WarmupIterationCount int

	// Sync and BusyPoll are transport mode flags applied to every pair.
	Sync     bool
	BusyPoll bool
	// Verify runs each benchmark once and checks its output before timing.
	Verify bool

	// Group membership for store-based rendezvous.
	Rank      int
	Size      int
	RedisHost string
	RedisPort int
	// Prefix namespaces this run's keys in a shared store.
	Prefix string
	// SharedPath is the address-exchange directory for launcher runs.
	SharedPath string

	// ShowNanos reports latency columns in nanoseconds.
	ShowNanos bool
}

// DefaultOptions returns the baseline configuration; the CLI overlays
// flags and environment on top of it.
func DefaultOptions() Options {
	return Options{
		Benchmark:            "barrier",
		Transport:            "tcp",
		Threads:              1,
		ElementSize:          4,
		IterationTime:        2 * time.Second,
		WarmupIterationCount: 5,
		Size:                 1,
	}
}

func (o Options) validate() error {
	if o.Threads < 1 {
		return errors.New("runner: thread count must be at least 1")
	}
	if o.ElementSize < 1 {
		return errors.New("runner: element size must be at least 1 byte")
	}
	if o.IterationCount <= 0 {
		// Time-based mode: both the target duration and the warmup pass
		// that estimates per-iteration latency must be configured.
		if o.IterationTime <= 0 {
			return errors.New("runner: iteration time must be positive when no fixed iteration count is set")
		}
		if o.WarmupIterationCount < 1 {
			return errors.New("runner: warmup iteration count must be at least 1 when negotiating iterations")
		}
	}
	return nil
}

func (o Options) rendezvousConfig() rendezvous.Config {
	return rendezvous.Config{
		RedisHost:  o.RedisHost,
		RedisPort:  o.RedisPort,
		Rank:       o.Rank,
		Size:       o.Size,
		Prefix:     o.Prefix,
		SharedPath: o.SharedPath,
	}
}
