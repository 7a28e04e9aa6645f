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

import "collbench/internal/bench/rendezvous"

// Benchmark is the user-supplied timed operation. Run is typically a
// cross-process collective call: every process in the group must invoke
// it the same number of times or the group deadlocks, which is why the
// Runner negotiates a single iteration count for everyone.
type Benchmark interface {
	// Initialize sizes the benchmark's buffers for n elements.
	Initialize(n int) error
	// Run executes the timed operation once.
	Run() error
	// Verify checks the output of the most recent Run.
	Verify() error
}

// Factory builds one Benchmark per local worker against that worker's
// own group context. Workers share nothing.
type Factory func(c *rendezvous.Context) (Benchmark, error)
