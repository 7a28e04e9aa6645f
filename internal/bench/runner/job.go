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
	"fmt"
	"time"

	"collbench/internal/bench/stats"
)

// Job is one bounded unit of repeated timed work: run the closure
// `iterations` times back-to-back, one latency sample per iteration.
// A Job is created by the Runner, mutated only by the single Worker it is
// assigned to, and read back by the Runner after Wait returns.
type Job struct {
	fn         func() error
	iterations int
	samples    *stats.Samples
	done       chan struct{}
	err        error
}

// NewJob builds a job. An iteration count <= 0 yields a job that
// completes immediately with an empty sample set.
func NewJob(fn func() error, iterations int) *Job {
	return &Job{
		fn:         fn,
		iterations: iterations,
		samples:    &stats.Samples{},
		done:       make(chan struct{}),
	}
}

// execute runs on the owning Worker's thread. Iterations are strictly
// sequential; the first closure error aborts the remainder, since a
// failed collective call may have left peers blocked and further timing
// is meaningless.
func (j *Job) execute() {
	defer close(j.done)
	for i := 0; i < j.iterations; i++ {
		start := time.Now()
		if err := j.fn(); err != nil {
			j.err = fmt.Errorf("runner: job iteration %d: %w", i, err)
			return
		}
		j.samples.AddSince(start)
	}
}

// Wait blocks until the assigned Worker marks the job done and returns
// the collected samples. The close of the done channel is the
// happens-before edge that makes the samples safe to read.
func (j *Job) Wait() (*stats.Samples, error) {
	<-j.done
	return j.samples, j.err
}
