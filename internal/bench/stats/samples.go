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

// Package stats holds raw latency measurements and their derived sorted
// statistics for a benchmark run.
package stats

import "time"

// Samples is an append-only collection of elapsed-time measurements in
// nanoseconds. A Samples value is written by exactly one worker goroutine;
// merging happens only after the owning job has signaled completion, which
// establishes the happens-before edge. No internal locking.
type Samples struct {
	values []int64
}

// Add appends one measurement.
func (s *Samples) Add(nanos int64) {
	s.values = append(s.values, nanos)
}

// AddSince appends the elapsed time since start, read from the monotonic clock.
func (s *Samples) AddSince(start time.Time) {
	s.Add(time.Since(start).Nanoseconds())
}

// Merge appends all of other's measurements. Order is irrelevant; only the
// sorted statistics derived later matter.
func (s *Samples) Merge(other *Samples) {
	if other == nil {
		return
	}
	s.values = append(s.values, other.values...)
}

// Len reports the number of measurements collected so far.
func (s *Samples) Len() int {
	return len(s.values)
}
