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

package stats

import (
	"errors"
	"math"
	"sort"
)

// ErrInsufficientSamples is returned when a Distribution is requested over
// zero measurements. Statistics over an empty set are a misconfiguration,
// not a value.
var ErrInsufficientSamples = errors.New("stats: no latency samples")

// Distribution is an immutable sorted view over merged Samples. All
// accessors are read-only; the backing slice is copied at construction.
type Distribution struct {
	sorted []int64
	sum    int64
}

// NewDistribution sorts a copy of s and returns the derived view.
// Fails with ErrInsufficientSamples when s is empty.
func NewDistribution(s *Samples) (*Distribution, error) {
	if s == nil || s.Len() == 0 {
		return nil, ErrInsufficientSamples
	}
	sorted := make([]int64, len(s.values))
	copy(sorted, s.values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	return &Distribution{sorted: sorted, sum: sum}, nil
}

// Len reports the number of samples backing the distribution. Always >= 1.
func (d *Distribution) Len() int { return len(d.sorted) }

// Min returns the smallest sample.
func (d *Distribution) Min() int64 { return d.sorted[0] }

// Max returns the largest sample.
func (d *Distribution) Max() int64 { return d.sorted[len(d.sorted)-1] }

// Sum returns the total of all samples.
func (d *Distribution) Sum() int64 { return d.sum }

// Percentile returns the p-th percentile for p in [0, 1] using the
// nearest-rank method: the value at index round(p * (n-1)), half rounded
// up. No interpolation. p is clamped to [0, 1], so Percentile(0) == Min()
// and Percentile(1) == Max().
func (d *Distribution) Percentile(p float64) int64 {
	if p < 0 || math.IsNaN(p) {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	idx := int(math.Round(p * float64(len(d.sorted)-1)))
	return d.sorted[idx]
}
