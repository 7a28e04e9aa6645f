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

// Package suite provides the built-in timed operations. They double as
// executable examples of the Benchmark contract; real users supply their
// own collective operations through runner.Factory.
package suite

import (
	"fmt"

	"collbench/internal/bench/runner"
)

// New resolves a built-in benchmark by name into a factory.
func New(name string, elementSize int) (runner.Factory, error) {
	switch name {
	case "barrier":
		return newBarrierFactory(), nil
	case "sendrecv_ring":
		return newRingFactory(elementSize), nil
	default:
		return nil, fmt.Errorf("suite: unknown benchmark %q", name)
	}
}

// Names lists the built-in benchmarks for CLI help output.
func Names() []string {
	return []string{"barrier", "sendrecv_ring"}
}
