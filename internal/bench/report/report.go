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

// Package report defines the harness's reporting surface: one record per
// sweep point, emitted by the coordinating rank only.
package report

import (
	"fmt"
	"io"
)

// Record is the result of one sweep point. Latencies are nanoseconds.
type Record struct {
	Elements    int     `json:"elements"`
	ElementSize int     `json:"element_size"`
	MinNanos    int64   `json:"min_ns"`
	P50Nanos    int64   `json:"p50_ns"`
	P99Nanos    int64   `json:"p99_ns"`
	MaxNanos    int64   `json:"max_ns"`
	GiBps       float64 `json:"gib_per_sec"`
	Samples     int     `json:"samples"`
}

// Meta describes the run a set of records belongs to.
type Meta struct {
	Device    string `json:"device"`
	Benchmark string `json:"benchmark"`
	Processes int    `json:"processes"`
	Threads   int    `json:"threads"`
}

// Reporter consumes records for one run. The Runner invokes a Reporter
// only on rank 0.
type Reporter interface {
	Begin(meta Meta)
	Report(rec Record)
	// Flush completes the run (writes files, trailing output).
	Flush() error
}

// TablePrinter writes the classic aligned benchmark table. Latency
// columns are microseconds unless ShowNanos is set.
type TablePrinter struct {
	W         io.Writer
	ShowNanos bool
}

func (t *TablePrinter) Begin(meta Meta) {
	fmt.Fprintf(t.W, "%-13s%s\n", "Device:", meta.Device)
	fmt.Fprintf(t.W, "%-13s%s\n", "Algorithm:", meta.Benchmark)
	fmt.Fprintf(t.W, "%-13sprocesses=%d, threads=%d\n\n", "Options:", meta.Processes, meta.Threads)

	suffix := "(us)"
	if t.ShowNanos {
		suffix = "(ns)"
	}
	fmt.Fprintf(t.W, "%11s%11s%11s%11s%11s%13s%11s\n",
		"elements",
		"min "+suffix, "p50 "+suffix, "p99 "+suffix, "max "+suffix,
		"avg (GB/s)", "samples")
}

func (t *TablePrinter) Report(rec Record) {
	div := int64(1000)
	if t.ShowNanos {
		div = 1
	}
	fmt.Fprintf(t.W, "%11d%11d%11d%11d%11d%13.3f%11d\n",
		rec.Elements,
		rec.MinNanos/div, rec.P50Nanos/div, rec.P99Nanos/div, rec.MaxNanos/div,
		rec.GiBps, rec.Samples)
}

func (t *TablePrinter) Flush() error { return nil }

// MultiReporter fans records out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Begin(meta Meta) {
	for _, r := range m {
		r.Begin(meta)
	}
}

func (m MultiReporter) Report(rec Record) {
	for _, r := range m {
		r.Report(rec)
	}
}

func (m MultiReporter) Flush() error {
	var firstErr error
	for _, r := range m {
		if err := r.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
