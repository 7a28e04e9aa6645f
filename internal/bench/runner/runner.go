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

// Package runner orchestrates a distributed micro-benchmark: it owns the
// local worker pool, drives rendezvous, runs the group barrier and
// broadcast, negotiates the iteration count and merges per-worker samples
// into the reported distribution.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"collbench/internal/bench/collective"
	"collbench/internal/bench/rendezvous"
	"collbench/internal/bench/report"
	"collbench/internal/bench/stats"
	"collbench/internal/bench/telemetry"
	"collbench/internal/bench/transport"
)

// ErrVerification marks a correctness-pass mismatch. It aborts the sweep
// point's measurement and surfaces to the caller instead of producing
// meaningless statistics.
var ErrVerification = errors.New("runner: benchmark verification failed")

// Runner coordinates one process's share of a benchmark run.
type Runner struct {
	opts      Options
	device    transport.Device
	workers   []*Worker
	factory   *rendezvous.ContextFactory
	broadcast *collective.Broadcast
	barrier   *collective.Barrier
	reporter  report.Reporter
	log       *slog.Logger
}

// New builds a Runner: transport device, worker pool, rendezvous, then
// the broadcast and barrier primitives on their own contexts. Unknown
// transports and a missing rendezvous mechanism are irrecoverable.
func New(ctx context.Context, opts Options, reporter report.Reporter) (*Runner, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	device, err := transport.NewDevice(opts.Transport)
	if err != nil {
		return nil, err
	}
	factory, err := rendezvous.Rendezvous(ctx, opts.rendezvousConfig(), device)
	if err != nil {
		_ = device.Close()
		return nil, err
	}
	return newWithFactory(ctx, opts, device, factory, reporter)
}

func newWithFactory(ctx context.Context, opts Options, device transport.Device, factory *rendezvous.ContextFactory, reporter report.Reporter) (*Runner, error) {
	r := &Runner{
		opts:     opts,
		device:   device,
		factory:  factory,
		reporter: reporter,
		log:      slog.Default().With("component", "runner"),
	}

	for i := 0; i < opts.Threads; i++ {
		r.workers = append(r.workers, NewWorker())
	}

	// One dedicated context per collective primitive. All ranks create
	// them in the same order (broadcast, then barrier) so the mesh
	// sequence numbers line up.
	bcastCtx, err := factory.MakeContext(ctx)
	if err != nil {
		r.teardown()
		return nil, err
	}
	r.broadcast = collective.NewBroadcast(bcastCtx)

	barrierCtx, err := factory.MakeContext(ctx)
	if err != nil {
		r.teardown()
		return nil, err
	}
	r.barrier = collective.NewBarrier(barrierCtx)

	telemetry.SetGroupSize(factory.Size())
	r.log.Debug("runner ready",
		"transport", device.Name(), "rank", factory.Rank(), "size", factory.Size(),
		"threads", opts.Threads)
	return r, nil
}

// Rank is this process's position in the group.
func (r *Runner) Rank() int { return r.factory.Rank() }

// Size is the group's total population.
func (r *Runner) Size() int { return r.factory.Size() }

// Run executes the benchmark for the configured element count, or the
// full geometric sweep when none is fixed. Each sweep point is an
// independent, fully re-synchronized run.
func (r *Runner) Run(ctx context.Context, fn Factory) error {
	if r.Rank() == 0 {
		r.reporter.Begin(report.Meta{
			Device:    r.device.Name(),
			Benchmark: r.opts.Benchmark,
			Processes: r.Size(),
			Threads:   r.opts.Threads,
		})
	}

	if r.opts.Elements > 0 {
		return r.runPoint(ctx, fn, r.opts.Elements)
	}

	// Logarithmic sweep with x1, x2, x5 sub-steps per decade.
	for decade := 100; decade <= 1_000_000; decade *= 10 {
		for _, mult := range []int{1, 2, 5} {
			if err := r.runPoint(ctx, fn, decade*mult); err != nil {
				return err
			}
		}
	}
	return nil
}

// runPoint measures one element count end to end: per-worker contexts and
// benchmarks, optional verification, iteration negotiation, the timed
// pass and reporting.
func (r *Runner) runPoint(ctx context.Context, fn Factory, n int) error {
	contexts := make([]*rendezvous.Context, 0, r.opts.Threads)
	defer func() {
		for _, c := range contexts {
			_ = c.Close()
		}
	}()

	// One context and benchmark object per worker, since workers share
	// nothing.
	benchmarks := make([]Benchmark, 0, r.opts.Threads)
	for i := 0; i < r.opts.Threads; i++ {
		c, err := r.factory.MakeContext(ctx)
		if err != nil {
			return err
		}
		contexts = append(contexts, c)

		bench, err := fn(c)
		if err != nil {
			return fmt.Errorf("runner: benchmark factory: %w", err)
		}
		if err := bench.Initialize(n); err != nil {
			return fmt.Errorf("runner: initialize n=%d: %w", n, err)
		}

		if r.opts.Sync {
			for rank := 0; rank < c.Size; rank++ {
				if p := c.Pair(rank); p != nil {
					p.SetSync(true, r.opts.BusyPoll)
				}
			}
		}

		// Correctness pass: one run and a verification per worker, with a
		// barrier so no worker anywhere starts timing before every worker
		// everywhere has verified.
		if r.opts.Verify {
			if err := bench.Run(); err != nil {
				return fmt.Errorf("runner: verification run: %w", err)
			}
			if err := bench.Verify(); err != nil {
				return fmt.Errorf("%w: n=%d worker=%d: %v", ErrVerification, n, i, err)
			}
			if err := r.barrier.Run(ctx); err != nil {
				return err
			}
		}
		benchmarks = append(benchmarks, bench)
	}

	iterations := r.opts.IterationCount
	if iterations <= 0 {
		var err error
		iterations, err = r.negotiateIterations(ctx, benchmarks)
		if err != nil {
			return err
		}
		r.log.Debug("negotiated iteration count", "elements", n, "iterations", iterations)
	}

	latency, err := r.timedPass(ctx, benchmarks, iterations)
	if err != nil {
		return err
	}
	telemetry.ObserveIterations(iterations * r.opts.Threads)
	telemetry.ObserveSamples(latency.Len())

	if r.Rank() == 0 {
		r.reporter.Report(buildRecord(n, r.opts.ElementSize, r.opts.Threads, latency))
	}
	return nil
}

// negotiateIterations runs the warmup pass and derives a group-wide
// iteration count. The warmup median is broadcast from rank 0 so every
// process computes the identical count: the timed closure is itself a
// collective call, and a count mismatch produces a hang, not just a bad
// measurement.
func (r *Runner) negotiateIterations(ctx context.Context, benchmarks []Benchmark) (int, error) {
	warmup, err := r.timedPass(ctx, benchmarks, r.opts.WarmupIterationCount)
	if err != nil {
		return 0, fmt.Errorf("runner: warmup: %w", err)
	}
	median, err := r.broadcast.Run(ctx, warmup.Percentile(0.5))
	if err != nil {
		return 0, err
	}
	return NegotiateIterations(r.opts.IterationTime.Nanoseconds(), median), nil
}

// timedPass assigns one job per worker, synchronized across processes by
// a group barrier, waits for completion and merges the sample sets.
func (r *Runner) timedPass(ctx context.Context, benchmarks []Benchmark, iterations int) (*stats.Distribution, error) {
	jobs := make([]*Job, r.opts.Threads)
	for i := 0; i < r.opts.Threads; i++ {
		bench := benchmarks[i]
		jobs[i] = NewJob(bench.Run, iterations)
	}

	// No process may start measuring before its peers are ready.
	if err := r.barrier.Run(ctx); err != nil {
		return nil, err
	}
	for i, job := range jobs {
		r.workers[i].Assign(job)
	}

	merged := &stats.Samples{}
	for _, job := range jobs {
		samples, err := job.Wait()
		if err != nil {
			return nil, err
		}
		merged.Merge(samples)
	}
	return stats.NewDistribution(merged)
}

// NegotiateIterations computes max(1, targetNanos / medianNanos). Every
// rank applies it to the same broadcast median, so all ranks agree.
func NegotiateIterations(targetNanos, medianNanos int64) int {
	if medianNanos <= 0 {
		return 1
	}
	iterations := targetNanos / medianNanos
	if iterations < 1 {
		return 1
	}
	return int(iterations)
}

// buildRecord derives the sweep-point record. Bandwidth is total bytes
// moved over the per-thread-normalized total time: with T threads running
// concurrently, wall time is the summed latency divided by T.
func buildRecord(elements, elementSize, threads int, latency *stats.Distribution) report.Record {
	totalBytes := float64(elements) * float64(elementSize) * float64(latency.Len())
	totalNanos := float64(latency.Sum()) / float64(threads)
	gibps := totalBytes * 1e9 / totalNanos / float64(1<<30)
	return report.Record{
		Elements:    elements,
		ElementSize: elementSize,
		MinNanos:    latency.Min(),
		P50Nanos:    latency.Percentile(0.50),
		P99Nanos:    latency.Percentile(0.99),
		MaxNanos:    latency.Max(),
		GiBps:       gibps,
		Samples:     latency.Len(),
	}
}

// Close tears the Runner down in the mandatory order: worker pool, then
// the collective primitives and their contexts, then the context factory
// and rendezvous backend. The backend must never be finalized while a
// context referencing it is still alive.
func (r *Runner) Close() error {
	return r.teardown()
}

func (r *Runner) teardown() error {
	for _, w := range r.workers {
		w.Shutdown()
	}
	var firstErr error
	if r.barrier != nil {
		if err := r.barrier.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.broadcast != nil {
		if err := r.broadcast.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := r.factory.Finalize(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.device.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
