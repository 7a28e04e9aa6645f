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
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"collbench/internal/bench/rendezvous"
	"collbench/internal/bench/report"
	"collbench/internal/bench/stats"
	"collbench/internal/bench/transport"
)

func distributionOf(t *testing.T, s *stats.Samples) (*stats.Distribution, error) {
	t.Helper()
	return stats.NewDistribution(s)
}

// fakeBenchmark counts invocations; optionally sleeps and fails Verify.
type fakeBenchmark struct {
	mu          sync.Mutex
	initialized int
	runs        int
	perRun      time.Duration
	verifyErr   error
	runErr      error
}

func (f *fakeBenchmark) Initialize(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = n
	return nil
}

func (f *fakeBenchmark) Run() error {
	f.mu.Lock()
	f.runs++
	err := f.runErr
	f.mu.Unlock()
	if f.perRun > 0 {
		time.Sleep(f.perRun)
	}
	return err
}

func (f *fakeBenchmark) Verify() error { return f.verifyErr }

// recordingReporter captures everything the runner emits.
type recordingReporter struct {
	mu      sync.Mutex
	begins  int
	records []report.Record
}

func (r *recordingReporter) Begin(report.Meta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begins++
}

func (r *recordingReporter) Report(rec report.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordingReporter) Flush() error { return nil }

// closeTrackingStore observes teardown ordering: Close must not happen
// while contexts are live.
type closeTrackingStore struct {
	rendezvous.Store
	mu     sync.Mutex
	closed bool
}

func (s *closeTrackingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.Store.Close()
}

func (s *closeTrackingStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// newLocalRunner builds a rank-of-group runner over a shared file-store
// directory, each as if it were its own process.
func newLocalRunner(t *testing.T, dir string, rank, size int, opts Options, rep report.Reporter) (*Runner, *closeTrackingStore) {
	t.Helper()
	fs, err := rendezvous.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	store := &closeTrackingStore{Store: fs}
	device, err := transport.NewDevice("tcp")
	if err != nil {
		t.Fatal(err)
	}
	factory, err := rendezvous.NewContextFactory(store, device, rank, size)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	r, err := newWithFactory(ctx, opts, device, factory, rep)
	if err != nil {
		t.Fatalf("rank %d: %v", rank, err)
	}
	return r, store
}

// With T workers each producing k samples, the merged distribution holds
// exactly T*k samples and bandwidth follows the documented formula.
func TestRunner_FixedIterations(t *testing.T) {
	opts := DefaultOptions()
	opts.Threads = 2
	opts.Elements = 1000
	opts.ElementSize = 4
	opts.IterationCount = 5
	opts.Benchmark = "fake"

	rep := &recordingReporter{}
	r, _ := newLocalRunner(t, t.TempDir(), 0, 1, opts, rep)
	defer r.Close()

	benches := make([]*fakeBenchmark, 0, 2)
	var mu sync.Mutex
	fn := func(c *rendezvous.Context) (Benchmark, error) {
		b := &fakeBenchmark{}
		mu.Lock()
		benches = append(benches, b)
		mu.Unlock()
		return b, nil
	}

	if err := r.Run(context.Background(), fn); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(benches) != 2 {
		t.Fatalf("factory called %d times, want once per worker", len(benches))
	}
	for i, b := range benches {
		if b.initialized != 1000 {
			t.Fatalf("worker %d initialized with n=%d", i, b.initialized)
		}
		if b.runs != 5 {
			t.Fatalf("worker %d ran %d iterations, want 5", i, b.runs)
		}
	}
	if rep.begins != 1 {
		t.Fatalf("Begin called %d times", rep.begins)
	}
	if len(rep.records) != 1 {
		t.Fatalf("got %d records, want 1", len(rep.records))
	}
	rec := rep.records[0]
	if rec.Samples != 10 {
		t.Fatalf("merged %d samples, want threads*iterations = 10", rec.Samples)
	}
	if rec.Elements != 1000 || rec.ElementSize != 4 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.MinNanos > rec.P50Nanos || rec.P50Nanos > rec.P99Nanos || rec.P99Nanos > rec.MaxNanos {
		t.Fatalf("latency ordering violated: %+v", rec)
	}
}

// The exact bandwidth example: 1000 elements x 4 bytes x 20 samples over
// 2,000,000ns across 2 threads is ~74.5 GiB/s.
func TestBuildRecord_BandwidthFormula(t *testing.T) {
	s := &stats.Samples{}
	for i := 0; i < 20; i++ {
		s.Add(100_000) // sum = 2,000,000ns
	}
	d, err := stats.NewDistribution(s)
	if err != nil {
		t.Fatal(err)
	}
	rec := buildRecord(1000, 4, 2, d)

	// totalBytes = 80,000; totalNanos = 1,000,000;
	// 80,000 * 1e9 / 1,000,000 / 2^30 = 74.50580...
	want := 80_000.0 * 1e9 / 1_000_000.0 / float64(1<<30)
	if math.Abs(rec.GiBps-want) > 1e-9 {
		t.Fatalf("bandwidth %.9f, want %.9f", rec.GiBps, want)
	}
	if math.Abs(rec.GiBps-74.5058) > 1e-3 {
		t.Fatalf("bandwidth %.4f GiB/s, want ~74.5058", rec.GiBps)
	}
}

// Every rank computes the same count from the same broadcast median,
// regardless of what its local warmup showed.
func TestNegotiateIterations(t *testing.T) {
	cases := []struct {
		target, median int64
		want           int
	}{
		{2_000_000_000, 1_000_000, 2000},
		{1_000_000_000, 3_000_000, 333},
		{1_000, 1_000_000, 1}, // floors to zero, clamped to 1
		{1_000_000, 0, 1},     // degenerate median
		{1_000_000, -5, 1},
	}
	for _, c := range cases {
		if got := NegotiateIterations(c.target, c.median); got != c.want {
			t.Errorf("NegotiateIterations(%d, %d) = %d, want %d", c.target, c.median, got, c.want)
		}
	}

	// Two ranks whose local medians differ still agree after broadcast.
	broadcastMedian := int64(250_000)
	rank0 := NegotiateIterations(time.Second.Nanoseconds(), broadcastMedian)
	rank1 := NegotiateIterations(time.Second.Nanoseconds(), broadcastMedian)
	if rank0 != rank1 {
		t.Fatalf("ranks disagree: %d vs %d", rank0, rank1)
	}
}

// A verification mismatch aborts the point before any timing happens and
// surfaces ErrVerification.
func TestRunner_VerificationFailure(t *testing.T) {
	opts := DefaultOptions()
	opts.Elements = 100
	opts.IterationCount = 3
	opts.Verify = true

	rep := &recordingReporter{}
	r, _ := newLocalRunner(t, t.TempDir(), 0, 1, opts, rep)
	defer r.Close()

	fn := func(c *rendezvous.Context) (Benchmark, error) {
		return &fakeBenchmark{verifyErr: errors.New("output mismatch")}, nil
	}
	err := r.Run(context.Background(), fn)
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
	if len(rep.records) != 0 {
		t.Fatalf("no records expected after verification failure, got %d", len(rep.records))
	}
}

// A failing closure is fatal for the run; no partial results are reported.
func TestRunner_ClosureFailureIsFatal(t *testing.T) {
	opts := DefaultOptions()
	opts.Elements = 100
	opts.IterationCount = 3

	rep := &recordingReporter{}
	r, _ := newLocalRunner(t, t.TempDir(), 0, 1, opts, rep)
	defer r.Close()

	boom := errors.New("transport reset")
	fn := func(c *rendezvous.Context) (Benchmark, error) {
		return &fakeBenchmark{runErr: boom}, nil
	}
	if err := r.Run(context.Background(), fn); !errors.Is(err, boom) {
		t.Fatalf("expected closure error, got %v", err)
	}
	if len(rep.records) != 0 {
		t.Fatalf("no records expected after fatal closure error, got %d", len(rep.records))
	}
}

// Teardown releases every context before the rendezvous backend closes.
func TestRunner_TeardownOrder(t *testing.T) {
	opts := DefaultOptions()
	opts.Elements = 100
	opts.IterationCount = 2

	rep := &recordingReporter{}
	r, store := newLocalRunner(t, t.TempDir(), 0, 1, opts, rep)

	fn := func(c *rendezvous.Context) (Benchmark, error) {
		return &fakeBenchmark{}, nil
	}
	if err := r.Run(context.Background(), fn); err != nil {
		t.Fatal(err)
	}
	if store.isClosed() {
		t.Fatal("store closed before runner teardown")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !store.isClosed() {
		t.Fatal("rendezvous backend not finalized on close")
	}
}

// Invalid configurations fail fast at construction.
func TestRunner_OptionValidation(t *testing.T) {
	rep := &recordingReporter{}

	opts := DefaultOptions()
	opts.IterationCount = 0
	opts.IterationTime = 0
	if _, err := New(context.Background(), opts, rep); err == nil {
		t.Fatal("expected error for time-based mode without a target duration")
	}

	opts = DefaultOptions()
	opts.Transport = "ibverbs"
	opts.IterationCount = 10
	if _, err := New(context.Background(), opts, rep); !errors.Is(err, transport.ErrUnknownTransport) {
		t.Fatalf("expected ErrUnknownTransport, got %v", err)
	}
}

// Two in-process "ranks" run the full protocol: negotiation broadcast,
// barriers, measurement. Only rank 0 reports.
func TestRunner_TwoRanksEndToEnd(t *testing.T) {
	dir := t.TempDir()
	const size = 2

	mkOpts := func(rank int) Options {
		opts := DefaultOptions()
		opts.Threads = 2
		opts.Elements = 500
		opts.IterationCount = 0
		opts.IterationTime = 30 * time.Millisecond
		opts.WarmupIterationCount = 3
		opts.Rank = rank
		opts.Size = size
		return opts
	}

	reporters := [size]*recordingReporter{{}, {}}
	runners := [size]*Runner{}

	// Construction itself is collective (broadcast/barrier meshes), so
	// both runners must be built concurrently.
	var wg sync.WaitGroup
	errs := [size]error{}
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			fs, err := rendezvous.NewFileStore(dir)
			if err != nil {
				errs[rank] = err
				return
			}
			device, err := transport.NewDevice("tcp")
			if err != nil {
				errs[rank] = err
				return
			}
			factory, err := rendezvous.NewContextFactory(fs, device, rank, size)
			if err != nil {
				errs[rank] = err
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			runners[rank], errs[rank] = newWithFactory(ctx, mkOpts(rank), device, factory, reporters[rank])
		}(rank)
	}
	wg.Wait()
	for rank, err := range errs {
		if err != nil {
			t.Fatalf("rank %d construction: %v", rank, err)
		}
	}
	defer func() {
		for _, r := range runners {
			if r != nil {
				_ = r.Close()
			}
		}
	}()

	fn := func(c *rendezvous.Context) (Benchmark, error) {
		return &fakeBenchmark{perRun: 500 * time.Microsecond}, nil
	}
	runErrs := [size]error{}
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			runErrs[rank] = runners[rank].Run(ctx, fn)
		}(rank)
	}
	wg.Wait()
	for rank, err := range runErrs {
		if err != nil {
			t.Fatalf("rank %d run: %v", rank, err)
		}
	}

	if reporters[0].begins != 1 || len(reporters[0].records) != 1 {
		t.Fatalf("rank 0 must report exactly one record, got begins=%d records=%d",
			reporters[0].begins, len(reporters[0].records))
	}
	if reporters[1].begins != 0 || len(reporters[1].records) != 0 {
		t.Fatalf("rank 1 must never report, got begins=%d records=%d",
			reporters[1].begins, len(reporters[1].records))
	}

	rec := reporters[0].records[0]
	// Samples = threads * negotiated iterations; the count is a group
	// agreement, so it must be a multiple of the thread count.
	if rec.Samples == 0 || rec.Samples%2 != 0 {
		t.Fatalf("unexpected sample count %d", rec.Samples)
	}
}
