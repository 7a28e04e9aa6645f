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
	"runtime"
	"sync"
	"sync/atomic"
)

// Worker is a long-lived execution unit bound to one OS thread. It
// accepts one Job at a time through a single-slot queue and runs it to
// completion. The pool is fixed-size for the Runner's lifetime.
type Worker struct {
	jobs     chan *Job
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// NewWorker spawns the worker's thread, idle until a job is assigned.
func NewWorker() *Worker {
	w := &Worker{
		jobs:     make(chan *Job, 1),
		stopChan: make(chan struct{}),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
	return w
}

// loop blocks until a job arrives or stop is signaled. Benchmark closures
// may rely on thread-local state (pinned buffers, NUMA placement), so the
// goroutine is locked to its OS thread for its whole life.
func (w *Worker) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		select {
		case <-w.stopChan:
			return
		case job := <-w.jobs:
			job.execute()
		}
	}
}

// Assign hands the worker a new job. The caller must not assign another
// job until the previous one has signaled completion; the Worker does not
// enforce this.
func (w *Worker) Assign(job *Job) {
	w.jobs <- job
}

// Shutdown is idempotent: it signals stop, wakes the idle loop and joins
// the thread. Safe to call even if no job was ever assigned. A job
// already executing runs its full iteration count first.
func (w *Worker) Shutdown() {
	if !atomic.CompareAndSwapUint32(&w.stopped, 0, 1) {
		return
	}
	close(w.stopChan)
	w.wg.Wait()
}
