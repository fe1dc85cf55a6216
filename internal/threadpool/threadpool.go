// Package threadpool provides the worker-pool abstractions the server uses
// to fan connection handling out across goroutines. Two implementations are
// provided: a naive pool that spawns one goroutine per job, and a
// shared-queue pool that runs a fixed number of long-lived workers draining
// a shared job channel.
package threadpool

import "runtime"

// ThreadPool dispatches jobs for execution, the way the server dispatches
// one job per accepted connection.
type ThreadPool interface {
	// Spawn schedules job for execution. It does not block on job's
	// completion.
	Spawn(job func())

	// Shutdown releases the pool. It does not wait for jobs that are
	// already running to finish; whether a later Spawn still runs its job
	// depends on the implementation.
	Shutdown()
}

// NaiveThreadPool spawns a fresh goroutine per job with no pooling or
// bound on concurrency. It is the simplest possible ThreadPool and a useful
// baseline to benchmark pooled implementations against.
type NaiveThreadPool struct {
	done chan struct{}
}

// NewNaiveThreadPool constructs a NaiveThreadPool. The size parameter is
// accepted for interface symmetry with pooled implementations but has no
// effect, since this pool imposes no concurrency bound.
func NewNaiveThreadPool(size int) (*NaiveThreadPool, error) {
	return &NaiveThreadPool{done: make(chan struct{})}, nil
}

// Spawn implements ThreadPool.
func (p *NaiveThreadPool) Spawn(job func()) {
	go job()
}

// Shutdown implements ThreadPool. NaiveThreadPool tracks no in-flight jobs,
// so Shutdown returns immediately, and a later Spawn still starts its job.
func (p *NaiveThreadPool) Shutdown() {
	close(p.done)
}

// SharedQueueThreadPool runs a fixed number of worker goroutines, all
// draining jobs from one shared, unbuffered channel, so Spawn blocks until a
// worker is free to take the job.
type SharedQueueThreadPool struct {
	jobs chan func()
	done chan struct{}
}

// NewSharedQueueThreadPool starts size worker goroutines. If size is 0 or
// negative, runtime.NumCPU is used.
func NewSharedQueueThreadPool(size int) (*SharedQueueThreadPool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	p := &SharedQueueThreadPool{
		jobs: make(chan func()),
		done: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		go p.worker()
	}

	return p, nil
}

func (p *SharedQueueThreadPool) worker() {
	for {
		select {
		case <-p.done:
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job()
		}
	}
}

// Spawn implements ThreadPool. A job spawned after Shutdown is dropped.
func (p *SharedQueueThreadPool) Spawn(job func()) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.jobs <- job:
	case <-p.done:
	}
}

// Shutdown implements ThreadPool, signaling every worker to stop pulling
// new jobs from the queue.
func (p *SharedQueueThreadPool) Shutdown() {
	close(p.done)
}
