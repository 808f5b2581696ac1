package http

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

// WorkerExit describes how a worker goroutine ended.
type WorkerExit struct {
	Worker uint64

	// Returned is true when the job returned normally. Otherwise it panicked
	// (Panic and Stack are set) or called runtime.Goexit (both are nil).
	Returned bool
	Panic    any
	Stack    []byte
}

func (exit WorkerExit) Abnormal() bool {
	return !exit.Returned
}

func (exit WorkerExit) String() string {
	switch {
	case exit.Returned:
		return fmt.Sprintf("worker %d returned", exit.Worker)
	case exit.Panic != nil:
		return fmt.Sprintf("worker %d panicked: %v", exit.Worker, exit.Panic)
	default:
		return fmt.Sprintf("worker %d exited", exit.Worker)
	}
}

// WorkerPool runs detached worker goroutines and reports each one's end on a
// bounded channel, so a supervisor can block until a replacement is needed
// instead of polling.
type WorkerPool struct {
	exits   chan WorkerExit
	nextID  atomic.Uint64
	running atomic.Int64
	// pending counts jobs whose exit has not been taken by WaitForExit.
	pending atomic.Int64
}

// NewWorkerPool creates a pool for size concurrent workers. The exit channel
// holds size events, enough for every worker to end before anyone waits.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		panic("http: worker pool size must be > 0")
	}
	return &WorkerPool{
		exits: make(chan WorkerExit, size),
	}
}

// Execute runs job once on a new goroutine. Panics are recovered and,
// like any other way the job ends, reported to WaitForExit.
//
// At most size jobs may be pending, counting running jobs and exits not yet
// taken by WaitForExit. Execute panics past that, since the extra exit could
// never be delivered.
func (wp *WorkerPool) Execute(job func()) {
	if wp.pending.Add(1) > int64(cap(wp.exits)) {
		wp.pending.Add(-1)
		panic(fmt.Sprintf("http: worker pool full: %d jobs pending", cap(wp.exits)))
	}
	exit := WorkerExit{Worker: wp.nextID.Add(1)}
	wp.running.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				exit.Panic = r
				exit.Stack = debug.Stack()
			}
			wp.running.Add(-1)
			wp.exits <- exit
		}()

		job()
		exit.Returned = true
	}()
}

// WaitForExit blocks until a worker has ended, or ctx is done.
func (wp *WorkerPool) WaitForExit(ctx context.Context) (WorkerExit, error) {
	select {
	case exit := <-wp.exits:
		wp.pending.Add(-1)
		return exit, nil
	case <-ctx.Done():
		return WorkerExit{}, ctx.Err()
	}
}

// Running is the number of workers that have not ended yet.
func (wp *WorkerPool) Running() int {
	return int(wp.running.Load())
}
