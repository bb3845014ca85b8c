package perf

import "sync"

// Task is a unit of work dispatched to the worker pool.
type Task func()

// WorkerPool is a fixed-size pool of cooperative workers draining a bounded
// task queue, ported from
// original_source/server/src/grpc/performance/worker_pool.rs.
type WorkerPool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

// NewWorkerPool spawns workerCount goroutines consuming a queue bounded at
// queueCapacity.
func NewWorkerPool(workerCount, queueCapacity int) *WorkerPool {
	wp := &WorkerPool{tasks: make(chan Task, queueCapacity)}
	wp.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go wp.run()
	}
	return wp
}

func (wp *WorkerPool) run() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		task()
	}
}

// Spawn enqueues task, blocking while the queue is full, so a caller that
// uses it is held back upstream of the workers. The streaming processor
// uses TrySpawn instead.
func (wp *WorkerPool) Spawn(task Task) {
	wp.tasks <- task
}

// TrySpawn enqueues task without blocking, reporting false if the queue is
// full. Used by the streaming processor's non-blocking back-pressure path.
func (wp *WorkerPool) TrySpawn(task Task) bool {
	select {
	case wp.tasks <- task:
		return true
	default:
		return false
	}
}

// Shutdown closes the queue and waits for every in-flight task to finish; no
// new task may be spawned afterward.
func (wp *WorkerPool) Shutdown() {
	close(wp.tasks)
	wp.wg.Wait()
}

// QueueDepth reports how many tasks are currently buffered, for metrics
// sampling; it is a snapshot and may be stale by the time it's read.
func (wp *WorkerPool) QueueDepth() int {
	return len(wp.tasks)
}
