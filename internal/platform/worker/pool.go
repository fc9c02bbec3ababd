// Package worker provides a typed worker pool. The rate monitor uses it to
// sample many vaults concurrently without unbounded goroutine fanout.
package worker

import (
	"context"
	"sync"
)

// Task is a unit of work producing a value of type T.
type Task[T any] struct {
	// ID identifies the task in results and logs
	ID string
	// Run executes the task
	Run func(ctx context.Context) (T, error)
}

// Result is the outcome of one task.
type Result[T any] struct {
	TaskID string
	Value  T
	Err    error
}

// Pool runs tasks on a fixed number of worker goroutines.
type Pool[T any] struct {
	workers int
	tasks   chan Task[T]
	results chan Result[T]
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool starts a pool of the given size. queueSize bounds how many tasks
// may be pending before Submit blocks.
func NewPool[T any](ctx context.Context, workers, queueSize int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	poolCtx, cancel := context.WithCancel(ctx)
	p := &Pool[T]{
		workers: workers,
		tasks:   make(chan Task[T], queueSize),
		results: make(chan Result[T], queueSize),
		ctx:     poolCtx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}

	return p
}

func (p *Pool[T]) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			value, err := task.Run(p.ctx)
			select {
			case p.results <- Result[T]{TaskID: task.ID, Value: value, Err: err}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task, blocking while the queue is full. Fails once the
// pool is closed or its context cancelled.
func (p *Pool[T]) Submit(task Task[T]) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// SubmitAndWait runs all tasks and collects their results in completion
// order. On cancellation the partial results gathered so far are returned.
func (p *Pool[T]) SubmitAndWait(tasks []Task[T]) []Result[T] {
	// Submission runs concurrently with collection so a batch larger than
	// the queue cannot wedge the pool.
	submitted := make(chan int, 1)
	go func() {
		n := 0
		for _, task := range tasks {
			if err := p.Submit(task); err != nil {
				break
			}
			n++
		}
		submitted <- n
	}()

	results := make([]Result[T], 0, len(tasks))
	collected, want := 0, -1
	for want < 0 || collected < want {
		select {
		case <-p.ctx.Done():
			return results
		case n := <-submitted:
			want = n
		case r := <-p.results:
			results = append(results, r)
			collected++
		}
	}
	return results
}

// Results exposes the results channel for streaming consumption.
func (p *Pool[T]) Results() <-chan Result[T] {
	return p.results
}

// Close stops accepting tasks and waits for in-flight work to finish. The
// task channel is left open so a late Submit fails instead of panicking.
func (p *Pool[T]) Close() {
	p.cancel()
	p.wg.Wait()
	close(p.results)
}

// Workers returns the pool size.
func (p *Pool[T]) Workers() int {
	return p.workers
}

// QueueLen returns the number of queued tasks.
func (p *Pool[T]) QueueLen() int {
	return len(p.tasks)
}
