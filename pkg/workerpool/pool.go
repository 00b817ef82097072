// Package workerpool runs independent tasks on a fixed number of goroutines.
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Common errors
var (
	ErrPoolClosed  = errors.New("workerpool: pool is closed")
	ErrInvalidSize = errors.New("workerpool: invalid pool size")
	ErrTaskPanic   = errors.New("workerpool: task panicked")
)

// Task represents a unit of work to be executed by the pool
type Task func(ctx context.Context) error

// Pool represents a worker pool
type Pool struct {
	size    int
	tasks   chan taskWrapper
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	taskCnt atomic.Int64
	errCnt  atomic.Int64
}

// taskWrapper wraps a task with its result channel
type taskWrapper struct {
	task   Task
	result chan error
	ctx    context.Context
}

// New creates a pool with size workers and starts them
func New(size int) (*Pool, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	p := &Pool{
		size:  size,
		tasks: make(chan taskWrapper, size),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p, nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for wrapper := range p.tasks {
		wrapper.result <- p.execute(wrapper)
	}
}

// execute runs a task; a canceled context skips it and a panic becomes ErrTaskPanic
func (p *Pool) execute(wrapper taskWrapper) (err error) {
	p.taskCnt.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err = ErrTaskPanic
		}
		if err != nil {
			p.errCnt.Add(1)
		}
	}()

	if err := wrapper.ctx.Err(); err != nil {
		return err
	}
	return wrapper.task(wrapper.ctx)
}

// Submit queues a task and returns a channel that receives its error
func (p *Pool) Submit(ctx context.Context, task Task) (<-chan error, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	result := make(chan error, 1)
	select {
	case p.tasks <- taskWrapper{task: task, result: result, ctx: ctx}:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RunAll runs every task and returns their errors in task order
func (p *Pool) RunAll(ctx context.Context, tasks []Task) []error {
	errs := make([]error, len(tasks))
	pending := make([]<-chan error, len(tasks))
	for i, task := range tasks {
		ch, err := p.Submit(ctx, task)
		if err != nil {
			errs[i] = err
			continue
		}
		pending[i] = ch
	}
	for i, ch := range pending {
		if ch != nil {
			errs[i] = <-ch
		}
	}
	return errs
}

// Close stops accepting tasks and waits for queued tasks to finish
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Stats holds pool statistics
type Stats struct {
	Workers       int
	TasksExecuted int64
	TasksFailed   int64
	IsClosed      bool
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{
		Workers:       p.size,
		TasksExecuted: p.taskCnt.Load(),
		TasksFailed:   p.errCnt.Load(),
		IsClosed:      p.closed,
	}
}
