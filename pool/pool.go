package pool

import (
	"errors"
	"sync"
)

var ErrPoolStopped = errors.New("pool: enqueue after shutdown")

// WorkerPool runs tasks on a fixed set of goroutines draining a shared FIFO
// queue. The queue is unbounded: under sustained overload it grows without
// backpressure.
type WorkerPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	wg      sync.WaitGroup
}

// New starts workers goroutines. workers must be at least 1.
func New(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}

	p := &WorkerPool{}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if p.stopped && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		task()
	}
}

// Enqueue appends task to the queue and wakes one waiting worker. Once
// Shutdown has begun it returns ErrPoolStopped and the task is never run.
func (p *WorkerPool) Enqueue(task func()) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// Shutdown stops the pool and blocks until every task queued before the
// call has finished. Queued work is drained, not discarded.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}
