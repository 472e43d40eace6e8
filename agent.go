package linkz

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Agent receives captured records and reports whether tracing is active.
// Implementations must be safe for concurrent use; Capture is called on the
// goroutine that ended the tracer and should not block.
type Agent interface {
	State() AgentState
	Capture(record Record)
}

// AgentFunc adapts a function to an always-active Agent.
type AgentFunc func(record Record)

// State always reports AgentStateActive.
func (AgentFunc) State() AgentState { return AgentStateActive }

// Capture calls f.
func (f AgentFunc) Capture(record Record) { f(record) }

// AsyncAgent forwards records to another agent from a bounded worker pool.
// Records are dropped when the queue is full so Capture never blocks.
//
//nolint:govet // Field order optimized for functionality over memory
type AsyncAgent struct {
	next    Agent
	workers *workerPool
	dropped atomic.Uint64
	panics  atomic.Uint64
	mu      sync.RWMutex
	closed  bool
}

// NewAsyncAgent starts workers goroutines draining a queue of queueSize records.
func NewAsyncAgent(next Agent, workers, queueSize int) (*AsyncAgent, error) {
	if next == nil {
		return nil, errors.New("next agent is required")
	}
	if workers <= 0 {
		return nil, errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return nil, errors.New("queueSize must be > 0")
	}

	a := &AsyncAgent{next: next}
	a.workers = &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &a.dropped,
		panics:  &a.panics,
	}
	a.workers.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go a.workers.run()
	}
	return a, nil
}

// State reports the wrapped agent's state, or AgentStateNotInitialized once
// the agent is closed.
func (a *AsyncAgent) State() AgentState {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return AgentStateNotInitialized
	}
	return a.next.State()
}

// Capture queues the record for the wrapped agent. After Close the record is
// counted as dropped.
func (a *AsyncAgent) Capture(record Record) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	a.workers.submit(func() {
		a.next.Capture(record)
	})
}

// Dropped returns the number of records dropped due to a full queue or a
// closed agent.
func (a *AsyncAgent) Dropped() uint64 {
	return a.dropped.Load()
}

// Panics returns the number of captures in which the wrapped agent panicked.
func (a *AsyncAgent) Panics() uint64 {
	return a.panics.Load()
}

// Close drains queued records and stops the workers. Safe to call more than once.
func (a *AsyncAgent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()
	a.workers.shutdown()
}

// workerPool manages a fixed number of workers for processing queued captures.
//
//nolint:govet // Field order optimized for functionality over memory
type workerPool struct {
	tasks   chan func()
	stop    chan struct{}
	dropped *atomic.Uint64
	panics  *atomic.Uint64
	wg      sync.WaitGroup
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			w.safeRun(task)
		case <-w.stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case task := <-w.tasks:
					w.safeRun(task)
				default:
					return
				}
			}
		}
	}
}

func (w *workerPool) submit(task func()) {
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
	}
}

func (w *workerPool) shutdown() {
	close(w.stop)
	w.wg.Wait()
}

func (w *workerPool) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
		}
	}()
	task()
}
