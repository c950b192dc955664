package input

import (
	"context"
	"errors"
	"sync"

	"github.com/germanamz/deckhand/pkg/logging"
)

var (
	ErrExecutorClosed = errors.New("input: executor closed")
	ErrQueueFull      = errors.New("input: queue full")
)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithQueueLimit bounds the number of pending steps. Zero means unbounded.
func WithQueueLimit(n int) ExecutorOption {
	return func(e *Executor) { e.limit = n }
}

// WithExecutorLogger sets where synth failures are reported.
func WithExecutorLogger(l logging.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

// Executor runs steps on a single worker goroutine so that sequences queued
// from different handlers never interleave. Enqueue never blocks, which makes
// it safe to call from action handlers.
type Executor struct {
	synth Synth
	log   logging.Logger
	limit int

	mu      sync.Mutex
	pending [][]Step
	size    int
	closed  bool
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExecutor starts a worker feeding synth.
func NewExecutor(synth Synth, opts ...ExecutorOption) *Executor {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Executor{
		synth:  synth,
		log:    logging.Discard(),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	for _, o := range opts {
		o(e)
	}

	go e.work()

	return e
}

// Enqueue queues steps as one sequence. A sequence is accepted or rejected
// as a whole.
func (e *Executor) Enqueue(steps ...Step) error {
	if len(steps) == 0 {
		return nil
	}

	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrExecutorClosed
	case e.limit > 0 && e.size+len(steps) > e.limit:
		e.mu.Unlock()
		return ErrQueueFull
	}

	e.pending = append(e.pending, steps)
	e.size += len(steps)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}

	return nil
}

// Pending returns the number of queued steps not yet started.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.size
}

func (e *Executor) next() ([]Step, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) == 0 {
		return nil, e.closed
	}

	seq := e.pending[0]
	e.pending = e.pending[1:]
	e.size -= len(seq)

	return seq, false
}

func (e *Executor) work() {
	defer close(e.done)

	for {
		seq, finished := e.next()
		if finished {
			return
		}

		if seq == nil {
			select {
			case <-e.wake:
			case <-e.ctx.Done():
				return
			}
			continue
		}

		if err := SendAll(e.ctx, e.synth, seq...); err != nil {
			if e.ctx.Err() != nil {
				return
			}
			e.log.Log(logging.LevelError, "input: sequence failed", "error", err)
		}
	}
}

// Close stops accepting steps and waits for queued ones to run. When ctx
// ends first, remaining steps are abandoned.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}

	select {
	case <-e.done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		<-e.done
		return ctx.Err()
	}
}
