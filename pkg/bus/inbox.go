package bus

import (
	"errors"
	"sync"
)

var (
	errInboxFull   = errors.New("inbox full")
	errInboxClosed = errors.New("adapter stopped")
)

// Inbox is the bounded queue feeding one adapter worker.
type Inbox struct {
	name   string
	topics map[string]struct{}

	mu     sync.Mutex
	ch     chan *Envelope
	closed bool
}

func newInbox(name string, topics []string, size int) *Inbox {
	if size <= 0 {
		size = 1
	}

	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}

	return &Inbox{name: name, topics: set, ch: make(chan *Envelope, size)}
}

// Name returns the owning adapter name.
func (in *Inbox) Name() string { return in.name }

// C returns the receive side of the inbox. It is closed by Close.
func (in *Inbox) C() <-chan *Envelope { return in.ch }

// Close stops further deliveries. Later publishes are dropped with a warning.
func (in *Inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return
	}

	in.closed = true
	close(in.ch)
}

// Closed reports whether Close has been called.
func (in *Inbox) Closed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.closed
}

func (in *Inbox) offer(env *Envelope) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return errInboxClosed
	}

	select {
	case in.ch <- env:
		return nil
	default:
		return errInboxFull
	}
}
