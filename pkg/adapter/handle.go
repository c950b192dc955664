package adapter

import (
	"context"
	"time"

	"github.com/germanamz/deckhand/pkg/bus"
)

// Handle controls one running worker.
type Handle struct {
	name   string
	cancel context.CancelFunc
	inbox  *bus.Inbox
	done   chan struct{}
}

// Name returns the adapter name.
func (h *Handle) Name() string { return h.name }

// Signal asks the worker to stop: its context is cancelled and its inbox
// closed. It does not wait.
func (h *Handle) Signal() {
	h.cancel()
	h.inbox.Close()
}

// Done is closed when the worker goroutine has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the worker returned or timeout elapsed, and reports
// whether the worker returned.
func (h *Handle) Wait(timeout time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
