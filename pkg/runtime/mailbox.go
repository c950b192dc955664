package runtime

import (
	"sync"

	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/lifecycle"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/protocol"
)

type noticeKind int

const (
	noticeOutgoing noticeKind = iota
	noticeLog
	noticeActions
	noticeAdapters
	noticeControl
	noticeExit
)

// notice is one request for the dispatch goroutine.
type notice struct {
	kind noticeKind

	cmd protocol.Command

	level logging.Level
	msg   string

	target bus.Target
	env    *bus.Envelope

	control lifecycle.Control
}

// mailbox is an unbounded FIFO of notices. push never blocks, so any
// goroutine (adapters included) can post without waiting on dispatch.
type mailbox struct {
	mu     sync.Mutex
	items  []notice
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(n notice) {
	m.mu.Lock()
	m.items = append(m.items, n)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// ready fires when notices may be waiting.
func (m *mailbox) ready() <-chan struct{} { return m.signal }

func (m *mailbox) drain() []notice {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items
	m.items = nil

	return items
}
