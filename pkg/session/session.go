// Package session owns the single connection to the host: it registers the
// plugin, decodes inbound frames and writes queued commands in order.
//
// A Session moves through Disconnected, Connecting, Registering, Registered,
// Closing and Closed. Closed is terminal; a lost session is never redialed.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/germanamz/deckhand/pkg/protocol"
)

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Registering
	Registered
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Registering:
		return "registering"
	case Registered:
		return "registered"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrClosed is returned by Enqueue once the session is closing.
	ErrClosed = errors.New("session: closed")
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("session: already connected")
)

// TransportError is a dial, registration or IO failure. It ends the session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Inbound is one received frame: either a decoded event or the reason it
// could not be decoded.
type Inbound struct {
	Event protocol.Event
	Err   error
	Raw   []byte
}

const traceLimit = 4096

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithLogger sets the logger for transitions and frame tracing.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithDialTimeout bounds Connect's dial.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Session) { s.dialTimeout = d }
}

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Session) { s.writeTimeout = d }
}

// WithFrameTrace logs every raw frame at debug level, truncated to 4 KiB.
func WithFrameTrace(on bool) Option {
	return func(s *Session) { s.trace = on }
}

// Session is the protocol session. Enqueue, State, Err and Close are safe for
// concurrent use.
type Session struct {
	url          string
	reg          protocol.Registration
	dialer       Dialer
	log          *slog.Logger
	dialTimeout  time.Duration
	writeTimeout time.Duration
	trace        bool

	mu     sync.Mutex
	state  State
	outbox [][]byte
	err    error
	conn   Conn
	cancel context.CancelFunc

	wake       chan struct{}
	draining   chan struct{}
	writerDone chan struct{}
	inbound    chan Inbound
	closed     chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// New creates a disconnected session for url that will register with reg.
func New(url string, reg protocol.Registration, opts ...Option) *Session {
	s := &Session{
		url:          url,
		reg:          reg,
		dialer:       WSDialer{},
		log:          slog.New(slog.DiscardHandler),
		dialTimeout:  5 * time.Second,
		writeTimeout: 5 * time.Second,
		wake:         make(chan struct{}, 1),
		draining:     make(chan struct{}),
		writerDone:   make(chan struct{}),
		inbound:      make(chan Inbound, 64),
		closed:       make(chan struct{}),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()

	s.log.Debug("session: state", "from", prev.String(), "to", st.String())
}

// fail records the first terminal cause.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// lost moves a registered session to Closing and reports whether it was
// still registered, i.e. whether the loss was unexpected.
func (s *Session) lost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Registered {
		return false
	}
	s.state = Closing

	return true
}

// Err reports why Inbound closed: nil after a normal close by either side,
// otherwise a *TransportError.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Connect dials the host and sends the registration frame. The frame is
// written before the writer starts, so no queued command can precede it.
// On failure the session is Closed and the error is a *TransportError.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = Connecting
	s.mu.Unlock()

	s.log.Info("session: connecting", "url", s.url)

	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	conn, err := s.dialer.Dial(dialCtx, s.url)
	cancel()
	if err != nil {
		return s.abort(&TransportError{Op: "dial", Err: err}, nil)
	}

	s.setState(Registering)

	frame, err := s.reg.Encode()
	if err != nil {
		return s.abort(&TransportError{Op: "register", Err: err}, conn)
	}

	s.traceFrame("out", frame)

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	err = conn.Write(writeCtx, frame)
	cancel()
	if err != nil {
		return s.abort(&TransportError{Op: "register", Err: err}, conn)
	}

	runCtx, runCancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.conn = conn
	s.cancel = runCancel
	s.state = Registered
	s.mu.Unlock()

	s.log.Info("session: registered", "event", s.reg.Event, "uuid", s.reg.UUID)

	s.wg.Go(func() { s.readLoop(runCtx) })
	s.wg.Go(func() { s.writeLoop(runCtx) })

	return nil
}

func (s *Session) abort(err *TransportError, conn Conn) error {
	if conn != nil {
		_ = conn.Close()
	}

	s.fail(err)
	s.setState(Closed)
	close(s.inbound)
	close(s.closed)

	return err
}

// Enqueue encodes cmd and appends it to the outbox. It never blocks on IO.
// Commands queued before registration completes are written after the
// registration frame.
func (s *Session) Enqueue(cmd protocol.Command) error {
	frame, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state >= Closing {
		s.mu.Unlock()
		return ErrClosed
	}
	s.outbox = append(s.outbox, frame)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return nil
}

// Inbound yields received frames in order. It is closed when the host closes
// the connection, the transport fails, or Close runs.
func (s *Session) Inbound() <-chan Inbound { return s.inbound }

// Done is closed once the session reached Closed.
func (s *Session) Done() <-chan struct{} { return s.closed }

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.inbound)

	for {
		data, err := s.conn.Read(ctx)
		if err != nil {
			if s.lost() {
				if errors.Is(err, io.EOF) {
					s.log.Info("session: host closed the connection")
				} else {
					s.fail(&TransportError{Op: "read", Err: err})
					s.log.Error("session: read failed", "error", err)
				}
			}

			return
		}

		s.traceFrame("in", data)

		ev, err := protocol.Decode(data)
		in := Inbound{Event: ev, Err: err}
		if err != nil {
			in.Raw = truncate(data, traceLimit)
		}

		select {
		case s.inbound <- in:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	defer close(s.writerDone)

	for {
		s.mu.Lock()
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()

		for _, frame := range batch {
			s.traceFrame("out", frame)

			writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
			err := s.conn.Write(writeCtx, frame)
			cancel()
			if err != nil {
				if s.lost() {
					s.fail(&TransportError{Op: "write", Err: err})
					s.log.Error("session: write failed", "error", err)
					_ = s.conn.Close()
				}

				return
			}
		}

		if len(batch) > 0 {
			continue
		}

		select {
		case <-s.wake:
		case <-s.draining:
			// Enqueue refuses frames once Closing, so the outbox only shrinks.
			s.mu.Lock()
			empty := len(s.outbox) == 0
			s.mu.Unlock()

			if empty {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close flushes queued commands, closes the transport and waits for the
// reader and writer to exit. ctx bounds the flush. It is idempotent; later
// calls wait for the first to finish.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == Disconnected:
		s.state = Closed
		s.mu.Unlock()
		close(s.inbound)
		close(s.closed)

		return nil
	case s.state == Closed:
		s.mu.Unlock()
		return nil
	case s.conn == nil:
		s.mu.Unlock()
		return errors.New("session: connect in progress")
	}
	s.state = Closing
	s.mu.Unlock()

	s.closeOnce.Do(func() { s.shutdown(ctx) })
	<-s.closed

	return nil
}

func (s *Session) shutdown(ctx context.Context) {
	close(s.draining)

	select {
	case <-s.writerDone:
	case <-ctx.Done():
		s.log.Warn("session: flush timed out, dropping queued commands", "error", ctx.Err())
	}

	if err := s.conn.Close(); err != nil {
		s.log.Debug("session: close transport", "error", err)
	}
	s.cancel()
	s.wg.Wait()

	s.setState(Closed)
	close(s.closed)
	s.log.Info("session: closed")
}

func (s *Session) traceFrame(dir string, data []byte) {
	if !s.trace {
		return
	}

	s.log.Debug("session: frame", "dir", dir, "raw", string(truncate(data, traceLimit)))
}

// truncate cuts data to at most n bytes without splitting a UTF-8 sequence.
func truncate(data []byte, n int) []byte {
	if len(data) <= n {
		return data
	}

	for n > 0 && !utf8.RuneStart(data[n]) {
		n--
	}

	return data[:n]
}
