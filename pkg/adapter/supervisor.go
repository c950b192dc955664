package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/lifecycle"
	"github.com/germanamz/deckhand/pkg/logging"
)

var errShutDown = errors.New("supervisor is shut down")

const (
	defaultInboxSize       = 64
	defaultShutdownTimeout = 2 * time.Second
	defaultAppDebounce     = 250 * time.Millisecond
)

// Descriptor is a snapshot of one adapter's registration and state.
type Descriptor struct {
	Name   string
	Policy lifecycle.StartPolicy
	Topics []string
	State  lifecycle.State
}

type descriptor struct {
	adapter Adapter

	// op serialises start and stop transitions. It is held while a stop waits
	// for the worker, so the worker itself only takes mu.
	op sync.Mutex

	mu     sync.Mutex
	state  lifecycle.State
	handle *Handle
}

func (d *descriptor) snapshot() (lifecycle.State, *Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state, d.handle
}

func (d *descriptor) set(state lifecycle.State, h *Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = state
	d.handle = h
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithInboxSize sets the capacity of each adapter inbox.
func WithInboxSize(n int) Option {
	return func(s *Supervisor) { s.inboxSize = n }
}

// WithShutdownTimeout bounds how long a stop waits for a worker to return.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.shutdownTimeout = d }
}

// WithAppDebounce sets how long OnAppLaunch adapters keep running after the
// last monitored application terminated.
func WithAppDebounce(d time.Duration) Option {
	return func(s *Supervisor) { s.appDebounce = d }
}

// WithLogger sets the reporter for start failures, worker exits and stop
// timeouts.
func WithLogger(l logging.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// Supervisor owns adapter lifecycles. It is safe for concurrent use.
type Supervisor struct {
	bus        *bus.Bus
	newContext func() *deckctx.Context
	log        logging.Logger
	now        func() time.Time

	inboxSize       int
	shutdownTimeout time.Duration
	appDebounce     time.Duration

	descs  map[string]*descriptor
	order  []string
	closed atomic.Bool
	wg     sync.WaitGroup

	appMu  sync.Mutex
	apps   map[string]struct{}
	stopAt time.Time
}

// New creates a supervisor for adapters and registers the lazy ones with b.
// newContext builds the capability context handed to each worker.
func New(b *bus.Bus, newContext func() *deckctx.Context, adapters []Adapter, opts ...Option) (*Supervisor, error) {
	if err := Validate(adapters); err != nil {
		return nil, err
	}

	s := &Supervisor{
		bus:             b,
		newContext:      newContext,
		log:             logging.Discard(),
		now:             time.Now,
		inboxSize:       defaultInboxSize,
		shutdownTimeout: defaultShutdownTimeout,
		appDebounce:     defaultAppDebounce,
		descs:           make(map[string]*descriptor, len(adapters)),
		apps:            make(map[string]struct{}),
	}

	for _, o := range opts {
		o(s)
	}

	for _, a := range adapters {
		s.descs[a.Name()] = &descriptor{adapter: a, state: lifecycle.Registered}
		s.order = append(s.order, a.Name())

		if a.Policy() == lifecycle.Lazy {
			b.DeclareLazy(a.Name(), a.Topics())
		}
	}

	b.SetStarter(s)

	return s, nil
}

// State returns the lifecycle state of the named adapter.
func (s *Supervisor) State(name string) (lifecycle.State, bool) {
	d, ok := s.descs[name]
	if !ok {
		return lifecycle.Registered, false
	}

	state, _ := d.snapshot()

	return state, true
}

// Descriptors returns a snapshot of every adapter in registration order.
func (s *Supervisor) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(s.order))
	for _, name := range s.order {
		d := s.descs[name]
		state, _ := d.snapshot()
		out = append(out, Descriptor{
			Name:   name,
			Policy: d.adapter.Policy(),
			Topics: append([]string(nil), d.adapter.Topics()...),
			State:  state,
		})
	}

	return out
}

// Handle returns the handle of a running adapter.
func (s *Supervisor) Handle(name string) (*Handle, bool) {
	d, ok := s.descs[name]
	if !ok {
		return nil, false
	}

	_, h := d.snapshot()

	return h, h != nil
}

// StartEager starts every Eager adapter. Failures are reported and leave the
// adapter Stopped; the remaining adapters still start.
func (s *Supervisor) StartEager() {
	for _, name := range s.order {
		if s.descs[name].adapter.Policy() != lifecycle.Eager {
			continue
		}

		_ = s.Start(name)
	}
}

// EnsureStarted starts a Registered adapter exactly once, however many
// goroutines call it concurrently. Callers return only after the adapter's
// inbox exists, so a triggering publish is delivered. Any other state returns
// without waiting on an in-flight start or stop.
func (s *Supervisor) EnsureStarted(name string) {
	d, ok := s.descs[name]
	if !ok || s.closed.Load() {
		return
	}

	if state, _ := d.snapshot(); state != lifecycle.Registered {
		return
	}

	d.op.Lock()
	defer d.op.Unlock()

	if state, _ := d.snapshot(); state != lifecycle.Registered {
		return
	}

	_ = s.start(d)
}

// Start starts the named adapter if it is Registered or Stopped. Starting a
// running adapter is a no-op.
func (s *Supervisor) Start(name string) error {
	d, ok := s.descs[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownAdapter, name)
	}

	d.op.Lock()
	defer d.op.Unlock()

	if state, _ := d.snapshot(); state == lifecycle.Running {
		return nil
	}

	return s.start(d)
}

// start runs with d.op held.
func (s *Supervisor) start(d *descriptor) error {
	name := d.adapter.Name()
	if s.closed.Load() {
		return &StartError{Name: name, Err: errShutDown}
	}

	// The inbox exists before the state leaves Registered, so publishers
	// that skip the lock still reach a starting adapter.
	inbox := s.bus.Subscribe(name, d.adapter.Topics(), s.inboxSize)
	d.set(lifecycle.Starting, nil)

	cx := s.newContext()

	if init, ok := d.adapter.(Initializer); ok {
		if err := safeInit(init, cx); err != nil {
			inbox.Close()
			d.set(lifecycle.Stopped, nil)
			serr := &StartError{Name: name, Err: err}
			s.log.Log(logging.LevelError, "adapter: start failed", "adapter", name, "error", serr)
			return serr
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{name: name, cancel: cancel, inbox: inbox, done: make(chan struct{})}

	d.set(lifecycle.Running, h)

	s.wg.Add(1)
	go s.run(ctx, d, h, cx)

	s.log.Log(logging.LevelInfo, "adapter: started", "adapter", name, "policy", d.adapter.Policy().String())

	return nil
}

func (s *Supervisor) run(ctx context.Context, d *descriptor, h *Handle, cx *deckctx.Context) {
	defer s.wg.Done()
	defer close(h.done)

	err := safeRun(ctx, d.adapter, cx, h.inbox.C())

	h.cancel()
	h.inbox.Close()

	d.mu.Lock()
	unexpected := d.handle == h && d.state == lifecycle.Running
	if unexpected {
		d.state = lifecycle.Stopped
		d.handle = nil
	}
	d.mu.Unlock()

	name := d.adapter.Name()

	switch {
	case unexpected:
		if err == nil {
			err = errors.New("worker returned without being stopped")
		}
		s.log.Log(logging.LevelError, "adapter: worker exited", "adapter", name, "error", err)
	case err != nil && !errors.Is(err, context.Canceled):
		s.log.Log(logging.LevelWarn, "adapter: worker stopped with error", "adapter", name, "error", err)
	}
}

// Stop signals the named adapter and waits up to the shutdown timeout for it
// to return. Stopping an adapter that is not running is a no-op.
func (s *Supervisor) Stop(name string) error {
	d, ok := s.descs[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownAdapter, name)
	}

	if state, _ := d.snapshot(); state != lifecycle.Running {
		return nil
	}

	d.op.Lock()
	defer d.op.Unlock()

	s.stop(d)

	return nil
}

// stop runs with d.op held.
func (s *Supervisor) stop(d *descriptor) {
	d.mu.Lock()
	if d.state != lifecycle.Running {
		d.mu.Unlock()
		return
	}
	d.state = lifecycle.Stopping
	h := d.handle
	d.mu.Unlock()

	h.Signal()

	if !h.Wait(s.shutdownTimeout) {
		s.log.Log(logging.LevelWarn, "adapter: stop timed out, detaching",
			"adapter", h.name,
			"timeout", s.shutdownTimeout,
		)
	}

	d.set(lifecycle.Stopped, nil)
	s.log.Log(logging.LevelInfo, "adapter: stopped", "adapter", h.name)
}

// StopAll stops every running adapter in parallel, each bounded by the
// shutdown timeout, and refuses further starts.
func (s *Supervisor) StopAll() {
	s.closed.Store(true)

	var wg sync.WaitGroup
	for _, name := range s.order {
		d := s.descs[name]
		wg.Go(func() {
			d.op.Lock()
			defer d.op.Unlock()

			s.stop(d)
		})
	}
	wg.Wait()
}

// Apply executes a control request.
func (s *Supervisor) Apply(ctl lifecycle.Control) {
	for _, name := range s.order {
		d := s.descs[name]
		if !ctl.Target.Matches(name, d.adapter.Policy()) {
			continue
		}

		switch ctl.Op {
		case lifecycle.OpStart:
			_ = s.Start(name)
		case lifecycle.OpStop:
			_ = s.Stop(name)
		case lifecycle.OpRestart:
			_ = s.Stop(name)
			_ = s.Start(name)
		}
	}
}

// ApplicationLaunched records a launched application and starts the
// OnAppLaunch adapters.
func (s *Supervisor) ApplicationLaunched(app string) {
	s.appMu.Lock()
	s.apps[app] = struct{}{}
	s.stopAt = time.Time{}
	s.appMu.Unlock()

	for _, name := range s.order {
		if s.descs[name].adapter.Policy() == lifecycle.OnAppLaunch {
			_ = s.Start(name)
		}
	}
}

// ApplicationTerminated forgets app. Once no application is left, the
// OnAppLaunch adapters are stopped by Tick after the debounce window.
func (s *Supervisor) ApplicationTerminated(app string) {
	s.appMu.Lock()
	defer s.appMu.Unlock()

	delete(s.apps, app)
	if len(s.apps) == 0 {
		s.stopAt = s.now().Add(s.appDebounce)
	}
}

// Tick runs time-based housekeeping. The runtime calls it on every loop tick.
func (s *Supervisor) Tick() {
	s.appMu.Lock()
	due := !s.stopAt.IsZero() && len(s.apps) == 0 && !s.now().Before(s.stopAt)
	if due {
		s.stopAt = time.Time{}
	}
	s.appMu.Unlock()

	if !due {
		return
	}

	s.Apply(lifecycle.Control{Op: lifecycle.OpStop, Target: lifecycle.ByPolicy(lifecycle.OnAppLaunch)})
}

// Wait blocks until every worker goroutine has returned. Detached workers
// that ignore their stop signal keep it blocked.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func safeInit(init Initializer, cx *deckctx.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panicked: %v", r)
		}
	}()

	return init.Init(cx)
}

func safeRun(ctx context.Context, a Adapter, cx *deckctx.Context, inbox <-chan *bus.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panicked: %v", r)
		}
	}()

	return a.Run(ctx, cx, inbox)
}
