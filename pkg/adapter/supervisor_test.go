package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/lifecycle"
	"github.com/germanamz/deckhand/pkg/logging"
)

type ping struct {
	Msg string
}

var pingTopic = bus.NewTopic[ping]("demo.ping")

type logRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (l *logRecorder) Log(level logging.Level, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, level.String()+" "+msg)
}

func (l *logRecorder) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if strings.HasPrefix(e, entry) {
			return true
		}
	}

	return false
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// echo forwards every ping it receives to got.
func echo(name string, policy lifecycle.StartPolicy, starts *atomic.Int32, got chan<- string) Adapter {
	return NewFunc(name, policy, []string{pingTopic.Name()}, func(ctx context.Context, _ *deckctx.Context, inbox <-chan *bus.Envelope) error {
		starts.Add(1)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case env, ok := <-inbox:
				if !ok {
					return nil
				}
				if p, ok := bus.Downcast(env, pingTopic); ok && got != nil {
					got <- p.Msg
				}
			}
		}
	})
}

func newSupervisor(t *testing.T, log logging.Logger, adapters []Adapter, opts ...Option) (*Supervisor, *bus.Bus) {
	t.Helper()

	b := bus.New(bus.WithLogger(log))
	opts = append([]Option{WithLogger(log)}, opts...)

	s, err := New(b, func() *deckctx.Context { return deckctx.New(deckctx.Params{Bus: b}) }, adapters, opts...)
	require.NoError(t, err)
	t.Cleanup(s.StopAll)

	return s, b
}

func requireState(t *testing.T, s *Supervisor, name string, want lifecycle.State) {
	t.Helper()

	require.Eventually(t, func() bool {
		got, _ := s.State(name)
		return got == want
	}, time.Second, 5*time.Millisecond, "adapter %s never reached %s", name, want)
}

func TestValidate(t *testing.T) {
	noop := func(context.Context, *deckctx.Context, <-chan *bus.Envelope) error { return nil }

	assert.NoError(t, Validate([]Adapter{NewFunc("a", lifecycle.Eager, nil, noop)}))
	assert.ErrorContains(t, Validate([]Adapter{NewFunc("", lifecycle.Eager, nil, noop)}), "name is required")
	assert.ErrorContains(t, Validate([]Adapter{
		NewFunc("a", lifecycle.Eager, nil, noop),
		NewFunc("a", lifecycle.Manual, nil, noop),
	}), "duplicate")
	assert.ErrorContains(t, Validate([]Adapter{NewFunc("l", lifecycle.Lazy, nil, noop)}), "must declare topics")
	assert.Error(t, Validate([]Adapter{nil}))
}

func TestStartEager(t *testing.T) {
	var starts atomic.Int32
	got := make(chan string, 1)
	s, b := newSupervisor(t, logging.Discard(), []Adapter{
		echo("clock", lifecycle.Eager, &starts, got),
		echo("manual", lifecycle.Manual, &starts, nil),
	})

	s.StartEager()

	st, ok := s.State("clock")
	require.True(t, ok)
	assert.Equal(t, lifecycle.Running, st)

	st, _ = s.State("manual")
	assert.Equal(t, lifecycle.Registered, st)

	bus.PublishToAdapters(b, pingTopic, "", ping{Msg: "tick"})

	select {
	case msg := <-got:
		assert.Equal(t, "tick", msg)
	case <-time.After(time.Second):
		t.Fatal("eager adapter did not receive publish")
	}

	s.StopAll()
	requireState(t, s, "clock", lifecycle.Stopped)
	assert.Equal(t, int32(1), starts.Load())
}

func TestLazy_StartsExactlyOnceUnderConcurrentPublish(t *testing.T) {
	var starts atomic.Int32
	got := make(chan string, 64)
	s, b := newSupervisor(t, logging.Discard(), []Adapter{echo("echo", lifecycle.Lazy, &starts, got)})

	s.StartEager()
	st, _ := s.State("echo")
	require.Equal(t, lifecycle.Registered, st)

	var wg sync.WaitGroup
	for range 32 {
		wg.Go(func() {
			bus.PublishToAdapters(b, pingTopic, "", ping{Msg: "hi"})
		})
	}
	wg.Wait()

	for range 32 {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("lazy adapter missed a publish")
		}
	}

	assert.Equal(t, int32(1), starts.Load())
	st, _ = s.State("echo")
	assert.Equal(t, lifecycle.Running, st)
}

func TestStop_IdempotentAndNonBlocking(t *testing.T) {
	var starts atomic.Int32
	s, _ := newSupervisor(t, logging.Discard(), []Adapter{echo("echo", lifecycle.Manual, &starts, nil)})

	// Never started.
	require.NoError(t, s.Stop("echo"))

	require.NoError(t, s.Start("echo"))
	require.NoError(t, s.Start("echo"))
	require.NoError(t, s.Stop("echo"))

	st, _ := s.State("echo")
	require.Equal(t, lifecycle.Stopped, st)

	start := time.Now()
	require.NoError(t, s.Stop("echo"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	assert.ErrorIs(t, s.Stop("ghost"), ErrUnknownAdapter)
	assert.ErrorIs(t, s.Start("ghost"), ErrUnknownAdapter)
}

func TestLazy_PublishDuringStopDoesNotBlock(t *testing.T) {
	slow := NewFunc("slow", lifecycle.Lazy, []string{pingTopic.Name()}, func(ctx context.Context, _ *deckctx.Context, inbox <-chan *bus.Envelope) error {
		for {
			select {
			case <-ctx.Done():
				time.Sleep(300 * time.Millisecond)
				return ctx.Err()
			case <-inbox:
			}
		}
	})

	s, b := newSupervisor(t, logging.Discard(), []Adapter{slow}, WithShutdownTimeout(time.Second))

	bus.PublishToAdapters(b, pingTopic, "", ping{Msg: "wake"})
	requireState(t, s, "slow", lifecycle.Running)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop("slow") }()
	requireState(t, s, "slow", lifecycle.Stopping)

	start := time.Now()
	bus.PublishToAdapters(b, pingTopic, "", ping{Msg: "late"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, <-stopped)
	requireState(t, s, "slow", lifecycle.Stopped)
}

type selfPublisher struct {
	Adapter
}

func (selfPublisher) Init(cx *deckctx.Context) error {
	bus.PublishToAdapters(cx.Bus(), pingTopic, "", ping{Msg: "from init"})
	return nil
}

func TestLazy_InitMayPublishOnOwnTopic(t *testing.T) {
	var starts atomic.Int32
	got := make(chan string, 4)
	s, b := newSupervisor(t, logging.Discard(), []Adapter{
		selfPublisher{Adapter: echo("echo", lifecycle.Lazy, &starts, got)},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.PublishToAdapters(b, pingTopic, "", ping{Msg: "first"})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish from Init deadlocked the lazy start")
	}

	var msgs []string
	for range 2 {
		select {
		case m := <-got:
			msgs = append(msgs, m)
		case <-time.After(time.Second):
			t.Fatal("lazy adapter missed a publish")
		}
	}

	assert.Equal(t, []string{"from init", "first"}, msgs)
	assert.Equal(t, int32(1), starts.Load())
	requireState(t, s, "echo", lifecycle.Running)
}

func TestStop_TimeoutDetaches(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	stubborn := NewFunc("stubborn", lifecycle.Manual, nil, func(context.Context, *deckctx.Context, <-chan *bus.Envelope) error {
		<-release
		return nil
	})

	log := &logRecorder{}
	s, _ := newSupervisor(t, log, []Adapter{stubborn}, WithShutdownTimeout(30*time.Millisecond))

	require.NoError(t, s.Start("stubborn"))

	start := time.Now()
	require.NoError(t, s.Stop("stubborn"))

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.True(t, log.has("warn adapter: stop timed out"))

	st, _ := s.State("stubborn")
	assert.Equal(t, lifecycle.Stopped, st)
}

func TestWorkerFailure_DemotesToStopped(t *testing.T) {
	failing := NewFunc("failing", lifecycle.Eager, nil, func(context.Context, *deckctx.Context, <-chan *bus.Envelope) error {
		return errors.New("lost connection")
	})
	panicking := NewFunc("panicking", lifecycle.Eager, nil, func(context.Context, *deckctx.Context, <-chan *bus.Envelope) error {
		panic("bug")
	})

	log := &logRecorder{}
	s, _ := newSupervisor(t, log, []Adapter{failing, panicking})

	s.StartEager()

	requireState(t, s, "failing", lifecycle.Stopped)
	requireState(t, s, "panicking", lifecycle.Stopped)

	require.Eventually(t, func() bool { return log.has("error adapter: worker exited") }, time.Second, 5*time.Millisecond)

	_, ok := s.Handle("failing")
	assert.False(t, ok)
}

type badInit struct {
	Adapter
}

func (badInit) Init(*deckctx.Context) error { return errors.New("no credentials") }

func TestInitFailure_LeavesStoppedAndOthersStart(t *testing.T) {
	var starts atomic.Int32
	log := &logRecorder{}
	s, _ := newSupervisor(t, log, []Adapter{
		badInit{Adapter: echo("broken", lifecycle.Eager, &starts, nil)},
		echo("healthy", lifecycle.Eager, &starts, nil),
	})

	s.StartEager()

	st, _ := s.State("broken")
	assert.Equal(t, lifecycle.Stopped, st)
	st, _ = s.State("healthy")
	assert.Equal(t, lifecycle.Running, st)
	assert.True(t, log.has("error adapter: start failed"))

	var serr *StartError
	require.ErrorAs(t, s.Start("broken"), &serr)
	assert.Equal(t, "broken", serr.Name)
}

func TestPublishToStoppedAdapterWarns(t *testing.T) {
	var starts atomic.Int32
	log := &logRecorder{}
	s, b := newSupervisor(t, log, []Adapter{echo("echo", lifecycle.Manual, &starts, nil)})

	require.NoError(t, s.Start("echo"))
	require.NoError(t, s.Stop("echo"))

	bus.PublishToAdapters(b, pingTopic, "", ping{Msg: "late"})

	assert.True(t, log.has("warn bus: delivery dropped"))
}

func TestApply_Controls(t *testing.T) {
	var starts atomic.Int32
	s, _ := newSupervisor(t, logging.Discard(), []Adapter{
		echo("m1", lifecycle.Manual, &starts, nil),
		echo("m2", lifecycle.Manual, &starts, nil),
		echo("e", lifecycle.Eager, &starts, nil),
	})

	s.Apply(lifecycle.Control{Op: lifecycle.OpStart, Target: lifecycle.ByPolicy(lifecycle.Manual)})
	require.Eventually(t, func() bool { return starts.Load() == 2 }, time.Second, 5*time.Millisecond)

	s.Apply(lifecycle.Control{Op: lifecycle.OpRestart, Target: lifecycle.Named("m1")})
	require.Eventually(t, func() bool { return starts.Load() == 3 }, time.Second, 5*time.Millisecond)

	s.Apply(lifecycle.Control{Op: lifecycle.OpStop, Target: lifecycle.All()})

	for _, d := range s.Descriptors() {
		switch d.Name {
		case "e":
			assert.Equal(t, lifecycle.Registered, d.State)
		default:
			assert.Equal(t, lifecycle.Stopped, d.State)
		}
	}
}

func TestOnAppLaunch_DebouncedStop(t *testing.T) {
	var starts atomic.Int32
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s, _ := newSupervisor(t, logging.Discard(),
		[]Adapter{echo("music", lifecycle.OnAppLaunch, &starts, nil)},
		WithClock(clock.Now),
		WithAppDebounce(250*time.Millisecond),
	)

	s.ApplicationLaunched("com.apple.Music")
	s.ApplicationLaunched("com.spotify.client")
	requireState(t, s, "music", lifecycle.Running)

	s.ApplicationTerminated("com.apple.Music")
	clock.Advance(time.Second)
	s.Tick()
	requireState(t, s, "music", lifecycle.Running)

	s.ApplicationTerminated("com.spotify.client")
	clock.Advance(100 * time.Millisecond)
	s.Tick()
	st, _ := s.State("music")
	assert.Equal(t, lifecycle.Running, st)

	// Relaunch inside the window cancels the pending stop.
	s.ApplicationLaunched("com.apple.Music")
	s.ApplicationTerminated("com.apple.Music")
	clock.Advance(200 * time.Millisecond)
	s.Tick()
	st, _ = s.State("music")
	assert.Equal(t, lifecycle.Running, st)

	clock.Advance(100 * time.Millisecond)
	s.Tick()
	requireState(t, s, "music", lifecycle.Stopped)
	assert.Equal(t, int32(1), starts.Load())
}

func TestStopAll_RefusesLaterStarts(t *testing.T) {
	var starts atomic.Int32
	s, b := newSupervisor(t, logging.Discard(), []Adapter{echo("echo", lifecycle.Lazy, &starts, nil)})

	s.StopAll()
	bus.PublishToAdapters(b, pingTopic, "", ping{})

	st, _ := s.State("echo")
	assert.Equal(t, lifecycle.Registered, st)
	assert.Zero(t, starts.Load())

	var serr *StartError
	assert.ErrorAs(t, s.Start("echo"), &serr)

	s.Wait()
}
