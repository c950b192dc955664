package action

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/protocol"
)

type ping struct {
	Msg string
}

var pingTopic = bus.NewTopic[ping]("demo.ping")

// journal is shared by every recorder instance in a test.
type journal struct {
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

type recorder struct {
	Base
	name   string
	topics []string
	j      *journal
}

func (a *recorder) Topics() []string { return a.topics }
func (a *recorder) Init(_ *deckctx.Context, ctx string) {
	a.j.add("%s init %s", a.name, ctx)
}
func (a *recorder) Teardown(_ *deckctx.Context, ctx string) {
	a.j.add("%s teardown %s", a.name, ctx)
}
func (a *recorder) WillAppear(_ *deckctx.Context, ev *protocol.ControlEvent) {
	a.j.add("%s willAppear %s", a.name, ev.Context)
}
func (a *recorder) WillDisappear(_ *deckctx.Context, ev *protocol.ControlEvent) {
	a.j.add("%s willDisappear %s", a.name, ev.Context)
}
func (a *recorder) KeyDown(_ *deckctx.Context, ev *protocol.ControlEvent) {
	a.j.add("%s keyDown %s", a.name, ev.Context)
}
func (a *recorder) DialRotate(_ *deckctx.Context, ev *protocol.DialRotate) {
	a.j.add("%s dialRotate %d", a.name, ev.Ticks)
}
func (a *recorder) OnGlobalEvent(_ *deckctx.Context, ev protocol.Event) {
	a.j.add("%s global %s", a.name, ev.Name())
}
func (a *recorder) OnNotify(_ *deckctx.Context, ctx string, env *bus.Envelope) {
	if p, ok := bus.Downcast(env, pingTopic); ok {
		a.j.add("%s notify %s %s", a.name, ctx, p.Msg)
		return
	}
	a.j.add("%s notify %s %s", a.name, ctx, env.Topic())
}

type panicky struct {
	Base
}

func (panicky) KeyDown(*deckctx.Context, *protocol.ControlEvent) { panic("handler bug") }

type logRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (l *logRecorder) Log(level logging.Level, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, level.String()+" "+msg)
}

func control(name protocol.EventName, uuid, ctx string) *protocol.ControlEvent {
	return &protocol.ControlEvent{
		Ref:   protocol.Ref{Action: uuid, Context: ctx, Device: "dev"},
		Event: name,
	}
}

func newRegistry(t *testing.T, log logging.Logger, j *journal) *Registry {
	t.Helper()

	r, err := NewRegistry(log,
		Registration{UUID: "com.example.a", New: func() Action {
			return &recorder{name: "A", topics: []string{"demo.ping"}, j: j}
		}},
		Registration{UUID: "com.example.b", New: func() Action {
			return &recorder{name: "B", topics: []string{"demo.ping"}, j: j}
		}},
		Registration{UUID: "com.example.quiet", New: func() Action {
			return &recorder{name: "Q", j: j}
		}},
		Registration{UUID: "com.example.panic", New: func() Action { return panicky{} }},
	)
	require.NoError(t, err)

	return r
}

func TestValidate(t *testing.T) {
	newA := func() Action { return Base{} }

	require.NoError(t, Validate([]Registration{{UUID: "a", New: newA}, {UUID: "b", New: newA}}))
	assert.ErrorContains(t, Validate([]Registration{{UUID: "", New: newA}}), "uuid is required")
	assert.ErrorContains(t, Validate([]Registration{{UUID: "a"}}), "factory is required")
	assert.ErrorContains(t, Validate([]Registration{{UUID: "a", New: newA}, {UUID: "a", New: newA}}), "duplicate")

	_, err := NewRegistry(nil, Registration{UUID: "a", New: newA}, Registration{UUID: "a", New: newA})
	assert.Error(t, err)
}

func TestEnsureInstance_Idempotent(t *testing.T) {
	j := &journal{}
	r := newRegistry(t, nil, j)
	cx := deckctx.New(deckctx.Params{})

	first, err := r.EnsureInstance(cx, "com.example.a", "ctx-1")
	require.NoError(t, err)
	second, err := r.EnsureInstance(cx, "com.example.a", "ctx-1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"A init ctx-1"}, j.entries)

	other, err := r.EnsureInstance(cx, "com.example.a", "ctx-2")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, []string{"com.example.a", "com.example.b", "com.example.quiet", "com.example.panic"}, r.UUIDs())
}

func TestEnsureInstance_UnknownAndBadFactory(t *testing.T) {
	r, err := NewRegistry(nil,
		Registration{UUID: "nil", New: func() Action { return nil }},
		Registration{UUID: "boom", New: func() Action { panic("no") }},
	)
	require.NoError(t, err)
	cx := deckctx.New(deckctx.Params{})

	_, err = r.EnsureInstance(cx, "missing", "c")
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = r.EnsureInstance(cx, "nil", "c")
	assert.ErrorContains(t, err, "factory returned nil")

	_, err = r.EnsureInstance(cx, "boom", "c")
	assert.ErrorContains(t, err, "factory panicked")
	assert.Zero(t, r.Len())
}

func TestDispatch_Lifecycle(t *testing.T) {
	j := &journal{}
	r := newRegistry(t, nil, j)
	cx := deckctx.New(deckctx.Params{})

	r.Dispatch(cx, control(protocol.EventWillAppear, "com.example.a", "ctx-1"))
	r.Dispatch(cx, control(protocol.EventKeyDown, "com.example.a", "ctx-1"))
	r.Dispatch(cx, control(protocol.EventWillDisappear, "com.example.a", "ctx-1"))

	assert.Equal(t, []string{
		"A init ctx-1",
		"A willAppear ctx-1",
		"A keyDown ctx-1",
		"A willDisappear ctx-1",
		"A teardown ctx-1",
	}, j.entries)

	_, ok := r.Instance("com.example.a", "ctx-1")
	assert.False(t, ok)
	assert.False(t, r.RemoveInstance(cx, "com.example.a", "ctx-1"))
}

func TestDispatch_UnknownActionWarns(t *testing.T) {
	log := &logRecorder{}
	r := newRegistry(t, log, &journal{})

	r.Dispatch(deckctx.New(deckctx.Params{}), control(protocol.EventKeyDown, "com.example.nope", "ctx"))

	assert.Equal(t, []string{"warn action: event dropped"}, log.entries)
	assert.Zero(t, r.Len())
}

func TestDispatch_HandlerPanicIsolated(t *testing.T) {
	log := &logRecorder{}
	j := &journal{}
	r := newRegistry(t, log, j)
	cx := deckctx.New(deckctx.Params{})

	require.NotPanics(t, func() {
		r.Dispatch(cx, control(protocol.EventKeyDown, "com.example.panic", "ctx-p"))
	})
	assert.Equal(t, []string{"error action: handler panicked"}, log.entries)

	// The registry keeps working.
	r.Dispatch(cx, control(protocol.EventKeyDown, "com.example.a", "ctx-1"))
	assert.Contains(t, j.entries, "A keyDown ctx-1")
}

func TestDispatch_GlobalBroadcastInCreationOrder(t *testing.T) {
	j := &journal{}
	r := newRegistry(t, nil, j)
	cx := deckctx.New(deckctx.Params{})

	_, _ = r.EnsureInstance(cx, "com.example.b", "ctx-b")
	_, _ = r.EnsureInstance(cx, "com.example.a", "ctx-a")
	j.entries = nil

	r.Dispatch(cx, &protocol.ApplicationEvent{Event: protocol.EventApplicationDidLaunch, Application: "x"})

	assert.Equal(t, []string{"B global applicationDidLaunch", "A global applicationDidLaunch"}, j.entries)
}

func TestDispatch_Encoder(t *testing.T) {
	j := &journal{}
	r := newRegistry(t, nil, j)

	r.Dispatch(deckctx.New(deckctx.Params{}), &protocol.DialRotate{
		Ref:   protocol.Ref{Action: "com.example.a", Context: "ctx-d"},
		Ticks: 3,
	})

	assert.Equal(t, []string{"A init ctx-d", "A dialRotate 3"}, j.entries)
}

func TestNotify_TopicFanOutInRegistrationOrder(t *testing.T) {
	j := &journal{}
	r := newRegistry(t, nil, j)
	cx := deckctx.New(deckctx.Params{})

	_, _ = r.EnsureInstance(cx, "com.example.a", "ctx-a")
	_, _ = r.EnsureInstance(cx, "com.example.quiet", "ctx-q")
	_, _ = r.EnsureInstance(cx, "com.example.b", "ctx-b")
	j.entries = nil

	n := r.Notify(cx, bus.ToTopic(), bus.NewEnvelope(pingTopic, "", ping{Msg: "hi"}))

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"A notify ctx-a hi", "B notify ctx-b hi"}, j.entries)
}

func TestNotify_Targets(t *testing.T) {
	log := &logRecorder{}
	j := &journal{}
	r := newRegistry(t, log, j)
	cx := deckctx.New(deckctx.Params{})

	_, _ = r.EnsureInstance(cx, "com.example.a", "ctx-a1")
	_, _ = r.EnsureInstance(cx, "com.example.a", "ctx-a2")
	_, _ = r.EnsureInstance(cx, "com.example.quiet", "ctx-q")
	j.entries = nil

	other := bus.NewEnvelope(bus.NewTopic[int]("demo.count"), "", 1)

	assert.Equal(t, 3, r.Notify(cx, bus.ToAll(), other))
	assert.Equal(t, 1, r.Notify(cx, bus.ToContext("ctx-q"), other))
	assert.Equal(t, 2, r.Notify(cx, bus.ToAction("com.example.a"), other))
	assert.Equal(t, 0, r.Notify(cx, bus.ToContext("ctx-missing"), other))
	assert.Equal(t, 0, r.Notify(cx, bus.ToAction("com.example.missing"), other))
	assert.Equal(t, 0, r.Notify(cx, bus.ToTopic(), other))

	assert.Len(t, j.entries, 6)
	assert.Equal(t, []string{
		"warn action: notify for unknown context",
		"warn action: notify for unknown action",
		"debug action: no instance subscribed",
	}, log.entries)
}
