package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/hook"
	"github.com/germanamz/deckhand/pkg/input"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/protocol"
)

type sent struct {
	mu   sync.Mutex
	cmds []protocol.Command
}

func (s *sent) Send(cmd protocol.Command) {
	s.mu.Lock()
	s.cmds = append(s.cmds, cmd)
	s.mu.Unlock()
}

func (s *sent) all() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]protocol.Command(nil), s.cmds...)
}

func (s *sent) titles() []string {
	var out []string
	for _, c := range s.all() {
		if st, ok := c.(protocol.SetTitle); ok && st.Title != nil {
			out = append(out, *st.Title)
		}
	}

	return out
}

type sink struct {
	mu   sync.Mutex
	envs []*bus.Envelope
	to   []bus.Target
}

func (s *sink) DeliverToActions(target bus.Target, env *bus.Envelope) {
	s.mu.Lock()
	s.envs = append(s.envs, env)
	s.to = append(s.to, target)
	s.mu.Unlock()
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.envs)
}

func newCx(t *testing.T, out *sent, ext *deckctx.Extensions, b *bus.Bus) *deckctx.Context {
	t.Helper()

	return deckctx.New(deckctx.Params{
		Client:     protocol.NewClient(out, "plugin-uuid"),
		Extensions: ext,
		Bus:        b,
	})
}

func control(context string, settings map[string]any) *protocol.ControlEvent {
	return &protocol.ControlEvent{
		Ref:      protocol.Ref{Action: counterUUID, Context: context},
		Event:    protocol.EventKeyDown,
		Settings: settings,
	}
}

func TestDefinition(t *testing.T) {
	def, err := definition(input.NewExecutor(&input.Recorder{}))
	require.NoError(t, err)

	assert.Equal(t, "deckhand-demo", def.Name())
	assert.Len(t, def.Actions(), 4)
	assert.Len(t, def.Adapters(), 2)

	_, ok := deckctx.Lookup[*input.Executor](def.Extensions())
	assert.True(t, ok)
}

func TestCounter(t *testing.T) {
	out := &sent{}
	cx := newCx(t, out, nil, nil)
	c := &counter{}

	c.WillAppear(cx, control("k1", map[string]any{"count": float64(2)}))
	c.KeyDown(cx, control("k1", nil))
	c.DialRotate(cx, &protocol.DialRotate{Ref: protocol.Ref{Context: "k1"}, Ticks: -5})

	assert.Equal(t, []string{"2", "3", "-2"}, out.titles())

	presses, ok := cx.Globals().Get("presses")
	require.True(t, ok)
	assert.Equal(t, 2, presses)

	var last protocol.SetSettings
	for _, cmd := range out.all() {
		if s, ok := cmd.(protocol.SetSettings); ok {
			last = s
		}
	}
	assert.Equal(t, map[string]any{"count": -2}, last.Settings)
}

func TestMacro(t *testing.T) {
	rec := &input.Recorder{}
	ex := input.NewExecutor(rec)
	t.Cleanup(func() { _ = ex.Close(context.Background()) })

	ext := deckctx.NewExtensions()
	deckctx.Provide(ext, ex)

	out := &sent{}
	cx := newCx(t, out, ext, nil)
	m := &macro{}

	m.WillAppear(cx, control("m1", map[string]any{"keys": "lctrl+c"}))
	m.KeyDown(cx, control("m1", nil))

	assert.Eventually(t, func() bool { return len(rec.Steps()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, out.all(), protocol.Command(protocol.ShowOk{Context: "m1"}))
}

func TestMacro_BadKeys(t *testing.T) {
	out := &sent{}
	cx := newCx(t, out, nil, nil)
	m := &macro{keys: "lctrl+nope"}

	m.KeyDown(cx, control("m1", nil))

	assert.Equal(t, []protocol.Command{protocol.ShowAlert{Context: "m1"}}, out.all())
}

func TestMacro_SendToPlugin(t *testing.T) {
	out := &sent{}
	cx := newCx(t, out, nil, nil)
	m := &macro{}

	m.SendToPlugin(cx, &protocol.SendToPlugin{Ref: protocol.Ref{Context: "m1"}, Payload: map[string]any{"keys": "f5"}})
	assert.Equal(t, "f5", m.keys)

	m.SendToPlugin(cx, &protocol.SendToPlugin{Ref: protocol.Ref{Context: "m1"}, Payload: map[string]any{"keys": "bogus"}})
	assert.Equal(t, "f5", m.keys)

	cmds := out.all()
	require.Len(t, cmds, 2)
	assert.Equal(t, protocol.SetSettings{Context: "m1", Settings: map[string]any{"keys": "f5"}}, cmds[0])
	assert.IsType(t, protocol.SendToPropertyInspector{}, cmds[1])
}

func TestPingerAndClock(t *testing.T) {
	out := &sent{}
	cx := newCx(t, out, nil, nil)

	(&pinger{}).OnNotify(cx, "p1", bus.NewEnvelope(pongTopic, "p1", Pong{Latency: 7 * time.Millisecond}))
	// Other topics are ignored.
	(&pinger{}).OnNotify(cx, "p1", bus.NewEnvelope(clockTopic, "", Tick{}))

	at := time.Date(2026, 1, 2, 13, 4, 5, 0, time.UTC)
	(&clockFace{}).OnNotify(cx, "c1", bus.NewEnvelope(clockTopic, "", Tick{Now: at}))

	assert.Equal(t, []string{"7ms", "13:04:05"}, out.titles())
	assert.Contains(t, out.all(), protocol.Command(protocol.ShowOk{Context: "p1"}))
}

func TestEchoAnswersSender(t *testing.T) {
	s := &sink{}
	b := bus.New(bus.WithActionSink(s))
	cx := newCx(t, &sent{}, nil, b)

	inbox := make(chan *bus.Envelope, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newEcho().Run(ctx, cx, inbox) }()

	inbox <- bus.NewEnvelope(pingTopic, "p1", Ping{Sent: time.Now()})
	assert.Eventually(t, func() bool { return s.len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, bus.ToContext("p1"), s.to[0])
	_, ok := bus.Downcast(s.envs[0], pongTopic)
	assert.True(t, ok)
}

func TestForwardWarnings(t *testing.T) {
	out := &sent{}
	cx := newCx(t, out, nil, nil)

	forwardWarnings(cx, hook.Event{Kind: hook.Log, Level: logging.LevelInfo, Message: "quiet"})
	forwardWarnings(cx, hook.Event{Kind: hook.Log, Level: logging.LevelError, Message: "loud"})
	forwardWarnings(cx, hook.Event{Kind: hook.Tick})

	assert.Equal(t, []protocol.Command{protocol.LogMessage{Message: "[error] loud"}}, out.all())
}
