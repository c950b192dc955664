package main

import (
	"strconv"
	"time"

	"github.com/germanamz/deckhand/pkg/action"
	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/input"
	"github.com/germanamz/deckhand/pkg/protocol"
)

const (
	counterUUID = "com.germanamz.deckhand.counter"
	pingUUID    = "com.germanamz.deckhand.ping"
	clockUUID   = "com.germanamz.deckhand.clock"
	macroUUID   = "com.germanamz.deckhand.macro"
)

// Ping is sent by a ping key to the echo adapter.
type Ping struct {
	Sent time.Time
}

// Pong is the echo adapter's answer, addressed to the pinging key.
type Pong struct {
	Latency time.Duration
}

// Tick is the clock adapter's time signal.
type Tick struct {
	Now time.Time
}

var (
	pingTopic  = bus.NewTopic[Ping]("demo.ping")
	pongTopic  = bus.NewTopic[Pong]("demo.pong")
	clockTopic = bus.NewTopic[Tick]("demo.clock")
)

// counter counts key presses and dial ticks. The count lives in the key's
// settings; the total across keys lives in the global settings.
type counter struct {
	action.Base
	count int
}

func (c *counter) WillAppear(cx *deckctx.Context, ev *protocol.ControlEvent) {
	c.count = intSetting(ev.Settings, "count")
	c.render(cx, ev.Context)
}

func (c *counter) DidReceiveSettings(cx *deckctx.Context, ev *protocol.ControlEvent) {
	c.count = intSetting(ev.Settings, "count")
	c.render(cx, ev.Context)
}

func (c *counter) KeyDown(cx *deckctx.Context, ev *protocol.ControlEvent) {
	c.add(cx, ev.Context, 1)
}

func (c *counter) DialRotate(cx *deckctx.Context, ev *protocol.DialRotate) {
	c.add(cx, ev.Context, ev.Ticks)
}

func (c *counter) DialDown(cx *deckctx.Context, ev *protocol.DialEvent) {
	c.count = 0
	cx.Client().SetSettings(ev.Context, map[string]any{"count": 0})
	c.render(cx, ev.Context)
}

func (c *counter) add(cx *deckctx.Context, context string, n int) {
	c.count += n
	cx.Client().SetSettings(context, map[string]any{"count": c.count})
	c.render(cx, context)

	cx.Globals().Update(func(m map[string]any) {
		m["presses"] = intSetting(m, "presses") + 1
	})
}

func (c *counter) render(cx *deckctx.Context, context string) {
	cx.Client().SetTitle(context, strconv.Itoa(c.count))
}

// intSetting reads a JSON number setting.
func intSetting(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// pinger round-trips a ping through the echo adapter and shows the latency.
type pinger struct {
	action.Base
}

func (p *pinger) KeyDown(cx *deckctx.Context, ev *protocol.ControlEvent) {
	bus.PublishToAdapters(cx.Bus(), pingTopic, ev.Context, Ping{Sent: time.Now()})
}

func (p *pinger) OnNotify(cx *deckctx.Context, context string, env *bus.Envelope) {
	pong, ok := bus.Downcast(env, pongTopic)
	if !ok {
		return
	}

	cx.Client().SetTitle(context, strconv.FormatInt(pong.Latency.Milliseconds(), 10)+"ms")
	cx.Client().ShowOk(context)
}

// clockFace shows the time published by the clock adapter.
type clockFace struct {
	action.Base
}

func (c *clockFace) Topics() []string { return []string{clockTopic.Name()} }

func (c *clockFace) OnNotify(cx *deckctx.Context, context string, env *bus.Envelope) {
	if t, ok := bus.Downcast(env, clockTopic); ok {
		cx.Client().SetTitle(context, t.Now.Format("15:04:05"))
	}
}

// macro sends the key combination stored in its "keys" setting.
type macro struct {
	action.Base
	keys string
}

func (m *macro) WillAppear(_ *deckctx.Context, ev *protocol.ControlEvent) {
	m.keys, _ = ev.Settings["keys"].(string)
}

func (m *macro) DidReceiveSettings(_ *deckctx.Context, ev *protocol.ControlEvent) {
	m.keys, _ = ev.Settings["keys"].(string)
}

func (m *macro) KeyDown(cx *deckctx.Context, ev *protocol.ControlEvent) {
	mods, key, err := input.ParseCombo(m.keys)
	if err != nil {
		cx.Warn("demo: bad macro", "context", ev.Context, "error", err)
		cx.Client().ShowAlert(ev.Context)
		return
	}

	ex, ok := deckctx.Ext[*input.Executor](cx)
	if !ok {
		cx.Client().ShowAlert(ev.Context)
		return
	}

	if err := ex.Enqueue(input.Chord(mods, key)...); err != nil {
		cx.Warn("demo: macro rejected", "context", ev.Context, "error", err)
		cx.Client().ShowAlert(ev.Context)
		return
	}

	cx.Client().ShowOk(ev.Context)
}

func (m *macro) PropertyInspectorDidAppear(cx *deckctx.Context, ev *protocol.PropertyInspectorEvent) {
	keys := input.Keys()
	tokens := make([]string, 0, len(keys))
	for _, k := range keys {
		tokens = append(tokens, k.String())
	}

	cx.Client().SendToPropertyInspector(ev.Context, map[string]any{"keys": m.keys, "known": tokens})
}

func (m *macro) SendToPlugin(cx *deckctx.Context, ev *protocol.SendToPlugin) {
	keys, ok := ev.Payload["keys"].(string)
	if !ok {
		return
	}

	if _, _, err := input.ParseCombo(keys); err != nil {
		cx.Client().SendToPropertyInspector(ev.Context, map[string]any{"error": err.Error()})
		return
	}

	m.keys = keys
	cx.Client().SetSettings(ev.Context, map[string]any{"keys": keys})
}
