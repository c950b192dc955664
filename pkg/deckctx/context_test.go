package deckctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/deckhand/pkg/lifecycle"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/protocol"
)

type fakeHost struct {
	controls []lifecycle.Control
	exits    int
}

func (h *fakeHost) ControlAdapters(ctl lifecycle.Control) { h.controls = append(h.controls, ctl) }
func (h *fakeHost) RequestExit()                          { h.exits++ }

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

func TestNew_Defaults(t *testing.T) {
	cx := New(Params{})

	assert.NotNil(t, cx.Client())
	assert.NotNil(t, cx.Bus())
	assert.NotNil(t, cx.Globals())
	assert.NotNil(t, cx.Extensions())
	assert.Empty(t, cx.PluginUUID())

	// No host: both calls are safe.
	cx.ControlAdapters(lifecycle.Control{Op: lifecycle.OpStart, Target: lifecycle.All()})
	cx.RequestExit()
}

func TestContext_Delegates(t *testing.T) {
	var sent []protocol.Command
	var logged []string
	host := &fakeHost{}

	cx := New(Params{
		Client: protocol.NewClient(protocol.SenderFunc(func(c protocol.Command) { sent = append(sent, c) }), "plugin"),
		Logger: logging.Func(func(l logging.Level, msg string, _ ...any) { logged = append(logged, l.String()+":"+msg) }),
		Host:   host,
	})

	cx.Client().ShowOk("ctx")
	cx.Warn("careful")
	cx.Error("broken")
	cx.ControlAdapters(lifecycle.Control{Op: lifecycle.OpStop, Target: lifecycle.Named("clock")})
	cx.RequestExit()

	assert.Equal(t, "plugin", cx.PluginUUID())
	assert.Len(t, sent, 1)
	assert.Equal(t, []string{"warn:careful", "error:broken"}, logged)
	require.Len(t, host.controls, 1)
	assert.Equal(t, "stop name:clock", host.controls[0].String())
	assert.Equal(t, 1, host.exits)
}

func TestExtensions(t *testing.T) {
	ext := NewExtensions()
	cx := New(Params{Extensions: ext})

	_, ok := Ext[greeter](cx)
	assert.False(t, ok)

	Provide[greeter](ext, english{})
	Provide(ext, 42)

	g, ok := Ext[greeter](cx)
	require.True(t, ok)
	assert.Equal(t, "hello", g.Greet())

	n, ok := Lookup[int](ext)
	require.True(t, ok)
	assert.Equal(t, 42, n)

	// Registered under the interface type, not the concrete one.
	_, ok = Ext[english](cx)
	assert.False(t, ok)
}
