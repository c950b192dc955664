// Package deckctx defines the capability view handed to actions, adapters and
// hooks. A Context bundles the reporting logger, the outgoing-command client,
// the bus, the global settings cache and typed extensions. It owns none of
// them.
package deckctx

import (
	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/lifecycle"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/protocol"
	"github.com/germanamz/deckhand/pkg/settings"
)

// Host is the part of the runtime plugin code may call back into. Both
// methods only enqueue a request for the dispatch goroutine.
type Host interface {
	ControlAdapters(ctl lifecycle.Control)
	RequestExit()
}

// Params are the collaborators a Context exposes.
type Params struct {
	Logger     logging.Logger
	Client     *protocol.Client
	Bus        *bus.Bus
	Globals    *settings.Globals
	Extensions *Extensions
	Host       Host
}

// Context is a non-owning view over the runtime's collaborators.
type Context struct {
	log     logging.Logger
	client  *protocol.Client
	bus     *bus.Bus
	globals *settings.Globals
	ext     *Extensions
	host    Host
}

// New creates a Context. Missing collaborators are replaced with inert ones so
// tests can build partial contexts.
func New(p Params) *Context {
	cx := &Context{
		log:     p.Logger,
		client:  p.Client,
		bus:     p.Bus,
		globals: p.Globals,
		ext:     p.Extensions,
		host:    p.Host,
	}

	if cx.log == nil {
		cx.log = logging.Discard()
	}
	if cx.client == nil {
		cx.client = protocol.NewClient(protocol.SenderFunc(func(protocol.Command) {}), "")
	}
	if cx.bus == nil {
		cx.bus = bus.New(bus.WithLogger(cx.log))
	}
	if cx.globals == nil {
		cx.globals = settings.New(nil)
	}
	if cx.ext == nil {
		cx.ext = NewExtensions()
	}

	return cx
}

// Client returns the outgoing-command capability.
func (cx *Context) Client() *protocol.Client { return cx.client }

// Bus returns the shared bus.
func (cx *Context) Bus() *bus.Bus { return cx.bus }

// Globals returns the global settings cache.
func (cx *Context) Globals() *settings.Globals { return cx.globals }

// Extensions returns the typed extension store.
func (cx *Context) Extensions() *Extensions { return cx.ext }

// PluginUUID returns the identifier the plugin registered with.
func (cx *Context) PluginUUID() string { return cx.client.PluginUUID() }

// Logger returns the reporting capability.
func (cx *Context) Logger() logging.Logger { return cx.log }

func (cx *Context) Debug(msg string, args ...any) { cx.log.Log(logging.LevelDebug, msg, args...) }
func (cx *Context) Info(msg string, args ...any)  { cx.log.Log(logging.LevelInfo, msg, args...) }
func (cx *Context) Warn(msg string, args ...any)  { cx.log.Log(logging.LevelWarn, msg, args...) }
func (cx *Context) Error(msg string, args ...any) { cx.log.Log(logging.LevelError, msg, args...) }

// ControlAdapters asks the supervisor to start, stop or restart adapters.
func (cx *Context) ControlAdapters(ctl lifecycle.Control) {
	if cx.host == nil {
		cx.Warn("deckctx: adapter control without a runtime", "control", ctl.String())
		return
	}

	cx.host.ControlAdapters(ctl)
}

// RequestExit asks the runtime to shut down.
func (cx *Context) RequestExit() {
	if cx.host != nil {
		cx.host.RequestExit()
	}
}
