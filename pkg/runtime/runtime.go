// Package runtime is the composition root of a plugin process. It connects
// and registers the session, then runs the dispatch goroutine that owns all
// action and hook invocations until the host closes the connection, the
// context is cancelled or plugin code requests an exit.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/germanamz/deckhand/pkg/action"
	"github.com/germanamz/deckhand/pkg/adapter"
	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/config"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/hook"
	"github.com/germanamz/deckhand/pkg/launch"
	"github.com/germanamz/deckhand/pkg/lifecycle"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/plugin"
	"github.com/germanamz/deckhand/pkg/protocol"
	"github.com/germanamz/deckhand/pkg/session"
	"github.com/germanamz/deckhand/pkg/settings"
)

// InboundTopic carries every decoded protocol event to adapters. Lazy
// adapters subscribed to it start on the first inbound frame.
var InboundTopic = bus.NewTopic[protocol.Event]("deckhand.inbound")

// Option configures a Runtime.
type Option func(*Runtime)

// WithConfig replaces the default configuration.
func WithConfig(cfg config.Config) Option {
	return func(r *Runtime) { r.cfg = cfg }
}

// WithLogger sets the process logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d session.Dialer) Option {
	return func(r *Runtime) { r.dialer = d }
}

// Runtime wires a plugin definition to one host session.
type Runtime struct {
	def    *plugin.Definition
	args   launch.Args
	cfg    config.Config
	log    *slog.Logger
	dialer session.Dialer

	report     *reporter
	mail       *mailbox
	session    *session.Session
	client     *protocol.Client
	bus        *bus.Bus
	globals    *settings.Globals
	ext        *deckctx.Extensions
	actions    *action.Registry
	hooks      *hook.Registry
	supervisor *adapter.Supervisor

	controls sync.WaitGroup
	exiting  atomic.Bool
}

// New builds a runtime for def from the host's launch arguments.
func New(def *plugin.Definition, args launch.Args, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		def:  def,
		args: args,
		cfg:  config.Default(),
		log:  slog.Default(),
		mail: newMailbox(),
	}

	for _, o := range opts {
		o(r)
	}

	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	r.report = &reporter{log: r.log, post: r.mail.push}

	scheme, host := r.cfg.Endpoint()
	sessOpts := []session.Option{
		session.WithLogger(r.log),
		session.WithDialTimeout(r.cfg.DialTimeout),
		session.WithWriteTimeout(r.cfg.WriteTimeout),
		session.WithFrameTrace(r.cfg.LogWebsocket),
	}
	if r.dialer != nil {
		sessOpts = append(sessOpts, session.WithDialer(r.dialer))
	}

	r.session = session.New(
		args.URLFor(scheme, host),
		protocol.Registration{Event: args.RegisterEvent, UUID: args.PluginUUID},
		sessOpts...,
	)

	r.client = protocol.NewClient(protocol.SenderFunc(r.send), args.PluginUUID)
	r.bus = bus.New(
		bus.WithLogger(r.report),
		bus.WithActionSink(r),
		bus.WithObserver(r.observe),
	)
	r.globals = settings.New(r.client)
	r.ext = def.Extensions()
	r.hooks = hook.NewRegistry(r.log, def.Hooks()...)

	var err error

	r.actions, err = action.NewRegistry(r.report, def.Actions()...)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	r.supervisor, err = adapter.New(r.bus, r.newContext, def.Adapters(),
		adapter.WithInboxSize(r.cfg.InboxSize),
		adapter.WithShutdownTimeout(r.cfg.ShutdownTimeout),
		adapter.WithAppDebounce(r.cfg.AppDebounce),
		adapter.WithLogger(r.report),
	)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	return r, nil
}

// Hooks returns the hook registry. Hooks may be added while running.
func (r *Runtime) Hooks() *hook.Registry { return r.hooks }

// Bus returns the shared bus.
func (r *Runtime) Bus() *bus.Bus { return r.bus }

// Supervisor returns the adapter supervisor.
func (r *Runtime) Supervisor() *adapter.Supervisor { return r.supervisor }

// Session returns the protocol session.
func (r *Runtime) Session() *session.Session { return r.session }

func (r *Runtime) newContext() *deckctx.Context {
	return deckctx.New(deckctx.Params{
		Logger:     r.report,
		Client:     r.client,
		Bus:        r.bus,
		Globals:    r.globals,
		Extensions: r.ext,
		Host:       r,
	})
}

// logContext is handed to Log hooks. Its logger bypasses the reporter so a
// hook that logs cannot feed itself.
func (r *Runtime) logContext() *deckctx.Context {
	return deckctx.New(deckctx.Params{
		Logger:     logging.FromSlog(r.log),
		Client:     r.client,
		Bus:        r.bus,
		Globals:    r.globals,
		Extensions: r.ext,
		Host:       r,
	})
}

// send queues cmd on the session and lets hooks observe it. It is called from
// any goroutine through the Client. The Outgoing hook runs later on the
// dispatch goroutine, so a command sent inside a handler is observed after
// every hook fired for the event that handler is processing.
func (r *Runtime) send(cmd protocol.Command) {
	if err := r.session.Enqueue(cmd); err != nil {
		r.log.Debug("runtime: command dropped", "command", cmd.Name(), "error", err)
		return
	}

	r.mail.push(notice{kind: noticeOutgoing, cmd: cmd})
}

// DeliverToActions implements bus.ActionSink.
func (r *Runtime) DeliverToActions(target bus.Target, env *bus.Envelope) {
	r.mail.push(notice{kind: noticeActions, target: target, env: env})
}

func (r *Runtime) observe(env *bus.Envelope) {
	if env.Topic() == InboundTopic.Name() {
		return
	}

	r.mail.push(notice{kind: noticeAdapters, env: env})
}

// ControlAdapters implements deckctx.Host.
func (r *Runtime) ControlAdapters(ctl lifecycle.Control) {
	r.mail.push(notice{kind: noticeControl, control: ctl})
}

// RequestExit implements deckctx.Host.
func (r *Runtime) RequestExit() {
	if r.exiting.CompareAndSwap(false, true) {
		r.mail.push(notice{kind: noticeExit})
	}
}

// Run connects, registers and dispatches until the session ends, ctx is
// cancelled or RequestExit is called. It returns a *session.TransportError
// when the connection failed; a close by the host is not an error.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.session.Connect(ctx); err != nil {
		return err
	}

	r.hooks.Fire(r.newContext(), hook.Event{Kind: hook.Init})
	r.supervisor.StartEager()
	r.client.GetGlobalSettings()

	err := r.loop(ctx)
	r.shutdown()

	return err
}

func (r *Runtime) loop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("runtime: stopping", "reason", context.Cause(ctx))
			return nil
		case in, ok := <-r.session.Inbound():
			if !ok {
				return r.session.Err()
			}
			r.handleInbound(in)
		case <-r.mail.ready():
			if r.handleNotices(r.mail.drain()) {
				r.log.Info("runtime: exit requested")
				return nil
			}
		case <-ticker.C:
			r.hooks.Fire(r.newContext(), hook.Event{Kind: hook.Tick})
			r.supervisor.Tick()
		}
	}
}

func (r *Runtime) handleInbound(in session.Inbound) {
	if in.Err != nil {
		if errors.Is(in.Err, protocol.ErrUnknownEvent) {
			r.report.Log(logging.LevelWarn, "runtime: unknown event skipped", "error", in.Err)
			return
		}

		r.report.Log(logging.LevelError, "runtime: frame skipped", "error", in.Err, "raw", string(in.Raw))
		return
	}

	ev := in.Event
	cx := r.newContext()

	r.hooks.Fire(cx, hook.Event{Kind: hook.Incoming, Inbound: ev})

	switch e := ev.(type) {
	case *protocol.ApplicationEvent:
		if e.Event == protocol.EventApplicationDidLaunch {
			r.supervisor.ApplicationLaunched(e.Application)
		} else {
			r.supervisor.ApplicationTerminated(e.Application)
		}
	case *protocol.GlobalSettings:
		r.globals.Hydrate(e.Settings)
	}

	if kind, ok := hook.KindOf(ev); ok {
		r.hooks.Fire(cx, hook.Event{Kind: kind, Inbound: ev})
	}

	var ctxID string
	if c, ok := ev.(protocol.Contextual); ok {
		ctxID = c.Target().Context
	}
	r.bus.ToAdapters(bus.NewEnvelope(InboundTopic, ctxID, ev))

	r.actions.Dispatch(cx, ev)
}

// handleNotices processes a batch in order and reports whether an exit was
// requested. Notices after the exit request are left to shutdown.
func (r *Runtime) handleNotices(batch []notice) bool {
	for i, n := range batch {
		if n.kind == noticeExit {
			r.observeRest(batch[i+1:])
			return true
		}

		r.handleNotice(n)
	}

	return false
}

func (r *Runtime) handleNotice(n notice) {
	switch n.kind {
	case noticeOutgoing:
		r.hooks.Fire(r.newContext(), hook.Event{Kind: hook.Outgoing, Command: n.cmd})
	case noticeLog:
		r.hooks.Fire(r.logContext(), hook.Event{Kind: hook.Log, Level: n.level, Message: n.msg})
	case noticeActions:
		cx := r.newContext()
		r.hooks.Fire(cx, hook.Event{Kind: hook.ActionNotify, Envelope: n.env, Target: n.target})
		r.actions.Notify(cx, n.target, n.env)
	case noticeAdapters:
		r.hooks.Fire(r.newContext(), hook.Event{Kind: hook.AdapterNotify, Envelope: n.env})
	case noticeControl:
		r.hooks.Fire(r.newContext(), hook.Event{Kind: hook.AdapterControl, Control: n.control})
		r.controls.Go(func() { r.supervisor.Apply(n.control) })
	}
}

// observeRest fires hooks for notices that are pure observations. Action
// deliveries and adapter controls are dropped once shutdown started.
func (r *Runtime) observeRest(batch []notice) {
	for _, n := range batch {
		switch n.kind {
		case noticeOutgoing, noticeLog:
			r.handleNotice(n)
		}
	}
}

func (r *Runtime) shutdown() {
	r.exiting.Store(true)
	r.hooks.Fire(r.newContext(), hook.Event{Kind: hook.Exit})

	r.controls.Wait()
	r.supervisor.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.session.Close(ctx); err != nil {
		r.log.Warn("runtime: close session", "error", err)
	}

	r.observeRest(r.mail.drain())
	r.log.Info("runtime: shutdown complete")
}
