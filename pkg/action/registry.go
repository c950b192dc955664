package action

import (
	"errors"
	"fmt"

	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/protocol"
)

// ErrUnknownAction is returned for action UUIDs without a registered factory.
var ErrUnknownAction = errors.New("action: unknown action")

type key struct {
	uuid    string
	context string
}

type instance struct {
	key
	act    Action
	topics map[string]struct{}
}

// Registry owns the live action instances. It must only be used from one
// goroutine.
type Registry struct {
	log       logging.Logger
	factories map[string]Factory
	uuids     []string

	instances map[key]*instance
	order     []*instance // creation order
}

// Validate checks a set of registrations for empty or duplicate UUIDs and
// missing factories.
func Validate(regs []Registration) error {
	seen := make(map[string]struct{}, len(regs))
	for _, reg := range regs {
		if reg.UUID == "" {
			return fmt.Errorf("action: registration: uuid is required")
		}
		if reg.New == nil {
			return fmt.Errorf("action: registration %q: factory is required", reg.UUID)
		}
		if _, dup := seen[reg.UUID]; dup {
			return fmt.Errorf("action: registration: duplicate uuid %q", reg.UUID)
		}
		seen[reg.UUID] = struct{}{}
	}

	return nil
}

// NewRegistry creates a registry for regs. log receives unknown-action
// warnings and handler failures.
func NewRegistry(log logging.Logger, regs ...Registration) (*Registry, error) {
	if err := Validate(regs); err != nil {
		return nil, err
	}

	if log == nil {
		log = logging.Discard()
	}

	r := &Registry{
		log:       log,
		factories: make(map[string]Factory, len(regs)),
		instances: make(map[key]*instance),
	}

	for _, reg := range regs {
		r.factories[reg.UUID] = reg.New
		r.uuids = append(r.uuids, reg.UUID)
	}

	return r, nil
}

// UUIDs returns the registered action UUIDs in registration order.
func (r *Registry) UUIDs() []string {
	return append([]string(nil), r.uuids...)
}

// Len returns the number of live instances.
func (r *Registry) Len() int { return len(r.order) }

// Instance returns the live instance for (uuid, context).
func (r *Registry) Instance(uuid, context string) (Action, bool) {
	in, ok := r.instances[key{uuid: uuid, context: context}]
	if !ok {
		return nil, false
	}

	return in.act, true
}

// EnsureInstance returns the instance for (uuid, context), creating and
// initialising it on first use.
func (r *Registry) EnsureInstance(cx *deckctx.Context, uuid, context string) (Action, error) {
	in, err := r.ensure(cx, uuid, context)
	if err != nil {
		return nil, err
	}

	return in.act, nil
}

func (r *Registry) ensure(cx *deckctx.Context, uuid, context string) (*instance, error) {
	k := key{uuid: uuid, context: context}
	if in, ok := r.instances[k]; ok {
		return in, nil
	}

	factory, ok := r.factories[uuid]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, uuid)
	}

	act, err := build(factory)
	if err != nil {
		return nil, fmt.Errorf("action: build %q: %w", uuid, err)
	}

	in := &instance{key: k, act: act, topics: make(map[string]struct{})}
	r.instances[k] = in
	r.order = append(r.order, in)

	r.guard(in, "init", func() { act.Init(cx, context) })
	r.guard(in, "topics", func() {
		for _, t := range act.Topics() {
			in.topics[t] = struct{}{}
		}
	})

	return in, nil
}

func build(f Factory) (act Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory panicked: %v", r)
		}
	}()

	act = f()
	if act == nil {
		return nil, errors.New("factory returned nil")
	}

	return act, nil
}

// RemoveInstance tears down and drops the instance for (uuid, context). It
// reports whether an instance existed.
func (r *Registry) RemoveInstance(cx *deckctx.Context, uuid, context string) bool {
	k := key{uuid: uuid, context: context}

	in, ok := r.instances[k]
	if !ok {
		return false
	}

	r.guard(in, "teardown", func() { in.act.Teardown(cx, context) })

	delete(r.instances, k)
	for i, o := range r.order {
		if o == in {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return true
}

// Dispatch routes a protocol event. Events addressed to a control go to that
// control's instance, created on demand; willDisappear removes the instance
// after its handler ran. Other events are broadcast through OnGlobalEvent in
// creation order.
func (r *Registry) Dispatch(cx *deckctx.Context, ev protocol.Event) {
	c, ok := ev.(protocol.Contextual)
	if !ok {
		for _, in := range r.order {
			r.guard(in, "on_global_event", func() { in.act.OnGlobalEvent(cx, ev) })
		}
		return
	}

	ref := c.Target()

	in, err := r.ensure(cx, ref.Action, ref.Context)
	if err != nil {
		r.log.Log(logging.LevelWarn, "action: event dropped",
			"event", string(ev.Name()),
			"action", ref.Action,
			"context", ref.Context,
			"error", err,
		)
		return
	}

	handler := string(ev.Name())
	act := in.act

	switch e := ev.(type) {
	case *protocol.ControlEvent:
		switch e.Event {
		case protocol.EventWillAppear:
			r.guard(in, handler, func() { act.WillAppear(cx, e) })
		case protocol.EventWillDisappear:
			r.guard(in, handler, func() { act.WillDisappear(cx, e) })
			r.RemoveInstance(cx, ref.Action, ref.Context)
		case protocol.EventKeyDown:
			r.guard(in, handler, func() { act.KeyDown(cx, e) })
		case protocol.EventKeyUp:
			r.guard(in, handler, func() { act.KeyUp(cx, e) })
		case protocol.EventDidReceiveSettings:
			r.guard(in, handler, func() { act.DidReceiveSettings(cx, e) })
		}
	case *protocol.DialEvent:
		if e.Event == protocol.EventDialDown {
			r.guard(in, handler, func() { act.DialDown(cx, e) })
		} else {
			r.guard(in, handler, func() { act.DialUp(cx, e) })
		}
	case *protocol.DialRotate:
		r.guard(in, handler, func() { act.DialRotate(cx, e) })
	case *protocol.TouchTap:
		r.guard(in, handler, func() { act.TouchTap(cx, e) })
	case *protocol.TitleParametersDidChange:
		r.guard(in, handler, func() { act.TitleParametersDidChange(cx, e) })
	case *protocol.PropertyInspectorEvent:
		if e.Event == protocol.EventPropertyInspectorDidAppear {
			r.guard(in, handler, func() { act.PropertyInspectorDidAppear(cx, e) })
		} else {
			r.guard(in, handler, func() { act.PropertyInspectorDidDisappear(cx, e) })
		}
	case *protocol.SendToPlugin:
		r.guard(in, handler, func() { act.SendToPlugin(cx, e) })
	}
}

// Notify delivers env to the instances selected by target and returns how
// many received it.
func (r *Registry) Notify(cx *deckctx.Context, target bus.Target, env *bus.Envelope) int {
	delivered := 0

	for _, in := range r.order {
		if !matches(in, target, env) {
			continue
		}

		r.guard(in, "on_notify", func() { in.act.OnNotify(cx, in.context, env) })
		delivered++
	}

	if delivered > 0 {
		return delivered
	}

	switch target.Kind {
	case bus.TargetContext:
		r.log.Log(logging.LevelWarn, "action: notify for unknown context", "context", target.ID, "topic", env.Topic())
	case bus.TargetAction:
		if _, ok := r.factories[target.ID]; !ok {
			r.log.Log(logging.LevelWarn, "action: notify for unknown action", "action", target.ID, "topic", env.Topic())
		}
	case bus.TargetTopic:
		r.log.Log(logging.LevelDebug, "action: no instance subscribed", "topic", env.Topic())
	}

	return 0
}

func matches(in *instance, target bus.Target, env *bus.Envelope) bool {
	switch target.Kind {
	case bus.TargetAll:
		return true
	case bus.TargetContext:
		return in.context == target.ID
	case bus.TargetAction:
		return in.uuid == target.ID
	default:
		_, ok := in.topics[env.Topic()]
		return ok
	}
}

// guard runs fn and converts a panic into an error-level report so a faulty
// handler cannot take down the dispatch goroutine.
func (r *Registry) guard(in *instance, handler string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Log(logging.LevelError, "action: handler panicked",
				"action", in.uuid,
				"context", in.context,
				"handler", handler,
				"panic", fmt.Sprint(p),
			)
		}
	}()

	fn()
}
