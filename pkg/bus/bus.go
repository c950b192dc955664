// Package bus implements the typed publish/subscribe channel shared by
// actions and adapters.
//
// Adapter-bound deliveries go straight into each subscribed adapter's bounded
// Inbox and never block the publisher: a full or closed inbox drops the
// envelope and reports a warning. Action-bound deliveries are handed to an
// ActionSink, which the runtime implements with its dispatch mailbox so that
// actions are only ever invoked from the dispatch goroutine.
package bus

import (
	"slices"
	"sync"

	"github.com/germanamz/deckhand/pkg/logging"
)

// Starter starts lazy adapters on demand. EnsureStarted must be idempotent
// and safe for concurrent use.
type Starter interface {
	EnsureStarted(name string)
}

// ActionSink receives action-bound envelopes. DeliverToActions must not block.
type ActionSink interface {
	DeliverToActions(target Target, env *Envelope)
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the reporter for dropped deliveries.
func WithLogger(l logging.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// WithActionSink sets where action-bound envelopes go.
func WithActionSink(s ActionSink) Option {
	return func(b *Bus) { b.sink = s }
}

// WithObserver registers fn to be called for every adapter-bound publish.
// fn runs on the publisher's goroutine and must not block.
func WithObserver(fn func(*Envelope)) Option {
	return func(b *Bus) { b.observer = fn }
}

// Bus routes envelopes to adapters and actions. It is safe for concurrent use.
type Bus struct {
	log      logging.Logger
	sink     ActionSink
	observer func(*Envelope)

	mu      sync.RWMutex
	starter Starter
	inboxes map[string]*Inbox   // adapter name -> current inbox
	byTopic map[string][]string // topic -> adapter names with an inbox
	lazy    map[string][]string // topic -> lazy adapter names
}

// New creates a Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		log:     logging.Discard(),
		inboxes: make(map[string]*Inbox),
		byTopic: make(map[string][]string),
		lazy:    make(map[string][]string),
	}

	for _, o := range opts {
		o(b)
	}

	return b
}

// SetStarter installs the lazy-start collaborator.
func (b *Bus) SetStarter(s Starter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.starter = s
}

// DeclareLazy records that the named adapter must be started before the
// first delivery on any of topics.
func (b *Bus) DeclareLazy(name string, topics []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range topics {
		if !slices.Contains(b.lazy[t], name) {
			b.lazy[t] = append(b.lazy[t], name)
		}
	}
}

// Subscribe allocates a bounded inbox for the named adapter. A previous inbox
// for the same name is closed and replaced.
func (b *Bus) Subscribe(name string, topics []string, size int) *Inbox {
	in := newInbox(name, topics, size)

	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.inboxes[name]; ok {
		old.Close()
		for t := range old.topics {
			b.byTopic[t] = slices.DeleteFunc(b.byTopic[t], func(n string) bool { return n == name })
		}
	}

	b.inboxes[name] = in
	for t := range in.topics {
		b.byTopic[t] = append(b.byTopic[t], name)
	}

	return in
}

// Subscribers returns the adapter names holding an inbox for topic.
func (b *Bus) Subscribers(topic string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.byTopic[topic])
}

// ToAdapters delivers env to every adapter subscribed to its topic, starting
// lazy adapters first. It never blocks on a slow adapter.
func (b *Bus) ToAdapters(env *Envelope) {
	b.mu.RLock()
	starter := b.starter
	lazy := slices.Clone(b.lazy[env.topic])
	b.mu.RUnlock()

	if starter != nil {
		for _, name := range lazy {
			starter.EnsureStarted(name)
		}
	}

	b.mu.RLock()
	targets := make([]*Inbox, 0, len(b.byTopic[env.topic]))
	for _, name := range b.byTopic[env.topic] {
		targets = append(targets, b.inboxes[name])
	}
	b.mu.RUnlock()

	if b.observer != nil {
		b.observer(env)
	}

	for _, in := range targets {
		if err := in.offer(env); err != nil {
			b.log.Log(logging.LevelWarn, "bus: delivery dropped",
				"adapter", in.name,
				"topic", env.topic,
				"reason", err.Error(),
			)
		}
	}
}

// ToActions hands env to the action sink for delivery to target.
func (b *Bus) ToActions(target Target, env *Envelope) {
	if b.sink == nil {
		b.log.Log(logging.LevelWarn, "bus: no action sink, delivery dropped", "topic", env.topic)
		return
	}

	b.sink.DeliverToActions(target, env)
}

// PublishToAdapters publishes payload on topic to subscribed adapters.
func PublishToAdapters[T any](b *Bus, topic Topic[T], context string, payload T) {
	b.ToAdapters(NewEnvelope(topic, context, payload))
}

// PublishToActions publishes payload on topic to every action declaring it.
func PublishToActions[T any](b *Bus, topic Topic[T], context string, payload T) {
	b.ToActions(ToTopic(), NewEnvelope(topic, context, payload))
}

// NotifyActions delivers payload to an explicit set of action instances.
func NotifyActions[T any](b *Bus, target Target, topic Topic[T], context string, payload T) {
	b.ToActions(target, NewEnvelope(topic, context, payload))
}

// Publish delivers payload to both adapters and actions.
func Publish[T any](b *Bus, topic Topic[T], context string, payload T) {
	env := NewEnvelope(topic, context, payload)
	b.ToAdapters(env)
	b.ToActions(ToTopic(), env)
}
