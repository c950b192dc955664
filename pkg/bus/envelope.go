package bus

import "reflect"

// Topic names a bus channel and fixes its payload type. A name must always be
// used with the same T for the lifetime of the process; the bus does not
// check this.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the topic name.
func (t Topic[T]) Name() string { return t.name }

// Envelope is an immutable message travelling over the bus. It records the
// static type of its payload so consumers can recover it with Downcast.
type Envelope struct {
	topic   string
	context string
	payload any
	typ     reflect.Type
}

// NewEnvelope wraps payload for topic. context is the originating
// control-context, or "" when there is none.
func NewEnvelope[T any](topic Topic[T], context string, payload T) *Envelope {
	return &Envelope{
		topic:   topic.name,
		context: context,
		payload: payload,
		typ:     reflect.TypeFor[T](),
	}
}

// Topic returns the topic name the envelope was published on.
func (e *Envelope) Topic() string { return e.topic }

// Context returns the originating control-context, or "".
func (e *Envelope) Context() string { return e.context }

// HasContext reports whether the envelope carries a control-context.
func (e *Envelope) HasContext() bool { return e.context != "" }

// PayloadType returns the static payload type recorded at publish time.
func (e *Envelope) PayloadType() reflect.Type { return e.typ }

// Downcast returns the payload of env if it was published on topic with
// exactly the topic's payload type. Any mismatch, including a nil envelope,
// yields the zero value and false.
func Downcast[T any](env *Envelope, topic Topic[T]) (T, bool) {
	var zero T

	if env == nil || env.topic != topic.name || env.typ != reflect.TypeFor[T]() {
		return zero, false
	}

	if env.payload == nil {
		return zero, true
	}

	v, ok := env.payload.(T)
	if !ok {
		return zero, false
	}

	return v, true
}
