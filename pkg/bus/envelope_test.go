package bus

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pong struct {
	Msg string
}

func TestDowncast_Match(t *testing.T) {
	env := NewEnvelope(pingTopic, "", ping{Msg: "hi"})

	got, ok := Downcast(env, pingTopic)
	assert.True(t, ok)
	assert.Equal(t, "hi", got.Msg)
	assert.Equal(t, reflect.TypeFor[ping](), env.PayloadType())
	assert.False(t, env.HasContext())
}

func TestDowncast_Mismatch(t *testing.T) {
	env := NewEnvelope(pingTopic, "", ping{Msg: "hi"})

	// Same name, different payload type.
	_, ok := Downcast(env, NewTopic[pong]("demo.ping"))
	assert.False(t, ok)

	// Same type, different name.
	_, ok = Downcast(env, NewTopic[ping]("demo.other"))
	assert.False(t, ok)

	_, ok = Downcast(nil, pingTopic)
	assert.False(t, ok)
}

func TestDowncast_PointerAndInterfacePayloads(t *testing.T) {
	ptrTopic := NewTopic[*ping]("demo.ptr")
	p := &ping{Msg: "ptr"}

	got, ok := Downcast(NewEnvelope(ptrTopic, "", p), ptrTopic)
	assert.True(t, ok)
	assert.Same(t, p, got)

	errTopic := NewTopic[error]("demo.err")
	gotErr, ok := Downcast(NewEnvelope[error](errTopic, "", nil), errTopic)
	assert.True(t, ok)
	assert.NoError(t, gotErr)

	// An interface-typed topic does not match a concrete-typed one of the same name.
	anyTopic := NewTopic[any]("demo.ping")
	_, ok = Downcast(NewEnvelope(pingTopic, "", ping{}), anyTopic)
	assert.False(t, ok)
}
