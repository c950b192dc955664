package hook

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/protocol"
)

func TestFire_Order(t *testing.T) {
	var order []string
	r := NewRegistry(nil, func(*deckctx.Context, Event) { order = append(order, "first") })
	r.Add(func(*deckctx.Context, Event) { order = append(order, "second") })
	r.Add(func(_ *deckctx.Context, ev Event) { order = append(order, ev.Kind.String()) })

	r.Fire(deckctx.New(deckctx.Params{}), Event{Kind: Init})

	assert.Equal(t, []string{"first", "second", "init"}, order)
	assert.Equal(t, 3, r.Len())
}

func TestFire_PanicIsolated(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	var ran []int
	r := NewRegistry(log)
	r.Add(func(*deckctx.Context, Event) { ran = append(ran, 1) })
	r.Add(func(*deckctx.Context, Event) { panic("boom") })
	r.Add(func(*deckctx.Context, Event) { ran = append(ran, 3) })

	require.NotPanics(t, func() {
		r.Fire(deckctx.New(deckctx.Params{}), Event{Kind: Tick})
	})

	assert.Equal(t, []int{1, 3}, ran)
	assert.Contains(t, buf.String(), "hook panicked: boom")
	assert.Contains(t, buf.String(), "kind=tick")
}

func TestFire_AddDuringFire(t *testing.T) {
	r := NewRegistry(nil)
	calls := 0
	r.Add(func(*deckctx.Context, Event) {
		calls++
		r.Add(func(*deckctx.Context, Event) { calls++ })
	})

	r.Fire(deckctx.New(deckctx.Params{}), Event{Kind: Tick})
	assert.Equal(t, 1, calls)

	r.Fire(deckctx.New(deckctx.Params{}), Event{Kind: Tick})
	assert.Equal(t, 3, calls)
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(&protocol.ApplicationEvent{Event: protocol.EventApplicationDidTerminate})
	require.True(t, ok)
	assert.Equal(t, ApplicationDidTerminate, k)

	k, ok = KindOf(&protocol.DeviceEvent{Event: protocol.EventDeviceDidChange})
	require.True(t, ok)
	assert.Equal(t, DeviceDidChange, k)

	_, ok = KindOf(&protocol.ControlEvent{Event: protocol.EventKeyDown})
	assert.False(t, ok)

	assert.Equal(t, "kind(99)", Kind(99).String())
}
