// Package action maps host controls to stateful handler instances and
// dispatches protocol events and bus notifications to them.
//
// A Registry is confined to the runtime's dispatch goroutine; it performs no
// locking of its own.
package action

import (
	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/protocol"
)

// Action handles the events of one control instance. Embed Base to implement
// only the handlers you need.
type Action interface {
	// Topics lists the bus topics delivered to OnNotify.
	Topics() []string

	// Init runs once, right after the instance is created.
	Init(cx *deckctx.Context, context string)
	// Teardown runs once, right before the instance is dropped.
	Teardown(cx *deckctx.Context, context string)

	WillAppear(cx *deckctx.Context, ev *protocol.ControlEvent)
	WillDisappear(cx *deckctx.Context, ev *protocol.ControlEvent)
	KeyDown(cx *deckctx.Context, ev *protocol.ControlEvent)
	KeyUp(cx *deckctx.Context, ev *protocol.ControlEvent)
	DidReceiveSettings(cx *deckctx.Context, ev *protocol.ControlEvent)
	DialDown(cx *deckctx.Context, ev *protocol.DialEvent)
	DialUp(cx *deckctx.Context, ev *protocol.DialEvent)
	DialRotate(cx *deckctx.Context, ev *protocol.DialRotate)
	TouchTap(cx *deckctx.Context, ev *protocol.TouchTap)
	TitleParametersDidChange(cx *deckctx.Context, ev *protocol.TitleParametersDidChange)
	PropertyInspectorDidAppear(cx *deckctx.Context, ev *protocol.PropertyInspectorEvent)
	PropertyInspectorDidDisappear(cx *deckctx.Context, ev *protocol.PropertyInspectorEvent)
	SendToPlugin(cx *deckctx.Context, ev *protocol.SendToPlugin)

	// OnGlobalEvent receives events not addressed to a single control.
	OnGlobalEvent(cx *deckctx.Context, ev protocol.Event)
	// OnNotify receives bus envelopes for one of Topics, or explicitly
	// targeted at this instance.
	OnNotify(cx *deckctx.Context, context string, env *bus.Envelope)
}

// Base implements every Action method as a no-op.
type Base struct{}

func (Base) Topics() []string                                                                 { return nil }
func (Base) Init(*deckctx.Context, string)                                                    {}
func (Base) Teardown(*deckctx.Context, string)                                                {}
func (Base) WillAppear(*deckctx.Context, *protocol.ControlEvent)                              {}
func (Base) WillDisappear(*deckctx.Context, *protocol.ControlEvent)                           {}
func (Base) KeyDown(*deckctx.Context, *protocol.ControlEvent)                                 {}
func (Base) KeyUp(*deckctx.Context, *protocol.ControlEvent)                                   {}
func (Base) DidReceiveSettings(*deckctx.Context, *protocol.ControlEvent)                      {}
func (Base) DialDown(*deckctx.Context, *protocol.DialEvent)                                   {}
func (Base) DialUp(*deckctx.Context, *protocol.DialEvent)                                     {}
func (Base) DialRotate(*deckctx.Context, *protocol.DialRotate)                                {}
func (Base) TouchTap(*deckctx.Context, *protocol.TouchTap)                                    {}
func (Base) TitleParametersDidChange(*deckctx.Context, *protocol.TitleParametersDidChange)    {}
func (Base) PropertyInspectorDidAppear(*deckctx.Context, *protocol.PropertyInspectorEvent)    {}
func (Base) PropertyInspectorDidDisappear(*deckctx.Context, *protocol.PropertyInspectorEvent) {}
func (Base) SendToPlugin(*deckctx.Context, *protocol.SendToPlugin)                            {}
func (Base) OnGlobalEvent(*deckctx.Context, protocol.Event)                                   {}
func (Base) OnNotify(*deckctx.Context, string, *bus.Envelope)                                 {}

// Factory builds a fresh instance of one action kind.
type Factory func() Action

// Registration binds an action UUID from the plugin manifest to its factory.
type Registration struct {
	UUID string
	New  Factory
}
