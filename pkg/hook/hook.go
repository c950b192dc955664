// Package hook implements the ordered registry of global observers. Hooks see
// lifecycle and protocol traffic without taking part in action dispatch.
package hook

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/germanamz/deckhand/pkg/bus"
	"github.com/germanamz/deckhand/pkg/deckctx"
	"github.com/germanamz/deckhand/pkg/lifecycle"
	"github.com/germanamz/deckhand/pkg/logging"
	"github.com/germanamz/deckhand/pkg/protocol"
)

// Kind identifies what a hook event reports.
type Kind int

const (
	Init Kind = iota
	Exit
	Tick
	Incoming
	Outgoing
	Log
	ActionNotify
	AdapterNotify
	AdapterControl
	ApplicationDidLaunch
	ApplicationDidTerminate
	DeviceDidConnect
	DeviceDidDisconnect
	DeviceDidChange
	DidReceiveDeepLink
	DidReceiveGlobalSettings
	SystemDidWakeUp
)

var kindNames = [...]string{
	Init:                     "init",
	Exit:                     "exit",
	Tick:                     "tick",
	Incoming:                 "incoming",
	Outgoing:                 "outgoing",
	Log:                      "log",
	ActionNotify:             "action_notify",
	AdapterNotify:            "adapter_notify",
	AdapterControl:           "adapter_control",
	ApplicationDidLaunch:     "application_did_launch",
	ApplicationDidTerminate:  "application_did_terminate",
	DeviceDidConnect:         "device_did_connect",
	DeviceDidDisconnect:      "device_did_disconnect",
	DeviceDidChange:          "device_did_change",
	DidReceiveDeepLink:       "did_receive_deep_link",
	DidReceiveGlobalSettings: "did_receive_global_settings",
	SystemDidWakeUp:          "system_did_wake_up",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf maps a protocol event to its passthrough hook kind. Events without a
// dedicated kind report false; they are still visible through Incoming.
func KindOf(ev protocol.Event) (Kind, bool) {
	switch ev.Name() {
	case protocol.EventApplicationDidLaunch:
		return ApplicationDidLaunch, true
	case protocol.EventApplicationDidTerminate:
		return ApplicationDidTerminate, true
	case protocol.EventDeviceDidConnect:
		return DeviceDidConnect, true
	case protocol.EventDeviceDidDisconnect:
		return DeviceDidDisconnect, true
	case protocol.EventDeviceDidChange:
		return DeviceDidChange, true
	case protocol.EventDidReceiveDeepLink:
		return DidReceiveDeepLink, true
	case protocol.EventDidReceiveGlobalSettings:
		return DidReceiveGlobalSettings, true
	case protocol.EventSystemDidWakeUp:
		return SystemDidWakeUp, true
	default:
		return 0, false
	}
}

// Event is what a hook observes. Only the fields relevant to Kind are set.
type Event struct {
	Kind Kind

	// Inbound is set for Incoming and the protocol passthrough kinds.
	Inbound protocol.Event
	// Command is set for Outgoing.
	Command protocol.Command

	// Level and Message are set for Log.
	Level   logging.Level
	Message string

	// Envelope is set for ActionNotify and AdapterNotify; Target for ActionNotify.
	Envelope *bus.Envelope
	Target   bus.Target

	// Control is set for AdapterControl.
	Control lifecycle.Control
}

// Func observes hook events. It runs synchronously on the dispatch goroutine
// and must not block.
type Func func(cx *deckctx.Context, ev Event)

// Registry is an ordered, append-only list of hooks.
type Registry struct {
	log *slog.Logger

	mu  sync.RWMutex
	fns []Func
}

// NewRegistry creates a registry. Failures inside hooks are logged to log
// directly, never through the Log hook.
func NewRegistry(log *slog.Logger, fns ...Func) *Registry {
	if log == nil {
		log = slog.Default()
	}

	return &Registry{log: log, fns: append([]Func(nil), fns...)}
}

// Add appends fn. It may be called while the runtime is running.
func (r *Registry) Add(fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fns = append(r.fns, fn)
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.fns)
}

// Fire calls every hook in registration order. A panicking hook is logged
// and the remaining hooks still run.
func (r *Registry) Fire(cx *deckctx.Context, ev Event) {
	r.mu.RLock()
	fns := r.fns
	r.mu.RUnlock()

	for i, fn := range fns {
		if err := call(fn, cx, ev); err != nil {
			r.log.Error("hook failed", "hook", i, "kind", ev.Kind.String(), "error", err)
		}
	}
}

func call(fn Func, cx *deckctx.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()

	fn(cx, ev)

	return nil
}
