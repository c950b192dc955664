package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent matches every UnknownEventError.
var ErrUnknownEvent = errors.New("protocol: unknown event")

// UnknownEventError is returned for a well-formed frame whose event kind is
// not part of the supported vocabulary.
type UnknownEventError struct {
	Event string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("protocol: unknown event %q", e.Event)
}

// Is lets errors.Is match ErrUnknownEvent.
func (e *UnknownEventError) Is(target error) bool {
	return target == ErrUnknownEvent
}

// DecodeError is returned for frames that cannot be parsed or lack a field
// their event kind requires.
type DecodeError struct {
	Event  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Event == "" {
		return "protocol: decode: " + e.Reason
	}

	return fmt.Sprintf("protocol: decode %s: %s", e.Event, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type wireFrame struct {
	Event      *string         `json:"event"`
	Action     *string         `json:"action"`
	Context    *string         `json:"context"`
	Device     *string         `json:"device"`
	DeviceInfo *DeviceInfo     `json:"deviceInfo"`
	Payload    json.RawMessage `json:"payload"`
}

type wirePayload struct {
	Settings        map[string]any   `json:"settings"`
	Controller      *string          `json:"controller"`
	Coordinates     *Coordinates     `json:"coordinates"`
	IsInMultiAction bool             `json:"isInMultiAction"`
	State           *State           `json:"state"`
	Title           *string          `json:"title"`
	TitleParameters *TitleParameters `json:"titleParameters"`
	Application     *string          `json:"application"`
	URL             *string          `json:"url"`
	Ticks           *int             `json:"ticks"`
	Pressed         *bool            `json:"pressed"`
	Hold            *bool            `json:"hold"`
	TapPos          []int            `json:"tapPos"`
}

// decoder accumulates the first missing-field failure so the per-event cases
// stay flat.
type decoder struct {
	event string
	f     wireFrame
	p     wirePayload
	err   error
}

func (d *decoder) fail(reason string) {
	if d.err == nil {
		d.err = &DecodeError{Event: d.event, Reason: reason}
	}
}

func (d *decoder) must(v *string, field string) string {
	if v == nil {
		d.fail("missing " + field)
		return ""
	}

	return *v
}

func (d *decoder) ref() Ref {
	return Ref{
		Action:  d.must(d.f.Action, "action"),
		Context: d.must(d.f.Context, "context"),
		Device:  d.must(d.f.Device, "device"),
	}
}

func (d *decoder) controller(fallback string) string {
	if d.p.Controller != nil {
		return *d.p.Controller
	}

	if fallback == "" {
		d.fail("missing payload.controller")
	}

	return fallback
}

func (d *decoder) coordinates() Coordinates {
	if d.p.Coordinates == nil {
		d.fail("missing payload.coordinates")
		return Coordinates{}
	}

	return *d.p.Coordinates
}

func (d *decoder) settings() map[string]any {
	if d.p.Settings == nil {
		return map[string]any{}
	}

	return d.p.Settings
}

// Decode parses one inbound frame. Frames with an unrecognised event kind
// yield an *UnknownEventError; anything malformed yields a *DecodeError.
func Decode(data []byte) (Event, error) {
	d := &decoder{}

	if err := json.Unmarshal(data, &d.f); err != nil {
		return nil, &DecodeError{Reason: "invalid frame", Err: err}
	}

	if d.f.Event == nil {
		return nil, &DecodeError{Reason: "missing event"}
	}

	d.event = *d.f.Event
	if _, ok := knownEvents[EventName(d.event)]; !ok {
		return nil, &UnknownEventError{Event: d.event}
	}

	// sendToPlugin payloads are free-form and decoded by build.
	if EventName(d.event) != EventSendToPlugin && len(d.f.Payload) > 0 && string(d.f.Payload) != "null" {
		if err := json.Unmarshal(d.f.Payload, &d.p); err != nil {
			return nil, &DecodeError{Event: d.event, Reason: "invalid payload", Err: err}
		}
	}

	ev := d.build()
	if d.err != nil {
		return nil, d.err
	}

	return ev, nil
}

var knownEvents = map[EventName]struct{}{
	EventWillAppear: {}, EventWillDisappear: {}, EventKeyDown: {}, EventKeyUp: {},
	EventDidReceiveSettings: {}, EventDialDown: {}, EventDialUp: {}, EventDialRotate: {},
	EventTouchTap: {}, EventTitleParametersDidChange: {}, EventPropertyInspectorDidAppear: {},
	EventPropertyInspectorDidDisappear: {}, EventSendToPlugin: {}, EventApplicationDidLaunch: {},
	EventApplicationDidTerminate: {}, EventDeviceDidConnect: {}, EventDeviceDidChange: {},
	EventDeviceDidDisconnect: {}, EventDidReceiveDeepLink: {}, EventDidReceiveGlobalSettings: {},
	EventSystemDidWakeUp: {},
}

// build turns the parsed frame into its typed event. Missing fields are
// recorded on d.err.
func (d *decoder) build() Event {
	name := EventName(d.event)

	switch name {
	case EventWillAppear, EventWillDisappear, EventDidReceiveSettings, EventKeyDown, EventKeyUp:
		fallback := ""
		if name == EventKeyDown || name == EventKeyUp {
			fallback = "Keypad"
		}

		return &ControlEvent{
			Ref:             d.ref(),
			Event:           name,
			Settings:        d.settings(),
			Controller:      d.controller(fallback),
			IsInMultiAction: d.p.IsInMultiAction,
			State:           d.p.State,
			Coordinates:     d.p.Coordinates,
		}

	case EventDialDown, EventDialUp:
		return &DialEvent{
			Ref:         d.ref(),
			Event:       name,
			Settings:    d.settings(),
			Controller:  d.controller(""),
			Coordinates: d.coordinates(),
		}

	case EventDialRotate:
		ev := &DialRotate{
			Ref:         d.ref(),
			Settings:    d.settings(),
			Controller:  d.controller(""),
			Coordinates: d.coordinates(),
		}
		if d.p.Ticks == nil {
			d.fail("missing payload.ticks")
		} else {
			ev.Ticks = *d.p.Ticks
		}
		if d.p.Pressed == nil {
			d.fail("missing payload.pressed")
		} else {
			ev.Pressed = *d.p.Pressed
		}

		return ev

	case EventTouchTap:
		ev := &TouchTap{
			Ref:         d.ref(),
			Settings:    d.settings(),
			Controller:  d.controller(""),
			Coordinates: d.coordinates(),
		}
		if d.p.Hold == nil {
			d.fail("missing payload.hold")
		} else {
			ev.Hold = *d.p.Hold
		}
		if len(d.p.TapPos) != 2 {
			d.fail("payload.tapPos must be [x,y]")
		} else {
			ev.TapPos = [2]int{d.p.TapPos[0], d.p.TapPos[1]}
		}

		return ev

	case EventTitleParametersDidChange:
		ev := &TitleParametersDidChange{
			Ref:         d.ref(),
			Settings:    d.settings(),
			Controller:  d.controller(""),
			Coordinates: d.coordinates(),
			State:       d.p.State,
			Title:       d.must(d.p.Title, "payload.title"),
		}
		if d.p.TitleParameters == nil {
			d.fail("missing payload.titleParameters")
		} else {
			ev.TitleParameters = *d.p.TitleParameters
		}

		return ev

	case EventPropertyInspectorDidAppear, EventPropertyInspectorDidDisappear:
		return &PropertyInspectorEvent{Ref: d.ref(), Event: name}

	case EventSendToPlugin:
		ev := &SendToPlugin{
			Ref: Ref{
				Action:  d.must(d.f.Action, "action"),
				Context: d.must(d.f.Context, "context"),
			},
		}
		if err := json.Unmarshal(d.f.Payload, &ev.Payload); err != nil || ev.Payload == nil {
			d.fail("missing payload")
		}

		return ev

	case EventApplicationDidLaunch, EventApplicationDidTerminate:
		return &ApplicationEvent{Event: name, Application: d.must(d.p.Application, "payload.application")}

	case EventDeviceDidConnect, EventDeviceDidChange:
		if d.f.DeviceInfo == nil {
			d.fail("missing deviceInfo")
		}

		return &DeviceEvent{Event: name, Device: d.must(d.f.Device, "device"), DeviceInfo: d.f.DeviceInfo}

	case EventDeviceDidDisconnect:
		return &DeviceEvent{Event: name, Device: d.must(d.f.Device, "device")}

	case EventDidReceiveDeepLink:
		return &DeepLink{URL: d.must(d.p.URL, "payload.url")}

	case EventDidReceiveGlobalSettings:
		return &GlobalSettings{Settings: d.settings()}

	default:
		return &SystemDidWakeUp{}
	}
}
