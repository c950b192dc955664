package protocol

// EventName is the "event" discriminator of an inbound frame.
type EventName string

const (
	EventWillAppear                    EventName = "willAppear"
	EventWillDisappear                 EventName = "willDisappear"
	EventKeyDown                       EventName = "keyDown"
	EventKeyUp                         EventName = "keyUp"
	EventDidReceiveSettings            EventName = "didReceiveSettings"
	EventDialDown                      EventName = "dialDown"
	EventDialUp                        EventName = "dialUp"
	EventDialRotate                    EventName = "dialRotate"
	EventTouchTap                      EventName = "touchTap"
	EventTitleParametersDidChange      EventName = "titleParametersDidChange"
	EventPropertyInspectorDidAppear    EventName = "propertyInspectorDidAppear"
	EventPropertyInspectorDidDisappear EventName = "propertyInspectorDidDisappear"
	EventSendToPlugin                  EventName = "sendToPlugin"
	EventApplicationDidLaunch          EventName = "applicationDidLaunch"
	EventApplicationDidTerminate       EventName = "applicationDidTerminate"
	EventDeviceDidConnect              EventName = "deviceDidConnect"
	EventDeviceDidChange               EventName = "deviceDidChange"
	EventDeviceDidDisconnect           EventName = "deviceDidDisconnect"
	EventDidReceiveDeepLink            EventName = "didReceiveDeepLink"
	EventDidReceiveGlobalSettings      EventName = "didReceiveGlobalSettings"
	EventSystemDidWakeUp               EventName = "systemDidWakeUp"
)

// Event is a decoded inbound frame.
type Event interface {
	Name() EventName
}

// Ref identifies the control an event refers to.
type Ref struct {
	Action  string
	Context string
	Device  string
}

// Target returns the action UUID and control-context of the event.
func (r Ref) Target() Ref { return r }

// Contextual is implemented by events addressed to one control instance.
type Contextual interface {
	Event
	Target() Ref
}

// State is the visual state of a multi-state action.
type State int

const (
	StatePrimary   State = 0
	StateSecondary State = 1
)

// Coordinates locate a control on its device.
type Coordinates struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// Size is a device grid size.
type Size struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// DeviceInfo describes a connected device.
type DeviceInfo struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	Size Size   `json:"size"`
}

// TitleParameters describe how the host renders a title.
type TitleParameters struct {
	FontFamily     string `json:"fontFamily"`
	FontSize       int    `json:"fontSize"`
	FontStyle      string `json:"fontStyle"`
	FontUnderline  bool   `json:"fontUnderline"`
	ShowTitle      bool   `json:"showTitle"`
	TitleAlignment string `json:"titleAlignment"`
	TitleColor     string `json:"titleColor"`
}

// ControlEvent is willAppear, willDisappear, keyDown, keyUp or
// didReceiveSettings.
type ControlEvent struct {
	Ref
	Event           EventName
	Settings        map[string]any
	Controller      string
	IsInMultiAction bool
	State           *State
	Coordinates     *Coordinates
}

func (e *ControlEvent) Name() EventName { return e.Event }

// DialEvent is dialDown or dialUp.
type DialEvent struct {
	Ref
	Event       EventName
	Settings    map[string]any
	Controller  string
	Coordinates Coordinates
}

func (e *DialEvent) Name() EventName { return e.Event }

// DialRotate reports an encoder turn.
type DialRotate struct {
	Ref
	Settings    map[string]any
	Controller  string
	Coordinates Coordinates
	Ticks       int
	Pressed     bool
}

func (e *DialRotate) Name() EventName { return EventDialRotate }

// TouchTap reports a touch on an encoder's display strip.
type TouchTap struct {
	Ref
	Settings    map[string]any
	Controller  string
	Coordinates Coordinates
	Hold        bool
	TapPos      [2]int
}

func (e *TouchTap) Name() EventName { return EventTouchTap }

// TitleParametersDidChange reports a user edit of the title or its style.
type TitleParametersDidChange struct {
	Ref
	Settings        map[string]any
	Controller      string
	Coordinates     Coordinates
	State           *State
	Title           string
	TitleParameters TitleParameters
}

func (e *TitleParametersDidChange) Name() EventName { return EventTitleParametersDidChange }

// PropertyInspectorEvent is propertyInspectorDidAppear or
// propertyInspectorDidDisappear.
type PropertyInspectorEvent struct {
	Ref
	Event EventName
}

func (e *PropertyInspectorEvent) Name() EventName { return e.Event }

// SendToPlugin carries a message from the property inspector.
type SendToPlugin struct {
	Ref
	Payload map[string]any
}

func (e *SendToPlugin) Name() EventName { return EventSendToPlugin }

// ApplicationEvent is applicationDidLaunch or applicationDidTerminate.
type ApplicationEvent struct {
	Event       EventName
	Application string
}

func (e *ApplicationEvent) Name() EventName { return e.Event }

// DeviceEvent is deviceDidConnect, deviceDidChange or deviceDidDisconnect.
// DeviceInfo is nil for disconnects.
type DeviceEvent struct {
	Event      EventName
	Device     string
	DeviceInfo *DeviceInfo
}

func (e *DeviceEvent) Name() EventName { return e.Event }

// DeepLink delivers a URL opened for the plugin.
type DeepLink struct {
	URL string
}

func (e *DeepLink) Name() EventName { return EventDidReceiveDeepLink }

// GlobalSettings delivers the plugin-wide settings.
type GlobalSettings struct {
	Settings map[string]any
}

func (e *GlobalSettings) Name() EventName { return EventDidReceiveGlobalSettings }

// SystemDidWakeUp is sent after the computer resumes from sleep.
type SystemDidWakeUp struct{}

func (e *SystemDidWakeUp) Name() EventName { return EventSystemDidWakeUp }
