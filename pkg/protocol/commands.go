package protocol

import (
	"encoding/json"
	"fmt"
)

// Target selects which rendering a setTitle or setImage applies to.
type Target string

const (
	TargetBoth     Target = "both"
	TargetHardware Target = "hardware"
	TargetSoftware Target = "software"
)

// Command is an outbound frame. The set of commands is closed; each maps to
// exactly one frame shape.
type Command interface {
	Name() string
	frame() frame
}

type frame struct {
	Event   string `json:"event"`
	Context string `json:"context,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Encode serialises cmd into a single JSON frame.
func Encode(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd.frame())
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", cmd.Name(), err)
	}

	return data, nil
}

// ContextOf returns the control-context a command is addressed to, or "".
func ContextOf(cmd Command) string {
	return cmd.frame().Context
}

// GetGlobalSettings asks the host to send didReceiveGlobalSettings.
type GetGlobalSettings struct {
	Context string
}

func (c GetGlobalSettings) Name() string { return "getGlobalSettings" }
func (c GetGlobalSettings) frame() frame { return frame{Event: c.Name(), Context: c.Context} }

// GetSettings asks the host to send didReceiveSettings for a control.
type GetSettings struct {
	Context string
}

func (c GetSettings) Name() string { return "getSettings" }
func (c GetSettings) frame() frame { return frame{Event: c.Name(), Context: c.Context} }

// LogMessage writes to the host's own log.
type LogMessage struct {
	Message string
}

func (c LogMessage) Name() string { return "logMessage" }
func (c LogMessage) frame() frame {
	return frame{Event: c.Name(), Payload: map[string]string{"message": c.Message}}
}

// OpenURL opens a URL in the default browser.
type OpenURL struct {
	URL string
}

func (c OpenURL) Name() string { return "openUrl" }
func (c OpenURL) frame() frame {
	return frame{Event: c.Name(), Payload: map[string]string{"url": c.URL}}
}

// SendToPropertyInspector forwards an arbitrary payload to the companion UI.
type SendToPropertyInspector struct {
	Context string
	Payload any
}

func (c SendToPropertyInspector) Name() string { return "sendToPropertyInspector" }
func (c SendToPropertyInspector) frame() frame {
	return frame{Event: c.Name(), Context: c.Context, Payload: c.Payload}
}

// SetFeedback updates the layout items of an encoder display.
type SetFeedback struct {
	Context string
	Payload any
}

func (c SetFeedback) Name() string { return "setFeedback" }
func (c SetFeedback) frame() frame {
	return frame{Event: c.Name(), Context: c.Context, Payload: c.Payload}
}

// SetFeedbackLayout switches an encoder display layout.
type SetFeedbackLayout struct {
	Context string
	Layout  string
}

func (c SetFeedbackLayout) Name() string { return "setFeedbackLayout" }
func (c SetFeedbackLayout) frame() frame {
	return frame{Event: c.Name(), Context: c.Context, Payload: map[string]string{"layout": c.Layout}}
}

// SetGlobalSettings persists the plugin-wide settings.
type SetGlobalSettings struct {
	Context  string
	Settings map[string]any
}

func (c SetGlobalSettings) Name() string { return "setGlobalSettings" }
func (c SetGlobalSettings) frame() frame {
	return frame{Event: c.Name(), Context: c.Context, Payload: nonNil(c.Settings)}
}

// SetSettings persists the settings of one control.
type SetSettings struct {
	Context  string
	Settings map[string]any
}

func (c SetSettings) Name() string { return "setSettings" }
func (c SetSettings) frame() frame {
	return frame{Event: c.Name(), Context: c.Context, Payload: nonNil(c.Settings)}
}

type imagePayload struct {
	Image  string `json:"image,omitempty"`
	State  *State `json:"state,omitempty"`
	Target Target `json:"target,omitempty"`
}

// SetImage changes a control's image. Image is a path or data URI; empty
// resets to the manifest image.
type SetImage struct {
	Context string
	Image   string
	State   *State
	Target  Target
}

func (c SetImage) Name() string { return "setImage" }
func (c SetImage) frame() frame {
	return frame{Event: c.Name(), Context: c.Context, Payload: imagePayload{Image: c.Image, State: c.State, Target: c.Target}}
}

// SetState switches a multi-state action.
type SetState struct {
	Context string
	State   State
}

func (c SetState) Name() string { return "setState" }
func (c SetState) frame() frame {
	return frame{Event: c.Name(), Context: c.Context, Payload: map[string]State{"state": c.State}}
}

type titlePayload struct {
	Title  *string `json:"title,omitempty"`
	State  *State  `json:"state,omitempty"`
	Target Target  `json:"target,omitempty"`
}

// SetTitle changes the visible label of a control. A nil Title resets it to
// the user-configured title.
type SetTitle struct {
	Context string
	Title   *string
	State   *State
	Target  Target
}

func (c SetTitle) Name() string { return "setTitle" }
func (c SetTitle) frame() frame {
	return frame{Event: c.Name(), Context: c.Context, Payload: titlePayload{Title: c.Title, State: c.State, Target: c.Target}}
}

// SetTriggerDescription sets the encoder hints shown by the host.
type SetTriggerDescription struct {
	Context   string
	LongTouch string
	Push      string
	Rotate    string
	Touch     string
}

func (c SetTriggerDescription) Name() string { return "setTriggerDescription" }
func (c SetTriggerDescription) frame() frame {
	return frame{Event: c.Name(), Context: c.Context, Payload: triggerPayload{
		LongTouch: c.LongTouch, Push: c.Push, Rotate: c.Rotate, Touch: c.Touch,
	}}
}

type triggerPayload struct {
	LongTouch string `json:"longTouch,omitempty"`
	Push      string `json:"push,omitempty"`
	Rotate    string `json:"rotate,omitempty"`
	Touch     string `json:"touch,omitempty"`
}

// ShowAlert flashes the failure indicator on a control.
type ShowAlert struct {
	Context string
}

func (c ShowAlert) Name() string { return "showAlert" }
func (c ShowAlert) frame() frame { return frame{Event: c.Name(), Context: c.Context} }

// ShowOk flashes the success indicator on a control.
type ShowOk struct {
	Context string
}

func (c ShowOk) Name() string { return "showOk" }
func (c ShowOk) frame() frame { return frame{Event: c.Name(), Context: c.Context} }

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}

// Registration is the first frame of every session.
type Registration struct {
	Event string `json:"event"`
	UUID  string `json:"uuid"`
}

// Encode serialises the registration frame.
func (r Registration) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode registration: %w", err)
	}

	return data, nil
}
