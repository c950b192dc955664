package protocol

// Sender accepts outbound commands. Implementations must not block the caller
// on network IO.
type Sender interface {
	Send(cmd Command)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(cmd Command)

// Send calls the underlying function.
func (f SenderFunc) Send(cmd Command) { f(cmd) }

// Client is the outgoing-command capability handed to actions, adapters and
// hooks. It is safe for concurrent use if its Sender is.
type Client struct {
	sender     Sender
	pluginUUID string
}

// NewClient creates a Client. pluginUUID is the context used for plugin-wide
// commands such as getGlobalSettings.
func NewClient(sender Sender, pluginUUID string) *Client {
	return &Client{sender: sender, pluginUUID: pluginUUID}
}

// PluginUUID returns the identifier the plugin registered with.
func (c *Client) PluginUUID() string { return c.pluginUUID }

// Send queues an arbitrary command.
func (c *Client) Send(cmd Command) { c.sender.Send(cmd) }

func (c *Client) GetGlobalSettings() {
	c.Send(GetGlobalSettings{Context: c.pluginUUID})
}

func (c *Client) GetSettings(context string) {
	c.Send(GetSettings{Context: context})
}

// SetGlobalSettings replaces the plugin-wide settings stored by the host.
func (c *Client) SetGlobalSettings(settings map[string]any) {
	c.Send(SetGlobalSettings{Context: c.pluginUUID, Settings: settings})
}

func (c *Client) SetSettings(context string, settings map[string]any) {
	c.Send(SetSettings{Context: context, Settings: settings})
}

func (c *Client) LogMessage(msg string) {
	c.Send(LogMessage{Message: msg})
}

func (c *Client) OpenURL(url string) {
	c.Send(OpenURL{URL: url})
}

func (c *Client) SendToPropertyInspector(context string, payload any) {
	c.Send(SendToPropertyInspector{Context: context, Payload: payload})
}

func (c *Client) SetFeedback(context string, payload any) {
	c.Send(SetFeedback{Context: context, Payload: payload})
}

func (c *Client) SetFeedbackLayout(context, layout string) {
	c.Send(SetFeedbackLayout{Context: context, Layout: layout})
}

// SetTitle sets the visible label on both hardware and software.
func (c *Client) SetTitle(context, title string) {
	c.Send(SetTitle{Context: context, Title: &title})
}

// ClearTitle resets the label to the one configured by the user.
func (c *Client) ClearTitle(context string) {
	c.Send(SetTitle{Context: context})
}

func (c *Client) SetImage(context, image string) {
	c.Send(SetImage{Context: context, Image: image})
}

func (c *Client) SetState(context string, state State) {
	c.Send(SetState{Context: context, State: state})
}

func (c *Client) SetTriggerDescription(cmd SetTriggerDescription) {
	c.Send(cmd)
}

func (c *Client) ShowAlert(context string) {
	c.Send(ShowAlert{Context: context})
}

func (c *Client) ShowOk(context string) {
	c.Send(ShowOk{Context: context})
}
