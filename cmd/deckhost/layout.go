package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultLayoutPath is where deckhost looks for a layout when -layout is
// not given.
const DefaultLayoutPath = "deckhost.yaml"

// Layout describes the simulated device and the plugin it hosts.
type Layout struct {
	Plugin  PluginSpec     `yaml:"plugin"`
	Device  DeviceSpec     `yaml:"device"`
	Keys    []Slot         `yaml:"keys"`
	Globals map[string]any `yaml:"globals,omitempty"`
}

// PluginSpec is how the plugin process is launched.
type PluginSpec struct {
	Path          string   `yaml:"path"`
	Args          []string `yaml:"args,omitempty"`
	UUID          string   `yaml:"uuid,omitempty"`
	RegisterEvent string   `yaml:"register_event,omitempty"`
	Env           []string `yaml:"env,omitempty"`
	LogFile       string   `yaml:"log_file,omitempty"`
}

// DeviceSpec is the simulated keypad.
type DeviceSpec struct {
	ID      string `yaml:"id,omitempty"`
	Name    string `yaml:"name,omitempty"`
	Columns int    `yaml:"columns"`
	Rows    int    `yaml:"rows"`
}

// Slot binds an action to one key of the grid.
type Slot struct {
	Action   string         `yaml:"action"`
	Column   int            `yaml:"column"`
	Row      int            `yaml:"row"`
	Context  string         `yaml:"context,omitempty"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// LoadLayout reads and validates a layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path) //nolint:gosec // layout path is user supplied
	if err != nil {
		return nil, fmt.Errorf("deckhost: read layout: %w", err)
	}

	return ParseLayout(data)
}

// ParseLayout decodes a layout, fills defaults and validates it.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("deckhost: parse layout: %w", err)
	}

	l.fill()

	if err := l.Validate(); err != nil {
		return nil, err
	}

	return &l, nil
}

// fill assigns generated ids and default names.
func (l *Layout) fill() {
	if l.Plugin.UUID == "" {
		l.Plugin.UUID = uuid.NewString()
	}
	if l.Plugin.RegisterEvent == "" {
		l.Plugin.RegisterEvent = "registerPlugin"
	}
	if l.Device.ID == "" {
		l.Device.ID = uuid.NewString()
	}
	if l.Device.Name == "" {
		l.Device.Name = "deckhost"
	}
	if l.Globals == nil {
		l.Globals = map[string]any{}
	}

	for i := range l.Keys {
		if l.Keys[i].Context == "" {
			l.Keys[i].Context = uuid.NewString()
		}
		if l.Keys[i].Settings == nil {
			l.Keys[i].Settings = map[string]any{}
		}
	}
}

// Validate reports layout errors.
func (l *Layout) Validate() error {
	var errs []error

	if l.Plugin.Path == "" {
		errs = append(errs, errors.New("plugin.path is required"))
	}
	if l.Device.Columns <= 0 || l.Device.Rows <= 0 {
		errs = append(errs, fmt.Errorf("device size %dx%d must be positive", l.Device.Columns, l.Device.Rows))
	}

	taken := make(map[[2]int]bool, len(l.Keys))
	contexts := make(map[string]bool, len(l.Keys))
	for i, s := range l.Keys {
		switch {
		case s.Action == "":
			errs = append(errs, fmt.Errorf("keys[%d]: action is required", i))
		case s.Column < 0 || s.Column >= l.Device.Columns || s.Row < 0 || s.Row >= l.Device.Rows:
			errs = append(errs, fmt.Errorf("keys[%d]: position %d,%d is off the grid", i, s.Column, s.Row))
		case taken[[2]int{s.Column, s.Row}]:
			errs = append(errs, fmt.Errorf("keys[%d]: position %d,%d is already taken", i, s.Column, s.Row))
		case contexts[s.Context]:
			errs = append(errs, fmt.Errorf("keys[%d]: duplicate context %q", i, s.Context))
		}

		taken[[2]int{s.Column, s.Row}] = true
		contexts[s.Context] = true
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("deckhost: invalid layout: %w", err)
	}

	return nil
}

// SlotAt returns the slot at a grid position.
func (l *Layout) SlotAt(column, row int) (Slot, bool) {
	for _, s := range l.Keys {
		if s.Column == column && s.Row == row {
			return s, true
		}
	}

	return Slot{}, false
}

// Marshal renders the layout as YAML.
func (l *Layout) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("deckhost: marshal layout: %w", err)
	}

	return data, nil
}
