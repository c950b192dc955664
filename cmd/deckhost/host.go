package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/germanamz/deckhand/pkg/protocol"
)

// Direction tells which side sent a frame.
type Direction int

const (
	FromPlugin Direction = iota
	ToPlugin
)

func (d Direction) String() string {
	if d == ToPlugin {
		return "→"
	}

	return "←"
}

// Frame is one websocket message observed by the host.
type Frame struct {
	At      time.Time
	Dir     Direction
	Event   string
	Context string
	Raw     []byte
	// Diff is set for setSettings and setGlobalSettings.
	Diff string
}

var (
	ErrNoPlugin       = errors.New("deckhost: no plugin registered")
	ErrUnknownContext = errors.New("deckhost: unknown context")
)

// command is the subset of a plugin frame the host inspects.
type command struct {
	Event   string          `json:"event"`
	Context string          `json:"context"`
	Payload json.RawMessage `json:"payload"`
}

// Host is a single-plugin websocket server speaking the host side of the
// protocol for a Layout.
type Host struct {
	layout *Layout
	log    *slog.Logger
	frames chan Frame

	mu         sync.Mutex
	attached   bool
	conn       *websocket.Conn
	registered chan struct{}
	slots      map[string]Slot
	titles     map[string]string
	marks      map[string]string
	globals    map[string]any
}

// NewHost creates a host for l. Frames are published on a buffer of size
// backlog; a full buffer drops frames.
func NewHost(l *Layout, log *slog.Logger, backlog int) *Host {
	h := &Host{
		layout:     l,
		log:        log,
		frames:     make(chan Frame, backlog),
		registered: make(chan struct{}),
		slots:      make(map[string]Slot, len(l.Keys)),
		titles:     make(map[string]string),
		marks:      make(map[string]string),
		globals:    maps.Clone(l.Globals),
	}

	for _, s := range l.Keys {
		h.slots[s.Context] = s
	}

	return h
}

// Frames returns the observed frame stream.
func (h *Host) Frames() <-chan Frame { return h.frames }

// Registered is closed once the plugin has sent a valid registration.
func (h *Host) Registered() <-chan struct{} { return h.registered }

// Title returns the last title set for ctxID.
func (h *Host) Title(ctxID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.titles[ctxID]
}

// Mark returns "ok" or "alert" after showOk/showAlert for ctxID.
func (h *Host) Mark(ctxID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.marks[ctxID]
}

// Settings returns a copy of the stored settings of ctxID.
func (h *Host) Settings(ctxID string) map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	return maps.Clone(h.slots[ctxID].Settings)
}

// Globals returns a copy of the stored global settings.
func (h *Host) Globals() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	return maps.Clone(h.globals)
}

// ServeHTTP accepts the plugin connection and serves it until it closes.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	busy := h.attached
	h.attached = true
	h.mu.Unlock()
	if busy {
		http.Error(w, "a plugin is already connected", http.StatusConflict)
		return
	}

	defer func() {
		h.mu.Lock()
		h.attached = false
		h.conn = nil
		h.mu.Unlock()
	}()

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error("deckhost: accept failed", "error", err)
		return
	}
	defer func() { _ = c.CloseNow() }()

	c.SetReadLimit(16 << 20)

	ctx := r.Context()

	if err := h.register(ctx, c); err != nil {
		h.log.Warn("deckhost: registration rejected", "error", err)
		_ = c.Close(websocket.StatusPolicyViolation, "registration required")
		return
	}

	if err := h.greet(ctx); err != nil {
		h.log.Error("deckhost: greeting failed", "error", err)
		return
	}

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			h.log.Info("deckhost: plugin disconnected", "status", websocket.CloseStatus(err))
			return
		}

		h.handle(ctx, data)
	}
}

func (h *Host) register(ctx context.Context, c *websocket.Conn) error {
	_, data, err := c.Read(ctx)
	if err != nil {
		return err
	}

	var reg protocol.Registration
	if err := json.Unmarshal(data, &reg); err != nil {
		return fmt.Errorf("first frame is not a registration: %w", err)
	}

	if reg.Event != h.layout.Plugin.RegisterEvent || reg.UUID != h.layout.Plugin.UUID {
		return fmt.Errorf("unexpected registration %s/%s", reg.Event, reg.UUID)
	}

	h.mu.Lock()
	h.conn = c
	h.mu.Unlock()

	h.publish(Frame{Dir: FromPlugin, Event: reg.Event, Raw: data})

	select {
	case <-h.registered:
	default:
		close(h.registered)
	}

	return nil
}

// greet announces the device and makes every key appear.
func (h *Host) greet(ctx context.Context) error {
	d := h.layout.Device
	if err := h.Send(ctx, map[string]any{
		"event":  "deviceDidConnect",
		"device": d.ID,
		"deviceInfo": protocol.DeviceInfo{
			Name: d.Name,
			Size: protocol.Size{Columns: d.Columns, Rows: d.Rows},
		},
	}); err != nil {
		return err
	}

	for _, s := range h.layout.Keys {
		if err := h.Send(ctx, h.controlFrame(protocol.EventWillAppear, s, nil)); err != nil {
			return err
		}
	}

	return nil
}

func (h *Host) controlFrame(event protocol.EventName, s Slot, extra map[string]any) map[string]any {
	h.mu.Lock()
	settings := maps.Clone(h.slots[s.Context].Settings)
	h.mu.Unlock()

	payload := map[string]any{
		"settings":        settings,
		"controller":      "Keypad",
		"coordinates":     protocol.Coordinates{Column: s.Column, Row: s.Row},
		"isInMultiAction": false,
	}
	maps.Copy(payload, extra)

	return map[string]any{
		"event":   string(event),
		"action":  s.Action,
		"context": s.Context,
		"device":  h.layout.Device.ID,
		"payload": payload,
	}
}

// Send writes one frame to the plugin.
func (h *Host) Send(ctx context.Context, frame map[string]any) error {
	h.mu.Lock()
	c := h.conn
	h.mu.Unlock()

	if c == nil {
		return ErrNoPlugin
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("deckhost: encode frame: %w", err)
	}

	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("deckhost: write: %w", err)
	}

	event, _ := frame["event"].(string)
	ctxID, _ := frame["context"].(string)
	h.publish(Frame{Dir: ToPlugin, Event: event, Context: ctxID, Raw: data})

	return nil
}

// Press sends keyDown followed by keyUp for ctxID.
func (h *Host) Press(ctx context.Context, ctxID string) error {
	h.mu.Lock()
	s, ok := h.slots[ctxID]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, ctxID)
	}

	if err := h.Send(ctx, h.controlFrame(protocol.EventKeyDown, s, nil)); err != nil {
		return err
	}

	return h.Send(ctx, h.controlFrame(protocol.EventKeyUp, s, nil))
}

// OpenInspector sends propertyInspectorDidAppear for ctxID.
func (h *Host) OpenInspector(ctx context.Context, ctxID string) error {
	h.mu.Lock()
	s, ok := h.slots[ctxID]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, ctxID)
	}

	return h.Send(ctx, map[string]any{
		"event":   string(protocol.EventPropertyInspectorDidAppear),
		"action":  s.Action,
		"context": s.Context,
		"device":  h.layout.Device.ID,
	})
}

// Application sends applicationDidLaunch or applicationDidTerminate.
func (h *Host) Application(ctx context.Context, name string, running bool) error {
	event := protocol.EventApplicationDidTerminate
	if running {
		event = protocol.EventApplicationDidLaunch
	}

	return h.Send(ctx, map[string]any{
		"event":   string(event),
		"payload": map[string]any{"application": name},
	})
}

// handle applies one plugin command to the simulated device.
func (h *Host) handle(ctx context.Context, data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		h.log.Warn("deckhost: bad frame from plugin", "error", err)
		h.publish(Frame{Dir: FromPlugin, Event: "?", Raw: data})
		return
	}

	f := Frame{Dir: FromPlugin, Event: cmd.Event, Context: cmd.Context, Raw: data}

	switch cmd.Event {
	case "setTitle":
		var p struct {
			Title *string `json:"title"`
		}
		_ = json.Unmarshal(cmd.Payload, &p)

		h.mu.Lock()
		if p.Title == nil {
			delete(h.titles, cmd.Context)
		} else {
			h.titles[cmd.Context] = *p.Title
		}
		h.mu.Unlock()

	case "showOk", "showAlert":
		mark := "ok"
		if cmd.Event == "showAlert" {
			mark = "alert"
		}

		h.mu.Lock()
		h.marks[cmd.Context] = mark
		h.mu.Unlock()

	case "setSettings":
		var next map[string]any
		_ = json.Unmarshal(cmd.Payload, &next)

		h.mu.Lock()
		s, ok := h.slots[cmd.Context]
		if ok {
			f.Diff = settingsDiff(cmd.Context, s.Settings, next)
			s.Settings = next
			h.slots[cmd.Context] = s
		}
		h.mu.Unlock()

	case "setGlobalSettings":
		var next map[string]any
		_ = json.Unmarshal(cmd.Payload, &next)

		h.mu.Lock()
		f.Diff = settingsDiff("globals", h.globals, next)
		h.globals = next
		h.mu.Unlock()

	case "getSettings":
		h.mu.Lock()
		s, ok := h.slots[cmd.Context]
		h.mu.Unlock()

		if ok {
			defer h.reply(ctx, h.controlFrame(protocol.EventDidReceiveSettings, s, nil))
		}

	case "getGlobalSettings":
		defer h.reply(ctx, map[string]any{
			"event":   string(protocol.EventDidReceiveGlobalSettings),
			"payload": map[string]any{"settings": h.Globals()},
		})
	}

	h.publish(f)
}

func (h *Host) reply(ctx context.Context, frame map[string]any) {
	if err := h.Send(ctx, frame); err != nil {
		h.log.Warn("deckhost: reply failed", "event", frame["event"], "error", err)
	}
}

func (h *Host) publish(f Frame) {
	if f.At.IsZero() {
		f.At = time.Now()
	}

	select {
	case h.frames <- f:
	default:
		h.log.Debug("deckhost: frame log full, dropped", "event", f.Event)
	}
}
