package main

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxLogLines bounds the frame log kept in memory.
const maxLogLines = 500

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Press   key.Binding
	Inspect key.Binding
	App     key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
	Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
	Press:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "press")),
	Inspect: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "inspector")),
	App:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "app")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// frameMsg carries a frame observed by the host.
type frameMsg struct{ frame Frame }

// actionDoneMsg reports the result of a host call made from a key press.
type actionDoneMsg struct {
	what string
	err  error
}

// exitedMsg reports that the plugin process ended.
type exitedMsg struct{ err error }

// hostModel is the root bubbletea model.
type hostModel struct {
	ctx     context.Context
	host    *Host
	layout  *Layout
	appName string

	col, row   int
	appRunning bool
	showHelp   bool
	status     string
	lines      []string
	width      int
	height     int
}

func newHostModel(ctx context.Context, h *Host, l *Layout) hostModel {
	return hostModel{
		ctx:     ctx,
		host:    h,
		layout:  l,
		appName: "com.example.app",
		width:   80,
		height:  24,
	}
}

func (m hostModel) Init() tea.Cmd { return nil }

func (m hostModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case frameMsg:
		m.appendFrame(msg.frame)
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.status = alertStyle.Render(msg.what + ": " + msg.err.Error())
		} else {
			m.status = msg.what
		}
		return m, nil

	case exitedMsg:
		m.status = "plugin exited"
		if msg.err != nil {
			m.status = alertStyle.Render("plugin exited: " + msg.err.Error())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m hostModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
	case key.Matches(msg, keys.Up):
		m.row = max(m.row-1, 0)
	case key.Matches(msg, keys.Down):
		m.row = min(m.row+1, m.layout.Device.Rows-1)
	case key.Matches(msg, keys.Left):
		m.col = max(m.col-1, 0)
	case key.Matches(msg, keys.Right):
		m.col = min(m.col+1, m.layout.Device.Columns-1)
	case key.Matches(msg, keys.Press):
		if s, ok := m.layout.SlotAt(m.col, m.row); ok {
			return m, m.call("pressed "+shortID(s.Context), func(ctx context.Context) error {
				return m.host.Press(ctx, s.Context)
			})
		}
	case key.Matches(msg, keys.Inspect):
		if s, ok := m.layout.SlotAt(m.col, m.row); ok {
			return m, m.call("inspector "+shortID(s.Context), func(ctx context.Context) error {
				return m.host.OpenInspector(ctx, s.Context)
			})
		}
	case key.Matches(msg, keys.App):
		m.appRunning = !m.appRunning
		running := m.appRunning
		what := m.appName + " terminated"
		if running {
			what = m.appName + " launched"
		}
		return m, m.call(what, func(ctx context.Context) error {
			return m.host.Application(ctx, m.appName, running)
		})
	}

	return m, nil
}

// call runs fn off the update loop and reports its result.
func (m hostModel) call(what string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{what: what, err: fn(ctx)}
	}
}

func (m *hostModel) appendFrame(f Frame) {
	m.lines = append(m.lines, formatFrame(f))
	if f.Diff != "" {
		for line := range strings.SplitSeq(strings.TrimRight(f.Diff, "\n"), "\n") {
			m.lines = append(m.lines, diffStyle.Render("    "+line))
		}
	}

	if over := len(m.lines) - maxLogLines; over > 0 {
		m.lines = m.lines[over:]
	}
}

func (m hostModel) View() string {
	if m.showHelp {
		return renderMarkdown(helpText, m.width)
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("deckhost · " + m.layout.Device.Name))
	sb.WriteString(dimStyle.Render("  " + m.layout.Plugin.Path))
	sb.WriteString("\n")
	sb.WriteString(m.grid())
	sb.WriteString("\n")
	if m.status != "" {
		sb.WriteString(m.status)
		sb.WriteString("\n")
	}

	gridHeight := lipgloss.Height(sb.String())
	room := max(m.height-gridHeight-1, 1)

	start := max(len(m.lines)-room, 0)
	for _, line := range m.lines[start:] {
		sb.WriteString(truncateLine(line, m.width))
		sb.WriteString("\n")
	}

	sb.WriteString(dimStyle.Render("? help · q quit"))

	return sb.String()
}

func (m hostModel) grid() string {
	rows := make([]string, 0, m.layout.Device.Rows)
	for r := range m.layout.Device.Rows {
		cells := make([]string, 0, m.layout.Device.Columns)
		for c := range m.layout.Device.Columns {
			cells = append(cells, m.cell(c, r))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m hostModel) cell(c, r int) string {
	style := keyStyle
	if c == m.col && r == m.row {
		style = cursorKeyStyle
	}

	s, ok := m.layout.SlotAt(c, r)
	if !ok {
		if c == m.col && r == m.row {
			return cursorKeyStyle.Render(padCell("", keyWidth) + "\n" + padCell("", keyWidth))
		}
		return emptyKeyStyle.Render(padCell("·", keyWidth) + "\n" + padCell("", keyWidth))
	}

	title := m.host.Title(s.Context)
	if title == "" {
		title = lastSegment(s.Action)
	}

	var mark string
	switch m.host.Mark(s.Context) {
	case "ok":
		mark = okStyle.Render(padCell("✓", keyWidth))
	case "alert":
		mark = alertStyle.Render(padCell("!", keyWidth))
	default:
		mark = padCell("", keyWidth)
	}

	return style.Render(padCell(title, keyWidth) + "\n" + mark)
}

// lastSegment returns the part of a reverse-DNS id after the last dot.
func lastSegment(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:]
	}

	return id
}
