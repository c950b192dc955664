package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

// settingsDiff returns a unified diff of two settings maps rendered as YAML.
// Equal maps yield "".
func settingsDiff(label string, before, after map[string]any) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.TrimSuffix(settingsText(before), "\n")),
		B:        difflib.SplitLines(strings.TrimSuffix(settingsText(after), "\n")),
		FromFile: label,
		ToFile:   label,
		Context:  1,
	}

	result, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("(diff error: %v)", err)
	}

	return result
}

func settingsText(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v\n", m)
	}

	return string(data)
}

// truncateLine fits s into width terminal cells on a single line.
func truncateLine(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 0 {
		return ""
	}

	return runewidth.Truncate(s, width, "…")
}

// padCell centres s in a cell of width terminal cells.
func padCell(s string, width int) string {
	s = truncateLine(s, width)
	gap := width - runewidth.StringWidth(s)
	left := gap / 2

	return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
}

// formatFrame renders a frame as one log line.
func formatFrame(f Frame) string {
	var sb strings.Builder
	sb.WriteString(f.At.Format("15:04:05.000"))
	sb.WriteString(" ")
	sb.WriteString(f.Dir.String())
	sb.WriteString(" ")
	sb.WriteString(f.Event)
	if f.Context != "" {
		sb.WriteString(" ")
		sb.WriteString(shortID(f.Context))
	}
	sb.WriteString(" ")
	sb.Write(f.Raw)

	return sb.String()
}

// shortID keeps the first block of a UUID.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}

	return id
}

// renderMarkdown renders text for a terminal of the given width, falling
// back to the raw text.
func renderMarkdown(text string, width int) string {
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}

	out, err := r.Render(text)
	if err != nil {
		return text
	}

	return strings.TrimRight(out, "\n")
}

const helpText = `# deckhost

Simulates a keypad for one plugin.

| key | action |
|---|---|
| arrows / hjkl | move the cursor |
| enter / space | press the key under the cursor |
| i | open the property inspector |
| a | toggle the simulated application |
| ? | toggle this help |
| q / ctrl+c | quit |

Titles set by the plugin are shown on the keys. A key flashes ✓ after
showOk and ! after showAlert. Settings changes are shown as diffs in the
frame log.
`
