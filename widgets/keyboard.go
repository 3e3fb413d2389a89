package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"player-piano/midi"
	"player-piano/theme"
)

// IsBlack reports whether key index k is a black key.
func IsBlack(k int) bool {
	switch (k + midi.DefaultKeyOffset) % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// RenderKeyboard renders all 88 keys on one line, pressed keys colored by velocity
func RenderKeyboard(th *theme.Theme, keys [midi.NumKeys]uint8) string {
	white := lipgloss.NewStyle().Foreground(th.FG())
	black := lipgloss.NewStyle().Foreground(th.Muted())

	var out strings.Builder
	for k, vel := range keys {
		switch {
		case vel != 0:
			out.WriteString(lipgloss.NewStyle().Foreground(th.Velocity(vel)).Render(string(th.Symbols.KeyDown)))
		case IsBlack(k):
			out.WriteString(black.Render(string(th.Symbols.BlackKey)))
		default:
			out.WriteString(white.Render(string(th.Symbols.WhiteKey)))
		}
	}
	return out.String()
}

// RenderProgress renders a width-wide bar for percent (0-100)
func RenderProgress(th *theme.Theme, percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(filled, width))

	full := lipgloss.NewStyle().Foreground(th.Accent())
	empty := lipgloss.NewStyle().Foreground(th.Muted())
	return full.Render(strings.Repeat(string(th.Symbols.BarFull), filled)) +
		empty.Render(strings.Repeat(string(th.Symbols.BarEmpty), width-filled))
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
