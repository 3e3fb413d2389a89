package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"player-piano/midi"
	"player-piano/theme"
)

func TestIsBlack(t *testing.T) {
	// A0, A#0, B0, C1, C#1
	want := []bool{false, true, false, false, true}
	for k, w := range want {
		if IsBlack(k) != w {
			t.Errorf("IsBlack(%d) = %t, want %t", k, !w, w)
		}
	}
	if IsBlack(87) {
		t.Error("C8 reported black")
	}
}

func TestRenderKeyboardWidth(t *testing.T) {
	th := theme.New(theme.Plasma())
	var keys [midi.NumKeys]uint8
	keys[39] = 100

	out := RenderKeyboard(th, keys)
	if w := lipgloss.Width(out); w != midi.NumKeys {
		t.Errorf("width = %d, want %d", w, midi.NumKeys)
	}
	if !strings.ContainsRune(out, th.Symbols.KeyDown) {
		t.Error("pressed key not drawn")
	}
}

func TestRenderProgressClamps(t *testing.T) {
	th := theme.New(theme.Plasma())
	for _, pct := range []float64{-10, 0, 42, 100, 250} {
		if w := lipgloss.Width(RenderProgress(th, pct, 20)); w != 20 {
			t.Errorf("RenderProgress(%v) width = %d, want 20", pct, w)
		}
	}
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{Title: "Playback", Keys: []KeyBinding{{"q", "quit"}}}})
	if out != "Playback\n  q            quit" {
		t.Errorf("got %q", out)
	}
}
