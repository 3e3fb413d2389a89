package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"player-piano/player"
	"player-piano/theme"
	"player-piano/widgets"
)

const barWidth = 60

type Model struct {
	Controller *player.Controller
	Theme      *theme.Theme

	// Replay starts the song again after it finished or was stopped.
	Replay func() error

	quitting bool
	err      error
}

type UpdateMsg struct{}

func NewModel(c *player.Controller, th *theme.Theme, replay func() error) Model {
	return Model{
		Controller: c,
		Theme:      th,
		Replay:     replay,
	}
}

func ListenForUpdates(c *player.Controller) tea.Cmd {
	return func() tea.Msg {
		<-c.UpdateChan
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForUpdates(m.Controller)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.Controller.Stop()
			return m, tea.Quit

		case " ", "space", "p":
			if m.Controller.Playing() {
				m.Controller.Stop()
			} else if m.Replay != nil {
				m.err = m.Replay()
			}
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Controller)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.Controller.Status()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	errStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	state := m.Theme.Symbols.Stopped
	if st.Playing {
		state = m.Theme.Symbols.Playing
	}
	pedal := m.Theme.Symbols.PedalUp
	if st.Sustain {
		pedal = m.Theme.Symbols.PedalDown
	}

	song := st.Song
	if song == "" {
		song = "-"
	}
	header := headerStyle.Render(fmt.Sprintf("player-piano  %c  %s", state, song))

	clock := fmt.Sprintf("%s / %s  frame %d/%d",
		formatClock(st.Elapsed), formatClock(st.Duration), min(st.Frame+1, st.Frames), st.Frames)

	help := widgets.RenderKeyHelp([]widgets.KeySection{{
		Keys: []widgets.KeyBinding{
			{Key: "space", Desc: "stop / play again"},
			{Key: "q", Desc: "stop and quit"},
		},
	}})

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderKeyboard(m.Theme, st.Keys))
	out.WriteString(fmt.Sprintf("  %c", pedal))
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderProgress(m.Theme, st.Progress, barWidth))
	out.WriteString(fmt.Sprintf(" %3.0f%%\n", st.Progress))
	out.WriteString(dimStyle.Render(clock))

	if st.Err != "" && !st.Playing {
		out.WriteString("\n")
		out.WriteString(errStyle.Render(st.Err))
	}
	if m.err != nil {
		out.WriteString("\n")
		out.WriteString(errStyle.Render(m.err.Error()))
	}

	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(help))
	return out.String()
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
