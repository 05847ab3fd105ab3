// ABOUTME: Bubbletea model for the session TUI
// ABOUTME: Defines display state and update logic
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parley-ai/parley-go/internal/session"
	"github.com/parley-ai/parley-go/internal/transcript"
)

// Controls carries key-driven requests out of the TUI loop
type Controls struct {
	Mute chan bool
	End  chan struct{}
	Quit chan struct{}
}

// NewControls creates the control channels
func NewControls() *Controls {
	return &Controls{
		Mute: make(chan bool, 4),
		End:  make(chan struct{}, 1),
		Quit: make(chan struct{}, 1),
	}
}

// Model represents the TUI state
type Model struct {
	// Session
	state     session.State
	remaining int
	lastErr   string

	// Levels
	localLevel  float64
	remoteLevel float64
	muted       bool

	// Conversation
	entries []transcript.Entry

	// Dimensions
	width  int
	height int

	quitting bool
	controls *Controls
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		state:    session.StateIdle,
		controls: controls,
	}
}

// StatusMsg updates session state on the TUI
type StatusMsg struct {
	State     *session.State
	Remaining *int
	Err       string
}

// LevelsMsg updates the loudness bars
type LevelsMsg struct {
	Local  float64
	Remote float64
}

// TranscriptMsg replaces the displayed conversation
type TranscriptMsg struct {
	Entries []transcript.Entry
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case LevelsMsg:
		m.localLevel = msg.Local
		m.remoteLevel = msg.Remote
	case TranscriptMsg:
		m.entries = msg.Entries
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		select {
		case m.controls.Quit <- struct{}{}:
		default:
		}
		return m, tea.Quit
	case "m":
		m.muted = !m.muted
		select {
		case m.controls.Mute <- m.muted:
		default:
		}
	case "e":
		select {
		case m.controls.End <- struct{}{}:
		default:
		}
	}

	return m, nil
}

// applyStatus updates model from a status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.State != nil {
		m.state = *msg.State
	}
	if msg.Remaining != nil {
		m.remaining = *msg.Remaining
	}
	if msg.Err != "" {
		m.lastErr = msg.Err
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Ending session...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	errStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("Parley Interview Practice"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Status: "))
	b.WriteString(valueStyle.Render(stateLabel(m.state, m.muted)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Time:   "))
	b.WriteString(valueStyle.Render(formatClock(m.remaining)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("You:    "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("[%s]", renderBar(m.localLevel, 20))))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Agent:  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("[%s]", renderBar(m.remoteLevel, 20))))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Conversation"))
	b.WriteString("\n")
	b.WriteString(m.renderTranscript(valueStyle))
	b.WriteString("\n")

	if m.lastErr != "" {
		b.WriteString(errStyle.Render("Error: " + m.lastErr))
		b.WriteString("\n\n")
	}

	b.WriteString(lipgloss.NewStyle().Faint(true).Render("m:Mute  e:End Session  q:Quit"))
	b.WriteString("\n")

	return b.String()
}

// renderTranscript shows the most recent exchanges, newest last
func (m Model) renderTranscript(style lipgloss.Style) string {
	if len(m.entries) == 0 {
		return style.Render("  (waiting for the interviewer)") + "\n"
	}

	entries := m.entries
	if len(entries) > 6 {
		entries = entries[len(entries)-6:]
	}

	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	for _, e := range entries {
		line := fmt.Sprintf("  %s: %s", e.Role, e.Text)
		b.WriteString(style.Render(truncate(line, width-2)))
		b.WriteString("\n")
	}
	return b.String()
}

// stateLabel maps lifecycle state to a display string
func stateLabel(state session.State, muted bool) string {
	label := state.String()
	if state == session.StateActive && muted {
		label += " (muted)"
	}
	return label
}

// formatClock renders whole seconds as m:ss
func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// renderBar renders a normalized level as a fixed-width bar
func renderBar(level float64, width int) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level * float64(width))

	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if length < 4 {
		length = 4
	}
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
