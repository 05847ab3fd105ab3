// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the session display
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-ai/parley-go/internal/session"
	"github.com/parley-ai/parley-go/internal/transcript"
)

// TUI manages the session display
type TUI struct {
	program  *tea.Program
	controls *Controls
}

// New creates the TUI and its control channels. The program exists
// before Run so update methods are safe from engine callbacks.
func New() *TUI {
	controls := NewControls()
	return &TUI{
		program:  tea.NewProgram(NewModel(controls), tea.WithAltScreen()),
		controls: controls,
	}
}

// Controls returns the key-driven request channels
func (t *TUI) Controls() *Controls {
	return t.controls
}

// Run blocks until the user quits or Stop is called
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Stop shuts the display down
func (t *TUI) Stop() {
	t.program.Quit()
}

// SetState updates the displayed lifecycle state
func (t *TUI) SetState(state session.State) {
	t.program.Send(StatusMsg{State: &state})
}

// SetRemaining updates the countdown clock
func (t *TUI) SetRemaining(seconds int) {
	t.program.Send(StatusMsg{Remaining: &seconds})
}

// SetError surfaces an error line
func (t *TUI) SetError(msg string) {
	t.program.Send(StatusMsg{Err: msg})
}

// SetLevels updates the loudness bars
func (t *TUI) SetLevels(local, remote float64) {
	t.program.Send(LevelsMsg{Local: local, Remote: remote})
}

// SetTranscript replaces the displayed conversation
func (t *TUI) SetTranscript(entries []transcript.Entry) {
	t.program.Send(TranscriptMsg{Entries: entries})
}
