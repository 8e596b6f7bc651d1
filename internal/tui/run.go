package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/upsc-prep/backend/internal/pyq"
)

// Run blocks until the user quits.
func Run(backend pyq.Backend, signedIn bool, out io.Writer) error {
	ctrl := pyq.NewController(backend, signedIn)
	program := tea.NewProgram(NewModel(ctrl, signedIn), tea.WithOutput(out), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
