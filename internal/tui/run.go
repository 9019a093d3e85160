package tui

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Run edits opts.Path in the terminal until the user quits. A path that
// does not exist yet starts a blank document that is saved there.
func Run(opts Options) error {
	m := New(opts)
	defer m.Close()

	if path := strings.TrimSpace(opts.Path); path != "" {
		_, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if !m.Target(path) {
				return m.failure()
			}
		case !m.Load(path):
			return m.failure()
		}
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return m.ctx.Err()
	}
	return err
}
