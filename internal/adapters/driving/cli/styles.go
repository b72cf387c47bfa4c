package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

// Palette colours.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
	colourBorder  = lipgloss.Color("#45475A")
)

// styles renders command output. Colour is disabled when the writer is
// not a terminal so piped output stays plain.
type styles struct {
	plain bool

	title   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	header  lipgloss.Style
	border  lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	s := &styles{plain: !isTerminal(w)}
	s.title = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	s.muted = lipgloss.NewStyle().Foreground(colourMuted)
	s.success = lipgloss.NewStyle().Foreground(colourSuccess)
	s.warning = lipgloss.NewStyle().Foreground(colourWarning)
	s.err = lipgloss.NewStyle().Bold(true).Foreground(colourError)
	s.header = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary).Padding(0, 1)
	s.border = lipgloss.NewStyle().Foreground(colourBorder)
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s *styles) render(st lipgloss.Style, text string) string {
	if s.plain {
		return text
	}
	return st.Render(text)
}

// Title renders a section heading.
func (s *styles) Title(text string) string { return s.render(s.title, text) }

// Muted renders secondary text.
func (s *styles) Muted(text string) string { return s.render(s.muted, text) }

// OK renders a success marker or message.
func (s *styles) OK(text string) string { return s.render(s.success, text) }

// Warn renders a warning.
func (s *styles) Warn(text string) string { return s.render(s.warning, text) }

// Fail renders an error.
func (s *styles) Fail(text string) string { return s.render(s.err, text) }

// Table renders rows under headers.
func (s *styles) Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	if !s.plain {
		t = t.BorderStyle(s.border).StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	} else {
		t = t.StyleFunc(func(int, int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}
	return t.Render()
}
