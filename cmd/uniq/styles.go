package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	uniq "github.com/dougcole/resque-uniq"
)

var (
	// Colors
	colorPrimary = lipgloss.Color("39")  // blue
	colorSuccess = lipgloss.Color("42")  // green
	colorDanger  = lipgloss.Color("196") // red
	colorWarning = lipgloss.Color("214") // orange
	colorMuted   = lipgloss.Color("240") // dark gray

	headerStyle = lipgloss.NewStyle().Bold(true)

	// State badges
	stateQueued  = lipgloss.NewStyle().Foreground(colorWarning)
	stateRunning = lipgloss.NewStyle().Foreground(colorPrimary)
	stateStale   = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	stateFree    = lipgloss.NewStyle().Foreground(colorMuted)

	aliveStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	deadStyle  = lipgloss.NewStyle().Foreground(colorDanger)
)

// styler renders styles only when writing to a terminal.
type styler struct {
	color bool
}

func newStyler(w io.Writer) styler {
	f, ok := w.(*os.File)
	return styler{color: ok && term.IsTerminal(int(f.Fd()))}
}

func (s styler) render(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return style.Render(text)
}

func (s styler) header(text string) string {
	return s.render(headerStyle, text)
}

func (s styler) state(state uniq.LockState) string {
	switch state {
	case uniq.StateQueued:
		return s.render(stateQueued, string(state))
	case uniq.StateRunning:
		return s.render(stateRunning, string(state))
	case uniq.StateStale:
		return s.render(stateStale, string(state))
	default:
		return s.render(stateFree, string(state))
	}
}

func (s styler) alive(alive bool) string {
	if alive {
		return s.render(aliveStyle, "alive")
	}
	return s.render(deadStyle, "dead")
}

// renderTable lays out rows under headers with a single rule below the
// header row. Column widths account for any styling in the cells.
func (s styler) renderTable(headers []string, rows [][]string) string {
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = s.header(h)
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().PaddingRight(2)
		}).
		Headers(styled...).
		Rows(rows...).
		String()
}
