// Package tui provides a terminal monitor for a training session using
// Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fedbook/fedbook/internal/controller"
	"github.com/fedbook/fedbook/internal/domain"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	rejectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	executedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	outputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// Model is the session monitor model
type Model struct {
	ctrl *controller.Controller
	sess *domain.Session

	cells       []*domain.Cell
	selectedIdx int
	executing   bool
	err         error
	quitting    bool

	spinner spinner.Model
	width   int
	height  int
}

// Message types
type cellsMsg []*domain.Cell
type execDoneMsg struct {
	cell *domain.Cell
	err  error
}
type errMsg error
type tickMsg time.Time

// New creates a monitor for one session
func New(ctrl *controller.Controller, sess *domain.Session) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		ctrl:    ctrl,
		sess:    sess,
		spinner: s,
	}
}

// Init initializes the monitor
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetchCells,
		tickCmd(),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.executing {
				m.quitting = true
				return m, tea.Quit
			}
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		case "down", "j":
			if m.selectedIdx < len(m.cells)-1 {
				m.selectedIdx++
			}
		case "enter", "e":
			if !m.executing && m.selectedIdx < len(m.cells) {
				cell := m.cells[m.selectedIdx]
				if cell.Kind == domain.KindCode {
					m.executing = true
					m.err = nil
					return m, m.executeCell(cell.ID)
				}
			}
		case "d":
			if !m.executing && m.selectedIdx < len(m.cells) {
				return m, m.deleteCell(m.cells[m.selectedIdx].ID)
			}
		case "a":
			if !m.executing {
				return m, m.addCell
			}
		case "r":
			return m, m.fetchCells
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case cellsMsg:
		m.cells = msg
		if m.selectedIdx >= len(m.cells) && len(m.cells) > 0 {
			m.selectedIdx = len(m.cells) - 1
		}

	case execDoneMsg:
		m.executing = false
		if msg.err != nil {
			m.err = msg.err
		}
		cmds = append(cmds, m.fetchCells)

	case errMsg:
		m.err = msg

	case tickMsg:
		if !m.executing {
			cmds = append(cmds, m.fetchCells)
		}
		cmds = append(cmds, tickCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the monitor
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("⚗ "+m.sess.Name) + "\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("  session %s │ notebook %s │ %d cells",
		m.sess.ID, m.sess.NotebookName, len(m.cells))) + "\n\n")

	if m.executing {
		b.WriteString(fmt.Sprintf("  %s Reviewing and executing...\n\n", m.spinner.View()))
	}

	if len(m.cells) == 0 {
		b.WriteString(infoStyle.Render("  No cells yet. Press a to add one.\n"))
	}

	for i, cell := range m.cells {
		b.WriteString(m.renderCell(i, cell))
	}

	if m.err != nil {
		b.WriteString("\n" + rejectedStyle.Render("  "+m.err.Error()) + "\n")
	}

	if sel := m.selected(); sel != nil && sel.Output != "" {
		width := m.width - 6
		if width < 20 {
			width = 20
		}
		b.WriteString("\n" + outputStyle.Width(width).Render(trimOutput(sel.Output, 8)) + "\n")
	}

	b.WriteString(helpStyle.Render("  e: execute │ a: add │ d: delete │ r: refresh │ j/k: navigate │ q: quit"))

	return b.String()
}

func (m Model) renderCell(i int, cell *domain.Cell) string {
	cursor := "  "
	style := infoStyle
	switch cell.Status {
	case domain.StatusRejected, domain.StatusError:
		style = rejectedStyle
	case domain.StatusExecuted, domain.StatusReady, domain.StatusApproved:
		style = executedStyle
	}
	if i == m.selectedIdx {
		cursor = "▶ "
		style = selectedStyle
	}

	code := cell.Code
	if idx := strings.IndexByte(code, '\n'); idx >= 0 {
		code = code[:idx] + "…"
	}
	if len(code) > 60 {
		code = code[:60] + "…"
	}

	line := fmt.Sprintf("%s[%d] %-9s %s", cursor, cell.Position, cell.Status, code)
	out := style.Render(line) + "\n"

	if cell.Status == domain.StatusRejected && cell.RejectionReason != "" {
		out += rejectedStyle.Render("      ⊘ "+cell.RejectionReason) + "\n"
	}

	return out
}

func (m Model) selected() *domain.Cell {
	if m.selectedIdx < len(m.cells) {
		return m.cells[m.selectedIdx]
	}
	return nil
}

// Commands

func (m Model) fetchCells() tea.Msg {
	cells, err := m.ctrl.Cells(context.Background(), m.sess.ID)
	if err != nil {
		return errMsg(err)
	}
	return cellsMsg(cells)
}

func (m Model) executeCell(cellID string) tea.Cmd {
	return func() tea.Msg {
		cell, err := m.ctrl.ExecuteCell(context.Background(), m.sess.ID, cellID)
		return execDoneMsg{cell: cell, err: err}
	}
}

func (m Model) deleteCell(cellID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.ctrl.DeleteCell(context.Background(), m.sess.ID, cellID); err != nil {
			return errMsg(err)
		}
		cells, err := m.ctrl.Cells(context.Background(), m.sess.ID)
		if err != nil {
			return errMsg(err)
		}
		return cellsMsg(cells)
	}
}

func (m Model) addCell() tea.Msg {
	if _, err := m.ctrl.AddCell(context.Background(), m.sess.ID, domain.KindCode); err != nil {
		return errMsg(err)
	}
	cells, err := m.ctrl.Cells(context.Background(), m.sess.ID)
	if err != nil {
		return errMsg(err)
	}
	return cellsMsg(cells)
}

func tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func trimOutput(s string, maxLines int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "…")
	}
	return strings.Join(lines, "\n")
}

// Run starts the monitor for one session
func Run(ctrl *controller.Controller, sess *domain.Session) error {
	p := tea.NewProgram(New(ctrl, sess), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
